package post

import (
	"context"

	"github.com/bytrustu/sns/internal/db"

	"github.com/pkg/errors"
)

// loadPosts assembles the full post view for ids, keeping the order of ids.
// Missing ids are skipped. Retweet targets are resolved one hop deep.
func loadPosts(ctx context.Context, q db.Querier, ids []int64, withRetweet bool) ([]Post, error) {
	if len(ids) == 0 {
		return []Post{}, nil
	}

	byID, err := selectPosts(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	if len(byID) == 0 {
		return []Post{}, nil
	}

	found := make([]int64, 0, len(byID))
	for _, id := range ids {
		if _, ok := byID[id]; ok {
			found = append(found, id)
		}
	}

	if err := attachImages(ctx, q, found, byID); err != nil {
		return nil, err
	}
	if err := attachComments(ctx, q, found, byID); err != nil {
		return nil, err
	}
	if err := attachLikers(ctx, q, found, byID); err != nil {
		return nil, err
	}
	if err := attachHashtags(ctx, q, found, byID); err != nil {
		return nil, err
	}
	if withRetweet {
		if err := attachRetweets(ctx, q, found, byID); err != nil {
			return nil, err
		}
	}

	posts := make([]Post, 0, len(found))
	for _, id := range found {
		posts = append(posts, *byID[id])
	}
	return posts, nil
}

func selectPosts(ctx context.Context, q db.Querier, ids []int64) (map[int64]*Post, error) {
	rows, err := q.Query(ctx, `
		SELECT p.id, p.content, p.user_id, p.retweet_id, p.created_at, p.updated_at, u.nickname
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select posts")
	}
	defer rows.Close()

	byID := map[int64]*Post{}
	for rows.Next() {
		p := &Post{
			Images:   []Image{},
			Comments: []Comment{},
			Likers:   []Liker{},
			Hashtags: []Hashtag{},
		}
		if err := rows.Scan(&p.ID, &p.Content, &p.UserID, &p.RetweetID, &p.CreatedAt, &p.UpdatedAt, &p.User.Nickname); err != nil {
			return nil, errors.Wrap(err, "scan post")
		}
		p.User.ID = p.UserID
		byID[p.ID] = p
	}
	return byID, errors.Wrap(rows.Err(), "iterate posts")
}

func attachImages(ctx context.Context, q db.Querier, ids []int64, byID map[int64]*Post) error {
	rows, err := q.Query(ctx, `
		SELECT id, src, post_id
		FROM images WHERE post_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return errors.Wrap(err, "select images")
	}
	defer rows.Close()
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.Src, &img.PostID); err != nil {
			return errors.Wrap(err, "scan image")
		}
		if p, ok := byID[img.PostID]; ok {
			p.Images = append(p.Images, img)
		}
	}
	return errors.Wrap(rows.Err(), "iterate images")
}

func attachComments(ctx context.Context, q db.Querier, ids []int64, byID map[int64]*Post) error {
	rows, err := q.Query(ctx, `
		SELECT c.id, c.content, c.post_id, c.user_id, c.created_at, u.nickname
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ANY($1)
		ORDER BY c.id
	`, ids)
	if err != nil {
		return errors.Wrap(err, "select comments")
	}
	defer rows.Close()
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Content, &c.PostID, &c.UserID, &c.CreatedAt, &c.User.Nickname); err != nil {
			return errors.Wrap(err, "scan comment")
		}
		c.User.ID = c.UserID
		if p, ok := byID[c.PostID]; ok {
			p.Comments = append(p.Comments, c)
		}
	}
	return errors.Wrap(rows.Err(), "iterate comments")
}

func attachLikers(ctx context.Context, q db.Querier, ids []int64, byID map[int64]*Post) error {
	rows, err := q.Query(ctx, `
		SELECT post_id, user_id
		FROM likes WHERE post_id = ANY($1)
		ORDER BY user_id
	`, ids)
	if err != nil {
		return errors.Wrap(err, "select likers")
	}
	defer rows.Close()
	for rows.Next() {
		var postID, userID int64
		if err := rows.Scan(&postID, &userID); err != nil {
			return errors.Wrap(err, "scan liker")
		}
		if p, ok := byID[postID]; ok {
			p.Likers = append(p.Likers, Liker{ID: userID})
		}
	}
	return errors.Wrap(rows.Err(), "iterate likers")
}

func attachHashtags(ctx context.Context, q db.Querier, ids []int64, byID map[int64]*Post) error {
	rows, err := q.Query(ctx, `
		SELECT ph.post_id, h.id, h.name
		FROM post_hashtags ph
		JOIN hashtags h ON h.id = ph.hashtag_id
		WHERE ph.post_id = ANY($1)
		ORDER BY h.name
	`, ids)
	if err != nil {
		return errors.Wrap(err, "select hashtags")
	}
	defer rows.Close()
	for rows.Next() {
		var postID int64
		var h Hashtag
		if err := rows.Scan(&postID, &h.ID, &h.Name); err != nil {
			return errors.Wrap(err, "scan hashtag")
		}
		if p, ok := byID[postID]; ok {
			p.Hashtags = append(p.Hashtags, h)
		}
	}
	return errors.Wrap(rows.Err(), "iterate hashtags")
}

// attachRetweets loads originals without their own retweet: retweets always point at a root post.
func attachRetweets(ctx context.Context, q db.Querier, ids []int64, byID map[int64]*Post) error {
	var targets []int64
	seen := map[int64]struct{}{}
	for _, id := range ids {
		rid := byID[id].RetweetID
		if rid == nil {
			continue
		}
		if _, ok := seen[*rid]; ok {
			continue
		}
		seen[*rid] = struct{}{}
		targets = append(targets, *rid)
	}
	if len(targets) == 0 {
		return nil
	}

	originals, err := loadPosts(ctx, q, targets, false)
	if err != nil {
		return errors.Wrap(err, "load retweet targets")
	}
	index := make(map[int64]*Post, len(originals))
	for i := range originals {
		index[originals[i].ID] = &originals[i]
	}
	for _, id := range ids {
		p := byID[id]
		if p.RetweetID == nil {
			continue
		}
		if original, ok := index[*p.RetweetID]; ok {
			p.Retweet = original
		}
	}
	return nil
}
