package post

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bytrustu/sns/internal/db"
	"github.com/bytrustu/sns/internal/logging"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Topic is the stream topic every feed event is published on.
const Topic = "posts"

const (
	EventPostCreated    = "post.created"
	EventPostDeleted    = "post.deleted"
	EventPostLiked      = "post.liked"
	EventPostUnliked    = "post.unliked"
	EventPostRetweeted  = "post.retweeted"
	EventCommentCreated = "comment.created"
)

// Broadcaster fans feed events out to live subscribers.
type Broadcaster interface {
	Broadcast(topic string, payload []byte)
}

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Service struct {
	db     db.TxQuerier
	events Broadcaster
	log    *logrus.Logger
	tracer trace.Tracer
}

func NewService(db db.TxQuerier, events Broadcaster, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		db:     db,
		events: events,
		log:    logger,
		tracer: otel.Tracer("github.com/bytrustu/sns/internal/post"),
	}
}

func (s *Service) CreatePost(ctx context.Context, userID int64, req CreatePostRequest) (Post, error) {
	ctx, span := s.tracer.Start(ctx, "post.CreatePost", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if strings.TrimSpace(req.Content) == "" {
		return Post{}, ErrEmptyContent
	}

	var postID int64
	err := db.InTx(ctx, s.db, func(tx db.Querier) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO posts (content, user_id)
			VALUES ($1,$2)
			RETURNING id
		`, req.Content, userID).Scan(&postID); err != nil {
			return errors.Wrap(err, "insert post")
		}
		if err := linkHashtags(ctx, tx, postID, ExtractHashtags(req.Content)); err != nil {
			return err
		}
		return insertImages(ctx, tx, postID, req.Image)
	})
	if err != nil {
		span.RecordError(err)
		s.log.WithError(err).WithField("user_id", userID).Error("create post failed")
		return Post{}, err
	}

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	s.log.WithFields(logrus.Fields{"post_id": postID, "user_id": userID}).Info("post created")
	s.publish(EventPostCreated, post)
	return post, nil
}

// linkHashtags find-or-creates each tag and links it to the post.
// The upsert is a single statement, so concurrent creators of a new tag converge on one row.
func linkHashtags(ctx context.Context, q db.Querier, postID int64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	link := sq.Insert("post_hashtags").
		Columns("post_id", "hashtag_id").
		Suffix("ON CONFLICT DO NOTHING").
		PlaceholderFormat(sq.Dollar)
	for _, tag := range tags {
		var hashtagID int64
		if err := q.QueryRow(ctx, `
			INSERT INTO hashtags (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, tag).Scan(&hashtagID); err != nil {
			return errors.Wrapf(err, "upsert hashtag %q", tag)
		}
		link = link.Values(postID, hashtagID)
	}
	query, args, err := link.ToSql()
	if err != nil {
		return errors.Wrap(err, "build hashtag links")
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "link hashtags")
	}
	return nil
}

// insertImages inserts one row per reference so ids follow input order.
func insertImages(ctx context.Context, q db.Querier, postID int64, refs []string) error {
	for _, src := range refs {
		if src == "" {
			continue
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO images (src, post_id)
			VALUES ($1,$2)
		`, src, postID); err != nil {
			return errors.Wrapf(err, "insert image %q", src)
		}
	}
	return nil
}

func (s *Service) GetPost(ctx context.Context, postID int64) (Post, error) {
	posts, err := loadPosts(ctx, s.db, []int64{postID}, true)
	if err != nil {
		return Post{}, err
	}
	if len(posts) == 0 {
		return Post{}, ErrPostNotFound
	}
	return posts[0], nil
}

// LoadPosts returns full post views for ids in the given order.
func (s *Service) LoadPosts(ctx context.Context, ids []int64) ([]Post, error) {
	return loadPosts(ctx, s.db, ids, true)
}

func (s *Service) ListPosts(ctx context.Context, page Page) ([]Post, error) {
	return s.listBy(ctx, sq.Select("p.id").From("posts p"), page)
}

func (s *Service) PostsByHashtag(ctx context.Context, tag string, page Page) ([]Post, error) {
	builder := sq.Select("p.id").
		From("posts p").
		Join("post_hashtags ph ON ph.post_id = p.id").
		Join("hashtags h ON h.id = ph.hashtag_id").
		Where(sq.Eq{"h.name": strings.ToLower(strings.TrimPrefix(tag, "#"))})
	return s.listBy(ctx, builder, page)
}

func (s *Service) listBy(ctx context.Context, builder sq.SelectBuilder, page Page) ([]Post, error) {
	page = page.Normalize()
	if page.LastID > 0 {
		builder = builder.Where(sq.Lt{"p.id": page.LastID})
	}
	query, args, err := builder.
		OrderBy("p.id DESC").
		Limit(page.Limit).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}
	ids, err := SelectIDs(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	return loadPosts(ctx, s.db, ids, true)
}

// SelectIDs runs a query returning a single id column.
func SelectIDs(ctx context.Context, q db.Querier, query string, args ...any) ([]int64, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select post ids")
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan post id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate post ids")
}

func (s *Service) AddComment(ctx context.Context, userID int64, req CreateCommentRequest) (Comment, error) {
	ctx, span := s.tracer.Start(ctx, "post.AddComment", trace.WithAttributes(attribute.Int64("post.id", req.PostID)))
	defer span.End()

	if strings.TrimSpace(req.Content) == "" {
		return Comment{}, ErrEmptyContent
	}
	if err := s.ensurePost(ctx, req.PostID); err != nil {
		return Comment{}, err
	}

	comment := Comment{Content: req.Content, PostID: req.PostID, UserID: userID}
	err := s.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO comments (content, post_id, user_id)
			VALUES ($1,$2,$3)
			RETURNING id, created_at, user_id
		)
		SELECT inserted.id, inserted.created_at, u.nickname
		FROM inserted JOIN users u ON u.id = inserted.user_id
	`, req.Content, req.PostID, userID).Scan(&comment.ID, &comment.CreatedAt, &comment.User.Nickname)
	if err != nil {
		span.RecordError(err)
		s.log.WithError(err).WithFields(logrus.Fields{"post_id": req.PostID, "user_id": userID}).Error("add comment failed")
		return Comment{}, errors.Wrap(err, "insert comment")
	}
	comment.User.ID = userID

	s.publish(EventCommentCreated, comment)
	return comment, nil
}

func (s *Service) LikePost(ctx context.Context, postID, userID int64) (LikeResult, error) {
	if err := s.ensurePost(ctx, postID); err != nil {
		return LikeResult{}, err
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO likes (post_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, postID, userID); err != nil {
		return LikeResult{}, errors.Wrap(err, "insert like")
	}
	result := LikeResult{PostID: postID, UserID: userID}
	s.publish(EventPostLiked, result)
	return result, nil
}

func (s *Service) UnlikePost(ctx context.Context, postID, userID int64) (LikeResult, error) {
	if err := s.ensurePost(ctx, postID); err != nil {
		return LikeResult{}, err
	}
	if _, err := s.db.Exec(ctx, `
		DELETE FROM likes WHERE post_id=$1 AND user_id=$2
	`, postID, userID); err != nil {
		return LikeResult{}, errors.Wrap(err, "delete like")
	}
	result := LikeResult{PostID: postID, UserID: userID}
	s.publish(EventPostUnliked, result)
	return result, nil
}

// DeletePost removes the post only when userID owns it. Anything else is reported
// as NotFoundOrForbidden and the caller decides how to surface it.
func (s *Service) DeletePost(ctx context.Context, postID, userID int64) (DeleteOutcome, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id=$1 AND user_id=$2`, postID, userID)
	if err != nil {
		return 0, errors.Wrap(err, "delete post")
	}
	if tag.RowsAffected() == 0 {
		s.log.WithFields(logrus.Fields{"post_id": postID, "user_id": userID}).Warn("delete matched no owned post")
		return NotFoundOrForbidden, nil
	}
	s.publish(EventPostDeleted, map[string]int64{"PostId": postID})
	return Deleted, nil
}

func (s *Service) RetweetPost(ctx context.Context, postID, userID int64) (Post, error) {
	ctx, span := s.tracer.Start(ctx, "post.RetweetPost", trace.WithAttributes(
		attribute.Int64("post.id", postID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	var ownerID int64
	var retweetID, originalOwnerID *int64
	err := s.db.QueryRow(ctx, `
		SELECT p.user_id, p.retweet_id, r.user_id
		FROM posts p
		LEFT JOIN posts r ON r.id = p.retweet_id
		WHERE p.id = $1
	`, postID).Scan(&ownerID, &retweetID, &originalOwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, errors.Wrap(err, "load retweet target")
	}

	if userID == ownerID || (originalOwnerID != nil && *originalOwnerID == userID) {
		return Post{}, ErrSelfRetweet
	}

	targetID := postID
	if retweetID != nil {
		targetID = *retweetID
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM posts WHERE user_id=$1 AND retweet_id=$2)
	`, userID, targetID).Scan(&exists); err != nil {
		return Post{}, errors.Wrap(err, "check existing retweet")
	}
	if exists {
		return Post{}, ErrAlreadyRetweeted
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO posts (content, user_id, retweet_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id, retweet_id) DO NOTHING
		RETURNING id
	`, RetweetContent, userID, targetID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrAlreadyRetweeted
	}
	if err != nil {
		span.RecordError(err)
		return Post{}, errors.Wrap(err, "insert retweet")
	}

	retweet, err := s.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	s.log.WithFields(logrus.Fields{"post_id": id, "retweet_id": targetID, "user_id": userID}).Info("post retweeted")
	s.publish(EventPostRetweeted, retweet)
	return retweet, nil
}

func (s *Service) ensurePost(ctx context.Context, postID int64) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id=$1)`, postID).Scan(&exists); err != nil {
		return errors.Wrap(err, "check post")
	}
	if !exists {
		return ErrPostNotFound
	}
	return nil
}

func (s *Service) publish(eventType string, data any) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("encode feed event")
		return
	}
	s.events.Broadcast(Topic, payload)
}
