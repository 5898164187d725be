package social

import (
	"context"

	"github.com/bytrustu/sns/internal/apperr"
	"github.com/bytrustu/sns/internal/db"
	"github.com/bytrustu/sns/internal/logging"
	"github.com/bytrustu/sns/internal/post"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrSelfFollow   = apperr.Validation("self_follow", "cannot follow yourself")
	ErrUserNotFound = apperr.NotFound("user_not_found", "user does not exist")
)

const foreignKeyViolation = "23503"

// PostLoader turns post ids into full post views.
type PostLoader interface {
	LoadPosts(ctx context.Context, ids []int64) ([]post.Post, error)
}

type Service struct {
	db    db.Querier
	posts PostLoader
	log   *logrus.Logger
}

func NewService(db db.Querier, posts PostLoader, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{db: db, posts: posts, log: logger}
}

func (s *Service) Follow(ctx context.Context, followerID, followingID int64) (Follow, error) {
	if followerID == followingID {
		return Follow{}, ErrSelfFollow
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return Follow{}, ErrUserNotFound
	}
	if err != nil {
		return Follow{}, errors.Wrap(err, "insert follow")
	}
	s.log.WithFields(logrus.Fields{"follower_id": followerID, "following_id": followingID}).Info("user followed")
	return Follow{FollowerID: followerID, FollowingID: followingID}, nil
}

func (s *Service) Unfollow(ctx context.Context, followerID, followingID int64) (Follow, error) {
	if _, err := s.db.Exec(ctx, `
		DELETE FROM follows WHERE follower_id=$1 AND following_id=$2
	`, followerID, followingID); err != nil {
		return Follow{}, errors.Wrap(err, "delete follow")
	}
	return Follow{FollowerID: followerID, FollowingID: followingID}, nil
}

// Followers lists users following userID.
func (s *Service) Followers(ctx context.Context, userID int64) ([]User, error) {
	return s.listUsers(ctx, `
		SELECT u.id, u.nickname
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY u.id
	`, userID)
}

// Followings lists users userID follows.
func (s *Service) Followings(ctx context.Context, userID int64) ([]User, error) {
	return s.listUsers(ctx, `
		SELECT u.id, u.nickname
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY u.id
	`, userID)
}

func (s *Service) listUsers(ctx context.Context, query string, userID int64) ([]User, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Nickname); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), "iterate users")
}

// Feed returns the viewer's own posts and those of everyone they follow, newest first.
func (s *Service) Feed(ctx context.Context, viewerID int64, page post.Page) ([]post.Post, error) {
	page = page.Normalize()
	builder := sq.Select("p.id").
		From("posts p").
		Where(sq.Or{
			sq.Eq{"p.user_id": viewerID},
			sq.Expr("p.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)", viewerID),
		})
	if page.LastID > 0 {
		builder = builder.Where(sq.Lt{"p.id": page.LastID})
	}
	query, args, err := builder.
		OrderBy("p.id DESC").
		Limit(page.Limit).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build feed query")
	}

	ids, err := post.SelectIDs(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	return s.posts.LoadPosts(ctx, ids)
}
