package post

import "github.com/bytrustu/sns/internal/apperr"

var (
	ErrPostNotFound     = apperr.NotFound("post_not_found", "post does not exist")
	ErrSelfRetweet      = apperr.Forbidden("self_retweet", "cannot retweet own post")
	ErrAlreadyRetweeted = apperr.Forbidden("already_retweeted", "already retweeted")
	ErrPostNotDeleted   = apperr.Forbidden("post_not_deleted", "post does not exist or belongs to another user")
	ErrEmptyContent     = apperr.Validation("empty_content", "content required")
	ErrInvalidPostID    = apperr.Validation("invalid_post_id", "post id must be a positive integer")
)
