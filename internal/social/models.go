package social

import "github.com/bytrustu/sns/internal/post"

// User is the public identity shown in follower lists.
type User = post.Author

type Follow struct {
	FollowerID  int64 `json:"FollowerId"`
	FollowingID int64 `json:"FollowingId"`
}
