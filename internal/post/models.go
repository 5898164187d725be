package post

import (
	"encoding/json"
	"time"
)

// RetweetContent is the fixed content of every retweet wrapper post.
const RetweetContent = "retweet"

type Author struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

type Liker struct {
	ID int64 `json:"id"`
}

type Image struct {
	ID     int64  `json:"id"`
	Src    string `json:"src"`
	PostID int64  `json:"PostId"`
}

type Hashtag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	PostID    int64     `json:"PostId"`
	UserID    int64     `json:"UserId"`
	CreatedAt time.Time `json:"createdAt"`
	User      Author    `json:"User"`
}

// Post is the full post view returned by every read and mutation.
type Post struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	UserID    int64     `json:"UserId"`
	RetweetID *int64    `json:"RetweetId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      Author    `json:"User"`
	Images    []Image   `json:"Images"`
	Comments  []Comment `json:"Comments"`
	Likers    []Liker   `json:"Likers"`
	Hashtags  []Hashtag `json:"Hashtags"`
	Retweet   *Post     `json:"Retweet,omitempty"`
}

func (p Post) IsRetweet() bool {
	return p.RetweetID != nil
}

// ImageRefs accepts either a single reference or a list in JSON.
type ImageRefs []string

func (r *ImageRefs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*r = nil
		} else {
			*r = ImageRefs{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*r = list
	return nil
}

type CreatePostRequest struct {
	Content string    `json:"content"`
	Image   ImageRefs `json:"image"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
	PostID  int64  `json:"postId"`
}

type LikeResult struct {
	PostID int64 `json:"PostId"`
	UserID int64 `json:"UserId"`
}

type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota + 1
	NotFoundOrForbidden
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case NotFoundOrForbidden:
		return "not_found_or_forbidden"
	default:
		return "unknown"
	}
}

type Page struct {
	LastID int64
	Limit  uint64
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Normalize applies the default page size and clamps the limit.
func (p Page) Normalize() Page {
	if p.Limit == 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.LastID < 0 {
		p.LastID = 0
	}
	return p
}
