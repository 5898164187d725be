package feedui

import (
	"unicode/utf8"

	"github.com/bytrustu/sns/internal/client/store"
	"github.com/bytrustu/sns/internal/post"
)

type Action string

const (
	ActionRetweet Action = "retweet"
	ActionLike    Action = "like"
	ActionComment Action = "comment"
	ActionMore    Action = "more"
)

type MenuItem string

const (
	MenuEdit   MenuItem = "edit"
	MenuDelete MenuItem = "delete"
	MenuReport MenuItem = "report"
)

// Card is everything needed to render one post.
type Card struct {
	PostID        int64
	Cover         string
	Images        []string
	AvatarInitial string
	Title         string
	Description   string
	Liked         bool
	LikeCount     int
	CommentCount  int
	Hashtags      []string
	// RetweetOf is the original post when this card is a retweet.
	RetweetOf *Card
	Actions   []Action
	MoreMenu  []MenuItem
}

// NewCard derives the card for p as seen by state.Me. Liked comes from the post's
// likers, never from local UI state.
func NewCard(state store.State, p post.Post) Card {
	card := Card{
		PostID:        p.ID,
		AvatarInitial: initial(p.User.Nickname),
		Title:         p.User.Nickname,
		Description:   p.Content,
		LikeCount:     len(p.Likers),
		CommentCount:  len(p.Comments),
		Actions:       []Action{ActionRetweet, ActionLike, ActionComment, ActionMore},
		MoreMenu:      []MenuItem{MenuReport},
	}
	for _, img := range p.Images {
		card.Images = append(card.Images, img.Src)
	}
	if len(card.Images) > 0 {
		card.Cover = card.Images[0]
	}
	for _, h := range p.Hashtags {
		card.Hashtags = append(card.Hashtags, h.Name)
	}

	if state.Me != nil {
		for _, l := range p.Likers {
			if l.ID == state.Me.ID {
				card.Liked = true
			}
		}
		if p.User.ID == state.Me.ID {
			card.MoreMenu = []MenuItem{MenuEdit, MenuDelete, MenuReport}
		}
	}

	if p.Retweet != nil {
		original := NewCard(store.State{}, *p.Retweet)
		original.Actions = nil
		original.MoreMenu = nil
		card.RetweetOf = &original
	}
	return card
}

// Feed builds one card per post in state order.
func Feed(state store.State) []Card {
	cards := make([]Card, 0, len(state.Posts))
	for _, p := range state.Posts {
		cards = append(cards, NewCard(state, p))
	}
	return cards
}

func initial(nickname string) string {
	r, size := utf8.DecodeRuneInString(nickname)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}
