package feedui

import (
	"strings"
	"sync"

	"github.com/bytrustu/sns/internal/client/store"
)

// Effects is the part of effects.Runner the card needs.
type Effects interface {
	Like(postID int64) uint64
	Unlike(postID int64) uint64
	Retweet(postID int64) uint64
	RemovePost(postID int64) uint64
	AddComment(postID int64, content string) uint64
}

// CardController handles the actions of one card. Only comment visibility is local.
type CardController struct {
	postID  int64
	store   *store.Store
	effects Effects

	mu           sync.Mutex
	commentsOpen bool
	Composer     *CommentComposer
}

func NewCardController(postID int64, st *store.Store, fx Effects) *CardController {
	return &CardController{
		postID:   postID,
		store:    st,
		effects:  fx,
		Composer: NewCommentComposer(postID, st, fx),
	}
}

func (c *CardController) Card() Card {
	state := c.store.State()
	p, _ := state.Post(c.postID)
	return NewCard(state, p)
}

// ToggleLike likes or unlikes depending on whether the current user is already a liker.
// It does nothing when nobody is logged in.
func (c *CardController) ToggleLike() {
	state := c.store.State()
	if state.Me == nil {
		return
	}
	if state.LikedBy(c.postID, state.Me.ID) {
		c.effects.Unlike(c.postID)
		return
	}
	c.effects.Like(c.postID)
}

func (c *CardController) ToggleComment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commentsOpen = !c.commentsOpen
	return c.commentsOpen
}

func (c *CardController) CommentsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commentsOpen
}

func (c *CardController) Retweet() {
	c.effects.Retweet(c.postID)
}

// Remove deletes the post when the current user owns it.
func (c *CardController) Remove() bool {
	state := c.store.State()
	p, ok := state.Post(c.postID)
	if !ok || state.Me == nil || p.UserID != state.Me.ID {
		return false
	}
	c.effects.RemovePost(c.postID)
	return true
}

// CommentComposer holds the draft comment for one post.
type CommentComposer struct {
	postID  int64
	store   *store.Store
	effects Effects

	mu   sync.Mutex
	text string
	// seq is the add-comment request awaiting completion, 0 when none.
	seq uint64
}

func NewCommentComposer(postID int64, st *store.Store, fx Effects) *CommentComposer {
	return &CommentComposer{postID: postID, store: st, effects: fx}
}

func (c *CommentComposer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

func (c *CommentComposer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Submit sends the draft. Blank drafts are ignored.
func (c *CommentComposer) Submit() bool {
	text := c.Text()
	if strings.TrimSpace(text) == "" {
		return false
	}

	seq := c.effects.AddComment(c.postID, text)
	c.mu.Lock()
	c.seq = seq
	c.mu.Unlock()
	// The response may have landed before seq was recorded.
	c.Sync(c.store.State())
	return true
}

// Sync clears the draft once its own add-comment request is reported done.
// Pass it to store.Subscribe.
func (c *CommentComposer) Sync(state store.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == 0 || state.LatestSeq(store.KindAddComment) != c.seq {
		return
	}
	if state.Status(store.KindAddComment).Done {
		c.text = ""
		c.seq = 0
	}
}
