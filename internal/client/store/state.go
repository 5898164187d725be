package store

import (
	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/post"
)

// Status is the loading/done/error triple kept for every Kind.
type Status struct {
	Loading bool
	Done    bool
	Err     error
}

// State is an immutable snapshot. Reduce never mutates a State it was given.
type State struct {
	Me         *auth.User
	Posts      []post.Post
	ImagePaths []string

	statuses map[Kind]Status
	latest   map[Kind]uint64
	// toggles holds the newest like or unlike REQUEST per post.
	toggles map[int64]toggle
}

type toggle struct {
	kind Kind
	seq  uint64
}

func (s State) Status(kind Kind) Status {
	return s.statuses[kind]
}

// LatestSeq is the sequence of the most recent REQUEST seen for kind.
func (s State) LatestSeq(kind Kind) uint64 {
	return s.latest[kind]
}

func (s State) Post(id int64) (post.Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return post.Post{}, false
}

// LikedBy reports whether userID is among the likers of post id.
func (s State) LikedBy(id, userID int64) bool {
	p, ok := s.Post(id)
	if !ok {
		return false
	}
	return hasLiker(p.Likers, userID)
}

func (s State) withStatus(kind Kind, st Status) State {
	statuses := make(map[Kind]Status, len(s.statuses)+1)
	for k, v := range s.statuses {
		statuses[k] = v
	}
	statuses[kind] = st
	s.statuses = statuses
	return s
}

func (s State) withLatest(kind Kind, seq uint64) State {
	latest := make(map[Kind]uint64, len(s.latest)+1)
	for k, v := range s.latest {
		latest[k] = v
	}
	latest[kind] = seq
	s.latest = latest
	return s
}

func (s State) withToggle(postID int64, t toggle) State {
	toggles := make(map[int64]toggle, len(s.toggles)+1)
	for k, v := range s.toggles {
		toggles[k] = v
	}
	toggles[postID] = t
	s.toggles = toggles
	return s
}

// ownsToggle reports whether a is the newest like or unlike request for postID.
func (s State) ownsToggle(postID int64, a Action) bool {
	return s.toggles[postID] == toggle{kind: a.Kind, seq: a.Seq}
}

// updatePost copies Posts and applies fn to the copy of post id.
func (s State) updatePost(id int64, fn func(p *post.Post)) State {
	idx := -1
	for i := range s.Posts {
		if s.Posts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}
	posts := make([]post.Post, len(s.Posts))
	copy(posts, s.Posts)
	p := posts[idx]
	fn(&p)
	posts[idx] = p
	s.Posts = posts
	return s
}

func hasLiker(likers []post.Liker, userID int64) bool {
	for _, l := range likers {
		if l.ID == userID {
			return true
		}
	}
	return false
}

func withLiker(likers []post.Liker, userID int64) []post.Liker {
	if hasLiker(likers, userID) {
		return likers
	}
	out := make([]post.Liker, len(likers), len(likers)+1)
	copy(out, likers)
	return append(out, post.Liker{ID: userID})
}

func withoutLiker(likers []post.Liker, userID int64) []post.Liker {
	out := make([]post.Liker, 0, len(likers))
	for _, l := range likers {
		if l.ID != userID {
			out = append(out, l)
		}
	}
	return out
}
