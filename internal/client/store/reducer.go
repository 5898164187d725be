package store

import (
	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/post"
)

// Reduce returns the state after applying a. It is pure: prev is never modified.
//
// A SUCCESS or FAILURE whose Seq is not the latest REQUEST seq of its kind is stale.
// Stale responses leave status and data untouched, except that a stale like or unlike
// FAILURE still undoes its own optimistic change while no newer like or unlike request
// has touched the same post.
func Reduce(prev State, a Action) State {
	switch a.Phase {
	case PhaseRequest:
		next := prev
		if a.Seq > prev.LatestSeq(a.Kind) {
			next = next.withLatest(a.Kind, a.Seq)
		}
		next = next.withStatus(a.Kind, Status{Loading: true})
		return applyRequest(next, a)
	case PhaseSuccess:
		if a.Seq != prev.LatestSeq(a.Kind) {
			return prev
		}
		next := prev.withStatus(a.Kind, Status{Done: true})
		return applySuccess(next, a)
	case PhaseFailure:
		if a.Seq != prev.LatestSeq(a.Kind) {
			return rollback(prev, a)
		}
		next := prev.withStatus(a.Kind, Status{Err: a.Err})
		return rollback(next, a)
	default:
		return prev
	}
}

func applyRequest(s State, a Action) State {
	if s.Me == nil {
		return s
	}
	postID, ok := likeTarget(a.Data)
	if !ok {
		return s
	}
	switch a.Kind {
	case KindLike:
		s = s.withToggle(postID, toggle{kind: a.Kind, seq: a.Seq})
		return s.updatePost(postID, func(p *post.Post) { p.Likers = withLiker(p.Likers, s.Me.ID) })
	case KindUnlike:
		s = s.withToggle(postID, toggle{kind: a.Kind, seq: a.Seq})
		return s.updatePost(postID, func(p *post.Post) { p.Likers = withoutLiker(p.Likers, s.Me.ID) })
	}
	return s
}

func rollback(s State, a Action) State {
	if s.Me == nil {
		return s
	}
	postID, ok := likeTarget(a.Data)
	if !ok || !s.ownsToggle(postID, a) {
		return s
	}
	switch a.Kind {
	case KindLike:
		return s.updatePost(postID, func(p *post.Post) { p.Likers = withoutLiker(p.Likers, s.Me.ID) })
	case KindUnlike:
		return s.updatePost(postID, func(p *post.Post) { p.Likers = withLiker(p.Likers, s.Me.ID) })
	}
	return s
}

func applySuccess(s State, a Action) State {
	switch a.Kind {
	case KindLogin:
		if user, ok := a.Data.(auth.User); ok {
			s.Me = &user
		}
	case KindLogout:
		s.Me = nil
	case KindAddPost:
		if p, ok := a.Data.(post.Post); ok {
			s.Posts = prepend(s.Posts, p)
			s.ImagePaths = nil
		}
	case KindRetweet:
		if p, ok := a.Data.(post.Post); ok {
			s.Posts = prepend(s.Posts, p)
		}
	case KindRemovePost:
		if id, ok := a.Data.(int64); ok {
			s.Posts = removePost(s.Posts, id)
		}
	case KindAddComment:
		if c, ok := a.Data.(post.Comment); ok {
			s = s.updatePost(c.PostID, func(p *post.Post) {
				comments := make([]post.Comment, len(p.Comments), len(p.Comments)+1)
				copy(comments, p.Comments)
				p.Comments = append(comments, c)
			})
		}
	case KindLike:
		if r, ok := a.Data.(post.LikeResult); ok {
			s = s.updatePost(r.PostID, func(p *post.Post) { p.Likers = withLiker(p.Likers, r.UserID) })
		}
	case KindUnlike:
		if r, ok := a.Data.(post.LikeResult); ok {
			s = s.updatePost(r.PostID, func(p *post.Post) { p.Likers = withoutLiker(p.Likers, r.UserID) })
		}
	case KindLoadPosts:
		if posts, ok := a.Data.([]post.Post); ok {
			s.Posts = appendNew(s.Posts, posts)
		}
	case KindUploadImages:
		if names, ok := a.Data.([]string); ok {
			paths := make([]string, len(s.ImagePaths), len(s.ImagePaths)+len(names))
			copy(paths, s.ImagePaths)
			s.ImagePaths = append(paths, names...)
		}
	}
	return s
}

func likeTarget(data any) (int64, bool) {
	switch v := data.(type) {
	case int64:
		return v, true
	case post.LikeResult:
		return v.PostID, true
	default:
		return 0, false
	}
}

func prepend(posts []post.Post, p post.Post) []post.Post {
	out := make([]post.Post, 0, len(posts)+1)
	out = append(out, p)
	return append(out, posts...)
}

func removePost(posts []post.Post, id int64) []post.Post {
	out := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// appendNew appends pages of older posts, skipping ids already present.
func appendNew(posts, page []post.Post) []post.Post {
	seen := make(map[int64]struct{}, len(posts))
	out := make([]post.Post, 0, len(posts)+len(page))
	for _, p := range posts {
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for _, p := range page {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
