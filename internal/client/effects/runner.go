package effects

import (
	"sync"

	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/client/api"
	"github.com/bytrustu/sns/internal/client/store"
	"github.com/bytrustu/sns/internal/logging"
	"github.com/bytrustu/sns/internal/post"

	"github.com/sirupsen/logrus"
)

// API is the part of api.Client the runner drives.
type API interface {
	Signup(req auth.SignupRequest) (auth.User, error)
	Login(req auth.LoginRequest) (auth.User, error)
	Logout() error
	AddPost(req post.CreatePostRequest) (post.Post, error)
	RemovePost(postID int64) (int64, error)
	AddComment(req post.CreateCommentRequest) (post.Comment, error)
	Like(postID int64) (post.LikeResult, error)
	Unlike(postID int64) (post.LikeResult, error)
	Retweet(postID int64) (post.Post, error)
	LoadPosts(page post.Page) ([]post.Post, error)
	UploadImages(files []api.File) ([]string, error)
}

var _ API = (*api.Client)(nil)

// Runner turns user intents into REQUEST, then SUCCESS or FAILURE, dispatches.
// Calls run in their own goroutine and are never cancelled.
type Runner struct {
	store *store.Store
	api   API
	log   *logrus.Logger
	wg    sync.WaitGroup
}

func NewRunner(st *store.Store, client API, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{store: st, api: client, log: logger}
}

// Wait blocks until every call started so far has dispatched its outcome.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) Signup(req auth.SignupRequest) uint64 {
	return r.run(store.KindSignup, nil, func() (any, error) { return r.api.Signup(req) })
}

func (r *Runner) Login(req auth.LoginRequest) uint64 {
	return r.run(store.KindLogin, nil, func() (any, error) { return r.api.Login(req) })
}

func (r *Runner) Logout() uint64 {
	return r.run(store.KindLogout, nil, func() (any, error) { return nil, r.api.Logout() })
}

// AddPost attaches the images uploaded so far.
func (r *Runner) AddPost(content string) uint64 {
	req := post.CreatePostRequest{Content: content, Image: post.ImageRefs(r.store.State().ImagePaths)}
	return r.run(store.KindAddPost, nil, func() (any, error) { return r.api.AddPost(req) })
}

func (r *Runner) RemovePost(postID int64) uint64 {
	return r.run(store.KindRemovePost, postID, func() (any, error) { return r.api.RemovePost(postID) })
}

func (r *Runner) AddComment(postID int64, content string) uint64 {
	req := post.CreateCommentRequest{Content: content, PostID: postID}
	return r.run(store.KindAddComment, postID, func() (any, error) { return r.api.AddComment(req) })
}

func (r *Runner) Like(postID int64) uint64 {
	return r.run(store.KindLike, postID, func() (any, error) { return r.api.Like(postID) })
}

func (r *Runner) Unlike(postID int64) uint64 {
	return r.run(store.KindUnlike, postID, func() (any, error) { return r.api.Unlike(postID) })
}

func (r *Runner) Retweet(postID int64) uint64 {
	return r.run(store.KindRetweet, postID, func() (any, error) { return r.api.Retweet(postID) })
}

func (r *Runner) LoadPosts(page post.Page) uint64 {
	return r.run(store.KindLoadPosts, nil, func() (any, error) { return r.api.LoadPosts(page) })
}

func (r *Runner) UploadImages(files []api.File) uint64 {
	return r.run(store.KindUploadImages, nil, func() (any, error) { return r.api.UploadImages(files) })
}

func (r *Runner) run(kind store.Kind, data any, call func() (any, error)) uint64 {
	seq := r.store.NextSeq(kind)
	r.store.Dispatch(store.Request(kind, seq, data))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result, err := call()
		if err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "seq": seq}).Warn("request failed")
			r.store.Dispatch(store.Failure(kind, seq, data, err))
			return
		}
		r.store.Dispatch(store.Success(kind, seq, result))
	}()
	return seq
}
