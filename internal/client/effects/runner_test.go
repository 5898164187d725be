package effects

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/client/api"
	"github.com/bytrustu/sns/internal/client/store"
	"github.com/bytrustu/sns/internal/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("server down")

// fakeAPI answers immediately unless a gate is set for the call, in which case it
// blocks until the gate is closed.
type fakeAPI struct {
	mu       sync.Mutex
	likeErr  error
	gates    map[int64]chan struct{}
	posted   []post.CreatePostRequest
	comments []post.CreateCommentRequest
}

func (f *fakeAPI) gate(postID int64) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = map[int64]chan struct{}{}
	}
	ch := make(chan struct{})
	f.gates[postID] = ch
	return ch
}

func (f *fakeAPI) wait(postID int64) {
	f.mu.Lock()
	ch := f.gates[postID]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (f *fakeAPI) Signup(req auth.SignupRequest) (auth.User, error) {
	return auth.User{ID: 2, Nickname: req.Nickname}, nil
}

func (f *fakeAPI) Login(req auth.LoginRequest) (auth.User, error) {
	if req.Password != "pass" {
		return auth.User{}, errDown
	}
	return auth.User{ID: 1, Nickname: "me"}, nil
}

func (f *fakeAPI) Logout() error { return nil }

func (f *fakeAPI) AddPost(req post.CreatePostRequest) (post.Post, error) {
	f.mu.Lock()
	f.posted = append(f.posted, req)
	f.mu.Unlock()
	return post.Post{ID: 100, Content: req.Content}, nil
}

func (f *fakeAPI) RemovePost(postID int64) (int64, error) { return postID, nil }

func (f *fakeAPI) AddComment(req post.CreateCommentRequest) (post.Comment, error) {
	f.mu.Lock()
	f.comments = append(f.comments, req)
	f.mu.Unlock()
	return post.Comment{ID: 1, PostID: req.PostID, Content: req.Content}, nil
}

func (f *fakeAPI) Like(postID int64) (post.LikeResult, error) {
	f.wait(postID)
	if f.likeErr != nil {
		return post.LikeResult{}, f.likeErr
	}
	return post.LikeResult{PostID: postID, UserID: 1}, nil
}

func (f *fakeAPI) Unlike(postID int64) (post.LikeResult, error) {
	return post.LikeResult{PostID: postID, UserID: 1}, nil
}

func (f *fakeAPI) Retweet(postID int64) (post.Post, error) {
	return post.Post{ID: 200, RetweetID: &postID}, nil
}

func (f *fakeAPI) LoadPosts(page post.Page) ([]post.Post, error) {
	f.wait(page.LastID)
	return []post.Post{{ID: page.LastID - 1}}, nil
}

func (f *fakeAPI) UploadImages(files []api.File) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, "up_"+file.Name)
	}
	return names, nil
}

func newRunner(initial store.State, fake *fakeAPI) (*Runner, *store.Store) {
	st := store.New(initial)
	return NewRunner(st, fake, nil), st
}

func TestLoginSuccessAndFailure(t *testing.T) {
	r, st := newRunner(store.State{}, &fakeAPI{})

	r.Login(auth.LoginRequest{Email: "me@example.com", Password: "pass"})
	r.Wait()
	require.NotNil(t, st.State().Me)
	assert.True(t, st.State().Status(store.KindLogin).Done)

	r.Login(auth.LoginRequest{Email: "me@example.com", Password: "bad"})
	r.Wait()
	assert.Equal(t, errDown, st.State().Status(store.KindLogin).Err)
}

func TestRequestIsDispatchedBeforeCallReturns(t *testing.T) {
	fake := &fakeAPI{}
	gate := fake.gate(10)
	r, st := newRunner(store.State{Me: &auth.User{ID: 1}, Posts: []post.Post{{ID: 10}}}, fake)

	seq := r.Like(10)
	assert.Equal(t, uint64(1), seq)
	assert.True(t, st.State().Status(store.KindLike).Loading)
	assert.True(t, st.State().LikedBy(10, 1), "optimistic like is visible while the call is in flight")

	close(gate)
	r.Wait()
	assert.True(t, st.State().Status(store.KindLike).Done)
	assert.True(t, st.State().LikedBy(10, 1))
}

func TestLikeFailureRollsBack(t *testing.T) {
	fake := &fakeAPI{likeErr: errDown}
	r, st := newRunner(store.State{Me: &auth.User{ID: 1}, Posts: []post.Post{{ID: 10}}}, fake)

	r.Like(10)
	r.Wait()
	assert.False(t, st.State().LikedBy(10, 1))
	assert.Equal(t, errDown, st.State().Status(store.KindLike).Err)
}

func TestSlowStaleResponseDoesNotOverwrite(t *testing.T) {
	fake := &fakeAPI{}
	slow := fake.gate(50)
	r, st := newRunner(store.State{}, fake)

	r.LoadPosts(post.Page{LastID: 50})
	r.LoadPosts(post.Page{LastID: 20})
	require.Eventually(t, func() bool { return st.State().Status(store.KindLoadPosts).Done }, time.Second, 5*time.Millisecond)

	close(slow)
	r.Wait()
	posts := st.State().Posts
	require.Len(t, posts, 1)
	assert.Equal(t, int64(19), posts[0].ID)
}

func TestAddPostSendsUploadedImages(t *testing.T) {
	fake := &fakeAPI{}
	r, st := newRunner(store.State{}, fake)

	r.UploadImages([]api.File{{Name: "a.png"}, {Name: "b.png"}})
	r.Wait()
	assert.Equal(t, []string{"up_a.png", "up_b.png"}, st.State().ImagePaths)

	r.AddPost("hello #cats")
	r.Wait()
	require.Len(t, fake.posted, 1)
	assert.Equal(t, post.ImageRefs{"up_a.png", "up_b.png"}, fake.posted[0].Image)
	assert.Empty(t, st.State().ImagePaths)
	assert.Equal(t, int64(100), st.State().Posts[0].ID)
}

func TestOtherIntents(t *testing.T) {
	fake := &fakeAPI{}
	r, st := newRunner(store.State{Me: &auth.User{ID: 1}, Posts: []post.Post{{ID: 10, Likers: []post.Liker{{ID: 1}}}}}, fake)

	r.AddComment(10, "nice")
	r.Unlike(10)
	r.Retweet(10)
	r.Wait()

	state := st.State()
	assert.False(t, state.LikedBy(10, 1))
	assert.Equal(t, []int64{200, 10}, []int64{state.Posts[0].ID, state.Posts[1].ID})
	assert.Len(t, state.Posts[1].Comments, 1)
	assert.Equal(t, post.CreateCommentRequest{Content: "nice", PostID: 10}, fake.comments[0])

	r.RemovePost(10)
	r.Signup(auth.SignupRequest{Nickname: "new"})
	r.Logout()
	r.Wait()
	state = st.State()
	assert.Len(t, state.Posts, 1)
	assert.True(t, state.Status(store.KindSignup).Done)
	assert.Nil(t, state.Me)
}
