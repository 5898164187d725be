package store

// Kind names one asynchronous mutation tracked by the store.
type Kind string

const (
	KindLogin        Kind = "login"
	KindLogout       Kind = "logout"
	KindSignup       Kind = "signup"
	KindAddPost      Kind = "add-post"
	KindRemovePost   Kind = "remove-post"
	KindAddComment   Kind = "add-comment"
	KindLike         Kind = "like"
	KindUnlike       Kind = "unlike"
	KindRetweet      Kind = "retweet"
	KindLoadPosts    Kind = "load-posts"
	KindUploadImages Kind = "upload-images"
)

type Phase int

const (
	PhaseRequest Phase = iota + 1
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "REQUEST"
	case PhaseSuccess:
		return "SUCCESS"
	case PhaseFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Action is one step of a mutation. Seq ties SUCCESS and FAILURE to the REQUEST that started it.
//
// Data carries, per kind and phase:
//
//	login SUCCESS            auth.User
//	add-post SUCCESS         post.Post
//	remove-post SUCCESS      int64 post id
//	add-comment SUCCESS      post.Comment
//	like/unlike (all phases) int64 post id, or post.LikeResult on SUCCESS
//	retweet SUCCESS          post.Post
//	load-posts SUCCESS       []post.Post
//	upload-images SUCCESS    []string
type Action struct {
	Kind  Kind
	Phase Phase
	Seq   uint64
	Data  any
	Err   error
}

func (a Action) Type() string {
	return string(a.Kind) + "/" + a.Phase.String()
}

func Request(kind Kind, seq uint64, data any) Action {
	return Action{Kind: kind, Phase: PhaseRequest, Seq: seq, Data: data}
}

func Success(kind Kind, seq uint64, data any) Action {
	return Action{Kind: kind, Phase: PhaseSuccess, Seq: seq, Data: data}
}

func Failure(kind Kind, seq uint64, data any, err error) Action {
	return Action{Kind: kind, Phase: PhaseFailure, Seq: seq, Data: data, Err: err}
}

