package post

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

var (
	postCols    = []string{"id", "content", "user_id", "retweet_id", "created_at", "updated_at", "nickname"}
	imageCols   = []string{"id", "src", "post_id"}
	commentCols = []string{"id", "content", "post_id", "user_id", "created_at", "nickname"}
	likerCols   = []string{"post_id", "user_id"}
	hashtagCols = []string{"post_id", "id", "name"}

	fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	errPost   = errors.New("post error")
)

func ptr(v int64) *int64 { return &v }

var noID = (*int64)(nil)

// loadRows holds the result sets of one loadPosts level, in query order.
type loadRows struct {
	posts    *pgxmock.Rows
	images   *pgxmock.Rows
	comments *pgxmock.Rows
	likers   *pgxmock.Rows
	hashtags *pgxmock.Rows
}

func newLoad() loadRows {
	return loadRows{
		posts:    pgxmock.NewRows(postCols),
		images:   pgxmock.NewRows(imageCols),
		comments: pgxmock.NewRows(commentCols),
		likers:   pgxmock.NewRows(likerCols),
		hashtags: pgxmock.NewRows(hashtagCols),
	}
}

func (l loadRows) post(id int64, content string, userID int64, nickname string, retweetID *int64) loadRows {
	l.posts.AddRow(id, content, userID, retweetID, fixedTime, fixedTime, nickname)
	return l
}

func expectLoad(mock pgxmock.PgxPoolIface, l loadRows) {
	mock.ExpectQuery(`FROM posts p\s+JOIN users u ON u.id = p.user_id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(l.posts)
	mock.ExpectQuery(`FROM images WHERE post_id = ANY`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(l.images)
	mock.ExpectQuery(`FROM comments c`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(l.comments)
	mock.ExpectQuery(`FROM likes WHERE post_id = ANY`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(l.likers)
	mock.ExpectQuery(`FROM post_hashtags ph`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(l.hashtags)
}

func expectMissing(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`FROM posts p\s+JOIN users u ON u.id = p.user_id`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(postCols))
}

func expectExists(mock pgxmock.PgxPoolIface, postID int64, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM posts WHERE id=\$1\)`).
		WithArgs(postID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

type recordedEvent struct {
	topic   string
	payload string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) Broadcast(topic string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{topic: topic, payload: string(payload)})
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func jsonUnmarshal(body string, v any) error {
	return json.Unmarshal([]byte(body), v)
}
