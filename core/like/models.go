package like

import (
	"sync"
	"time"
)

// Like is a ledger record: the user likes the course.
type Like struct {
	ID        string    `json:"id"` // see Key
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC, set by the store
}

// Counter is the denormalized like count of a course. Base is the count the course was created with.
type Counter struct {
	Likes int64
	Base  int64
}

const keySep = "_"

// Key is the ledger key of a (user, course) pair. Neither id may contain keySep.
func Key(userID, courseID string) string {
	return userID + keySep + courseID
}

// Subscription delivers whether a user likes a course, on every change.
type Subscription struct {
	C <-chan bool

	close func()
	once  sync.Once
}

func NewSubscription(c <-chan bool, close func()) *Subscription {
	return &Subscription{C: c, close: close}
}

// Close stops the subscription. Nothing is delivered on C once it returns.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}
