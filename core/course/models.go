package course

import (
	"sync"
)

type SyllabusItem struct {
	Week  int    `json:"week" yaml:"week"`
	Topic string `json:"topic" yaml:"topic"`
}

type Course struct {
	ID               string         `json:"id" yaml:"-"`
	Name             string         `json:"name" yaml:"name"`
	Instructor       string         `json:"instructor" yaml:"instructor"`
	Description      string         `json:"description" yaml:"description"`
	EnrollmentStatus string         `json:"enrollment_status" yaml:"enrollment_status"`
	Duration         string         `json:"duration" yaml:"duration"`
	Fee              float64        `json:"fee" yaml:"fee"`
	Syllabus         []SyllabusItem `json:"syllabus" yaml:"syllabus"`
	ImageURL         string         `json:"image_url,omitempty" yaml:"image_url"`
	Likes            int64          `json:"likes" yaml:"likes"`
}

// Subscription delivers the latest state of a watched course.
type Subscription struct {
	C <-chan Course

	close func()
	once  sync.Once
}

func NewSubscription(c <-chan Course, close func()) *Subscription {
	return &Subscription{C: c, close: close}
}

// Close stops the subscription. Nothing is delivered on C once it returns.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}
