package enrollment

import (
	"sync"
	"time"

	"github.com/trezcool/academia/core/course"
)

// States of a viewer regarding a course
const (
	StateNotEnrolled = "not_enrolled"
	StateEnrolling   = "enrolling"
	StateEnrolled    = "enrolled"
)

type Enrollment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	PaymentID string    `json:"payment_id"`
	Timestamp time.Time `json:"timestamp"` // UTC, set by the store
	Progress  int       `json:"progress"`  // 0-100; absent reads as 0
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
}

type Status struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
}

func (s Status) Completed() bool {
	return s.State == StateEnrolled && s.Progress >= 100
}

// DashboardEntry is an enrolled course with the student's progress in it.
type DashboardEntry struct {
	Course     course.Course `json:"course"`
	Progress   int           `json:"progress"`
	EnrolledAt time.Time     `json:"enrolled_at"`
}

// InFlightSet tracks the (student, course) pairs that have an enrollment under way in this process.
type InFlightSet struct {
	mu    sync.Mutex
	pairs map[string]struct{}
}

func NewInFlightSet() *InFlightSet {
	return &InFlightSet{pairs: make(map[string]struct{})}
}

func pairKey(studentID, courseID string) string {
	return studentID + "_" + courseID
}

// Begin marks the pair as in flight. It returns false if it already was.
func (s *InFlightSet) Begin(studentID, courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey(studentID, courseID)
	if _, ok := s.pairs[k]; ok {
		return false
	}
	s.pairs[k] = struct{}{}
	return true
}

func (s *InFlightSet) End(studentID, courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pairs, pairKey(studentID, courseID))
}

func (s *InFlightSet) InFlight(studentID, courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pairs[pairKey(studentID, courseID)]
	return ok
}
