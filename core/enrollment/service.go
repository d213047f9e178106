package enrollment

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/identity"
)

var (
	// errors
	ErrMissingIDs = errors.New("missing course or payment ID")
)

type (
	Repository interface {
		// CreateEnrollment stores e with a store-assigned ID & timestamp and returns the stored record.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DocExecutor) (Enrollment, error)
		// QueryEnrollments applies AND operation on the non-empty QueryFilter fields.
		QueryEnrollments(ctx context.Context, filter QueryFilter, exec ...core.DocExecutor) ([]Enrollment, error)
	}

	// CourseGetter is the part of the catalog the dashboard needs.
	CourseGetter interface {
		Get(ctx context.Context, id string) (course.Course, error)
	}

	Service struct {
		repo     Repository
		courses  CourseGetter
		inFlight *InFlightSet
		events   core.EventPublisher
		logger   core.Logger
	}
)

func NewService(repo Repository, courses CourseGetter, inFlight *InFlightSet, events core.EventPublisher, logger core.Logger) *Service {
	if inFlight == nil {
		inFlight = NewInFlightSet()
	}
	return &Service{repo: repo, courses: courses, inFlight: inFlight, events: events, logger: logger}
}

func (svc *Service) InFlight() *InFlightSet {
	return svc.inFlight
}

// Enroll records the session user's enrollment in courseID, paid by paymentID.
// No existence check is made: enrolling twice creates two records.
func (svc *Service) Enroll(ctx context.Context, sess identity.Session, courseID, paymentID string) (Enrollment, error) {
	if err := identity.Require(sess); err != nil {
		return Enrollment{}, err
	}
	if courseID == "" || paymentID == "" {
		return Enrollment{}, core.NewValidationError(ErrMissingIDs)
	}

	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		StudentID: sess.UserID,
		CourseID:  courseID,
		PaymentID: paymentID,
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	core.PublishEvent(ctx, svc.events, svc.logger, core.EventEnrollmentCreated, e)
	return e, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

func (svc *Service) QueryForStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	if studentID == "" {
		return []Enrollment{}, nil
	}
	return svc.repo.QueryEnrollments(ctx, QueryFilter{StudentID: studentID})
}

// Status tells where the session user stands regarding courseID:
// enrolled (with their best progress) once an enrollment exists, enrolling while one is under way, not enrolled otherwise.
func (svc *Service) Status(ctx context.Context, sess identity.Session, courseID string) (Status, error) {
	if err := identity.Require(sess); err != nil {
		return Status{}, err
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, QueryFilter{StudentID: sess.UserID, CourseID: courseID})
	if err != nil {
		return Status{}, errors.Wrap(err, "querying enrollments")
	}
	if len(enrollments) > 0 {
		st := Status{State: StateEnrolled}
		for _, e := range enrollments {
			if e.Progress > st.Progress {
				st.Progress = e.Progress
			}
		}
		return st, nil
	}
	if svc.inFlight.InFlight(sess.UserID, courseID) {
		return Status{State: StateEnrolling}, nil
	}
	return Status{State: StateNotEnrolled}, nil
}

// Dashboard lists the courses the session user is enrolled in, one entry per course, most recent first.
func (svc *Service) Dashboard(ctx context.Context, sess identity.Session) ([]DashboardEntry, error) {
	if err := identity.Require(sess); err != nil {
		return nil, err
	}

	enrollments, err := svc.QueryForStudent(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	byCourse := make(map[string]*DashboardEntry, len(enrollments))
	entries := make([]DashboardEntry, 0, len(enrollments))
	for _, e := range enrollments {
		if entry, ok := byCourse[e.CourseID]; ok {
			if e.Progress > entry.Progress {
				entry.Progress = e.Progress
			}
			if e.Timestamp.Before(entry.EnrolledAt) {
				entry.EnrolledAt = e.Timestamp
			}
			continue
		}

		crs, err := svc.courses.Get(ctx, e.CourseID)
		if err != nil {
			if errors.Cause(err) == course.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "getting course")
		}
		byCourse[e.CourseID] = &DashboardEntry{Course: crs, Progress: e.Progress, EnrolledAt: e.Timestamp}
	}

	for _, entry := range byCourse {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EnrolledAt.Equal(entries[j].EnrolledAt) {
			return entries[i].Course.ID < entries[j].Course.ID
		}
		return entries[i].EnrolledAt.After(entries[j].EnrolledAt)
	})
	return entries, nil
}
