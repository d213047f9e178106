// Package testutil wires the application on an in-memory store for tests.
package testutil

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/checkout"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/like"
	"github.com/trezcool/academia/core/payment"
	"github.com/trezcool/academia/core/student"
	emailsvc "github.com/trezcool/academia/services/email"
	eventsvc "github.com/trezcool/academia/services/events"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/docstore/inmem"
	docrepos "github.com/trezcool/academia/storage/docstore/repos"
)

// App holds every service of the application, built on an in-memory store.
type App struct {
	Conf   *core.Config
	Logger core.Logger
	Store  *inmem.Store
	Events *eventsvc.Recorder

	CourseRepo     course.Repository
	StudentRepo    student.Repository
	PaymentRepo    payment.Repository
	EnrollmentRepo enrollment.Repository
	LikeRepo       like.Repository

	CourseSvc     *course.Service
	StudentSvc    *student.Service
	PaymentSvc    *payment.Service
	EnrollmentSvc *enrollment.Service
	LikeSvc       *like.Service
	CheckoutSvc   *checkout.Service
	MailSvc       core.EmailService
}

func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.Lmicroseconds), core.NewTestConfig())
}

// NewApp builds a fresh App; the store is closed when t ends.
func NewApp(t *testing.T) *App {
	conf := core.NewTestConfig()
	logger := NewLogger()
	store := inmem.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	core.ParseEmailTemplates(logger)
	emailsvc.ResetSentMessages()

	a := &App{
		Conf:           conf,
		Logger:         logger,
		Store:          store,
		Events:         eventsvc.NewRecorder(),
		CourseRepo:     docrepos.NewCourseRepository(store),
		StudentRepo:    docrepos.NewStudentRepository(store),
		PaymentRepo:    docrepos.NewPaymentRepository(store),
		EnrollmentRepo: docrepos.NewEnrollmentRepository(store),
		LikeRepo:       docrepos.NewLikeRepository(store),
		MailSvc:        emailsvc.NewConsoleServiceMock(conf, logger),
	}
	a.CourseSvc = course.NewService(a.CourseRepo, nil, logger)
	a.StudentSvc = student.NewService(a.StudentRepo)
	a.PaymentSvc = payment.NewService(a.PaymentRepo, payment.MockProcessor{}, a.Events, logger)
	a.EnrollmentSvc = enrollment.NewService(a.EnrollmentRepo, a.CourseSvc, enrollment.NewInFlightSet(), a.Events, logger)
	a.LikeSvc = like.NewService(store, a.LikeRepo, a.CourseRepo, a.CourseSvc, a.Events, logger)
	a.CheckoutSvc = checkout.NewService(checkout.Options{
		Courses:     a.CourseSvc,
		Payments:    a.PaymentSvc,
		Enrollments: a.EnrollmentSvc,
		Students:    a.StudentSvc,
		MailSvc:     a.MailSvc,
		Logger:      logger,
	})
	return a
}

func CreateCourse(t *testing.T, repo course.Repository, name string, likes int64) course.Course {
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Name:             name,
		Instructor:       "John Doe",
		Description:      name + " description",
		EnrollmentStatus: "Open",
		Duration:         "4 weeks",
		Fee:              49,
		Syllabus:         []course.SyllabusItem{{Week: 1, Topic: "Intro"}},
		Likes:            likes,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

// SignIn creates the student and returns their session.
func SignIn(t *testing.T, svc *student.Service, uid, name, email string) (student.Student, identity.Session) {
	st, err := svc.SignIn(context.Background(), identity.Identity{UserID: uid, Name: name, Email: email})
	if err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}
	return st, identity.Session{UserID: st.UID, Name: st.Name, Email: st.Email, PhotoURL: st.PhotoURL}
}

func CreateEnrollment(t *testing.T, repo enrollment.Repository, studentID, courseID, paymentID string, progress int) enrollment.Enrollment {
	e, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		PaymentID: paymentID,
		Progress:  progress,
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return e
}
