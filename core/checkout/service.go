package checkout

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/payment"
	"github.com/trezcool/academia/core/student"
)

var (
	// errors
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrCheckoutInProgress = errors.New("a checkout of this course is already in progress")
)

// EnrollmentError is returned when the payment got recorded but the enrollment did not.
type EnrollmentError struct {
	PaymentID string
	Err       error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("payment %s was recorded but enrollment failed: %v", e.PaymentID, e.Err)
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

type Receipt struct {
	Payment    payment.Payment       `json:"payment"`
	Enrollment enrollment.Enrollment `json:"enrollment"`
}

type (
	Options struct {
		Courses     *course.Service
		Payments    *payment.Service
		Enrollments *enrollment.Service
		Students    *student.Service // optional; used to address the confirmation email
		MailSvc     core.EmailService
		Logger      core.Logger
	}

	Service struct {
		opts Options
	}
)

func NewService(opts Options) *Service {
	return &Service{opts: opts}
}

// Checkout pays for courseID and enrolls the session user in it, in that order.
// Nothing is written when the user is anonymous, already enrolled or already checking the course out.
func (svc *Service) Checkout(ctx context.Context, sess identity.Session, courseID string, amount float64) (Receipt, error) {
	if err := identity.Require(sess); err != nil {
		return Receipt{}, err
	}

	crs, err := svc.opts.Courses.Get(ctx, courseID)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "getting course")
	}

	inFlight := svc.opts.Enrollments.InFlight()
	if !inFlight.Begin(sess.UserID, crs.ID) {
		return Receipt{}, ErrCheckoutInProgress
	}
	defer inFlight.End(sess.UserID, crs.ID)

	existing, err := svc.opts.Enrollments.Query(ctx, enrollment.QueryFilter{StudentID: sess.UserID, CourseID: crs.ID})
	if err != nil {
		return Receipt{}, errors.Wrap(err, "querying enrollments")
	}
	if len(existing) > 0 {
		return Receipt{}, ErrAlreadyEnrolled
	}

	pmt, err := svc.opts.Payments.RecordPayment(ctx, sess, crs.ID, amount)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "recording payment")
	}

	enr, err := svc.opts.Enrollments.Enroll(ctx, sess, crs.ID, pmt.ID)
	if err != nil {
		return Receipt{}, &EnrollmentError{PaymentID: pmt.ID, Err: err}
	}

	svc.sendConfirmation(ctx, sess, crs, pmt)
	return Receipt{Payment: pmt, Enrollment: enr}, nil
}

type confirmationData struct {
	Name       string
	CourseName string
	PaymentID  string
}

func (svc *Service) sendConfirmation(ctx context.Context, sess identity.Session, crs course.Course, pmt payment.Payment) {
	if svc.opts.MailSvc == nil {
		return
	}

	name, email := sess.Name, sess.Email
	if svc.opts.Students != nil {
		if st, err := svc.opts.Students.GetByID(ctx, sess.UserID); err == nil {
			name, email = st.Name, st.Email
		}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil { // eg. student.DefaultEmail
		return
	}

	svc.opts.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: addr.Address}},
		Subject:      "Enrollment confirmed: " + crs.Name,
		TemplateName: "enrollment_confirmation",
		TemplateData: confirmationData{Name: name, CourseName: crs.Name, PaymentID: pmt.ID},
	})
}
