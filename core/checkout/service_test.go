package checkout_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/checkout"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/payment"
	emailsvc "github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/testutil"
)

// failingEnrollmentRepo cannot store enrollments.
type failingEnrollmentRepo struct {
	enrollment.Repository
}

func (failingEnrollmentRepo) CreateEnrollment(context.Context, enrollment.Enrollment, ...core.DocExecutor) (enrollment.Enrollment, error) {
	return enrollment.Enrollment{}, core.Unavailable(errors.New("connection reset"), "inserting enrollment")
}

func countRecords(t *testing.T, app *testutil.App) (payments, enrollments int) {
	ps, err := app.Store.Query(context.Background(), core.PaymentsCollection, nil)
	require.NoError(t, err)
	es, err := app.Store.Query(context.Background(), core.EnrollmentsCollection, nil)
	require.NoError(t, err)
	return len(ps), len(es)
}

func TestService_CheckoutAnonymous(t *testing.T) {
	app := testutil.NewApp(t)
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)

	_, err := app.CheckoutSvc.Checkout(context.Background(), identity.Session{}, crs.ID, 49)
	assert.Equal(t, identity.ErrUnauthenticated, err)

	payments, enrollments := countRecords(t, app)
	assert.Zero(t, payments)
	assert.Zero(t, enrollments)
}

func TestService_Checkout(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	_, sess := testutil.SignIn(t, app.StudentSvc, "u1", "Jane", "jane@test.cd")

	rcpt, err := app.CheckoutSvc.Checkout(ctx, sess, crs.ID, 49)
	require.NoError(t, err)

	// one successful payment, one enrollment referencing it
	payments, err := app.PaymentSvc.QueryForUser(ctx, sess.UserID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, payment.StatusSuccess, payments[0].Status)
	assert.Equal(t, float64(49), payments[0].Amount)
	assert.Equal(t, crs.ID, payments[0].CourseID)
	assert.Equal(t, payments[0], rcpt.Payment)

	enrollments, err := app.EnrollmentSvc.QueryForStudent(ctx, sess.UserID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, payments[0].ID, enrollments[0].PaymentID)
	assert.Equal(t, crs.ID, enrollments[0].CourseID)
	assert.Equal(t, enrollments[0], rcpt.Enrollment)

	entries, err := app.EnrollmentSvc.Dashboard(ctx, sess)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, crs.ID, entries[0].Course.ID)
	assert.Equal(t, 0, entries[0].Progress)

	st, err := app.EnrollmentSvc.Status(ctx, sess, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StateEnrolled, st.State)
	assert.False(t, app.EnrollmentSvc.InFlight().InFlight(sess.UserID, crs.ID))

	// confirmation email
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "jane@test.cd", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "React Basics")
	assert.Contains(t, msg.TextContent, rcpt.Payment.ID)

	// events, in order
	evts := app.Events.Events(core.EventPaymentRecorded, core.EventEnrollmentCreated)
	require.Len(t, evts, 2)
	assert.Equal(t, core.EventPaymentRecorded, evts[0].Type)
	assert.Equal(t, core.EventEnrollmentCreated, evts[1].Type)
}

func TestService_CheckoutRejected(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	sess := identity.Session{UserID: "u1"}

	t.Run("unknown course", func(t *testing.T) {
		_, err := app.CheckoutSvc.Checkout(ctx, sess, "unknown", 49)
		assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	})

	t.Run("in progress", func(t *testing.T) {
		inFlight := app.EnrollmentSvc.InFlight()
		require.True(t, inFlight.Begin(sess.UserID, crs.ID))
		defer inFlight.End(sess.UserID, crs.ID)

		_, err := app.CheckoutSvc.Checkout(ctx, sess, crs.ID, 49)
		assert.Equal(t, checkout.ErrCheckoutInProgress, err)
	})

	t.Run("already enrolled", func(t *testing.T) {
		testutil.CreateEnrollment(t, app.EnrollmentRepo, sess.UserID, crs.ID, "p0", 10)

		_, err := app.CheckoutSvc.Checkout(ctx, sess, crs.ID, 49)
		assert.Equal(t, checkout.ErrAlreadyEnrolled, err)
	})

	payments, enrollments := countRecords(t, app)
	assert.Zero(t, payments)
	assert.Equal(t, 1, enrollments)
	assert.Empty(t, emailsvc.SentMessages)
}

func TestService_CheckoutEnrollmentFailure(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, app.CourseRepo, "React Basics", 10)
	sess := identity.Session{UserID: "u1"}

	enrollments := enrollment.NewService(failingEnrollmentRepo{app.EnrollmentRepo}, app.CourseSvc, nil, nil, app.Logger)
	svc := checkout.NewService(checkout.Options{
		Courses:     app.CourseSvc,
		Payments:    app.PaymentSvc,
		Enrollments: enrollments,
		Logger:      app.Logger,
	})

	_, err := svc.Checkout(ctx, sess, crs.ID, 49)
	require.Error(t, err)
	enrErr, ok := err.(*checkout.EnrollmentError)
	require.True(t, ok)

	// the payment was recorded and is reported
	payments, err := app.PaymentSvc.QueryForUser(ctx, sess.UserID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, payments[0].ID, enrErr.PaymentID)
	assert.Contains(t, enrErr.Error(), payments[0].ID)
	assert.Equal(t, core.ErrUnavailable, errors.Cause(enrErr.Err))
	assert.False(t, enrollments.InFlight().InFlight(sess.UserID, crs.ID))
}
