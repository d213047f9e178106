package payment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/payment"
	"github.com/trezcool/academia/testutil"
)

type failingProcessor struct{}

func (failingProcessor) Charge(context.Context, payment.Charge) (string, error) {
	return "", errors.New("card declined")
}

func TestService_RecordPayment(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	sess := identity.Session{UserID: "u1"}

	t.Run("anonymous", func(t *testing.T) {
		_, err := app.PaymentSvc.RecordPayment(ctx, identity.Session{}, "c1", 49)
		assert.Equal(t, identity.ErrUnauthenticated, err)
	})

	t.Run("missing course", func(t *testing.T) {
		_, err := app.PaymentSvc.RecordPayment(ctx, sess, "", 49)
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok)
	})

	t.Run("success", func(t *testing.T) {
		p, err := app.PaymentSvc.RecordPayment(ctx, sess, "c1", 49)
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, payment.StatusSuccess, p.Status)
		assert.Equal(t, float64(49), p.Amount)
		assert.False(t, p.Timestamp.IsZero())

		stored, err := app.PaymentSvc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p, stored)

		evts := app.Events.Events(core.EventPaymentRecorded)
		require.Len(t, evts, 1)
		assert.Equal(t, p, evts[0].Data)
	})

	t.Run("processor failure", func(t *testing.T) {
		svc := payment.NewService(app.PaymentRepo, failingProcessor{}, nil, app.Logger)
		_, err := svc.RecordPayment(ctx, sess, "c2", 49)
		assert.Error(t, err)

		payments, err := app.PaymentSvc.QueryForUser(ctx, sess.UserID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})
}

func TestService_Get(t *testing.T) {
	app := testutil.NewApp(t)

	_, err := app.PaymentSvc.Get(context.Background(), "")
	assert.Equal(t, payment.ErrNotFound, err)
	_, err = app.PaymentSvc.Get(context.Background(), "unknown")
	assert.Equal(t, payment.ErrNotFound, errors.Cause(err))
}
