package payment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/identity"
)

var (
	// errors
	ErrNotFound        = errors.New("payment not found")
	ErrMissingCourseID = errors.New("missing course ID")
)

type (
	Repository interface {
		// CreatePayment stores p with a store-assigned ID & timestamp and returns the stored record.
		CreatePayment(ctx context.Context, p Payment, exec ...core.DocExecutor) (Payment, error)
		GetPayment(ctx context.Context, id string, exec ...core.DocExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter QueryFilter, exec ...core.DocExecutor) ([]Payment, error)
	}

	Service struct {
		repo      Repository
		processor Processor
		events    core.EventPublisher
		logger    core.Logger
	}
)

func NewService(repo Repository, processor Processor, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{repo: repo, processor: processor, events: events, logger: logger}
}

// RecordPayment charges the session user and records the payment. Amounts are not validated here.
func (svc *Service) RecordPayment(ctx context.Context, sess identity.Session, courseID string, amount float64) (Payment, error) {
	if err := identity.Require(sess); err != nil {
		return Payment{}, err
	}
	if courseID == "" {
		return Payment{}, core.NewValidationError(ErrMissingCourseID)
	}

	status, err := svc.processor.Charge(ctx, Charge{UserID: sess.UserID, CourseID: courseID, Amount: amount})
	if err != nil {
		return Payment{}, errors.Wrap(err, "charging")
	}

	p, err := svc.repo.CreatePayment(ctx, Payment{
		UserID:   sess.UserID,
		CourseID: courseID,
		Amount:   amount,
		Status:   status,
	})
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}

	core.PublishEvent(ctx, svc.events, svc.logger, core.EventPaymentRecorded, p)
	return p, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Payment, error) {
	if id == "" {
		return Payment{}, ErrNotFound
	}
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) QueryForUser(ctx context.Context, userID string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, QueryFilter{UserID: userID})
}
