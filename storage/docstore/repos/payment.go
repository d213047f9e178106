package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/payment"
)

type paymentRepository struct {
	store core.DocumentStore
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(store core.DocumentStore) *paymentRepository {
	return &paymentRepository{store: store}
}

func (repo paymentRepository) decode(doc core.Document) (payment.Payment, error) {
	var p payment.Payment
	if err := doc.Decode(&p); err != nil {
		return payment.Payment{}, errors.Wrap(err, "decoding payment")
	}
	return p, nil
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DocExecutor) (payment.Payment, error) {
	flds, err := core.ToFields(p)
	if err != nil {
		return payment.Payment{}, err
	}
	flds["timestamp"] = core.ServerTimestamp

	ex := getExec(repo.store, exec)
	id, err := ex.Create(ctx, core.PaymentsCollection, flds)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return repo.GetPayment(ctx, id, ex)
}

func (repo paymentRepository) GetPayment(ctx context.Context, id string, exec ...core.DocExecutor) (payment.Payment, error) {
	doc, err := getExec(repo.store, exec).Get(ctx, core.PaymentsCollection, id)
	if err != nil {
		if err == core.ErrDocNotFound {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, errors.Wrap(err, "selecting payment")
	}
	return repo.decode(doc)
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter, exec ...core.DocExecutor) ([]payment.Payment, error) {
	f := core.Filter{}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.CourseID != "" {
		f["course_id"] = filter.CourseID
	}

	docs, err := getExec(repo.store, exec).Query(ctx, core.PaymentsCollection, f)
	if err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	payments := make([]payment.Payment, 0, len(docs))
	for _, doc := range docs {
		p, err := repo.decode(doc)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}
