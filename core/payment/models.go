package payment

import (
	"context"
	"time"
)

// StatusSuccess is the only status payments are recorded with.
const StatusSuccess = "success"

type Payment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"` // UTC, set by the store
}

type QueryFilter struct {
	UserID   string
	CourseID string
}

// Charge is what a Processor is asked to collect.
type Charge struct {
	UserID   string
	CourseID string
	Amount   float64
}

// Processor collects charges and reports the resulting payment status.
type Processor interface {
	Charge(ctx context.Context, ch Charge) (status string, err error)
}

// MockProcessor accepts every charge.
type MockProcessor struct{}

var _ Processor = MockProcessor{}

func (MockProcessor) Charge(context.Context, Charge) (string, error) {
	return StatusSuccess, nil
}
