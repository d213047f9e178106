package student

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/identity"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
	ErrExists   = errors.New("student already exists")
)

type (
	Repository interface {
		// CreateStudent fails with ErrExists if a student with the same UID exists.
		CreateStudent(ctx context.Context, st Student, exec ...core.DocExecutor) error
		GetStudent(ctx context.Context, uid string, exec ...core.DocExecutor) (Student, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SignIn creates the student record of id on first sign-in, then returns the stored record.
// Existing records are left untouched.
func (svc *Service) SignIn(ctx context.Context, id identity.Identity) (Student, error) {
	if id.UserID == "" {
		return Student{}, identity.ErrUnauthenticated
	}

	st := Student{
		UID:      id.UserID,
		Name:     core.CleanString(id.Name),
		Email:    core.CleanString(id.Email, true /* lower */),
		PhotoURL: id.PhotoURL,
	}
	if st.Name == "" {
		st.Name = DefaultName
	}
	if st.Email == "" {
		st.Email = DefaultEmail
	}

	if err := svc.repo.CreateStudent(ctx, st); err != nil && err != ErrExists {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return svc.repo.GetStudent(ctx, st.UID)
}

func (svc *Service) GetByID(ctx context.Context, uid string) (Student, error) {
	if uid == "" {
		return Student{}, ErrNotFound
	}
	return svc.repo.GetStudent(ctx, uid)
}
