package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
)

type studentRepository struct {
	store core.DocumentStore
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(store core.DocumentStore) *studentRepository {
	return &studentRepository{store: store}
}

func (repo studentRepository) CreateStudent(ctx context.Context, st student.Student, exec ...core.DocExecutor) error {
	flds, err := core.ToFields(st)
	if err != nil {
		return err
	}
	flds["created_at"] = core.ServerTimestamp

	if err = getExec(repo.store, exec).CreateWithID(ctx, core.StudentsCollection, st.UID, flds); err != nil {
		if err == core.ErrDocExists {
			return student.ErrExists
		}
		return errors.Wrap(err, "inserting student")
	}
	return nil
}

func (repo studentRepository) GetStudent(ctx context.Context, uid string, exec ...core.DocExecutor) (student.Student, error) {
	doc, err := getExec(repo.store, exec).Get(ctx, core.StudentsCollection, uid)
	if err != nil {
		if err == core.ErrDocNotFound {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "selecting student")
	}

	var st student.Student
	if err = doc.Decode(&st); err != nil {
		return student.Student{}, errors.Wrap(err, "decoding student")
	}
	st.UID = doc.ID
	return st, nil
}
