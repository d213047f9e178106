package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enrollment"
)

type enrollmentRepository struct {
	store core.DocumentStore
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(store core.DocumentStore) *enrollmentRepository {
	return &enrollmentRepository{store: store}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DocExecutor) (enrollment.Enrollment, error) {
	flds, err := core.ToFields(e)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	flds["timestamp"] = core.ServerTimestamp
	if e.Progress == 0 {
		delete(flds, "progress")
	}

	ex := getExec(repo.store, exec)
	id, err := ex.Create(ctx, core.EnrollmentsCollection, flds)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	doc, err := ex.Get(ctx, core.EnrollmentsCollection, id)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "selecting enrollment")
	}
	if err = doc.Decode(&e); err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "decoding enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter, exec ...core.DocExecutor) ([]enrollment.Enrollment, error) {
	f := core.Filter{}
	if filter.StudentID != "" {
		f["student_id"] = filter.StudentID
	}
	if filter.CourseID != "" {
		f["course_id"] = filter.CourseID
	}

	docs, err := getExec(repo.store, exec).Query(ctx, core.EnrollmentsCollection, f)
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(docs))
	for _, doc := range docs {
		var e enrollment.Enrollment
		if err = doc.Decode(&e); err != nil {
			return nil, errors.Wrap(err, "decoding enrollment")
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}
