package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	store core.DocumentStore
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(store core.DocumentStore) *courseRepository {
	return &courseRepository{store: store}
}

func (repo courseRepository) decode(doc core.Document) (course.Course, error) {
	var crs course.Course
	if err := doc.Decode(&crs); err != nil {
		return course.Course{}, errors.Wrap(err, "decoding course")
	}
	return crs, nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DocExecutor) (course.Course, error) {
	flds, err := core.ToFields(crs)
	if err != nil {
		return course.Course{}, err
	}
	flds[baseLikesField] = crs.Likes

	id, err := getExec(repo.store, exec).Create(ctx, core.CoursesCollection, flds)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	crs.ID = id
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DocExecutor) (course.Course, error) {
	doc, err := getExec(repo.store, exec).Get(ctx, core.CoursesCollection, id)
	if err != nil {
		if err == core.ErrDocNotFound {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return repo.decode(doc)
}

func (repo courseRepository) QueryCourses(ctx context.Context, exec ...core.DocExecutor) ([]course.Course, error) {
	docs, err := getExec(repo.store, exec).Query(ctx, core.CoursesCollection, nil)
	if err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(docs))
	for _, doc := range docs {
		crs, err := repo.decode(doc)
		if err != nil {
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func (repo courseRepository) WatchCourse(ctx context.Context, id string) (*course.Subscription, error) {
	sub, err := repo.store.Watch(ctx, core.CoursesCollection, id)
	if err != nil {
		return nil, errors.Wrap(err, "watching course")
	}

	out := make(chan course.Course, 1)
	stop := follow(sub,
		func(snap core.Snapshot) {
			if !snap.Exists {
				return
			}
			crs, err := repo.decode(snap.Document)
			if err != nil {
				return
			}
			select {
			case <-out: // latest wins
			default:
			}
			out <- crs
		},
		func() {
			select {
			case <-out:
			default:
			}
			close(out)
		},
	)
	return course.NewSubscription(out, stop), nil
}
