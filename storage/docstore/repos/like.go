package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/like"
)

type likeRepository struct {
	store core.DocumentStore
}

var _ like.Repository = (*likeRepository)(nil) // interface compliance check

func NewLikeRepository(store core.DocumentStore) *likeRepository {
	return &likeRepository{store: store}
}

func (repo likeRepository) CreateLike(ctx context.Context, l like.Like, exec ...core.DocExecutor) error {
	flds := core.Fields{
		"user_id":    l.UserID,
		"course_id":  l.CourseID,
		"created_at": core.ServerTimestamp,
	}
	if err := getExec(repo.store, exec).CreateWithID(ctx, core.LikesCollection, l.ID, flds); err != nil {
		if err == core.ErrDocExists {
			return like.ErrAlreadyLiked
		}
		return errors.Wrap(err, "inserting like")
	}
	return nil
}

func (repo likeRepository) DeleteLike(ctx context.Context, key string, exec ...core.DocExecutor) error {
	if err := getExec(repo.store, exec).Delete(ctx, core.LikesCollection, key); err != nil {
		if err == core.ErrDocNotFound {
			return like.ErrNotLiked
		}
		return errors.Wrap(err, "deleting like")
	}
	return nil
}

func (repo likeRepository) GetLike(ctx context.Context, key string, exec ...core.DocExecutor) (like.Like, error) {
	doc, err := getExec(repo.store, exec).Get(ctx, core.LikesCollection, key)
	if err != nil {
		if err == core.ErrDocNotFound {
			return like.Like{}, like.ErrNotLiked
		}
		return like.Like{}, errors.Wrap(err, "selecting like")
	}

	var l like.Like
	if err = doc.Decode(&l); err != nil {
		return like.Like{}, errors.Wrap(err, "decoding like")
	}
	return l, nil
}

func (repo likeRepository) CountLikes(ctx context.Context, courseID string, exec ...core.DocExecutor) (int64, error) {
	docs, err := getExec(repo.store, exec).Query(ctx, core.LikesCollection, core.Filter{"course_id": courseID})
	if err != nil {
		return 0, errors.Wrap(err, "selecting likes")
	}
	return int64(len(docs)), nil
}

func (repo likeRepository) WatchLike(ctx context.Context, key string) (*like.Subscription, error) {
	sub, err := repo.store.Watch(ctx, core.LikesCollection, key)
	if err != nil {
		return nil, errors.Wrap(err, "watching like")
	}

	out := make(chan bool, 1)
	stop := follow(sub,
		func(snap core.Snapshot) {
			select {
			case <-out: // latest wins
			default:
			}
			out <- snap.Exists
		},
		func() {
			select {
			case <-out:
			default:
			}
			close(out)
		},
	)
	return like.NewSubscription(out, stop), nil
}

func (repo likeRepository) IncrementCourseLikes(ctx context.Context, courseID string, delta int64, exec ...core.DocExecutor) error {
	if err := getExec(repo.store, exec).Increment(ctx, core.CoursesCollection, courseID, "likes", delta); err != nil {
		if err == core.ErrDocNotFound {
			return course.ErrNotFound
		}
		return errors.Wrap(err, "incrementing course likes")
	}
	return nil
}

func (repo likeRepository) GetCourseCounter(ctx context.Context, courseID string, exec ...core.DocExecutor) (like.Counter, error) {
	doc, err := getExec(repo.store, exec).Get(ctx, core.CoursesCollection, courseID)
	if err != nil {
		if err == core.ErrDocNotFound {
			return like.Counter{}, course.ErrNotFound
		}
		return like.Counter{}, errors.Wrap(err, "selecting course")
	}
	likes, _ := core.ToInt64(doc.Fields["likes"])
	base, _ := core.ToInt64(doc.Fields[baseLikesField])
	return like.Counter{Likes: likes, Base: base}, nil
}
