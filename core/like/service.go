package like

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/identity"
)

var (
	// errors
	ErrAlreadyLiked = errors.New("like already exists")
	ErrNotLiked     = errors.New("like does not exist")
	ErrMissingIDs   = errors.New("missing user or course ID")
	ErrInvalidIDs   = errors.New("user and course IDs must not contain " + keySep)
)

type (
	Repository interface {
		// CreateLike fails with ErrAlreadyLiked if the ledger already holds l.ID.
		CreateLike(ctx context.Context, l Like, exec ...core.DocExecutor) error
		// DeleteLike fails with ErrNotLiked if the ledger does not hold key.
		DeleteLike(ctx context.Context, key string, exec ...core.DocExecutor) error
		GetLike(ctx context.Context, key string, exec ...core.DocExecutor) (Like, error)
		CountLikes(ctx context.Context, courseID string, exec ...core.DocExecutor) (int64, error)
		WatchLike(ctx context.Context, key string) (*Subscription, error)

		// IncrementCourseLikes atomically adds delta to the course counter; course.ErrNotFound if there is no such course.
		IncrementCourseLikes(ctx context.Context, courseID string, delta int64, exec ...core.DocExecutor) error
		GetCourseCounter(ctx context.Context, courseID string, exec ...core.DocExecutor) (Counter, error)
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		courses course.Repository
		catalog *course.Service // optional; its cached list carries the counters
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	courses course.Repository,
	catalog *course.Service,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{tx: tx, repo: repo, courses: courses, catalog: catalog, events: events, logger: logger}
}

func (svc *Service) invalidateCatalog(ctx context.Context) {
	if svc.catalog != nil {
		svc.catalog.InvalidateCache(ctx)
	}
}

func check(sess identity.Session, courseID string) error {
	if err := identity.Require(sess); err != nil {
		return err
	}
	if courseID == "" {
		return core.NewValidationError(ErrMissingIDs)
	}
	// Key would be ambiguous
	if strings.Contains(sess.UserID, keySep) || strings.Contains(courseID, keySep) {
		return core.NewValidationError(ErrInvalidIDs)
	}
	return nil
}

// Like records that the session user likes courseID and increments its counter, both in one transaction.
func (svc *Service) Like(ctx context.Context, sess identity.Session, courseID string) error {
	if err := check(sess, courseID); err != nil {
		return err
	}

	l := Like{ID: Key(sess.UserID, courseID), UserID: sess.UserID, CourseID: courseID}
	err := svc.tx.RunInTransaction(ctx, func(ctx context.Context, tx core.DocExecutor) error {
		if err := svc.repo.CreateLike(ctx, l, tx); err != nil {
			return err
		}
		return svc.repo.IncrementCourseLikes(ctx, courseID, 1, tx)
	})
	if err != nil {
		return errors.Wrap(err, "liking course")
	}
	svc.invalidateCatalog(ctx)

	core.PublishEvent(ctx, svc.events, svc.logger, core.EventLikeAdded, l)
	return nil
}

// Unlike removes the session user's like of courseID and decrements its counter, both in one transaction.
func (svc *Service) Unlike(ctx context.Context, sess identity.Session, courseID string) error {
	if err := check(sess, courseID); err != nil {
		return err
	}

	l := Like{ID: Key(sess.UserID, courseID), UserID: sess.UserID, CourseID: courseID}
	err := svc.tx.RunInTransaction(ctx, func(ctx context.Context, tx core.DocExecutor) error {
		if err := svc.repo.DeleteLike(ctx, l.ID, tx); err != nil {
			return err
		}
		return svc.repo.IncrementCourseLikes(ctx, courseID, -1, tx)
	})
	if err != nil {
		return errors.Wrap(err, "unliking course")
	}
	svc.invalidateCatalog(ctx)

	core.PublishEvent(ctx, svc.events, svc.logger, core.EventLikeRemoved, l)
	return nil
}

func (svc *Service) IsLiked(ctx context.Context, sess identity.Session, courseID string) (bool, error) {
	if err := check(sess, courseID); err != nil {
		return false, err
	}
	if _, err := svc.repo.GetLike(ctx, Key(sess.UserID, courseID)); err != nil {
		if err == ErrNotLiked {
			return false, nil
		}
		return false, errors.Wrap(err, "getting like")
	}
	return true, nil
}

// WatchLiked follows whether the session user likes courseID.
func (svc *Service) WatchLiked(ctx context.Context, sess identity.Session, courseID string) (*Subscription, error) {
	if err := check(sess, courseID); err != nil {
		return nil, err
	}
	return svc.repo.WatchLike(ctx, Key(sess.UserID, courseID))
}

// Reconcile brings every course counter back to its base plus the number of ledger records of the course.
// It returns how many counters were corrected.
func (svc *Service) Reconcile(ctx context.Context) (int, error) {
	courses, err := svc.courses.QueryCourses(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying courses")
	}

	var fixed int
	for _, crs := range courses {
		var drift int64
		err = svc.tx.RunInTransaction(ctx, func(ctx context.Context, tx core.DocExecutor) error {
			counter, err := svc.repo.GetCourseCounter(ctx, crs.ID, tx)
			if err != nil {
				return err
			}
			n, err := svc.repo.CountLikes(ctx, crs.ID, tx)
			if err != nil {
				return err
			}
			if drift = counter.Base + n - counter.Likes; drift == 0 {
				return nil
			}
			return svc.repo.IncrementCourseLikes(ctx, crs.ID, drift, tx)
		})
		if err != nil {
			return fixed, errors.Wrapf(err, "reconciling course %s", crs.ID)
		}
		if drift != 0 {
			fixed++
			svc.logger.Warn(fmt.Sprintf("like counter of course %s corrected by %d", crs.ID, drift))
		}
	}
	if fixed > 0 {
		svc.invalidateCatalog(ctx)
	}
	return fixed, nil
}
