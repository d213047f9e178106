package course

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound = errors.New("course not found")
)

const (
	catalogKey = "catalog"

	// bounds the shared catalog read, which outlives the callers that requested it
	catalogReadTimeout = 10 * time.Second
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DocExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DocExecutor) (Course, error)
		QueryCourses(ctx context.Context, exec ...core.DocExecutor) ([]Course, error)
		WatchCourse(ctx context.Context, id string) (*Subscription, error)
	}

	// Cache keeps a copy of the catalog for a short while.
	Cache interface {
		GetCatalog(ctx context.Context) ([]Course, bool, error)
		SetCatalog(ctx context.Context, courses []Course) error
		InvalidateCatalog(ctx context.Context) error
	}

	Service struct {
		repo   Repository
		cache  Cache // optional
		logger core.Logger
		group  singleflight.Group
	}
)

func NewService(repo Repository, cache Cache, logger core.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	if id == "" {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourse(ctx, id)
}

// Query returns a snapshot of the catalog. Cache misses happening at the same time share one store read.
func (svc *Service) Query(ctx context.Context) ([]Course, error) {
	if svc.cache == nil {
		return svc.repo.QueryCourses(ctx)
	}

	if courses, ok, err := svc.cache.GetCatalog(ctx); err != nil {
		svc.logger.Warn(fmt.Sprintf("reading catalog cache: %v", err), err)
	} else if ok {
		return courses, nil
	}

	// the read is shared: a caller going away must not fail the others
	resC := svc.group.DoChan(catalogKey, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogReadTimeout)
		defer cancel()

		courses, err := svc.repo.QueryCourses(readCtx)
		if err != nil {
			return nil, err
		}
		if err = svc.cache.SetCatalog(readCtx, courses); err != nil {
			svc.logger.Warn(fmt.Sprintf("writing catalog cache: %v", err), err)
		}
		return courses, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resC:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Course), nil
	}
}

// Watch follows a course (likes included) until ctx is done or the subscription is closed.
func (svc *Service) Watch(ctx context.Context, id string) (*Subscription, error) {
	if _, err := svc.Get(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.WatchCourse(ctx, id)
}

// InvalidateCache drops the cached catalog, if any. Failures are only logged: the cache expires anyway.
func (svc *Service) InvalidateCache(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.InvalidateCatalog(ctx); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating catalog cache: %v", err), err)
	}
}
