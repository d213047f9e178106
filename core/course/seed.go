package course

import (
	"context"
	_ "embed"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedCatalog []byte

// Catalog returns the sample courses created by Seed.
func Catalog() ([]Course, error) {
	var courses []Course
	if err := yaml.Unmarshal(seedCatalog, &courses); err != nil {
		return nil, errors.Wrap(err, "parsing seed catalog")
	}
	return courses, nil
}

// Seed creates every course of the sample catalog, concurrently. It is not idempotent: each call adds them all again.
func (svc *Service) Seed(ctx context.Context) ([]Course, error) {
	catalog, err := Catalog()
	if err != nil {
		return nil, err
	}

	created := make([]Course, len(catalog))
	g, gctx := errgroup.WithContext(ctx)
	for i, crs := range catalog {
		i, crs := i, crs
		g.Go(func() error {
			c, err := svc.repo.CreateCourse(gctx, crs)
			if err != nil {
				return errors.Wrapf(err, "creating course %q", crs.Name)
			}
			created[i] = c
			return nil
		})
	}
	err = g.Wait()
	svc.InvalidateCache(ctx)
	if err != nil {
		return nil, err
	}
	return created, nil
}
