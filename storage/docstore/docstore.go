// Package docstore opens the document store selected by the configuration.
package docstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/docstore/inmem"
	"github.com/trezcool/academia/storage/docstore/mongodoc"
	"github.com/trezcool/academia/storage/docstore/pgdoc"
)

// Engines
const (
	EngineMemory   = "memory"
	EngineMongo    = "mongo"
	EnginePostgres = "postgres"
)

var ErrUnknownEngine = errors.New("unknown database engine")

// Open returns the store of conf.Database.Engine. Postgres schemas are migrated on open.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (core.DocumentStore, error) {
	switch conf.Database.Engine {
	case EngineMemory, "":
		return inmem.NewStore(), nil
	case EngineMongo:
		return mongodoc.Open(ctx, conf.Database.URI, conf.Database.Name)
	case EnginePostgres:
		store, err := pgdoc.Open(ctx, conf.Database.URI, logger)
		if err != nil {
			return nil, err
		}
		if err = pgdoc.Migrate(store.DB()); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Wrap(ErrUnknownEngine, conf.Database.Engine)
	}
}
