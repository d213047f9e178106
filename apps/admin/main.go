package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/like"
	eventsvc "github.com/trezcool/academia/services/events"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/cache"
	"github.com/trezcool/academia/storage/docstore"
	docrepos "github.com/trezcool/academia/storage/docstore/repos"
)

var logger core.Logger

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	rlogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rlogger.Enable(!conf.Debug)
	logger = rlogger

	errAndDie(checkEngine(conf.Database.Engine))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := docstore.Open(ctx, conf, logger)
	cancel()
	errAndDie(err)

	// start CLI
	courseRepo := docrepos.NewCourseRepository(store)
	courseSvc := course.NewService(courseRepo, catalogCache(conf), logger)
	cli := commandLine{
		db:        sqlDB(store),
		courseSvc: courseSvc,
		likeSvc:   like.NewService(store, docrepos.NewLikeRepository(store), courseRepo, courseSvc, eventsvc.NewLogPublisher(logger), logger),
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	if cerr := store.Close(); cerr != nil {
		logger.Error("closing store", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("\nerror: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func sqlDB(store core.DocumentStore) *sql.DB {
	if s, ok := store.(interface{ DB() *sql.DB }); ok {
		return s.DB()
	}
	return nil
}

// catalogCache lets seeding invalidate the catalog cached by the API.
func catalogCache(conf *core.Config) course.Cache {
	if conf.Redis.Address == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := cache.NewClient(ctx, conf.Redis.Address)
	if err != nil {
		logger.Warn("catalog cache unavailable: "+err.Error(), err)
		return nil
	}
	return cache.NewCatalogCache(client, conf.Redis.CatalogTTL)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
