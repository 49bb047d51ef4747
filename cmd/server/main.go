package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookrel/backend/internal/bootstrap"
	"github.com/bookrel/backend/internal/metrics"
	"github.com/bookrel/backend/internal/server"
	mid "github.com/bookrel/backend/internal/server/middleware"
	"github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/graph"
	"github.com/bookrel/backend/pkg/logger"
	"github.com/bookrel/backend/pkg/query"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := bootstrap.Store(ctx)
	if err != nil {
		logger.Fatal("Failed to open graph store", "err", err)
	}
	defer s.Close()

	extractor, err := bootstrap.Extractor(util.GetEnvList("KNOWN_NAMES"))
	if err != nil {
		logger.Fatal("Failed to create extractor", "err", err)
	}

	archiver, publisher, closer, err := bootstrap.SideEffects(ctx)
	if err != nil {
		logger.Fatal("Failed to set up side effects", "err", err)
	}
	defer closer.Close()

	gc, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Store:     s,
		Extractor: extractor,
		URLLoader: bootstrap.URLLoader(),
		Archiver:  archiver,
		Publisher: publisher,
	})
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}

	svc := query.NewService(s, gc, query.WithTracer(metrics.QueryTracer{}))

	e := server.New(&mid.App{Query: svc}, server.Config{
		CORSOrigins: util.GetEnvList("CORS_ORIGINS"),
		BodyLimit:   util.GetEnvString("BODY_LIMIT", "64M"),
	})
	if err := server.Run(ctx, e, util.GetEnv("PORT")); err != nil {
		logger.Fatal("Failed shutting down server", "err", err)
	}
}
