package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/binarjoin/syncengine/internal/adapter"
	"github.com/binarjoin/syncengine/internal/backoff"
	"github.com/binarjoin/syncengine/internal/config"
	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/queue"
	"github.com/binarjoin/syncengine/internal/service"
	"github.com/binarjoin/syncengine/internal/store"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewFileLogger("syncengine-client")
	cfg, err := config.GetEngineConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storages, err := store.NewClientStorages(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}
	defer storages.Close()

	tokens := adapter.NewCredentialTokenProvider(adapter.CredentialsConfig{
		BaseURL:  cfg.API.BaseURL,
		Login:    cfg.API.Login,
		Password: cfg.API.Password,
		Timeout:  cfg.API.RequestTimeout,
	}, log)

	serverAdapter := adapter.NewHTTPServerAdapter(adapter.HTTPClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.RequestTimeout,
	}, tokens, log)

	queueManager := queue.NewManager(
		storages.Records,
		queue.NewRepository(storages.Backend()),
		cfg.Sync.MaxRetries,
		log,
	)

	coordinator := service.NewSyncCoordinator(
		storages.Records,
		queueManager,
		serverAdapter,
		tokens,
		storages.Metadata,
		service.Settings{
			BatchSize:           cfg.Sync.BatchSize,
			Cycle:               backoff.New(cfg.Sync.InitialBackoff, cfg.Sync.BackoffCap),
			PriorityCollections: cfg.Sync.PriorityCollections,
		},
		log,
	)

	if err = coordinator.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("bootstrap sync engine")
	}

	if !tokens.Refresh(ctx) {
		log.Warn().Msg("initial authentication failed, engine starts unsynchronized")
	} else if err = coordinator.SyncNow(ctx); err != nil {
		log.Warn().Err(err).Msg("initial sync failed")
	}

	job := service.NewSyncJob(coordinator)
	job.Start(ctx, cfg.Sync.Interval)

	log.Info().Dur("interval", cfg.Sync.Interval).Msg("sync engine running")
	<-ctx.Done()

	job.Stop()
	log.Info().Msg("sync engine stopped")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
