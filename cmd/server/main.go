package main

import (
	"context"
	"fmt"

	"github.com/binarjoin/syncengine/internal/config"
	"github.com/binarjoin/syncengine/internal/logger"
	"github.com/binarjoin/syncengine/internal/server"
	"github.com/binarjoin/syncengine/migrations"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncengine-server")
	cfg, err := config.GetServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	db, err := server.NewConnectPostgres(context.Background(), cfg.Server.DatabaseDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating storages")
	}
	defer db.Close()

	if err = migrations.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("error running migrations")
	}

	auth := server.NewAuthService(
		server.NewUserRepository(db, log),
		cfg.Server.TokenSignKey,
		cfg.Server.TokenIssuer,
		cfg.Server.TokenDuration,
		log,
	)
	handler := server.NewHandler(auth, server.NewRecordRepository(db, log), log)

	if err = handler.Run(cfg.Server.HTTPAddress); err != nil {
		log.Fatal().Err(err).Msg("server run error")
	}
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
