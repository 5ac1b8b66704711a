package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger config: %v\n", err)
		os.Exit(1)
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	a := &app{logger: lg.Sugar(), open: openPostgres}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func openPostgres(ctx context.Context) (store.Repos, *sqlx.DB, error) {
	cfg, err := database.ConfigFromEnv()
	if err != nil {
		return store.Repos{}, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return store.Repos{}, nil, fmt.Errorf("db connect: %w", err)
	}
	return store.Postgres(db), db, nil
}
