package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/refill"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-shift-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/mail"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

type serverConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:"0.0.0.0:8431"`
	StoreDriver     string        `envconfig:"STORE_DRIVER" default:"postgres"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`
}

func main() {
	// best effort: a missing .env just means the real environment is used
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

	sugar := lg.Sugar()
	if err := run(sugar); err != nil {
		sugar.Fatalf("%v", err)
	}
	sugar.Info("goodbye")
}

func run(sugar *zap.SugaredLogger) error {
	var srvCfg serverConfig
	if err := envconfig.Process("", &srvCfg); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		return err
	}
	mailCfg, err := mail.ConfigFromEnv()
	if err != nil {
		return err
	}
	refillCfg, err := refill.ConfigFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("starting shift api", "addr", srvCfg.Addr, "store", srvCfg.StoreDriver, "mail", mailCfg.Driver)

	repos, closeStore, err := openStore(ctx, srvCfg.StoreDriver, sugar)
	if err != nil {
		return err
	}
	defer closeStore()

	mailer, err := mail.New(ctx, mailCfg, sugar.Named("mail"))
	if err != nil {
		return fmt.Errorf("mail: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := router.RegisterRoutes(sugar, router.Deps{
		Repos:  repos,
		Mailer: mailer,
		Hasher: identity.BcryptHasher{Cost: 12},
		Auth:   authCfg,
		Refill: refill.Options{
			OperationsAddress: refillCfg.OperationsAddress,
			From:              mailCfg.From,
			SendTimeout:       mailCfg.SendTimeout,
		},
		Registry: reg,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	return nil
}

// openStore returns the repositories for driver and a close func.
func openStore(ctx context.Context, driver string, sugar *zap.SugaredLogger) (store.Repos, func(), error) {
	switch driver {
	case store.DriverMemory:
		sugar.Warn("using in-memory store; data is lost on exit")
		return store.Memory(), func() {}, nil
	case store.DriverPostgres:
		dbCfg, err := database.ConfigFromEnv()
		if err != nil {
			return store.Repos{}, nil, err
		}
		db, err := database.Open(dbCfg)
		if err != nil {
			return store.Repos{}, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return store.Repos{}, nil, err
		}
		return store.Postgres(db), func() {
			if err := db.Close(); err != nil {
				sugar.Warnf("db close failed: %v", err)
			}
		}, nil
	}
	return store.Repos{}, nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
}
