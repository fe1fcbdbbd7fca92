package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jcousins/clueroom/internal/notify"
	"github.com/jcousins/clueroom/internal/treeserver"
)

func main() {
	_ = godotenv.Load()
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func serve(parent context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	var store treeserver.Store
	if cfg.databaseDSN != "" {
		gs, err := treeserver.OpenGormStore(cfg.databaseDSN)
		if err != nil {
			return err
		}
		store = gs
		log.Info("using postgres store")
	} else {
		store = treeserver.NewMemStore()
		log.Info("using in-memory store")
	}

	hub, err := treeserver.NewHub(ctx, store, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.addr(),
		Handler: treeserver.Routes(hub, log),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	sweeper := &treeserver.Sweeper{
		Hub:      hub,
		Interval: cfg.sweepInterval,
		Grace:    cfg.sweepGrace,
		Log:      log,
	}
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.pushURL != "" {
		worker := notify.NewWorker(hub, &notify.HTTPSender{URL: cfg.pushURL}, cfg.maxPlayers, log)
		g.Go(func() error {
			err := worker.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
