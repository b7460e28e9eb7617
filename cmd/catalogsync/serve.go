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

	"github.com/FranksOps/catalogsync/internal/api"
	"github.com/FranksOps/catalogsync/internal/catalog"
	"github.com/FranksOps/catalogsync/internal/notify"
	"github.com/FranksOps/catalogsync/internal/scheduler"
	"github.com/FranksOps/catalogsync/internal/storage/registry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// statusView is the /status payload.
type statusView struct {
	Scheduler   scheduler.Status `json:"scheduler"`
	LastCycle   *catalog.Report  `json:"last_cycle,omitempty"`
	Subscribers int              `json:"subscribers"`
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Scrape on a schedule and serve the catalog API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().String("listen", "", "API listen address")
	cmd.Flags().Duration("interval", 0, "wait between scrape cycles")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger := a.cfg, a.logger

	store, err := registry.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	hub := notify.NewHub(notify.DefaultSendTimeout, logger)

	syncer, err := newSyncer(cfg, store, hub, logger)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Interval, func(ctx context.Context) error {
		_, err := syncer.RunCycle(ctx)
		return err
	}, logger)
	if err != nil {
		return err
	}

	handler := api.NewRouter(api.Options{
		Store:    store,
		Notifier: hub,
		Live:     hub,
		Status: func() any {
			view := statusView{Scheduler: sched.Status(), Subscribers: hub.Len()}
			if rep, ok := syncer.Last(); ok {
				view.LastCycle = &rep
			}
			return view
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("api listening", "addr", cfg.Listen, "store", registry.Redact(cfg.Store), "url", cfg.StartURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
