package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive and verify PayPal notifications over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, cfg, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(ctx, rt, cfg.HTTP)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}

func newServer(rt *runtime, cfg httpConfig) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Mount("/", rt.handler().Routes())
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// serve runs the delivery worker and the HTTP server until ctx is done.
func serve(ctx context.Context, rt *runtime, cfg httpConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := newServer(rt, cfg)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := rt.worker.Run(ctx); err != nil {
			rt.logger.Error("notification worker stopped", "error", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		rt.logger.Info("http listening", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
		close(serveErr)
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn("http shutdown failed", "error", err)
	}
	<-workerDone
	rt.logger.Info("donationsd shutdown complete")
	return <-serveErr
}
