package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/veille/internal/analyze"
	"github.com/dgallion1/veille/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local capture listener for the browser extension",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := analyze.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		// Without tracker credentials captures are still processed, just not
		// recorded as issues.
		var issues api.IssueCreator
		if gh, err := newTracker(); err != nil {
			logger.Warn("capture issues disabled", "error", err)
		} else {
			issues = gh
		}

		orch := newOrchestrator(nil, a)
		srv := api.NewServer(orch, issues, a, logger, cfg)

		httpServer := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.AnalysisTimeout + cfg.FetchTimeout + 30*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting capture listener", "addr", cfg.Addr(), "model", a.Model())
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
