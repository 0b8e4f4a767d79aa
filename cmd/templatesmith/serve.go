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

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joestump/templatesmith/internal/api"
	"github.com/joestump/templatesmith/internal/build"
	"github.com/joestump/templatesmith/internal/config"
	"github.com/joestump/templatesmith/internal/db"
	"github.com/joestump/templatesmith/internal/generate"
	"github.com/joestump/templatesmith/internal/handler"
	"github.com/joestump/templatesmith/internal/llm"
	"github.com/joestump/templatesmith/internal/logging"
	"github.com/joestump/templatesmith/internal/store"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps := api.Deps{
				Provider:   cfg.LLM.Provider,
				Credential: cfg.HasCredential(),
				Logger:     logger,
			}
			if !deps.Credential {
				logger.Warn("no LLM credential configured; generation requests will fail",
					zap.String("provider", cfg.LLM.Provider))
			}

			pipeline, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			deps.Pipeline = pipeline

			if cfg.DB.Driver != "" {
				database, err := openHistory(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = database.Close() }()
				deps.History = store.NewGenerationStore(database)
			}

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           handler.NewRouter(handler.Deps{API: deps, Logger: logger}),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       cfg.HTTP.ReadTimeout,
				WriteTimeout:      cfg.HTTP.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening",
					zap.String("addr", cfg.HTTP.Addr),
					zap.String("version", build.Version),
					zap.String("provider", cfg.LLM.Provider),
					zap.Bool("history", deps.History != nil),
				)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// newPipeline builds the generation pipeline. Without a usable provider the
// pipeline has no generator: requests are still validated and valid ones get 503.
func newPipeline(cfg *config.Config, logger *zap.Logger) (*generate.Pipeline, error) {
	prompts, err := generate.LoadPrompts(cfg.Generation.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	pcfg := generate.Config{
		RequireSampleJSON: cfg.Generation.RequireSampleJSON,
		DummyData:         cfg.Generation.DummyData,
		Timeout:           cfg.Generation.Timeout,
	}

	gen, err := llm.New(cfg)
	switch {
	case err != nil && !cfg.HasCredential():
		logger.Warn("generation disabled", zap.Error(err))
		return generate.NewPipeline(nil, prompts, pcfg, logger), nil
	case err != nil:
		return nil, err
	case gen == nil:
		logger.Warn("no LLM provider configured; generation disabled")
		return generate.NewPipeline(nil, prompts, pcfg, logger), nil
	}

	retrying := llm.NewRetrying(gen, cfg.LLM.Provider, llm.PolicyFromConfig(cfg), logger)
	return generate.NewPipeline(retrying, prompts, pcfg, logger), nil
}

func openHistory(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, cfg.DB.Driver); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}
