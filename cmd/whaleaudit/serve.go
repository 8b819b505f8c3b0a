package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/analysis"
	"github.com/tranmd/whaleaudit/internal/api"
	handler "github.com/tranmd/whaleaudit/internal/api/handler/api"
	"github.com/tranmd/whaleaudit/internal/api/job"
	"github.com/tranmd/whaleaudit/internal/app"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/logger"
	"github.com/tranmd/whaleaudit/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the whaleaudit server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	backend, err := buildBackend(cfg.History.Archive)
	if err != nil {
		return fmt.Errorf("creating archive backend: %w", err)
	}

	store := history.NewStore(history.Options{
		MaxEntries: cfg.History.MaxEntries,
		MaxAge:     cfg.History.MaxAge,
		Backend:    backend,
	})
	if err := store.Load(cmd.Context()); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	log.Info("history loaded", zap.Int("snapshots", store.Len()))

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		reg.SetHistorySize(store.Len())
	}

	candles := buildMarketRegistry(cfg.Market)
	provider, err := buildLLM(cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	auditor := buildAuditor(cfg, candles, store, reg, provider, log)

	jobTTL := time.Duration(cfg.Server.JobTTLHours) * time.Hour
	jobs := job.NewStore(cfg.Server.MaxJobs, jobTTL)

	var oracle *analysis.Oracle
	if provider != nil {
		oracle = analysis.NewOracle(provider, log)
	}

	server := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, api.Handlers{
		Analyses: handler.NewAnalysisHandler(jobs, oracle, candles, store, reg, log),
		Audits:   handler.NewAuditHandler(jobs, auditor),
		History:  handler.NewHistoryHandler(store),
	}, reg, log)

	orchestrator := app.New(app.Options{
		Store:         store,
		Auditor:       auditor,
		Jobs:          jobs,
		Metrics:       reg,
		SweepInterval: cfg.Audit.SweepInterval,
		AutoSweep:     cfg.Audit.AutoSweep,
	}, log)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	go func() {
		if err := orchestrator.Start(appCtx); err != nil && err != context.Canceled {
			log.Error("orchestrator error", zap.Error(err))
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancelApp()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Save(ctx); err != nil {
		log.Warn("persisting history on shutdown failed", zap.Error(err))
	}
	return server.Shutdown(ctx)
}
