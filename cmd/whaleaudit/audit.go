package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/logger"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit all eligible snapshots once and exit",
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
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
	ctx := cmd.Context()
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if store.Len() == 0 {
		log.Info("no snapshots to audit")
		return nil
	}

	provider, err := buildLLM(cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	auditor := buildAuditor(cfg, buildMarketRegistry(cfg.Market), store, nil, provider, log)

	audited := auditor.Sweep(ctx)
	if err := store.Save(ctx); err != nil {
		return fmt.Errorf("persisting history: %w", err)
	}

	stats := audit.Summarize(store.All())
	log.Info("audit pass complete",
		zap.Int("audited_now", audited),
		zap.Int("total", stats.Total),
		zap.Int("wins", stats.Wins),
		zap.Int("losses", stats.Losses),
		zap.Int("win_rate", stats.WinRate))
	return nil
}
