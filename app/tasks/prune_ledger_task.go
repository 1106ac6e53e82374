package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedhook/lemmy-rssbot/app/database"
)

// PruneLedgerTask bounds dedup ledger growth. The retention horizon is
// configured well above any feed's latest-N churn window so pruning
// never resurrects an article still visible in a feed.
type PruneLedgerTask struct {
	Task
	ledgerRepo database.LedgerRepository
	retention  time.Duration
}

func NewPruneLedgerTask(ledgerRepo database.LedgerRepository, retention time.Duration) *PruneLedgerTask {
	return &PruneLedgerTask{
		Task:       NewTask(TaskTypePruneLedger, ""),
		ledgerRepo: ledgerRepo,
		retention:  retention,
	}
}

func (t *PruneLedgerTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := time.Now().UTC().Add(-t.retention)
	removed, err := t.ledgerRepo.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune ledger: %w", err)
	}

	slog.Info("Task completed",
		"type", "PruneLedger",
		"duration", t.GetDuration(),
		"removed", removed,
		"cutoff", cutoff)

	return nil
}
