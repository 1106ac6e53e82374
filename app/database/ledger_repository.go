package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo is the dedup ledger: one row per (feed, article identity).
// Rows are inserted before the post call commits, so an article is
// announced at most once even if the process dies mid-cycle.
type LedgerRepo struct {
	db *DB
}

func NewLedgerRepository(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// IsNew reports whether the identity key has not been recorded for the
// feed. Pure lookup, never mutates.
func (r *LedgerRepo) IsNew(feedID, identityKey string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM seen_articles WHERE feed_id = ? AND identity_key = ? LIMIT 1
	`, feedID, identityKey).Scan(&one)

	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check seen article: %w", err)
	}
	return false, nil
}

// MarkSeen records the identity key. Idempotent: marking the same
// (feed, key) twice leaves exactly one row with the original timestamp.
func (r *LedgerRepo) MarkSeen(feedID, identityKey string, firstSeen time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO seen_articles (feed_id, identity_key, first_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (feed_id, identity_key) DO NOTHING
	`, feedID, identityKey, firstSeen)

	if err != nil {
		return fmt.Errorf("failed to mark article seen: %w", err)
	}
	return nil
}

// Prune removes ledger rows first seen before the cutoff. The retention
// horizon must exceed any feed's latest-N churn window, otherwise old
// articles still visible in the feed would be re-announced.
func (r *LedgerRepo) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM seen_articles WHERE first_seen_at < ?
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune seen articles: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	return removed, nil
}

func (r *LedgerRepo) GetSeenCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM seen_articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get seen article count: %w", err)
	}
	return count, nil
}
