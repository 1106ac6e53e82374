package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ StateRepository = (*StateRepo)(nil)

// StateRepo persists per-feed polling state and conditional-fetch
// validators. Both live 1:1 with a feed and are deleted with it.
type StateRepo struct {
	db *DB
}

func NewStateRepository(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

func (r *StateRepo) GetState(feedID string) (*PollState, error) {
	var state PollState
	var intervalSec, jitterSec int64
	err := r.db.QueryRow(`
		SELECT feed_id, interval_seconds, jitter_seconds, last_poll_at, last_success_at,
		       no_change_count, error_count
		FROM poll_states
		WHERE feed_id = ?
	`, feedID).Scan(
		&state.FeedID, &intervalSec, &jitterSec, &state.LastPollAt, &state.LastSuccessAt,
		&state.NoChangeCount, &state.ErrorCount,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll state: %w", err)
	}

	state.Interval = time.Duration(intervalSec) * time.Second
	state.Jitter = time.Duration(jitterSec) * time.Second
	return &state, nil
}

func (r *StateRepo) SaveState(state *PollState) error {
	_, err := r.db.Exec(`
		INSERT INTO poll_states (feed_id, interval_seconds, jitter_seconds, last_poll_at,
		                         last_success_at, no_change_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id) DO UPDATE SET
			interval_seconds = excluded.interval_seconds,
			jitter_seconds = excluded.jitter_seconds,
			last_poll_at = excluded.last_poll_at,
			last_success_at = excluded.last_success_at,
			no_change_count = excluded.no_change_count,
			error_count = excluded.error_count
	`, state.FeedID, int64(state.Interval/time.Second), int64(state.Jitter/time.Second),
		state.LastPollAt, state.LastSuccessAt, state.NoChangeCount, state.ErrorCount)

	if err != nil {
		return fmt.Errorf("failed to save poll state: %w", err)
	}
	return nil
}

func (r *StateRepo) GetValidators(feedID string) (*FetchValidators, error) {
	var validators FetchValidators
	err := r.db.QueryRow(`
		SELECT feed_id, etag, last_modified, supported
		FROM fetch_validators
		WHERE feed_id = ?
	`, feedID).Scan(
		&validators.FeedID, &validators.ETag, &validators.LastModified, &validators.Supported,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch validators: %w", err)
	}

	return &validators, nil
}

func (r *StateRepo) SaveValidators(validators *FetchValidators) error {
	_, err := r.db.Exec(`
		INSERT INTO fetch_validators (feed_id, etag, last_modified, supported)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feed_id) DO UPDATE SET
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			supported = excluded.supported
	`, validators.FeedID, validators.ETag, validators.LastModified, validators.Supported)

	if err != nil {
		return fmt.Errorf("failed to save fetch validators: %w", err)
	}
	return nil
}
