package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

var _ FeedRepository = (*FeedRepo)(nil)

type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

const feedColumns = `id, feed_url, community_name, community_id, bot_account, enabled, created_at, updated_at`

func (r *FeedRepo) scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.FeedURL, &feed.CommunityName, &feed.CommunityID,
		&feed.BotAccount, &feed.Enabled, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (r *FeedRepo) Get(id string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(`
		SELECT `+feedColumns+` FROM feeds WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *FeedRepo) GetByURL(feedURL string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(`
		SELECT `+feedColumns+` FROM feeds WHERE feed_url = ?
	`, feedURL))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

func (r *FeedRepo) list(where string) ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ` + where + ` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepo) ListAll() ([]Feed, error) {
	return r.list("")
}

func (r *FeedRepo) ListEnabled() ([]Feed, error) {
	return r.list("WHERE enabled = 1")
}

// Upsert registers a feed URL, replacing the community mapping when the
// URL already exists. A feed URL maps to exactly one community at a time.
func (r *FeedRepo) Upsert(feedURL, communityName string, communityID int64, botAccount string) (string, error) {
	existing, err := r.GetByURL(feedURL)
	if err != nil {
		return "", fmt.Errorf("failed to check existing feed: %w", err)
	}

	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE feeds
			SET community_name = ?, community_id = ?, bot_account = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, communityName, communityID, botAccount, existing.ID)
		if err != nil {
			return "", fmt.Errorf("failed to update feed: %w", err)
		}
		return existing.ID, nil
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO feeds (id, feed_url, community_name, community_id, bot_account)
		VALUES (?, ?, ?, ?, ?)
	`, id, feedURL, communityName, communityID, botAccount)
	if err != nil {
		return "", fmt.Errorf("failed to insert feed: %w", err)
	}

	return id, nil
}

func (r *FeedRepo) SetEnabled(id string, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE feeds SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to set feed enabled status: %w", err)
	}
	return nil
}

// Delete removes a feed. Poll state, validators, and seen articles go
// with it via foreign key cascade.
func (r *FeedRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

func (r *FeedRepo) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *FeedRepo) GetEnabledFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds WHERE enabled = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get enabled feed count: %w", err)
	}
	return count, nil
}
