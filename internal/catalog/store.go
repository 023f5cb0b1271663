// Package catalog loads channel snapshots from PostgreSQL or JSON files and
// keeps a ChannelSearch index in sync with them.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    country     TEXT NOT NULL DEFAULT '',
    language    TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT '',
    metadata    JSONB,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertChannel = `
INSERT INTO channels (id, name, category, country, language, description, source, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, NOW())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    category = EXCLUDED.category,
    country = EXCLUDED.country,
    language = EXCLUDED.language,
    description = EXCLUDED.description,
    source = EXCLUDED.source,
    metadata = EXCLUDED.metadata,
    updated_at = NOW()`

// Store reads and writes the channel catalog in PostgreSQL.
//
// It requires a `channels` table, created by EnsureSchema:
//
//	CREATE TABLE channels (
//	    id          TEXT PRIMARY KEY,
//	    name, category, country, language, description, source TEXT,
//	    metadata    JSONB,
//	    updated_at  TIMESTAMPTZ
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store on an open connection pool.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog-store"),
	}
}

// EnsureSchema creates the channels table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating channels table: %w", err)
	}
	return nil
}

// LoadChannels returns every channel ordered by ID.
func (s *Store) LoadChannels(ctx context.Context) ([]channelsearch.Channel, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, category, country, language, description, source, metadata
		 FROM channels ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	channels := make([]channelsearch.Channel, 0)
	for rows.Next() {
		var ch channelsearch.Channel
		var metadata []byte
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Category, &ch.Country,
			&ch.Language, &ch.Description, &ch.Source, &metadata); err != nil {
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		ch.Metadata, err = decodeMetadata(metadata)
		if err != nil {
			s.logger.Warn("ignoring corrupt channel metadata", "channel_id", ch.ID, "error", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channel rows: %w", err)
	}
	s.logger.Debug("channels loaded", "count", len(channels))
	return channels, nil
}

// UpsertChannels inserts or updates channels in one transaction and returns
// the number written.
func (s *Store) UpsertChannels(ctx context.Context, channels []channelsearch.Channel) (int, error) {
	written := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertChannel)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, ch := range channels {
			if ch.ID == "" {
				return fmt.Errorf("channel %q has no id", ch.Name)
			}
			metadata, err := encodeMetadata(ch.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", ch.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, ch.ID, ch.Name, ch.Category, ch.Country,
				ch.Language, ch.Description, ch.Source, metadata); err != nil {
				return fmt.Errorf("upserting channel %s: %w", ch.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("channels upserted", "count", written)
	return written, nil
}

// Count returns the number of stored channels.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting channels: %w", err)
	}
	return n, nil
}

func encodeMetadata(m *channelsearch.Metadata) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMetadata(data []byte) (*channelsearch.Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m channelsearch.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
