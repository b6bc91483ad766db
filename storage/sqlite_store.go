package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

var sqliteSchema = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	`CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS details (
	channel_id     TEXT PRIMARY KEY REFERENCES channels(id) ON DELETE CASCADE,
	email          TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	email_revealed INTEGER NOT NULL DEFAULT 0,
	warnings       TEXT NOT NULL DEFAULT '[]',
	scraped_at     TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS sync_states (
	channel_id      TEXT PRIMARY KEY REFERENCES channels(id) ON DELETE CASCADE,
	status          TEXT NOT NULL,
	last_sync_at    TEXT NOT NULL DEFAULT '',
	sync_started_at TEXT NOT NULL DEFAULT '',
	last_error      TEXT NOT NULL DEFAULT '',
	links_found     INTEGER NOT NULL DEFAULT 0,
	pages_scrolled  INTEGER NOT NULL DEFAULT 0,
	incomplete      INTEGER NOT NULL DEFAULT 0,
	links_path      TEXT NOT NULL DEFAULT ''
)`,
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &StorageError{Op: "open", Entity: "sqlite", ID: path, Err: err}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Entity: "sqlite", ID: path, Err: err}
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, &StorageError{Op: "init", Entity: "sqlite", ID: path, Err: err}
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- ChannelStore implementation ---

func (s *SQLiteStore) CreateChannel(ctx context.Context, channel *Channel) error {
	if channel.Key == "" {
		return &StorageError{Op: "create", Entity: "channel", Err: ErrInvalidInput}
	}
	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}
	if _, err := s.GetChannelByKey(ctx, channel.Key); err == nil {
		return &StorageError{Op: "create", Entity: "channel", ID: channel.Key, Err: ErrAlreadyExists}
	}

	now := time.Now()
	channel.CreatedAt = now
	channel.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, key, url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		channel.ID, channel.Key, channel.URL, formatTime(now), formatTime(now))
	if err != nil {
		return &StorageError{Op: "create", Entity: "channel", ID: channel.ID, Err: err}
	}
	return nil
}

func (s *SQLiteStore) scanChannel(row *sql.Row, id string) (*Channel, error) {
	var (
		c                Channel
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.Key, &c.URL, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: err}
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

func (s *SQLiteStore) GetChannel(ctx context.Context, id string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, url, created_at, updated_at FROM channels WHERE id = ?`, id)
	return s.scanChannel(row, id)
}

func (s *SQLiteStore) GetChannelByKey(ctx context.Context, key string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, url, created_at, updated_at FROM channels WHERE key = ?`, key)
	return s.scanChannel(row, key)
}

func (s *SQLiteStore) UpdateChannel(ctx context.Context, channel *Channel) error {
	channel.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET key = ?, url = ?, updated_at = ? WHERE id = ?`,
		channel.Key, channel.URL, formatTime(channel.UpdatedAt), channel.ID)
	if err != nil {
		return &StorageError{Op: "update", Entity: "channel", ID: channel.ID, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "update", Entity: "channel", ID: channel.ID, Err: ErrNotFound}
	}
	return nil
}

func (s *SQLiteStore) DeleteChannel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete", Entity: "channel", ID: id, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "delete", Entity: "channel", ID: id, Err: ErrNotFound}
	}
	return nil
}

func (s *SQLiteStore) ListChannels(ctx context.Context) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, url, created_at, updated_at FROM channels ORDER BY key`)
	if err != nil {
		return nil, &StorageError{Op: "list", Entity: "channel", Err: err}
	}
	defer rows.Close()

	var out []*Channel
	for rows.Next() {
		var (
			c                Channel
			created, updated string
		)
		if err := rows.Scan(&c.ID, &c.Key, &c.URL, &created, &updated); err != nil {
			return nil, &StorageError{Op: "list", Entity: "channel", Err: err}
		}
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Entity: "channel", Err: err}
	}
	return out, nil
}

// --- DetailsStore implementation ---

func (s *SQLiteStore) SaveDetails(ctx context.Context, d *ContactDetails) error {
	if _, err := s.GetChannel(ctx, d.ChannelID); err != nil {
		return &StorageError{Op: "save", Entity: "details", ID: d.ChannelID, Err: ErrNotFound}
	}
	if d.ScrapedAt.IsZero() {
		d.ScrapedAt = time.Now()
	}
	warnings := d.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	w, err := json.Marshal(warnings)
	if err != nil {
		return &StorageError{Op: "save", Entity: "details", ID: d.ChannelID, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO details (channel_id, email, location, email_revealed, warnings, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			email = excluded.email,
			location = excluded.location,
			email_revealed = excluded.email_revealed,
			warnings = excluded.warnings,
			scraped_at = excluded.scraped_at`,
		d.ChannelID, d.Email, d.Location, boolInt(d.EmailRevealed), string(w), formatTime(d.ScrapedAt))
	if err != nil {
		return &StorageError{Op: "save", Entity: "details", ID: d.ChannelID, Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetDetails(ctx context.Context, channelID string) (*ContactDetails, error) {
	var (
		d        ContactDetails
		revealed int
		warnings string
		scraped  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT channel_id, email, location, email_revealed, warnings, scraped_at
		FROM details WHERE channel_id = ?`, channelID,
	).Scan(&d.ChannelID, &d.Email, &d.Location, &revealed, &warnings, &scraped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StorageError{Op: "read", Entity: "details", ID: channelID, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Entity: "details", ID: channelID, Err: err}
	}
	d.EmailRevealed = revealed != 0
	d.ScrapedAt = parseTime(scraped)
	if err := json.Unmarshal([]byte(warnings), &d.Warnings); err != nil {
		return nil, &StorageError{Op: "read", Entity: "details", ID: channelID, Err: ErrStorageCorrupt}
	}
	if len(d.Warnings) == 0 {
		d.Warnings = nil
	}
	return &d, nil
}

// --- SyncStateStore implementation ---

func (s *SQLiteStore) GetSyncState(ctx context.Context, channelID string) (*SyncState, error) {
	var (
		st                SyncState
		lastSync, started string
		incomplete        int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT channel_id, status, last_sync_at, sync_started_at, last_error,
		       links_found, pages_scrolled, incomplete, links_path
		FROM sync_states WHERE channel_id = ?`, channelID,
	).Scan(&st.ChannelID, &st.Status, &lastSync, &started, &st.LastError,
		&st.LinksFound, &st.PagesScrolled, &incomplete, &st.LinksPath)
	if errors.Is(err, sql.ErrNoRows) {
		return &SyncState{ChannelID: channelID, Status: SyncStatusIdle}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "sync_state", ID: channelID, Err: err}
	}
	st.LastSyncAt = parseTime(lastSync)
	st.SyncStartedAt = parseTime(started)
	st.Incomplete = incomplete != 0
	return &st, nil
}

func (s *SQLiteStore) UpdateSyncState(ctx context.Context, st *SyncState) error {
	if _, err := s.GetChannel(ctx, st.ChannelID); err != nil {
		return &StorageError{Op: "update", Entity: "sync_state", ID: st.ChannelID, Err: ErrNotFound}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_states (channel_id, status, last_sync_at, sync_started_at, last_error,
		                         links_found, pages_scrolled, incomplete, links_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			status = excluded.status,
			last_sync_at = excluded.last_sync_at,
			sync_started_at = excluded.sync_started_at,
			last_error = excluded.last_error,
			links_found = excluded.links_found,
			pages_scrolled = excluded.pages_scrolled,
			incomplete = excluded.incomplete,
			links_path = excluded.links_path`,
		st.ChannelID, st.Status, formatTime(st.LastSyncAt), formatTime(st.SyncStartedAt), st.LastError,
		st.LinksFound, st.PagesScrolled, boolInt(st.Incomplete), st.LinksPath)
	if err != nil {
		return &StorageError{Op: "update", Entity: "sync_state", ID: st.ChannelID, Err: fmt.Errorf("upsert: %w", err)}
	}
	return nil
}
