package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"aetherfm/pkg/db"
	"aetherfm/pkg/model"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- History ---

func (s *SQLiteStore) RecordPlay(ctx context.Context, songID string, persona model.PersonaID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO play_history (song_id, persona) VALUES (?, ?)`, songID, string(persona))
	return err
}

func (s *SQLiteStore) RecentPlays(ctx context.Context, limit int) ([]PlayEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id, persona, played_at FROM play_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []PlayEvent
	for rows.Next() {
		var ev PlayEvent
		var persona string
		if err := rows.Scan(&ev.SongID, &persona, &ev.PlayedAt); err != nil {
			return nil, err
		}
		ev.Persona = model.PersonaID(persona)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) PlayCountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM play_history WHERE played_at >= ?`,
		since.UTC().Format("2006-01-02 15:04:05")).Scan(&n)
	return n, err
}

// --- Shows ---

func (s *SQLiteStore) ShowPlayedOn(ctx context.Context, showID string, day time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM show_log WHERE show_id = ? AND played_on = ?`,
		showID, day.Format("2006-01-02")).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) MarkShowPlayed(ctx context.Context, showID string, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO show_log (show_id, played_on) VALUES (?, ?)`,
		showID, day.Format("2006-01-02"))
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM persistent_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("state read failed", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persistent_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
