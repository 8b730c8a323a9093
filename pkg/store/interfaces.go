// Package store is the repository layer over the station database: play
// history, the daily show log and small persistent state.
package store

import (
	"context"
	"time"

	"aetherfm/pkg/model"
)

// PlayEvent is one completed song play.
type PlayEvent struct {
	SongID   string
	Persona  model.PersonaID
	PlayedAt time.Time
}

// HistoryStore records completed plays.
type HistoryStore interface {
	RecordPlay(ctx context.Context, songID string, persona model.PersonaID) error
	RecentPlays(ctx context.Context, limit int) ([]PlayEvent, error)
	PlayCountSince(ctx context.Context, since time.Time) (int, error)
}

// ShowStore tracks which shows have played on which day.
type ShowStore interface {
	ShowPlayedOn(ctx context.Context, showID string, day time.Time) (bool, error)
	MarkShowPlayed(ctx context.Context, showID string, day time.Time) error
}

// StateStore is a small persistent key/value store for runtime state such as
// the last volume.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, value string) error
}

// Store composes all sub-interfaces for full access. Consumers should depend
// on specific sub-interfaces when possible.
type Store interface {
	HistoryStore
	ShowStore
	StateStore

	Close() error
}
