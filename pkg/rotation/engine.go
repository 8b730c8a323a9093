// Package rotation maintains per-song rotation tiers and performs the
// weighted random selection that keeps the station playing.
package rotation

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"aetherfm/pkg/model"
)

// SongNotFoundError signals an operation on an id the engine does not know.
// This is a caller bug, not a recoverable condition.
type SongNotFoundError struct {
	ID string
}

func (e *SongNotFoundError) Error() string {
	return fmt.Sprintf("rotation: unknown song id %q", e.ID)
}

// SongSource is the narrow read interface the engine needs from the catalog.
type SongSource interface {
	AllSongs() []*model.Song
	GetSong(id string) *model.Song
}

// Engine owns the RotationRecord map.
type Engine struct {
	mu      sync.RWMutex
	records map[string]*model.RotationRecord

	source              SongSource
	coreRatio           float64
	graduationThreshold int
	avoidRepeatWindow   int

	recent     []string // most recent last
	seenEvents map[string]bool
}

// NewEngine creates a rotation engine over the given song source.
func NewEngine(source SongSource, coreRatio float64, graduationThreshold, avoidRepeatWindow int) *Engine {
	return &Engine{
		records:             make(map[string]*model.RotationRecord),
		source:              source,
		coreRatio:           coreRatio,
		graduationThreshold: graduationThreshold,
		avoidRepeatWindow:   avoidRepeatWindow,
		seenEvents:          make(map[string]bool),
	}
}

// EnsureRecord creates a Discovery record for id if none exists.
func (e *Engine) EnsureRecord(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.records[id]; !ok {
		e.records[id] = &model.RotationRecord{Tier: model.TierDiscovery}
	}
}

// TierOf returns the tier of the given song. Unknown ids report Discovery,
// matching the default for unseen songs.
func (e *Engine) TierOf(id string) model.Tier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.records[id]; ok {
		return r.Tier
	}
	return model.TierDiscovery
}

// PlayCount returns the recorded play count for id.
func (e *Engine) PlayCount(id string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.records[id]; ok {
		return r.PlayCount
	}
	return 0
}

// RecordPlay counts one completed play and promotes Discovery songs that
// reach the graduation threshold. An optional eventID makes duplicate
// deliveries of the same logical play idempotent; pass "" to count
// unconditionally.
func (e *Engine) RecordPlay(id, eventID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if eventID != "" {
		if e.seenEvents[eventID] {
			return
		}
		e.seenEvents[eventID] = true
	}

	r, ok := e.records[id]
	if !ok {
		r = &model.RotationRecord{Tier: model.TierDiscovery}
		e.records[id] = r
	}
	r.PlayCount++
	r.LastPlayed = time.Now()

	if r.Tier == model.TierDiscovery && r.PlayCount >= e.graduationThreshold {
		r.Tier = model.TierCore
	}

	if e.avoidRepeatWindow > 0 {
		e.recent = append(e.recent, id)
		if len(e.recent) > e.avoidRepeatWindow {
			e.recent = e.recent[len(e.recent)-e.avoidRepeatWindow:]
		}
	}
}

// Promote moves the song to Core.
func (e *Engine) Promote(id string) error {
	return e.setTier(id, model.TierCore)
}

// Banish removes the song from rotation. Terminal until Restore.
func (e *Engine) Banish(id string) error {
	return e.setTier(id, model.TierBanished)
}

// Restore returns a banished song to Discovery.
func (e *Engine) Restore(id string) error {
	return e.setTier(id, model.TierDiscovery)
}

func (e *Engine) setTier(id string, tier model.Tier) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	if !ok {
		if e.source.GetSong(id) == nil {
			return &SongNotFoundError{ID: id}
		}
		r = &model.RotationRecord{Tier: model.TierDiscovery}
		e.records[id] = r
	}
	r.Tier = tier
	return nil
}

// NextSong draws the next song: with probability coreRatio uniformly from
// Core, otherwise uniformly from Discovery, falling back to the other set
// when the chosen one is empty. Banished songs are never selectable. Returns
// nil when no non-banished song exists.
func (e *Engine) NextSong(rng *rand.Rand) *model.Song {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var core, discovery []*model.Song
	excluded := make(map[string]bool, len(e.recent))
	for _, id := range e.recent {
		excluded[id] = true
	}

	for _, s := range e.source.AllSongs() {
		tier := model.TierDiscovery
		if r, ok := e.records[s.ID]; ok {
			tier = r.Tier
		}
		if tier == model.TierBanished || excluded[s.ID] {
			continue
		}
		if tier == model.TierCore {
			core = append(core, s)
		} else {
			discovery = append(discovery, s)
		}
	}

	// If the repeat window excluded everything, ignore it; the station must
	// keep playing.
	if len(core) == 0 && len(discovery) == 0 && len(excluded) > 0 {
		for _, s := range e.source.AllSongs() {
			tier := model.TierDiscovery
			if r, ok := e.records[s.ID]; ok {
				tier = r.Tier
			}
			if tier == model.TierBanished {
				continue
			}
			if tier == model.TierCore {
				core = append(core, s)
			} else {
				discovery = append(discovery, s)
			}
		}
	}

	primary, fallback := core, discovery
	if rng.Float64() >= e.coreRatio {
		primary, fallback = discovery, core
	}
	if len(primary) == 0 {
		primary = fallback
	}
	if len(primary) == 0 {
		return nil
	}
	return primary[rng.Intn(len(primary))]
}
