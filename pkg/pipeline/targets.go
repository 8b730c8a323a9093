package pipeline

import (
	"fmt"
	"math/rand"

	"aetherfm/pkg/clock"
	"aetherfm/pkg/model"
	"aetherfm/pkg/rotation"
)

// Batch selects what a pipeline run works on.
type Batch struct {
	Types    []model.ContentType
	Personas []model.PersonaID
	Limit    int  // cap on song-like targets, 0 = unlimited
	Random   bool // shuffle song-like targets within the capped set
	Seed     int64
	Stage    string // StageGenerate, StageAudit, StageSynthesize or "" for all
	TestMode bool
	DryRun   bool
	Resume   bool
	Ordering string // "stage_major" or "item_major"
}

// Snapshot derives the checkpoint config snapshot for the batch.
func (b Batch) Snapshot() Snapshot {
	return Snapshot{
		ContentTypes: b.Types,
		Personas:     b.Personas,
		Limit:        b.Limit,
		TestMode:     b.TestMode,
		Ordering:     b.Ordering,
	}
}

// SongLister exposes the catalog view enumeration needs.
type SongLister interface {
	AllSongs() []*model.Song
}

// TierSource reports rotation tiers so banished songs are excluded.
type TierSource interface {
	TierOf(id string) model.Tier
}

// EnumerateTargets produces the ordered list of content keys for a batch.
// Deterministic: catalog order for songs, clock order for slots and windows,
// schedule order for handoffs. Caps and shuffling apply to song-like targets
// only, after ordering.
func EnumerateTargets(b Batch, songs SongLister, tiers TierSource, cal *clock.Calendar) []model.ContentKey {
	var keys []model.ContentKey
	for _, ct := range b.Types {
		targets := targetsForType(ct, b, songs, tiers, cal)
		for _, p := range b.Personas {
			for _, target := range targets {
				keys = append(keys, model.ContentKey{Type: ct, Persona: p, Target: target})
			}
		}
	}
	return keys
}

func targetsForType(ct model.ContentType, b Batch, songs SongLister, tiers TierSource, cal *clock.Calendar) []string {
	switch ct {
	case model.TypeSongIntro, model.TypeSongOutro:
		return songTargets(b, songs, tiers)
	case model.TypeTime:
		return timeSlots()
	case model.TypeWeather:
		return []string{
			string(clock.WeatherMorning),
			string(clock.WeatherMidday),
			string(clock.WeatherEvening),
		}
	case model.TypeShowIntro, model.TypeShowOutro:
		return []string{cal.ShowID()}
	case model.TypeHandoff:
		var out []string
		for _, h := range cal.Handoffs() {
			out = append(out, h.TargetID())
		}
		return out
	}
	return nil
}

func songTargets(b Batch, songs SongLister, tiers TierSource) []string {
	var ids []string
	for _, s := range songs.AllSongs() {
		if tiers != nil && tiers.TierOf(s.ID) == model.TierBanished {
			continue
		}
		ids = append(ids, s.ID)
	}
	if b.Limit > 0 && len(ids) > b.Limit {
		ids = ids[:b.Limit]
	}
	if b.Random {
		rng := rand.New(rand.NewSource(b.Seed))
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}
	return ids
}

// timeSlots returns the 48 half-hour slots of the day, "00-00" through
// "23-30".
func timeSlots() []string {
	slots := make([]string, 0, 48)
	for h := 0; h < 24; h++ {
		slots = append(slots, fmt.Sprintf("%02d-00", h), fmt.Sprintf("%02d-30", h))
	}
	return slots
}

var _ TierSource = (*rotation.Engine)(nil)
