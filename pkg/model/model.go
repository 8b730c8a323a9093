// Package model defines the shared domain types for the station and the
// content pipeline.
package model

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Tier is a song's rotation class.
type Tier string

const (
	TierCore      Tier = "core"
	TierDiscovery Tier = "discovery"
	TierBanished  Tier = "banished"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCore, TierDiscovery, TierBanished:
		return true
	}
	return false
}

// Song is a single entry in the music library catalog.
type Song struct {
	ID              string  `json:"id"`
	Artist          string  `json:"artist"`
	Title           string  `json:"title"`
	Album           string  `json:"album,omitempty"`
	Year            int     `json:"year,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Path            string  `json:"path"`
}

// DisplayName returns "Artist - Title" for logs and the status snapshot.
func (s *Song) DisplayName() string {
	return s.Artist + " - " + s.Title
}

// SongID derives the stable catalog id from artist and title. The derivation
// is deterministic: rescanning the same file yields the same id, and the
// result is filesystem-safe so it can double as a content-store directory
// name.
func SongID(artist, title string) string {
	norm := normalize(artist) + "|" + normalize(title)
	h := fnv.New64a()
	h.Write([]byte(norm))
	slug := slugify(artist + "-" + title)
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("%s-%08x", slug, h.Sum64()&0xffffffff)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 48 {
		// Cut on a rune boundary; non-ASCII letters survive slugification.
		cut := 48
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.Trim(out[:cut], "-")
	}
	return out
}

// RotationRecord tracks a song's rotation state. One per Song.
type RotationRecord struct {
	Tier       Tier      `json:"tier"`
	PlayCount  int       `json:"play_count"`
	LastPlayed time.Time `json:"last_played,omitempty"`
}

// PersonaID identifies one of the station's on-air identities.
type PersonaID string

const (
	PersonaA PersonaID = "A"
	PersonaB PersonaID = "B"
)

// Persona is a static on-air identity. Loaded once at startup, never mutated.
type Persona struct {
	ID          PersonaID         `yaml:"id"`
	DisplayName string            `yaml:"display_name"`
	VoiceRef    string            `yaml:"voice_ref"`
	StyleCard   map[string]string `yaml:"style_card"`
}

// Shift is one entry of the 24h shift schedule. Start is minutes from
// midnight; the shift runs until the next entry's start (half-open).
type Shift struct {
	StartMinutes int       `yaml:"start"`
	Persona      PersonaID `yaml:"persona"`
}
