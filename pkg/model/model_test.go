package model

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSongIDDeterministic(t *testing.T) {
	a := SongID("The Midnight", "Days of Thunder")
	b := SongID("The Midnight", "Days of Thunder")
	if a != b {
		t.Errorf("same input produced different ids: %q vs %q", a, b)
	}
	if a == SongID("The Midnight", "Sunset") {
		t.Error("different titles produced the same id")
	}
}

func TestSongIDNormalization(t *testing.T) {
	// Whitespace and case differences in the tags collapse to the same id.
	a := SongID("  the midnight ", "days  of thunder")
	b := SongID("The Midnight", "Days of Thunder")
	if a != b {
		t.Errorf("normalized tags should share an id: %q vs %q", a, b)
	}
}

func TestSongIDFilesystemSafe(t *testing.T) {
	id := SongID("AC/DC", "T.N.T. (Live '92)")
	if strings.ContainsAny(id, "/\\:*?\"<>| .()'") {
		t.Errorf("id %q contains filesystem-unsafe characters", id)
	}
	if id == "" {
		t.Error("empty id")
	}
}

func TestSongIDTruncatesOnRuneBoundary(t *testing.T) {
	// An odd-length ASCII prefix forces every following two-byte rune to
	// straddle the byte-48 cutoff.
	id := SongID("a"+strings.Repeat("é", 40), "")
	if !utf8.ValidString(id) {
		t.Errorf("id %q is not valid UTF-8", id)
	}
	slug := slugify("a" + strings.Repeat("é", 40))
	if len(slug) > 48 {
		t.Errorf("slug %q exceeds 48 bytes", slug)
	}
	if !utf8.ValidString(slug) {
		t.Errorf("slug %q splits a rune", slug)
	}
}

func TestSongIDEmptyTags(t *testing.T) {
	id := SongID("", "")
	if !strings.HasPrefix(id, "untitled-") {
		t.Errorf("empty tags should fall back to untitled slug, got %q", id)
	}
}

func TestTierValid(t *testing.T) {
	for _, tier := range []Tier{TierCore, TierDiscovery, TierBanished} {
		if !tier.Valid() {
			t.Errorf("%q should be valid", tier)
		}
	}
	if Tier("gold").Valid() {
		t.Error("unknown tier should be invalid")
	}
}

func TestContentTypeValid(t *testing.T) {
	for _, ct := range AllContentTypes {
		if !ct.Valid() {
			t.Errorf("%q should be valid", ct)
		}
	}
	if ContentType("jingle").Valid() {
		t.Error("unknown content type should be invalid")
	}
}

func TestContentKeyString(t *testing.T) {
	k := ContentKey{Type: TypeSongIntro, Persona: PersonaA, Target: "xyz-12345678"}
	if got := k.String(); got != "song_intro/A/xyz-12345678" {
		t.Errorf("key string = %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	s := Song{Artist: "Kraftwerk", Title: "Autobahn"}
	if got := s.DisplayName(); got != "Kraftwerk - Autobahn" {
		t.Errorf("display name = %q", got)
	}
}
