package rotation

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherfm/pkg/model"
)

// fixedSource is a SongSource over a literal song list.
type fixedSource struct {
	songs []*model.Song
}

func (s fixedSource) AllSongs() []*model.Song { return s.songs }

func (s fixedSource) GetSong(id string) *model.Song {
	for _, song := range s.songs {
		if song.ID == id {
			return song
		}
	}
	return nil
}

func sourceOf(ids ...string) fixedSource {
	var songs []*model.Song
	for _, id := range ids {
		songs = append(songs, &model.Song{ID: id, Artist: "a", Title: id, DurationSeconds: 180, Path: id + ".mp3"})
	}
	return fixedSource{songs: songs}
}

func newTestEngine(src fixedSource) *Engine {
	e := NewEngine(src, 0.7, 5, 0)
	for _, s := range src.songs {
		e.EnsureRecord(s.ID)
	}
	return e
}

func TestBanishedNeverDrawn(t *testing.T) {
	src := sourceOf("a", "b", "c")
	e := newTestEngine(src)
	require.NoError(t, e.Banish("b"))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		s := e.NextSong(rng)
		require.NotNil(t, s)
		if s.ID == "b" {
			t.Fatal("banished song was drawn")
		}
	}
}

func TestCoreRatioEmpirical(t *testing.T) {
	src := sourceOf("core1", "core2", "disc1", "disc2")
	e := newTestEngine(src)
	require.NoError(t, e.Promote("core1"))
	require.NoError(t, e.Promote("core2"))

	rng := rand.New(rand.NewSource(42))
	const draws = 10000
	coreHits := 0
	for i := 0; i < draws; i++ {
		if s := e.NextSong(rng); e.TierOf(s.ID) == model.TierCore {
			coreHits++
		}
	}
	ratio := float64(coreHits) / draws
	assert.InDelta(t, 0.7, ratio, 0.05, "core draw ratio %f", ratio)
}

func TestGraduationOnThreshold(t *testing.T) {
	src := sourceOf("a")
	e := newTestEngine(src)

	for i := 0; i < 4; i++ {
		e.RecordPlay("a", "")
		assert.Equal(t, model.TierDiscovery, e.TierOf("a"), "play %d should not graduate", i+1)
	}
	e.RecordPlay("a", "")
	assert.Equal(t, model.TierCore, e.TierOf("a"), "fifth play graduates")
	assert.Equal(t, 5, e.PlayCount("a"))
}

func TestGraduationDoesNotDemote(t *testing.T) {
	src := sourceOf("a")
	e := newTestEngine(src)
	require.NoError(t, e.Promote("a"))
	e.RecordPlay("a", "")
	assert.Equal(t, model.TierCore, e.TierOf("a"))
}

func TestRecordPlayIdempotence(t *testing.T) {
	src := sourceOf("a")
	e := newTestEngine(src)

	e.RecordPlay("a", "event-1")
	e.RecordPlay("a", "event-1")
	assert.Equal(t, 1, e.PlayCount("a"), "duplicate event must not double-count")

	e.RecordPlay("a", "event-2")
	assert.Equal(t, 2, e.PlayCount("a"))
}

func TestBanishRestoreLifecycle(t *testing.T) {
	src := sourceOf("a")
	e := newTestEngine(src)
	e.RecordPlay("a", "")
	e.RecordPlay("a", "")

	require.NoError(t, e.Banish("a"))
	assert.Equal(t, model.TierBanished, e.TierOf("a"))

	require.NoError(t, e.Restore("a"))
	assert.Equal(t, model.TierDiscovery, e.TierOf("a"))
	assert.Equal(t, 2, e.PlayCount("a"), "play count survives banish/restore")
}

func TestSetTierUnknownSong(t *testing.T) {
	e := newTestEngine(sourceOf("a"))
	err := e.Banish("ghost")
	var snf *SongNotFoundError
	require.True(t, errors.As(err, &snf))
	assert.Equal(t, "ghost", snf.ID)
}

func TestNextSongAllBanished(t *testing.T) {
	src := sourceOf("a", "b")
	e := newTestEngine(src)
	require.NoError(t, e.Banish("a"))
	require.NoError(t, e.Banish("b"))

	rng := rand.New(rand.NewSource(1))
	assert.Nil(t, e.NextSong(rng))
}

func TestNextSongEmptyCatalog(t *testing.T) {
	e := newTestEngine(sourceOf())
	assert.Nil(t, e.NextSong(rand.New(rand.NewSource(1))))
}

func TestAvoidRepeatWindow(t *testing.T) {
	src := sourceOf("a", "b", "c")
	e := NewEngine(src, 0.7, 5, 2)
	for _, s := range src.songs {
		e.EnsureRecord(s.ID)
	}

	e.RecordPlay("a", "")
	e.RecordPlay("b", "")

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		s := e.NextSong(rng)
		require.NotNil(t, s)
		assert.Equal(t, "c", s.ID, "only the song outside the repeat window is eligible")
	}
}

func TestAvoidRepeatWindowExhausted(t *testing.T) {
	// When the window excludes every song the station still plays.
	src := sourceOf("a")
	e := NewEngine(src, 0.7, 5, 3)
	e.EnsureRecord("a")
	e.RecordPlay("a", "")

	s := e.NextSong(rand.New(rand.NewSource(1)))
	require.NotNil(t, s)
	assert.Equal(t, "a", s.ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := sourceOf("a", "b")
	e := newTestEngine(src)
	e.RecordPlay("a", "")
	require.NoError(t, e.Banish("b"))

	path := filepath.Join(t.TempDir(), "rotation.json")
	require.NoError(t, e.Save(path))

	e2 := NewEngine(src, 0.7, 5, 0)
	require.NoError(t, e2.LoadRecords(path))
	assert.Equal(t, 1, e2.PlayCount("a"))
	assert.Equal(t, model.TierBanished, e2.TierOf("b"))
}

func TestLoadRecordsMissingFile(t *testing.T) {
	e := newTestEngine(sourceOf("a"))
	require.NoError(t, e.LoadRecords(filepath.Join(t.TempDir(), "nope.json")))
}
