package station

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherfm/pkg/audio"
	"aetherfm/pkg/catalog"
	"aetherfm/pkg/clock"
	"aetherfm/pkg/config"
	"aetherfm/pkg/content"
	"aetherfm/pkg/model"
	"aetherfm/pkg/rotation"
)

// fixture drives the controller synchronously: tests call tick,
// handleCompletion and apply directly instead of running the loop goroutine.
type fixture struct {
	ctrl   *Controller
	player *audio.FakePlayer
	cat    *catalog.Catalog
	rot    *rotation.Engine
	cs     *content.Store
	now    time.Time
}

func newFixture(t *testing.T, songIDs ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Paths.Rotation = filepath.Join(dir, "rotation.json")
	cfg.Paths.Catalog = filepath.Join(dir, "catalog.json")

	cat := catalog.New()
	for _, id := range songIDs {
		cat.AddSong(&model.Song{
			ID: id, Artist: "Artist", Title: id,
			DurationSeconds: 180, Path: filepath.Join(dir, id+".mp3"),
		})
	}
	rot := rotation.NewEngine(cat, cfg.Rotation.CoreRatio, cfg.Rotation.GraduationThreshold, 0)
	for _, id := range songIDs {
		rot.EnsureRecord(id)
	}

	fx := &fixture{
		player: audio.NewFakePlayer(),
		cat:    cat,
		rot:    rot,
		cs:     content.NewStore(filepath.Join(dir, "content")),
		now:    time.Date(2026, 8, 25, 10, 15, 0, 0, time.UTC),
	}
	fx.ctrl = New(Options{
		Config:   cfg,
		Calendar: clock.New(cfg.Schedule),
		Catalog:  cat,
		Rotation: rot,
		Content:  fx.cs,
		Player:   fx.player,
		Now:      func() time.Time { return fx.now },
		RNG:      rand.New(rand.NewSource(1)),
	})
	fx.ctrl.prevPersona = fx.ctrl.opts.Calendar.PersonaOnAirAt(fx.now)
	return fx
}

func (fx *fixture) makeReady(t *testing.T, key model.ContentKey) string {
	t.Helper()
	require.NoError(t, fx.cs.WriteScript(key, "some words"))
	require.NoError(t, fx.cs.WriteAudit(key, &model.AuditRecord{OverallScore: 9, Passed: true}))
	require.NoError(t, fx.cs.WriteAudio(key, []byte("audio-bytes")))
	return fx.cs.AudioPath(key)
}

// finish simulates the current item ending naturally.
func (fx *fixture) finish(t *testing.T) {
	t.Helper()
	fx.player.Complete()
	fx.drain(t)
}

// drain hands buffered completion signals to the controller, as the run loop
// would.
func (fx *fixture) drain(t *testing.T) {
	t.Helper()
	for {
		select {
		case done := <-fx.ctrl.playerDone:
			fx.ctrl.handleCompletion(t.Context(), done)
		default:
			return
		}
	}
}

func TestIntroPlaysStrictlyBeforeSong(t *testing.T) {
	fx := newFixture(t, "song-a")
	introPath := fx.makeReady(t, model.ContentKey{Type: model.TypeSongIntro, Persona: model.PersonaA, Target: "song-a"})

	fx.ctrl.tick(t.Context())
	assert.Equal(t, introPath, fx.player.Current(), "intro must start first")
	assert.Zero(t, fx.ctrl.Status().SongsPlayed)

	fx.finish(t)
	assert.Contains(t, fx.player.Current(), "song-a.mp3")
	assert.Zero(t, fx.ctrl.Status().SongsPlayed, "intro completion credits no play")
	assert.Zero(t, fx.rot.PlayCount("song-a"))

	fx.finish(t)
	assert.Equal(t, 1, fx.ctrl.Status().SongsPlayed)
	assert.Equal(t, 1, fx.rot.PlayCount("song-a"), "song completion credits exactly one play")
}

func TestTickAfterBufferedCompletionAdvancesOnce(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.makeReady(t, model.ContentKey{Type: model.TypeSongIntro, Persona: model.PersonaA, Target: "song-a"})

	fx.ctrl.tick(t.Context())
	require.Equal(t, model.KindIntro, fx.ctrl.current.Kind)

	// The intro ends but its completion signal has not been drained when the
	// next tick fires. The tick must process it, not advance past it.
	fx.player.Complete()
	fx.ctrl.tick(t.Context())
	fx.drain(t)

	assert.Contains(t, fx.player.Current(), "song-a.mp3")
	assert.Zero(t, fx.rot.PlayCount("song-a"), "the song that just started gets no credit")
	assert.Zero(t, fx.ctrl.Status().SongsPlayed)
	assert.Len(t, fx.player.Played, 2, "one completion advances exactly once")
}

func TestStaleCompletionCreditsOnlyTheCompletedSong(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.ctrl.tick(t.Context())
	require.Contains(t, fx.player.Current(), "song-a.mp3")

	// The track finishes, but a tick starts the next item before the loop
	// handles the buffered signal.
	fx.player.Complete()
	done := <-fx.ctrl.playerDone
	fx.ctrl.tick(t.Context())
	require.Len(t, fx.player.Played, 2)

	fx.ctrl.handleCompletion(t.Context(), done)
	assert.Equal(t, 1, fx.rot.PlayCount("song-a"), "the finished play is credited exactly once")
	assert.Equal(t, 1, fx.ctrl.Status().SongsPlayed)
	require.NotNil(t, fx.ctrl.current, "the in-flight item keeps playing")
	assert.Len(t, fx.player.Played, 2, "a stale signal never advances")

	fx.finish(t)
	assert.Equal(t, 2, fx.rot.PlayCount("song-a"))
}

func TestSkipCreditsNoPlay(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.ctrl.tick(t.Context())
	require.Contains(t, fx.player.Current(), "song-a.mp3")

	fx.ctrl.apply(t.Context(), CmdSkip)
	assert.Zero(t, fx.rot.PlayCount("song-a"), "skipped songs are not counted")
	assert.Contains(t, fx.player.Current(), "song-a.mp3", "single-song catalog plays again after skip")
}

func TestBanishStopsAndExcludes(t *testing.T) {
	fx := newFixture(t, "song-a", "song-b")
	fx.ctrl.tick(t.Context())

	// Banish whichever song came up first; it must never come back.
	banished := fx.ctrl.current.SongID
	fx.ctrl.apply(t.Context(), CmdBanish)

	assert.Equal(t, model.TierBanished, fx.rot.TierOf(banished))
	require.NotNil(t, fx.ctrl.current, "playback advances to another song")
	assert.NotEqual(t, banished, fx.ctrl.current.SongID)

	for i := 0; i < 100; i++ {
		fx.finish(t)
		require.NotNil(t, fx.ctrl.current)
		assert.NotEqual(t, banished, fx.ctrl.current.SongID)
	}
}

func TestAnnouncementPlaysAfterCurrentItem(t *testing.T) {
	fx := newFixture(t, "song-a")
	annPath := fx.makeReady(t, model.ContentKey{Type: model.TypeTime, Persona: model.PersonaA, Target: "10-30"})

	fx.ctrl.tick(t.Context())
	require.Contains(t, fx.player.Current(), "song-a.mp3")

	fx.now = time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	fx.ctrl.tick(t.Context())
	assert.Contains(t, fx.player.Current(), "song-a.mp3", "announcement never interrupts the current item")
	next, ok := fx.ctrl.Queue().Peek()
	require.True(t, ok)
	assert.Equal(t, model.KindAnnouncement, next.Kind)

	fx.ctrl.tick(t.Context())
	assert.Equal(t, 1, fx.ctrl.Queue().Len(), "same slot never queues twice")

	fx.finish(t)
	assert.Equal(t, annPath, fx.player.Current(), "announcement plays at the boundary")
}

func TestHandoffQueuedOnShiftChange(t *testing.T) {
	fx := newFixture(t, "song-a")
	handoffPath := fx.makeReady(t, model.ContentKey{Type: model.TypeHandoff, Persona: model.PersonaA, Target: "18-00-A-B"})

	fx.ctrl.tick(t.Context())
	require.Contains(t, fx.player.Current(), "song-a.mp3")

	fx.now = time.Date(2026, 8, 25, 18, 0, 5, 0, time.UTC)
	fx.ctrl.tick(t.Context())
	assert.Equal(t, model.PersonaB, fx.ctrl.prevPersona)
	next, ok := fx.ctrl.Queue().Peek()
	require.True(t, ok)
	assert.Equal(t, model.KindAnnouncement, next.Kind)

	fx.finish(t)
	assert.Equal(t, handoffPath, fx.player.Current(), "outgoing persona speaks the handoff")
}

func TestShowPlaysOncePerDay(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.now = time.Date(2026, 8, 25, 20, 10, 0, 0, time.UTC)
	fx.ctrl.prevPersona = model.PersonaB
	introPath := fx.makeReady(t, model.ContentKey{Type: model.TypeShowIntro, Persona: model.PersonaB, Target: "evening_show"})

	fx.ctrl.tick(t.Context())
	assert.Equal(t, introPath, fx.player.Current(), "show window opens with the show intro")
	segment, ok := fx.ctrl.Queue().Peek()
	require.True(t, ok)
	assert.Equal(t, model.KindShowSegment, segment.Kind, "a segment song follows the intro")
	assert.Equal(t, "song-a", segment.SongID)

	// Drain the show block, then the next selection is a regular song.
	fx.finish(t)
	fx.finish(t)
	require.NotNil(t, fx.ctrl.current)
	assert.Equal(t, model.KindSong, fx.ctrl.current.Kind, "show does not repeat within the day")
}

func TestFlagCurrentContent(t *testing.T) {
	fx := newFixture(t, "song-a")
	key := model.ContentKey{Type: model.TypeSongIntro, Persona: model.PersonaA, Target: "song-a"}
	fx.makeReady(t, key)

	fx.ctrl.tick(t.Context())
	require.Equal(t, model.KindIntro, fx.ctrl.current.Kind)

	fx.ctrl.apply(t.Context(), CmdFlag)
	item, err := fx.cs.ReadItem(key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFlagged, item.Status)

	// Flagged content never plays again.
	fx.finish(t) // intro done, song starts
	fx.finish(t) // song done, next block selected
	assert.Contains(t, fx.player.Current(), "song-a.mp3", "next block skips the flagged intro")
}

func TestPromoteCurrentSong(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.ctrl.tick(t.Context())

	fx.ctrl.apply(t.Context(), CmdPromote)
	assert.Equal(t, model.TierCore, fx.rot.TierOf("song-a"))
}

func TestPauseToggle(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.ctrl.tick(t.Context())

	fx.ctrl.apply(t.Context(), CmdPauseToggle)
	assert.True(t, fx.player.IsPaused())
	assert.Equal(t, StatePaused, fx.ctrl.Status().State)

	fx.ctrl.apply(t.Context(), CmdPauseToggle)
	assert.False(t, fx.player.IsPaused())
	assert.Equal(t, StatePlaying, fx.ctrl.Status().State)
}

func TestCommandsWithoutCurrentAreNoOps(t *testing.T) {
	fx := newFixture(t) // empty catalog, nothing playing
	for _, cmd := range []Command{CmdPauseToggle, CmdSkip, CmdBanish, CmdFlag, CmdPromote} {
		assert.False(t, fx.ctrl.apply(t.Context(), cmd), "%s must not quit", cmd)
	}
	assert.True(t, fx.ctrl.apply(t.Context(), CmdQuit))
}

func TestIdleWhenNothingEligible(t *testing.T) {
	fx := newFixture(t) // empty catalog
	fx.ctrl.tick(t.Context())
	snap := fx.ctrl.Status()
	assert.Equal(t, StateIdle, snap.State)
	assert.NotEmpty(t, snap.Message)

	// Recovery: a song appears, the next tick resumes playback.
	fx.cat.AddSong(&model.Song{ID: "late", Artist: "A", Title: "late", DurationSeconds: 60, Path: "late.mp3"})
	fx.rot.EnsureRecord("late")
	fx.ctrl.tick(t.Context())
	assert.Equal(t, StatePlaying, fx.ctrl.Status().State)
}

func TestStatusSnapshot(t *testing.T) {
	fx := newFixture(t, "song-a")
	fx.ctrl.tick(t.Context())

	snap := fx.ctrl.Status()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, model.PersonaA, snap.Persona)
	assert.Equal(t, model.KindSong, snap.CurrentKind)
	assert.Equal(t, "Artist - song-a", snap.CurrentLabel)
	assert.Zero(t, snap.SongsPlayed)
}

func TestFromKey(t *testing.T) {
	cases := []struct {
		r   rune
		cmd Command
		ok  bool
	}{
		{'q', CmdQuit, true},
		{'Q', CmdQuit, true},
		{'p', CmdPauseToggle, true},
		{'s', CmdSkip, true},
		{'b', CmdBanish, true},
		{'f', CmdFlag, true},
		{'r', CmdPromote, true},
		{'x', 0, false},
		{'\n', 0, false},
	}
	for _, c := range cases {
		cmd, ok := FromKey(c.r)
		assert.Equal(t, c.ok, ok, "key %q", c.r)
		if ok {
			assert.Equal(t, c.cmd, cmd, "key %q", c.r)
		}
	}
}

func TestIngressDropOldest(t *testing.T) {
	in := NewIngress(2)
	in.Send(CmdPauseToggle)
	in.Send(CmdSkip)
	in.Send(CmdBanish) // buffer full: oldest pending command is dropped

	assert.Equal(t, CmdSkip, <-in.Commands())
	assert.Equal(t, CmdBanish, <-in.Commands())
	select {
	case cmd := <-in.Commands():
		t.Fatalf("unexpected extra command %s", cmd)
	default:
	}
}
