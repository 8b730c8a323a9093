// Package station runs the on-air loop: it picks what plays next, inserts
// announcements at clock boundaries, applies operator commands and records
// plays. All mutation of the catalog, rotation state and queue happens on
// the controller goroutine; other goroutines only send on channels.
package station

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"aetherfm/pkg/audio"
	"aetherfm/pkg/catalog"
	"aetherfm/pkg/clock"
	"aetherfm/pkg/config"
	"aetherfm/pkg/content"
	"aetherfm/pkg/model"
	"aetherfm/pkg/playback"
	"aetherfm/pkg/rotation"
	"aetherfm/pkg/store"
)

const volumeStateKey = "volume"

// Options wires a controller.
type Options struct {
	Config   *config.Config
	Calendar *clock.Calendar
	Catalog  *catalog.Catalog
	Rotation *rotation.Engine
	Content  *content.Store
	Player   audio.Player
	Ingress  *Ingress
	State    store.Store // optional persistent station state

	Now func() time.Time // injectable clock for tests
	RNG *rand.Rand

	// MusicChanges, when set, triggers a catalog rescan per signal.
	MusicChanges <-chan struct{}

	NoWeather bool
	NoShows   bool
}

// Controller is the station's decision loop.
type Controller struct {
	opts  Options
	queue *playback.Queue

	mu          sync.RWMutex
	startedAt   time.Time
	current     *model.QueueItem
	playGen     uint64
	songsPlayed int
	errorCount  int
	message     string
	idle        bool

	prevPersona    model.PersonaID
	lastSlotQueued string
	lastWeatherKey string
	showPlayedDay  string // in-memory fallback when no state store

	playerDone chan completion
}

// completion identifies which play finished. The player's callback races the
// ticker, so the signal carries the finished item itself: a signal that
// arrives after the loop already advanced still credits the right song and
// never advances a second time.
type completion struct {
	item    model.QueueItem
	eventID string
	gen     uint64
}

// New creates a controller.
func New(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		opts:       opts,
		queue:      playback.NewQueue(),
		playerDone: make(chan completion, 4),
	}
}

// Queue exposes the playback queue for inspection.
func (c *Controller) Queue() *playback.Queue { return c.queue }

// Run executes the loop until the context is cancelled or the operator
// quits. The returned error is nil on clean shutdown.
func (c *Controller) Run(ctx context.Context) error {
	now := c.opts.Now()
	c.mu.Lock()
	c.startedAt = now
	c.mu.Unlock()
	c.prevPersona = c.opts.Calendar.PersonaOnAirAt(now)
	c.restoreVolume(ctx)

	quantum := time.Duration(c.opts.Config.Station.Quantum)
	if quantum <= 0 {
		quantum = 250 * time.Millisecond
	}
	ticker := time.NewTicker(quantum)
	defer ticker.Stop()

	slog.Info("station loop started", "persona", c.prevPersona, "quantum", quantum)

	var commands <-chan Command
	if c.opts.Ingress != nil {
		commands = c.opts.Ingress.Commands()
	}

	for {
		select {
		case <-ctx.Done():
			return c.shutdown(context.WithoutCancel(ctx))
		case done := <-c.playerDone:
			c.handleCompletion(ctx, done)
		case cmd := <-commands:
			if quit := c.apply(ctx, cmd); quit {
				return c.shutdown(context.WithoutCancel(ctx))
			}
		case <-c.opts.MusicChanges:
			c.rescan()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick handles the time-driven part of the loop: boundary insertions and
// keeping the player fed.
func (c *Controller) tick(ctx context.Context) {
	now := c.opts.Now()
	persona := c.opts.Calendar.PersonaOnAirAt(now)

	if persona != c.prevPersona {
		c.queueHandoff(c.prevPersona, persona, now)
		c.prevPersona = persona
	}

	c.queueBoundaryContent(ctx, now, persona)

	if !c.opts.Player.IsBusy() {
		// A finished track may have signalled completion without the loop
		// draining it yet; process those before starting anything new.
		c.drainCompletions(ctx)
		if !c.opts.Player.IsBusy() {
			c.advance(ctx)
		}
	}
}

func (c *Controller) drainCompletions(ctx context.Context) {
	for {
		select {
		case done := <-c.playerDone:
			c.handleCompletion(ctx, done)
		default:
			return
		}
	}
}

// queueBoundaryContent front-inserts time and weather announcements when the
// clock enters a window. Insertion never interrupts the current item; the
// announcement plays at the next boundary.
func (c *Controller) queueBoundaryContent(ctx context.Context, now time.Time, persona model.PersonaID) {
	if !c.opts.Calendar.IsAnnouncementMoment(now) {
		return
	}
	slot := clock.AnnouncementSlot(now)
	if slot == c.lastSlotQueued {
		return
	}
	c.lastSlotQueued = slot

	var items []model.QueueItem
	timeKey := model.ContentKey{Type: model.TypeTime, Persona: persona, Target: slot}
	if it := c.readyItem(timeKey, model.KindAnnouncement); it != nil {
		items = append(items, *it)
	}

	if !c.opts.NoWeather {
		if window := c.opts.Calendar.WeatherWindowAt(now); window != clock.WeatherNone {
			wkey := now.Format("2006-01-02") + "/" + string(window)
			if wkey != c.lastWeatherKey {
				c.lastWeatherKey = wkey
				key := model.ContentKey{Type: model.TypeWeather, Persona: persona, Target: string(window)}
				if it := c.readyItem(key, model.KindAnnouncement); it != nil {
					items = append(items, *it)
				}
			}
		}
	}

	if len(items) > 0 {
		c.queue.PushFront(items...)
		slog.Info("queued boundary content", "slot", slot, "count", len(items))
	}
}

func (c *Controller) queueHandoff(from, to model.PersonaID, now time.Time) {
	for _, h := range c.opts.Calendar.Handoffs() {
		if h.From != from || h.To != to {
			continue
		}
		// The outgoing persona speaks the handoff.
		key := model.ContentKey{Type: model.TypeHandoff, Persona: from, Target: h.TargetID()}
		if it := c.readyItem(key, model.KindAnnouncement); it != nil {
			c.queue.PushFront(*it)
			slog.Info("queued handoff", "from", from, "to", to)
		}
		return
	}
}

// advance feeds the player: fill the queue if needed, then play from the
// front. Unplayable files are skipped with an error count, never a crash.
func (c *Controller) advance(ctx context.Context) {
	if c.queue.Len() == 0 {
		items := c.decideNext(ctx)
		if len(items) == 0 {
			c.setIdle("nothing eligible to play")
			return
		}
		c.queue.Enqueue(items...)
	}
	c.setIdle("")

	for {
		item, ok := c.queue.Pop()
		if !ok {
			c.setIdle("queue drained by playback failures")
			return
		}
		if c.play(item) {
			return
		}
	}
}

// play starts one item. Returns false when the file could not be played.
func (c *Controller) play(item model.QueueItem) bool {
	eventID := ""
	if item.Kind == model.KindSong {
		eventID = uuid.New().String()
	}

	c.mu.Lock()
	c.playGen++
	gen := c.playGen
	c.mu.Unlock()

	err := c.opts.Player.Play(item.Path, func() {
		select {
		case c.playerDone <- completion{item: item, eventID: eventID, gen: gen}:
		default:
		}
	})
	if err != nil {
		c.mu.Lock()
		c.errorCount++
		c.mu.Unlock()
		slog.Error("playback failed, skipping item", "path", item.Path, "kind", item.Kind, "error", err)
		return false
	}

	c.mu.Lock()
	it := item
	c.current = &it
	c.mu.Unlock()
	slog.Info("now playing", "kind", item.Kind, "label", item.Label)
	return true
}

// handleCompletion reacts to a natural end of a played item. Rotation
// counters move here, exactly once per completed song: the credited song
// comes from the signal, never from whatever is current by the time the
// signal drains. Only a completion for the current play clears it and
// advances; a stale one already lost that race to the ticker.
func (c *Controller) handleCompletion(ctx context.Context, done completion) {
	c.mu.Lock()
	isCurrent := c.current != nil && done.gen == c.playGen
	if isCurrent {
		c.current = nil
	}
	c.mu.Unlock()

	item := done.item
	if (item.Kind == model.KindSong || item.Kind == model.KindShowSegment) && item.SongID != "" {
		c.opts.Rotation.RecordPlay(item.SongID, done.eventID)
		c.persistRotation()
		c.mu.Lock()
		c.songsPlayed++
		c.mu.Unlock()
		if c.opts.State != nil {
			if err := c.opts.State.RecordPlay(ctx, item.SongID, c.prevPersona); err != nil {
				slog.Warn("failed to record play in state store", "error", err)
			}
		}
	}

	if isCurrent {
		c.advance(ctx)
	}
}

// decideNext picks the next block of items: a show at its window, otherwise
// a song with its pre-rendered intro and outro when those passed audit.
func (c *Controller) decideNext(ctx context.Context) []model.QueueItem {
	now := c.opts.Now()
	persona := c.opts.Calendar.PersonaOnAirAt(now)

	if !c.opts.NoShows {
		if showID := c.opts.Calendar.ShowWindowAt(now); showID != "" && !c.showPlayedToday(ctx, showID, now) {
			if items := c.showBlock(ctx, showID, persona); len(items) > 0 {
				c.markShowPlayed(ctx, showID, now)
				return items
			}
		}
	}

	song := c.opts.Rotation.NextSong(c.opts.RNG)
	if song == nil {
		return nil
	}
	return c.songBlock(song, persona)
}

func (c *Controller) songBlock(song *model.Song, persona model.PersonaID) []model.QueueItem {
	var items []model.QueueItem

	introKey := model.ContentKey{Type: model.TypeSongIntro, Persona: persona, Target: song.ID}
	if it := c.readyItem(introKey, model.KindIntro); it != nil {
		items = append(items, *it)
	}

	items = append(items, model.QueueItem{
		Path:   song.Path,
		Kind:   model.KindSong,
		SongID: song.ID,
		Label:  song.DisplayName(),
	})

	outroKey := model.ContentKey{Type: model.TypeSongOutro, Persona: persona, Target: song.ID}
	if it := c.readyItem(outroKey, model.KindOutro); it != nil {
		items = append(items, *it)
	}
	return items
}

// showBlock builds [show intro, segment song, show outro]. The show only
// runs when at least its intro audio is ready.
func (c *Controller) showBlock(ctx context.Context, showID string, persona model.PersonaID) []model.QueueItem {
	introKey := model.ContentKey{Type: model.TypeShowIntro, Persona: persona, Target: showID}
	intro := c.readyItem(introKey, model.KindAnnouncement)
	if intro == nil {
		return nil
	}
	items := []model.QueueItem{*intro}

	if song := c.opts.Rotation.NextSong(c.opts.RNG); song != nil {
		items = append(items, model.QueueItem{
			Path:   song.Path,
			Kind:   model.KindShowSegment,
			SongID: song.ID,
			Label:  song.DisplayName(),
		})
	}

	outroKey := model.ContentKey{Type: model.TypeShowOutro, Persona: persona, Target: showID}
	if outro := c.readyItem(outroKey, model.KindAnnouncement); outro != nil {
		items = append(items, *outro)
	}
	return items
}

// readyItem returns a queue item for key when its audio is ready, nil
// otherwise. Flagged content never plays.
func (c *Controller) readyItem(key model.ContentKey, kind model.QueueKind) *model.QueueItem {
	item, err := c.opts.Content.ReadItem(key)
	if err != nil {
		slog.Warn("content read failed", "key", key.String(), "error", err)
		return nil
	}
	if item.Status != model.StatusAudioReady {
		return nil
	}
	k := key
	return &model.QueueItem{
		Path:  item.AudioPath,
		Kind:  kind,
		Key:   &k,
		Label: key.String(),
	}
}

// apply executes one operator command. Returns true on Quit.
func (c *Controller) apply(ctx context.Context, cmd Command) bool {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	switch cmd {
	case CmdQuit:
		return true

	case CmdPauseToggle:
		if c.opts.Player.IsPaused() {
			c.opts.Player.Resume()
			slog.Info("resumed")
		} else if c.opts.Player.IsBusy() {
			c.opts.Player.Pause()
			slog.Info("paused")
		}

	case CmdSkip:
		c.skip(ctx)

	case CmdBanish:
		if current == nil || current.Kind != model.KindSong || current.SongID == "" {
			return false
		}
		if err := c.opts.Rotation.Banish(current.SongID); err != nil {
			slog.Warn("banish failed", "song", current.SongID, "error", err)
			return false
		}
		c.persistRotation()
		slog.Info("banished", "song", current.Label)
		c.skip(ctx)

	case CmdFlag:
		if current == nil || current.Key == nil {
			return false
		}
		if err := c.opts.Content.MarkFlagged(*current.Key); err != nil {
			slog.Warn("flag failed", "key", current.Key.String(), "error", err)
			return false
		}
		slog.Info("flagged for regeneration", "key", current.Key.String())

	case CmdPromote:
		if current == nil || current.Kind != model.KindSong || current.SongID == "" {
			return false
		}
		if err := c.opts.Rotation.Promote(current.SongID); err != nil {
			slog.Warn("promote failed", "song", current.SongID, "error", err)
			return false
		}
		c.persistRotation()
		slog.Info("promoted to core", "song", current.Label)
	}
	return false
}

// skip cuts the current item without crediting a play and advances.
func (c *Controller) skip(ctx context.Context) {
	c.opts.Player.Stop()
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.advance(ctx)
}

func (c *Controller) showPlayedToday(ctx context.Context, showID string, now time.Time) bool {
	if c.opts.State != nil {
		played, err := c.opts.State.ShowPlayedOn(ctx, showID, now)
		if err != nil {
			slog.Warn("show log read failed", "error", err)
			return false
		}
		return played
	}
	return c.showPlayedDay == now.Format("2006-01-02")
}

func (c *Controller) markShowPlayed(ctx context.Context, showID string, now time.Time) {
	if c.opts.State != nil {
		if err := c.opts.State.MarkShowPlayed(ctx, showID, now); err != nil {
			slog.Warn("show log write failed", "error", err)
		}
		return
	}
	c.showPlayedDay = now.Format("2006-01-02")
}

// rescan refreshes the catalog from the music directory after the watcher
// reports changes. New songs enter rotation as Discovery.
func (c *Controller) rescan() {
	res, err := c.opts.Catalog.ScanDirectory(c.opts.Config.Paths.MusicDir, catalog.FileReader{})
	if err != nil {
		slog.Error("rescan failed", "error", err)
		c.mu.Lock()
		c.errorCount++
		c.mu.Unlock()
		return
	}
	for _, id := range res.Accepted {
		c.opts.Rotation.EnsureRecord(id)
	}
	if err := c.opts.Catalog.Save(c.opts.Config.Paths.Catalog); err != nil {
		slog.Warn("catalog save failed", "error", err)
	}
	slog.Info("rescan complete", "accepted", len(res.Accepted), "failed", len(res.Failed))
}

// persistRotation saves rotation state best-effort. A save miss never stops
// playback.
func (c *Controller) persistRotation() {
	if err := c.opts.Rotation.Save(c.opts.Config.Paths.Rotation); err != nil {
		slog.Warn("rotation save failed", "error", err)
	}
}

func (c *Controller) restoreVolume(ctx context.Context) {
	if c.opts.State == nil {
		return
	}
	if v, ok := c.opts.State.GetState(ctx, volumeStateKey); ok {
		if vol, err := strconv.ParseFloat(v, 64); err == nil {
			c.opts.Player.SetVolume(vol)
		}
	}
}

func (c *Controller) setIdle(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasIdle := c.idle
	c.idle = msg != ""
	c.message = msg
	if c.idle && !wasIdle {
		slog.Warn("station idle", "reason", msg)
	}
}

// shutdown stops playback, persists state and returns within the grace
// period.
func (c *Controller) shutdown(ctx context.Context) error {
	slog.Info("station shutting down")
	grace := time.Duration(c.opts.Config.Station.ShutdownGrace)
	if grace <= 0 {
		grace = 2 * time.Second
	}

	c.opts.Player.Stop()
	done := make(chan struct{})
	go func() {
		c.opts.Player.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("player did not shut down within grace period")
	}

	c.persistRotation()
	if c.opts.State != nil {
		vol := fmt.Sprintf("%.2f", c.opts.Player.Volume())
		if err := c.opts.State.SetState(ctx, volumeStateKey, vol); err != nil {
			slog.Warn("volume save failed", "error", err)
		}
	}
	return nil
}

// Status produces a snapshot for any display surface.
func (c *Controller) Status() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		State:       StateStopped,
		Persona:     c.prevPersona,
		QueueLength: c.queue.Len(),
		SongsPlayed: c.songsPlayed,
		Errors:      c.errorCount,
		Message:     c.message,
	}
	if !c.startedAt.IsZero() {
		snap.Uptime = c.opts.Now().Sub(c.startedAt)
	}
	if c.idle {
		snap.State = StateIdle
	}
	if c.current != nil {
		snap.CurrentKind = c.current.Kind
		snap.CurrentLabel = c.current.Label
		if c.opts.Player.IsPaused() {
			snap.State = StatePaused
		} else {
			snap.State = StatePlaying
		}
	}
	if next, ok := c.queue.Peek(); ok {
		snap.NextLabel = next.Label
	} else {
		snap.NextLabel = "unknown"
	}
	return snap
}
