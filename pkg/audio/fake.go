package audio

import (
	"sync"
	"time"
)

// FakePlayer is a Player for tests. Playback never progresses on its own;
// call Complete to simulate a track finishing.
type FakePlayer struct {
	mu         sync.Mutex
	playing    bool
	paused     bool
	volume     float64
	current    string
	onComplete func()

	Played []string
}

// NewFakePlayer creates a fake player at full volume.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{volume: 1.0}
}

// Play implements Player.
func (f *FakePlayer) Play(filepath string, onComplete func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	f.paused = false
	f.current = filepath
	f.onComplete = onComplete
	f.Played = append(f.Played, filepath)
	return nil
}

// Complete simulates the current track finishing and fires its callback.
func (f *FakePlayer) Complete() {
	f.mu.Lock()
	done := f.onComplete
	f.playing = false
	f.paused = false
	f.current = ""
	f.onComplete = nil
	f.mu.Unlock()
	if done != nil {
		done()
	}
}

func (f *FakePlayer) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playing {
		f.paused = true
	}
}

func (f *FakePlayer) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *FakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.paused = false
	f.current = ""
	f.onComplete = nil
}

func (f *FakePlayer) Shutdown() { f.Stop() }

func (f *FakePlayer) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing && !f.paused
}

func (f *FakePlayer) IsBusy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *FakePlayer) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *FakePlayer) SetVolume(vol float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	f.volume = vol
}

func (f *FakePlayer) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

// Current returns the path loaded by the last Play.
func (f *FakePlayer) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *FakePlayer) Position() time.Duration  { return 0 }
func (f *FakePlayer) Duration() time.Duration  { return 0 }
func (f *FakePlayer) Remaining() time.Duration { return 0 }
