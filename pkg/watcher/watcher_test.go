package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifiesOnAudioChange(t *testing.T) {
	dir := t.TempDir()
	s, err := NewService(dir, 50*time.Millisecond)
	require.NoError(t, err)
	s.Start(t.Context())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new song.mp3"), []byte("x"), 0o644))

	select {
	case <-s.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification for a new audio file")
	}
}

func TestIgnoresNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewService(dir, 50*time.Millisecond)
	require.NoError(t, err)
	s.Start(t.Context())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-s.Changes():
		t.Fatal("unexpected notification for a non-audio file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	s, err := NewService(dir, 100*time.Millisecond)
	require.NoError(t, err)
	s.Start(t.Context())

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte{byte(i)}, 0o644))
	}

	select {
	case <-s.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after burst")
	}
	select {
	case <-s.Changes():
		t.Fatal("burst produced more than one notification")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMissingDirectory(t *testing.T) {
	_, err := NewService(filepath.Join(t.TempDir(), "nope"), time.Second)
	assert.Error(t, err)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, isAudioFile("/m/track.mp3"))
	assert.True(t, isAudioFile("/m/Track.WAV"))
	assert.False(t, isAudioFile("/m/cover.jpg"))
	assert.False(t, isAudioFile("/m/notes.txt"))
}
