// Package watcher monitors the music directory and reports changes so the
// station can rescan without a restart.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Service watches a music directory. Rapid bursts of filesystem events are
// debounced into a single notification on Changes.
type Service struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	changes  chan struct{}
}

// NewService creates a watcher for dir. Notifications arrive on Changes
// after Start.
func NewService(dir string, debounce time.Duration) (*Service, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Service{
		dir:      dir,
		watcher:  w,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
	}, nil
}

// Changes delivers one signal per debounced burst of music dir changes.
func (s *Service) Changes() <-chan struct{} {
	return s.changes
}

// Start runs the watch loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.watchLoop(ctx)
}

func (s *Service) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			s.watcher.Close()
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isAudioFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				slog.Debug("music dir changed", "op", event.Op.String(), "path", event.Name)
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(s.debounce, s.notify)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("music watcher error", "error", err)
		}
	}
}

func (s *Service) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func isAudioFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".wav")
}
