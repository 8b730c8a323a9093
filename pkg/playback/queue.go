// Package playback manages the station's playback queue.
package playback

import (
	"log/slog"
	"sync"

	"aetherfm/pkg/model"
)

// Queue is the ordered list of items waiting to play. Mutations are
// goroutine-safe; PushFront inserts a whole group atomically so a reader
// never observes an intro separated from its song.
type Queue struct {
	mu    sync.RWMutex
	items []model.QueueItem
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{items: make([]model.QueueItem, 0)}
}

// Enqueue appends items to the back of the queue.
func (q *Queue) Enqueue(items ...model.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	slog.Debug("queue: enqueued", "count", len(items), "queue_len", len(q.items))
}

// PushFront inserts items at the head of the queue in the given order, as a
// single operation. The first item passed plays first.
func (q *Queue) PushFront(items ...model.QueueItem) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]model.QueueItem{}, items...), q.items...)
	slog.Debug("queue: pushed front", "count", len(items), "queue_len", len(q.items))
}

// Pop removes and returns the head of the queue. ok is false when empty.
func (q *Queue) Pop() (item model.QueueItem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.QueueItem{}, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (item model.QueueItem, ok bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.items) == 0 {
		return model.QueueItem{}, false
	}
	return q.items[0], true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued items in play order.
func (q *Queue) Snapshot() []model.QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]model.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Clear removes all queued items.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// HasSong reports whether a song with the given id is queued.
func (q *Queue) HasSong(songID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, it := range q.items {
		if it.Kind == model.KindSong && it.SongID == songID {
			return true
		}
	}
	return false
}
