package playback

import (
	"testing"

	"aetherfm/pkg/model"
)

func song(id string) model.QueueItem {
	return model.QueueItem{Kind: model.KindSong, SongID: id, Path: id + ".mp3"}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Enqueue(song("a"), song("b"))
	q.Enqueue(song("c"))

	for _, want := range []string{"a", "b", "c"} {
		it, ok := q.Pop()
		if !ok || it.SongID != want {
			t.Fatalf("Pop = (%v, %v), want song %q", it.SongID, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue returned ok")
	}
}

func TestPushFrontGroupOrder(t *testing.T) {
	q := NewQueue()
	q.Enqueue(song("queued"))

	intro := model.QueueItem{Kind: model.KindIntro, SongID: "x"}
	q.PushFront(intro, song("x"))

	snap := q.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("queue length = %d, want 3", len(snap))
	}
	if snap[0].Kind != model.KindIntro || snap[1].SongID != "x" || snap[2].SongID != "queued" {
		t.Errorf("unexpected order: %v %v %v", snap[0].Kind, snap[1].SongID, snap[2].SongID)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := NewQueue()
	q.Enqueue(song("a"))
	if it, ok := q.Peek(); !ok || it.SongID != "a" {
		t.Fatalf("Peek = (%v, %v)", it.SongID, ok)
	}
	if q.Len() != 1 {
		t.Errorf("Peek removed the item, len = %d", q.Len())
	}
}

func TestHasSong(t *testing.T) {
	q := NewQueue()
	q.Enqueue(song("a"), model.QueueItem{Kind: model.KindIntro, SongID: "b"})
	if !q.HasSong("a") {
		t.Error("HasSong(a) = false")
	}
	// An intro referencing a song does not count as the song itself.
	if q.HasSong("b") {
		t.Error("HasSong(b) matched a non-song item")
	}
}

func TestClear(t *testing.T) {
	q := NewQueue()
	q.Enqueue(song("a"), song("b"))
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("len after Clear = %d", q.Len())
	}
}
