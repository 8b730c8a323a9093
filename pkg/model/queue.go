package model

// QueueKind classifies an item in the playback queue.
type QueueKind string

const (
	KindSong         QueueKind = "song"
	KindIntro        QueueKind = "intro"
	KindOutro        QueueKind = "outro"
	KindAnnouncement QueueKind = "announcement"
	KindShowSegment  QueueKind = "show_segment"
)

// QueueItem is one entry of the playback queue. SongID is set for Song items
// and for the intro/outro that belongs to a song; Key is set for items backed
// by the content store.
type QueueItem struct {
	Path   string
	Kind   QueueKind
	SongID string
	Key    *ContentKey
	Label  string
}
