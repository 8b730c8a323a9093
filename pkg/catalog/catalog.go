// Package catalog owns the music library: the persistent song catalog and
// the directory scanner that populates it.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/renameio/v2"

	"aetherfm/pkg/model"
)

// MusicLibraryError signals a fatal library problem (unreadable music
// directory, broken catalog file).
type MusicLibraryError struct {
	Path string
	Err  error
}

func (e *MusicLibraryError) Error() string {
	return fmt.Sprintf("music library %s: %v", e.Path, e.Err)
}

func (e *MusicLibraryError) Unwrap() error { return e.Err }

// MetadataError signals a single unusable catalog entry or file.
type MetadataError struct {
	Ref    string
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata %s: %s", e.Ref, e.Reason)
}

// Catalog is the persistent map from song id to metadata.
type Catalog struct {
	mu    sync.RWMutex
	songs map[string]*model.Song
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{songs: make(map[string]*model.Song)}
}

// AddSong inserts or replaces a song and returns its id.
func (c *Catalog) AddSong(s *model.Song) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.ID == "" {
		s.ID = model.SongID(s.Artist, s.Title)
	}
	c.songs[s.ID] = s
	return s.ID
}

// GetSong returns the song with the given id, or nil.
func (c *Catalog) GetSong(id string) *model.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.songs[id]
}

// AllSongs returns every song sorted by id. The order is the canonical
// "catalog order" used by the pipeline's target enumeration.
func (c *Catalog) AllSongs() []*model.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Song, 0, len(c.songs))
	for _, s := range c.songs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of songs.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.songs)
}

// persistedSong tolerates missing optional fields on load.
type persistedSong struct {
	Artist          string  `json:"artist"`
	Title           string  `json:"title"`
	Album           string  `json:"album,omitempty"`
	Year            int     `json:"year,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Path            string  `json:"path"`
}

// Save writes the catalog to path with atomic-replace semantics.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	out := make(map[string]persistedSong, len(c.songs))
	for id, s := range c.songs {
		out[id] = persistedSong{
			Artist: s.Artist, Title: s.Title, Album: s.Album,
			Year: s.Year, DurationSeconds: s.DurationSeconds, Path: s.Path,
		}
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// Load reads a catalog from path. Entries missing required fields are skipped
// with a warning; an unreadable or unparseable file is fatal.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MusicLibraryError{Path: path, Err: err}
	}
	var raw map[string]persistedSong
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MusicLibraryError{Path: path, Err: err}
	}

	c := New()
	for id, p := range raw {
		if p.Artist == "" || p.Title == "" || p.Path == "" {
			slog.Warn("Catalog: skipping entry with missing required fields", "id", id)
			continue
		}
		if p.DurationSeconds <= 0 {
			slog.Warn("Catalog: skipping entry with invalid duration", "id", id)
			continue
		}
		c.songs[id] = &model.Song{
			ID: id, Artist: p.Artist, Title: p.Title, Album: p.Album,
			Year: p.Year, DurationSeconds: p.DurationSeconds, Path: p.Path,
		}
	}
	return c, nil
}
