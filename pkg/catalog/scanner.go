package catalog

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Metadata is what a tag reader extracts from one music file.
type Metadata struct {
	Artist          string
	Title           string
	Album           string
	Year            int
	DurationSeconds float64
}

// MetadataReader extracts metadata from a single music file. The concrete
// tag/codec handling lives behind this interface.
type MetadataReader interface {
	Read(path string) (Metadata, error)
}

// ScanFailure records one file the scanner could not ingest.
type ScanFailure struct {
	Path   string
	Reason string
}

// ScanResult is the outcome of one directory scan.
type ScanResult struct {
	Accepted []string // song ids added or refreshed
	Failed   []ScanFailure
}

// ScanDirectory walks dir recursively and adds every readable music file to
// the catalog. A bad file is a reported failure; an unreadable root is fatal.
func (c *Catalog) ScanDirectory(dir string, reader MetadataReader) (*ScanResult, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, &MusicLibraryError{Path: dir, Err: err}
	}

	res := &ScanResult{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			res.Failed = append(res.Failed, ScanFailure{Path: path, Reason: err.Error()})
			return nil
		}
		if d.IsDir() || !isMusicFile(path) {
			return nil
		}

		meta, err := reader.Read(path)
		if err != nil {
			res.Failed = append(res.Failed, ScanFailure{Path: path, Reason: err.Error()})
			return nil
		}
		if meta.Artist == "" || meta.Title == "" {
			res.Failed = append(res.Failed, ScanFailure{Path: path, Reason: "missing artist or title"})
			return nil
		}
		if meta.DurationSeconds <= 0 {
			res.Failed = append(res.Failed, ScanFailure{Path: path, Reason: "invalid duration"})
			return nil
		}

		id := c.AddSong(songFromMeta(meta, path))
		res.Accepted = append(res.Accepted, id)
		return nil
	})
	if err != nil {
		return nil, &MusicLibraryError{Path: dir, Err: err}
	}

	slog.Info("Catalog: scan complete", "dir", dir, "accepted", len(res.Accepted), "failed", len(res.Failed))
	return res, nil
}

func isMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav":
		return true
	}
	return false
}
