package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"aetherfm/pkg/model"
)

// FileReader is the built-in MetadataReader. Artist and title come from the
// "Artist - Title.ext" filename convention; the duration comes from decoding
// the audio header.
type FileReader struct{}

// Read implements MetadataReader.
func (FileReader) Read(path string) (Metadata, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	artist, title, ok := strings.Cut(base, " - ")
	if !ok {
		// Single-part names become self-titled entries.
		artist, title = base, base
	}

	dur, err := probeDuration(path)
	if err != nil {
		return Metadata{}, err
	}

	return Metadata{
		Artist:          strings.TrimSpace(artist),
		Title:           strings.TrimSpace(title),
		DurationSeconds: dur,
	}, nil
}

func probeDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		return 0, fmt.Errorf("unsupported audio format: %s", path)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	defer streamer.Close()

	if format.SampleRate == 0 {
		return 0, fmt.Errorf("zero sample rate in %s", path)
	}
	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}

func songFromMeta(meta Metadata, path string) *model.Song {
	return &model.Song{
		ID:              model.SongID(meta.Artist, meta.Title),
		Artist:          meta.Artist,
		Title:           meta.Title,
		Album:           meta.Album,
		Year:            meta.Year,
		DurationSeconds: meta.DurationSeconds,
		Path:            path,
	}
}
