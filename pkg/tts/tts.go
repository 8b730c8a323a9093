// Package tts defines the speech synthesis interface used by the content
// pipeline and validation shared by its backends.
package tts

import (
	"context"
	"fmt"
	"os"
)

const (
	// MinAudioSize is the minimum size of a synthesized audio file (1KB).
	// Files smaller than this are likely failed synthesis attempts.
	MinAudioSize = 1024
)

// Synthesizer generates spoken audio from a script.
type Synthesizer interface {
	// Synthesize renders text with the given voice and writes the result to
	// outputPath. Returns the audio format ("mp3", "wav").
	Synthesize(ctx context.Context, text, voice, outputPath string) (string, error)
}

// SynthesisError is a TTS backend failure. Fatal failures (auth, bad voice)
// will not resolve by retrying within the run.
type SynthesisError struct {
	Fatal bool
	Err   error
}

func (e *SynthesisError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("tts (fatal): %v", e.Err)
	}
	return fmt.Sprintf("tts: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a SynthesisError marked fatal.
func IsFatal(err error) bool {
	se, ok := err.(*SynthesisError)
	return ok && se.Fatal
}

// ValidateOutput checks that a synthesized file exists and is plausibly audio.
// Undersized files are removed so they are not mistaken for finished content.
func ValidateOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &SynthesisError{Err: fmt.Errorf("output missing: %w", err)}
	}
	if info.Size() < MinAudioSize {
		os.Remove(path)
		return &SynthesisError{Err: fmt.Errorf("output too small (%d bytes), synthesis likely failed", info.Size())}
	}
	return nil
}
