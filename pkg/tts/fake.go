package tts

import (
	"context"
	"encoding/binary"
	"os"
)

// FakeSynthesizer writes a short silent WAV file. Used by tests and --test
// runs so the pipeline can be exercised without a TTS backend.
type FakeSynthesizer struct{}

// Synthesize implements Synthesizer.
func (FakeSynthesizer) Synthesize(_ context.Context, _, _ string, outputPath string) (string, error) {
	if err := os.WriteFile(outputPath, silentWAV(), 0o644); err != nil {
		return "", &SynthesisError{Err: err}
	}
	return "wav", nil
}

// silentWAV builds a minimal mono 16-bit 22.05kHz WAV of silence, sized above
// MinAudioSize so validation accepts it.
func silentWAV() []byte {
	const sampleRate = 22050
	const samples = 2048

	dataSize := samples * 2
	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, []byte("WAVEfmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate*2)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	buf = append(buf, make([]byte, dataSize)...)
	return buf
}
