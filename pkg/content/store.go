// Package content is the filesystem-backed store for generated scripts,
// audit records and synthesized audio. The on-disk tree is a stable,
// human-inspectable contract:
//
//	<root>/<content_type>/<persona_id>/<target_id>/
//	  script.txt
//	  audit.json
//	  audio.wav
//	  flagged        (empty marker: regenerate on next run)
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	"aetherfm/pkg/model"
)

const (
	scriptFile  = "script.txt"
	auditFile   = "audit.json"
	audioFile   = "audio.wav"
	flaggedFile = "flagged"
)

// ContentStoreError signals misuse of the store (for example writing audio
// without a passing audit). It is a programming error, not a runtime
// condition to retry.
type ContentStoreError struct {
	Key    model.ContentKey
	Reason string
}

func (e *ContentStoreError) Error() string {
	return fmt.Sprintf("content store %s: %s", e.Key, e.Reason)
}

// Store provides access to the content tree under a root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the canonical directory for a key.
func (s *Store) Dir(key model.ContentKey) string {
	return filepath.Join(s.root, string(key.Type), string(key.Persona), key.Target)
}

// AudioPath returns the canonical audio file path for a key.
func (s *Store) AudioPath(key model.ContentKey) string {
	return filepath.Join(s.Dir(key), audioFile)
}

// ReadItem derives a ContentItem from the files present for key.
func (s *Store) ReadItem(key model.ContentKey) (*model.ContentItem, error) {
	dir := s.Dir(key)
	item := &model.ContentItem{Key: key, Status: model.StatusAbsent}

	script, err := os.ReadFile(filepath.Join(dir, scriptFile))
	if err != nil {
		if os.IsNotExist(err) {
			return item, nil
		}
		return nil, fmt.Errorf("failed to read script for %s: %w", key, err)
	}
	item.Script = string(script)
	item.Status = model.StatusScriptOnly

	if data, err := os.ReadFile(filepath.Join(dir, auditFile)); err == nil {
		var rec model.AuditRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("corrupt audit record for %s: %w", key, err)
		}
		item.Audit = &rec
		if rec.Passed {
			item.Status = model.StatusAuditedPass
		} else {
			item.Status = model.StatusAuditedFail
		}
	}

	audioPath := filepath.Join(dir, audioFile)
	if _, err := os.Stat(audioPath); err == nil {
		item.AudioPath = audioPath
		item.Status = model.StatusAudioReady
	}

	if _, err := os.Stat(filepath.Join(dir, flaggedFile)); err == nil {
		item.Status = model.StatusFlagged
	}

	return item, nil
}

// WriteScript stores a new script for key. Any prior audit, audio and flag
// for the same key are cleared: a new script invalidates everything derived
// from the old one.
func (s *Store) WriteScript(key model.ContentKey, text string) error {
	dir := s.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create content dir for %s: %w", key, err)
	}
	if len(text) == 0 || text[len(text)-1] != '\n' {
		text += "\n"
	}
	if err := renameio.WriteFile(filepath.Join(dir, scriptFile), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write script for %s: %w", key, err)
	}
	for _, stale := range []string{auditFile, audioFile, flaggedFile} {
		if err := os.Remove(filepath.Join(dir, stale)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear stale %s for %s: %w", stale, key, err)
		}
	}
	return nil
}

// WriteAudit stores an audit record for key.
func (s *Store) WriteAudit(key model.ContentKey, rec *model.AuditRecord) error {
	dir := s.Dir(key)
	if _, err := os.Stat(filepath.Join(dir, scriptFile)); err != nil {
		return &ContentStoreError{Key: key, Reason: "audit without script"}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit for %s: %w", key, err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(filepath.Join(dir, auditFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit for %s: %w", key, err)
	}
	return nil
}

// WriteAudio stores synthesized audio for key. Audio without a passing audit
// is a programming error. The filename is part of the on-disk contract
// regardless of the codec the synthesizer delivered; the player sniffs the
// stream, it does not trust the extension.
func (s *Store) WriteAudio(key model.ContentKey, audio []byte) error {
	item, err := s.ReadItem(key)
	if err != nil {
		return err
	}
	if item.Audit == nil || !item.Audit.Passed {
		return &ContentStoreError{Key: key, Reason: "audio requires a passing audit"}
	}
	if err := renameio.WriteFile(s.AudioPath(key), audio, 0o644); err != nil {
		return fmt.Errorf("failed to write audio for %s: %w", key, err)
	}
	return nil
}

// MarkFlagged drops the regenerate marker for key.
func (s *Store) MarkFlagged(key model.ContentKey) error {
	dir := s.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create content dir for %s: %w", key, err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, flaggedFile), nil, 0o644); err != nil {
		return fmt.Errorf("failed to flag %s: %w", key, err)
	}
	return nil
}

// ClearFlag removes the regenerate marker for key.
func (s *Store) ClearFlag(key model.ContentKey) error {
	if err := os.Remove(filepath.Join(s.Dir(key), flaggedFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear flag for %s: %w", key, err)
	}
	return nil
}

// Filter narrows Enumerate's results. Zero values match everything.
type Filter struct {
	Type    model.ContentType
	Persona model.PersonaID
	Status  model.ItemStatus
}

// Enumerate lists existing item keys matching the filter, in path order.
func (s *Store) Enumerate(f Filter) ([]model.ContentKey, error) {
	var keys []model.ContentKey

	types, err := listDir(s.root)
	if err != nil {
		return nil, err
	}
	for _, ct := range types {
		if f.Type != "" && model.ContentType(ct) != f.Type {
			continue
		}
		personas, err := listDir(filepath.Join(s.root, ct))
		if err != nil {
			return nil, err
		}
		for _, p := range personas {
			if f.Persona != "" && model.PersonaID(p) != f.Persona {
				continue
			}
			targets, err := listDir(filepath.Join(s.root, ct, p))
			if err != nil {
				return nil, err
			}
			for _, target := range targets {
				key := model.ContentKey{
					Type:    model.ContentType(ct),
					Persona: model.PersonaID(p),
					Target:  target,
				}
				if f.Status != "" {
					item, err := s.ReadItem(key)
					if err != nil {
						return nil, err
					}
					if item.Status != f.Status {
						continue
					}
				}
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
