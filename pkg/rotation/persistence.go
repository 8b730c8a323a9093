package rotation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"

	"aetherfm/pkg/model"
)

// Save writes the rotation records to path with atomic-replace semantics.
func (e *Engine) Save(path string) error {
	e.mu.RLock()
	out := make(map[string]model.RotationRecord, len(e.records))
	for id, r := range e.records {
		out[id] = *r
	}
	e.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rotation state: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write rotation state: %w", err)
	}
	return nil
}

// LoadRecords reads rotation records from path into the engine, replacing
// any in-memory state. A missing file is not an error.
func (e *Engine) LoadRecords(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read rotation state: %w", err)
	}
	var raw map[string]model.RotationRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse rotation state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = make(map[string]*model.RotationRecord, len(raw))
	for id, r := range raw {
		rec := r
		if !rec.Tier.Valid() {
			rec.Tier = model.TierDiscovery
		}
		e.records[id] = &rec
	}
	return nil
}
