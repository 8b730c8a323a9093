package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"aetherfm/pkg/model"
)

// Stage names in execution order.
const (
	StageGenerate   = "generate"
	StageAudit      = "audit"
	StageSynthesize = "synthesize"
)

// Stage statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// CheckpointError is a failure to record pipeline progress. It is fatal: the
// run refuses to proceed when it cannot checkpoint.
type CheckpointError struct {
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint write failed: %v", e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// Counters tallies item outcomes within a stage.
type Counters struct {
	Processed int `json:"processed"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// StageState is the durable per-stage progress record.
type StageState struct {
	Status        string          `json:"status"`
	Counters      Counters        `json:"counters"`
	CompletedKeys map[string]bool `json:"completed_keys"`
}

// Snapshot pins the run configuration a checkpoint belongs to. A resume must
// match the snapshot; in particular the ordering may not change mid-run.
type Snapshot struct {
	ContentTypes []model.ContentType `json:"content_types"`
	Personas     []model.PersonaID   `json:"personas"`
	Limit        int                 `json:"limit"`
	TestMode     bool                `json:"test_mode"`
	Ordering     string              `json:"ordering"`
}

// Checkpoint is the singleton progress record of a pipeline run. It is
// written after every successful item, atomically.
type Checkpoint struct {
	RunID     string                 `json:"run_id"`
	CreatedAt time.Time              `json:"created_at"`
	Config    Snapshot               `json:"config_snapshot"`
	Stages    map[string]*StageState `json:"stages"`

	path string
}

// NewCheckpoint creates a fresh checkpoint for a run.
func NewCheckpoint(path string, snap Snapshot) *Checkpoint {
	now := time.Now()
	cp := &Checkpoint{
		RunID:     fmt.Sprintf("%s-%s", now.Format("20060102-150405"), strings.Split(uuid.New().String(), "-")[0]),
		CreatedAt: now,
		Config:    snap,
		Stages:    make(map[string]*StageState),
		path:      path,
	}
	for _, st := range []string{StageGenerate, StageAudit, StageSynthesize} {
		cp.Stages[st] = &StageState{Status: StatusNotStarted, CompletedKeys: make(map[string]bool)}
	}
	return cp
}

// LoadCheckpoint reads an existing checkpoint for resume.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint: %w", err)
	}
	cp.path = path
	for _, st := range []string{StageGenerate, StageAudit, StageSynthesize} {
		if cp.Stages[st] == nil {
			cp.Stages[st] = &StageState{Status: StatusNotStarted, CompletedKeys: make(map[string]bool)}
		}
		if cp.Stages[st].CompletedKeys == nil {
			cp.Stages[st].CompletedKeys = make(map[string]bool)
		}
	}
	return &cp, nil
}

// Matches reports whether a resume snapshot is compatible with this
// checkpoint's recorded configuration.
func (cp *Checkpoint) Matches(snap Snapshot) bool {
	if cp.Config.Ordering != snap.Ordering || cp.Config.TestMode != snap.TestMode || cp.Config.Limit != snap.Limit {
		return false
	}
	if len(cp.Config.ContentTypes) != len(snap.ContentTypes) || len(cp.Config.Personas) != len(snap.Personas) {
		return false
	}
	for i, ct := range cp.Config.ContentTypes {
		if snap.ContentTypes[i] != ct {
			return false
		}
	}
	for i, p := range cp.Config.Personas {
		if snap.Personas[i] != p {
			return false
		}
	}
	return true
}

// Save writes the checkpoint atomically. Failure is fatal for the run.
func (cp *Checkpoint) Save() error {
	if err := os.MkdirAll(filepath.Dir(cp.path), 0o755); err != nil {
		return &CheckpointError{Err: err}
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return &CheckpointError{Err: err}
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(cp.path, data, 0o644); err != nil {
		return &CheckpointError{Err: err}
	}
	return nil
}

// IsCompleted reports whether a key is recorded complete for a stage.
func (cp *Checkpoint) IsCompleted(stage string, key model.ContentKey) bool {
	return cp.Stages[stage].CompletedKeys[key.String()]
}

// MarkCompleted records a key as complete for a stage and persists.
func (cp *Checkpoint) MarkCompleted(stage string, key model.ContentKey) error {
	cp.Stages[stage].CompletedKeys[key.String()] = true
	return cp.Save()
}

// SetStageStatus updates a stage's status and persists.
func (cp *Checkpoint) SetStageStatus(stage, status string) error {
	cp.Stages[stage].Status = status
	return cp.Save()
}
