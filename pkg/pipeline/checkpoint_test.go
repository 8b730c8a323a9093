package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherfm/pkg/model"
)

func testSnapshot() Snapshot {
	return Snapshot{
		ContentTypes: []model.ContentType{model.TypeSongIntro, model.TypeTime},
		Personas:     []model.PersonaID{model.PersonaA, model.PersonaB},
		Ordering:     "stage_major",
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "pipeline_state.json")
	cp := NewCheckpoint(path, testSnapshot())

	key := model.ContentKey{Type: model.TypeSongIntro, Persona: model.PersonaA, Target: "s1"}
	require.NoError(t, cp.SetStageStatus(StageGenerate, StatusInProgress))
	require.NoError(t, cp.MarkCompleted(StageGenerate, key))
	cp.Stages[StageGenerate].Counters.Processed = 1

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, loaded.RunID)
	assert.Equal(t, StatusInProgress, loaded.Stages[StageGenerate].Status)
	assert.True(t, loaded.IsCompleted(StageGenerate, key))
	assert.False(t, loaded.IsCompleted(StageAudit, key))
	assert.True(t, loaded.Matches(testSnapshot()))
}

func TestCheckpointMatches(t *testing.T) {
	cp := NewCheckpoint(filepath.Join(t.TempDir(), "cp.json"), testSnapshot())

	cases := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"ordering change", func(s *Snapshot) { s.Ordering = "item_major" }},
		{"test mode change", func(s *Snapshot) { s.TestMode = true }},
		{"limit change", func(s *Snapshot) { s.Limit = 5 }},
		{"types change", func(s *Snapshot) { s.ContentTypes = s.ContentTypes[:1] }},
		{"type order change", func(s *Snapshot) {
			s.ContentTypes = []model.ContentType{model.TypeTime, model.TypeSongIntro}
		}},
		{"personas change", func(s *Snapshot) { s.Personas = s.Personas[:1] }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			snap := testSnapshot()
			c.mutate(&snap)
			assert.False(t, cp.Matches(snap))
		})
	}
	assert.True(t, cp.Matches(testSnapshot()))
}

func TestLoadCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))
	_, err := LoadCheckpoint(path)
	assert.Error(t, err)
}

func TestLoadCheckpointMissing(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSaveFailureIsCheckpointError(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should go makes the atomic replace fail.
	path := filepath.Join(dir, "cp.json")
	require.NoError(t, os.MkdirAll(path, 0o755))

	cp := NewCheckpoint(path, testSnapshot())
	err := cp.Save()
	require.Error(t, err)
	var cpe *CheckpointError
	assert.ErrorAs(t, err, &cpe)
}

func TestSummaryRender(t *testing.T) {
	s := &Summary{
		Stages: map[string]Counters{
			StageGenerate: {Processed: 10, Passed: 9, Failed: 1},
			StageAudit:    {Processed: 9, Passed: 8, Failed: 1},
		},
		Failures: map[string]string{
			"song_intro/A/s1": "writer (persistent): quota exhausted",
		},
	}
	out := s.Render()
	assert.Contains(t, out, "generate")
	assert.Contains(t, out, "processed=10")
	assert.Contains(t, out, "song_intro/A/s1")
	assert.Equal(t, 2, s.FailureCount())
}
