package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"aetherfm/pkg/model"
)

// Event is one progress update from the orchestrator.
type Event struct {
	Stage    string
	Key      model.ContentKey
	Counters Counters
	Total    int
}

// Sink consumes progress updates. A terminal renderer is one consumer,
// tests are another.
type Sink interface {
	Update(Event)
}

// NopSink discards progress updates.
type NopSink struct{}

func (NopSink) Update(Event) {}

// LogSink reports progress through slog at debug level.
type LogSink struct{}

func (LogSink) Update(ev Event) {
	slog.Debug("pipeline progress",
		"stage", ev.Stage,
		"key", ev.Key.String(),
		"processed", ev.Counters.Processed,
		"failed", ev.Counters.Failed,
		"skipped", ev.Counters.Skipped,
		"total", ev.Total)
}

// Summary is the human-readable outcome of a run.
type Summary struct {
	Stages   map[string]Counters
	Failures map[string]string // key -> reason
}

// Render formats the summary for the operator.
func (s *Summary) Render() string {
	var b strings.Builder
	for _, stage := range []string{StageGenerate, StageAudit, StageSynthesize} {
		c, ok := s.Stages[stage]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%-10s processed=%d passed=%d failed=%d skipped=%d\n",
			stage, c.Processed, c.Passed, c.Failed, c.Skipped)
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "failures (%d):\n", len(s.Failures))
		keys := make([]string, 0, len(s.Failures))
		for k := range s.Failures {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		const topN = 10
		for i, k := range keys {
			if i >= topN {
				fmt.Fprintf(&b, "  ... and %d more\n", len(keys)-topN)
				break
			}
			fmt.Fprintf(&b, "  %s: %s\n", k, s.Failures[k])
		}
	}
	return b.String()
}

// FailureCount returns the total failed items across stages.
func (s *Summary) FailureCount() int {
	n := 0
	for _, c := range s.Stages {
		n += c.Failed
	}
	return n
}
