package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAndAnalyze(t *testing.T) {
	probes := []Probe{
		{Name: "writer", Check: func(context.Context) error { return nil }, Critical: true},
		{Name: "weather", Check: func(context.Context) error { return errors.New("unreachable") }},
	}
	results := Run(t.Context(), probes, time.Second)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)

	// The failing probe is not critical, so startup proceeds.
	assert.NoError(t, Analyze(results))
}

func TestAnalyzeCriticalFailure(t *testing.T) {
	probes := []Probe{
		{Name: "writer", Check: func(context.Context) error { return errors.New("no api key") }, Critical: true},
	}
	err := Analyze(Run(t.Context(), probes, time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writer")
}

func TestRunAppliesTimeout(t *testing.T) {
	probes := []Probe{
		{Name: "hang", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}
	start := time.Now()
	results := Run(t.Context(), probes, 50*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
}
