package llm

import (
	"context"
	"fmt"
	"hash/fnv"

	"aetherfm/pkg/model"
)

// FakeWriter is a deterministic WriterClient for tests and --test runs.
type FakeWriter struct{}

// Write returns a short deterministic script derived from the brief.
func (FakeWriter) Write(_ context.Context, brief Brief) (string, error) {
	name := "the station"
	if brief.Persona != nil {
		name = brief.Persona.DisplayName
	}
	return fmt.Sprintf("This is %s with a %s for %s. Stay tuned.", name, brief.ContentType, brief.Target), nil
}

// FakeAuditor is a deterministic AuditorClient. Scores derive from a hash of
// the script so reruns reproduce the same verdicts. PassEverything skips the
// hash and always passes.
type FakeAuditor struct {
	Threshold      float64
	PassEverything bool
}

// Audit implements AuditorClient.
func (f FakeAuditor) Audit(_ context.Context, script string, _ model.PersonaID, _ model.ContentType) (*model.AuditRecord, error) {
	score := 10.0
	if !f.PassEverything {
		h := fnv.New32a()
		h.Write([]byte(script))
		// Range [6.0, 9.5]: most scripts pass a 7.0 threshold, some fail.
		score = 6.0 + float64(h.Sum32()%36)/10.0
	}
	rec := &model.AuditRecord{
		OverallScore: score,
		Passed:       score >= f.Threshold,
		CriteriaScores: map[string]float64{
			"voice_fit": score, "factuality": score, "brevity": score,
			"tone": score, "naturalness": score,
		},
		Notes:       "fake audit",
		RawResponse: fmt.Sprintf(`{"overall_score": %.1f}`, score),
	}
	if !rec.Passed {
		rec.Issues = []string{"score_below_threshold"}
	}
	return rec, nil
}
