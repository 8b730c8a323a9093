package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"aetherfm/pkg/model"
)

// AuditCriteria is the closed set of criterion names an auditor scores.
var AuditCriteria = []string{"voice_fit", "factuality", "brevity", "tone", "naturalness"}

// auditResponse is the wire shape the auditor model is prompted to return.
type auditResponse struct {
	OverallScore   float64            `json:"overall_score"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Issues         []string           `json:"issues"`
	Notes          string             `json:"notes"`
}

// ParseAuditRecord parses a raw auditor response into an AuditRecord,
// computing passed against the threshold. Unparseable input yields an
// AuditorError of kind Malformed.
func ParseAuditRecord(raw string, threshold float64) (*model.AuditRecord, error) {
	cleaned := CleanJSONBlock(raw)
	var resp auditResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, &AuditorError{Kind: KindMalformed, Err: fmt.Errorf("unparseable audit response: %w", err), Raw: raw}
	}
	if resp.CriteriaScores == nil {
		resp.CriteriaScores = map[string]float64{}
	}
	return &model.AuditRecord{
		OverallScore:   resp.OverallScore,
		Passed:         resp.OverallScore >= threshold,
		CriteriaScores: resp.CriteriaScores,
		Issues:         resp.Issues,
		Notes:          resp.Notes,
		RawResponse:    raw,
	}, nil
}

// MalformedAuditRecord builds the failed audit recorded when the auditor's
// output could not be parsed. It consumes a regeneration credit like any
// other failed audit.
func MalformedAuditRecord(raw string) *model.AuditRecord {
	return &model.AuditRecord{
		OverallScore:   0,
		Passed:         false,
		CriteriaScores: map[string]float64{},
		Issues:         []string{model.IssueUnparseable},
		RawResponse:    raw,
	}
}

// CleanJSONBlock removes markdown code fences from a JSON string if present.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "```json")
	if start != -1 {
		text = text[start+len("```json"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	start = strings.Index(text, "```")
	if start != -1 {
		text = text[start+len("```"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	return text
}
