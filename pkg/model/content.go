package model

import "fmt"

// ContentType is the closed set of speech content the pipeline produces.
type ContentType string

const (
	TypeSongIntro ContentType = "song_intro"
	TypeSongOutro ContentType = "song_outro"
	TypeTime      ContentType = "time"
	TypeWeather   ContentType = "weather"
	TypeShowIntro ContentType = "show_intro"
	TypeShowOutro ContentType = "show_outro"
	TypeHandoff   ContentType = "handoff"
)

// AllContentTypes lists every content type in pipeline order.
var AllContentTypes = []ContentType{
	TypeSongIntro,
	TypeSongOutro,
	TypeTime,
	TypeWeather,
	TypeShowIntro,
	TypeShowOutro,
	TypeHandoff,
}

// Valid reports whether ct is one of the known content types.
func (ct ContentType) Valid() bool {
	for _, t := range AllContentTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// ContentKey uniquely identifies one content item: what it is, who speaks it,
// and what it is about (a song id, an HH-MM slot, a weather window or a show
// id).
type ContentKey struct {
	Type    ContentType
	Persona PersonaID
	Target  string
}

func (k ContentKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Type, k.Persona, k.Target)
}

// ItemStatus describes how far through the pipeline a content item has come.
type ItemStatus string

const (
	StatusAbsent      ItemStatus = "absent"
	StatusScriptOnly  ItemStatus = "script_only"
	StatusAuditedPass ItemStatus = "audited_pass"
	StatusAuditedFail ItemStatus = "audited_fail"
	StatusAudioReady  ItemStatus = "audio_ready"
	StatusFlagged     ItemStatus = "flagged"
)

// ContentItem is the read-model of one on-disk content entry. Status is
// derived from which artifacts exist.
type ContentItem struct {
	Key       ContentKey
	Script    string
	AudioPath string
	Audit     *AuditRecord
	Status    ItemStatus
}

// AuditRecord is the auditor's verdict on a script. Immutable once written;
// regeneration replaces it wholesale.
type AuditRecord struct {
	OverallScore   float64            `json:"overall_score"`
	Passed         bool               `json:"passed"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Issues         []string           `json:"issues"`
	Notes          string             `json:"notes"`
	RawResponse    string             `json:"raw_response"`
}

// IssueUnparseable is the well-known issue string recorded when the auditor
// returns output that cannot be parsed into an AuditRecord.
const IssueUnparseable = "auditor_output_unparseable"
