// Package llm defines the abstract writer and auditor clients the pipeline
// talks to. Backends are swappable; deterministic fakes are first-class
// citizens for tests and --test runs.
package llm

import (
	"context"

	"aetherfm/pkg/model"
)

// Brief is the assembled input for one script generation.
type Brief struct {
	ContentType model.ContentType
	Persona     *model.Persona
	Target      string
	Prompt      string
}

// WriterClient generates a script from a brief.
type WriterClient interface {
	Write(ctx context.Context, brief Brief) (string, error)
}

// AuditorClient scores a script. Backends parse their raw response into an
// AuditRecord; output that cannot be parsed is reported as an AuditorError
// of kind Malformed, which callers record as a failed audit.
type AuditorClient interface {
	Audit(ctx context.Context, script string, persona model.PersonaID, ct model.ContentType) (*model.AuditRecord, error)
}
