// Package gemini implements the writer and auditor clients on top of the
// Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"aetherfm/pkg/config"
	"aetherfm/pkg/llm"
	"aetherfm/pkg/model"
	"aetherfm/pkg/request"
)

// Client implements llm.WriterClient and llm.AuditorClient for Gemini.
type Client struct {
	genaiClient   *genai.Client
	writerModel   string
	auditorModel  string
	passThreshold float64
	timeout       time.Duration
	backoff       *request.ProviderBackoff
}

// NewClient creates a Gemini client from writer and auditor configuration.
func NewClient(w config.WriterConfig, a config.AuditorConfig, backoff *request.ProviderBackoff) (*Client, error) {
	if w.Key == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: w.Key})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	writerModel := w.Model
	if writerModel == "" {
		writerModel = "gemini-2.5-flash-lite"
	}
	auditorModel := a.Model
	if auditorModel == "" {
		auditorModel = writerModel
	}

	return &Client{
		genaiClient:   gc,
		writerModel:   writerModel,
		auditorModel:  auditorModel,
		passThreshold: a.PassThreshold,
		timeout:       time.Duration(w.Timeout),
		backoff:       backoff,
	}, nil
}

// Write implements llm.WriterClient.
func (c *Client) Write(ctx context.Context, brief llm.Brief) (string, error) {
	text, err := c.generate(ctx, "writer", c.writerModel, brief.Prompt, "")
	if err != nil {
		return "", &llm.WriterError{Kind: classify(err), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &llm.WriterError{Kind: llm.KindBadOutput, Err: errors.New("empty response")}
	}
	return text, nil
}

// Audit implements llm.AuditorClient.
func (c *Client) Audit(ctx context.Context, script string, persona model.PersonaID, ct model.ContentType) (*model.AuditRecord, error) {
	prompt := auditPrompt(script, persona, ct)
	raw, err := c.generate(ctx, "auditor", c.auditorModel, prompt, "application/json")
	if err != nil {
		return nil, &llm.AuditorError{Kind: classify(err), Err: err}
	}
	return llm.ParseAuditRecord(raw, c.passThreshold)
}

// HealthCheck verifies the API is reachable with the configured key.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.generate(ctx, "health", c.writerModel, "Reply with the word OK.", "")
	return err
}

func (c *Client) generate(ctx context.Context, intent, modelName, prompt, mimeType string) (string, error) {
	if c.backoff != nil {
		c.backoff.Wait("gemini")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{}
	if mimeType != "" {
		cfg.ResponseMIMEType = mimeType
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		if c.backoff != nil {
			c.backoff.RecordFailure("gemini")
		}
		return "", fmt.Errorf("generate content (%s): %w", intent, err)
	}

	text, err := responseText(resp)
	if err != nil {
		if c.backoff != nil {
			c.backoff.RecordFailure("gemini")
		}
		return "", err
	}
	if c.backoff != nil {
		c.backoff.RecordSuccess("gemini")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", errors.New("empty candidate content")
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func classify(err error) llm.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.KindTransient
	}
	msg := err.Error()
	// Auth and quota problems will not resolve by retrying this run.
	for _, marker := range []string{"API key", "401", "403", "PERMISSION_DENIED", "INVALID_ARGUMENT"} {
		if strings.Contains(msg, marker) {
			return llm.KindPersistent
		}
	}
	return llm.KindTransient
}

func auditPrompt(script string, persona model.PersonaID, ct model.ContentType) string {
	var b strings.Builder
	b.WriteString("You are a radio content auditor. Score the following DJ script on a 0-10 scale.\n")
	fmt.Fprintf(&b, "The script is a %s segment spoken by persona %s.\n\n", ct, persona)
	b.WriteString("Respond with JSON only, in this exact shape:\n")
	b.WriteString(`{"overall_score": 0.0, "criteria_scores": {`)
	for i, crit := range llm.AuditCriteria {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: 0.0", crit)
	}
	b.WriteString(`}, "issues": [], "notes": ""}` + "\n\n")
	b.WriteString("SCRIPT:\n")
	b.WriteString(script)
	return b.String()
}
