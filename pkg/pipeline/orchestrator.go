// Package pipeline drives content generation: enumerated targets walk
// through Generate, Audit and Synthesize, with model residency arbitrated by
// the gate and progress checkpointed after every item.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"aetherfm/pkg/content"
	"aetherfm/pkg/gate"
	"aetherfm/pkg/llm"
	"aetherfm/pkg/model"
	"aetherfm/pkg/prompt"
	"aetherfm/pkg/tts"
)

// PersonaSource resolves persona ids to their static records.
type PersonaSource interface {
	Persona(id model.PersonaID) *model.Persona
}

// Options wires an orchestrator.
type Options struct {
	Store     *content.Store
	Gate      *gate.Gate
	Writer    llm.WriterClient
	Auditor   llm.AuditorClient
	Synth     tts.Synthesizer
	Assembler *prompt.Assembler
	Personas  PersonaSource
	Sink      Sink

	RegenCap int // regeneration credits per key after failed audits
	RetryCap int // transient retry attempts per backend call

	// WeatherText, when set, is injected into weather briefs as current
	// conditions.
	WeatherText string
}

// Orchestrator runs a batch through the three stages.
type Orchestrator struct {
	opts Options
	cp   *Checkpoint

	credits  map[string]int
	failures map[string]string
}

// New creates an orchestrator bound to a checkpoint.
func New(opts Options, cp *Checkpoint) *Orchestrator {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	return &Orchestrator{
		opts:     opts,
		cp:       cp,
		credits:  make(map[string]int),
		failures: make(map[string]string),
	}
}

// Run executes the batch over the given keys. Cancellation is honored
// between items; the in-flight item always finishes so on-disk state stays
// consistent with the checkpoint. The summary is valid even on error.
func (o *Orchestrator) Run(ctx context.Context, batch Batch, keys []model.ContentKey) (*Summary, error) {
	var err error
	if batch.Ordering == "item_major" {
		err = o.runItemMajor(ctx, batch, keys)
	} else {
		err = o.runStageMajor(ctx, batch, keys)
	}
	return o.summary(), err
}

func (o *Orchestrator) summary() *Summary {
	s := &Summary{Stages: make(map[string]Counters), Failures: o.failures}
	for name, st := range o.cp.Stages {
		s.Stages[name] = st.Counters
	}
	return s
}

// stageSet reports which stages the batch's filter enables.
func stageSet(b Batch) (gen, aud, syn bool) {
	switch b.Stage {
	case "", "all":
		return true, true, true
	case StageGenerate:
		return true, false, false
	case StageAudit:
		return false, true, false
	case StageSynthesize:
		return false, false, true
	case "generate,audit":
		return true, true, false
	}
	return true, true, true
}

func (o *Orchestrator) runStageMajor(ctx context.Context, b Batch, keys []model.ContentKey) error {
	gen, aud, syn := stageSet(b)

	if gen {
		if err := o.generatePass(ctx, keys, nil); err != nil {
			return err
		}
	}
	if aud {
		regen, err := o.auditPass(ctx, keys, nil)
		if err != nil {
			return err
		}
		// Regeneration rounds: failed audits get a fresh script and a
		// re-audit until credits run out. Each round switches tenants
		// once, not per item.
		for round := 0; len(regen) > 0 && gen; round++ {
			eligible := o.consumeCredits(regen)
			if len(eligible) == 0 {
				break
			}
			if err := o.generatePass(ctx, eligible, eligible); err != nil {
				return err
			}
			regen, err = o.auditPass(ctx, eligible, eligible)
			if err != nil {
				return err
			}
		}
	}
	if syn {
		if err := o.synthesizePass(ctx, keys); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runItemMajor(ctx context.Context, b Batch, keys []model.ContentKey) error {
	gen, aud, syn := stageSet(b)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if gen {
			if err := o.withTenantOne(ctx, gate.TenantWriter, StageGenerate, key, false, o.generateOne); err != nil {
				return err
			}
		}
		if aud {
			passed := false
			force := false
			for {
				var auditErr error
				err := o.opts.Gate.WithTenant(ctx, gate.TenantAuditor, func(ctx context.Context) error {
					passed, auditErr = o.auditOne(ctx, key, force)
					return auditErr
				})
				if err != nil {
					return err
				}
				if passed {
					break
				}
				if len(o.consumeCredits([]model.ContentKey{key})) == 0 {
					break
				}
				if err := o.withTenantOne(ctx, gate.TenantWriter, StageGenerate, key, true, o.generateOne); err != nil {
					return err
				}
				force = true
			}
		}
		if syn {
			err := o.opts.Gate.WithTenant(ctx, gate.TenantSynthesizer, func(ctx context.Context) error {
				return o.synthesizeOne(ctx, key)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) withTenantOne(ctx context.Context, t gate.Tenant, stage string, key model.ContentKey, force bool, fn func(context.Context, model.ContentKey, bool) error) error {
	return o.opts.Gate.WithTenant(ctx, t, func(ctx context.Context) error {
		o.emit(stage, key, 1)
		return fn(ctx, key, force)
	})
}

// consumeCredits filters keys down to those with regeneration credits left,
// consuming one credit each.
func (o *Orchestrator) consumeCredits(keys []model.ContentKey) []model.ContentKey {
	var out []model.ContentKey
	for _, key := range keys {
		k := key.String()
		if o.credits[k] >= o.opts.RegenCap {
			slog.Info("regeneration cap reached, leaving as failed audit", "key", k)
			continue
		}
		o.credits[k]++
		out = append(out, key)
	}
	return out
}

func (o *Orchestrator) generatePass(ctx context.Context, keys []model.ContentKey, force []model.ContentKey) error {
	forced := keySet(force)
	if err := o.cp.SetStageStatus(StageGenerate, StatusInProgress); err != nil {
		return err
	}
	err := o.opts.Gate.WithTenant(ctx, gate.TenantWriter, func(ctx context.Context) error {
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.emit(StageGenerate, key, len(keys))
			if err := o.generateOne(ctx, key, forced[key.String()]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return o.cp.SetStageStatus(StageGenerate, StatusCompleted)
}

func (o *Orchestrator) auditPass(ctx context.Context, keys []model.ContentKey, force []model.ContentKey) ([]model.ContentKey, error) {
	forced := keySet(force)
	if err := o.cp.SetStageStatus(StageAudit, StatusInProgress); err != nil {
		return nil, err
	}
	var regen []model.ContentKey
	err := o.opts.Gate.WithTenant(ctx, gate.TenantAuditor, func(ctx context.Context) error {
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.emit(StageAudit, key, len(keys))
			passed, err := o.auditOne(ctx, key, forced[key.String()])
			if err != nil {
				return err
			}
			if !passed {
				regen = append(regen, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return regen, o.cp.SetStageStatus(StageAudit, StatusCompleted)
}

func (o *Orchestrator) synthesizePass(ctx context.Context, keys []model.ContentKey) error {
	if err := o.cp.SetStageStatus(StageSynthesize, StatusInProgress); err != nil {
		return err
	}
	err := o.opts.Gate.WithTenant(ctx, gate.TenantSynthesizer, func(ctx context.Context) error {
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.emit(StageSynthesize, key, len(keys))
			if err := o.synthesizeOne(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return o.cp.SetStageStatus(StageSynthesize, StatusCompleted)
}

// generateOne writes a fresh script for key unless the checkpoint already
// covers it. Flagged items regenerate regardless; writing the script clears
// the flag along with the stale audit and audio.
func (o *Orchestrator) generateOne(ctx context.Context, key model.ContentKey, force bool) error {
	st := o.cp.Stages[StageGenerate]

	item, err := o.opts.Store.ReadItem(key)
	if err != nil {
		return o.itemFailed(StageGenerate, key, err)
	}
	if item.Status == model.StatusFlagged {
		force = true
	}
	if !force && o.cp.IsCompleted(StageGenerate, key) && item.Status != model.StatusAbsent {
		st.Counters.Skipped++
		return nil
	}

	extra := prompt.Data{}
	if key.Type == model.TypeWeather && o.opts.WeatherText != "" {
		extra["Conditions"] = o.opts.WeatherText
	}
	brief, err := o.opts.Assembler.ForKey(key, extra)
	if err != nil {
		return o.itemFailed(StageGenerate, key, err)
	}

	var text string
	err = o.withRetries(ctx, func(ctx context.Context) error {
		var werr error
		text, werr = o.opts.Writer.Write(ctx, brief)
		return werr
	}, func(err error) bool { return llm.WriterKind(err) == llm.KindTransient })
	if err != nil {
		return o.itemFailed(StageGenerate, key, err)
	}

	script := Sanitize(text)
	if script == "" {
		return o.itemFailed(StageGenerate, key,
			&llm.WriterError{Kind: llm.KindBadOutput, Err: errors.New("nothing usable after sanitization")})
	}

	if err := o.opts.Store.WriteScript(key, script); err != nil {
		return o.itemFailed(StageGenerate, key, err)
	}
	st.Counters.Processed++
	st.Counters.Passed++
	return o.cp.MarkCompleted(StageGenerate, key)
}

// auditOne scores the script for key. Malformed auditor output is a failed
// audit with a well-known issue string, never a run failure.
func (o *Orchestrator) auditOne(ctx context.Context, key model.ContentKey, force bool) (bool, error) {
	st := o.cp.Stages[StageAudit]

	item, err := o.opts.Store.ReadItem(key)
	if err != nil {
		return false, o.itemFailed(StageAudit, key, err)
	}
	if item.Script == "" {
		st.Counters.Skipped++
		return false, nil
	}
	if !force && o.cp.IsCompleted(StageAudit, key) && item.Audit != nil {
		st.Counters.Skipped++
		return item.Audit.Passed, nil
	}

	var rec *model.AuditRecord
	err = o.withRetries(ctx, func(ctx context.Context) error {
		var aerr error
		rec, aerr = o.opts.Auditor.Audit(ctx, item.Script, key.Persona, key.Type)
		return aerr
	}, func(err error) bool { return llm.AuditorKind(err) == llm.KindTransient })
	if err != nil {
		var ae *llm.AuditorError
		if errors.As(err, &ae) && ae.Kind == llm.KindMalformed {
			rec = llm.MalformedAuditRecord(ae.Raw)
		} else {
			return false, o.itemFailed(StageAudit, key, err)
		}
	}

	if err := o.opts.Store.WriteAudit(key, rec); err != nil {
		return false, o.itemFailed(StageAudit, key, err)
	}
	st.Counters.Processed++
	if rec.Passed {
		st.Counters.Passed++
	} else {
		st.Counters.Failed++
		slog.Info("audit failed", "key", key.String(), "score", rec.OverallScore, "issues", rec.Issues)
	}
	return rec.Passed, o.cp.MarkCompleted(StageAudit, key)
}

// synthesizeOne renders audio for key when its audit passed and no audio
// exists yet.
func (o *Orchestrator) synthesizeOne(ctx context.Context, key model.ContentKey) error {
	st := o.cp.Stages[StageSynthesize]

	item, err := o.opts.Store.ReadItem(key)
	if err != nil {
		return o.itemFailed(StageSynthesize, key, err)
	}
	if item.Status == model.StatusAudioReady {
		st.Counters.Skipped++
		return o.cp.MarkCompleted(StageSynthesize, key)
	}
	if item.Status != model.StatusAuditedPass {
		st.Counters.Skipped++
		return nil
	}

	persona := o.opts.Personas.Persona(key.Persona)
	if persona == nil {
		return o.itemFailed(StageSynthesize, key, fmt.Errorf("unknown persona %q", key.Persona))
	}

	tmp, err := os.CreateTemp(filepath.Dir(o.opts.Store.AudioPath(key)), ".synth-*")
	if err != nil {
		return o.itemFailed(StageSynthesize, key, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	err = o.withRetries(ctx, func(ctx context.Context) error {
		_, serr := o.opts.Synth.Synthesize(ctx, item.Script, persona.VoiceRef, tmpPath)
		return serr
	}, func(err error) bool { return !tts.IsFatal(err) })
	if err != nil {
		return o.itemFailed(StageSynthesize, key, err)
	}

	audio, err := os.ReadFile(tmpPath)
	if err != nil {
		return o.itemFailed(StageSynthesize, key, err)
	}
	if err := o.opts.Store.WriteAudio(key, audio); err != nil {
		return o.itemFailed(StageSynthesize, key, err)
	}
	st.Counters.Processed++
	st.Counters.Passed++
	return o.cp.MarkCompleted(StageSynthesize, key)
}

// withRetries runs fn, retrying while retryable(err) holds, up to the retry
// cap. Context expiry stops retries immediately.
func (o *Orchestrator) withRetries(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 0; attempt <= o.opts.RetryCap; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		slog.Warn("transient backend failure, retrying", "attempt", attempt+1, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return lastErr
}

// itemFailed records a per-item failure in the checkpoint and summary.
// A checkpoint write failure is the only error it propagates; everything
// else stays inside the item's failure bucket.
func (o *Orchestrator) itemFailed(stage string, key model.ContentKey, cause error) error {
	var cpErr *CheckpointError
	if errors.As(cause, &cpErr) {
		return cause
	}
	st := o.cp.Stages[stage]
	st.Counters.Processed++
	st.Counters.Failed++
	o.failures[key.String()] = cause.Error()
	slog.Error("item failed", "stage", stage, "key", key.String(), "error", cause)
	return o.cp.Save()
}

func (o *Orchestrator) emit(stage string, key model.ContentKey, total int) {
	o.opts.Sink.Update(Event{
		Stage:    stage,
		Key:      key,
		Counters: o.cp.Stages[stage].Counters,
		Total:    total,
	})
}

func keySet(keys []model.ContentKey) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k.String()] = true
	}
	return set
}
