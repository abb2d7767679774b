// Package wakeup contains the reset-detection orchestrator: it decides which
// unused models to trigger from a quota snapshot and fans the trigger out
// across every usable account.
package wakeup

import (
	"context"
	"time"

	"github.com/wakeguard/wakeguard/internal/accounts"
	"github.com/wakeguard/wakeguard/internal/detector"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/models"
	"github.com/wakeguard/wakeguard/internal/statestore"
	"github.com/wakeguard/wakeguard/internal/trigger"
)

// TriggerRunner is the slice of the executor the orchestrator needs.
type TriggerRunner interface {
	Execute(ctx context.Context, req trigger.Request) (*trigger.Result, error)
}

// Outcome reports what a detection cycle did.
type Outcome struct {
	Triggered       bool     `json:"triggered"`
	TriggeredModels []string `json:"triggeredModels"`
}

// Orchestrator owns the per-cycle decision of which models to trigger.
type Orchestrator struct {
	store    *statestore.Store
	resolver *accounts.Resolver
	runner   TriggerRunner
	logger   *logging.Logger
	now      func() time.Time
}

// NewOrchestrator creates a reset-detection orchestrator.
func NewOrchestrator(store *statestore.Store, resolver *accounts.Resolver, runner TriggerRunner, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		resolver: resolver,
		runner:   runner,
		logger:   logger,
		now:      time.Now,
	}
}

// DetectResetAndTrigger scans the snapshot for unused models and triggers
// them on every usable account.
//
// Reset mode deliberately ignores the configured account selection and scans
// the full snapshot rather than just the selected models: the point is that
// no usable account's quota goes to waste, whichever model crossed the
// threshold.
func (o *Orchestrator) DetectResetAndTrigger(ctx context.Context, snapshot models.QuotaSnapshot) (*Outcome, error) {
	none := &Outcome{Triggered: false, TriggeredModels: []string{}}

	cfg, err := o.store.LoadWakeupConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled || !cfg.WakeOnReset {
		// Disabled is not an error; there is simply nothing to do.
		return none, nil
	}

	eligible, err := o.resolver.AllUsable()
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		o.logger.Debug("reset detection: no usable accounts")
		return none, nil
	}

	// State and clock are read once so the whole scan sees one consistent
	// view, however long the triggers below take.
	state, err := o.store.LoadResetState()
	if err != nil {
		return nil, err
	}
	mapping, err := o.store.LoadModelMapping()
	if err != nil {
		return nil, err
	}
	now := o.now()
	cooldown := time.Duration(cfg.CooldownMinutes()) * time.Minute

	var batch []string
	stateDirty := false
	for _, m := range snapshot.Models {
		if !detector.IsModelUnused(m) {
			continue
		}

		key := mapping.ResetKey(m.ModelID)
		if entry, ok := state[key]; ok {
			if elapsed := now.Sub(entry.LastTriggeredTime); elapsed < cooldown {
				logging.NewEvent(logging.ResetSkipped, logging.StatusSuccess).
					WithModel(m.ModelID).
					WithDetails(map[string]interface{}{
						"resetKey":       key,
						"cooldownMins":   cfg.CooldownMinutes(),
						"elapsedMinutes": int(elapsed.Minutes()),
					}).
					Emit(o.logger)
				continue
			}
		}

		batch = append(batch, m.ModelID)
		state[key] = models.ResetEntry{LastResetAt: now, LastTriggeredTime: now}
		stateDirty = true
	}

	// Dedup state is written before any trigger fires: a crash mid-cycle must
	// not cause infinite re-triggering, even at the cost of marking a model
	// triggered when the call below then fails.
	if stateDirty {
		if err := o.store.SaveResetState(state); err != nil {
			return nil, err
		}
	}

	if len(batch) == 0 {
		return none, nil
	}

	for _, modelID := range batch {
		logging.NewEvent(logging.ResetDetected, logging.StatusSuccess).
			WithModel(modelID).
			Emit(o.logger)
	}

	// Accounts are triggered strictly sequentially: switching credential
	// context is not reentrant in the account manager, so cycles must not
	// interleave. One account's failure never aborts the rest.
	for _, email := range eligible {
		result, err := o.runner.Execute(ctx, trigger.Request{
			Models:          batch,
			AccountEmail:    email,
			TriggerType:     models.TriggerAuto,
			TriggerSource:   models.SourceQuotaReset,
			CustomPrompt:    cfg.CustomPrompt,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			o.logger.Error("reset trigger failed for account",
				"account", email, "error", err.Error())
			continue
		}
		if !result.Success {
			o.logger.Warn("reset trigger completed with failures",
				"account", email, "models", len(batch))
		}
	}

	return &Outcome{Triggered: true, TriggeredModels: batch}, nil
}
