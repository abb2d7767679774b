// Package trigger sends minimal prompts to models to consume a trivial slice
// of quota before it would be wasted at reset.
package trigger

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wakeguard/wakeguard/internal/assist"
	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/models"
)

const (
	// DefaultPrompt is the minimal prompt sent when none is configured.
	DefaultPrompt = "Hi"

	// BatchSize caps simultaneous outbound generation requests. Batches run
	// with full internal concurrency; the next batch waits for the previous
	// one to finish.
	BatchSize = 4

	// RequestTimeout bounds each individual generation request. The deadline
	// cancels the underlying call through its context; the loser of the race
	// is not left running.
	RequestTimeout = 30 * time.Second

	// Onboarding polls for a project ID a bounded number of times before
	// degrading to requests without one.
	onboardAttempts = 5
	onboardDelay    = 2 * time.Second
)

// Credential is one account's refreshable bearer credential.
type Credential interface {
	Token() string
	Refresh(ctx context.Context) error
}

// CredentialSource loads credentials per account.
type CredentialSource interface {
	Handle(email string) (Credential, error)
}

// AssistAPI is the slice of the assist client the executor needs.
type AssistAPI interface {
	LoadAssistStatus(ctx context.Context, token string) (*assist.AssistStatus, error)
	Onboard(ctx context.Context, token, tierID string) (string, error)
	GenerateContent(ctx context.Context, token, projectID, modelID, prompt string, maxOutputTokens int) (*assist.GenerateResult, error)
}

// HistorySink records trigger outcomes durably.
type HistorySink interface {
	AppendTriggerRecords(records ...models.TriggerRecord) error
}

// Request describes one trigger cycle against a single account.
type Request struct {
	Models          []string
	AccountEmail    string
	TriggerType     models.TriggerType
	TriggerSource   models.TriggerSource
	CustomPrompt    string
	MaxOutputTokens int
}

// ModelResult is the outcome for one model.
type ModelResult struct {
	ModelID    string             `json:"modelId"`
	Success    bool               `json:"success"`
	DurationMs int64              `json:"durationMs"`
	Response   string             `json:"response,omitempty"`
	Error      string             `json:"error,omitempty"`
	TokensUsed *models.TokenUsage `json:"tokensUsed,omitempty"`
}

// Result is the outcome of a full trigger cycle. Success is true only when
// every model succeeded.
type Result struct {
	Success bool          `json:"success"`
	Results []ModelResult `json:"results"`
}

// Executor runs trigger cycles. All collaborators are injected; the only
// cached state is the resolved project ID per account, since projects belong
// to accounts and the reset fan-out crosses account boundaries.
type Executor struct {
	creds   CredentialSource
	api     AssistAPI
	history HistorySink
	logger  *logging.Logger

	projects map[string]string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a trigger executor.
func NewExecutor(creds CredentialSource, api AssistAPI, history HistorySink, logger *logging.Logger) *Executor {
	return &Executor{
		creds:    creds,
		api:      api,
		history:  history,
		logger:   logger,
		projects: make(map[string]string),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// ResetProject drops all cached project IDs, forcing re-resolution on the
// next trigger. Call this after accounts are re-onboarded or removed.
func (e *Executor) ResetProject() {
	e.projects = make(map[string]string)
}

// Execute runs one trigger cycle. Per-model faults are captured into the
// result, never returned as errors; only history-write failures propagate.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if len(req.Models) == 0 {
		return &Result{Success: true, Results: []ModelResult{}}, nil
	}

	prompt := req.CustomPrompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	cred, err := e.creds.Handle(req.AccountEmail)
	if err != nil {
		// Local configuration fault: no retry, every model fails.
		return e.failAll(req, prompt, err.Error())
	}

	if err := cred.Refresh(ctx); err != nil {
		return e.failAll(req, prompt, refreshFailureMessage(err))
	}

	token := cred.Token()
	projectID := e.resolveProject(ctx, token, req.AccountEmail)

	results := e.runBatches(ctx, token, projectID, prompt, req)

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
			break
		}
	}

	if err := e.appendHistory(req, prompt, results); err != nil {
		return nil, err
	}

	for _, r := range results {
		event := logging.NewEvent(logging.TriggerSuccess, logging.StatusSuccess)
		if !r.Success {
			event = logging.NewEvent(logging.TriggerFailure, logging.StatusFailure).WithError(r.Error)
		}
		event.WithAccount(req.AccountEmail).WithModel(r.ModelID).Emit(e.logger)
	}

	return &Result{Success: success, Results: results}, nil
}

// TestTrigger fires a single model once and returns its individual result.
func (e *Executor) TestTrigger(ctx context.Context, modelID, accountEmail, prompt string) (*ModelResult, error) {
	result, err := e.Execute(ctx, Request{
		Models:        []string{modelID},
		AccountEmail:  accountEmail,
		TriggerType:   models.TriggerManual,
		TriggerSource: models.SourceManual,
		CustomPrompt:  prompt,
	})
	if err != nil {
		return nil, err
	}
	for i := range result.Results {
		if result.Results[i].ModelID == modelID {
			return &result.Results[i], nil
		}
	}
	return &ModelResult{ModelID: modelID, Success: false, Error: "no result produced"}, nil
}

// runBatches issues generation requests in fixed-size batches. Within a
// batch, dispatch follows model order but requests run concurrently; the next
// batch starts only once the whole previous batch has resolved.
func (e *Executor) runBatches(ctx context.Context, token, projectID, prompt string, req Request) []ModelResult {
	results := make([]ModelResult, len(req.Models))

	for start := 0; start < len(req.Models); start += BatchSize {
		end := start + BatchSize
		if end > len(req.Models) {
			end = len(req.Models)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = e.triggerModel(ctx, token, projectID, prompt, req.Models[idx], req.MaxOutputTokens)
			}(i)
		}
		wg.Wait()
	}

	return results
}

// triggerModel issues one generation request under the per-request deadline.
// A timeout is recorded like any other failure and never aborts siblings.
func (e *Executor) triggerModel(ctx context.Context, token, projectID, prompt, modelID string, maxOutputTokens int) ModelResult {
	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	started := e.now()
	gen, err := e.api.GenerateContent(reqCtx, token, projectID, modelID, prompt, maxOutputTokens)
	duration := e.now().Sub(started).Milliseconds()

	if err != nil {
		msg := err.Error()
		if stderrors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			msg = "request timed out after 30s"
		}
		return ModelResult{ModelID: modelID, Success: false, DurationMs: duration, Error: msg}
	}

	return ModelResult{
		ModelID:    modelID,
		Success:    true,
		DurationMs: duration,
		Response:   models.TruncateResponse(gen.Text),
		TokensUsed: gen.TokensUsed,
	}
}

// resolveProject returns the account's project ID when one is available,
// caching it per account. Failure is a best-effort degrade: generation
// proceeds without one and the remote API may infer it from the credential.
func (e *Executor) resolveProject(ctx context.Context, token, email string) string {
	if id := e.projects[email]; id != "" {
		return id
	}

	status, err := e.api.LoadAssistStatus(ctx, token)
	if err != nil {
		e.logger.Warn("failed to load assist status", "account", email, "error", err.Error())
		return ""
	}
	if status.ProjectID != "" {
		e.projects[email] = status.ProjectID
		return status.ProjectID
	}

	tierID := pickTier(status)
	if tierID == "" {
		e.logger.Warn("no onboarding tier available, proceeding without project", "account", email)
		return ""
	}

	for attempt := 1; attempt <= onboardAttempts; attempt++ {
		projectID, err := e.api.Onboard(ctx, token, tierID)
		if err != nil {
			e.logger.Warn("onboarding attempt failed",
				"attempt", attempt, "tier", tierID, "error", err.Error())
		} else if projectID != "" {
			e.projects[email] = projectID
			return projectID
		}
		if attempt < onboardAttempts {
			if err := e.sleep(ctx, onboardDelay); err != nil {
				return ""
			}
		}
	}

	e.logger.Warn("project not resolved after onboarding attempts, proceeding without one",
		"account", email, "attempts", onboardAttempts)
	return ""
}

// pickTier prefers the tier flagged default, then the account's current tier,
// then the first allowed tier.
func pickTier(status *assist.AssistStatus) string {
	for _, t := range status.AllowedTiers {
		if t.IsDefault {
			return t.ID
		}
	}
	if status.CurrentTier != nil && status.CurrentTier.ID != "" {
		return status.CurrentTier.ID
	}
	if len(status.AllowedTiers) > 0 {
		return status.AllowedTiers[0].ID
	}
	return ""
}

// failAll records every requested model as failed with the same message.
func (e *Executor) failAll(req Request, prompt, message string) (*Result, error) {
	results := make([]ModelResult, len(req.Models))
	for i, modelID := range req.Models {
		results[i] = ModelResult{ModelID: modelID, Success: false, Error: message}
	}
	if err := e.appendHistory(req, prompt, results); err != nil {
		return nil, err
	}
	logging.NewEvent(logging.TriggerFailure, logging.StatusFailure).
		WithAccount(req.AccountEmail).
		WithError(message).
		Emit(e.logger)
	return &Result{Success: false, Results: results}, nil
}

// appendHistory writes one durable record per model result.
func (e *Executor) appendHistory(req Request, prompt string, results []ModelResult) error {
	records := make([]models.TriggerRecord, 0, len(results))
	for _, r := range results {
		records = append(records, models.TriggerRecord{
			ID:            uuid.New().String(),
			Timestamp:     e.now(),
			Success:       r.Success,
			TriggerType:   req.TriggerType,
			TriggerSource: req.TriggerSource,
			Models:        []string{r.ModelID},
			AccountEmail:  req.AccountEmail,
			DurationMs:    r.DurationMs,
			Prompt:        prompt,
			Response:      r.Response,
			Error:         r.Error,
			TokensUsed:    r.TokensUsed,
		})
	}
	return e.history.AppendTriggerRecords(records...)
}

func refreshFailureMessage(err error) string {
	var refreshErr *errors.ErrTokenRefresh
	if stderrors.As(err, &refreshErr) {
		return refreshErr.Error()
	}
	return "credential refresh failed: " + err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
