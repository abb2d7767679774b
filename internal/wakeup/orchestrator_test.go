package wakeup

import (
	"context"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeguard/wakeguard/internal/accounts"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/models"
	"github.com/wakeguard/wakeguard/internal/statestore"
	"github.com/wakeguard/wakeguard/internal/trigger"
)

type memDirectory struct {
	accounts models.AccountSlice
	active   string
}

func (d *memDirectory) List() (models.AccountSlice, error) {
	return d.accounts, nil
}

func (d *memDirectory) Active() (*models.Account, bool, error) {
	if d.active == "" {
		return nil, false, nil
	}
	acc, ok := d.accounts.FindByEmail(d.active)
	return acc, ok, nil
}

type recordingRunner struct {
	requests []trigger.Request
	fail     map[string]error
	result   *trigger.Result
}

func (r *recordingRunner) Execute(ctx context.Context, req trigger.Request) (*trigger.Result, error) {
	r.requests = append(r.requests, req)
	if err, ok := r.fail[req.AccountEmail]; ok {
		return nil, err
	}
	if r.result != nil {
		return r.result, nil
	}
	results := make([]trigger.ModelResult, len(req.Models))
	for i, m := range req.Models {
		results[i] = trigger.ModelResult{ModelID: m, Success: true}
	}
	return &trigger.Result{Success: true, Results: results}, nil
}

type fixture struct {
	store  *statestore.Store
	runner *recordingRunner
	orch   *Orchestrator
	now    time.Time
}

func newFixture(t *testing.T, dir *memDirectory) *fixture {
	t.Helper()
	store, err := statestore.NewStore(t.TempDir())
	require.NoError(t, err)

	runner := &recordingRunner{}
	logger := logging.NewLogger(logging.WithOutput(io.Discard), logging.WithLevel(logging.LevelError))
	orch := NewOrchestrator(store, accounts.NewResolver(dir), runner, logger)

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	orch.now = func() time.Time { return now }

	return &fixture{store: store, runner: runner, orch: orch, now: now}
}

func enableWakeup(t *testing.T, store *statestore.Store, mutate func(*models.WakeupConfig)) {
	t.Helper()
	cfg := models.DefaultWakeupConfig()
	cfg.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, store.SaveWakeupConfig(cfg))
}

func pct(v float64) *float64 { return &v }
func ms(v int64) *int64      { return &v }

func unusedModel(id string) models.ModelQuota {
	return models.ModelQuota{
		ModelID:             id,
		RemainingPercentage: pct(100),
		TimeUntilResetMs:    ms(5 * 60 * 60 * 1000),
	}
}

func busyModel(id string) models.ModelQuota {
	return models.ModelQuota{
		ModelID:             id,
		RemainingPercentage: pct(42),
		TimeUntilResetMs:    ms(5 * 60 * 60 * 1000),
	}
}

func singleAccount() *memDirectory {
	return &memDirectory{
		accounts: models.AccountSlice{{Email: "a@x.com", Status: models.StatusValid}},
		active:   "a@x.com",
	}
}

func TestDetectDisabledIsNoOp(t *testing.T) {
	f := newFixture(t, singleAccount())
	// Default config is disabled.

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Triggered)
	assert.Empty(t, outcome.TriggeredModels)
	assert.Empty(t, f.runner.requests)
}

func TestDetectWakeOnResetOffIsNoOp(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, func(c *models.WakeupConfig) { c.WakeOnReset = false })

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Triggered)
	assert.Empty(t, f.runner.requests)
}

func TestDetectTriggersUnusedModelAndRecordsState(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, nil)

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		AccountEmail: "a@x.com",
		Models:       []models.ModelQuota{busyModel("busy"), unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Triggered)
	assert.Equal(t, []string{"m1"}, outcome.TriggeredModels)

	require.Len(t, f.runner.requests, 1)
	req := f.runner.requests[0]
	assert.Equal(t, "a@x.com", req.AccountEmail)
	assert.Equal(t, []string{"m1"}, req.Models)
	assert.Equal(t, models.TriggerAuto, req.TriggerType)
	assert.Equal(t, models.SourceQuotaReset, req.TriggerSource)

	state, err := f.store.LoadResetState()
	require.NoError(t, err)
	require.Contains(t, state, "m1")
	assert.True(t, state["m1"].LastTriggeredTime.Equal(f.now))
}

func TestDetectNoUsableAccounts(t *testing.T) {
	f := newFixture(t, &memDirectory{
		accounts: models.AccountSlice{{Email: "bad@x.com", Status: models.StatusInvalid}},
	})
	enableWakeup(t, f.store, nil)

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Triggered)
	assert.Empty(t, f.runner.requests)

	// Nothing is marked triggered when no account could fire.
	state, err := f.store.LoadResetState()
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestDetectCooldownSuppressesRetrigger(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, nil)

	recent := f.now.Add(-10 * time.Minute)
	require.NoError(t, f.store.SaveResetState(models.ResetState{
		"m1": {LastResetAt: recent, LastTriggeredTime: recent},
	}))

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Triggered)
	assert.Empty(t, f.runner.requests)

	// The stale entry is left untouched.
	state, err := f.store.LoadResetState()
	require.NoError(t, err)
	assert.True(t, state["m1"].LastTriggeredTime.Equal(recent))
}

func TestDetectTriggersAgainAfterCooldown(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, nil)

	old := f.now.Add(-61 * time.Minute)
	require.NoError(t, f.store.SaveResetState(models.ResetState{
		"m1": {LastResetAt: old, LastTriggeredTime: old},
	}))

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Triggered)
	assert.Equal(t, []string{"m1"}, outcome.TriggeredModels)

	state, err := f.store.LoadResetState()
	require.NoError(t, err)
	assert.True(t, state["m1"].LastTriggeredTime.Equal(f.now))
}

func TestDetectHonorsConfiguredCooldown(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, func(c *models.WakeupConfig) { c.ResetCooldownMinutes = 15 })

	old := f.now.Add(-20 * time.Minute)
	require.NoError(t, f.store.SaveResetState(models.ResetState{
		"m1": {LastResetAt: old, LastTriggeredTime: old},
	}))

	// 20 minutes elapsed beats the configured 15 even though the default 60
	// would still suppress it.
	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Triggered)
}

func TestDetectUsesModelMappingForDedup(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, nil)
	require.NoError(t, f.store.SaveModelMapping(models.ModelMapping{
		"gemini-pro":    "gemini-pool",
		"gemini-latest": "gemini-pool",
	}))

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("gemini-pro"), unusedModel("gemini-latest")},
	})
	require.NoError(t, err)

	// Both IDs share one reset key, so only the first fires.
	assert.Equal(t, []string{"gemini-pro"}, outcome.TriggeredModels)

	state, err := f.store.LoadResetState()
	require.NoError(t, err)
	assert.Contains(t, state, "gemini-pool")
	assert.NotContains(t, state, "gemini-pro")
}

func TestDetectFansOutAcrossAllUsableAccounts(t *testing.T) {
	dir := &memDirectory{
		accounts: models.AccountSlice{
			{Email: "a@x.com", Status: models.StatusValid},
			{Email: "b@x.com", Status: models.StatusExpired},
			{Email: "c@x.com", Status: models.StatusInvalid},
		},
	}
	f := newFixture(t, dir)
	enableWakeup(t, f.store, nil)

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Triggered)
	require.Len(t, f.runner.requests, 2)
	assert.Equal(t, "a@x.com", f.runner.requests[0].AccountEmail)
	assert.Equal(t, "b@x.com", f.runner.requests[1].AccountEmail)
}

func TestDetectAccountFailureDoesNotAbortOthers(t *testing.T) {
	dir := &memDirectory{
		accounts: models.AccountSlice{
			{Email: "a@x.com", Status: models.StatusValid},
			{Email: "b@x.com", Status: models.StatusValid},
		},
	}
	f := newFixture(t, dir)
	f.runner.fail = map[string]error{"a@x.com": stderrors.New("refresh exploded")}
	enableWakeup(t, f.store, nil)

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	// The cycle still counts as triggered and the second account was reached.
	assert.True(t, outcome.Triggered)
	require.Len(t, f.runner.requests, 2)
	assert.Equal(t, "b@x.com", f.runner.requests[1].AccountEmail)
}

func TestDetectStateWrittenBeforeTrigger(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, nil)
	f.runner.fail = map[string]error{"a@x.com": stderrors.New("down")}

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Triggered)

	// Even though the trigger failed, the dedup entry is durable: a crashy
	// trigger path must not re-fire the same reset forever.
	state, err := f.store.LoadResetState()
	require.NoError(t, err)
	assert.Contains(t, state, "m1")
}

func TestDetectPassesPromptAndTokenCap(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, func(c *models.WakeupConfig) {
		c.CustomPrompt = "wake up"
		c.MaxOutputTokens = 16
	})

	_, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{unusedModel("m1")},
	})
	require.NoError(t, err)

	require.Len(t, f.runner.requests, 1)
	assert.Equal(t, "wake up", f.runner.requests[0].CustomPrompt)
	assert.Equal(t, 16, f.runner.requests[0].MaxOutputTokens)
}

func TestDetectNothingUnused(t *testing.T) {
	f := newFixture(t, singleAccount())
	enableWakeup(t, f.store, nil)

	outcome, err := f.orch.DetectResetAndTrigger(context.Background(), models.QuotaSnapshot{
		Models: []models.ModelQuota{busyModel("m1"), busyModel("m2")},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Triggered)
	assert.Empty(t, outcome.TriggeredModels)
	assert.Empty(t, f.runner.requests)
}
