package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelQuotaAccessors(t *testing.T) {
	pct := 42.5
	resetMs := int64(90_000)
	m := ModelQuota{ModelID: "m", RemainingPercentage: &pct, TimeUntilResetMs: &resetMs}

	assert.Equal(t, 42.5, m.Remaining())
	d, ok := m.ResetIn()
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	empty := ModelQuota{ModelID: "m"}
	assert.Equal(t, -1.0, empty.Remaining())
	_, ok = empty.ResetIn()
	assert.False(t, ok)
}

func TestSnapshotValidate(t *testing.T) {
	pct := 100.0
	over := 120.0
	neg := int64(-1)

	tests := []struct {
		name    string
		model   ModelQuota
		wantErr bool
	}{
		{"valid", ModelQuota{ModelID: "m", RemainingPercentage: &pct}, false},
		{"missing id", ModelQuota{}, true},
		{"percentage out of range", ModelQuota{ModelID: "m", RemainingPercentage: &over}, true},
		{"negative reset", ModelQuota{ModelID: "m", TimeUntilResetMs: &neg}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := QuotaSnapshot{Models: []ModelQuota{tt.model}}
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTruncateResponse(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, TruncateResponse(short))

	long := strings.Repeat("x", MaxResponseChars+50)
	got := TruncateResponse(long)
	assert.Len(t, got, MaxResponseChars)
}

func TestTruncateResponseKeepsRuneBoundary(t *testing.T) {
	// Three-byte runes that do not divide MaxResponseChars evenly, so the
	// naive byte cut would land mid-rune.
	long := strings.Repeat("日", MaxResponseChars)
	got := TruncateResponse(long)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxResponseChars)
	// The cut backs up at most one rune.
	assert.Greater(t, len(got), MaxResponseChars-utf8.UTFMax)
}

func TestModelMappingResetKey(t *testing.T) {
	mapping := ModelMapping{
		"gemini-pro-latest": "gemini-pool",
		"empty-target":      "",
	}

	assert.Equal(t, "gemini-pool", mapping.ResetKey("gemini-pro-latest"))
	assert.Equal(t, "unmapped", mapping.ResetKey("unmapped"))
	// An empty mapping target falls back to the raw ID.
	assert.Equal(t, "empty-target", mapping.ResetKey("empty-target"))
}

func TestWakeupConfigCooldownMinutes(t *testing.T) {
	cfg := WakeupConfig{}
	assert.Equal(t, DefaultResetCooldownMinutes, cfg.CooldownMinutes())

	cfg.ResetCooldownMinutes = 15
	assert.Equal(t, 15, cfg.CooldownMinutes())

	cfg.ResetCooldownMinutes = -1
	assert.Equal(t, DefaultResetCooldownMinutes, cfg.CooldownMinutes())
}

func TestWakeupConfigSelectionJSON(t *testing.T) {
	// nil selection serializes without the field at all.
	data, err := json.Marshal(&WakeupConfig{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "selectedAccounts")

	// Explicit empty selection stays an empty array, not null.
	empty := []string{}
	data, err = json.Marshal(&WakeupConfig{SelectedAccounts: &empty})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selectedAccounts":[]`)

	var decoded WakeupConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.SelectedAccounts)
	assert.Empty(t, *decoded.SelectedAccounts)
}

func TestAccountStatusUsable(t *testing.T) {
	assert.True(t, StatusValid.Usable())
	assert.True(t, StatusExpired.Usable())
	assert.False(t, StatusInvalid.Usable())
}

func TestAccountSliceHelpers(t *testing.T) {
	accounts := AccountSlice{
		{Email: "a@x.com", Status: StatusValid},
		{Email: "b@x.com", Status: StatusInvalid},
		{Email: "c@x.com", Status: StatusExpired},
	}

	acc, ok := accounts.FindByEmail("b@x.com")
	require.True(t, ok)
	assert.Equal(t, StatusInvalid, acc.Status)

	_, ok = accounts.FindByEmail("nope@x.com")
	assert.False(t, ok)

	assert.Equal(t, []string{"a@x.com", "c@x.com"}, accounts.FilterUsable().Emails())
}
