package models

import (
	"time"
	"unicode/utf8"
)

// TriggerType distinguishes user-initiated triggers from scheduled ones.
type TriggerType string

const (
	TriggerManual TriggerType = "manual"
	TriggerAuto   TriggerType = "auto"
)

// TriggerSource records what decided to fire a trigger.
type TriggerSource string

const (
	SourceManual     TriggerSource = "manual"
	SourceScheduled  TriggerSource = "scheduled"
	SourceQuotaReset TriggerSource = "quota_reset"
)

// TokenUsage is the token accounting returned by a generation call.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// MaxResponseChars caps the response text persisted with a trigger record.
const MaxResponseChars = 500

// TriggerRecord is one immutable history entry. One record is written per
// model outcome, so Models has length 1 in practice.
type TriggerRecord struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Success       bool          `json:"success"`
	TriggerType   TriggerType   `json:"triggerType"`
	TriggerSource TriggerSource `json:"triggerSource"`
	Models        []string      `json:"models"`
	AccountEmail  string        `json:"accountEmail"`
	DurationMs    int64         `json:"durationMs"`
	Prompt        string        `json:"prompt"`
	Response      string        `json:"response,omitempty"`
	Error         string        `json:"error,omitempty"`
	TokensUsed    *TokenUsage   `json:"tokensUsed,omitempty"`
}

// TruncateResponse clamps s to at most MaxResponseChars bytes without
// splitting a multi-byte rune, so persisted history stays valid UTF-8.
func TruncateResponse(s string) string {
	if len(s) <= MaxResponseChars {
		return s
	}
	cut := MaxResponseChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ResetEntry tracks when a dedup key last reset and was last triggered.
type ResetEntry struct {
	LastResetAt       time.Time `json:"lastResetAt"`
	LastTriggeredTime time.Time `json:"lastTriggeredTime"`
}

// ResetState maps a model reset key to its dedup entry. At most one entry per
// key; entries are only removed by an explicit clear.
type ResetState map[string]ResetEntry

// ModelMapping maps raw model IDs to canonical reset keys so that model IDs
// sharing one quota pool deduplicate together.
type ModelMapping map[string]string

// ResetKey resolves a model ID to its dedup key. Unmapped IDs are their own key.
func (m ModelMapping) ResetKey(modelID string) string {
	if key, ok := m[modelID]; ok && key != "" {
		return key
	}
	return modelID
}
