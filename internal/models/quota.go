package models

import (
	"fmt"
	"time"
)

// ModelQuota is a single model's entry in a quota snapshot. RemainingPercentage
// and TimeUntilResetMs are pointers because the upstream API omits them for
// models it has no data for; a missing field is not the same as zero.
type ModelQuota struct {
	ModelID             string   `json:"modelId"`
	DisplayName         string   `json:"displayName,omitempty"`
	RemainingPercentage *float64 `json:"remainingPercentage,omitempty"`
	TimeUntilResetMs    *int64   `json:"timeUntilResetMs,omitempty"`
	IsExhausted         bool     `json:"isExhausted,omitempty"`
}

// Remaining returns the remaining percentage, or -1 when the field is absent.
func (m ModelQuota) Remaining() float64 {
	if m.RemainingPercentage == nil {
		return -1
	}
	return *m.RemainingPercentage
}

// ResetIn returns the time until the model's quota resets, and whether the
// upstream reported one at all.
func (m ModelQuota) ResetIn() (time.Duration, bool) {
	if m.TimeUntilResetMs == nil {
		return 0, false
	}
	return time.Duration(*m.TimeUntilResetMs) * time.Millisecond, true
}

// QuotaSnapshot is a point-in-time read of per-model quota for one account.
type QuotaSnapshot struct {
	CollectedAt  time.Time    `json:"collectedAt"`
	AccountEmail string       `json:"accountEmail,omitempty"`
	Models       []ModelQuota `json:"models"`
}

// FindModel returns the snapshot entry for the given model ID.
func (s *QuotaSnapshot) FindModel(modelID string) (*ModelQuota, bool) {
	for i := range s.Models {
		if s.Models[i].ModelID == modelID {
			return &s.Models[i], true
		}
	}
	return nil, false
}

// Validate checks snapshot entries for out-of-range values.
func (s *QuotaSnapshot) Validate() error {
	for _, m := range s.Models {
		if m.ModelID == "" {
			return fmt.Errorf("snapshot entry missing model ID")
		}
		if m.RemainingPercentage != nil && (*m.RemainingPercentage < 0 || *m.RemainingPercentage > 100) {
			return fmt.Errorf("model %s: remaining percentage %.2f out of range", m.ModelID, *m.RemainingPercentage)
		}
		if m.TimeUntilResetMs != nil && *m.TimeUntilResetMs < 0 {
			return fmt.Errorf("model %s: negative time until reset", m.ModelID)
		}
	}
	return nil
}
