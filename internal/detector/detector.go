// Package detector decides which models in a quota snapshot are unused and
// about to reset.
package detector

import (
	"github.com/wakeguard/wakeguard/internal/models"
)

const (
	// FullQuotaThresholdPct is the inclusive lower bound for "full" quota.
	// 99 rather than 100 tolerates floating rounding in upstream responses.
	FullQuotaThresholdPct = 99.0

	// The reset window brackets the assumed ~5-hour quota cadence: a model
	// whose reset lies in [4.5h, 5.5h] just reset and has not been consumed
	// this cycle. Both bounds are inclusive.
	ResetWindowMinMs = int64(4*60+30) * 60 * 1000
	ResetWindowMaxMs = int64(5*60+30) * 60 * 1000
)

// IsModelUnused reports whether the model sits at full quota inside the
// post-reset window. Models missing either field are never unused.
func IsModelUnused(m models.ModelQuota) bool {
	if m.RemainingPercentage == nil || m.TimeUntilResetMs == nil {
		return false
	}
	if *m.RemainingPercentage < FullQuotaThresholdPct {
		return false
	}
	ms := *m.TimeUntilResetMs
	return ms >= ResetWindowMinMs && ms <= ResetWindowMaxMs
}

// FindUnusedModels filters the snapshot with IsModelUnused, preserving
// snapshot order.
func FindUnusedModels(snapshot models.QuotaSnapshot) []models.ModelQuota {
	var unused []models.ModelQuota
	for _, m := range snapshot.Models {
		if IsModelUnused(m) {
			unused = append(unused, m)
		}
	}
	return unused
}

// HasUnusedModels reports whether any snapshot model meets the predicate.
func HasUnusedModels(snapshot models.QuotaSnapshot) bool {
	for _, m := range snapshot.Models {
		if IsModelUnused(m) {
			return true
		}
	}
	return false
}
