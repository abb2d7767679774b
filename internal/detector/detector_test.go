package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wakeguard/wakeguard/internal/models"
)

func quotaModel(id string, pct *float64, resetMs *int64) models.ModelQuota {
	return models.ModelQuota{ModelID: id, RemainingPercentage: pct, TimeUntilResetMs: resetMs}
}

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

const (
	hour = int64(60 * 60 * 1000)
	min  = int64(60 * 1000)
)

func TestIsModelUnused(t *testing.T) {
	tests := []struct {
		name  string
		model models.ModelQuota
		want  bool
	}{
		{
			name:  "full quota in window",
			model: quotaModel("m", fp(100), ip(5*hour)),
			want:  true,
		},
		{
			name:  "99 percent is inclusive",
			model: quotaModel("m", fp(99), ip(5*hour)),
			want:  true,
		},
		{
			name:  "just under full threshold",
			model: quotaModel("m", fp(98.9), ip(5*hour)),
			want:  false,
		},
		{
			name:  "window lower bound 4.5h inclusive",
			model: quotaModel("m", fp(100), ip(4*hour+30*min)),
			want:  true,
		},
		{
			name:  "window upper bound 5.5h inclusive",
			model: quotaModel("m", fp(100), ip(5*hour+30*min)),
			want:  true,
		},
		{
			name:  "one ms below window",
			model: quotaModel("m", fp(100), ip(4*hour+30*min-1)),
			want:  false,
		},
		{
			name:  "one ms above window",
			model: quotaModel("m", fp(100), ip(5*hour+30*min+1)),
			want:  false,
		},
		{
			name:  "missing remaining percentage",
			model: quotaModel("m", nil, ip(5*hour)),
			want:  false,
		},
		{
			name:  "missing reset time",
			model: quotaModel("m", fp(100), nil),
			want:  false,
		},
		{
			name:  "no data at all",
			model: quotaModel("m", nil, nil),
			want:  false,
		},
		{
			name:  "exhausted model",
			model: quotaModel("m", fp(0), ip(5*hour)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsModelUnused(tt.model))
		})
	}
}

func TestFindUnusedModels(t *testing.T) {
	snapshot := models.QuotaSnapshot{
		Models: []models.ModelQuota{
			quotaModel("busy", fp(40), ip(5*hour)),
			quotaModel("fresh-1", fp(100), ip(5*hour)),
			quotaModel("no-data", nil, nil),
			quotaModel("fresh-2", fp(99.5), ip(5*hour-10*min)),
		},
	}

	unused := FindUnusedModels(snapshot)

	assert.Len(t, unused, 2)
	// Snapshot order is preserved.
	assert.Equal(t, "fresh-1", unused[0].ModelID)
	assert.Equal(t, "fresh-2", unused[1].ModelID)
	assert.True(t, HasUnusedModels(snapshot))
}

func TestHasUnusedModelsEmpty(t *testing.T) {
	assert.False(t, HasUnusedModels(models.QuotaSnapshot{}))
	assert.Empty(t, FindUnusedModels(models.QuotaSnapshot{
		Models: []models.ModelQuota{quotaModel("busy", fp(10), ip(5*hour))},
	}))
}
