package models

// ScheduleMode selects how the surrounding scheduler fires wakeups. The core
// only stores it; interpretation belongs to the scheduler.
type ScheduleMode string

const (
	ScheduleInterval ScheduleMode = "interval"
	ScheduleDaily    ScheduleMode = "daily"
	ScheduleWeekly   ScheduleMode = "weekly"
	ScheduleCustom   ScheduleMode = "custom"
)

// WakeupConfig is the persisted wakeup configuration document. It is written
// as a whole on every save; there are no partial updates.
type WakeupConfig struct {
	Enabled        bool         `json:"enabled"`
	SelectedModels []string     `json:"selectedModels"`
	// SelectedAccounts distinguishes three cases: nil means "no selection,
	// use fallback resolution"; an empty slice means "explicitly use no
	// accounts"; a non-empty slice is an explicit allow list.
	SelectedAccounts     *[]string    `json:"selectedAccounts,omitempty"`
	CustomPrompt         string       `json:"customPrompt,omitempty"`
	MaxOutputTokens      int          `json:"maxOutputTokens,omitempty"`
	ScheduleMode         ScheduleMode `json:"scheduleMode"`
	ScheduleExpr         string       `json:"scheduleExpr,omitempty"`
	WakeOnReset          bool         `json:"wakeOnReset"`
	ResetCooldownMinutes int          `json:"resetCooldownMinutes,omitempty"`
}

// DefaultResetCooldownMinutes applies when ResetCooldownMinutes is unset.
const DefaultResetCooldownMinutes = 60

// DefaultWakeupConfig returns the document created on first access.
func DefaultWakeupConfig() *WakeupConfig {
	return &WakeupConfig{
		Enabled:              false,
		SelectedModels:       []string{},
		ScheduleMode:         ScheduleInterval,
		WakeOnReset:          true,
		ResetCooldownMinutes: DefaultResetCooldownMinutes,
	}
}

// CooldownMinutes returns the effective reset cooldown.
func (c *WakeupConfig) CooldownMinutes() int {
	if c.ResetCooldownMinutes > 0 {
		return c.ResetCooldownMinutes
	}
	return DefaultResetCooldownMinutes
}
