package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of wakeup lifecycle event
type EventType string

const (
	// Reset detection events
	ResetDetected EventType = "RESET_DETECTED"
	ResetSkipped  EventType = "RESET_SKIPPED"

	// Trigger events
	TriggerSuccess EventType = "TRIGGER_SUCCESS"
	TriggerFailure EventType = "TRIGGER_FAILURE"

	// Configuration events
	ConfigChange EventType = "CONFIG_CHANGE"

	// Account events
	AccountSkipped EventType = "ACCOUNT_SKIPPED"
)

// EventStatus represents the status of a logged event
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
)

// Event is a structured record of a wakeup lifecycle occurrence, written to
// the log stream alongside regular entries for post-hoc diagnosis.
type Event struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    EventType              `json:"event_type"`
	AccountEmail string                 `json:"account_email,omitempty"`
	ModelID      string                 `json:"model_id,omitempty"`
	Status       EventStatus            `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewEvent creates a new event with a generated ID and timestamp
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
}

// WithAccount sets the account email for the event
func (e *Event) WithAccount(email string) *Event {
	e.AccountEmail = email
	return e
}

// WithModel sets the model ID for the event
func (e *Event) WithModel(modelID string) *Event {
	e.ModelID = modelID
	return e
}

// WithDetails sets the details map for the event
func (e *Event) WithDetails(details map[string]interface{}) *Event {
	e.Details = details
	return e
}

// WithError sets the error message and marks the event as failed
func (e *Event) WithError(errorMessage string) *Event {
	e.ErrorMessage = errorMessage
	e.Status = StatusFailure
	return e
}

// ToJSON converts the event to a JSON string
func (e *Event) ToJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal event: %v"}`, err)
	}
	return string(data)
}

// Emit writes the event through the given logger at the level implied by its
// status.
func (e *Event) Emit(l *Logger) {
	if l == nil {
		return
	}
	fields := []interface{}{"event", string(e.EventType), "event_id", e.ID}
	if e.AccountEmail != "" {
		fields = append(fields, "account", e.AccountEmail)
	}
	if e.ModelID != "" {
		fields = append(fields, "model", e.ModelID)
	}
	if e.Status == StatusFailure {
		if e.ErrorMessage != "" {
			fields = append(fields, "error", e.ErrorMessage)
		}
		l.Warn(string(e.EventType), fields...)
		return
	}
	l.Info(string(e.EventType), fields...)
}
