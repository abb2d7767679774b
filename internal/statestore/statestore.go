// Package statestore persists the wakeup state documents as JSON files, one
// file per concern. Writes go through a temp file and rename so a crashed
// write never leaves a half-written document behind.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/models"
)

const (
	// WakeupConfigFile holds the wakeup configuration document.
	WakeupConfigFile = "wakeup_config.json"
	// TriggerHistoryFile holds the bounded trigger history, newest first.
	TriggerHistoryFile = "trigger_history.json"
	// ResetStateFile holds the per-reset-key dedup state.
	ResetStateFile = "reset_state.json"
	// ModelMappingFile holds the model-ID to reset-key mapping.
	ModelMappingFile = "model_mapping.json"

	// MaxHistoryEntries caps the trigger history ring buffer.
	MaxHistoryEntries = 100
)

// Store reads and writes the wakeup state documents under one directory.
// Access is serialized with a single lock; the process model assumes at most
// one instance runs at a time, so there is no cross-process locking.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the state directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// LoadWakeupConfig returns the persisted wakeup config, or the default
// document when none has been saved yet.
func (s *Store) LoadWakeupConfig() (*models.WakeupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg models.WakeupConfig
	ok, err := s.readJSON(WakeupConfigFile, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.DefaultWakeupConfig(), nil
	}
	return &cfg, nil
}

// SaveWakeupConfig persists the whole config document.
func (s *Store) SaveWakeupConfig(cfg *models.WakeupConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(WakeupConfigFile, cfg)
}

// AppendTriggerRecords prepends records to the history, newest first, and
// drops the oldest entries past MaxHistoryEntries.
func (s *Store) AppendTriggerRecords(records ...models.TriggerRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var history []models.TriggerRecord
	if _, err := s.readJSON(TriggerHistoryFile, &history); err != nil {
		return err
	}

	// Later arguments are more recent; reverse so the last append lands first.
	prepended := make([]models.TriggerRecord, 0, len(records)+len(history))
	for i := len(records) - 1; i >= 0; i-- {
		prepended = append(prepended, records[i])
	}
	prepended = append(prepended, history...)

	if len(prepended) > MaxHistoryEntries {
		prepended = prepended[:MaxHistoryEntries]
	}

	return s.writeJSON(TriggerHistoryFile, prepended)
}

// LoadTriggerHistory returns the full retained history, newest first.
func (s *Store) LoadTriggerHistory() ([]models.TriggerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []models.TriggerRecord
	if _, err := s.readJSON(TriggerHistoryFile, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// RecentHistory returns up to limit records, newest first.
func (s *Store) RecentHistory(limit int) ([]models.TriggerRecord, error) {
	history, err := s.LoadTriggerHistory()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// LastTrigger returns the most recent trigger record, if any.
func (s *Store) LastTrigger() (*models.TriggerRecord, bool, error) {
	history, err := s.LoadTriggerHistory()
	if err != nil {
		return nil, false, err
	}
	if len(history) == 0 {
		return nil, false, nil
	}
	return &history[0], true, nil
}

// LoadResetState returns the dedup state map, empty when absent.
func (s *Store) LoadResetState() (models.ResetState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.ResetState{}
	if _, err := s.readJSON(ResetStateFile, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = models.ResetState{}
	}
	return state, nil
}

// SaveResetState persists the dedup state map.
func (s *Store) SaveResetState(state models.ResetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(ResetStateFile, state)
}

// ClearResetState removes all dedup entries. Entries are never auto-expired;
// this is the only way they go away.
func (s *Store) ClearResetState() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, ResetStateFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &errors.ErrStateWrite{Document: ResetStateFile, Err: err}
	}
	return nil
}

// LoadModelMapping returns the model-ID to reset-key mapping, empty when
// absent. Unmapped model IDs are their own reset key.
func (s *Store) LoadModelMapping() (models.ModelMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping := models.ModelMapping{}
	if _, err := s.readJSON(ModelMappingFile, &mapping); err != nil {
		return nil, err
	}
	if mapping == nil {
		mapping = models.ModelMapping{}
	}
	return mapping, nil
}

// SaveModelMapping persists the model mapping document.
func (s *Store) SaveModelMapping(mapping models.ModelMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(ModelMappingFile, mapping)
}

// readJSON loads a document into v. It returns false with no error when the
// document does not exist.
func (s *Store) readJSON(name string, v interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &errors.ErrFileRead{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &errors.ErrStateCorrupt{Document: name, Err: err}
	}
	return true, nil
}

func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &errors.ErrStateWrite{Document: name, Err: err}
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &errors.ErrStateWrite{Document: name, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &errors.ErrStateWrite{Document: name, Err: err}
	}
	return nil
}
