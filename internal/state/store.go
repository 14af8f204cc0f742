package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Store persists the one piece of state that survives restarts: the
// auto-pilot flag. Implementations are injected into the trading engine so
// the engine never knows where the flag lives.
type Store interface {
	LoadAutoPilot() (bool, error)
	SaveAutoPilot(enabled bool) error
}

// FileStore keeps the flag in a small JSON file next to the process.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at the given path. The file is created on
// first save; a missing file loads as false.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type persisted struct {
	AutoPilot bool `json:"autoPilot"`
}

func (s *FileStore) LoadAutoPilot() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read state file: %w", err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return false, fmt.Errorf("parse state file: %w", err)
	}
	return p.AutoPilot, nil
}

func (s *FileStore) SaveAutoPilot(enabled bool) error {
	data, err := json.Marshal(persisted{AutoPilot: enabled})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
