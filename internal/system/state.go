package system

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// ErrStateNotFound is returned when no snapshot has been saved yet.
var ErrStateNotFound = errors.New("system: state not found")

// State is a point-in-time view of the manager used by the status command.
// It is a debug aid and carries no compatibility promise.
type State struct {
	Tick         uint64         `json:"tick"`
	Enabled      bool           `json:"enabled"`
	Activity     string         `json:"activity"`
	Current      behavior.ID    `json:"current"`
	CurrentClass behavior.Class `json:"current_class"`
	Since        time.Time      `json:"since,omitempty"`
	Helpers      []string       `json:"helpers,omitempty"`
	HelperOwner  string         `json:"helper_owner,omitempty"`
	TakenAt      time.Time      `json:"taken_at"`
}

// Running reports whether a behavior was current.
func (s State) Running() bool {
	return s.Current != "" && s.Current != behavior.NoneID
}

// Snapshot captures the manager state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := State{
		Tick:         m.tick,
		Enabled:      m.enabled,
		Current:      behavior.IDOf(m.running.Behavior),
		CurrentClass: behavior.ClassOf(m.running.Behavior),
		Since:        m.running.Since,
		Helpers:      m.helpers.Names(),
		HelperOwner:  m.helpers.Owner(),
		TakenAt:      m.clock(),
	}
	if m.active != nil {
		state.Activity = m.active.ID()
	}
	return state
}

// StateStore persists manager snapshots.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// Repository stores snapshots as JSON inside the project state directory.
type Repository struct {
	path string
}

// NewRepository creates a repository writing dir/state.json.
func NewRepository(dir string) *Repository {
	return &Repository{path: filepath.Join(dir, "state.json")}
}

// Path returns the snapshot file location.
func (r *Repository) Path() string { return r.path }

// Load reads the persisted snapshot if present.
func (r *Repository) Load() (State, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Save writes the snapshot through a temp file and rename.
func (r *Repository) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
