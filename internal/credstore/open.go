package credstore

import (
	"path/filepath"

	"github.com/amonks/taskdash/internal/paths"
)

// OpenOptions locates the on-disk store.
type OpenOptions struct {
	// StateDir overrides the durable directory.
	StateDir string
	// SessionDir overrides the session-scoped directory.
	SessionDir string
	// Secure marks the mirrored cookie as https-only.
	Secure bool
}

// Open returns a file-backed store for the CLI.
func Open(opts OpenOptions) (*Store, error) {
	stateDir := opts.StateDir
	if stateDir == "" {
		dir, err := paths.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}
	sessionDir := opts.SessionDir
	if sessionDir == "" {
		sessionDir = paths.DefaultSessionDir()
	}
	return &Store{
		Durable: NewFileBackend(stateDir, "local.json"),
		Session: NewFileBackend(sessionDir, "session.json"),
		Edge:    &CookieFile{Path: filepath.Join(stateDir, "cookies.json"), Secure: opts.Secure},
	}, nil
}

// NewMemoryStore returns a store that lives only in memory, with the given
// edge channel.
func NewMemoryStore(edge EdgeChannel) *Store {
	return &Store{
		Durable: NewMemoryBackend(),
		Session: NewMemoryBackend(),
		Edge:    edge,
	}
}
