package blocker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/pomosync/internal/atomicfile"
	"github.com/fakeyudi/pomosync/internal/state"
)

// MirrorState is the subset of application state the blocking daemon keeps
// for itself, so it can enforce rules without the main process running.
type MirrorState struct {
	Blocklist       []string           `json:"blocklist"`
	BlockingEnabled bool               `json:"blockingEnabled"`
	BlockingMode    state.BlockingMode `json:"blockingMode"`
	CurrentTaskName string             `json:"currentTaskName,omitempty"`
}

// Request converts m into a rule request.
func (m MirrorState) Request() Request {
	return Request{Blocklist: m.Blocklist, Enabled: m.BlockingEnabled, Mode: m.BlockingMode}
}

// DefaultMirrorState is what an absent mirror file reads as.
func DefaultMirrorState() MirrorState {
	return MirrorState{Blocklist: []string{}, BlockingEnabled: true, BlockingMode: state.BlockDuringWork}
}

// Mirror is the daemon's own copy of MirrorState on disk. Other processes
// (another device's sync client, a hand edit) may rewrite the file; Watch
// reports those changes and skips the ones Mirror wrote itself.
type Mirror struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last []byte
}

// NewMirror returns a Mirror at path.
func NewMirror(path string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{path: path, logger: logger}
}

// Path returns the file location.
func (m *Mirror) Path() string { return m.path }

// Load reads the mirror. A missing or unreadable file returns the defaults.
func (m *Mirror) Load() MirrorState {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("reading blocker mirror", "error", err)
		}
		return DefaultMirrorState()
	}
	ms, err := decodeMirror(data)
	if err != nil {
		m.logger.Warn("blocker mirror is corrupt, using defaults", "error", err)
		return DefaultMirrorState()
	}
	m.mu.Lock()
	m.last = data
	m.mu.Unlock()
	return ms
}

// Save writes ms. The write is remembered so Watch does not report it back.
func (m *Mirror) Save(ms MirrorState) error {
	if ms.Blocklist == nil {
		ms.Blocklist = []string{}
	}
	data, err := json.MarshalIndent(ms, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding blocker mirror: %w", err)
	}
	m.mu.Lock()
	m.last = data
	m.mu.Unlock()
	return atomicfile.Write(m.path, data)
}

// Watch calls onChange with the new contents each time the mirror file is
// changed by someone other than this Mirror, until ctx is cancelled.
func (m *Mirror) Watch(ctx context.Context, onChange func(MirrorState)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: atomic replaces swap the file's inode.
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(m.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(m.path)
			if err != nil {
				continue
			}
			m.mu.Lock()
			own := bytes.Equal(data, m.last)
			if !own {
				m.last = data
			}
			m.mu.Unlock()
			if own {
				continue
			}
			ms, err := decodeMirror(data)
			if err != nil {
				// Possibly a partial write by a non-atomic writer; the
				// next event carries the complete file.
				m.logger.Debug("ignoring unreadable mirror change", "error", err)
				m.mu.Lock()
				m.last = nil
				m.mu.Unlock()
				continue
			}
			onChange(ms)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Debug("mirror watcher error", "error", err)
		}
	}
}

func decodeMirror(data []byte) (MirrorState, error) {
	ms := DefaultMirrorState()
	if err := json.Unmarshal(data, &ms); err != nil {
		return DefaultMirrorState(), err
	}
	if ms.Blocklist == nil {
		ms.Blocklist = []string{}
	}
	if ms.BlockingMode != state.BlockAlways && ms.BlockingMode != state.BlockDuringWork {
		ms.BlockingMode = state.BlockDuringWork
	}
	return ms, nil
}
