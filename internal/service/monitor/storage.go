package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

const storageComponent = "monitor.storage"

// seenIDsField is the persisted key holding the seen comment ids.
const seenIDsField = "seenCommentIds"

// tempFilePattern names the temp file used during an atomic rewrite.
const tempFilePattern = "state-*.tmp"

// State is the persisted monitor state. Fields written by other tools
// or future versions survive a load/save round trip untouched.
type State struct {
	SeenCommentIDs []string

	extra map[string]json.RawMessage
}

// UnmarshalJSON keeps unrecognized top-level fields so a rewrite never
// discards them.
func (s *State) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields[seenIDsField]; ok {
		if err := json.Unmarshal(raw, &s.SeenCommentIDs); err != nil {
			return err
		}
		delete(fields, seenIDsField)
	}

	s.extra = fields
	return nil
}

// MarshalJSON writes the seen ids next to every preserved foreign field.
func (s State) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(s.extra)+1)
	for k, v := range s.extra {
		fields[k] = v
	}

	ids := s.SeenCommentIDs
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	fields[seenIDsField] = raw

	return json.Marshal(fields)
}

// FileStateStore persists the monitor state as a JSON file.
type FileStateStore struct {
	path string

	mu sync.Mutex
}

// NewFileStateStore creates a store writing to the given file path.
func NewFileStateStore(path string) (*FileStateStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "the state file path '%s' could not be resolved", path)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "the state directory for '%s' could not be created", absPath)
	}

	return &FileStateStore{path: absPath}, nil
}

// Load reads the persisted state. A missing or unreadable file yields
// an empty state: losing the dedup history means at worst duplicate
// notifications, never a refusal to start.
func (s *FileStateStore) Load() *State {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if err != nil {
		if !os.IsNotExist(err) {
			applog.WithComponentAndFields(storageComponent, applog.Fields{
				"path":  s.path,
				"error": err,
			}).Warn("the state file could not be read, starting with empty state")
		}
		return &State{}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		applog.WithComponentAndFields(storageComponent, applog.Fields{
			"path":  s.path,
			"error": err,
		}).Warn("the state file is corrupt, starting with empty state")
		return &State{}
	}

	return &state
}

// Save writes the state atomically: temp file in the same directory,
// fsync, then rename over the previous file.
func (s *FileStateStore) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "\t")
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "the state could not be encoded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAtomic(data)
}

func (s *FileStateStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)

	tmpFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.System, "a temp file could not be created in '%s'", dir)
	}
	tmpPath := tmpFile.Name()

	// Close before Remove: Windows cannot delete an open file.
	defer os.Remove(tmpPath)
	defer tmpFile.Close()

	if _, err := tmpFile.Write(data); err != nil {
		return apperrors.Wrap(err, apperrors.System, "the state could not be written")
	}

	// Without the fsync a power loss can leave a zero-length file
	// behind the rename.
	if err := tmpFile.Sync(); err != nil {
		return apperrors.Wrap(err, apperrors.System, "the state file could not be synced")
	}

	if err := tmpFile.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.System, "the state file could not be closed")
	}

	if err := renameWithRetry(tmpPath, s.path); err != nil {
		return apperrors.Wrapf(err, apperrors.System, "the state file '%s' could not be replaced", s.path)
	}

	// Best effort: persist the directory entry as well.
	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		dirFile.Close()
	}

	return nil
}

// renameWithRetry retries the rename briefly. On Windows a virus
// scanner or indexer can hold the target for a moment.
func renameWithRetry(oldPath, newPath string) error {
	const maxRetries = 5
	const retryDelay = 10 * time.Millisecond

	var lastErr error
	for range maxRetries {
		if err := os.Rename(oldPath, newPath); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(retryDelay)
	}

	return lastErr
}
