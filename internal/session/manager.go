package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"flatfs/internal/logging"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

var (
	logger = logging.GetLogger().WithPrefix("session")
)

const (
	recordExt = ".json"
	lockExt   = ".lock"
)

// Manager owns the registry directory and at most one session held by
// this process.
type Manager struct {
	dir string
	mu  sync.Mutex

	lock   *flock.Flock
	record *Record
	key    string
}

// NewManager creates a registry manager for dir.
// It ensures the directory exists and is writable.
func NewManager(dir string) (*Manager, error) {
	logger.Debug("Creating new session manager in: %s", dir)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session directory %s: %w", dir, err)
	}

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", absDir, err)
	}

	// Try to create a file to verify we have write permissions
	check, err := os.CreateTemp(absDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("session directory %s is not writable: %w", absDir, err)
	}
	check.Close()
	os.Remove(check.Name())

	return &Manager{dir: absDir}, nil
}

// keyFor names the lock and record files of a mountpoint. Lock files are
// never removed: a process blocked on an unlinked lock file would hold a
// lock nobody else can see.
func keyFor(mountPoint string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("flatfs://"+filepath.Clean(mountPoint))).String()
}

func (m *Manager) lockPath(key string) string   { return filepath.Join(m.dir, key+lockExt) }
func (m *Manager) recordPath(key string) string { return filepath.Join(m.dir, key+recordExt) }

// Acquire registers this process as the server of mountPoint. It fails
// with ErrAlreadyMounted when another live session holds the same
// mountpoint.
func (m *Manager) Acquire(mountPoint, fsName string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record != nil {
		return nil, fmt.Errorf("session %s already held for %s", m.record.ID, m.record.MountPoint)
	}

	absMount, err := filepath.Abs(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mount point %s: %w", mountPoint, err)
	}

	key := keyFor(absMount)
	lock := flock.New(m.lockPath(key))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock session for %s: %w", absMount, err)
	}
	if !locked {
		logger.Warn("Mount point %s is held by another session", absMount)
		return nil, fmt.Errorf("%s: %w", absMount, ErrAlreadyMounted)
	}

	record := &Record{
		ID:         uuid.NewString(),
		PID:        os.Getpid(),
		MountPoint: absMount,
		FSName:     fsName,
		StartedAt:  time.Now().UTC(),
	}

	if err := m.writeRecord(key, record); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	m.lock = lock
	m.record = record
	m.key = key

	logger.Info("Session %s acquired for %s", record.ID, absMount)
	return record, nil
}

// writeRecord writes the record file and reads it back.
func (m *Manager) writeRecord(key string, record *Record) error {
	path := m.recordPath(key)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	logger.Trace("Writing %d bytes of session data to %s", len(data), path)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}

	// Verify the write
	written, err := readRecord(path)
	if err != nil {
		return fmt.Errorf("failed to verify written session record: %w", err)
	}
	if written.ID != record.ID {
		return fmt.Errorf("session record %s was overwritten by %s", record.ID, written.ID)
	}

	return nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("session record %s is empty", path)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse session record %s: %w", path, err)
	}
	return &record, nil
}

// Release removes the record and drops the lock. The lock file stays
// behind for the next session on the same mountpoint. Releasing with no
// session held is a no-op.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return nil
	}

	logger.Info("Releasing session %s for %s", m.record.ID, m.record.MountPoint)

	var firstErr error
	if err := os.Remove(m.recordPath(m.key)); err != nil && !os.IsNotExist(err) {
		firstErr = fmt.Errorf("failed to remove session record: %w", err)
	}
	if err := m.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to unlock session: %w", err)
	}

	m.lock = nil
	m.record = nil
	m.key = ""
	return firstErr
}

// List returns the live sessions, newest first. Records whose lock is no
// longer held belong to processes that died and are removed.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	m.mu.Lock()
	ownKey := m.key
	m.mu.Unlock()

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordExt {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), recordExt)

		record, err := readRecord(m.recordPath(key))
		if err != nil {
			logger.Warn("Skipping unreadable session record %s: %v", entry.Name(), err)
			continue
		}

		if key != ownKey && !m.held(key) {
			logger.Debug("Pruning stale session %s for %s", record.ID, record.MountPoint)
			m.prune(key)
			continue
		}

		records = append(records, *record)
	}

	// Sort by start time, newest first
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	return records, nil
}

// held reports whether some process holds the lock for key.
func (m *Manager) held(key string) bool {
	lock := flock.New(m.lockPath(key))
	locked, err := lock.TryLock()
	if err != nil {
		logger.Debug("Checking lock for %s: %v", key, err)
		return true
	}
	if locked {
		_ = lock.Unlock()
		return false
	}
	return true
}

// prune removes a stale record. Its lock file is kept.
func (m *Manager) prune(key string) {
	path := m.recordPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove stale session record %s: %v", path, err)
	}
}
