package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

const (
	// JournalSchemaVersion defines the current schema version for journal files
	JournalSchemaVersion = "1.0.0"
	// JournalFilePermissions defines the permissions for journal files
	JournalFilePermissions = 0600
	// JournalDirPermissions defines the permissions for the journal directory
	JournalDirPermissions = 0700
	// JournalDirName is the directory created inside the git dir
	JournalDirName = "releasesync"
	// LockTimeout defines the maximum time to wait for a lock
	LockTimeout = 30 * time.Second
	// LockRetryInterval defines the interval between lock retry attempts
	LockRetryInterval = 100 * time.Millisecond
)

// JournalRepository persists reconcile sessions so a crashed run can be inspected.
type JournalRepository interface {
	Save(ctx context.Context, session *domain.Session) error
	Load(ctx context.Context, sessionID string) (*domain.Session, error)
	LoadLatest(ctx context.Context) (*domain.Session, error)
}

// JournalMetadata contains metadata about the journal file
type JournalMetadata struct {
	SchemaVersion string    `json:"schema_version"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// journalWrapper wraps the session with metadata
type journalWrapper struct {
	Metadata JournalMetadata `json:"metadata"`
	Session  *domain.Session `json:"session"`
}

// JSONJournalRepository implements JournalRepository using JSON files guarded by flock.
// Lock files always live on the OS filesystem.
type JSONJournalRepository struct {
	fs  afero.Fs
	dir string
	mu  sync.RWMutex
}

// NewJSONJournalRepository creates a journal stored under dir.
func NewJSONJournalRepository(fs afero.Fs, dir string) *JSONJournalRepository {
	return &JSONJournalRepository{fs: fs, dir: dir}
}

// JournalDir returns the journal directory for a git dir.
func JournalDir(gitDir string) string {
	return filepath.Join(gitDir, JournalDirName)
}

// Save persists the session atomically under an exclusive lock.
func (r *JSONJournalRepository) Save(ctx context.Context, session *domain.Session) error {
	if err := r.fs.MkdirAll(r.dir, JournalDirPermissions); err != nil {
		return fmt.Errorf("failed to ensure journal directory: %w", err)
	}
	unlock, err := r.lock(ctx, session.SessionID, false)
	if err != nil {
		return err
	}
	defer unlock()
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session for checksum: %w", err)
	}
	wrapper := journalWrapper{
		Metadata: JournalMetadata{
			SchemaVersion: JournalSchemaVersion,
			Checksum:      checksum(payload),
			CreatedAt:     session.StartedAt,
			UpdatedAt:     time.Now(),
		},
		Session: session,
	}
	data, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}
	filename := r.sessionFile(session.SessionID)
	if err := r.writeAtomic(filename, data); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAtomic(r.latestFile(), []byte(filepath.Base(filename)))
}

// Load retrieves a session and validates its checksum.
func (r *JSONJournalRepository) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	unlock, err := r.lock(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	defer unlock()
	data, err := afero.ReadFile(r.fs, r.sessionFile(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("journal not found for session %s", sessionID)
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	var wrapper journalWrapper
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	if wrapper.Metadata.SchemaVersion != JournalSchemaVersion {
		return nil, fmt.Errorf("incompatible schema version: expected %s, got %s",
			JournalSchemaVersion, wrapper.Metadata.SchemaVersion)
	}
	payload, err := json.Marshal(wrapper.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session for checksum validation: %w", err)
	}
	if wrapper.Metadata.Checksum != checksum(payload) {
		return nil, fmt.Errorf("journal checksum mismatch: data may be corrupted")
	}
	return wrapper.Session, nil
}

// LoadLatest retrieves the most recently saved session.
func (r *JSONJournalRepository) LoadLatest(ctx context.Context) (*domain.Session, error) {
	r.mu.RLock()
	data, err := afero.ReadFile(r.fs, r.latestFile())
	r.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no journal found")
		}
		return nil, fmt.Errorf("failed to read latest link: %w", err)
	}
	sessionID := extractSessionID(string(data))
	if sessionID == "" {
		return nil, fmt.Errorf("invalid latest link target: %s", data)
	}
	return r.Load(ctx, sessionID)
}

func (r *JSONJournalRepository) lock(ctx context.Context, sessionID string, shared bool) (func(), error) {
	if err := os.MkdirAll(r.dir, JournalDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(r.dir, fmt.Sprintf(".session-%s.lock", sessionID)))
	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()
	try := lock.TryLock
	if shared {
		try = lock.TryRLock
	}
	locked, err := retryLock(lockCtx, try)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire lock within timeout")
	}
	return func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to unlock journal: %v\n", unlockErr)
		}
	}, nil
}

// retryLock polls try until it succeeds or ctx ends.
func retryLock(ctx context.Context, try func() (bool, error)) (bool, error) {
	if locked, err := try(); err != nil || locked {
		return locked, err
	}
	ticker := time.NewTicker(LockRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			locked, err := try()
			if err != nil {
				return false, err
			}
			if locked {
				return true, nil
			}
		}
	}
}

func (r *JSONJournalRepository) writeAtomic(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, JournalFilePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(tmp), err)
	}
	if err := r.fs.Rename(tmp, filename); err != nil {
		if removeErr := r.fs.Remove(tmp); removeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove temp file: %v\n", removeErr)
		}
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(filename), err)
	}
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (r *JSONJournalRepository) sessionFile(sessionID string) string {
	return filepath.Join(r.dir, fmt.Sprintf("session-%s.json", sessionID))
}

func (r *JSONJournalRepository) latestFile() string {
	return filepath.Join(r.dir, "latest.txt")
}

func extractSessionID(filename string) string {
	base := filepath.Base(filename)
	const prefix, suffix = "session-", ".json"
	if len(base) > len(prefix)+len(suffix) && base[:len(prefix)] == prefix && base[len(base)-len(suffix):] == suffix {
		return base[len(prefix) : len(base)-len(suffix)]
	}
	return ""
}
