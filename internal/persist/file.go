package persist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
	"github.com/valyala/bytebufferpool"
)

const (
	// defaultLockRetryDelay is how often a contended destination lock is retried
	defaultLockRetryDelay = 50 * time.Millisecond
	// defaultMaxTries bounds the attempts made for transient copy failures within one pass
	defaultMaxTries = 3
	// lockSuffix is appended to the destination path to build its lock file
	lockSuffix = ".lock"
)

// FileOption configures a file persister
type FileOption func(*filePersister)

// WithLockRetryDelay sets the delay between attempts to take the destination lock
func WithLockRetryDelay(d time.Duration) FileOption {
	return func(f *filePersister) {
		f.lockRetryDelay = d
	}
}

// WithMaxTries sets the number of attempts made for transient failures in a single pass
func WithMaxTries(n uint) FileOption {
	return func(f *filePersister) {
		f.maxTries = n
	}
}

// filePersister snapshots a working file into a save location.
// The source disappearing is reported as ErrComponentUnloaded.
type filePersister struct {
	source         string
	destination    string
	lockRetryDelay time.Duration
	maxTries       uint

	mu       sync.Mutex
	lastHash string
}

// NewFilePersister creates a Persister that copies source to destination atomically.
// Unchanged content (by SHA-256) is not rewritten.
func NewFilePersister(source, destination string, opts ...FileOption) Persister {
	f := &filePersister{
		source:         source,
		destination:    destination,
		lockRetryDelay: defaultLockRetryDelay,
		maxTries:       defaultMaxTries,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Persist copies the source file, retrying transient failures with exponential backoff
func (f *filePersister) Persist(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := f.persistOnce(ctx)
		if err != nil && IsComponentUnloaded(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			slog.Debug("Snapshot attempt failed", "source", f.source, "error", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(f.maxTries))

	return err
}

// persistOnce performs a single snapshot attempt
func (f *filePersister) persistOnce(ctx context.Context) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := f.readSource(buf); err != nil {
		return err
	}

	sum := sha256.Sum256(buf.B)
	hash := hex.EncodeToString(sum[:])

	if f.snapshotCurrent(hash) {
		slog.Debug("Source unchanged since last snapshot, skipping write", "source", f.source)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.destination), 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	lock := flock.New(f.destination + lockSuffix)
	locked, err := lock.TryLockContext(ctx, f.lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock destination %s: %w", f.destination, err)
	}
	if !locked {
		return fmt.Errorf("destination %s is locked by another writer", f.destination)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock destination", "destination", f.destination, "error", err)
		}
	}()

	if err := writeAtomic(f.destination, buf.B); err != nil {
		return err
	}

	f.mu.Lock()
	f.lastHash = hash
	f.mu.Unlock()

	hashPreview := hash[:8]
	slog.Debug("Snapshot written",
		"source", f.source,
		"destination", f.destination,
		"bytes", buf.Len(),
		"hash", hashPreview)

	return nil
}

// snapshotCurrent reports whether the destination still holds the content last
// written with the given hash. A destination removed or rewritten by someone
// else is not current.
func (f *filePersister) snapshotCurrent(hash string) bool {
	f.mu.Lock()
	last := f.lastHash
	f.mu.Unlock()
	if hash != last {
		return false
	}

	// #nosec G304 -- destination is operator configuration, not request input
	dst, err := os.Open(f.destination)
	if err != nil {
		return false
	}
	defer func() {
		_ = dst.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, dst); err != nil {
		return false
	}
	return hex.EncodeToString(h.Sum(nil)) == hash
}

// writeAtomic writes data to a uniquely named temp file next to path and renames it into place
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tempPath := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write temporary snapshot: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot into place: %w", err)
	}
	return nil
}

// readSource loads the whole source file into buf
func (f *filePersister) readSource(buf *bytebufferpool.ByteBuffer) error {
	// #nosec G304 -- source is operator configuration, not request input
	src, err := os.Open(f.source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("source %s: %w", f.source, ErrComponentUnloaded)
		}
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	if _, err := buf.ReadFrom(src); err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	return nil
}
