// Package lock provides the advisory build lock. The lock is a record file
// naming the holder process; it outlives the holder if that process dies, so
// operators can inspect and force-release it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hwci/hwci/persist"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// FileName is the name of the lock record inside the home directory.
const FileName = "build.locked"

const (
	guardTimeout = 5 * time.Second
	guardRetry   = 20 * time.Millisecond
)

// ErrNotStale is returned by ForceRelease when the holder still looks alive.
var ErrNotStale = errors.New("build lock is not stale")

// Record identifies the holder of the lock.
type Record struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
	// ID of the build request being processed, if any
	RequestID string `json:"request_id,omitempty"`
}

func (r Record) String() string {
	return fmt.Sprintf("pid %d on %s since %s", r.PID, r.Hostname, r.AcquiredAt.Format(time.RFC3339))
}

// AlreadyLockedError is returned by Acquire while another holder exists.
type AlreadyLockedError struct {
	Holder Record
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("build lock is held by %s", e.Holder)
}

// NotLockedError is returned by Release when this process holds no lock.
type NotLockedError struct {
	// Holder is set when the lock belongs to another process
	Holder *Record
}

func (e *NotLockedError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("build lock is not held by this process (held by %s)", e.Holder)
	}
	return "build lock is not held"
}

// Lock is the build lock stored in a directory.
type Lock struct {
	logger zerolog.Logger
	path   string
	guard  *flock.Flock

	pid      int
	hostname string
	now      func() time.Time
}

// New returns the lock stored in dir.
func New(logger zerolog.Logger, dir string) *Lock {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	path := filepath.Join(dir, FileName)
	return &Lock{
		logger:   logger,
		path:     path,
		guard:    flock.New(path + ".lock"),
		pid:      os.Getpid(),
		hostname: hostname,
		now:      time.Now,
	}
}

// Path returns the lock record path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire creates the lock record for this process.
func (l *Lock) Acquire(ctx context.Context, requestID string) error {
	return l.guarded(ctx, func() error {
		holder, held, err := l.read()
		if err != nil {
			return err
		}
		if held {
			return &AlreadyLockedError{Holder: holder}
		}
		record := Record{
			PID:        l.pid,
			Hostname:   l.hostname,
			AcquiredAt: l.now().UTC(),
			RequestID:  requestID,
		}
		if err := persist.WriteJSON(l.path, record); err != nil {
			return err
		}
		l.logger.Debug().Str("path", l.path).Str("request", requestID).Msg("Acquired build lock")
		return nil
	})
}

// Release removes the lock record held by this process.
func (l *Lock) Release(ctx context.Context) error {
	return l.guarded(ctx, func() error {
		holder, held, err := l.read()
		if err != nil {
			return err
		}
		if !held {
			return &NotLockedError{}
		}
		if holder.PID != l.pid || holder.Hostname != l.hostname {
			return &NotLockedError{Holder: &holder}
		}
		if err := persist.Remove(l.path); err != nil {
			return err
		}
		l.logger.Debug().Str("path", l.path).Msg("Released build lock")
		return nil
	})
}

// Holder returns the current lock record, if any.
func (l *Lock) Holder(ctx context.Context) (Record, bool, error) {
	var (
		holder Record
		held   bool
	)
	err := l.guarded(ctx, func() error {
		var err error
		holder, held, err = l.read()
		return err
	})
	return holder, held, err
}

// IsStale reports whether the lock is older than maxAge and its holder
// process is gone. An unheld lock is not stale.
func (l *Lock) IsStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	holder, held, err := l.Holder(ctx)
	if err != nil || !held {
		return false, err
	}
	return l.stale(holder, maxAge), nil
}

// ForceRelease removes the lock record regardless of its holder. Without
// force the record must be stale. It returns the removed record.
func (l *Lock) ForceRelease(ctx context.Context, maxAge time.Duration, force bool) (Record, error) {
	var holder Record
	err := l.guarded(ctx, func() error {
		var (
			held bool
			err  error
		)
		holder, held, err = l.read()
		if err != nil {
			return err
		}
		if !held {
			return &NotLockedError{}
		}
		if !force && !l.stale(holder, maxAge) {
			return fmt.Errorf("%w: held by %s", ErrNotStale, holder)
		}
		if err := persist.Remove(l.path); err != nil {
			return err
		}
		l.logger.Warn().
			Int("pid", holder.PID).
			Str("hostname", holder.Hostname).
			Time("acquired_at", holder.AcquiredAt).
			Bool("force", force).
			Msg("Force-released build lock")
		return nil
	})
	return holder, err
}

func (l *Lock) stale(holder Record, maxAge time.Duration) bool {
	if l.now().Sub(holder.AcquiredAt) < maxAge {
		return false
	}
	// a process on another host cannot be probed
	if holder.Hostname != l.hostname {
		return false
	}
	return !alive(holder.PID)
}

// alive probes pid with signal 0. EPERM means the process exists but belongs
// to someone else.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func (l *Lock) read() (Record, bool, error) {
	var record Record
	found, err := persist.ReadJSON(l.path, &record)
	if err != nil {
		return Record{}, false, err
	}
	return record, found, nil
}

func (l *Lock) guarded(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return &persist.Error{Op: "create directory for", Path: l.path, Err: err}
	}

	guardCtx, cancel := context.WithTimeout(ctx, guardTimeout)
	defer cancel()

	locked, err := l.guard.TryLockContext(guardCtx, guardRetry)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &persist.Error{Op: "lock", Path: l.path, Err: err}
	}
	if !locked {
		return &persist.Error{Op: "lock", Path: l.path, Err: errors.New("guard not acquired")}
	}
	defer func() {
		if err := l.guard.Unlock(); err != nil {
			l.logger.Warn().Err(err).Str("path", l.path).Msg("Failed to unlock lock guard")
		}
	}()
	return fn()
}
