package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hwci/hwci/persist"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_AcquireTwice(t *testing.T) {
	ctx := context.Background()
	l := New(zerolog.Nop(), t.TempDir())

	require.NoError(t, l.Acquire(ctx, "req-1"))
	err := l.Acquire(ctx, "req-2")

	var locked *AlreadyLockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, l.pid, locked.Holder.PID)
	assert.Equal(t, "req-1", locked.Holder.RequestID)
}

func TestLock_ReleaseCycle(t *testing.T) {
	ctx := context.Background()
	l := New(zerolog.Nop(), t.TempDir())

	var notLocked *NotLockedError
	require.True(t, errors.As(l.Release(ctx), &notLocked))

	require.NoError(t, l.Acquire(ctx, ""))
	holder, held, err := l.Holder(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, l.hostname, holder.Hostname)

	require.NoError(t, l.Release(ctx))
	_, held, err = l.Holder(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	require.NoError(t, l.Acquire(ctx, ""))
}

func TestLock_ReleaseForeignHolder(t *testing.T) {
	ctx := context.Background()
	l := New(zerolog.Nop(), t.TempDir())
	require.NoError(t, persist.WriteJSON(l.Path(), Record{PID: l.pid + 1, Hostname: "other", AcquiredAt: time.Now()}))

	var notLocked *NotLockedError
	require.True(t, errors.As(l.Release(ctx), &notLocked))
	require.NotNil(t, notLocked.Holder)
	assert.Equal(t, "other", notLocked.Holder.Hostname)
}

func TestLock_IsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{
			name:   "young lock of dead process",
			record: Record{PID: deadPID, AcquiredAt: now.Add(-time.Minute)},
			want:   false,
		},
		{
			name:   "old lock of dead process",
			record: Record{PID: deadPID, AcquiredAt: now.Add(-2 * time.Hour)},
			want:   true,
		},
		{
			name:   "old lock of live process",
			record: Record{PID: -1, AcquiredAt: now.Add(-2 * time.Hour)},
			want:   false,
		},
		{
			name:   "old lock on another host",
			record: Record{PID: deadPID, Hostname: "elsewhere", AcquiredAt: now.Add(-2 * time.Hour)},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(zerolog.Nop(), t.TempDir())
			l.now = func() time.Time { return now }
			if tt.record.PID == -1 {
				tt.record.PID = l.pid
			}
			if tt.record.Hostname == "" {
				tt.record.Hostname = l.hostname
			}
			require.NoError(t, persist.WriteJSON(l.Path(), tt.record))

			stale, err := l.IsStale(context.Background(), time.Hour)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stale)
		})
	}
}

func TestLock_ForceRelease(t *testing.T) {
	ctx := context.Background()
	l := New(zerolog.Nop(), t.TempDir())

	_, err := l.ForceRelease(ctx, time.Hour, false)
	var notLocked *NotLockedError
	require.True(t, errors.As(err, &notLocked))

	require.NoError(t, l.Acquire(ctx, ""))
	_, err = l.ForceRelease(ctx, time.Hour, false)
	require.ErrorIs(t, err, ErrNotStale)

	holder, err := l.ForceRelease(ctx, time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, l.pid, holder.PID)

	_, held, err := l.Holder(ctx)
	require.NoError(t, err)
	assert.False(t, held)
}

// deadPID is above the default pid_max so no process can have it.
const deadPID = 1 << 30
