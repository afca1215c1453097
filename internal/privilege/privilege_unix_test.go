//go:build linux || darwin || freebsd || netbsd || openbsd

package privilege

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records niceness changes instead of touching the real process
type fakeScheduler struct {
	nice        int
	readErr     error
	denyBelow   *int
	setCalls    []int
	ignoredSigs int
	resetSigs   int
}

func (f *fakeScheduler) install(m *niceManager) {
	m.currentNice = func() (int, error) {
		return f.nice, f.readErr
	}
	m.setNice = func(n int) error {
		f.setCalls = append(f.setCalls, n)
		if f.denyBelow != nil && n < *f.denyBelow {
			return errors.New("permission denied")
		}
		f.nice = n
		return nil
	}
	m.ignoreSignals = func(_ ...os.Signal) { f.ignoredSigs++ }
	m.resetSignals = func(_ ...os.Signal) { f.resetSigs++ }
}

func intPtr(i int) *int {
	return &i
}

func TestNiceManager_TryAcquire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		scheduler    *fakeScheduler
		opts         []Option
		expectGrant  bool
		expectNice   int
		expectSets   []int
		expectIgnore int
	}{
		{
			name:        "lowers niceness when permitted",
			scheduler:   &fakeScheduler{nice: 0},
			opts:        []Option{WithNiceness(-5)},
			expectGrant: true,
			expectNice:  -5,
			expectSets:  []int{-5},
		},
		{
			name:        "denied when the kernel refuses",
			scheduler:   &fakeScheduler{nice: 0, denyBelow: intPtr(0)},
			opts:        []Option{WithNiceness(-5)},
			expectGrant: false,
			expectNice:  0,
			expectSets:  []int{-5, 0},
		},
		{
			name:        "denied when niceness cannot be read",
			scheduler:   &fakeScheduler{readErr: errors.New("no procfs")},
			expectGrant: false,
		},
		{
			name:        "already at a higher priority grants without change",
			scheduler:   &fakeScheduler{nice: -10},
			opts:        []Option{WithNiceness(-5)},
			expectGrant: true,
			expectNice:  -10,
		},
		{
			name:         "shields signals while held",
			scheduler:    &fakeScheduler{nice: 0},
			opts:         []Option{WithNiceness(-2), WithSignalShield(true)},
			expectGrant:  true,
			expectNice:   -2,
			expectSets:   []int{-2},
			expectIgnore: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newNiceManager(newSettings(tt.opts...))
			tt.scheduler.install(m)

			assert.Equal(t, tt.expectGrant, m.TryAcquire())
			assert.Equal(t, tt.expectNice, tt.scheduler.nice)
			assert.Equal(t, tt.expectSets, tt.scheduler.setCalls)
			assert.Equal(t, tt.expectIgnore, tt.scheduler.ignoredSigs)
		})
	}
}

func TestNiceManager_Release(t *testing.T) {
	t.Parallel()

	t.Run("restores previous niceness and signals", func(t *testing.T) {
		t.Parallel()

		sched := &fakeScheduler{nice: 3}
		m := newNiceManager(newSettings(WithNiceness(-4), WithSignalShield(true)))
		sched.install(m)

		require.True(t, m.TryAcquire())
		m.Release()

		assert.Equal(t, 3, sched.nice)
		assert.Equal(t, []int{-4, 3}, sched.setCalls)
		assert.Equal(t, 1, sched.resetSigs)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		t.Parallel()

		sched := &fakeScheduler{nice: 0}
		m := newNiceManager(newSettings())
		sched.install(m)

		m.Release()
		require.True(t, m.TryAcquire())
		m.Release()
		m.Release()

		assert.Equal(t, []int{DefaultNiceness, 0}, sched.setCalls)
	})

	t.Run("acquire while held keeps the existing grant", func(t *testing.T) {
		t.Parallel()

		sched := &fakeScheduler{nice: 0}
		m := newNiceManager(newSettings())
		sched.install(m)

		require.True(t, m.TryAcquire())
		assert.True(t, m.TryAcquire())
		assert.Equal(t, []int{DefaultNiceness}, sched.setCalls, "second acquire must not touch the scheduler")

		m.Release()
		assert.Equal(t, 0, sched.nice)
	})
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	m := Disabled()
	assert.False(t, m.TryAcquire())
	m.Release()
}
