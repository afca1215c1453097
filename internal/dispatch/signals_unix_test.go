//go:build linux || darwin || freebsd || netbsd || openbsd

package dispatch

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sys/unix"

	"github.com/stacklok/toolhive-autosave/internal/coordinator/mocks"
)

func TestDefaultSignalMapping(t *testing.T) {
	t.Parallel()

	mapping := defaultSignalMapping()
	assert.Equal(t, StartSaving, mapping[unix.SIGUSR1])
	assert.Equal(t, KillProcess, mapping[unix.SIGTERM])
	assert.Equal(t, KillProcess, mapping[unix.SIGINT])
	assert.Equal(t, CancelSaving, mapping[unix.SIGUSR2])

	for _, shielded := range []os.Signal{unix.SIGHUP, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU} {
		_, ok := mapping[shielded]
		assert.False(t, ok, "%v must stay unsubscribed", shielded)
	}
}

func TestSignalSource_Run(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockCoordinator(ctrl)

	saved := make(chan struct{})
	killed := make(chan struct{})
	m.EXPECT().RequestSave().Do(func() { close(saved) })
	m.EXPECT().RequestKill(gomock.Any()).Do(func(context.Context) { close(killed) })

	captured := make(chan chan<- os.Signal, 1)
	stopped := make(chan struct{})

	src := NewSignalSource(NewDispatcher(m))
	src.notify = func(c chan<- os.Signal, sig ...os.Signal) {
		assert.Len(t, sig, 4)
		captured <- c
	}
	src.stop = func(chan<- os.Signal) { close(stopped) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	var ch chan<- os.Signal
	select {
	case ch = <-captured:
	case <-time.After(5 * time.Second):
		t.Fatal("signal source never subscribed")
	}

	ch <- unix.SIGUSR1
	ch <- unix.SIGTERM

	for _, c := range []chan struct{}{saved, killed} {
		select {
		case <-c:
		case <-time.After(5 * time.Second):
			t.Fatal("signal was not dispatched")
		}
	}

	cancel()
	require.NoError(t, <-done)
	<-stopped
}
