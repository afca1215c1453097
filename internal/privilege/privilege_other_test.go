//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package privilege

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Not parallel: swaps the default logger
func TestNewManager_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	m := NewManager(WithNiceness(-10), WithSignalShield(true))

	assert.False(t, m.TryAcquire())
	m.Release()
	assert.Empty(t, buf.String(), "nothing about niceness is logged at info on this platform")
}
