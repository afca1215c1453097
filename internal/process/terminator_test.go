package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExitTerminator_Terminate(t *testing.T) {
	t.Parallel()

	var order []string
	var exitCodes []int

	term := NewExitTerminator(
		WithShutdownHook("telemetry", func(_ context.Context) error {
			order = append(order, "telemetry")
			return errors.New("collector unreachable")
		}),
		WithShutdownHook("logger", func(_ context.Context) error {
			order = append(order, "logger")
			return nil
		}),
		WithExitFunc(func(code int) {
			exitCodes = append(exitCodes, code)
		}),
	)

	term.Terminate()
	term.Terminate()

	assert.Equal(t, []string{"telemetry", "logger"}, order, "hooks run once, in order, even after a failure")
	assert.Equal(t, []int{0}, exitCodes)
}

func TestExitTerminator_HookTimeout(t *testing.T) {
	t.Parallel()

	var hookErr error
	exited := false

	term := NewExitTerminator(
		WithHookTimeout(20*time.Millisecond),
		WithShutdownHook("slow", func(ctx context.Context) error {
			<-ctx.Done()
			hookErr = ctx.Err()
			return hookErr
		}),
		WithExitFunc(func(int) { exited = true }),
	)

	term.Terminate()

	assert.ErrorIs(t, hookErr, context.DeadlineExceeded)
	assert.True(t, exited)
}
