package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandPersister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{name: "nil args", args: nil, expectError: true},
		{name: "empty command", args: []string{""}, expectError: true},
		{name: "valid command", args: []string{"true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewCommandPersister(tt.args, 0)
			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestCommandPersister_Persist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		args             []string
		unloadedExitCode int
		expectError      bool
		expectUnloaded   bool
		errorContains    string
	}{
		{
			name: "successful hook",
			args: []string{"sh", "-c", "exit 0"},
		},
		{
			name:             "unloaded exit code maps to component unloaded",
			args:             []string{"sh", "-c", "exit 3"},
			unloadedExitCode: 3,
			expectError:      true,
			expectUnloaded:   true,
		},
		{
			name:             "other exit codes are ordinary failures",
			args:             []string{"sh", "-c", "echo disk full; exit 1"},
			unloadedExitCode: 3,
			expectError:      true,
			errorContains:    "disk full",
		},
		{
			name:          "zero unloaded code never classifies",
			args:          []string{"sh", "-c", "exit 3"},
			expectError:   true,
			errorContains: "persist hook sh failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewCommandPersister(tt.args, tt.unloadedExitCode)
			require.NoError(t, err)

			err = p.Persist(context.Background())
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.expectUnloaded, IsComponentUnloaded(err))
			if tt.errorContains != "" {
				assert.Contains(t, err.Error(), tt.errorContains)
			}
		})
	}
}
