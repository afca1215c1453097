package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

func intPtr(i int) *int {
	return &i
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		yamlContent      string
		skipFileCreation bool
		wantConfig       *Config
		wantErr          string
	}{
		{
			name: "file_backend_with_all_sections",
			yamlContent: `name: my-document
persist:
  timeout: 30s
  file:
    source: ./work/document.kra
    destination: ./saves/document.kra
privilege:
  enabled: true
  niceness: -10
  shieldSignals: true
autosave:
  interval: 5m
  killTimeout: 2m
control:
  address: 127.0.0.1:9000
status:
  dir: /var/lib/thv-autosave
telemetry:
  enabled: true
  metrics:
    enabled: true
    prometheus: true`,
			wantConfig: &Config{
				Name: "my-document",
				Persist: PersistConfig{
					Timeout: "30s",
					File: &FilePersistConfig{
						Source:      "./work/document.kra",
						Destination: "./saves/document.kra",
					},
				},
				Privilege: &PrivilegeConfig{
					Enabled:       true,
					Niceness:      intPtr(-10),
					ShieldSignals: true,
				},
				Autosave: &AutosaveConfig{Interval: "5m", KillTimeout: "2m"},
				Control:  &ControlConfig{Address: "127.0.0.1:9000"},
				Status:   &StatusConfig{Dir: "/var/lib/thv-autosave"},
				Telemetry: &telemetry.Config{
					Enabled: true,
					Metrics: &telemetry.MetricsConfig{Enabled: true, Prometheus: true},
				},
			},
		},
		{
			name: "minimal_command_backend",
			yamlContent: `persist:
  command:
    args: ["editorctl", "flush"]
    unloadedExitCode: 3`,
			wantConfig: &Config{
				Persist: PersistConfig{
					Command: &CommandPersistConfig{
						Args:             []string{"editorctl", "flush"},
						UnloadedExitCode: 3,
					},
				},
			},
		},
		{
			name:        "invalid_yaml",
			yamlContent: `persist: [invalid yaml`,
			wantErr:     "failed to parse YAML config",
		},
		{
			name:        "no_backend",
			yamlContent: `name: doc`,
			wantErr:     "one of file or command configuration must be specified",
		},
		{
			name:             "file_not_found",
			skipFileCreation: true,
			wantErr:          "failed to evaluate symlinks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			if tt.skipFileCreation {
				configPath = filepath.Join(tmpDir, "non-existent.yaml")
			} else {
				err := os.WriteFile(configPath, []byte(tt.yamlContent), 0600)
				require.NoError(t, err)
			}

			config, err := LoadConfig(WithConfigPath(configPath))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, config)
		})
	}
}

func TestLoadConfig_PathRequired(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	fileBackend := PersistConfig{File: &FilePersistConfig{Source: "a.kra", Destination: "b.kra"}}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: "config cannot be nil",
		},
		{
			name:   "file backend",
			config: &Config{Persist: fileBackend},
		},
		{
			name: "both backends",
			config: &Config{Persist: PersistConfig{
				File:    fileBackend.File,
				Command: &CommandPersistConfig{Args: []string{"flush"}},
			}},
			wantErr: "only one of file or command",
		},
		{
			name:    "file backend missing source",
			config:  &Config{Persist: PersistConfig{File: &FilePersistConfig{Destination: "b"}}},
			wantErr: "persist.file.source is required",
		},
		{
			name:    "file backend missing destination",
			config:  &Config{Persist: PersistConfig{File: &FilePersistConfig{Source: "a"}}},
			wantErr: "persist.file.destination is required",
		},
		{
			name: "file backend destination equals source",
			config: &Config{Persist: PersistConfig{
				File: &FilePersistConfig{Source: "./work/a.kra", Destination: "work/a.kra"},
			}},
			wantErr: "must differ",
		},
		{
			name:    "command backend without args",
			config:  &Config{Persist: PersistConfig{Command: &CommandPersistConfig{}}},
			wantErr: "persist.command.args is required",
		},
		{
			name: "command backend exit code out of range",
			config: &Config{Persist: PersistConfig{
				Command: &CommandPersistConfig{Args: []string{"flush"}, UnloadedExitCode: 256},
			}},
			wantErr: "unloadedExitCode must be between 0 and 255",
		},
		{
			name:    "invalid pass timeout",
			config:  &Config{Persist: PersistConfig{Timeout: "soon", File: fileBackend.File}},
			wantErr: "persist.timeout must be a valid duration",
		},
		{
			name:    "negative interval",
			config:  &Config{Persist: fileBackend, Autosave: &AutosaveConfig{Interval: "-5m"}},
			wantErr: "autosave.interval must be positive",
		},
		{
			name:    "invalid kill timeout",
			config:  &Config{Persist: fileBackend, Autosave: &AutosaveConfig{KillTimeout: "1 minute"}},
			wantErr: "autosave.killTimeout must be a valid duration",
		},
		{
			name:    "non-positive retry interval",
			config:  &Config{Persist: fileBackend, Autosave: &AutosaveConfig{Interval: "5m", RetryInterval: "0s"}},
			wantErr: "autosave.retryInterval must be positive",
		},
		{
			name:    "niceness out of range",
			config:  &Config{Persist: fileBackend, Privilege: &PrivilegeConfig{Niceness: intPtr(-21)}},
			wantErr: "privilege.niceness must be between -20 and 19",
		},
		{
			name:    "control address without port",
			config:  &Config{Persist: fileBackend, Control: &ControlConfig{Address: "localhost"}},
			wantErr: "control.address must be host:port",
		},
		{
			name: "invalid telemetry",
			config: &Config{Persist: fileBackend, Telemetry: &telemetry.Config{
				Enabled: true,
				Metrics: &telemetry.MetricsConfig{Enabled: true},
			}},
			wantErr: "telemetry: metrics: at least one of otlp or prometheus must be enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigGetters(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{}
		assert.Equal(t, DefaultName, cfg.GetName())
		assert.Empty(t, cfg.GetPersistType())
		assert.Zero(t, cfg.GetPassTimeout())
		assert.Zero(t, cfg.GetInterval())
		assert.Zero(t, cfg.GetKillTimeout())
		assert.Equal(t, DefaultRetryInterval, cfg.GetRetryInterval())
		assert.Equal(t, DefaultControlAddress, cfg.GetControlAddress())
		assert.Equal(t, DefaultStatusDir, cfg.GetStatusDir())
		assert.False(t, cfg.PrivilegeEnabled())
		assert.Equal(t, DefaultNiceness, cfg.Privilege.GetNiceness())
	})

	t.Run("configured", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{
			Name:      "doc",
			Persist:   PersistConfig{Timeout: "45s", Command: &CommandPersistConfig{Args: []string{"flush"}}},
			Privilege: &PrivilegeConfig{Enabled: true, Niceness: intPtr(0)},
			Autosave:  &AutosaveConfig{Interval: "10m", RetryInterval: "30s", KillTimeout: "1m"},
			Control:   &ControlConfig{Address: "0.0.0.0:7000"},
			Status:    &StatusConfig{Dir: "/tmp/status"},
		}
		assert.Equal(t, "doc", cfg.GetName())
		assert.Equal(t, PersistTypeCommand, cfg.GetPersistType())
		assert.Equal(t, 45*time.Second, cfg.GetPassTimeout())
		assert.Equal(t, 10*time.Minute, cfg.GetInterval())
		assert.Equal(t, time.Minute, cfg.GetKillTimeout())
		assert.Equal(t, 30*time.Second, cfg.GetRetryInterval())
		assert.Equal(t, "0.0.0.0:7000", cfg.GetControlAddress())
		assert.Equal(t, "/tmp/status", cfg.GetStatusDir())
		assert.True(t, cfg.PrivilegeEnabled())
		assert.Equal(t, 0, cfg.Privilege.GetNiceness())
	})

	t.Run("file persist type", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{Persist: PersistConfig{File: &FilePersistConfig{}}}
		assert.Equal(t, PersistTypeFile, cfg.GetPersistType())
	})
}

//nolint:paralleltest // changes the working directory
func TestWithConfigPath(t *testing.T) {
	tmpDir := t.TempDir()

	err := os.MkdirAll(filepath.Join(tmpDir, "configs"), 0755)
	require.NoError(t, err, "failed to create subdir")

	err = os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("name: doc"), 0600)
	require.NoError(t, err, "failed to write config file")

	err = os.WriteFile(filepath.Join(tmpDir, "configs", "app.yaml"), []byte("name: doc"), 0600)
	require.NoError(t, err, "failed to write config file")

	t.Chdir(tmpDir)

	tests := []struct {
		name     string
		path     string
		wantPath string
		wantErr  bool
	}{
		{name: "empty path", path: "", wantErr: true},
		{name: "path traversal at start", path: "../etc/passwd", wantErr: true},
		{name: "path traversal in middle", path: "config/../../etc/passwd", wantErr: true},
		{name: "path traversal with dot", path: "./../etc/passwd", wantErr: true},
		{name: "valid relative path", path: "config.yaml", wantPath: "config.yaml"},
		{name: "valid relative path with subdir", path: "configs/app.yaml", wantPath: "configs/app.yaml"},
		{name: "missing file", path: "missing.yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &loaderConfig{}
			err := WithConfigPath(tt.path)(cfg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, cfg.path)
		})
	}
}

func TestWithConfigPath_Symlink(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "real.yaml")
	require.NoError(t, os.WriteFile(target, []byte("persist:\n  command:\n    args: [flush]\n"), 0600))

	link := filepath.Join(tmpDir, "link.yaml")
	require.NoError(t, os.Symlink(target, link))

	cfg := &loaderConfig{}
	require.NoError(t, WithConfigPath(link)(cfg))

	resolved, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, resolved, cfg.path)
}
