package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/tether/internal/ir"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, Load(""))
	s, err := Current()
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIOrigin, s.APIOrigin)
	assert.Equal(t, DefaultEnvironment, s.Environment)
	assert.Equal(t, DefaultConcurrency, s.Concurrency)
	assert.Equal(t, "text", s.LogFormat)
	assert.Empty(t, s.ServiceToken)
}

func TestLoadFromEnvAndFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`environment: staging
concurrency: 8
backup:
  type: s3
  config:
    bucket: my-backups
`), 0o644))
	t.Setenv("TETHER_SERVICE_TOKEN", "sk_env")

	require.NoError(t, Load(cfgFile))
	s, err := Current()
	require.NoError(t, err)
	assert.Equal(t, "sk_env", s.ServiceToken)
	assert.Equal(t, "staging", s.Environment)
	assert.Equal(t, 8, s.Concurrency)
	assert.Equal(t, "s3", s.Backup.Type)
	assert.Equal(t, "my-backups", s.Backup.Config["bucket"])
}

func TestLoadMissingExplicitFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name         string
		setup        func()
		requireToken bool
		errMsg       string
	}{
		{
			name:         "valid",
			setup:        func() { viper.Set("service_token", "sk"); viper.Set("concurrency", 2) },
			requireToken: true,
		},
		{
			name:         "missing token",
			setup:        func() {},
			requireToken: true,
			errMsg:       "service token is required",
		},
		{
			name:  "token not needed",
			setup: func() {},
		},
		{
			name:   "non-positive concurrency",
			setup:  func() { viper.Set("concurrency", 0) },
			errMsg: "concurrency must be positive",
		},
		{
			name:   "bad origin",
			setup:  func() { viper.Set("api_origin", "control.tether.dev") },
			errMsg: "api_origin must be an http(s) URL",
		},
		{
			name:   "bad log format",
			setup:  func() { viper.Set("log_format", "xml") },
			errMsg: "log_format must be text or json",
		},
		{
			name:   "bad backup type",
			setup:  func() { viper.Set("backup.type", "gcs") },
			errMsg: "backup.type must be local or s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			tt.setup()

			err := ValidateConfig(tt.requireToken)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.errMsg), err.Error())
		})
	}
}

func TestFindProjectWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFileJSON), []byte(`{"resources_dir": "."}`), 0o644))

	path, err := FindProject(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ProjectFileJSON), path)
}

func TestLoadProjectDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadProject(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.ResourcesDir)
	assert.Equal(t, dir, cfg.Root)
}

func TestWriteAndLoadProject(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteProject(dir, &ir.ProjectConfig{
		ResourcesDir: "knock",
		Dirs:         map[string]string{"workflow": "flows"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ProjectFileJSON), path)

	_, err = WriteProject(dir, &ir.ProjectConfig{ResourcesDir: "."}, false)
	assert.Error(t, err, "an existing project file is not overwritten")

	cfg, err := LoadProject(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "knock", cfg.ResourcesDir)
	assert.Equal(t, dir, cfg.Root)

	assert.Equal(t, filepath.Join(dir, "knock", "flows"), IndexDir(cfg, "workflow", "workflows"))
	assert.Equal(t, filepath.Join(dir, "knock", "layouts"), IndexDir(cfg, "layout", "layouts"))
}
