package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "validator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Schema.SilentInvalid)
	assert.True(t, cfg.Validation.CheckExtension)
	assert.Equal(t, []string{"text"}, cfg.Report.Formats)
}

func TestLoad_FileThenEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
schema:
  silent_invalid: false
validation:
  store_passes: true
  sheet: Contacts
report:
  dir: out
  name: contacts
  formats: [json, HTML]
storage:
  enabled: true
  bucket: reports-bucket
database:
  enabled: true
  path: /tmp/fv.db
logging:
  level: DEBUG
`)
	t.Setenv("FV_REPORT_DIR", "env-out")
	t.Setenv("FV_VALIDATION_LOG_ROWS", "true")
	t.Setenv("FV_STORAGE_PREFIX", "daily")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Schema.SilentInvalid)
	assert.True(t, cfg.Schema.SilentEmpty, "defaults survive a partial file")
	assert.True(t, cfg.Validation.StorePasses)
	assert.True(t, cfg.Validation.LogRows)
	assert.Equal(t, "Contacts", cfg.Validation.Sheet)
	assert.Equal(t, "env-out", cfg.Report.Dir, "environment wins over the file")
	assert.Equal(t, "contacts", cfg.Report.Name)
	assert.Equal(t, []string{"json", "html"}, cfg.Report.Formats)
	assert.Equal(t, "debug", cfg.Logging.Level)

	s3 := cfg.S3Config()
	assert.Equal(t, "reports-bucket", s3.Bucket)
	assert.Equal(t, "daily", s3.Prefix)
	assert.Equal(t, "eu-west-1", s3.Region)
	assert.Equal(t, "/tmp/fv.db", cfg.StoreConfig().Path)
	assert.Equal(t, "debug", cfg.LoggerConfig().Level)
}

func TestLoad_EnvSliceAndConfigPath(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, "report:\n  name: from-env-path\n")
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("FV_REPORT_FORMATS", "csv, xlsx ,prometheus")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env-path", cfg.Report.Name)
	assert.Equal(t, []string{"csv", "xlsx", "prometheus"}, cfg.Report.Formats)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "unknown format", content: "report:\n  formats: [pdf]\n"},
		{name: "storage without bucket", content: "storage:\n  enabled: true\n"},
		{name: "database without path", content: "database:\n  enabled: true\n  path: \"\"\n"},
		{name: "bad log level", content: "", env: map[string]string{"FV_LOGGING_LEVEL": "loud"}},
		{name: "empty report dir", content: "report:\n  dir: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"FV_REPORT_DIR":                 "report.dir",
		"FV_VALIDATION_STORE_PASSES":    "validation.store_passes",
		"FV_SCHEMA_SILENT_MISSING_KEYS": "schema.silent_missing_keys",
		"FV_CONFIG_PATH":                "",
		"FV_DEBUG":                      "debug",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, envTransformFunc(in))
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
