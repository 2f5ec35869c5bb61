package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statweave/statweave/internal/config"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

	// An explicit path that does not exist is an error; only the implicit
	// search tolerates a missing file.
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statweave.yaml")

	payload := `
title: "My Run"
modules:
  - kvstats
data_format: json
zip_data_dir: true
sample_names:
  trim_suffixes: [".fq", ".txt"]
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "My Run", cfg.Title)
	assert.Equal(t, []string{"kvstats"}, cfg.Modules)
	assert.Equal(t, config.FormatJSON, cfg.DataFormat)
	assert.True(t, cfg.ZipDataDir)
	assert.Equal(t, []string{".fq", ".txt"}, cfg.SampleNames.TrimSuffixes)

	// Untouched keys keep their defaults.
	assert.Equal(t, config.DefaultTemplate, cfg.Template)
	assert.Equal(t, config.DefaultReportName, cfg.Filename)
	assert.True(t, cfg.MakeDataDir)
}

func TestLoad_BadDataFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "statweave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_format: xml\n"), 0o644))

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrBadDataFormat)
}
