package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONConfig(t *testing.T) {
	path := writeTempConfig(t, `{
		"ashift": 12,
		"offset": 10,
		"dcols": 6,
		"size": 17,
		"sweep": true,
		"timeout": 30,
		"impl": "scalar",
		"textfile": "/tmp/raidz.prom"
	}`)

	cfg := Config{DataCols: 8, Verbose: 2}
	require.NoError(t, parseJSONConfig(&cfg, path))

	assert.Equal(t, uint(12), cfg.Ashift)
	assert.Equal(t, 6, cfg.DataCols)
	assert.True(t, cfg.Sweep)
	assert.Equal(t, "scalar", cfg.Impl)
	assert.Equal(t, 2, cfg.Verbose, "fields absent from the file keep their flag value")
	assert.Equal(t, 30*time.Second, cfg.timeout())
	assert.Equal(t, testCase{Ashift: 12, Offset: 1024, DataCols: 6, Size: 128 * 1024}, cfg.testCase())
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	var cfg Config
	missing := filepath.Join(t.TempDir(), "missing.json")
	assert.Error(t, parseJSONConfig(&cfg, missing))
}

func TestParseJSONConfigMalformed(t *testing.T) {
	var cfg Config
	assert.Error(t, parseJSONConfig(&cfg, writeTempConfig(t, `{"dcols": "many"}`)))
}

func TestConfigClamp(t *testing.T) {
	cfg := Config{Ashift: 3, Offset: 40, DataCols: 1000, Size: 2}
	assert.Equal(t, testCase{Ashift: 9, Offset: 4096, DataCols: 252, Size: 512}, cfg.testCase())

	cfg = Config{Ashift: 20, Offset: 3, DataCols: 0, Size: 30}
	assert.Equal(t, testCase{Ashift: 13, Offset: 0, DataCols: 1, Size: 1 << 24}, cfg.testCase())
}

func TestSweepCases(t *testing.T) {
	cases := sweepCases()
	// Blocks smaller than a sector are skipped.
	assert.Len(t, cases, (len(sweepSizes)*len(sweepAshifts)-3)*len(sweepDataCols))
	for _, tc := range cases {
		assert.GreaterOrEqual(t, tc.Size, 1<<tc.Ashift)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
