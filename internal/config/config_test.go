package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("pdb_data")

	require.Equal(t, "https://files.rcsb.org/download/", cfg.Download.BaseURL)
	require.Equal(t, 60*time.Second, cfg.Download.Timeout())
	require.Equal(t, 3, cfg.Download.MaxRetries)
	require.Equal(t, 2*time.Second, cfg.Download.RetryDelay())
	require.Equal(t, 4, cfg.Processing.MaxThreads)
	require.False(t, cfg.Metrics.Enabled)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("", "out")
	require.NoError(t, err)
	require.Equal(t, Default("out"), cfg)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
base_dir: ignored
download:
  base_url: https://mirror.example.org/pdb
  max_retries: 0
  retry_delay_seconds: 0.5
processing:
  max_threads: 8
reports:
  bucket_url: "file:///tmp/reports"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path, "out")
	require.NoError(t, err)

	// The explicit base dir wins over the file.
	require.Equal(t, "out", cfg.BaseDir)
	// Trailing slash is restored, retry floor enforced.
	require.Equal(t, "https://mirror.example.org/pdb/", cfg.Download.BaseURL)
	require.Equal(t, 1, cfg.Download.MaxRetries)
	require.Equal(t, 500*time.Millisecond, cfg.Download.RetryDelay())
	require.Equal(t, 8, cfg.Processing.MaxThreads)
	require.Equal(t, "file:///tmp/reports", cfg.BucketURL())
	// Untouched sections keep their defaults.
	require.Equal(t, 60, cfg.Download.TimeoutSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "out")
	require.Error(t, err)
}

func TestPaths(t *testing.T) {
	cfg := Default("/data")

	require.Equal(t, filepath.Join("/data", "raw_pdbs", "1ABC.pdb"), cfg.PDBPath(" 1abc "))
	require.Equal(t, filepath.Join("/data", "raw_pdbs", "1ABC.cif"), cfg.CIFPath("1abc"))
	require.Equal(t,
		filepath.Join("/data", "processed", "antigens", "1ABC_HL_antigen.pdb"),
		cfg.AntigenPath("1abc", "_HL"))
	require.Equal(t,
		filepath.Join("/data", "processed", "antibodies", "1ABC_HL_antibody.pdb"),
		cfg.AntibodyPath("1abc", "_HL"))
}

func TestBucketURLDefault(t *testing.T) {
	cfg := Default(t.TempDir())
	url := cfg.BucketURL()
	require.True(t, strings.HasPrefix(url, "file://"), url)
	require.True(t, strings.HasSuffix(url, "?metadata=skip"), url)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := Default(t.TempDir())
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{
		cfg.RawPDBsDir(), cfg.AntigensDir(), cfg.AntibodiesDir(),
		cfg.SabdabDir(), cfg.StatisticsDir(), cfg.LogsDir(),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		require.True(t, info.IsDir(), dir)
	}
}
