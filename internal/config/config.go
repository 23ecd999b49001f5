// Package config holds the immutable run configuration: the output
// directory layout, download tunables, and processing knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is shared read-only state for every component. Construct it once
// via Default or Load; nothing mutates it afterwards.
type Config struct {
	// BaseDir is the root of the on-disk layout.
	BaseDir string `yaml:"base_dir"`

	Download   DownloadConfig   `yaml:"download"`
	Processing ProcessingConfig `yaml:"processing"`
	Reports    ReportsConfig    `yaml:"reports"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// DownloadConfig controls the structure repository client.
type DownloadConfig struct {
	// BaseURL is the repository root; {ID}.pdb and {ID}.cif live under it.
	BaseURL string `yaml:"base_url"`
	// TimeoutSeconds bounds a single HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxRetries is the attempt budget per format.
	MaxRetries int `yaml:"max_retries"`
	// RetryDelaySeconds is the fixed delay between attempts.
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds"`
}

// ProcessingConfig controls batch fan-out.
type ProcessingConfig struct {
	MaxThreads int `yaml:"max_threads"`
}

// ReportsConfig controls where the failure ledger, summary, and dataset
// index are written. BucketURL accepts any blob URL (file://, gs://, s3://);
// empty means a file:// bucket over BaseDir.
type ReportsConfig struct {
	BucketURL string `yaml:"bucket_url"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LogConfig mirrors logging.Config so one YAML document describes the run.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default(baseDir string) Config {
	return Config{
		BaseDir: baseDir,
		Download: DownloadConfig{
			BaseURL:           "https://files.rcsb.org/download/",
			TimeoutSeconds:    60,
			MaxRetries:        3,
			RetryDelaySeconds: 2.0,
		},
		Processing: ProcessingConfig{
			MaxThreads: 4,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load overlays a YAML file onto the defaults. baseDir always wins over the
// file so the --output flag stays authoritative.
func Load(path, baseDir string) (Config, error) {
	cfg := Default(baseDir)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.BaseDir = baseDir

	if cfg.Download.MaxRetries < 1 {
		cfg.Download.MaxRetries = 1
	}
	if !strings.HasSuffix(cfg.Download.BaseURL, "/") {
		cfg.Download.BaseURL += "/"
	}
	return cfg, nil
}

// Timeout returns the per-request timeout.
func (d DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed inter-attempt delay.
func (d DownloadConfig) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelaySeconds * float64(time.Second))
}

// Directory layout under BaseDir.

func (c Config) RawPDBsDir() string    { return filepath.Join(c.BaseDir, "raw_pdbs") }
func (c Config) ProcessedDir() string  { return filepath.Join(c.BaseDir, "processed") }
func (c Config) AntigensDir() string   { return filepath.Join(c.ProcessedDir(), "antigens") }
func (c Config) AntibodiesDir() string { return filepath.Join(c.ProcessedDir(), "antibodies") }
func (c Config) SabdabDir() string     { return filepath.Join(c.BaseDir, "sabdab") }
func (c Config) StatisticsDir() string { return filepath.Join(c.BaseDir, "statistics") }
func (c Config) LogsDir() string       { return filepath.Join(c.BaseDir, "logs") }

// PDBPath returns where the raw structure file for id lands.
func (c Config) PDBPath(id string) string {
	return filepath.Join(c.RawPDBsDir(), strings.ToUpper(strings.TrimSpace(id))+".pdb")
}

// CIFPath returns the temporary alternate-format path for id.
func (c Config) CIFPath(id string) string {
	return filepath.Join(c.RawPDBsDir(), strings.ToUpper(strings.TrimSpace(id))+".cif")
}

// AntigenPath returns the antigen output path for id with an optional
// entry-disambiguating suffix.
func (c Config) AntigenPath(id, suffix string) string {
	name := strings.ToUpper(strings.TrimSpace(id)) + suffix + "_antigen.pdb"
	return filepath.Join(c.AntigensDir(), name)
}

// AntibodyPath returns the antibody output path for id.
func (c Config) AntibodyPath(id, suffix string) string {
	name := strings.ToUpper(strings.TrimSpace(id)) + suffix + "_antibody.pdb"
	return filepath.Join(c.AntibodiesDir(), name)
}

// BucketURL returns the blob URL for report artifacts.
func (c Config) BucketURL() string {
	if c.Reports.BucketURL != "" {
		return c.Reports.BucketURL
	}
	abs, err := filepath.Abs(c.BaseDir)
	if err != nil {
		abs = c.BaseDir
	}
	return "file://" + filepath.ToSlash(abs) + "?metadata=skip"
}

// EnsureDirectories creates the full output tree.
func (c Config) EnsureDirectories() error {
	dirs := []string{
		c.RawPDBsDir(),
		c.AntigensDir(),
		c.AntibodiesDir(),
		c.SabdabDir(),
		c.StatisticsDir(),
		c.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
