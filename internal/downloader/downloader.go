// Package downloader fetches structure files from the remote repository
// with retries, incremental skip-if-exists, and PDB -> mmCIF format
// fallback.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ficere/antibody-antigen-dataset/internal/config"
	"github.com/Ficere/antibody-antigen-dataset/internal/logging"
	"github.com/Ficere/antibody-antigen-dataset/internal/metrics"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdb"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdbutil"
)

// ErrNotFound marks a definitive "not available in this format" response.
// It short-circuits the retry loop and triggers the format fallback.
var ErrNotFound = errors.New("not found")

// Result is the outcome of one download. Skipped implies Success.
type Result struct {
	PDBID   string
	Success bool
	Path    string
	Error   string
	Skipped bool
}

// Downloader fetches structure files. It is safe for concurrent use: a
// per-id lock spans the whole exists-check -> fetch -> cache-insert
// sequence, so two workers asking for the same structure never download
// it twice or race on its output path.
type Downloader struct {
	cfg    config.Config
	client *http.Client
	log    *slog.Logger

	mu       sync.Mutex
	existing map[string]struct{}    // nil until the first directory scan
	inflight map[string]*sync.Mutex // one lock per normalized id
}

// New creates a Downloader for the given configuration.
func New(cfg config.Config) *Downloader {
	return &Downloader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Download.Timeout()},
		log:    logging.Component("downloader"),
	}
}

// IsDownloaded reports whether a file for the normalized id already exists
// in the raw directory, via the lazily-populated cache.
func (d *Downloader) IsDownloaded(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureExistingLocked()
	_, ok := d.existing[pdbutil.NormalizeID(id)]
	return ok
}

// RefreshExistingIDs invalidates the cache; the next check rescans the
// directory.
func (d *Downloader) RefreshExistingIDs() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.existing = nil
}

func (d *Downloader) ensureExistingLocked() {
	if d.existing == nil {
		d.existing = pdbutil.ExistingIDs(d.cfg.RawPDBsDir())
	}
}

func (d *Downloader) markDownloaded(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureExistingLocked()
	d.existing[id] = struct{}{}
}

// idLock returns the mutex serializing all work on one structure id.
func (d *Downloader) idLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight == nil {
		d.inflight = make(map[string]*sync.Mutex)
	}
	l, ok := d.inflight[id]
	if !ok {
		l = &sync.Mutex{}
		d.inflight[id] = l
	}
	return l
}

// Download fetches one structure file. The primary PDB format is tried
// first; a not-found response falls back to the mmCIF format, which is
// converted to PDB and the temporary .cif file removed. Unless force is
// set, an already-downloaded id is returned immediately as skipped.
func (d *Downloader) Download(ctx context.Context, id string, force bool) Result {
	id = pdbutil.NormalizeID(id)
	outputPath := d.cfg.PDBPath(id)

	// Serialize per id: a second worker asking for the same structure
	// waits here and then takes the skip path instead of re-fetching.
	lock := d.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	if !force && d.IsDownloaded(id) {
		d.log.Debug("skipping download, already exists", "pdb_id", id)
		metrics.IncDownloadsSkipped()
		return Result{PDBID: id, Success: true, Path: outputPath, Skipped: true}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return Result{PDBID: id, Error: fmt.Sprintf("create directory: %v", err)}
	}

	pdbErr := d.fetchToFile(ctx, d.cfg.Download.BaseURL+id+".pdb", outputPath)
	if pdbErr == nil {
		d.markDownloaded(id)
		d.log.Info("downloaded", "pdb_id", id, "format", "pdb")
		metrics.IncDownloads()
		return Result{PDBID: id, Success: true, Path: outputPath}
	}

	cifErr := d.downloadViaCIF(ctx, id, outputPath)
	if cifErr == nil {
		d.markDownloaded(id)
		d.log.Info("downloaded", "pdb_id", id, "format", "cif")
		metrics.IncDownloads()
		return Result{PDBID: id, Success: true, Path: outputPath}
	}

	errMsg := fmt.Sprintf("pdb format: %v; cif format: %v", pdbErr, cifErr)
	d.log.Error("download failed", "pdb_id", id, "error", errMsg)
	metrics.IncDownloadFailures()
	return Result{PDBID: id, Error: errMsg}
}

// downloadViaCIF fetches the alternate format, converts it to PDB, and
// deletes the temporary .cif file.
func (d *Downloader) downloadViaCIF(ctx context.Context, id, outputPath string) error {
	cifPath := d.cfg.CIFPath(id)
	if err := d.fetchToFile(ctx, d.cfg.Download.BaseURL+id+".cif", cifPath); err != nil {
		return err
	}
	defer os.Remove(cifPath)

	if err := pdb.Convert(cifPath, outputPath, id); err != nil {
		return fmt.Errorf("convert to pdb: %w", err)
	}
	return nil
}

// fetchToFile retrieves url with the configured retry policy and writes the
// payload atomically. A 404 returns ErrNotFound without consuming the
// remaining attempts; other failures are retried after a fixed delay.
func (d *Downloader) fetchToFile(ctx context.Context, url, path string) error {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.Download.MaxRetries; attempt++ {
		data, err := d.fetch(ctx, url)
		if err == nil {
			return writeFileAtomic(path, data)
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		lastErr = err
		d.log.Warn("fetch failed", "url", url, "attempt", attempt, "error", err)
		metrics.IncRetryAttempts()

		if attempt < d.cfg.Download.MaxRetries {
			select {
			case <-time.After(d.cfg.Download.RetryDelay()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", d.cfg.Download.MaxRetries, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// DownloadBatch downloads ids sequentially, preserving input order.
func (d *Downloader) DownloadBatch(ctx context.Context, ids []string, force bool) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, d.Download(ctx, id, force))
	}
	return results
}

// Stats counts mutually exclusive outcomes: newly downloaded, skipped as
// existing, and failed.
func Stats(results []Result) (succeeded, skipped, failed int) {
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Success:
			succeeded++
		default:
			failed++
		}
	}
	return succeeded, skipped, failed
}

// writeFileAtomic writes data via a uniquely-named temp file + rename so a
// crash cannot leave a truncated structure file that a later incremental
// run would trust, and concurrent writers never share a temp path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tempPath := f.Name()
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("chmod %s: %w", tempPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}
