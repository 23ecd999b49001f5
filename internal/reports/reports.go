// Package reports persists run artifacts: the failed-entry ledger, the
// per-run processing summary, and the parquet dataset index. Everything is
// written through a gocloud blob bucket so the destination can be a local
// directory or any supported object store.
package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/Ficere/antibody-antigen-dataset/internal/config"
)

const (
	ledgerKey  = "sabdab/failed_entries.json"
	summaryKey = "statistics/processing_summary.json"
	indexKey   = "statistics/dataset_index.parquet"
)

// LedgerEntry records one entry that failed to download or split.
type LedgerEntry struct {
	EntryKey string `json:"entry_key"`
	PDBID    string `json:"pdb_id"`
	Error    string `json:"error"`
}

// Store reads and writes run artifacts under the configured bucket.
type Store struct {
	bucket *blob.Bucket
}

// Open connects to the bucket named by the configuration. Close the store
// when done.
func Open(ctx context.Context, cfg config.Config) (*Store, error) {
	bucketURL := cfg.BucketURL()
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &Store{bucket: bucket}, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}

// LoadLedger returns the failed entries from the previous run, or an empty
// slice when no ledger exists yet.
func (s *Store) LoadLedger(ctx context.Context) ([]LedgerEntry, error) {
	data, err := s.bucket.ReadAll(ctx, ledgerKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var entries []LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return entries, nil
}

// SaveLedger overwrites the failure ledger with the given entries.
func (s *Store) SaveLedger(ctx context.Context, entries []LedgerEntry) error {
	if entries == nil {
		entries = []LedgerEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, ledgerKey, data, nil); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// SaveSummary writes the run summary document.
func (s *Store) SaveSummary(ctx context.Context, summary any) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, summaryKey, data, nil); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
