package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

// IndexRow is a single successfully processed antibody-antigen pairing in
// the dataset index table.
type IndexRow struct {
	// Entry identity
	PDBID    string `parquet:"pdb_id"`
	EntryKey string `parquet:"entry_key"`
	Suffix   string `parquet:"suffix"`

	// Chain composition, comma-joined
	AntigenChains  string `parquet:"antigen_chains"`
	AntibodyChains string `parquet:"antibody_chains"`

	// Size of each side
	AntigenResidues  int32 `parquet:"antigen_residues"`
	AntibodyResidues int32 `parquet:"antibody_residues"`

	// Structure metadata from the index file
	Resolution  float64 `parquet:"resolution"` // 0 when unknown
	Method      string  `parquet:"method"`
	AntigenType string  `parquet:"antigen_type"`

	// Output locations
	AntigenPath  string `parquet:"antigen_path"`
	AntibodyPath string `parquet:"antibody_path"`

	ProcessedAt time.Time `parquet:"processed_at,timestamp(millisecond)"`
}

// SaveIndex writes the dataset index as a snappy-compressed parquet file.
// An empty row set still produces a valid (schema-only) file.
func (s *Store) SaveIndex(ctx context.Context, rows []IndexRow) error {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[IndexRow](&buf, parquet.Compression(&parquet.Snappy))
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return fmt.Errorf("encode index rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize index: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, indexKey, buf.Bytes(), nil); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
