// Package sabdab processes a SAbDab-style antibody-antigen index: parsing
// the TSV, batch-driving download and split per entry, and retrying
// previously failed entries from the durable ledger.
package sabdab

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Ficere/antibody-antigen-dataset/internal/logging"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdbutil"
)

// Entry is one validated antibody-antigen pairing from the index.
// Constructed once per row; immutable.
type Entry struct {
	PDBID         string // normalized, upper-case
	OriginalPDBID string
	HeavyChain    string
	LightChain    string // may be empty
	AntigenChains []string
	AntigenType   string
	Resolution    *float64 // nil when blank or NA
	Method        string
}

// AntibodyChains returns [heavy, light] with empties dropped and the
// heavy==light case collapsed to one chain.
func (e Entry) AntibodyChains() []string {
	var chains []string
	if e.HeavyChain != "" {
		chains = append(chains, e.HeavyChain)
	}
	if e.LightChain != "" && e.LightChain != e.HeavyChain {
		chains = append(chains, e.LightChain)
	}
	return chains
}

// IsValid reports whether the entry names at least one antibody chain and
// one antigen chain.
func (e Entry) IsValid() bool {
	return len(e.AntibodyChains()) > 0 && len(e.AntigenChains) > 0
}

// Key uniquely identifies one antigen/antibody pairing within a structure:
// {id}_{sorted antibody chains}_{sorted antigen chains}.
func (e Entry) Key() string {
	ab := append([]string(nil), e.AntibodyChains()...)
	ag := append([]string(nil), e.AntigenChains...)
	sort.Strings(ab)
	sort.Strings(ag)
	return fmt.Sprintf("%s_%s_%s", e.PDBID, strings.Join(ab, ","), strings.Join(ag, ","))
}

// requiredColumns must be present in the index header.
var requiredColumns = []string{"pdb", "Hchain", "antigen_chain"}

// Parser reads a tab-separated SAbDab index file.
type Parser struct {
	path string
}

// NewParser validates that the index file exists.
func NewParser(path string) (*Parser, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sabdab file not found: %s", path)
	}
	return &Parser{path: path}, nil
}

// Parse reads every row. Rows with a missing or non-4-character structure
// id are silently skipped. A missing required column is an error.
func (p *Parser) Parse() ([]Entry, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", p.path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	log := logging.Component("sabdab-parser")
	var entries []Entry
	for rowNum := 2; ; rowNum++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d of %s: %w", rowNum, p.path, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}

		pdbID := strings.TrimSpace(field("pdb"))
		if len(pdbID) != 4 {
			if pdbID != "" {
				log.Warn("skipping row with malformed pdb id", "row", rowNum, "pdb", pdbID)
			}
			continue
		}

		agChains := pdbutil.ParseChainIDs(field("antigen_chain"))
		for i, c := range agChains {
			agChains[i] = strings.ToUpper(c)
		}

		entries = append(entries, Entry{
			PDBID:         pdbutil.NormalizeID(pdbID),
			OriginalPDBID: pdbID,
			HeavyChain:    normalizeChainID(field("Hchain")),
			LightChain:    normalizeChainID(field("Lchain")),
			AntigenChains: agChains,
			AntigenType:   field("antigen_type"),
			Resolution:    parseResolution(field("resolution")),
			Method:        field("method"),
		})
	}
	return entries, nil
}

// ValidEntries returns only the entries with both chain sets non-empty.
func (p *Parser) ValidEntries() ([]Entry, error) {
	all, err := p.Parse()
	if err != nil {
		return nil, err
	}
	var valid []Entry
	for _, e := range all {
		if e.IsValid() {
			valid = append(valid, e)
		}
	}
	return valid, nil
}

// normalizeChainID trims, upper-cases, and maps the NA sentinel to empty.
func normalizeChainID(chainID string) string {
	chainID = strings.ToUpper(strings.TrimSpace(chainID))
	if chainID == "NA" {
		return ""
	}
	return chainID
}

func parseResolution(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
