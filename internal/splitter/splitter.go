// Package splitter carves a parsed structure into antigen and antibody
// sub-structures selected by chain id.
package splitter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Ficere/antibody-antigen-dataset/internal/config"
	"github.com/Ficere/antibody-antigen-dataset/internal/logging"
	"github.com/Ficere/antibody-antigen-dataset/internal/metrics"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdb"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdbutil"
)

// Result is the outcome of one split. On failure the parsed chain-id lists
// are echoed back for diagnostics; paths and counts are set only on success.
type Result struct {
	PDBID            string
	Success          bool
	AntigenPath      string
	AntibodyPath     string
	Error            string
	AntigenChains    []string
	AntibodyChains   []string
	AntigenResidues  int
	AntibodyResidues int
}

// Splitter writes chain-filtered copies of downloaded structures.
type Splitter struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a Splitter for the given configuration.
func New(cfg config.Config) *Splitter {
	return &Splitter{cfg: cfg, log: logging.Component("splitter")}
}

// ChainInfo parses a structure file and returns residue counts per chain,
// summed across all models.
func (s *Splitter) ChainInfo(pdbFile string) (map[string]int, error) {
	structure, err := pdb.Read(pdbFile)
	if err != nil {
		return nil, err
	}
	return structure.ChainResidueCounts(), nil
}

// Split parses the chain-list arguments, validates that every requested
// chain exists in the structure, and writes the antigen and antibody
// files. Overlap between the two requested sets is allowed; a chain may
// appear in both outputs.
func (s *Splitter) Split(pdbFile, antigenChains, antibodyChains, id, suffix string) Result {
	id = pdbutil.NormalizeID(id)

	agChains := pdbutil.ParseChainIDs(antigenChains)
	abChains := pdbutil.ParseChainIDs(antibodyChains)

	if len(agChains) == 0 || len(abChains) == 0 {
		return Result{
			PDBID:          id,
			Error:          "missing chain IDs",
			AntigenChains:  agChains,
			AntibodyChains: abChains,
		}
	}

	structure, err := pdb.Read(pdbFile)
	if err != nil {
		metrics.IncSplitFailures()
		return Result{
			PDBID:          id,
			Error:          fmt.Sprintf("parse error: %v", err),
			AntigenChains:  agChains,
			AntibodyChains: abChains,
		}
	}

	agSet := chainSet(agChains)
	abSet := chainSet(abChains)

	var missing []string
	for _, c := range sortedKeys(agSet) {
		if !structure.HasChain(c) {
			missing = append(missing, c)
		}
	}
	for _, c := range sortedKeys(abSet) {
		if !structure.HasChain(c) && !contains(missing, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		metrics.IncSplitFailures()
		return Result{
			PDBID:          id,
			Error:          fmt.Sprintf("missing chains: %s", strings.Join(missing, ",")),
			AntigenChains:  agChains,
			AntibodyChains: abChains,
		}
	}

	antigenPath := s.cfg.AntigenPath(id, suffix)
	antibodyPath := s.cfg.AntibodyPath(id, suffix)

	if err := pdb.WriteChainsFile(antigenPath, structure, agSet); err != nil {
		metrics.IncSplitFailures()
		return Result{
			PDBID:          id,
			Error:          fmt.Sprintf("write antigen: %v", err),
			AntigenChains:  agChains,
			AntibodyChains: abChains,
		}
	}
	if err := pdb.WriteChainsFile(antibodyPath, structure, abSet); err != nil {
		metrics.IncSplitFailures()
		return Result{
			PDBID:          id,
			Error:          fmt.Sprintf("write antibody: %v", err),
			AntigenChains:  agChains,
			AntibodyChains: abChains,
		}
	}

	s.log.Info("split structure",
		"pdb_id", id,
		"antigen_chains", strings.Join(agChains, ","),
		"antibody_chains", strings.Join(abChains, ","),
	)
	metrics.IncSplits()

	return Result{
		PDBID:            id,
		Success:          true,
		AntigenPath:      antigenPath,
		AntibodyPath:     antibodyPath,
		AntigenChains:    agChains,
		AntibodyChains:   abChains,
		AntigenResidues:  structure.ResidueCount(agSet),
		AntibodyResidues: structure.ResidueCount(abSet),
	}
}

func chainSet(chains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(chains))
	for _, c := range chains {
		set[c] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
