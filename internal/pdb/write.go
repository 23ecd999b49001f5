package pdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteChains serializes the subset of s belonging to the selected chains.
// Atom records are emitted verbatim in their original order; a TER record
// closes each chain and MODEL/ENDMDL wrappers are kept for multi-model
// structures.
func WriteChains(w io.Writer, s *Structure, chains map[string]struct{}) error {
	bw := bufio.NewWriter(w)
	multiModel := len(s.Models) > 1

	for _, m := range s.Models {
		if multiModel {
			if _, err := fmt.Fprintf(bw, "MODEL     %4d\n", m.Num); err != nil {
				return err
			}
		}
		for _, c := range m.Chains {
			if _, ok := chains[c.ID]; !ok {
				continue
			}
			for _, r := range c.Residues {
				for _, a := range r.Atoms {
					if _, err := fmt.Fprintln(bw, a.Record); err != nil {
						return err
					}
				}
			}
			if _, err := fmt.Fprintln(bw, "TER"); err != nil {
				return err
			}
		}
		if multiModel {
			if _, err := fmt.Fprintln(bw, "ENDMDL"); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintln(bw, "END"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteChainsFile writes the chain subset to path atomically
// (temp file + rename).
func WriteChainsFile(path string, s *Structure, chains map[string]struct{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tempPath, err)
	}
	if err := WriteChains(f, s, chains); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write %s: %w", tempPath, err)
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

// WriteFile writes the whole structure (all chains) to path.
func WriteFile(path string, s *Structure) error {
	all := make(map[string]struct{})
	for _, id := range s.ChainIDs() {
		all[id] = struct{}{}
	}
	return WriteChainsFile(path, s, all)
}
