// Package pdb reads and writes macromolecular structure files in the PDB
// format, organized as model -> chain -> residue -> atom, and converts the
// PDBx/mmCIF alternate format into PDB. It implements only what the
// splitter needs: chain enumeration, residue counting, and chain-filtered
// serialization that leaves atom records byte-for-byte untouched.
package pdb

// Structure is one parsed structure file.
type Structure struct {
	ID     string
	Path   string
	Models []*Model
}

// Model is one coordinate model. Crystal structures have exactly one;
// NMR ensembles have several.
type Model struct {
	Num    int
	Chains []*Chain
}

// Chain is a labeled polymer strand.
type Chain struct {
	ID       string
	Residues []*Residue
}

// Residue groups the atoms sharing one (sequence number, insertion code,
// name) triple within a chain.
type Residue struct {
	Name   string
	SeqNum int
	ICode  byte
	Atoms  []Atom
}

// Atom is a single ATOM or HETATM record. Record retains the original
// line so filtered output preserves the source bytes.
type Atom struct {
	Serial int
	Name   string
	Het    bool
	Record string
}

// ChainIDs returns the chain identifiers present in any model, in
// first-seen order.
func (s *Structure) ChainIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, m := range s.Models {
		for _, c := range m.Chains {
			if _, ok := seen[c.ID]; !ok {
				seen[c.ID] = struct{}{}
				ids = append(ids, c.ID)
			}
		}
	}
	return ids
}

// HasChain reports whether any model contains the chain.
func (s *Structure) HasChain(id string) bool {
	for _, m := range s.Models {
		if m.chain(id) != nil {
			return true
		}
	}
	return false
}

// ChainResidueCounts returns residue counts per chain id summed across
// all models.
func (s *Structure) ChainResidueCounts() map[string]int {
	counts := make(map[string]int)
	for _, m := range s.Models {
		for _, c := range m.Chains {
			counts[c.ID] += len(c.Residues)
		}
	}
	return counts
}

// ResidueCount sums residues over the selected chains across all models.
func (s *Structure) ResidueCount(chains map[string]struct{}) int {
	total := 0
	for _, m := range s.Models {
		for _, c := range m.Chains {
			if _, ok := chains[c.ID]; ok {
				total += len(c.Residues)
			}
		}
	}
	return total
}

// chain returns the chain with the given id, or nil.
func (m *Model) chain(id string) *Chain {
	for _, c := range m.Chains {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// getOrMakeChain returns the chain with the given id, creating it when
// absent so ATOM records can be appended in file order.
func (m *Model) getOrMakeChain(id string) *Chain {
	if c := m.chain(id); c != nil {
		return c
	}
	c := &Chain{ID: id}
	m.Chains = append(m.Chains, c)
	return c
}
