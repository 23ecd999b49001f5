package pdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadCIF parses the _atom_site loop of a PDBx/mmCIF file into a Structure.
// Only the atom table is read; that is all the PDB-format conversion needs.
// Each atom is re-rendered as a fixed-column ATOM/HETATM record so the
// result can be written with WriteChains.
func ReadCIF(fileName, id string) (*Structure, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := readCIFFrom(f, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	s.Path = fileName
	return s, nil
}

// Convert reads an mmCIF file and writes the equivalent PDB file.
func Convert(cifPath, pdbPath, id string) error {
	s, err := ReadCIF(cifPath, id)
	if err != nil {
		return err
	}
	return WriteFile(pdbPath, s)
}

func readCIFFrom(r io.Reader, id string) (*Structure, error) {
	s := &Structure{ID: id}
	models := make(map[int]*Model)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	var tags []string
	inLoopHeader := false
	inAtomRows := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "loop_":
			tags = nil
			inLoopHeader = true
			inAtomRows = false
		case inLoopHeader && strings.HasPrefix(line, "_"):
			tags = append(tags, line)
		case inLoopHeader:
			inLoopHeader = false
			inAtomRows = len(tags) > 0 && strings.HasPrefix(tags[0], "_atom_site.")
			if inAtomRows {
				if err := s.addCIFAtomRow(models, tags, line); err != nil {
					return nil, err
				}
			}
		case inAtomRows:
			if line == "" || strings.HasPrefix(line, "#") ||
				strings.HasPrefix(line, "_") || strings.HasPrefix(line, "data_") {
				inAtomRows = false
				continue
			}
			if err := s.addCIFAtomRow(models, tags, line); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(s.ChainIDs()) == 0 {
		return nil, fmt.Errorf("no _atom_site rows found; not a valid mmCIF file")
	}
	return s, nil
}

// addCIFAtomRow converts one _atom_site row into an Atom on the proper
// model/chain/residue, rendering a PDB-format record for it.
func (s *Structure) addCIFAtomRow(models map[int]*Model, tags []string, line string) error {
	values := splitCIFRow(line)
	if len(values) != len(tags) {
		return fmt.Errorf("atom row has %d values, expected %d: %q", len(values), len(tags), line)
	}

	get := func(names ...string) string {
		for _, name := range names {
			for i, tag := range tags {
				if tag == "_atom_site."+name {
					v := values[i]
					if v == "." || v == "?" {
						return ""
					}
					return v
				}
			}
		}
		return ""
	}

	group := get("group_PDB")
	het := group == "HETATM"
	serial, _ := strconv.Atoi(get("id"))
	atomName := get("auth_atom_id", "label_atom_id")
	resName := get("auth_comp_id", "label_comp_id")
	chainID := get("auth_asym_id", "label_asym_id")
	if chainID == "" {
		chainID = "_"
	}
	seqNum, _ := strconv.Atoi(get("auth_seq_id", "label_seq_id"))

	icode := byte(0)
	if ic := get("pdbx_PDB_ins_code"); ic != "" {
		icode = ic[0]
	}
	altLoc := byte(' ')
	if al := get("label_alt_id"); al != "" {
		altLoc = al[0]
	}

	x, _ := strconv.ParseFloat(get("Cartn_x"), 64)
	y, _ := strconv.ParseFloat(get("Cartn_y"), 64)
	z, _ := strconv.ParseFloat(get("Cartn_z"), 64)
	occ := 1.0
	if v := get("occupancy"); v != "" {
		occ, _ = strconv.ParseFloat(v, 64)
	}
	bfac := 0.0
	if v := get("B_iso_or_equiv"); v != "" {
		bfac, _ = strconv.ParseFloat(v, 64)
	}
	element := get("type_symbol")

	modelNum := 1
	if v := get("pdbx_PDB_model_num"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			modelNum = n
		}
	}
	m, ok := models[modelNum]
	if !ok {
		m = &Model{Num: modelNum}
		models[modelNum] = m
		s.Models = append(s.Models, m)
	}

	atom := Atom{
		Serial: serial,
		Name:   atomName,
		Het:    het,
		Record: formatAtomRecord(het, serial, atomName, altLoc, resName,
			chainID, seqNum, icode, x, y, z, occ, bfac, element),
	}

	chain := m.getOrMakeChain(chainID)
	last := chain.lastResidue()
	if last == nil || last.SeqNum != seqNum || last.ICode != icode || last.Name != resName {
		last = &Residue{Name: resName, SeqNum: seqNum, ICode: icode}
		chain.Residues = append(chain.Residues, last)
	}
	last.Atoms = append(last.Atoms, atom)
	return nil
}

// formatAtomRecord renders a fixed-column ATOM/HETATM record.
func formatAtomRecord(het bool, serial int, atomName string, altLoc byte,
	resName, chainID string, seqNum int, icode byte,
	x, y, z, occ, bfac float64, element string) string {

	record := "ATOM"
	if het {
		record = "HETATM"
	}
	ic := byte(' ')
	if icode != 0 {
		ic = icode
	}
	chain := byte(' ')
	if chainID != "" {
		chain = chainID[0]
	}

	// Atom names shorter than four characters start in column 14 when the
	// element symbol is a single character.
	name := atomName
	if len(element) <= 1 && len(name) < 4 {
		name = " " + name
	}

	return strings.TrimRight(fmt.Sprintf(
		"%-6s%5d %-4s%c%3s %c%4d%c   %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		record, serial, name, altLoc, resName, chain, seqNum, ic,
		x, y, z, occ, bfac, element), " ")
}

// splitCIFRow splits a CIF data row into values, honoring single and
// double quoted tokens.
func splitCIFRow(line string) []string {
	var values []string
	i := 0
	n := len(line)
	for i < n {
		for i < n && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= n {
			break
		}
		if line[i] == '\'' || line[i] == '"' {
			quote := line[i]
			i++
			start := i
			for i < n && line[i] != quote {
				i++
			}
			values = append(values, line[start:i])
			i++ // closing quote
		} else {
			start := i
			for i < n && line[i] != ' ' && line[i] != '\t' {
				i++
			}
			values = append(values, line[start:i])
		}
	}
	return values
}
