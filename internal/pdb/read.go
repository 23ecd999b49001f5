package pdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Read parses a PDB file from disk. Files ending in ".gz" are
// decompressed transparently.
func Read(fileName string) (*Structure, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if path.Ext(fileName) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	s, err := ReadFrom(reader, idFromFileName(fileName))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	s.Path = fileName
	return s, nil
}

// ReadFrom parses PDB records from r. Only MODEL/ENDMDL, ATOM, and HETATM
// records contribute to the structure tree; everything else is skipped.
func ReadFrom(r io.Reader, id string) (*Structure, error) {
	s := &Structure{ID: id}

	var cur *Model
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 6 {
			continue
		}
		switch strings.TrimSpace(line[0:6]) {
		case "MODEL":
			num := len(s.Models) + 1
			if len(line) >= 14 {
				if n, err := strconv.Atoi(strings.TrimSpace(line[10:14])); err == nil {
					num = n
				}
			}
			cur = &Model{Num: num}
			s.Models = append(s.Models, cur)
		case "ENDMDL":
			cur = nil
		case "ATOM", "HETATM":
			if cur == nil {
				// Single-model files have no MODEL records.
				if len(s.Models) == 0 {
					s.Models = append(s.Models, &Model{Num: 1})
				}
				cur = s.Models[len(s.Models)-1]
			}
			cur.addAtomRecord(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(s.ChainIDs()) == 0 {
		return nil, fmt.Errorf("no atom records found; not a valid PDB file")
	}
	return s, nil
}

// addAtomRecord parses the fixed columns of one ATOM/HETATM line and files
// the atom under its chain and residue. The raw line is retained verbatim.
func (m *Model) addAtomRecord(line string) {
	if len(line) < 80 {
		line = line + strings.Repeat(" ", 80-len(line))
	}

	chainID := strings.TrimSpace(line[21:22])
	if chainID == "" {
		chainID = "_"
	}
	resName := strings.TrimSpace(line[17:20])
	icode := line[26]
	if icode == ' ' {
		icode = 0
	}
	seqNum := 0
	if n, err := strconv.Atoi(strings.TrimSpace(line[22:26])); err == nil {
		seqNum = n
	}

	atom := Atom{
		Name:   strings.TrimSpace(line[12:16]),
		Het:    strings.HasPrefix(line, "HETATM"),
		Record: strings.TrimRight(line, " "),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(line[6:11])); err == nil {
		atom.Serial = n
	}

	chain := m.getOrMakeChain(chainID)
	last := chain.lastResidue()
	if last == nil || last.SeqNum != seqNum || last.ICode != icode || last.Name != resName {
		last = &Residue{Name: resName, SeqNum: seqNum, ICode: icode}
		chain.Residues = append(chain.Residues, last)
	}
	last.Atoms = append(last.Atoms, atom)
}

func (c *Chain) lastResidue() *Residue {
	if len(c.Residues) == 0 {
		return nil
	}
	return c.Residues[len(c.Residues)-1]
}

// idFromFileName recovers a structure id from common file name shapes
// (1ABC.pdb, pdb1abc.ent.gz).
func idFromFileName(fileName string) string {
	name := path.Base(fileName)
	switch {
	case len(name) >= 7 && strings.HasPrefix(name, "pdb"):
		return strings.ToUpper(name[3:7])
	case len(name) >= 4:
		return strings.ToUpper(name[0:4])
	}
	return name
}
