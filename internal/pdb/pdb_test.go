package pdb

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func atomRecord(serial int, resName, chainID string, seqNum int) string {
	return formatAtomRecord(false, serial, "CA", ' ', resName, chainID, seqNum, 0,
		float64(serial), 2.0, 3.0, 1.0, 0.0, "C")
}

func samplePDB() string {
	lines := []string{
		"HEADER    IMMUNE SYSTEM                           01-JAN-20   1ABC",
		atomRecord(1, "ALA", "A", 1),
		atomRecord(2, "GLY", "A", 2),
		"TER",
		atomRecord(3, "SER", "B", 1),
		"TER",
		atomRecord(4, "THR", "H", 1),
		atomRecord(5, "VAL", "L", 1),
		"END",
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestReadFrom(t *testing.T) {
	s, err := ReadFrom(strings.NewReader(samplePDB()), "1ABC")
	require.NoError(t, err)

	require.Equal(t, "1ABC", s.ID)
	require.Equal(t, []string{"A", "B", "H", "L"}, s.ChainIDs())
	require.Len(t, s.Models, 1)

	counts := s.ChainResidueCounts()
	require.Equal(t, map[string]int{"A": 2, "B": 1, "H": 1, "L": 1}, counts)

	require.True(t, s.HasChain("A"))
	require.False(t, s.HasChain("Z"))

	// Records survive verbatim.
	a := s.Models[0].Chains[0].Residues[0].Atoms[0]
	require.Equal(t, 1, a.Serial)
	require.Equal(t, "CA", a.Name)
	require.Equal(t, atomRecord(1, "ALA", "A", 1), a.Record)
}

func TestReadFromMultiModel(t *testing.T) {
	lines := []string{
		"MODEL        1",
		atomRecord(1, "ALA", "A", 1),
		"ENDMDL",
		"MODEL        2",
		atomRecord(1, "ALA", "A", 1),
		"ENDMDL",
	}
	s, err := ReadFrom(strings.NewReader(strings.Join(lines, "\n")), "2NMR")
	require.NoError(t, err)

	require.Len(t, s.Models, 2)
	require.Equal(t, 1, s.Models[0].Num)
	require.Equal(t, 2, s.Models[1].Num)
	require.Equal(t, []string{"A"}, s.ChainIDs())
	require.Equal(t, 2, s.ResidueCount(map[string]struct{}{"A": {}}))
}

func TestReadFromNoAtoms(t *testing.T) {
	_, err := ReadFrom(strings.NewReader("HEADER    EMPTY\nEND\n"), "0XXX")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a valid PDB file")
}

func TestReadFromBlankChain(t *testing.T) {
	rec := formatAtomRecord(false, 1, "CA", ' ', "ALA", "", 1, 0, 1, 2, 3, 1, 0, "C")
	s, err := ReadFrom(strings.NewReader(rec+"\n"), "1BLK")
	require.NoError(t, err)
	require.Equal(t, []string{"_"}, s.ChainIDs())
}

func TestWriteChains(t *testing.T) {
	s, err := ReadFrom(strings.NewReader(samplePDB()), "1ABC")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteChains(&buf, s, map[string]struct{}{"A": {}}))

	want := strings.Join([]string{
		atomRecord(1, "ALA", "A", 1),
		atomRecord(2, "GLY", "A", 2),
		"TER",
		"END",
	}, "\n") + "\n"
	require.Equal(t, want, buf.String())
}

func TestWriteChainsMultiModel(t *testing.T) {
	lines := []string{
		"MODEL        1",
		atomRecord(1, "ALA", "A", 1),
		atomRecord(2, "SER", "B", 1),
		"ENDMDL",
		"MODEL        2",
		atomRecord(1, "ALA", "A", 1),
		"ENDMDL",
	}
	s, err := ReadFrom(strings.NewReader(strings.Join(lines, "\n")), "2NMR")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteChains(&buf, s, map[string]struct{}{"A": {}}))

	out := buf.String()
	require.Contains(t, out, "MODEL        1\n")
	require.Contains(t, out, "ENDMDL\n")
	require.NotContains(t, out, "SER")
}

func TestWriteChainsFileRoundTrip(t *testing.T) {
	s, err := ReadFrom(strings.NewReader(samplePDB()), "1ABC")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "sub", "1ABC_HL_antibody.pdb")
	chains := map[string]struct{}{"H": {}, "L": {}}
	require.NoError(t, WriteChainsFile(out, s, chains))

	// No temp file left behind.
	_, err = os.Stat(out + ".tmp")
	require.True(t, os.IsNotExist(err))

	back, err := Read(out)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"H", "L"}, back.ChainIDs())
	require.Equal(t, 2, back.ResidueCount(chains))
}

func TestReadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdb1abc.ent.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(samplePDB()))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	s, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "1ABC", s.ID)
	require.Equal(t, []string{"A", "B", "H", "L"}, s.ChainIDs())
}

func TestIDFromFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1ABC.pdb", "1ABC"},
		{"/data/raw_pdbs/2xyz.pdb", "2XYZ"},
		{"pdb1abc.ent", "1ABC"},
		{"pdb1abc.ent.gz", "1ABC"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, idFromFileName(tt.in), tt.in)
	}
}

const sampleCIF = `data_1ABC
#
loop_
_atom_site.group_PDB
_atom_site.id
_atom_site.type_symbol
_atom_site.label_atom_id
_atom_site.label_comp_id
_atom_site.label_asym_id
_atom_site.label_seq_id
_atom_site.Cartn_x
_atom_site.Cartn_y
_atom_site.Cartn_z
_atom_site.occupancy
_atom_site.B_iso_or_equiv
_atom_site.auth_asym_id
_atom_site.auth_seq_id
_atom_site.pdbx_PDB_model_num
ATOM 1 C CA ALA X 1 11.000 12.000 13.000 1.00 20.00 A 1 1
ATOM 2 C CA GLY X 2 14.000 15.000 16.000 1.00 21.00 A 2 1
HETATM 3 O O HOH . . 17.000 18.000 19.000 1.00 30.00 B 101 1
#
`

func TestReadCIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1ABC.cif")
	require.NoError(t, os.WriteFile(path, []byte(sampleCIF), 0644))

	s, err := ReadCIF(path, "1ABC")
	require.NoError(t, err)

	// auth_asym_id wins over label_asym_id.
	require.Equal(t, []string{"A", "B"}, s.ChainIDs())
	require.Equal(t, map[string]int{"A": 2, "B": 1}, s.ChainResidueCounts())

	water := s.Models[0].Chains[1].Residues[0].Atoms[0]
	require.True(t, water.Het)
	require.True(t, strings.HasPrefix(water.Record, "HETATM"))
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	cifPath := filepath.Join(dir, "1ABC.cif")
	pdbPath := filepath.Join(dir, "1ABC.pdb")
	require.NoError(t, os.WriteFile(cifPath, []byte(sampleCIF), 0644))

	require.NoError(t, Convert(cifPath, pdbPath, "1ABC"))

	s, err := Read(pdbPath)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, s.ChainIDs())
	require.Equal(t, map[string]int{"A": 2, "B": 1}, s.ChainResidueCounts())
}

func TestConvertBadCIF(t *testing.T) {
	dir := t.TempDir()
	cifPath := filepath.Join(dir, "bad.cif")
	require.NoError(t, os.WriteFile(cifPath, []byte("<html>not found</html>\n"), 0644))

	err := Convert(cifPath, filepath.Join(dir, "bad.pdb"), "0BAD")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a valid mmCIF file")
}

func TestSplitCIFRow(t *testing.T) {
	got := splitCIFRow(`ATOM 1 'C A' "x y"	z`)
	require.Equal(t, []string{"ATOM", "1", "C A", "x y", "z"}, got)
}
