package sabdab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summary.tsv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

const testHeader = "pdb\tHchain\tLchain\tmodel\tantigen_chain\tantigen_type\tresolution\tmethod"

func TestNewParserMissingFile(t *testing.T) {
	_, err := NewParser(filepath.Join(t.TempDir(), "nope.tsv"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestParse(t *testing.T) {
	path := writeTSV(t,
		testHeader,
		"1abc\tH\tL\t0\ta | b\tprotein\t2.50\tX-RAY DIFFRACTION",
		"2xyz\tX\tNA\t0\tC\tprotein\tNA\tELECTRON MICROSCOPY",
		"3def\tM\tM\t0\tD\tpeptide\t1.90\tX-RAY DIFFRACTION",
		"badid\tH\tL\t0\tA\tprotein\t2.00\tX-RAY DIFFRACTION",
		"4ghi\tNA\tNA\t0\tE\tprotein\t3.10\tX-RAY DIFFRACTION",
		"5jkl\tH\tL\t0\tNA\tprotein\t2.20\tX-RAY DIFFRACTION",
	)
	p, err := NewParser(path)
	require.NoError(t, err)

	entries, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, entries, 5) // badid dropped

	e := entries[0]
	require.Equal(t, "1ABC", e.PDBID)
	require.Equal(t, "1abc", e.OriginalPDBID)
	require.Equal(t, "H", e.HeavyChain)
	require.Equal(t, "L", e.LightChain)
	require.Equal(t, []string{"A", "B"}, e.AntigenChains) // upper-cased
	require.Equal(t, "protein", e.AntigenType)
	require.NotNil(t, e.Resolution)
	require.Equal(t, 2.5, *e.Resolution)
	require.Equal(t, "1ABC_H,L_A,B", e.Key())

	// NA light chain and NA resolution.
	e = entries[1]
	require.Equal(t, "", e.LightChain)
	require.Equal(t, []string{"X"}, e.AntibodyChains())
	require.Nil(t, e.Resolution)
	require.Equal(t, "2XYZ_X_C", e.Key())

	// Single-chain antibody fragments list the chain once.
	e = entries[2]
	require.Equal(t, []string{"M"}, e.AntibodyChains())
	require.Equal(t, "3DEF_M_D", e.Key())
}

func TestValidEntries(t *testing.T) {
	path := writeTSV(t,
		testHeader,
		"1abc\tH\tL\t0\tA\tprotein\t2.50\tX-RAY DIFFRACTION",
		"4ghi\tNA\tNA\t0\tE\tprotein\t3.10\tX-RAY DIFFRACTION", // no antibody chains
		"5jkl\tH\tL\t0\tNA\tprotein\t2.20\tX-RAY DIFFRACTION",  // no antigen chains
	)
	p, err := NewParser(path)
	require.NoError(t, err)

	valid, err := p.ValidEntries()
	require.NoError(t, err)
	require.Len(t, valid, 1)
	require.Equal(t, "1ABC", valid[0].PDBID)
}

func TestParseMissingColumns(t *testing.T) {
	path := writeTSV(t,
		"pdb\tHchain\tLchain",
		"1abc\tH\tL",
	)
	p, err := NewParser(path)
	require.NoError(t, err)

	_, err = p.Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing columns")
	require.Contains(t, err.Error(), "antigen_chain")
}

func TestEntryKeySortsChains(t *testing.T) {
	e := Entry{
		PDBID:         "1ABC",
		HeavyChain:    "L",
		LightChain:    "H",
		AntigenChains: []string{"B", "A"},
	}
	require.Equal(t, "1ABC_H,L_A,B", e.Key())
}
