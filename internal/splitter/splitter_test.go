package splitter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ficere/antibody-antigen-dataset/internal/config"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdb"
)

func atomLine(serial int, resName string, chain byte, seq int) string {
	return fmt.Sprintf("ATOM  %5d  CA  %-3s %c%4d    %8.3f%8.3f%8.3f%6.2f%6.2f           C",
		serial, resName, chain, seq, 1.0, 2.0, 3.0, 1.0, 0.0)
}

func writeSamplePDB(t *testing.T, dir string) string {
	t.Helper()
	lines := []string{
		atomLine(1, "ALA", 'A', 1),
		atomLine(2, "GLY", 'A', 2),
		atomLine(3, "SER", 'B', 1),
		atomLine(4, "THR", 'H', 1),
		atomLine(5, "VAL", 'L', 1),
		"END",
	}
	path := filepath.Join(dir, "1ABC.pdb")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestSplit(t *testing.T) {
	cfg := config.Default(t.TempDir())
	file := writeSamplePDB(t, t.TempDir())

	res := New(cfg).Split(file, "A,B", "H,L", "1abc", "_HL")
	require.True(t, res.Success, res.Error)
	require.Equal(t, "1ABC", res.PDBID)
	require.Equal(t, []string{"A", "B"}, res.AntigenChains)
	require.Equal(t, []string{"H", "L"}, res.AntibodyChains)
	require.Equal(t, 3, res.AntigenResidues)
	require.Equal(t, 2, res.AntibodyResidues)
	require.Equal(t, cfg.AntigenPath("1ABC", "_HL"), res.AntigenPath)
	require.Equal(t, cfg.AntibodyPath("1ABC", "_HL"), res.AntibodyPath)

	antigen, err := pdb.Read(res.AntigenPath)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"A", "B"}, antigen.ChainIDs())

	antibody, err := pdb.Read(res.AntibodyPath)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"H", "L"}, antibody.ChainIDs())
}

func TestSplitOverlapAllowed(t *testing.T) {
	cfg := config.Default(t.TempDir())
	file := writeSamplePDB(t, t.TempDir())

	// Chain B serves as antigen and as part of the antibody.
	res := New(cfg).Split(file, "A,B", "B,H", "1ABC", "_BH")
	require.True(t, res.Success, res.Error)

	antigen, err := pdb.Read(res.AntigenPath)
	require.NoError(t, err)
	require.True(t, antigen.HasChain("B"))

	antibody, err := pdb.Read(res.AntibodyPath)
	require.NoError(t, err)
	require.True(t, antibody.HasChain("B"))
}

func TestSplitMissingChainIDs(t *testing.T) {
	cfg := config.Default(t.TempDir())
	file := writeSamplePDB(t, t.TempDir())

	for _, tt := range []struct{ ag, ab string }{
		{"", "H,L"},
		{"A", ""},
		{"NA", "H,L"},
	} {
		res := New(cfg).Split(file, tt.ag, tt.ab, "1ABC", "_X")
		require.False(t, res.Success)
		require.Equal(t, "missing chain IDs", res.Error)
	}
	_, err := os.Stat(cfg.AntigenPath("1ABC", "_X"))
	require.True(t, os.IsNotExist(err))
}

func TestSplitMissingChains(t *testing.T) {
	cfg := config.Default(t.TempDir())
	file := writeSamplePDB(t, t.TempDir())

	res := New(cfg).Split(file, "Z,A", "Q,H", "1ABC", "_QH")
	require.False(t, res.Success)
	require.Equal(t, "missing chains: Z,Q", res.Error)
	require.Equal(t, []string{"Z", "A"}, res.AntigenChains)
	require.Equal(t, []string{"Q", "H"}, res.AntibodyChains)

	// No partial outputs on failure.
	_, err := os.Stat(cfg.AntigenPath("1ABC", "_QH"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.AntibodyPath("1ABC", "_QH"))
	require.True(t, os.IsNotExist(err))
}

func TestSplitUnreadableFile(t *testing.T) {
	cfg := config.Default(t.TempDir())
	path := filepath.Join(t.TempDir(), "garbage.pdb")
	require.NoError(t, os.WriteFile(path, []byte("no atoms here\n"), 0644))

	res := New(cfg).Split(path, "A", "H", "1ABC", "_H")
	require.False(t, res.Success)
	require.Contains(t, res.Error, "parse error")
}

func TestChainInfo(t *testing.T) {
	cfg := config.Default(t.TempDir())
	file := writeSamplePDB(t, t.TempDir())

	counts, err := New(cfg).ChainInfo(file)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"A": 2, "B": 1, "H": 1, "L": 1}, counts)
}
