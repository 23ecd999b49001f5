// Package pdbutil provides identifier and chain-list normalization shared by
// the downloader, splitter, and index parser.
package pdbutil

import (
	"os"
	"strings"
)

// NormalizeID trims and upper-cases a structure identifier.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ParseChainIDs parses a chain-list string. It supports "|" and ","
// delimiters (in that order of preference) and treats "NA" as an empty
// list. Tokens are trimmed but NOT upper-cased; order is preserved and
// duplicates are kept.
//
//	"A"     -> ["A"]
//	"H,L"   -> ["H", "L"]
//	"A | B" -> ["A", "B"]
//	"NA"    -> []
func ParseChainIDs(chainStr string) []string {
	trimmed := strings.TrimSpace(chainStr)
	if trimmed == "" || strings.EqualFold(trimmed, "NA") {
		return nil
	}

	var parts []string
	switch {
	case strings.Contains(chainStr, "|"):
		parts = strings.Split(chainStr, "|")
	case strings.Contains(chainStr, ","):
		parts = strings.Split(chainStr, ",")
	default:
		parts = []string{trimmed}
	}

	var chains []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, "NA") {
			continue
		}
		chains = append(chains, p)
	}
	return chains
}

// ExistingIDs scans a directory of .pdb files and returns the set of
// structure ids present, keyed by normalized id (first four runes of the
// file stem). A missing directory yields an empty set.
func ExistingIDs(dir string) map[string]struct{} {
	existing := make(map[string]struct{})

	files, err := os.ReadDir(dir)
	if err != nil {
		return existing
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".pdb") {
			continue
		}
		stem := name[:len(name)-len(".pdb")]
		if len(stem) < 4 {
			continue
		}
		existing[NormalizeID(stem[:4])] = struct{}{}
	}
	return existing
}
