package sabdab

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ficere/antibody-antigen-dataset/internal/logging"
	"github.com/Ficere/antibody-antigen-dataset/internal/metrics"
	"github.com/Ficere/antibody-antigen-dataset/internal/reports"
)

// RetryStats summarizes one retry pass over the failure ledger.
type RetryStats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Retry re-runs download and split for entries recorded in the failure
// ledger. limit caps how many entries are attempted; the rest stay in the
// ledger untouched. Entries whose key cannot be parsed back into chain
// lists are preserved verbatim. The ledger is rewritten to hold only the
// entries that are still failing.
func (p *Processor) Retry(ctx context.Context, limit int) (*RetryStats, error) {
	if p.store == nil {
		return nil, fmt.Errorf("retry requires a report store")
	}
	ledger, err := p.store.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	stats := &RetryStats{}
	if len(ledger) == 0 {
		p.log.Info("failure ledger is empty, nothing to retry")
		return stats, nil
	}

	attempt := ledger
	var remainder []reports.LedgerEntry
	if limit > 0 && len(ledger) > limit {
		attempt = ledger[:limit]
		remainder = ledger[limit:]
	}
	stats.Attempted = len(attempt)
	p.log.Info("retrying failed entries", "attempting", len(attempt), "deferred", len(remainder))

	// The tree may have changed since the ledger was written; drop any
	// stale directory scan before re-checking what is already on disk.
	p.dl.RefreshExistingIDs()

	var stillFailed []reports.LedgerEntry
	for _, le := range attempt {
		metrics.IncLedgerRetries()

		pdbID, abChains, agChains, ok := parseEntryKey(le.EntryKey)
		if !ok {
			p.log.Warn("unparseable entry key, keeping as-is", "entry_key", le.EntryKey)
			stats.Failed++
			stillFailed = append(stillFailed, le)
			continue
		}
		log := logging.EntryLogger(pdbID, le.EntryKey)

		dl := p.dl.Download(ctx, pdbID, false)
		if !dl.Success {
			log.Warn("retry download failed", "error", dl.Error)
			stats.Failed++
			stillFailed = append(stillFailed, reports.LedgerEntry{
				EntryKey: le.EntryKey,
				PDBID:    pdbID,
				Error:    dl.Error,
			})
			continue
		}

		suffix := strings.Join(abChains, "")
		split := p.sp.Split(
			p.cfg.PDBPath(pdbID),
			strings.Join(agChains, ","),
			strings.Join(abChains, ","),
			pdbID, suffix,
		)
		if !split.Success {
			log.Warn("retry split failed", "error", split.Error)
			stats.Failed++
			stillFailed = append(stillFailed, reports.LedgerEntry{
				EntryKey: le.EntryKey,
				PDBID:    pdbID,
				Error:    split.Error,
			})
			continue
		}
		stats.Succeeded++
		log.Info("retry succeeded", "antigen", split.AntigenPath, "antibody", split.AntibodyPath)
	}

	stillFailed = append(stillFailed, remainder...)
	stats.Remaining = len(stillFailed)
	if err := p.store.SaveLedger(ctx, stillFailed); err != nil {
		return stats, fmt.Errorf("rewrite failure ledger: %w", err)
	}
	return stats, nil
}

// parseEntryKey inverts Entry.Key: {id}_{antibody chains}_{antigen chains}
// with comma-joined chain lists. Chain ids are upper-cased and deduplicated
// preserving order. A key with three parts but an empty chain token is
// still parseable; the splitter rejects the empty list, which refreshes
// the ledger error text.
func parseEntryKey(key string) (pdbID string, abChains, agChains []string, ok bool) {
	parts := strings.Split(key, "_")
	if len(parts) < 3 {
		return "", nil, nil, false
	}
	return strings.ToUpper(parts[0]), splitKeyChains(parts[1]), splitKeyChains(parts[2]), true
}

func splitKeyChains(token string) []string {
	var chains []string
	seen := make(map[string]struct{})
	for _, c := range strings.Split(token, ",") {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		chains = append(chains, c)
	}
	return chains
}
