package sabdab

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/Ficere/antibody-antigen-dataset/internal/config"
	"github.com/Ficere/antibody-antigen-dataset/internal/downloader"
	"github.com/Ficere/antibody-antigen-dataset/internal/logging"
	"github.com/Ficere/antibody-antigen-dataset/internal/metrics"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdbutil"
	"github.com/Ficere/antibody-antigen-dataset/internal/reports"
	"github.com/Ficere/antibody-antigen-dataset/internal/splitter"
)

// Options controls one batch run.
type Options struct {
	Incremental bool // skip structures that already have an antigen file
	MaxThreads  int
	Limit       int // 0 means no cap
}

// ProcessingStats is the run summary persisted to the reports bucket.
type ProcessingStats struct {
	RunID           string    `json:"run_id"`
	TotalEntries    int       `json:"total_entries"`
	ValidEntries    int       `json:"valid_entries"`
	SkippedExisting int       `json:"skipped_existing"`
	Downloaded      int       `json:"downloaded"`
	DownloadFailed  int       `json:"download_failed"`
	SplitSuccess    int       `json:"split_success"`
	SplitFailed     int       `json:"split_failed"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// EntryResult is the outcome of processing one index entry.
type EntryResult struct {
	EntryKey        string
	PDBID           string
	Suffix          string
	DownloadSuccess bool
	DownloadSkipped bool
	SplitSuccess    bool
	Error           string

	entry Entry
	split splitter.Result
}

// Processor drives download and split for every valid index entry.
type Processor struct {
	cfg   config.Config
	dl    *downloader.Downloader
	sp    *splitter.Splitter
	store *reports.Store
	log   *slog.Logger
}

// NewProcessor wires a processor over the shared downloader, splitter, and
// report store. store may be nil to skip artifact persistence.
func NewProcessor(cfg config.Config, store *reports.Store) *Processor {
	return &Processor{
		cfg:   cfg,
		dl:    downloader.New(cfg),
		sp:    splitter.New(cfg),
		store: store,
		log:   logging.Component("processor"),
	}
}

// ProcessEntry downloads the entry's structure (no-op when already present)
// and splits it into antigen and antibody files. The output file suffix is
// "_" plus the concatenated heavy and light chain ids, so two entries of
// the same structure with different pairings never collide.
func (p *Processor) ProcessEntry(ctx context.Context, e Entry) EntryResult {
	key := e.Key()
	log := logging.EntryLogger(e.PDBID, key)
	res := EntryResult{EntryKey: key, PDBID: e.PDBID, entry: e}

	dl := p.dl.Download(ctx, e.PDBID, false)
	if !dl.Success {
		res.Error = dl.Error
		log.Warn("download failed", "error", dl.Error)
		return res
	}
	res.DownloadSuccess = true
	res.DownloadSkipped = dl.Skipped

	res.Suffix = "_" + e.HeavyChain + e.LightChain
	split := p.sp.Split(
		p.cfg.PDBPath(e.PDBID),
		strings.Join(e.AntigenChains, ","),
		strings.Join(e.AntibodyChains(), ","),
		e.PDBID, res.Suffix,
	)
	res.split = split
	if !split.Success {
		res.Error = split.Error
		log.Warn("split failed", "error", split.Error)
		return res
	}
	res.SplitSuccess = true
	metrics.IncEntriesProcessed()
	log.Info("entry processed",
		"antigen", split.AntigenPath,
		"antibody", split.AntibodyPath,
		"antigen_residues", split.AntigenResidues,
		"antibody_residues", split.AntibodyResidues,
	)
	return res
}

// Process runs the whole index file: parse, filter, fan out over a bounded
// worker pool, aggregate stats, and persist the summary, failure ledger,
// and dataset index.
func (p *Processor) Process(ctx context.Context, tsvPath string, opts Options) (*ProcessingStats, error) {
	parser, err := NewParser(tsvPath)
	if err != nil {
		return nil, err
	}
	all, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	stats := &ProcessingStats{
		RunID:        uuid.NewString(),
		TotalEntries: len(all),
		StartTime:    time.Now().UTC(),
	}

	var valid []Entry
	for _, e := range all {
		if e.IsValid() {
			valid = append(valid, e)
		}
	}
	stats.ValidEntries = len(valid)

	todo := valid
	if opts.Incremental {
		existing := pdbutil.ExistingIDs(p.cfg.AntigensDir())
		todo = todo[:0:0]
		for _, e := range valid {
			if _, ok := existing[e.PDBID]; ok {
				stats.SkippedExisting++
				continue
			}
			todo = append(todo, e)
		}
	}
	if opts.Limit > 0 && len(todo) > opts.Limit {
		todo = todo[:opts.Limit]
	}

	p.log.Info("starting batch run",
		"run_id", stats.RunID,
		"total", stats.TotalEntries,
		"valid", stats.ValidEntries,
		"skipped_existing", stats.SkippedExisting,
		"to_process", len(todo),
		"threads", opts.MaxThreads,
	)

	results := p.runEntries(ctx, todo, opts.MaxThreads)

	var failures []reports.LedgerEntry
	var rows []reports.IndexRow
	for _, r := range results {
		switch {
		case !r.DownloadSuccess:
			stats.DownloadFailed++
		case r.SplitSuccess:
			if !r.DownloadSkipped {
				stats.Downloaded++
			}
			stats.SplitSuccess++
			rows = append(rows, indexRow(r))
		default:
			if !r.DownloadSkipped {
				stats.Downloaded++
			}
			stats.SplitFailed++
		}
		if r.Error != "" {
			failures = append(failures, reports.LedgerEntry{
				EntryKey: r.EntryKey,
				PDBID:    r.PDBID,
				Error:    r.Error,
			})
		}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].EntryKey < failures[j].EntryKey })
	sort.Slice(rows, func(i, j int) bool { return rows[i].EntryKey < rows[j].EntryKey })

	stats.EndTime = time.Now().UTC()
	stats.DurationSeconds = stats.EndTime.Sub(stats.StartTime).Seconds()

	if p.store != nil {
		if err := p.store.SaveSummary(ctx, stats); err != nil {
			return stats, fmt.Errorf("save summary: %w", err)
		}
		if len(failures) > 0 {
			if err := p.store.SaveLedger(ctx, failures); err != nil {
				return stats, fmt.Errorf("save failure ledger: %w", err)
			}
		}
		if len(rows) > 0 {
			if err := p.store.SaveIndex(ctx, rows); err != nil {
				return stats, fmt.Errorf("save dataset index: %w", err)
			}
		}
	}

	p.log.Info("batch run complete",
		"run_id", stats.RunID,
		"downloaded", stats.Downloaded,
		"download_failed", stats.DownloadFailed,
		"split_success", stats.SplitSuccess,
		"split_failed", stats.SplitFailed,
		"duration_seconds", stats.DurationSeconds,
	)
	return stats, nil
}

// runEntries executes the entries sequentially or over a tunny pool sized
// to maxThreads. Result order is not guaranteed in pooled mode.
func (p *Processor) runEntries(ctx context.Context, entries []Entry, maxThreads int) []EntryResult {
	bar := progressbar.Default(int64(len(entries)), "processing entries")
	defer bar.Finish()

	if maxThreads <= 1 {
		results := make([]EntryResult, 0, len(entries))
		for _, e := range entries {
			results = append(results, p.ProcessEntry(ctx, e))
			_ = bar.Add(1)
		}
		return results
	}

	pool := tunny.NewFunc(maxThreads, func(payload interface{}) interface{} {
		return p.ProcessEntry(ctx, payload.(Entry))
	})
	defer pool.Close()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]EntryResult, 0, len(entries))
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			res := pool.Process(e).(EntryResult)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			_ = bar.Add(1)
		}(e)
	}
	wg.Wait()
	return results
}

func indexRow(r EntryResult) reports.IndexRow {
	var resolution float64
	if r.entry.Resolution != nil {
		resolution = *r.entry.Resolution
	}
	return reports.IndexRow{
		PDBID:            r.PDBID,
		EntryKey:         r.EntryKey,
		Suffix:           r.Suffix,
		AntigenChains:    strings.Join(r.split.AntigenChains, ","),
		AntibodyChains:   strings.Join(r.split.AntibodyChains, ","),
		AntigenResidues:  int32(r.split.AntigenResidues),
		AntibodyResidues: int32(r.split.AntibodyResidues),
		Resolution:       resolution,
		Method:           r.entry.Method,
		AntigenType:      r.entry.AntigenType,
		AntigenPath:      r.split.AntigenPath,
		AntibodyPath:     r.split.AntibodyPath,
		ProcessedAt:      time.Now().UTC(),
	}
}
