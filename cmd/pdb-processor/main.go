package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ficere/antibody-antigen-dataset/internal/config"
	"github.com/Ficere/antibody-antigen-dataset/internal/downloader"
	"github.com/Ficere/antibody-antigen-dataset/internal/logging"
	"github.com/Ficere/antibody-antigen-dataset/internal/metrics"
	"github.com/Ficere/antibody-antigen-dataset/internal/pdbutil"
	"github.com/Ficere/antibody-antigen-dataset/internal/reports"
	"github.com/Ficere/antibody-antigen-dataset/internal/sabdab"
	"github.com/Ficere/antibody-antigen-dataset/internal/splitter"
)

var (
	configFile string
	outputDir  string
	logFormat  string
	logLevel   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pdb-processor",
	Short: "Build antibody-antigen structure datasets from the PDB",
	Long: `pdb-processor downloads protein structures from the RCSB PDB and splits
them into antigen and antibody files, driven either one structure at a
time or by a SAbDab summary file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile, outputDir)
		if err != nil {
			return err
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		if cfg.Metrics.Enabled {
			metrics.Serve(cfg.Metrics.Address)
		}
		return nil
	},
}

var sabdabCmd = &cobra.Command{
	Use:   "sabdab <summary-file.tsv>",
	Short: "Process every antibody-antigen entry in a SAbDab summary file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noIncremental, _ := cmd.Flags().GetBool("no-incremental")
		threads, _ := cmd.Flags().GetInt("threads")
		limit, _ := cmd.Flags().GetInt("limit")
		if threads <= 0 {
			threads = cfg.Processing.MaxThreads
		}

		ctx, cancel := signalContext()
		defer cancel()

		store, err := reports.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := sabdab.NewProcessor(cfg, store).Process(ctx, args[0], sabdab.Options{
			Incremental: !noIncremental,
			MaxThreads:  threads,
			Limit:       limit,
		})
		if err != nil {
			return err
		}
		printRunSummary(stats)
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process <pdb-id>",
	Short: "Download and split a single structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		antigen, _ := cmd.Flags().GetString("antigen")
		antibody, _ := cmd.Flags().GetString("antibody")
		force, _ := cmd.Flags().GetBool("force")

		ctx, cancel := signalContext()
		defer cancel()

		id := pdbutil.NormalizeID(args[0])
		dl := downloader.New(cfg).Download(ctx, id, force)
		if !dl.Success {
			return fmt.Errorf("download %s: %s", id, dl.Error)
		}
		if dl.Skipped {
			fmt.Printf("%s already downloaded: %s\n", id, dl.Path)
		} else {
			fmt.Printf("downloaded %s to %s\n", id, dl.Path)
		}

		if antigen == "" && antibody == "" {
			return nil
		}
		suffix := "_" + strings.Join(pdbutil.ParseChainIDs(antibody), "")
		res := splitter.New(cfg).Split(dl.Path, antigen, antibody, id, suffix)
		if !res.Success {
			return fmt.Errorf("split %s: %s", id, res.Error)
		}
		color.Green("antigen  %s (%d residues, chains %s)",
			res.AntigenPath, res.AntigenResidues, strings.Join(res.AntigenChains, ","))
		color.Green("antibody %s (%d residues, chains %s)",
			res.AntibodyPath, res.AntibodyResidues, strings.Join(res.AntibodyChains, ","))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <pdb-id | file.pdb>",
	Short: "Show the chains and residue counts of a structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			ctx, cancel := signalContext()
			defer cancel()
			id := pdbutil.NormalizeID(args[0])
			dl := downloader.New(cfg).Download(ctx, id, false)
			if !dl.Success {
				return fmt.Errorf("download %s: %s", id, dl.Error)
			}
			path = dl.Path
		}
		counts, err := splitter.New(cfg).ChainInfo(path)
		if err != nil {
			return err
		}
		chains := make([]string, 0, len(counts))
		for c := range counts {
			chains = append(chains, c)
		}
		sort.Strings(chains)
		fmt.Printf("%s: %d chains\n", path, len(chains))
		for _, c := range chains {
			fmt.Printf("  %s  %d residues\n", c, counts[c])
		}
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reprocess entries from the failure ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := signalContext()
		defer cancel()

		store, err := reports.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := sabdab.NewProcessor(cfg, store).Retry(ctx, limit)
		if err != nil {
			return err
		}
		if stats.Attempted == 0 {
			fmt.Println("failure ledger is empty, nothing to retry")
			return nil
		}
		fmt.Printf("retried %d entries: %s, %s, %d still in ledger\n",
			stats.Attempted,
			color.GreenString("%d recovered", stats.Succeeded),
			color.RedString("%d failed", stats.Failed),
			stats.Remaining,
		)
		return nil
	},
}

func printRunSummary(stats *sabdab.ProcessingStats) {
	fmt.Printf("run %s finished in %.1fs\n", stats.RunID, stats.DurationSeconds)
	fmt.Printf("  entries:  %d total, %d valid, %d skipped (already processed)\n",
		stats.TotalEntries, stats.ValidEntries, stats.SkippedExisting)
	fmt.Printf("  download: %s, %s\n",
		color.GreenString("%d ok", stats.Downloaded),
		color.RedString("%d failed", stats.DownloadFailed))
	fmt.Printf("  split:    %s, %s\n",
		color.GreenString("%d ok", stats.SplitSuccess),
		color.RedString("%d failed", stats.SplitFailed))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "pdb_data", "Base output directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	sabdabCmd.Flags().Bool("no-incremental", false, "Reprocess structures that already have outputs")
	sabdabCmd.Flags().IntP("threads", "t", 0, "Worker threads (default from config)")
	sabdabCmd.Flags().IntP("limit", "n", 0, "Process at most this many entries")

	processCmd.Flags().String("antigen", "", "Antigen chain ids, e.g. A or A,B")
	processCmd.Flags().String("antibody", "", "Antibody chain ids, e.g. H,L")
	processCmd.Flags().Bool("force", false, "Re-download even if the file exists")

	retryCmd.Flags().IntP("limit", "n", 0, "Retry at most this many ledger entries")

	rootCmd.AddCommand(sabdabCmd, processCmd, infoCmd, retryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
