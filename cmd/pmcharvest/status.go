package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"pmcharvest/pkg/checkpoint"
	"pmcharvest/pkg/config"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/storage"
	"pmcharvest/pkg/ui"
	"pmcharvest/pkg/window"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and the documents stored so far",
	Long: `Show where the next harvest will resume and how many documents are
stored per month for the configured provider.`,
	Example: `  pmcharvest status
  pmcharvest status --provider eutils`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := commonFlags()
		flags["provider"] = provider
		flags["output"] = outputDir
		cfg, err := config.Load(configFile, flags)
		if err != nil {
			ui.PrintError(cmd.ErrOrStderr(), "Failed to load configuration", err)
			return err
		}
		return printStatus(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&provider, "provider", "p", "", "search provider (europepmc, eutils)")
	statusCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory")
}

func printStatus(out io.Writer, cfg *config.Config) error {
	codec, err := checkpointCodec(cfg)
	if err != nil {
		return err
	}

	start := window.New(cfg.Harvest.StartYear, cfg.Harvest.StartMonth)
	cps := checkpoint.NewManager(cfg.CheckpointPath(), codec, logger.NewNopLogger())

	ui.PrintInfo(out, "Provider", cfg.Harvest.Provider)
	ui.PrintInfo(out, "Checkpoint", cps.Path())

	resume := start
	if cp := cps.Load(); cp != nil {
		ui.PrintInfo(out, "Position", cp.String())
		if rw := cp.ResumeWindow(); start.Before(rw) {
			resume = rw
		}
	} else {
		ui.PrintInfo(out, "Position", "none")
	}

	if resume.Year > cfg.Harvest.EndYear {
		ui.PrintSuccess(out, fmt.Sprintf("Range complete through %d", cfg.Harvest.EndYear))
	} else {
		ui.PrintInfo(out, "Next window", resume.String())
	}

	store, err := storage.NewManager(cfg.ProviderDirectory())
	if err != nil {
		return err
	}
	counts, err := store.Count()
	if err != nil {
		return err
	}
	ui.PrintInfo(out, "Content root", store.GetOutputDir())

	months := make([]string, 0, len(counts))
	total := 0
	for month, n := range counts {
		months = append(months, month)
		total += n
	}
	sort.Strings(months)

	fmt.Fprintln(out)
	for _, month := range months {
		fmt.Fprintf(out, "  %s  %6d\n", month, counts[month])
	}
	ui.PrintInfo(out, "Documents stored", fmt.Sprintf("%d", total))
	return nil
}
