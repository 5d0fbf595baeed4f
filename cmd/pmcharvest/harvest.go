package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"pmcharvest/pkg/config"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/ui"
	"pmcharvest/pkg/window"
)

var (
	// Harvest command flags
	provider        string
	fromMonth       string
	toYear          int
	outputDir       string
	checkpointFile  string
	forceRestart    bool
	metricsTextfile string
	metricsListen   string
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest articles month by month, resuming from the last checkpoint",
	Long: `Harvest every article matching the provider's topic filter, one calendar
month at a time, from the start month through December of the end year.

Documents are stored as <output>/<provider>/<YYYY>/<MM>/[<category>/]<id>.xml.
Europe PMC articles are sorted into topic categories by title and abstract.

An interrupted harvest resumes from its checkpoint on the next run. A month
whose search fails is skipped for this run and revisited on the next one.`,
	Example: `  # Harvest Europe PMC with the configured range
  pmcharvest harvest

  # Harvest NCBI E-utilities from March 2020 through 2022
  pmcharvest harvest --provider eutils --from 2020-03 --to-year 2022

  # Start over, ignoring the existing checkpoint
  pmcharvest harvest --force-restart

  # Export run metrics for the node_exporter textfile collector
  pmcharvest harvest --metrics-textfile /var/lib/node_exporter/pmcharvest.prom`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVarP(&provider, "provider", "p", "", "search provider (europepmc, eutils)")
	harvestCmd.Flags().StringVar(&fromMonth, "from", "", "first month to harvest, YYYY-MM")
	harvestCmd.Flags().IntVar(&toYear, "to-year", 0, "last year to harvest (inclusive)")
	harvestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory")
	harvestCmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "checkpoint file (default <output>/<provider>/resume_status.txt)")
	harvestCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "delete the checkpoint and start from the first month")
	harvestCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when the run ends")
	harvestCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address while running")
}

func harvestFlags() (map[string]interface{}, error) {
	flags := commonFlags()
	flags["provider"] = provider
	flags["output"] = outputDir
	flags["checkpoint"] = checkpointFile
	flags["end-year"] = toYear
	flags["metrics-textfile"] = metricsTextfile
	flags["metrics-listen"] = metricsListen

	if fromMonth != "" {
		w, err := window.Parse(fromMonth)
		if err != nil {
			return nil, err
		}
		flags["start-year"] = w.Year
		flags["start-month"] = w.Month
	}
	return flags, nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	flags, err := harvestFlags()
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Invalid --from", err)
		return err
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to load configuration", err)
		return err
	}

	baseLog, err := logger.New(&cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to initialize logger", err)
		return err
	}
	log := baseLog.WithFields(map[string]interface{}{
		"run_id":   uuid.NewString(),
		"provider": cfg.Harvest.Provider,
	})
	log.WithField("version", version).Info("pmcharvest starting")

	if !quiet {
		ui.PrintBanner(out)
		ui.PrintInfo(out, "Provider", cfg.Harvest.Provider)
		ui.PrintInfo(out, "Range", window.New(cfg.Harvest.StartYear, cfg.Harvest.StartMonth).String()+" .. "+window.New(cfg.Harvest.EndYear, 12).String())
		ui.PrintInfo(out, "Output", cfg.ProviderDirectory())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = executeHarvest(ctx, cfg, log, runOptions{
		ForceRestart: forceRestart,
		Quiet:        quiet,
		Out:          out,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning(out, "Interrupted; rerun to resume from the checkpoint.")
			log.Warn("Harvest interrupted")
		} else {
			ui.PrintError(cmd.ErrOrStderr(), "Harvest failed", err)
			log.WithError(err).Error("Harvest failed")
		}
		return err
	}

	log.Info("Harvest finished")
	return nil
}
