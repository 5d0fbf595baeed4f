package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"pmcharvest/pkg/checkpoint"
	"pmcharvest/pkg/classify"
	"pmcharvest/pkg/config"
	"pmcharvest/pkg/europepmc"
	"pmcharvest/pkg/eutils"
	"pmcharvest/pkg/fetch"
	"pmcharvest/pkg/harvest"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/metrics"
	"pmcharvest/pkg/ratelimit"
	"pmcharvest/pkg/remote"
	"pmcharvest/pkg/retry"
	"pmcharvest/pkg/search"
	"pmcharvest/pkg/storage"
	"pmcharvest/pkg/ui"
	"pmcharvest/pkg/window"
)

// documentProvider both searches and serves full text
type documentProvider interface {
	search.Provider
	search.DocumentSource
}

// providerSetup is everything that differs between providers
type providerSetup struct {
	provider        documentProvider
	codec           checkpoint.Codec
	minContentSize  int
	checkpointEvery int
	classifier      harvest.Classifier
}

func newClient(cfg *config.Config, interval time.Duration, rec *metrics.Recorder, log logger.Logger) *remote.Client {
	limiter := ratelimit.NewFixedInterval(interval).OnWait(rec.ObserveRateLimitWait)
	return remote.NewClient(remote.Options{
		Timeout:   cfg.Download.Timeout,
		UserAgent: cfg.Download.UserAgent,
		Limiter:   limiter,
		Retry:     retry.NewConfig(cfg.RateLimit.MaxAttempts, cfg.RateLimit.ThrottleBackoff, cfg.RateLimit.RetryDelay, log),
		Metrics:   rec,
		Logger:    log,
	})
}

// setupProvider builds the configured provider with its checkpoint format and thresholds
func setupProvider(cfg *config.Config, rec *metrics.Recorder, log logger.Logger) (providerSetup, error) {
	switch cfg.Harvest.Provider {
	case config.ProviderEuropePMC:
		client := newClient(cfg, cfg.EuropePMC.RequestInterval, rec, log)
		p := europepmc.New(client, cfg.EuropePMC, log)
		return providerSetup{
			provider:       p,
			codec:          checkpoint.PipeCodec{Begin: p.Begin()},
			minContentSize: cfg.EuropePMC.MinContentSize,
			classifier:     classify.Classify,
		}, nil
	case config.ProviderEUtils:
		client := newClient(cfg, cfg.EUtilsInterval(), rec, log)
		return providerSetup{
			provider:        eutils.New(client, cfg.EUtils, log),
			codec:           checkpoint.CommaCodec{},
			minContentSize:  cfg.EUtils.MinContentSize,
			checkpointEvery: cfg.EUtils.CheckpointEvery,
		}, nil
	default:
		return providerSetup{}, fmt.Errorf("unknown provider %q", cfg.Harvest.Provider)
	}
}

// checkpointCodec picks the checkpoint format of the configured provider
func checkpointCodec(cfg *config.Config) (checkpoint.Codec, error) {
	switch cfg.Harvest.Provider {
	case config.ProviderEuropePMC:
		return checkpoint.PipeCodec{Begin: europepmc.BeginCursor}, nil
	case config.ProviderEUtils:
		return checkpoint.CommaCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Harvest.Provider)
	}
}

// runOptions are per-invocation settings that are not part of the configuration
type runOptions struct {
	ForceRestart bool
	Quiet        bool
	Out          io.Writer
}

// executeHarvest wires the configured provider into an engine and runs it to completion
func executeHarvest(ctx context.Context, cfg *config.Config, log logger.Logger, opts runOptions) (harvest.Summary, error) {
	rec := metrics.New()
	if cfg.Metrics.ListenAddress != "" {
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.ListenAddress, log); err != nil {
				log.WithError(err).Warn("Metrics endpoint stopped")
			}
		}()
	}

	setup, err := setupProvider(cfg, rec, log)
	if err != nil {
		return harvest.Summary{}, err
	}

	store, err := storage.NewManager(cfg.ProviderDirectory())
	if err != nil {
		return harvest.Summary{}, err
	}

	cps := checkpoint.NewManager(cfg.CheckpointPath(), setup.codec, log)
	if opts.ForceRestart && cps.Exists() {
		if err := cps.Delete(); err != nil {
			return harvest.Summary{}, err
		}
		log.InfoWithFields("Checkpoint removed, starting over", map[string]interface{}{"path": cps.Path()})
	}

	progress := ui.NewProgress(opts.Out, opts.Quiet)
	engine, err := harvest.New(harvest.Options{
		Provider:        setup.provider,
		Fetcher:         fetch.New(setup.provider, store, setup.minContentSize, log),
		Checkpoints:     cps,
		Start:           window.New(cfg.Harvest.StartYear, cfg.Harvest.StartMonth),
		EndYear:         cfg.Harvest.EndYear,
		CheckpointEvery: setup.checkpointEvery,
		Classifier:      setup.classifier,
		Metrics:         rec,
		Observer:        progress,
		Logger:          log,
	})
	if err != nil {
		return harvest.Summary{}, err
	}

	summary, runErr := engine.Run(ctx)
	progress.Summary(summary)

	if cfg.Metrics.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("Could not write metrics textfile")
		}
	}
	return summary, runErr
}
