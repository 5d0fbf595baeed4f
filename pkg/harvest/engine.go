package harvest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"pmcharvest/pkg/checkpoint"
	"pmcharvest/pkg/classify"
	"pmcharvest/pkg/fetch"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/metrics"
	"pmcharvest/pkg/remote"
	"pmcharvest/pkg/search"
	"pmcharvest/pkg/storage"
	"pmcharvest/pkg/window"
)

// DefaultCheckpointEvery is how many identifiers an enumerating window
// processes between checkpoint saves
const DefaultCheckpointEvery = 10

// Fetcher stores one document unless it is already present
type Fetcher interface {
	Fetch(ctx context.Context, loc storage.Location) fetch.Result
}

// Classifier picks the storage category of a record from its text
type Classifier func(title, abstract string) classify.Category

// Options configures an Engine
type Options struct {
	Provider    search.Provider
	Fetcher     Fetcher
	Checkpoints *checkpoint.Manager
	// Start is the earliest window harvested; a checkpoint never moves the run before it
	Start   window.TimeWindow
	EndYear int
	// CheckpointEvery applies to enumerating providers
	CheckpointEvery int
	// Classifier is optional; without it documents are stored directly under the month
	Classifier Classifier
	Metrics    *metrics.Recorder
	Observer   Observer
	Logger     logger.Logger
}

// Engine walks the configured windows and harvests each one
type Engine struct {
	provider    search.Provider
	fetcher     Fetcher
	checkpoints *checkpoint.Manager
	start       window.TimeWindow
	endYear     int
	every       int
	classifier  Classifier
	metrics     *metrics.Recorder
	observer    Observer
	logger      logger.Logger

	// frozen stops checkpoint writes once a window has been aborted
	frozen bool
}

// fatalError ends the run instead of the current window
type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// New validates opts and creates an Engine
func New(opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, errors.New("harvest: provider is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("harvest: fetcher is required")
	}
	if opts.Checkpoints == nil {
		return nil, errors.New("harvest: checkpoint manager is required")
	}
	if !opts.Start.Valid() {
		return nil, fmt.Errorf("harvest: invalid start window %s", opts.Start)
	}

	every := opts.CheckpointEvery
	if every <= 0 {
		every = DefaultCheckpointEvery
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{
		provider:    opts.Provider,
		fetcher:     opts.Fetcher,
		checkpoints: opts.Checkpoints,
		start:       opts.Start,
		endYear:     opts.EndYear,
		every:       every,
		classifier:  opts.Classifier,
		metrics:     opts.Metrics,
		observer:    observer,
		logger:      log.WithField("provider", opts.Provider.Name()),
	}, nil
}

// Run harvests from the resume point through December of the end year.
// Window failures are reported in the Summary; an error is returned only when
// ctx is cancelled or the checkpoint cannot be written.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	began := time.Now()
	summary := Summary{Provider: e.provider.Name()}
	e.frozen = false

	cp := e.checkpoints.Load()
	resume := e.start
	if cp != nil {
		if rw := cp.ResumeWindow(); e.start.Before(rw) {
			resume = rw
		}
		processed := 0
		if !cp.Done && cp.Window == resume {
			processed = cp.Processed
		}
		e.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"checkpoint": cp.String(),
			"window":     resume.String(),
		})
		e.observer.Resuming(resume, processed)
	}

	e.logger.InfoWithFields("Harvest started", map[string]interface{}{
		"from":     resume.String(),
		"end_year": e.endYear,
		"style":    e.provider.Style().String(),
	})

	for w := range window.Range(resume, e.endYear) {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(began)
			return summary, err
		}

		var from *checkpoint.Checkpoint
		if cp != nil && !cp.Done && cp.Window == w {
			from = cp
		}

		report, err := e.harvestWindow(ctx, w, from)
		if err != nil {
			var fatal *fatalError
			if errors.As(err, &fatal) {
				err = fatal.err
			}
			summary.Elapsed = time.Since(began)
			return summary, err
		}

		summary.add(report)
		e.metrics.ObserveWindow(e.provider.Name(), string(report.State))
		e.observer.WindowFinished(report)
	}

	summary.Elapsed = time.Since(began)
	e.logger.InfoWithFields("Harvest finished", map[string]interface{}{
		"complete":   summary.Complete,
		"empty":      summary.Empty,
		"aborted":    summary.Aborted,
		"downloaded": summary.Tally.Downloaded,
		"skipped":    summary.Tally.Skipped,
		"failed":     summary.Tally.Failed,
		"duration":   summary.Elapsed.String(),
	})
	return summary, nil
}

func (e *Engine) harvestWindow(ctx context.Context, w window.TimeWindow, from *checkpoint.Checkpoint) (WindowReport, error) {
	report := WindowReport{Window: w}
	log := e.logger.WithField("window", w.String())

	total, q, err := e.provider.Count(ctx, e.provider.BuildQuery(w))
	if err != nil {
		return e.abort(ctx, log, report, e.provider.Begin(), err)
	}
	report.Total = total

	if total == 0 {
		log.Debug("window has no results")
		report.State = WindowEmpty
		return report, e.save(&checkpoint.Checkpoint{Window: w, Done: true})
	}

	switch e.provider.Style() {
	case search.Enumerate:
		err = e.enumerate(ctx, log, q, from, &report)
	default:
		err = e.paginate(ctx, log, q, from, &report)
	}
	if err != nil || report.State == WindowAborted {
		return report, err
	}

	if report.State == "" {
		report.State = WindowComplete
		log.InfoWithFields("window complete", map[string]interface{}{
			"total":        report.Total,
			"downloaded":   report.Tally.Downloaded,
			"skipped":      report.Tally.Skipped,
			"failed":       report.Tally.Failed,
			"unidentified": report.Tally.Unidentified,
		})
	}
	return report, e.save(&checkpoint.Checkpoint{Window: w, Done: true})
}

// paginate follows the provider's cursor until it stops advancing
func (e *Engine) paginate(ctx context.Context, log logger.Logger, q search.Query, from *checkpoint.Checkpoint, report *WindowReport) error {
	cursor := e.provider.Begin()
	processed := 0
	if from != nil && from.Marker != "" {
		cursor = from.Marker
		processed = from.Processed
	}

	e.observer.WindowStarted(q.Window, report.Total)

	for {
		page, err := e.provider.Page(ctx, q, cursor)
		if err != nil {
			*report, err = e.abort(ctx, log, *report, cursor, err)
			return err
		}
		e.metrics.ObservePage(e.provider.Name())

		for _, rec := range page.Records {
			processed++
			if err := e.process(ctx, q.Window, rec, processed, report); err != nil {
				return err
			}
		}

		if search.Done(page, cursor) {
			return nil
		}
		cursor = page.Next
		if err := e.save(&checkpoint.Checkpoint{Window: q.Window, Processed: processed, Marker: cursor}); err != nil {
			return err
		}
	}
}

// enumerate collects every identifier of the window, then processes them in
// sorted order after the last one recorded in the checkpoint
func (e *Engine) enumerate(ctx context.Context, log logger.Logger, q search.Query, from *checkpoint.Checkpoint, report *WindowReport) error {
	var ids []string
	cursor := e.provider.Begin()
	for {
		page, err := e.provider.Page(ctx, q, cursor)
		if err != nil {
			*report, err = e.abort(ctx, log, *report, cursor, err)
			return err
		}
		e.metrics.ObservePage(e.provider.Name())

		for _, rec := range page.Records {
			if rec.ID != "" {
				ids = append(ids, rec.ID)
			}
		}
		if search.Stalled(page, cursor) {
			break
		}
		cursor = page.Next
	}

	slices.Sort(ids)
	ids = slices.Compact(ids)

	if len(ids) == 0 {
		log.Debug("window links to no documents")
		report.State = WindowEmpty
		report.Total = 0
		return nil
	}
	report.Total = len(ids)

	start := 0
	if from != nil && from.Marker != "" {
		if i, found := slices.BinarySearch(ids, from.Marker); found {
			start = i + 1
		} else {
			log.WarnWithFields("last processed identifier not in window, restarting window", map[string]interface{}{
				"last_id": from.Marker,
			})
		}
	}

	e.observer.WindowStarted(q.Window, len(ids))

	for i := start; i < len(ids); i++ {
		processed := i + 1
		if err := e.process(ctx, q.Window, search.Record{ID: ids[i]}, processed, report); err != nil {
			return err
		}
		if processed%e.every == 0 {
			if err := e.save(&checkpoint.Checkpoint{Window: q.Window, Processed: processed, Marker: ids[i]}); err != nil {
				return err
			}
		}
	}
	return nil
}

// process classifies and fetches one record
func (e *Engine) process(ctx context.Context, w window.TimeWindow, rec search.Record, processed int, report *WindowReport) error {
	if err := ctx.Err(); err != nil {
		return &fatalError{err: err}
	}

	if rec.ID == "" {
		report.Tally.Unidentified++
		e.metrics.ObserveDocument(e.provider.Name(), "unidentified")
		return nil
	}

	loc := storage.Location{Window: w, ID: rec.ID}
	if e.classifier != nil && rec.HasText() {
		loc.Category = string(e.classifier(rec.Title, rec.Abstract))
	}

	result := e.fetcher.Fetch(ctx, loc)
	if result.Status == fetch.Failed && ctx.Err() != nil {
		return &fatalError{err: ctx.Err()}
	}

	report.Tally.Add(result.Status)
	e.metrics.ObserveDocument(e.provider.Name(), string(result.Status))
	e.observer.ItemProcessed(processed, report.Total, rec.ID, result.Status)
	return nil
}

// abort marks the window aborted, or escalates when the run was cancelled
func (e *Engine) abort(ctx context.Context, log logger.Logger, report WindowReport, cursor string, err error) (WindowReport, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, &fatalError{err: ctxErr}
	}

	fields := remote.Describe(err)
	fields["cursor"] = cursor
	log.ErrorWithFields("window aborted", fields)

	if !e.frozen {
		log.Warn("checkpoint frozen until the next run revisits this window")
	}
	e.frozen = true

	report.State = WindowAborted
	report.Err = err
	return report, nil
}

// save writes c unless an earlier window was aborted in this run
func (e *Engine) save(c *checkpoint.Checkpoint) error {
	if e.frozen {
		return nil
	}
	if err := e.checkpoints.Save(c); err != nil {
		return &fatalError{err: fmt.Errorf("save checkpoint %s: %w", c, err)}
	}
	e.metrics.ObserveCheckpointSave()
	return nil
}
