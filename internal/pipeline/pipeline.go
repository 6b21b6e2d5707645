package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
	"github.com/couchcryptid/disaster-archive-etl/internal/observability"
)

// SnapshotExtractor reads the full raw dataset snapshot from the source.
type SnapshotExtractor interface {
	ExtractSnapshot(ctx context.Context) ([]domain.RawDisasterRecord, error)
}

// BatchLoader writes a curated run to the destination: the event rows in one
// batch, then the run summary.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.DisasterEvent) error
	LoadSummary(ctx context.Context, run *RunResult) error
}

// RunResult is the complete outcome of one curation run.
type RunResult struct {
	RunID      string               `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Table      domain.Table         `json:"-"`
	Summaries  domain.Summaries     `json:"summaries"`
	Report     domain.QualityReport `json:"report"`
}

// Pipeline orchestrates the extract-curate-load cycle.
type Pipeline struct {
	extractor SnapshotExtractor
	curator   *Curator
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu     sync.RWMutex
	latest *RunResult
}

// New creates a Pipeline with the given stages and observability.
func New(e SnapshotExtractor, c *Curator, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		curator:   c,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a curation run yet")
	}
	return nil
}

// LatestRun returns the most recent completed run, or false when none has
// finished yet.
func (p *Pipeline) LatestRun() (*RunResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.latest != nil
}

// Run executes curation runs until one succeeds, then holds until the context
// is cancelled so re-runs stay available over HTTP. Extraction and load
// failures retry with backoff; curation failures are data defects that a
// retry cannot fix, so they abort.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		_, err := p.RunOnce(ctx)
		if err == nil {
			<-ctx.Done()
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if isCurationError(err) {
			p.logger.Error("curation failed, not retrying", "error", err)
			return err
		}

		p.logger.Error("curation run failed", "error", err)
		if !sleepWithContext(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// RunOnce performs a single extract-curate-load cycle and records it as the
// latest run.
func (p *Pipeline) RunOnce(ctx context.Context) (*RunResult, error) {
	run := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run_id", run.RunID)

	records, err := p.extractor.ExtractSnapshot(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("extract_error").Inc()
		return nil, err
	}
	p.metrics.RowsExtracted.Add(float64(len(records)))
	p.metrics.SnapshotSize.Observe(float64(len(records)))
	logger.Info("snapshot extracted", "rows", len(records))

	tbl, summaries, report, err := p.curator.Curate(ctx, records)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("curation_error").Inc()
		return nil, err
	}
	p.observeReport(report)

	if err := p.loader.LoadBatch(ctx, tbl.Events); err != nil {
		p.metrics.RunsTotal.WithLabelValues("load_error").Inc()
		return nil, err
	}
	p.metrics.EventsPublished.Add(float64(len(tbl.Events)))

	run.FinishedAt = time.Now().UTC()
	run.Table = tbl
	run.Summaries = summaries
	run.Report = report

	if err := p.loader.LoadSummary(ctx, run); err != nil {
		p.metrics.RunsTotal.WithLabelValues("load_error").Inc()
		return nil, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	p.mu.Lock()
	p.latest = run
	p.mu.Unlock()
	p.ready.Store(true)

	logger.Info("curation run complete",
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"dropped_year_out_of_range", report.DroppedYearOutOfRange,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	return run, nil
}

func (p *Pipeline) observeReport(report domain.QualityReport) {
	p.metrics.RowsCurated.Add(float64(report.RowsOut))
	p.metrics.RowsDropped.Add(float64(report.RowsIn - report.RowsOut))
	for column, n := range report.ImputedValues {
		p.metrics.ValuesImputed.WithLabelValues(column).Add(float64(n))
	}
	for _, n := range report.UnclassifiedTypes {
		p.metrics.UnclassifiedTypes.Add(float64(n))
	}
}

// isCurationError reports whether the error came from the data itself rather
// than a transient dependency.
func isCurationError(err error) bool {
	var malformed *domain.MalformedDateError
	var precursor *domain.PrecursorNotRunError
	return errors.As(err, &malformed) || errors.As(err, &precursor)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
