package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
)

// Curator runs the curation stages over a raw snapshot in their required
// order and folds the per-stage statistics into one quality report.
type Curator struct {
	temporal   domain.TemporalPolicy
	dict       *domain.AliasDictionary
	geo        *domain.GeoLookup
	strategies domain.StrategyMap
	derive     domain.DerivePolicy
	logger     *slog.Logger
}

// NewCurator creates a Curator from fully validated policies.
func NewCurator(
	temporal domain.TemporalPolicy,
	dict *domain.AliasDictionary,
	geo *domain.GeoLookup,
	strategies domain.StrategyMap,
	derive domain.DerivePolicy,
	logger *slog.Logger,
) *Curator {
	return &Curator{
		temporal:   temporal,
		dict:       dict,
		geo:        geo,
		strategies: strategies,
		derive:     derive,
		logger:     logger,
	}
}

// Curate transforms a raw snapshot into the finalized table plus its
// aggregations. Each stage consumes the previous stage's snapshot; a failure
// in any stage aborts the run with nothing published.
func (c *Curator) Curate(ctx context.Context, records []domain.RawDisasterRecord) (domain.Table, domain.Summaries, domain.QualityReport, error) {
	report := domain.QualityReport{RowsIn: len(records)}
	tbl := domain.NewTable(records)

	tbl, temporalStats, err := domain.ReconstructDates(tbl, c.temporal)
	if err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}
	report.DroppedYearOutOfRange = temporalStats.DroppedYearOutOfRange
	report.ClampedDays = temporalStats.ClampedDays
	c.logger.Debug("dates reconstructed",
		"rows", len(tbl.Events),
		"dropped_year_out_of_range", temporalStats.DroppedYearOutOfRange,
		"clamped_days", temporalStats.ClampedDays,
	)

	if err := ctx.Err(); err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}

	tbl, typeStats, err := domain.CurateTypes(tbl, c.dict)
	if err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}
	if len(typeStats.Unclassified) > 0 {
		report.UnclassifiedTypes = typeStats.Unclassified
		c.logger.Warn("unclassified disaster types", "values", typeStats.Unclassified)
	}

	tbl, geoStats, err := domain.CurateGeo(tbl, c.geo)
	if err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}
	if len(geoStats.UnmappedNames) > 0 {
		report.UnmappedGeoNames = geoStats.UnmappedNames
		c.logger.Warn("unmapped geographic names", "values", geoStats.UnmappedNames)
	}

	if err := ctx.Err(); err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}

	tbl, imputeStats, err := domain.Impute(tbl, c.strategies)
	if err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}
	report.ImputedValues = imputeStats.Imputed
	report.DroppedRows = imputeStats.Dropped

	tbl, err = domain.Derive(tbl, c.derive)
	if err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}

	summaries, err := domain.Aggregate(tbl, c.derive.RecentWindow)
	if err != nil {
		return domain.Table{}, domain.Summaries{}, report, err
	}

	report.RowsOut = len(tbl.Events)
	return tbl, summaries, report, nil
}
