// Command genmock reads an EM-DAT dataset export and generates mock data
// fixtures for the test suites. It uses the actual curation domain package so
// the fixture output matches real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -dataset data/disasters.csv \
//	  -raw-out data/mock/disasters_raw.json \
//	  -curated-out data/mock/disasters_curated.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-archive-etl/internal/adapter/emdat"
	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
	"github.com/couchcryptid/disaster-archive-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataset := flag.String("dataset", "", "path to the EM-DAT dataset export (CSV or XLSX)")
	rawOut := flag.String("raw-out", "", "output path for the raw records JSON fixture")
	curatedOut := flag.String("curated-out", "", "output path for the curated events JSON fixture")
	flag.Parse()

	if *dataset == "" || *rawOut == "" || *curatedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -dataset, -raw-out, -curated-out")
	}

	// Set a fixed clock for reproducible CuratedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reader := emdat.NewReader(*dataset, logger)
	records, err := reader.ExtractSnapshot(context.Background())
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}
	log.Printf("dataset: %d raw records", len(records))

	geo, err := domain.NewGeoLookup("2021")
	if err != nil {
		return err
	}
	curator := pipeline.NewCurator(
		domain.TemporalPolicy{YearMin: 1970, YearMax: 2021},
		domain.DefaultAliasDictionary(),
		geo,
		domain.DefaultStrategyMap(),
		domain.DerivePolicy{
			Weights:      domain.DefaultSeverityWeights(),
			RecentWindow: domain.RecentWindow(2021, 20),
		},
		logger,
	)

	tbl, _, report, err := curator.Curate(context.Background(), records)
	if err != nil {
		return fmt.Errorf("curating dataset: %w", err)
	}
	log.Printf("curated: %d of %d rows kept", report.RowsOut, report.RowsIn)

	if err := writeJSON(*rawOut, records); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*curatedOut, tbl.Events); err != nil {
		return fmt.Errorf("writing curated fixture: %w", err)
	}
	log.Printf("wrote curated fixture: %s", *curatedOut)

	printStats(tbl.Events, report)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type labelCount struct {
	label string
	count int
}

func printStats(events []domain.DisasterEvent, report domain.QualityReport) {
	typeCounts := map[string]int{}
	decadeCounts := map[int]int{}
	granularityCounts := map[domain.Granularity]int{}
	var recent int
	var maxSeverity float64

	for i := range events {
		e := &events[i]
		typeCounts[string(e.DisasterTypeCanonical)]++
		decadeCounts[e.Decade]++
		granularityCounts[e.Granularity]++
		if e.RecentEvent {
			recent++
		}
		if e.SeverityIndex != nil && *e.SeverityIndex > maxSeverity {
			maxSeverity = *e.SeverityIndex
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (in=%d, dropped_year=%d, clamped_days=%d)\n",
		len(events), report.RowsIn, report.DroppedYearOutOfRange, report.ClampedDays)

	fmt.Printf("Granularity: full_date=%d, year_month=%d, year_only=%d\n",
		granularityCounts[domain.GranularityFullDate],
		granularityCounts[domain.GranularityYearMonth],
		granularityCounts[domain.GranularityYearOnly])

	printSorted("By type", typeCounts)

	decades := make([]int, 0, len(decadeCounts))
	for d := range decadeCounts {
		decades = append(decades, d)
	}
	sort.Ints(decades)
	fmt.Print("By decade: ")
	for _, d := range decades {
		fmt.Printf("%d=%d ", d, decadeCounts[d])
	}
	fmt.Println()

	fmt.Printf("Recent events: %d\n", recent)
	fmt.Printf("Max severity index: %g\n", maxSeverity)
	fmt.Printf("Imputed values: %v\n", report.ImputedValues)
	if len(report.UnclassifiedTypes) > 0 {
		fmt.Printf("Unclassified types: %v\n", report.UnclassifiedTypes)
	}
	if len(report.UnmappedGeoNames) > 0 {
		fmt.Printf("Unmapped geo names: %v\n", report.UnmappedGeoNames)
	}
}

func printSorted(name string, counts map[string]int) {
	lc := make([]labelCount, 0, len(counts))
	for l, c := range counts {
		lc = append(lc, labelCount{l, c})
	}
	sort.Slice(lc, func(i, j int) bool {
		if lc[i].count != lc[j].count {
			return lc[i].count > lc[j].count
		}
		return lc[i].label < lc[j].label
	})

	fmt.Printf("%s: ", name)
	for _, e := range lc {
		fmt.Printf("%s=%d ", e.label, e.count)
	}
	fmt.Println()
}
