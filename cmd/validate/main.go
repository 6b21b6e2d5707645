// Command validate performs end-to-end integrity checks on curated fixture
// data: it re-runs the curation pipeline over the raw fixture and verifies
// the curated fixture against it, then checks the date reconstruction policy,
// the taxonomy enums, and the derived-variable ranges.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-json data/mock/disasters_raw.json \
//	  -curated-json data/mock/disasters_curated.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
	"github.com/couchcryptid/disaster-archive-etl/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawJSON := flag.String("raw-json", "", "path to the raw records JSON fixture")
	curatedJSON := flag.String("curated-json", "", "path to the curated events JSON fixture")
	flag.Parse()

	if *rawJSON == "" || *curatedJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawJSON, *curatedJSON); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, curatedPath string) int {
	// Set a fixed clock matching genmock for CuratedAt reproducibility.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Disaster Archive Integrity Validation ===")
	fmt.Println()

	records, err := loadJSON[domain.RawDisasterRecord](rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw fixture: %v\n", err)
		return 1
	}
	curated, err := loadJSON[domain.DisasterEvent](curatedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load curated fixture: %v\n", err)
		return 1
	}

	expected, err := recurate(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: re-run curation: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateParity(curated, expected),
		validateDatePolicy(curated),
		validateTaxonomy(curated),
		validateDerived(curated),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw, %d curated, %d expected\n", len(records), len(curated), len(expected))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// recurate runs the full curation over the raw fixture with the default
// policies, mirroring genmock.
func recurate(records []domain.RawDisasterRecord) ([]domain.DisasterEvent, error) {
	geo, err := domain.NewGeoLookup("2021")
	if err != nil {
		return nil, err
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
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	tbl, _, _, err := curator.Curate(context.Background(), records)
	if err != nil {
		return nil, err
	}
	return tbl.Events, nil
}

// Phase 1: the curated fixture must match a fresh curation of the raw fixture
// row for row.
func validateParity(curated, expected []domain.DisasterEvent) *phase {
	p := &phase{name: "Phase 1: Curation Parity"}

	if len(curated) != len(expected) {
		p.errorf("row count: expected %d, got %d", len(expected), len(curated))
		return p
	}

	byID := make(map[string]*domain.DisasterEvent, len(expected))
	for i := range expected {
		byID[expected[i].ID] = &expected[i]
	}

	for i := range curated {
		got := &curated[i]
		want, ok := byID[got.ID]
		if !ok {
			p.errorf("record %d: ID %q not produced by curation", i, got.ID)
			continue
		}
		if got.Year != want.Year {
			p.errorf("ID %s: year: expected %d, got %d", got.ID, want.Year, got.Year)
		}
		if got.DisasterTypeCanonical != want.DisasterTypeCanonical {
			p.errorf("ID %s: type: expected %q, got %q", got.ID, want.DisasterTypeCanonical, got.DisasterTypeCanonical)
		}
		if got.CountryCanonical != want.CountryCanonical {
			p.errorf("ID %s: country: expected %q, got %q", got.ID, want.CountryCanonical, got.CountryCanonical)
		}
		if !ptrFloatEq(got.SeverityIndex, want.SeverityIndex) {
			p.errorf("ID %s: severity index mismatch", got.ID)
		}
	}
	return p
}

// Phase 2: reconstructed dates must obey the sentinel policy and year bounds.
func validateDatePolicy(curated []domain.DisasterEvent) *phase {
	p := &phase{name: "Phase 2: Date Reconstruction Policy"}

	for i := range curated {
		e := &curated[i]
		if e.Year < 1970 || e.Year > 2021 {
			p.errorf("ID %s: year %d outside [1970, 2021]", e.ID, e.Year)
		}
		if e.EventDate.Year() != e.Year {
			p.errorf("ID %s: event date year %d != year column %d", e.ID, e.EventDate.Year(), e.Year)
		}
		switch e.Granularity {
		case domain.GranularityYearOnly:
			if e.EventDate.Month() != time.January || e.EventDate.Day() != 1 {
				p.errorf("ID %s: year_only date is %s, expected January 1", e.ID, e.EventDate.Format(time.DateOnly))
			}
		case domain.GranularityYearMonth:
			if e.EventDate.Day() != 1 {
				p.errorf("ID %s: year_month date day is %d, expected 1", e.ID, e.EventDate.Day())
			}
		case domain.GranularityFullDate:
		default:
			p.errorf("ID %s: unknown granularity %q", e.ID, e.Granularity)
		}
	}
	return p
}

// Phase 3: canonical labels must stay inside the closed vocabularies.
func validateTaxonomy(curated []domain.DisasterEvent) *phase {
	p := &phase{name: "Phase 3: Taxonomy and Geography"}

	validTypes := make(map[domain.DisasterType]bool, len(domain.CanonicalTypes))
	for _, t := range domain.CanonicalTypes {
		validTypes[t] = true
	}
	validSeasons := map[domain.Season]bool{
		domain.SeasonWinter: true, domain.SeasonSpring: true,
		domain.SeasonSummer: true, domain.SeasonAutumn: true,
	}

	for i := range curated {
		e := &curated[i]
		if !validTypes[e.DisasterTypeCanonical] {
			p.errorf("ID %s: canonical type %q not in taxonomy", e.ID, e.DisasterTypeCanonical)
		}
		if e.CountryCanonical == "" {
			p.errorf("ID %s: canonical country is empty after imputation", e.ID)
		}
		if e.RegionCanonical == "" {
			p.errorf("ID %s: canonical region is empty after imputation", e.ID)
		}

		yearOnly := e.Granularity == domain.GranularityYearOnly
		if yearOnly {
			if e.Season != nil || e.Quarter != nil {
				p.errorf("ID %s: year_only record carries season or quarter", e.ID)
			}
			continue
		}
		if e.Season == nil || !validSeasons[*e.Season] {
			p.errorf("ID %s: missing or invalid season", e.ID)
		}
		if e.Quarter == nil || *e.Quarter < 1 || *e.Quarter > 4 {
			p.errorf("ID %s: missing or invalid quarter", e.ID)
		}
	}
	return p
}

// Phase 4: derived variables must sit in their documented ranges.
func validateDerived(curated []domain.DisasterEvent) *phase {
	p := &phase{name: "Phase 4: Derived Variable Ranges"}

	window := domain.RecentWindow(2021, 20)

	for i := range curated {
		e := &curated[i]
		for _, c := range []struct {
			name  string
			value *float64
		}{
			{"deaths", e.Deaths},
			{"affected", e.Affected},
			{"damage", e.Damage},
		} {
			if c.value == nil {
				p.errorf("ID %s: %s is nil after imputation", e.ID, c.name)
			} else if *c.value < 0 {
				p.errorf("ID %s: %s is negative (%g)", e.ID, c.name, *c.value)
			}
		}

		if e.SeverityIndex == nil {
			p.errorf("ID %s: severity index is nil", e.ID)
		} else if *e.SeverityIndex < 0 || *e.SeverityIndex > 1 {
			p.errorf("ID %s: severity index %g outside [0, 1]", e.ID, *e.SeverityIndex)
		}

		if want := (e.Year / 10) * 10; e.Decade != want {
			p.errorf("ID %s: decade %d, expected %d", e.ID, e.Decade, want)
		}
		if want := window.Contains(e.Year); e.RecentEvent != want {
			p.errorf("ID %s: recent flag %t, expected %t for year %d", e.ID, e.RecentEvent, want, e.Year)
		}
		if e.CuratedAt.IsZero() {
			p.errorf("ID %s: curated_at is zero", e.ID)
		}
	}
	return p
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	diff := *a - *b
	return diff < 1e-9 && diff > -1e-9
}
