package domain

import (
	"fmt"
	"math"
	"time"
)

// SeverityWeights combines the normalized impact fields into the severity
// index. The weights must sum to 1; the exact weighting is a configuration
// input, not something the pipeline guesses.
type SeverityWeights struct {
	Deaths   float64 `yaml:"deaths"`
	Affected float64 `yaml:"affected"`
	Damage   float64 `yaml:"damage"`
}

// DefaultSeverityWeights favors loss of life over displacement over economic
// damage.
func DefaultSeverityWeights() SeverityWeights {
	return SeverityWeights{Deaths: 0.5, Affected: 0.3, Damage: 0.2}
}

// Validate rejects weights that are negative or do not sum to 1.
func (w SeverityWeights) Validate() error {
	if w.Deaths < 0 || w.Affected < 0 || w.Damage < 0 {
		return fmt.Errorf("severity weights must be non-negative")
	}
	if sum := w.Deaths + w.Affected + w.Damage; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("severity weights must sum to 1, got %g", sum)
	}
	return nil
}

// YearWindow is an inclusive [From, To] year range.
type YearWindow struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether the year falls inside the window, boundaries
// included.
func (w YearWindow) Contains(year int) bool {
	return year >= w.From && year <= w.To
}

// RecentWindow returns the window covering exactly n years up to and
// including yearMax: n=20 under a 2021 bound yields [2002, 2021].
func RecentWindow(yearMax, n int) YearWindow {
	return YearWindow{From: yearMax - n + 1, To: yearMax}
}

// DerivePolicy configures the derivation stage.
type DerivePolicy struct {
	Weights            SeverityWeights
	RecentWindow       YearWindow
	SouthernHemisphere bool // shift the season table for southern countries
}

// southernCountries is the static country-to-hemisphere lookup used by the
// southern-hemisphere season override. Countries straddling the equator are
// assigned by where the bulk of their landmass sits.
var southernCountries = map[string]bool{
	"argentina": true, "australia": true, "bolivia": true, "botswana": true,
	"brazil": true, "chile": true, "eswatini": true, "fiji": true,
	"indonesia": true, "lesotho": true, "madagascar": true, "malawi": true,
	"mozambique": true, "namibia": true, "new zealand": true,
	"papua new guinea": true, "paraguay": true, "peru": true,
	"solomon islands": true, "south africa": true, "tanzania": true,
	"uruguay": true, "vanuatu": true, "zambia": true, "zimbabwe": true,
}

// IsSouthernHemisphere reports whether a canonical country name resolves to
// the southern hemisphere.
func IsSouthernHemisphere(country string) bool {
	return southernCountries[matchKey(country)]
}

// SeasonForMonth maps a month to its meteorological season. The southern
// variant is the same table shifted by six months.
func SeasonForMonth(m time.Month, southern bool) Season {
	if southern {
		m += 6
		if m > 12 {
			m -= 12
		}
	}
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// Derive computes the secondary columns: decade, season and quarter (nil for
// year_only records), the severity index, and the recency flag.
//
// The severity index is w1*norm(deaths) + w2*norm(affected) + w3*norm(damage)
// with min-max normalization over the entire table, so it always lands in
// [0,1]. Imputation must have run first: any remaining missing impact value
// returns a *PrecursorNotRunError, and no record leaves this stage with a nil
// severity index.
func Derive(tbl Table, policy DerivePolicy) (Table, error) {
	if !tbl.Stages.Imputed {
		return Table{}, &PrecursorNotRunError{Stage: "derive", Missing: "impute"}
	}
	for i := range tbl.Events {
		ev := &tbl.Events[i]
		if ev.Deaths == nil || ev.Affected == nil || ev.Damage == nil {
			return Table{}, &PrecursorNotRunError{Stage: "derive", Missing: "impute"}
		}
	}
	if err := policy.Weights.Validate(); err != nil {
		return Table{}, err
	}

	out := tbl.clone()

	deaths := minMaxRange(out.Events, ColDeaths)
	affected := minMaxRange(out.Events, ColAffected)
	damage := minMaxRange(out.Events, ColDamage)

	now := clock.Now()
	for i := range out.Events {
		ev := &out.Events[i]

		ev.Decade = decadeOf(ev.Year)

		if ev.Granularity != GranularityYearOnly {
			southern := policy.SouthernHemisphere && IsSouthernHemisphere(ev.CountryCanonical)
			season := SeasonForMonth(ev.EventDate.Month(), southern)
			quarter := (int(ev.EventDate.Month())-1)/3 + 1
			ev.Season = &season
			ev.Quarter = &quarter
		}

		index := policy.Weights.Deaths*deaths.norm(*ev.Deaths) +
			policy.Weights.Affected*affected.norm(*ev.Affected) +
			policy.Weights.Damage*damage.norm(*ev.Damage)
		ev.SeverityIndex = &index

		ev.RecentEvent = policy.RecentWindow.Contains(ev.Year)
		ev.CuratedAt = now
	}

	out.Stages.Derived = true
	return out, nil
}

// minMax holds a column's observed range for normalization.
type minMax struct {
	min, max float64
}

// norm min-max normalizes v into [0,1]. A degenerate column (max == min)
// normalizes to 0 so the severity index stays defined.
func (r minMax) norm(v float64) float64 {
	if r.max <= r.min {
		return 0
	}
	return (v - r.min) / (r.max - r.min)
}

func minMaxRange(events []DisasterEvent, col NumericColumn) minMax {
	r := minMax{min: math.Inf(1), max: math.Inf(-1)}
	for i := range events {
		v := *numericValue(&events[i], col)
		r.min = math.Min(r.min, v)
		r.max = math.Max(r.max, v)
	}
	return r
}
