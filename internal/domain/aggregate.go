package domain

// PeriodSummary accumulates one aggregation bucket: event count plus summed
// impact fields.
type PeriodSummary struct {
	Events   int     `json:"events"`
	Deaths   float64 `json:"deaths"`
	Affected float64 `json:"affected"`
	Damage   float64 `json:"damage"`
}

func (s *PeriodSummary) add(ev *DisasterEvent) {
	s.Events++
	s.Deaths += *ev.Deaths
	s.Affected += *ev.Affected
	s.Damage += *ev.Damage
}

// TrendSummary captures year-over-year behavior inside the recent window.
// Slope is the least-squares regression of event count on year, computed over
// every year of the window (zero-count years included).
type TrendSummary struct {
	Window       YearWindow      `json:"window"`
	YearCounts   map[int]int     `json:"year_counts"`
	YoYChangePct map[int]float64 `json:"yoy_change_pct"`
	SlopePerYear float64         `json:"slope_per_year"`
	PeakYear     int             `json:"peak_year"`
	PeakCount    int             `json:"peak_count"`
}

// Summaries is the aggregate output of one run. Monthly, quarterly, and
// seasonal buckets only see records whose granularity supports that
// resolution; yearly and decade buckets see everything.
type Summaries struct {
	ByMonth   map[int]PeriodSummary    `json:"by_month"`
	ByQuarter map[int]PeriodSummary    `json:"by_quarter"`
	BySeason  map[Season]PeriodSummary `json:"by_season"`
	ByYear    map[int]PeriodSummary    `json:"by_year"`
	ByDecade  map[int]PeriodSummary    `json:"by_decade"`

	// Cross cuts: canonical type against region and against year. These feed
	// the report views (earthquake geography, flood and drought regions,
	// storm continents, wildfire trend) without the aggregator knowing about
	// presentation.
	TypeByRegion map[DisasterType]map[string]int `json:"type_by_region"`
	TypeByYear   map[DisasterType]map[int]int    `json:"type_by_year"`

	Trend TrendSummary `json:"trend"`
}

// Aggregate computes all period summaries and the trend statistic over the
// finalized table. It is a pure read: safe to call concurrently with other
// aggregations over the same table, never concurrently with a mutating stage.
func Aggregate(tbl Table, window YearWindow) (Summaries, error) {
	if !tbl.Stages.Derived {
		return Summaries{}, &PrecursorNotRunError{Stage: "aggregate", Missing: "derive"}
	}

	s := Summaries{
		ByMonth:      map[int]PeriodSummary{},
		ByQuarter:    map[int]PeriodSummary{},
		BySeason:     map[Season]PeriodSummary{},
		ByYear:       map[int]PeriodSummary{},
		ByDecade:     map[int]PeriodSummary{},
		TypeByRegion: map[DisasterType]map[string]int{},
		TypeByYear:   map[DisasterType]map[int]int{},
	}

	for i := range tbl.Events {
		ev := &tbl.Events[i]

		if ev.Granularity != GranularityYearOnly {
			bump(s.ByMonth, int(ev.EventDate.Month()), ev)
			if ev.Quarter != nil {
				bump(s.ByQuarter, *ev.Quarter, ev)
			}
			if ev.Season != nil {
				bump(s.BySeason, *ev.Season, ev)
			}
		}
		bump(s.ByYear, ev.Year, ev)
		bump(s.ByDecade, ev.Decade, ev)

		crossCount(s.TypeByRegion, ev.DisasterTypeCanonical, ev.RegionCanonical)
		crossCount(s.TypeByYear, ev.DisasterTypeCanonical, ev.Year)
	}

	s.Trend = trend(s.ByYear, window)
	return s, nil
}

func bump[K comparable](m map[K]PeriodSummary, key K, ev *DisasterEvent) {
	entry := m[key]
	entry.add(ev)
	m[key] = entry
}

func crossCount[K comparable](m map[DisasterType]map[K]int, t DisasterType, key K) {
	inner, ok := m[t]
	if !ok {
		inner = map[K]int{}
		m[t] = inner
	}
	inner[key]++
}

// trend restricts the yearly counts to the window and computes the
// year-over-year changes, the least-squares slope, and the peak year. Peak
// ties resolve to the earliest year so reruns stay deterministic.
func trend(byYear map[int]PeriodSummary, window YearWindow) TrendSummary {
	t := TrendSummary{
		Window:       window,
		YearCounts:   map[int]int{},
		YoYChangePct: map[int]float64{},
	}

	for year := window.From; year <= window.To; year++ {
		t.YearCounts[year] = byYear[year].Events
	}

	for year := window.From + 1; year <= window.To; year++ {
		prev := t.YearCounts[year-1]
		if prev == 0 {
			continue
		}
		t.YoYChangePct[year] = float64(t.YearCounts[year]-prev) / float64(prev) * 100
	}

	// Least squares over (year, count) pairs.
	n := float64(window.To - window.From + 1)
	if n > 1 {
		var sumX, sumY, sumXY, sumXX float64
		for year := window.From; year <= window.To; year++ {
			x, y := float64(year), float64(t.YearCounts[year])
			sumX += x
			sumY += y
			sumXY += x * y
			sumXX += x * x
		}
		if denom := n*sumXX - sumX*sumX; denom != 0 {
			t.SlopePerYear = (n*sumXY - sumX*sumY) / denom
		}
	}

	t.PeakYear = window.From
	for year := window.From; year <= window.To; year++ {
		if t.YearCounts[year] > t.PeakCount {
			t.PeakCount = t.YearCounts[year]
			t.PeakYear = year
		}
	}
	return t
}
