package domain

import (
	"fmt"
	"sort"
)

// NumericColumn and CategoricalColumn enumerate the imputable columns.
type NumericColumn string

const (
	ColDeaths   NumericColumn = "deaths"
	ColAffected NumericColumn = "affected"
	ColDamage   NumericColumn = "damage"
)

type CategoricalColumn string

const (
	ColCountry CategoricalColumn = "country_canonical"
	ColRegion  CategoricalColumn = "region_canonical"
)

// GroupColumn names a column usable as an imputation grouping key.
type GroupColumn string

const (
	GroupDisasterType GroupColumn = "disaster_type_canonical"
	GroupDecade       GroupColumn = "decade"
)

// NumericStrategyKind is the closed set of numeric imputation strategies.
// Invalid strategy names are rejected when the strategy map is built, not at
// row-processing time.
type NumericStrategyKind string

const (
	NumericZero          NumericStrategyKind = "zero"
	NumericMedian        NumericStrategyKind = "median"
	NumericMedianByGroup NumericStrategyKind = "median_by_group"
	NumericDropRow       NumericStrategyKind = "drop_row"
)

// CategoricalStrategyKind is the closed set of categorical strategies.
type CategoricalStrategyKind string

const (
	CategoricalMode        CategoricalStrategyKind = "mode"
	CategoricalModeByGroup CategoricalStrategyKind = "mode_by_group"
	CategoricalConstant    CategoricalStrategyKind = "constant"
)

// NumericStrategy selects how one numeric column is imputed.
type NumericStrategy struct {
	Kind    NumericStrategyKind `yaml:"strategy"`
	GroupBy []GroupColumn       `yaml:"group_by,omitempty"`
}

// CategoricalStrategy selects how one categorical column is imputed.
type CategoricalStrategy struct {
	Kind     CategoricalStrategyKind `yaml:"strategy"`
	GroupBy  []GroupColumn           `yaml:"group_by,omitempty"`
	Constant string                  `yaml:"value,omitempty"`
}

// StrategyMap enumerates, per column, the imputation strategy to apply.
type StrategyMap struct {
	Numeric     map[NumericColumn]NumericStrategy         `yaml:"numeric"`
	Categorical map[CategoricalColumn]CategoricalStrategy `yaml:"categorical"`
}

// DefaultStrategyMap imputes impact fields with the grouped median over
// (disaster_type_canonical, decade), falling back to the global median, and
// fills empty categorical cells with the literal "Unknown".
func DefaultStrategyMap() StrategyMap {
	groups := []GroupColumn{GroupDisasterType, GroupDecade}
	return StrategyMap{
		Numeric: map[NumericColumn]NumericStrategy{
			ColDeaths:   {Kind: NumericMedianByGroup, GroupBy: groups},
			ColAffected: {Kind: NumericMedianByGroup, GroupBy: groups},
			ColDamage:   {Kind: NumericMedianByGroup, GroupBy: groups},
		},
		Categorical: map[CategoricalColumn]CategoricalStrategy{
			ColCountry: {Kind: CategoricalConstant, Constant: "Unknown"},
			ColRegion:  {Kind: CategoricalConstant, Constant: "Unknown"},
		},
	}
}

// Validate rejects unknown strategy names, columns, and grouping keys so a
// bad configuration fails at build time.
func (m StrategyMap) Validate() error {
	for col, s := range m.Numeric {
		switch col {
		case ColDeaths, ColAffected, ColDamage:
		default:
			return fmt.Errorf("unknown numeric column %q", col)
		}
		switch s.Kind {
		case NumericZero, NumericMedian, NumericDropRow:
		case NumericMedianByGroup:
			if err := validateGroupBy(s.GroupBy); err != nil {
				return fmt.Errorf("column %q: %w", col, err)
			}
		default:
			return fmt.Errorf("column %q: unknown numeric strategy %q", col, s.Kind)
		}
	}
	for col, s := range m.Categorical {
		switch col {
		case ColCountry, ColRegion:
		default:
			return fmt.Errorf("unknown categorical column %q", col)
		}
		switch s.Kind {
		case CategoricalMode:
		case CategoricalModeByGroup:
			if err := validateGroupBy(s.GroupBy); err != nil {
				return fmt.Errorf("column %q: %w", col, err)
			}
		case CategoricalConstant:
			if s.Constant == "" {
				return fmt.Errorf("column %q: constant strategy requires a value", col)
			}
		default:
			return fmt.Errorf("column %q: unknown categorical strategy %q", col, s.Kind)
		}
	}
	return nil
}

func validateGroupBy(groups []GroupColumn) error {
	if len(groups) == 0 {
		return fmt.Errorf("grouped strategy requires group_by columns")
	}
	for _, g := range groups {
		switch g {
		case GroupDisasterType, GroupDecade:
		default:
			return fmt.Errorf("unknown group column %q", g)
		}
	}
	return nil
}

// ImputeStats reports what the imputer changed: filled cells per column and
// rows removed by drop_row strategies.
type ImputeStats struct {
	Imputed map[string]int
	Dropped map[string]int
}

// Impute fills missing values per the strategy map. After this stage no
// column enumerated in the map contains a missing value, except drop_row
// columns whose offending rows were removed (and counted).
//
// Grouped medians fall back to the global median when the group carries no
// observations, and to zero when the whole column is empty. All reductions
// are order-independent (sorted medians, lexicographic mode tie-breaks) so
// identical input yields identical output.
func Impute(tbl Table, strategies StrategyMap) (Table, ImputeStats, error) {
	if !tbl.Stages.GeoCurated {
		return Table{}, ImputeStats{}, &PrecursorNotRunError{Stage: "impute", Missing: "curate_geo"}
	}
	if err := strategies.Validate(); err != nil {
		return Table{}, ImputeStats{}, err
	}

	out := tbl.clone()
	stats := ImputeStats{Imputed: map[string]int{}, Dropped: map[string]int{}}

	// drop_row strategies first, so removed rows never contribute to the
	// medians and modes computed below.
	for col, s := range strategies.Numeric {
		if s.Kind != NumericDropRow {
			continue
		}
		kept := out.Events[:0]
		for _, ev := range out.Events {
			if numericValue(&ev, col) == nil {
				stats.Dropped[string(col)]++
				continue
			}
			kept = append(kept, ev)
		}
		out.Events = kept
	}

	for _, col := range []NumericColumn{ColDeaths, ColAffected, ColDamage} {
		s, ok := strategies.Numeric[col]
		if !ok || s.Kind == NumericDropRow {
			continue
		}
		imputeNumericColumn(out.Events, col, s, stats.Imputed)
	}

	for _, col := range []CategoricalColumn{ColCountry, ColRegion} {
		s, ok := strategies.Categorical[col]
		if !ok {
			continue
		}
		imputeCategoricalColumn(out.Events, col, s, stats.Imputed)
	}

	out.Stages.Imputed = true
	return out, stats, nil
}

func imputeNumericColumn(events []DisasterEvent, col NumericColumn, s NumericStrategy, imputed map[string]int) {
	global := columnMedian(events, col)

	var byGroup map[string]float64
	if s.Kind == NumericMedianByGroup {
		byGroup = groupMedians(events, col, s.GroupBy)
	}

	for i := range events {
		if numericValue(&events[i], col) != nil {
			continue
		}

		var v float64
		switch s.Kind {
		case NumericZero:
			v = 0
		case NumericMedian:
			v = global
		case NumericMedianByGroup:
			if gv, ok := byGroup[groupKey(&events[i], s.GroupBy)]; ok {
				v = gv
			} else {
				v = global
			}
		}
		setNumericValue(&events[i], col, v)
		imputed[string(col)]++
	}
}

func imputeCategoricalColumn(events []DisasterEvent, col CategoricalColumn, s CategoricalStrategy, imputed map[string]int) {
	var global string
	var byGroup map[string]string
	switch s.Kind {
	case CategoricalMode:
		global = columnMode(events, col, nil, "")
	case CategoricalModeByGroup:
		global = columnMode(events, col, nil, "")
		byGroup = map[string]string{}
		seen := map[string]bool{}
		for i := range events {
			key := groupKey(&events[i], s.GroupBy)
			if seen[key] {
				continue
			}
			seen[key] = true
			byGroup[key] = columnMode(events, col, s.GroupBy, key)
		}
	}

	for i := range events {
		if categoricalValue(&events[i], col) != "" {
			continue
		}

		var v string
		switch s.Kind {
		case CategoricalConstant:
			v = s.Constant
		case CategoricalMode:
			v = global
		case CategoricalModeByGroup:
			if gv, ok := byGroup[groupKey(&events[i], s.GroupBy)]; ok && gv != "" {
				v = gv
			} else {
				v = global
			}
		}
		if v == "" {
			v = "Unknown" // nothing observed anywhere in the column
		}
		setCategoricalValue(&events[i], col, v)
		imputed[string(col)]++
	}
}

// columnMedian computes the sorted median of a column's non-nil values,
// zero when the column has no observations at all.
func columnMedian(events []DisasterEvent, col NumericColumn) float64 {
	var vals []float64
	for i := range events {
		if v := numericValue(&events[i], col); v != nil {
			vals = append(vals, *v)
		}
	}
	return sortedMedian(vals)
}

func groupMedians(events []DisasterEvent, col NumericColumn, groups []GroupColumn) map[string]float64 {
	byGroup := map[string][]float64{}
	for i := range events {
		v := numericValue(&events[i], col)
		if v == nil {
			continue
		}
		key := groupKey(&events[i], groups)
		byGroup[key] = append(byGroup[key], *v)
	}

	medians := make(map[string]float64, len(byGroup))
	for key, vals := range byGroup {
		medians[key] = sortedMedian(vals)
	}
	return medians
}

// sortedMedian is the order-independent median: even counts average the two
// middle values.
func sortedMedian(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// columnMode returns the most frequent non-empty value, optionally restricted
// to one group. Frequency ties break lexicographically for determinism.
func columnMode(events []DisasterEvent, col CategoricalColumn, groups []GroupColumn, key string) string {
	counts := map[string]int{}
	for i := range events {
		if groups != nil && groupKey(&events[i], groups) != key {
			continue
		}
		if v := categoricalValue(&events[i], col); v != "" {
			counts[v]++
		}
	}

	var mode string
	best := 0
	for v, n := range counts {
		if n > best || (n == best && (mode == "" || v < mode)) {
			mode, best = v, n
		}
	}
	return mode
}

// groupKey renders an event's grouping-column values as a composite map key.
// Decade is computed on the fly: the derived column is only attached in the
// derivation stage, but floor(year/10)*10 is available as soon as dates are
// reconstructed.
func groupKey(ev *DisasterEvent, groups []GroupColumn) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		switch g {
		case GroupDisasterType:
			parts[i] = string(ev.DisasterTypeCanonical)
		case GroupDecade:
			parts[i] = fmt.Sprintf("%d", decadeOf(ev.Year))
		}
	}
	return joinKey(parts)
}

func joinKey(parts []string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "|"
		}
		key += p
	}
	return key
}

// decadeOf buckets a year into its decade: floor(year/10)*10.
func decadeOf(year int) int {
	return (year / 10) * 10
}

func numericValue(ev *DisasterEvent, col NumericColumn) *float64 {
	switch col {
	case ColDeaths:
		return ev.Deaths
	case ColAffected:
		return ev.Affected
	case ColDamage:
		return ev.Damage
	}
	return nil
}

func setNumericValue(ev *DisasterEvent, col NumericColumn, v float64) {
	switch col {
	case ColDeaths:
		ev.Deaths = &v
	case ColAffected:
		ev.Affected = &v
	case ColDamage:
		ev.Damage = &v
	}
}

func categoricalValue(ev *DisasterEvent, col CategoricalColumn) string {
	switch col {
	case ColCountry:
		return ev.CountryCanonical
	case ColRegion:
		return ev.RegionCanonical
	}
	return ""
}

func setCategoricalValue(ev *DisasterEvent, col CategoricalColumn, v string) {
	switch col {
	case ColCountry:
		ev.CountryCanonical = v
	case ColRegion:
		ev.RegionCanonical = v
	}
}
