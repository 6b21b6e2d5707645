package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DisasterType is a canonical disaster category. The set is closed: every
// curated record carries exactly one of these labels, with Other/Unclassified
// as the fallback bucket, so downstream aggregation keys are enumerable.
type DisasterType string

const (
	TypeDrought            DisasterType = "Drought"
	TypeEarthquake         DisasterType = "Earthquake"
	TypeEpidemic           DisasterType = "Epidemic"
	TypeExtremeTemperature DisasterType = "Extreme temperature"
	TypeFlood              DisasterType = "Flood"
	TypeInsectInfestation  DisasterType = "Insect infestation"
	TypeLandslide          DisasterType = "Landslide"
	TypeMassMovementDry    DisasterType = "Mass movement (dry)"
	TypeStorm              DisasterType = "Storm"
	TypeVolcanicActivity   DisasterType = "Volcanic activity"
	TypeWildfire           DisasterType = "Wildfire"
	TypeUnclassified       DisasterType = "Other/Unclassified"
)

// CanonicalTypes enumerates the closed taxonomy, fallback bucket included.
var CanonicalTypes = []DisasterType{
	TypeDrought, TypeEarthquake, TypeEpidemic, TypeExtremeTemperature,
	TypeFlood, TypeInsectInfestation, TypeLandslide, TypeMassMovementDry,
	TypeStorm, TypeVolcanicActivity, TypeWildfire, TypeUnclassified,
}

// AliasPair maps one raw spelling to its canonical disaster type.
type AliasPair struct {
	Alias     string       `yaml:"alias"`
	Canonical DisasterType `yaml:"canonical"`
}

type aliasEntry struct {
	alias     string // original spelling, for longest-match comparison
	key       string // normalized matching key
	canonical DisasterType
	order     int
}

// AliasDictionary resolves raw disaster-type strings to canonical labels.
// Declaration order is preserved: when two aliases normalize to the same key,
// the longer raw alias wins and ties go to the first-declared pair.
type AliasDictionary struct {
	entries []aliasEntry
}

// NewAliasDictionary builds a dictionary, rejecting pairs whose canonical
// label is outside the closed taxonomy. Invalid strategy or taxonomy input is
// a configuration-build-time error, never a per-row one.
func NewAliasDictionary(pairs []AliasPair) (*AliasDictionary, error) {
	valid := make(map[DisasterType]bool, len(CanonicalTypes))
	for _, t := range CanonicalTypes {
		valid[t] = true
	}

	d := &AliasDictionary{entries: make([]aliasEntry, 0, len(pairs))}
	for i, p := range pairs {
		if !valid[p.Canonical] {
			return nil, fmt.Errorf("alias %q: canonical label %q is not in the taxonomy", p.Alias, p.Canonical)
		}
		d.entries = append(d.entries, aliasEntry{
			alias:     p.Alias,
			key:       matchKey(p.Alias),
			canonical: p.Canonical,
			order:     i,
		})
	}
	return d, nil
}

// DefaultAliasDictionary covers the vocabulary observed in EM-DAT exports,
// including the casing and punctuation variants that show up in older rows.
func DefaultAliasDictionary() *AliasDictionary {
	d, err := NewAliasDictionary([]AliasPair{
		{"Drought", TypeDrought},
		{"Earthquake", TypeEarthquake},
		{"Seismic activity", TypeEarthquake},
		{"Epidemic", TypeEpidemic},
		{"Extreme temperature", TypeExtremeTemperature},
		{"Heat wave", TypeExtremeTemperature},
		{"Cold wave", TypeExtremeTemperature},
		{"Flood", TypeFlood},
		{"Flash flood", TypeFlood},
		{"Riverine flood", TypeFlood},
		{"Insect infestation", TypeInsectInfestation},
		{"Landslide", TypeLandslide},
		{"Wet mass movement", TypeLandslide},
		{"Mass movement (dry)", TypeMassMovementDry},
		{"Mass movement dry", TypeMassMovementDry},
		{"Storm", TypeStorm},
		{"Tropical cyclone", TypeStorm},
		{"Convective storm", TypeStorm},
		{"Volcanic activity", TypeVolcanicActivity},
		{"Volcano", TypeVolcanicActivity},
		{"Wildfire", TypeWildfire},
		{"Forest fire", TypeWildfire},
		{"Land fire (brush, bush, pasture)", TypeWildfire},
	})
	if err != nil {
		panic(err) // the built-in table is static; a failure here is a programming error
	}
	return d
}

// Resolve maps a raw value to its canonical label. The second return is false
// when no alias matched and the fallback bucket applies.
func (d *AliasDictionary) Resolve(raw string) (DisasterType, bool) {
	key := matchKey(raw)
	if key == "" {
		return TypeUnclassified, false
	}

	best := -1
	for i, e := range d.entries {
		if e.key != key {
			continue
		}
		if best == -1 || len(e.alias) > len(d.entries[best].alias) {
			best = i
		}
	}
	if best == -1 {
		return TypeUnclassified, false
	}
	return d.entries[best].canonical, true
}

// CurationStats reports unresolved categories as a data-quality signal.
// Unclassifiable values are counted, never fatal.
type CurationStats struct {
	Unclassified map[string]int
}

// CurateTypes normalizes the disaster-type column and attaches canonical
// labels. Requires date reconstruction to have run so the stage order stays
// statically checkable.
func CurateTypes(tbl Table, dict *AliasDictionary) (Table, CurationStats, error) {
	if !tbl.Stages.Reconstructed {
		return Table{}, CurationStats{}, &PrecursorNotRunError{Stage: "curate_types", Missing: "reconstruct_dates"}
	}

	out := tbl.clone()
	stats := CurationStats{Unclassified: map[string]int{}}

	for i := range out.Events {
		normalized := normalizeLabel(out.Events[i].DisasterType)
		out.Events[i].DisasterType = normalized

		canonical, ok := dict.Resolve(normalized)
		out.Events[i].DisasterTypeCanonical = canonical
		if !ok && normalized != "" {
			stats.Unclassified[normalized]++
		}
	}

	out.Stages.TypesCurated = true
	return out, stats, nil
}

// GeoLookup standardizes country and region names, including known historical
// renames (country splits and successions), keyed by lookup version.
type GeoLookup struct {
	Version string
	renames map[string]string // matchKey(old name) -> current canonical name
	regions map[string]string // matchKey(region)   -> canonical region
}

// historicalRenames is versioned so that a rerun against an old snapshot can
// pin the rename table it was curated with.
var historicalRenames = map[string]map[string]string{
	"2021": {
		"soviet union":        "Russian Federation",
		"ussr":                "Russian Federation",
		"zaire":               "Democratic Republic of the Congo",
		"zaire/congo dem rep": "Democratic Republic of the Congo",
		"czechoslovakia":      "Czechia",
		"yugoslavia":          "Serbia",
		"serbia montenegro":   "Serbia",
		"burma":               "Myanmar",
		"swaziland":           "Eswatini",
		"macedonia":           "North Macedonia",
		"cape verde":          "Cabo Verde",
		"east timor":          "Timor-Leste",
	},
}

// canonicalRegions is the EM-DAT continental-region vocabulary.
var canonicalRegions = []string{
	"Northern Africa", "Western Africa", "Eastern Africa", "Middle Africa", "Southern Africa",
	"Northern America", "Central America", "Caribbean", "South America",
	"Central Asia", "Eastern Asia", "South-Eastern Asia", "Southern Asia", "Western Asia",
	"Eastern Europe", "Northern Europe", "Southern Europe", "Western Europe",
	"Australia and New Zealand", "Melanesia", "Micronesia", "Polynesia",
}

// NewGeoLookup returns the lookup for the given version. Unknown versions are
// a configuration error.
func NewGeoLookup(version string) (*GeoLookup, error) {
	renames, ok := historicalRenames[version]
	if !ok {
		return nil, fmt.Errorf("unknown geo lookup version %q", version)
	}

	regions := make(map[string]string, len(canonicalRegions))
	for _, r := range canonicalRegions {
		regions[matchKey(r)] = r
	}

	return &GeoLookup{Version: version, renames: renames, regions: regions}, nil
}

// GeoStats lists names that passed through normalized but uncanonicalized,
// flagged for review.
type GeoStats struct {
	UnmappedNames []string
}

// CurateGeo normalizes the country and region columns and applies the
// historical-rename lookup. Countries with no rename entry pass through with
// their normalized spelling as the canonical value; unmatched regions are
// additionally flagged. Empty cells are left for the imputer.
func CurateGeo(tbl Table, lookup *GeoLookup) (Table, GeoStats, error) {
	if !tbl.Stages.TypesCurated {
		return Table{}, GeoStats{}, &PrecursorNotRunError{Stage: "curate_geo", Missing: "curate_types"}
	}

	out := tbl.clone()
	unmapped := map[string]bool{}

	for i := range out.Events {
		ev := &out.Events[i]

		ev.Country = normalizeLabel(ev.Country)
		if renamed, ok := lookup.renames[matchKey(ev.Country)]; ok {
			ev.CountryCanonical = renamed
		} else if ev.Country != "" {
			ev.CountryCanonical = ev.Country
		}

		ev.Region = normalizeLabel(ev.Region)
		if ev.Region == "" {
			continue
		}
		if canonical, ok := lookup.regions[matchKey(ev.Region)]; ok {
			ev.RegionCanonical = canonical
		} else {
			ev.RegionCanonical = ev.Region
			ev.GeoFlagged = true
			unmapped[ev.Region] = true
		}
	}

	names := make([]string, 0, len(unmapped))
	for n := range unmapped {
		names = append(names, n)
	}
	sort.Strings(names)

	out.Stages.GeoCurated = true
	return out, GeoStats{UnmappedNames: names}, nil
}

// normalizeLabel trims and collapses internal whitespace, preserving the
// original casing for display.
func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchKey lowers a label into its case/whitespace-insensitive matching form.
func matchKey(s string) string {
	return strings.ToLower(normalizeLabel(s))
}
