package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstructed builds a table and runs the temporal stage, so curation tests
// start from the stage the orchestrator would hand them.
func reconstructed(t *testing.T, records []RawDisasterRecord) Table {
	t.Helper()
	tbl, _, err := ReconstructDates(NewTable(records), testPolicy)
	require.NoError(t, err)
	return tbl
}

func TestCurateTypes(t *testing.T) {
	dict := DefaultAliasDictionary()

	tests := []struct {
		name           string
		raw            string
		wantNormalized string
		wantCanonical  DisasterType
	}{
		{"exact match", "Flood", "Flood", TypeFlood},
		{"uppercase with trailing space", "FLOOD ", "FLOOD", TypeFlood},
		{"alias to broader type", "Tropical cyclone", "Tropical cyclone", TypeStorm},
		{"legacy volcano spelling", "Volcano", "Volcano", TypeVolcanicActivity},
		{"internal whitespace collapsed", "Extreme   temperature", "Extreme temperature", TypeExtremeTemperature},
		{"unmatched value falls back", "Alien invasion", "Alien invasion", TypeUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := reconstructed(t, []RawDisasterRecord{{
				Year: "2005", DisasterType: tt.raw, Country: "USA",
			}})

			out, _, err := CurateTypes(tbl, dict)
			require.NoError(t, err)
			require.Len(t, out.Events, 1)
			assert.Equal(t, tt.wantNormalized, out.Events[0].DisasterType)
			assert.Equal(t, tt.wantCanonical, out.Events[0].DisasterTypeCanonical)
		})
	}
}

func TestCurateTypes_UnclassifiedCountedNotFatal(t *testing.T) {
	tbl := reconstructed(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India"},
		{Year: "2002", DisasterType: "Meteor strike", Country: "Chile"},
		{Year: "2003", DisasterType: "Meteor strike", Country: "Chile"},
	})

	out, stats, err := CurateTypes(tbl, DefaultAliasDictionary())
	require.NoError(t, err)
	assert.Len(t, out.Events, 3)
	assert.Equal(t, map[string]int{"Meteor strike": 2}, stats.Unclassified)
	assert.True(t, out.Stages.TypesCurated)
}

func TestCurateTypes_RequiresReconstruction(t *testing.T) {
	tbl := NewTable([]RawDisasterRecord{{Year: "2005", DisasterType: "Flood", Country: "USA"}})

	_, _, err := CurateTypes(tbl, DefaultAliasDictionary())

	var precursor *PrecursorNotRunError
	require.ErrorAs(t, err, &precursor)
	assert.Equal(t, "curate_types", precursor.Stage)
}

func TestAliasDictionary_LongestMatchWins(t *testing.T) {
	// Two aliases normalize to the same key but differ in raw length; the
	// longer one decides the canonical label.
	dict, err := NewAliasDictionary([]AliasPair{
		{"storm", TypeFlood},
		{"Storm ", TypeStorm},
	})
	require.NoError(t, err)

	canonical, ok := dict.Resolve("STORM")
	assert.True(t, ok)
	assert.Equal(t, TypeStorm, canonical)
}

func TestAliasDictionary_TieBreaksByDeclarationOrder(t *testing.T) {
	dict, err := NewAliasDictionary([]AliasPair{
		{"gales", TypeStorm},
		{"GALES", TypeFlood},
	})
	require.NoError(t, err)

	canonical, ok := dict.Resolve("gales")
	assert.True(t, ok)
	assert.Equal(t, TypeStorm, canonical)
}

func TestAliasDictionary_Deterministic(t *testing.T) {
	dict := DefaultAliasDictionary()

	first, ok1 := dict.Resolve("forest FIRE")
	second, ok2 := dict.Resolve("forest FIRE")

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, first, second)
	assert.Equal(t, TypeWildfire, first)
}

func TestAliasDictionary_RejectsUnknownCanonical(t *testing.T) {
	_, err := NewAliasDictionary([]AliasPair{{"quake", DisasterType("Tremor")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the taxonomy")
}

func curated(t *testing.T, records []RawDisasterRecord) Table {
	t.Helper()
	tbl, _, err := CurateTypes(reconstructed(t, records), DefaultAliasDictionary())
	require.NoError(t, err)
	return tbl
}

func TestCurateGeo_HistoricalRenames(t *testing.T) {
	lookup, err := NewGeoLookup("2021")
	require.NoError(t, err)

	tests := []struct {
		name    string
		country string
		want    string
	}{
		{"soviet union", "Soviet Union", "Russian Federation"},
		{"zaire", "Zaire", "Democratic Republic of the Congo"},
		{"czechoslovakia", "CZECHOSLOVAKIA", "Czechia"},
		{"modern name passes through", "Japan", "Japan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := curated(t, []RawDisasterRecord{{
				Year: "1985", DisasterType: "Flood", Country: tt.country, Region: "Eastern Europe",
			}})

			out, _, err := CurateGeo(tbl, lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Events[0].CountryCanonical)
		})
	}
}

func TestCurateGeo_UnmappedRegionFlagged(t *testing.T) {
	lookup, err := NewGeoLookup("2021")
	require.NoError(t, err)

	tbl := curated(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "Peru", Region: "South America"},
		{Year: "2002", DisasterType: "Flood", Country: "Peru", Region: "Andean  Zone"},
	})

	out, stats, err := CurateGeo(tbl, lookup)
	require.NoError(t, err)

	assert.Equal(t, "South America", out.Events[0].RegionCanonical)
	assert.False(t, out.Events[0].GeoFlagged)

	// Normalized but uncanonicalized, flagged for review.
	assert.Equal(t, "Andean Zone", out.Events[1].RegionCanonical)
	assert.True(t, out.Events[1].GeoFlagged)
	assert.Equal(t, []string{"Andean Zone"}, stats.UnmappedNames)
}

func TestCurateGeo_RequiresTypeCuration(t *testing.T) {
	lookup, err := NewGeoLookup("2021")
	require.NoError(t, err)

	tbl := reconstructed(t, []RawDisasterRecord{{Year: "2005", DisasterType: "Flood", Country: "USA"}})

	_, _, err = CurateGeo(tbl, lookup)

	var precursor *PrecursorNotRunError
	require.ErrorAs(t, err, &precursor)
	assert.Equal(t, "curate_geo", precursor.Stage)
}

func TestNewGeoLookup_UnknownVersion(t *testing.T) {
	_, err := NewGeoLookup("1999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown geo lookup version")
}
