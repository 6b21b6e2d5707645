package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geoCurated runs a table through every stage preceding imputation.
func geoCurated(t *testing.T, records []RawDisasterRecord) Table {
	t.Helper()
	lookup, err := NewGeoLookup("2021")
	require.NoError(t, err)
	tbl, _, err := CurateGeo(curated(t, records), lookup)
	require.NoError(t, err)
	return tbl
}

func TestImpute_GroupMedianFillsFromGroup(t *testing.T) {
	// Two Drought rows in the 2000s decade, one missing deaths: the group
	// median of the single observation fills the gap.
	tbl := geoCurated(t, []RawDisasterRecord{
		{Year: "2003", DisasterType: "Drought", Country: "Kenya", Region: "Eastern Africa", TotalDeaths: "100"},
		{Year: "2007", DisasterType: "Drought", Country: "Kenya", Region: "Eastern Africa"},
		{Year: "2005", DisasterType: "Flood", Country: "India", Region: "Southern Asia", TotalDeaths: "9000"},
	})

	out, stats, err := Impute(tbl, DefaultStrategyMap())
	require.NoError(t, err)

	require.NotNil(t, out.Events[1].Deaths)
	assert.Equal(t, 100.0, *out.Events[1].Deaths)
	assert.Equal(t, 1, stats.Imputed["deaths"])
	assert.Equal(t, 3, stats.Imputed["affected"], "column empty everywhere, all rows filled")
}

func TestImpute_GroupWithoutObservationsFallsBackToGlobalMedian(t *testing.T) {
	tbl := geoCurated(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India", TotalDeaths: "10"},
		{Year: "2002", DisasterType: "Flood", Country: "India", TotalDeaths: "30"},
		{Year: "2003", DisasterType: "Earthquake", Country: "Chile"},
	})

	out, _, err := Impute(tbl, DefaultStrategyMap())
	require.NoError(t, err)

	// No earthquake observation in any decade: the sorted global median of
	// {10, 30} applies.
	require.NotNil(t, out.Events[2].Deaths)
	assert.Equal(t, 20.0, *out.Events[2].Deaths)
}

func TestImpute_EmptyColumnFallsBackToZero(t *testing.T) {
	tbl := geoCurated(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India"},
		{Year: "2002", DisasterType: "Flood", Country: "India"},
	})

	out, _, err := Impute(tbl, DefaultStrategyMap())
	require.NoError(t, err)

	for _, ev := range out.Events {
		require.NotNil(t, ev.Damage)
		assert.Zero(t, *ev.Damage)
	}
}

func TestImpute_NoMissingValuesRemain(t *testing.T) {
	tbl := geoCurated(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India", TotalDeaths: "5"},
		{Year: "2002", DisasterType: "Storm", Country: "", Region: "", TotalAffected: "1200"},
		{Year: "2003", DisasterType: "Drought", Country: "Chad", TotalDamage: "800"},
	})

	out, _, err := Impute(tbl, DefaultStrategyMap())
	require.NoError(t, err)

	for i, ev := range out.Events {
		assert.NotNil(t, ev.Deaths, "row %d deaths", i)
		assert.NotNil(t, ev.Affected, "row %d affected", i)
		assert.NotNil(t, ev.Damage, "row %d damage", i)
		assert.NotEmpty(t, ev.CountryCanonical, "row %d country", i)
		assert.NotEmpty(t, ev.RegionCanonical, "row %d region", i)
	}
	assert.Equal(t, "Unknown", out.Events[1].CountryCanonical)
	assert.True(t, out.Stages.Imputed)
}

func TestImpute_DropRowRemovesAndReports(t *testing.T) {
	tbl := geoCurated(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India", TotalDeaths: "5"},
		{Year: "2002", DisasterType: "Flood", Country: "India"},
		{Year: "2003", DisasterType: "Flood", Country: "India"},
	})

	strategies := DefaultStrategyMap()
	strategies.Numeric[ColDeaths] = NumericStrategy{Kind: NumericDropRow}

	out, stats, err := Impute(tbl, strategies)
	require.NoError(t, err)

	assert.Len(t, out.Events, 1)
	assert.Equal(t, 2, stats.Dropped["deaths"])
}

func TestImpute_CategoricalMode(t *testing.T) {
	tbl := geoCurated(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India", Region: "Southern Asia"},
		{Year: "2002", DisasterType: "Flood", Country: "India", Region: "Southern Asia"},
		{Year: "2003", DisasterType: "Flood", Country: "Nepal", Region: ""},
	})

	strategies := DefaultStrategyMap()
	strategies.Categorical[ColRegion] = CategoricalStrategy{Kind: CategoricalMode}

	out, _, err := Impute(tbl, strategies)
	require.NoError(t, err)
	assert.Equal(t, "Southern Asia", out.Events[2].RegionCanonical)
}

func TestImpute_Deterministic(t *testing.T) {
	records := []RawDisasterRecord{
		{Year: "2001", DisasterType: "Storm", Country: "Fiji", TotalDeaths: "4"},
		{Year: "2002", DisasterType: "Storm", Country: "Fiji", TotalDeaths: "8"},
		{Year: "2003", DisasterType: "Storm", Country: "Fiji", TotalDeaths: "2"},
		{Year: "2004", DisasterType: "Storm", Country: "Fiji"},
	}

	first, _, err := Impute(geoCurated(t, records), DefaultStrategyMap())
	require.NoError(t, err)
	second, _, err := Impute(geoCurated(t, records), DefaultStrategyMap())
	require.NoError(t, err)

	require.NotNil(t, first.Events[3].Deaths)
	assert.Equal(t, 4.0, *first.Events[3].Deaths, "sorted median of {2, 4, 8}")
	assert.Equal(t, *first.Events[3].Deaths, *second.Events[3].Deaths)
}

func TestImpute_RequiresGeoCuration(t *testing.T) {
	tbl := curated(t, []RawDisasterRecord{{Year: "2005", DisasterType: "Flood", Country: "USA"}})

	_, _, err := Impute(tbl, DefaultStrategyMap())

	var precursor *PrecursorNotRunError
	require.ErrorAs(t, err, &precursor)
	assert.Equal(t, "impute", precursor.Stage)
}

func TestStrategyMap_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StrategyMap)
		wantErr string
	}{
		{
			"unknown numeric strategy",
			func(m *StrategyMap) {
				m.Numeric[ColDeaths] = NumericStrategy{Kind: "mean"}
			},
			"unknown numeric strategy",
		},
		{
			"grouped strategy without groups",
			func(m *StrategyMap) {
				m.Numeric[ColDamage] = NumericStrategy{Kind: NumericMedianByGroup}
			},
			"requires group_by",
		},
		{
			"unknown group column",
			func(m *StrategyMap) {
				m.Numeric[ColDamage] = NumericStrategy{Kind: NumericMedianByGroup, GroupBy: []GroupColumn{"continent"}}
			},
			"unknown group column",
		},
		{
			"constant without value",
			func(m *StrategyMap) {
				m.Categorical[ColRegion] = CategoricalStrategy{Kind: CategoricalConstant}
			},
			"requires a value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultStrategyMap()
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
