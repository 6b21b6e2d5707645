package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDerivePolicy() DerivePolicy {
	return DerivePolicy{
		Weights:      DefaultSeverityWeights(),
		RecentWindow: RecentWindow(2021, 20),
	}
}

// imputed runs a table through every stage preceding derivation.
func imputed(t *testing.T, records []RawDisasterRecord) Table {
	t.Helper()
	tbl, _, err := Impute(geoCurated(t, records), DefaultStrategyMap())
	require.NoError(t, err)
	return tbl
}

func TestDerive_SeverityIndexBounds(t *testing.T) {
	tbl := imputed(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India", TotalDeaths: "0", TotalAffected: "100", TotalDamage: "50"},
		{Year: "2005", DisasterType: "Earthquake", Country: "Chile", TotalDeaths: "500", TotalAffected: "90000", TotalDamage: "12000"},
		{Year: "2010", DisasterType: "Storm", Country: "Fiji", TotalDeaths: "20", TotalAffected: "3000", TotalDamage: "700"},
	})

	out, err := Derive(tbl, testDerivePolicy())
	require.NoError(t, err)

	for i, ev := range out.Events {
		require.NotNil(t, ev.SeverityIndex, "row %d", i)
		assert.GreaterOrEqual(t, *ev.SeverityIndex, 0.0)
		assert.LessOrEqual(t, *ev.SeverityIndex, 1.0)
	}

	// The row with every column at its maximum normalizes to exactly 1.
	assert.Equal(t, 1.0, *out.Events[1].SeverityIndex)
	assert.True(t, out.Stages.Derived)
}

func TestDerive_DegenerateColumnNormalizesToZero(t *testing.T) {
	tbl := imputed(t, []RawDisasterRecord{
		{Year: "2001", DisasterType: "Flood", Country: "India", TotalDeaths: "7", TotalAffected: "7", TotalDamage: "7"},
		{Year: "2002", DisasterType: "Flood", Country: "India", TotalDeaths: "7", TotalAffected: "7", TotalDamage: "7"},
	})

	out, err := Derive(tbl, testDerivePolicy())
	require.NoError(t, err)

	for _, ev := range out.Events {
		assert.Zero(t, *ev.SeverityIndex)
	}
}

func TestDerive_RequiresImputation(t *testing.T) {
	tbl := geoCurated(t, []RawDisasterRecord{{Year: "2005", DisasterType: "Flood", Country: "USA"}})

	_, err := Derive(tbl, testDerivePolicy())

	var precursor *PrecursorNotRunError
	require.ErrorAs(t, err, &precursor)
	assert.Equal(t, "derive", precursor.Stage)
	assert.Equal(t, "impute", precursor.Missing)
}

func TestDerive_DecadeBuckets(t *testing.T) {
	tbl := imputed(t, []RawDisasterRecord{
		{Year: "1979", DisasterType: "Drought", Country: "Chad"},
		{Year: "1980", DisasterType: "Drought", Country: "Chad"},
		{Year: "2021", DisasterType: "Flood", Country: "Belgium"},
	})

	out, err := Derive(tbl, testDerivePolicy())
	require.NoError(t, err)

	assert.Equal(t, 1970, out.Events[0].Decade)
	assert.Equal(t, 1980, out.Events[1].Decade)
	assert.Equal(t, 2020, out.Events[2].Decade)
}

func TestDerive_RecencyWindowBoundaries(t *testing.T) {
	// n=20 under a 2021 bound: [2002, 2021] inclusive on both ends.
	tests := []struct {
		year string
		want bool
	}{
		{"2001", false},
		{"2002", true},
		{"2021", true},
	}

	for _, tt := range tests {
		t.Run(tt.year, func(t *testing.T) {
			tbl := imputed(t, []RawDisasterRecord{{Year: tt.year, DisasterType: "Flood", Country: "India"}})

			out, err := Derive(tbl, testDerivePolicy())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Events[0].RecentEvent)
		})
	}
}

func TestDerive_SeasonAndQuarter(t *testing.T) {
	tbl := imputed(t, []RawDisasterRecord{
		{Year: "2005", StartMonth: "1", StartDay: "15", DisasterType: "Storm", Country: "USA"},
		{Year: "2005", StartMonth: "7", DisasterType: "Storm", Country: "USA"},
		{Year: "2005", DisasterType: "Storm", Country: "USA"},
	})

	out, err := Derive(tbl, testDerivePolicy())
	require.NoError(t, err)

	require.NotNil(t, out.Events[0].Season)
	assert.Equal(t, SeasonWinter, *out.Events[0].Season)
	assert.Equal(t, 1, *out.Events[0].Quarter)

	require.NotNil(t, out.Events[1].Season)
	assert.Equal(t, SeasonSummer, *out.Events[1].Season)
	assert.Equal(t, 3, *out.Events[1].Quarter)

	// year_only records carry explicit nulls, not a sentinel season.
	assert.Nil(t, out.Events[2].Season)
	assert.Nil(t, out.Events[2].Quarter)
}

func TestDerive_SouthernHemisphereOverride(t *testing.T) {
	records := []RawDisasterRecord{
		{Year: "2005", StartMonth: "1", DisasterType: "Storm", Country: "Australia"},
		{Year: "2005", StartMonth: "1", DisasterType: "Storm", Country: "Canada"},
	}

	policy := testDerivePolicy()
	policy.SouthernHemisphere = true

	out, err := Derive(imputed(t, records), policy)
	require.NoError(t, err)

	// January is summer in Australia, winter in Canada; the override only
	// shifts countries the static lookup resolves south.
	assert.Equal(t, SeasonSummer, *out.Events[0].Season)
	assert.Equal(t, SeasonWinter, *out.Events[1].Season)

	// With the override disabled the fixed northern table applies everywhere.
	out, err = Derive(imputed(t, records), testDerivePolicy())
	require.NoError(t, err)
	assert.Equal(t, SeasonWinter, *out.Events[0].Season)
}

func TestDerive_CuratedAtUsesClock(t *testing.T) {
	frozen := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	tbl := imputed(t, []RawDisasterRecord{{Year: "2005", DisasterType: "Flood", Country: "USA"}})

	out, err := Derive(tbl, testDerivePolicy())
	require.NoError(t, err)
	assert.Equal(t, frozen, out.Events[0].CuratedAt)
}

func TestSeverityWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights SeverityWeights
		wantErr bool
	}{
		{"defaults", DefaultSeverityWeights(), false},
		{"custom summing to one", SeverityWeights{Deaths: 0.6, Affected: 0.2, Damage: 0.2}, false},
		{"sum below one", SeverityWeights{Deaths: 0.5, Affected: 0.2, Damage: 0.2}, true},
		{"negative weight", SeverityWeights{Deaths: 1.2, Affected: -0.1, Damage: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecentWindow(t *testing.T) {
	win := RecentWindow(2021, 20)
	assert.Equal(t, YearWindow{From: 2002, To: 2021}, win)
	assert.False(t, win.Contains(2001))
	assert.True(t, win.Contains(2002))
	assert.True(t, win.Contains(2021))
	assert.False(t, win.Contains(2022))
}
