package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawDisasterRecord represents one row of an EM-DAT dataset export as flat
// strings, keyed the way the source spreadsheet names its columns. All parsing
// happens in the curation stages so that malformed values can be counted or
// clamped instead of lost at ingest.
type RawDisasterRecord struct {
	Year          string `json:"Year"`
	StartMonth    string `json:"Start Month"`
	StartDay      string `json:"Start Day"`
	DisasterType  string `json:"Disaster Type"`
	Country       string `json:"Country"`
	Region        string `json:"Region"`
	TotalDeaths   string `json:"Total Deaths"`
	TotalAffected string `json:"Total Affected"`
	TotalDamage   string `json:"Total Damages ('000 US$)"`
}

// Granularity records how much of the event date came from the source row,
// as opposed to the fixed sentinel policy (missing month -> January 1,
// missing day -> the 1st).
type Granularity string

const (
	GranularityYearOnly  Granularity = "year_only"
	GranularityYearMonth Granularity = "year_month"
	GranularityFullDate  Granularity = "full_date"
)

// Season is a meteorological season. The month-to-season table is fixed;
// the southern-hemisphere override shifts it by six months per record.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// DisasterEvent is the curated representation of one event row. Derived
// columns are populated stage by stage; pointer fields stay nil until the
// stage that owns them has run (or, for Season and Quarter, permanently when
// the date granularity is year_only).
type DisasterEvent struct {
	ID string `json:"id"`

	// Temporal reconstruction (stage 1).
	Year        int         `json:"year"`
	EventDate   time.Time   `json:"event_date"`
	Granularity Granularity `json:"granularity"`

	// Category curation (stage 2). The plain fields hold the
	// whitespace-normalized source values; the canonical fields hold
	// closed-taxonomy labels.
	DisasterType          string       `json:"disaster_type"`
	DisasterTypeCanonical DisasterType `json:"disaster_type_canonical,omitempty"`
	Country               string       `json:"country"`
	CountryCanonical      string       `json:"country_canonical,omitempty"`
	Region                string       `json:"region"`
	RegionCanonical       string       `json:"region_canonical,omitempty"`
	GeoFlagged            bool         `json:"geo_flagged,omitempty"`

	// Impact fields, nil when the source cell is empty or unparseable,
	// guaranteed non-nil after imputation (stage 3).
	Deaths   *float64 `json:"deaths,omitempty"`
	Affected *float64 `json:"affected,omitempty"`
	Damage   *float64 `json:"damage,omitempty"`

	// Derived variables (stage 4).
	Decade        int      `json:"decade,omitempty"`
	Season        *Season  `json:"season,omitempty"`
	Quarter       *int     `json:"quarter,omitempty"`
	SeverityIndex *float64 `json:"severity_index,omitempty"`
	RecentEvent   bool     `json:"recent_event"`

	Source    RawDisasterRecord `json:"-"`
	CuratedAt time.Time         `json:"curated_at"`
}

// Table is a snapshot of the working table. Stages consume one Table value
// and produce a new one; the Stages flags record which derived columns are
// present so that out-of-order execution is detectable rather than silent.
type Table struct {
	Events []DisasterEvent
	Stages StageSet
}

// StageSet tracks which pipeline stages have been applied to a Table.
type StageSet struct {
	Reconstructed bool `json:"reconstructed"`
	TypesCurated  bool `json:"types_curated"`
	GeoCurated    bool `json:"geo_curated"`
	Imputed       bool `json:"imputed"`
	Derived       bool `json:"derived"`
}

// NewTable builds the initial working table from validated raw records.
// Impact fields are parsed leniently: empty, non-numeric, and negative cells
// become nil and are left for the imputer. Year stays unparsed until the
// temporal stage, which owns the fatal missing-year condition.
func NewTable(records []RawDisasterRecord) Table {
	events := make([]DisasterEvent, len(records))
	for i, rec := range records {
		events[i] = DisasterEvent{
			ID:           generateID(rec),
			DisasterType: strings.TrimSpace(rec.DisasterType),
			Country:      strings.TrimSpace(rec.Country),
			Region:       strings.TrimSpace(rec.Region),
			Deaths:       parseImpact(rec.TotalDeaths),
			Affected:     parseImpact(rec.TotalAffected),
			Damage:       parseImpact(rec.TotalDamage),
			Source:       rec,
		}
	}
	return Table{Events: events}
}

// clone returns a Table with its own copy of the event slice, so a stage can
// mutate freely without aliasing its input snapshot.
func (t Table) clone() Table {
	events := make([]DisasterEvent, len(t.Events))
	copy(events, t.Events)
	return Table{Events: events, Stages: t.Stages}
}

// parseImpact parses an impact cell as a non-negative float, nil otherwise.
func parseImpact(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// generateID produces a deterministic ID from the row's key fields.
// Curating the same snapshot twice yields the same IDs.
func generateID(rec RawDisasterRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		rec.Year, rec.DisasterType, rec.Country, rec.Region, rec.StartMonth, rec.StartDay)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])

	slug := strings.ToLower(strings.TrimSpace(rec.DisasterType))
	slug = strings.ReplaceAll(slug, " ", "-")
	if slug == "" {
		return short
	}
	return slug + "-" + short
}

// QualityReport accumulates the recoverable data-quality signals of one run.
// Nothing in here is an error: the pipeline continues and the caller decides
// what to surface.
type QualityReport struct {
	RowsIn  int `json:"rows_in"`
	RowsOut int `json:"rows_out"`

	DroppedYearOutOfRange int `json:"dropped_year_out_of_range"`
	ClampedDays           int `json:"clamped_days"`

	UnclassifiedTypes map[string]int `json:"unclassified_types,omitempty"`
	UnmappedGeoNames  []string       `json:"unmapped_geo_names,omitempty"`

	ImputedValues map[string]int `json:"imputed_values,omitempty"`
	DroppedRows   map[string]int `json:"dropped_rows,omitempty"`
}
