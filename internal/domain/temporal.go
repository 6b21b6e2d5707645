package domain

import (
	"strconv"
	"strings"
	"time"
)

// TemporalPolicy bounds the dataset years. Rows outside [YearMin, YearMax]
// fail the hard validity rule and are dropped (counted, never silent).
type TemporalPolicy struct {
	YearMin int
	YearMax int
}

// TemporalStats reports the recoverable outcomes of date reconstruction.
type TemporalStats struct {
	ClampedDays           int
	DroppedYearOutOfRange int
}

// ReconstructDates augments every record with an event date and a granularity
// flag reconstructed from the raw year/month/day cells.
//
// Policy: month absent means January 1 with granularity year_only; day absent
// means the 1st of the month with granularity year_month; both present means
// the exact date with granularity full_date. A day that does not exist in its
// month (e.g. February 30) is clamped to the last valid day of that month and
// counted, not rejected. Out-of-range months and days are treated as absent.
//
// The only fatal condition is a missing or non-numeric year, which returns a
// *MalformedDateError and aborts the run.
func ReconstructDates(tbl Table, policy TemporalPolicy) (Table, TemporalStats, error) {
	out := tbl.clone()
	var stats TemporalStats

	kept := out.Events[:0]
	for i := range out.Events {
		ev := out.Events[i]

		year, err := strconv.Atoi(strings.TrimSpace(ev.Source.Year))
		if err != nil {
			return Table{}, TemporalStats{}, &MalformedDateError{
				Row:    i,
				ID:     ev.ID,
				Reason: "year is missing or non-numeric",
			}
		}
		if year < policy.YearMin || year > policy.YearMax {
			stats.DroppedYearOutOfRange++
			continue
		}

		month, monthOK := parseDatePart(ev.Source.StartMonth, 1, 12)
		day, dayOK := parseDatePart(ev.Source.StartDay, 1, 31)

		ev.Year = year
		switch {
		case !monthOK:
			ev.EventDate = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			ev.Granularity = GranularityYearOnly
		case !dayOK:
			ev.EventDate = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			ev.Granularity = GranularityYearMonth
		default:
			if last := lastDayOfMonth(year, time.Month(month)); day > last {
				day = last
				stats.ClampedDays++
			}
			ev.EventDate = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			ev.Granularity = GranularityFullDate
		}

		kept = append(kept, ev)
	}

	out.Events = kept
	out.Stages.Reconstructed = true
	return out, stats, nil
}

// parseDatePart parses an optional date component, reporting false for empty,
// non-numeric, or out-of-range values.
func parseDatePart(s string, min, max int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// EM-DAT exports sometimes carry month/day as floats ("7.0").
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	v := int(f)
	if float64(v) != f || v < min || v > max {
		return 0, false
	}
	return v, true
}

// lastDayOfMonth returns the number of days in the given month, leap-aware.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
