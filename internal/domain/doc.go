// Package domain curates EM-DAT historical natural-disaster records
// (1970-2021).
//
// # Data Source
//
// Rows originate from EM-DAT, the international disaster database maintained
// by CRED (https://www.emdat.be/), exported as CSV or XLSX. The extract
// adapter verifies the required columns and hands each row over as flat
// strings; every interpretation of a cell happens inside this package so that
// bad values can be counted, clamped, or imputed instead of lost at ingest.
//
// # Date Reconstruction
//
// EM-DAT start dates are split across Year / Start Month / Start Day columns,
// and many historical rows carry only a year, or a year and month. The
// reconstruction policy is fixed, not inferred from other rows:
//
//	month absent             -> January 1, granularity year_only
//	day absent               -> 1st of the month, granularity year_month
//	both present             -> exact date, granularity full_date
//	day invalid for month    -> clamped to the month's last day (counted)
//	year missing/non-numeric -> MalformedDateError, run aborts
//
// The granularity flag travels with the date so aggregations can exclude
// records reconstructed from sentinels: a year_only row never contributes to
// monthly, quarterly, or seasonal buckets.
//
// # Taxonomy
//
// Disaster types, countries, and regions arrive as free text. Types resolve
// through an ordered alias dictionary into a closed canonical set with an
// Other/Unclassified fallback; when one raw value matches several aliases the
// longest alias wins and ties go to the first-declared pair. Country names
// additionally pass through a versioned historical-rename lookup (Soviet
// Union, Zaire, Czechoslovakia and similar successions). Unresolvable values
// are a data-quality signal in the run report, never an error.
//
// # Imputation and Derivation
//
// Missing impact values are filled per a closed strategy map (zero, median,
// grouped median, drop_row for numerics; mode, grouped mode, constant for
// categoricals). All reductions are order-independent: medians sort their
// inputs, mode ties break lexicographically. The severity index is the
// weighted sum of min-max-normalized deaths, affected, and damage over the
// whole table, so it is always in [0,1] and never nil once derivation ran.
//
// # Stage Ordering
//
// Each stage consumes one Table snapshot and produces a new one, recording
// itself in the table's StageSet. Running a stage before its precursor
// returns a PrecursorNotRunError: curation must precede imputation (grouped
// strategies key on canonical categories), imputation must precede
// derivation (severity needs complete impact columns), and aggregation reads
// only finalized tables.
package domain
