// Package emdat reads raw disaster dataset snapshots from EM-DAT exports,
// either CSV or XLSX. The reader only maps columns to records; all value
// parsing belongs to the curation stages.
package emdat

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
)

// Column headers as EM-DAT exports name them.
const (
	colYear       = "Year"
	colStartMonth = "Start Month"
	colStartDay   = "Start Day"
	colType       = "Disaster Type"
	colCountry    = "Country"
	colRegion     = "Region"
	colDeaths     = "Total Deaths"
	colAffected   = "Total Affected"
	colDamage     = "Total Damages ('000 US$)"
)

var requiredColumns = []string{colYear, colType, colCountry}

// Reader extracts the full dataset snapshot from a file on disk.
// It implements pipeline.SnapshotExtractor.
type Reader struct {
	path   string
	logger *slog.Logger
}

// NewReader creates a Reader for the given dataset path. The file format is
// chosen by extension: .xlsx reads as a spreadsheet, anything else as CSV.
func NewReader(path string, logger *slog.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// ExtractSnapshot reads every data row of the dataset file.
func (r *Reader) ExtractSnapshot(ctx context.Context) ([]domain.RawDisasterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows [][]string
	var err error
	if strings.EqualFold(filepath.Ext(r.path), ".xlsx") {
		rows, err = readXLSX(r.path)
	} else {
		rows, err = readCSV(r.path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s: no header row", r.path)
	}

	index, err := columnIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", r.path, err)
	}

	records := make([]domain.RawDisasterRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, domain.RawDisasterRecord{
			Year:          cell(row, index[colYear]),
			StartMonth:    cell(row, index[colStartMonth]),
			StartDay:      cell(row, index[colStartDay]),
			DisasterType:  cell(row, index[colType]),
			Country:       cell(row, index[colCountry]),
			Region:        cell(row, index[colRegion]),
			TotalDeaths:   cell(row, index[colDeaths]),
			TotalAffected: cell(row, index[colAffected]),
			TotalDamage:   cell(row, index[colDamage]),
		})
	}

	r.logger.Info("dataset snapshot read", "path", r.path, "rows", len(records))
	return records, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("dataset %s: no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return rows, nil
}

// columnIndex maps known headers to their positions. Unknown columns are
// ignored; missing required columns are an error. Optional columns missing
// from the export map to -1, which cell treats as empty.
func columnIndex(header []string) (map[string]int, error) {
	index := map[string]int{
		colYear: -1, colStartMonth: -1, colStartDay: -1,
		colType: -1, colCountry: -1, colRegion: -1,
		colDeaths: -1, colAffected: -1, colDamage: -1,
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, known := index[name]; known {
			index[name] = i
		}
	}
	for _, name := range requiredColumns {
		if index[name] < 0 {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return index, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
