// Package ingest turns uploaded spreadsheets into typed records and writes
// them to the relational store, and renders stored records back into
// workbooks for export.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrMissingColumn     = errors.New("missing column")
	ErrEmptySheet        = errors.New("spreadsheet has no header row")
)

// ImportDateLayout is the timestamp format of the 采集时间 column.
// Hand-edited sheets often drop the zero padding, so looseDateLayout is
// accepted too.
const (
	ImportDateLayout = "01/02/2006 15:04:05"
	looseDateLayout  = "1/2/2006 15:04:05"
)

// Sheet is the first worksheet of an uploaded file: a header row and the
// data rows below it, all as raw cell text.
type Sheet struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

func newSheet(rows [][]string) (*Sheet, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptySheet
	}
	s := &Sheet{Header: make([]string, len(rows[0])), index: map[string]int{}}
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		s.Header[i] = h
		if _, dup := s.index[h]; !dup {
			s.index[h] = i
		}
	}
	for _, r := range rows[1:] {
		if !blank(r) {
			s.Rows = append(s.Rows, r)
		}
	}
	return s, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadSheet loads a .xlsx/.xlsm workbook (first sheet) or a .csv file.
func ReadSheet(path string) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readWorkbook(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	return newSheet(rows)
}

func readCSV(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return newSheet(rows)
}

// Column returns the position of a named header.
func (s *Sheet) Column(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return i, nil
}

// Columns resolves several headers at once.
func (s *Sheet) Columns(names ...string) (map[string]int, error) {
	out := make(map[string]int, len(names))
	for _, n := range names {
		i, err := s.Column(n)
		if err != nil {
			return nil, err
		}
		out[n] = i
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// parseFloat coerces a measurement cell.
func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v)
	}
	return f, nil
}

// parseTimestamp reads the acquisition time.  Text cells use
// ImportDateLayout; workbooks that store real date cells hand back the
// serial number, which is converted as well.
func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{ImportDateLayout, looseDateLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.Round(time.Second).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q, want %s", v, ImportDateLayout)
}
