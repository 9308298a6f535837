package ingest

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/iliyamo/farm-monitor/internal/model"
)

// ColumnTime is the acquisition timestamp shared by weather and soil sheets.
const ColumnTime = "采集时间"

// SoilProbes is the number of probes recorded per soil row.  Probe N is
// stored as device N.
const SoilProbes = 4

type weatherColumn struct {
	header string
	set    func(*model.Weather, float64)
}

var weatherColumns = []weatherColumn{
	{"空气温度", func(w *model.Weather, v float64) { w.Temperature = v }},
	{"空气湿度", func(w *model.Weather, v float64) { w.Humidity = v }},
	{"光照", func(w *model.Weather, v float64) { w.Illumination = v }},
	{"风速", func(w *model.Weather, v float64) { w.WindSpeed = v }},
	{"风向", func(w *model.Weather, v float64) { w.WindDirection = v }},
	{"气压", func(w *model.Weather, v float64) { w.AtmosphericPressure = v }},
	{"降雨量", func(w *model.Weather, v float64) { w.Precipitation = v }},
	{"二氧化碳", func(w *model.Weather, v float64) { w.CO2 = v }},
	{"氮", func(w *model.Weather, v float64) { w.N = v }},
	{"磷", func(w *model.Weather, v float64) { w.P = v }},
	{"钾", func(w *model.Weather, v float64) { w.K = v }},
}

type soilColumn struct {
	prefix string
	set    func(*model.Soil, float64)
}

var soilColumns = []soilColumn{
	{"土壤温度", func(s *model.Soil, v float64) { s.Temperature = v }},
	{"土壤含水量", func(s *model.Soil, v float64) { s.Water = v }},
	{"电导率", func(s *model.Soil, v float64) { s.Conductivity = v }},
	{"土壤PH", func(s *model.Soil, v float64) { s.PH = v }},
	{"土壤盐分", func(s *model.Soil, v float64) { s.Salt = v }},
}

// WeatherHeaders lists every header a weather sheet must carry.
func WeatherHeaders() []string {
	out := []string{ColumnTime}
	for _, c := range weatherColumns {
		out = append(out, c.header)
	}
	return out
}

// SoilHeaders lists every header a soil sheet must carry.
func SoilHeaders() []string {
	out := []string{ColumnTime}
	for probe := 1; probe <= SoilProbes; probe++ {
		for _, c := range soilColumns {
			out = append(out, soilHeader(c.prefix, probe))
		}
	}
	return out
}

func soilHeader(prefix string, probe int) string { return fmt.Sprintf("%s%d", prefix, probe) }

// RowError locates a failed row.  Row is the 1-based spreadsheet line, the
// header being line 1.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Err    error  `json:"-"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

func (e RowError) MarshalJSON() ([]byte, error) {
	type rowError struct {
		Row    int    `json:"row"`
		Column string `json:"column,omitempty"`
		Reason string `json:"reason"`
	}
	reason := ""
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return json.Marshal(rowError{Row: e.Row, Column: e.Column, Reason: reason})
}

// weatherMapper binds a sheet's header positions and returns a function
// mapping one data row to its single record.
func weatherMapper(s *Sheet, regionID uint64) (func(row []string, line int) ([]model.Weather, error), error) {
	cols, err := s.Columns(WeatherHeaders()...)
	if err != nil {
		return nil, err
	}
	return func(row []string, line int) ([]model.Weather, error) {
		ts, err := parseTimestamp(cell(row, cols[ColumnTime]))
		if err != nil {
			return nil, RowError{Row: line, Column: ColumnTime, Err: err}
		}
		w := model.Weather{RegionID: regionID, Date: ts}
		for _, c := range weatherColumns {
			v, err := parseFloat(cell(row, cols[c.header]))
			if err != nil {
				return nil, RowError{Row: line, Column: c.header, Err: err}
			}
			c.set(&w, v)
		}
		return []model.Weather{w}, nil
	}, nil
}

// soilMapper returns a function mapping one data row to SoilProbes records
// that share the row's timestamp.
func soilMapper(s *Sheet) (func(row []string, line int) ([]model.Soil, error), error) {
	cols, err := s.Columns(SoilHeaders()...)
	if err != nil {
		return nil, err
	}
	return func(row []string, line int) ([]model.Soil, error) {
		ts, err := parseTimestamp(cell(row, cols[ColumnTime]))
		if err != nil {
			return nil, RowError{Row: line, Column: ColumnTime, Err: err}
		}
		out := make([]model.Soil, 0, SoilProbes)
		for probe := 1; probe <= SoilProbes; probe++ {
			rec := model.Soil{DeviceID: uint64(probe), Date: ts}
			for _, c := range soilColumns {
				h := soilHeader(c.prefix, probe)
				v, err := parseFloat(cell(row, cols[h]))
				if err != nil {
					return nil, RowError{Row: line, Column: h, Err: err}
				}
				c.set(&rec, v)
			}
			out = append(out, rec)
		}
		return out, nil
	}, nil
}
