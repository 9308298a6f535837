package ingest

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/farm-monitor/internal/config"
	"github.com/iliyamo/farm-monitor/internal/database"
	"github.com/iliyamo/farm-monitor/internal/model"
)

// recorder collects what the pipeline writes.
type recorder struct {
	mu      sync.Mutex
	weather []model.Weather
	soil    []model.Soil
}

func (r *recorder) insertWeather(_ context.Context, _ database.DBTX, w model.Weather) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weather = append(r.weather, w)
	return nil
}

func (r *recorder) insertSoil(_ context.Context, _ database.DBTX, s model.Soil) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.soil = append(r.soil, s)
	return nil
}

type weatherFunc func(context.Context, database.DBTX, model.Weather) error

func (f weatherFunc) Insert(ctx context.Context, db database.DBTX, w model.Weather) error {
	return f(ctx, db, w)
}

type soilFunc func(context.Context, database.DBTX, model.Soil) error

func (f soilFunc) Insert(ctx context.Context, db database.DBTX, s model.Soil) error {
	return f(ctx, db, s)
}

func newImporter(t *testing.T, policy string) (*Importer, sqlmock.Sqlmock, *recorder) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rec := &recorder{}
	return &Importer{
		DB:      db,
		Weather: weatherFunc(rec.insertWeather),
		Soil:    soilFunc(rec.insertSoil),
		Policy:  policy,
	}, mock, rec
}

func writeXLSX(t *testing.T, name string, header []string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	h := make([]any, len(header))
	for i, v := range header {
		h[i] = v
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &h))
	for i, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func weatherRow(ts string, base float64) []any {
	row := []any{ts}
	for i := range weatherColumns {
		row = append(row, base+float64(i))
	}
	return row
}

func soilRow(ts string, bad string) []any {
	row := []any{ts}
	for probe := 1; probe <= SoilProbes; probe++ {
		for i := range soilColumns {
			if bad != "" && soilHeader(soilColumns[i].prefix, probe) == bad {
				row = append(row, "n/a")
				continue
			}
			row = append(row, float64(probe*10+i))
		}
	}
	return row
}

func expectRowTx(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func TestImportWeather_PerRow(t *testing.T) {
	im, mock, rec := newImporter(t, config.PolicyPerRow)
	path := writeXLSX(t, "w.xlsx", WeatherHeaders(), [][]any{
		weatherRow("05/01/2023 08:00:00", 1),
		weatherRow("05/01/2023 09:00:00", 2),
		weatherRow("05/01/2023 10:00:00", 3),
	})
	expectRowTx(mock, 3)

	rep, err := im.ImportWeather(context.Background(), path, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Rows)
	assert.Equal(t, 3, rep.Records)
	require.Len(t, rec.weather, 3)
	for _, w := range rec.weather {
		assert.Equal(t, uint64(7), w.RegionID)
	}
	assert.Equal(t, "2023-05-01 09:00:00", rec.weather[1].Date.Format(model.DateTimeLayout))
	assert.Equal(t, 2.0, rec.weather[1].Temperature)
	assert.Equal(t, 12.0, rec.weather[1].K)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportWeather_ColumnsResolvedByName(t *testing.T) {
	im, mock, rec := newImporter(t, config.PolicyPerRow)
	header := WeatherHeaders()
	// Reverse the column order; values follow their headers.
	rev := make([]string, len(header))
	row := weatherRow("12/31/2023 23:59:59", 100)
	revRow := make([]any, len(row))
	for i := range header {
		rev[len(header)-1-i] = header[i]
		revRow[len(row)-1-i] = row[i]
	}
	path := writeXLSX(t, "rev.xlsx", rev, [][]any{revRow})
	expectRowTx(mock, 1)

	_, err := im.ImportWeather(context.Background(), path, 1)
	require.NoError(t, err)
	require.Len(t, rec.weather, 1)
	assert.Equal(t, 100.0, rec.weather[0].Temperature)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), rec.weather[0].Date)
}

func TestImportSoil_FourRecordsPerRow(t *testing.T) {
	im, mock, rec := newImporter(t, config.PolicyPerRow)
	path := writeXLSX(t, "s.xlsx", SoilHeaders(), [][]any{
		soilRow("06/01/2023 00:00:00", ""),
		soilRow("06/01/2023 01:00:00", ""),
	})
	expectRowTx(mock, 2)

	rep, err := im.ImportSoil(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, 8, rep.Records)
	require.Len(t, rec.soil, 8)

	for row := 0; row < 2; row++ {
		group := rec.soil[row*4 : row*4+4]
		ids := map[uint64]bool{}
		for _, s := range group {
			ids[s.DeviceID] = true
			assert.Equal(t, group[0].Date, s.Date)
		}
		assert.Equal(t, map[uint64]bool{1: true, 2: true, 3: true, 4: true}, ids)
	}
	assert.Equal(t, 30.0, rec.soil[2].Temperature)
	assert.Equal(t, 34.0, rec.soil[2].Salt)
}

func TestImport_PerRowAbortKeepsEarlierRows(t *testing.T) {
	im, mock, rec := newImporter(t, config.PolicyPerRow)
	path := writeXLSX(t, "s.xlsx", SoilHeaders(), [][]any{
		soilRow("06/01/2023 00:00:00", ""),
		soilRow("06/01/2023 01:00:00", "电导率3"),
		soilRow("06/01/2023 02:00:00", ""),
	})
	expectRowTx(mock, 1)

	rep, err := im.ImportSoil(context.Background(), path)
	require.Error(t, err)
	var re RowError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Row)
	assert.Equal(t, "电导率3", re.Column)

	assert.Equal(t, 1, rep.Rows)
	assert.Len(t, rec.soil, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_PerRowInsertFailureRollsBackThatRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	calls := 0
	im := &Importer{DB: db, Policy: config.PolicyPerRow, Weather: weatherFunc(func(context.Context, database.DBTX, model.Weather) error {
		calls++
		if calls == 2 {
			return sql.ErrConnDone
		}
		return nil
	})}
	path := writeXLSX(t, "w.xlsx", WeatherHeaders(), [][]any{
		weatherRow("05/01/2023 08:00:00", 1),
		weatherRow("05/01/2023 09:00:00", 2),
	})
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rep, err := im.ImportWeather(context.Background(), path, 1)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, 1, rep.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_AtomicReportsEveryBadRow(t *testing.T) {
	im, mock, rec := newImporter(t, config.PolicyAtomic)
	path := writeXLSX(t, "w.xlsx", WeatherHeaders(), [][]any{
		weatherRow("05/01/2023 08:00:00", 1),
		weatherRow("yesterday", 2),
		weatherRow("05/01/2023 10:00:00", 3),
		append(weatherRow("05/01/2023 11:00:00", 4)[:3], "x", 1, 1, 1, 1, 1, 1, 1, 1, 1),
	})

	rep, err := im.ImportWeather(context.Background(), path, 1)
	assert.True(t, errors.Is(err, ErrInvalidRows))
	require.Len(t, rep.Errors, 2)
	assert.Equal(t, 3, rep.Errors[0].Row)
	assert.Equal(t, ColumnTime, rep.Errors[0].Column)
	assert.Equal(t, 5, rep.Errors[1].Row)
	assert.Equal(t, "光照", rep.Errors[1].Column)
	assert.Empty(t, rec.weather)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_AtomicSingleTransaction(t *testing.T) {
	im, mock, rec := newImporter(t, config.PolicyAtomic)
	path := writeXLSX(t, "s.xlsx", SoilHeaders(), [][]any{
		soilRow("06/01/2023 00:00:00", ""),
		soilRow("06/01/2023 01:00:00", ""),
	})
	mock.ExpectBegin()
	mock.ExpectCommit()

	rep, err := im.ImportSoil(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 8, rep.Records)
	assert.Len(t, rec.soil, 8)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_MissingColumn(t *testing.T) {
	im, _, _ := newImporter(t, config.PolicyPerRow)
	path := writeXLSX(t, "w.xlsx", WeatherHeaders()[:5], [][]any{{"05/01/2023 08:00:00", 1, 2, 3, 4}})

	_, err := im.ImportWeather(context.Background(), path, 1)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestReadSheet_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.csv")
	content := "\ufeff采集时间,空气温度\n05/01/2023 08:00:00,12.5\n,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := ReadSheet(path)
	require.NoError(t, err)
	i, err := s.Column(ColumnTime)
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Len(t, s.Rows, 1, "blank rows are dropped")
}

func TestReadSheet_Unsupported(t *testing.T) {
	_, err := ReadSheet("data.xls")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestParseTimestamp_Serial(t *testing.T) {
	// 45047.5 is 2023-05-01 12:00 in the 1900 date system.
	ts, err := parseTimestamp("45047.5")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC), ts)
}

func TestParseTimestamp_Unpadded(t *testing.T) {
	cases := map[string]time.Time{
		"03/05/2024 08:00:00": time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC),
		"3/5/2024 8:00:00":    time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC),
		"12/1/2024 0:30:00":   time.Date(2024, 12, 1, 0, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		ts, err := parseTimestamp(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, ts, in)
	}

	_, err := parseTimestamp("2024-03-05 08:00")
	assert.Error(t, err)
}

func TestImportInformation_PostsUpdates(t *testing.T) {
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "?" + r.URL.RawQuery
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		_, _ = w.Write([]byte(`{"updateResults":[]}`))
	}))
	defer srv.Close()

	file := writeXLSX(t, "i.xlsx", []string{"OBJECTID", "crop", "area"}, [][]any{
		{1, "水稻", 12.5},
		{2, "大豆", 3},
	})
	im := &Importer{}
	rep, err := im.ImportInformation(context.Background(), &FeatureService{Client: srv.Client()}, file, srv.URL+"/FeatureServer/0")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, "/FeatureServer/0/applyEdits?f=json", path)

	var updates []Feature
	require.NoError(t, json.Unmarshal([]byte(got.Get("updates")), &updates))
	require.Len(t, updates, 2)
	assert.EqualValues(t, 1, updates[0].Attributes["OBJECTID"])
	assert.Equal(t, "大豆", updates[1].Attributes["crop"])
	assert.EqualValues(t, 12.5, updates[0].Attributes["area"])
}

func TestImportInformation_Non200Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token required", http.StatusForbidden)
	}))
	defer srv.Close()

	file := writeXLSX(t, "i.xlsx", []string{"objectid", "x"}, [][]any{{1, 2}})
	_, err := (&Importer{}).ImportInformation(context.Background(), &FeatureService{Client: srv.Client()}, file, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFeatures_RequiresObjectID(t *testing.T) {
	s, err := newSheet([][]string{{"FID", "x"}, {"1", "2"}})
	require.NoError(t, err)
	_, err = Features(s)
	assert.True(t, errors.Is(err, ErrObjectIDColumn))
}

func TestWriteWeather_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows := []model.Weather{{RegionID: 1, RegionName: "YY", Date: time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC), Temperature: -3.5}}

	path, err := WriteWeather(dir, WeatherExportName("YY", 2023), rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_YY_2023_weather_export.xlsx"), path)

	again, err := WriteWeather(dir, WeatherExportName("YY", 2023), rows)
	require.NoError(t, err)
	assert.NotEqual(t, path, again)

	s, err := ReadSheet(path)
	require.NoError(t, err)
	i, err := s.Column("weather_date")
	require.NoError(t, err)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "2023-01-02 03:04:05", s.Rows[0][i])
	j, err := s.Column("weather_temperature")
	require.NoError(t, err)
	assert.Equal(t, "-3.5", s.Rows[0][j])
}

func TestWriteSoil_Header(t *testing.T) {
	path, err := WriteSoil(t.TempDir(), SoilExportName("YY", 2023), nil)
	require.NoError(t, err)
	s, err := ReadSheet(path)
	require.NoError(t, err)
	assert.Equal(t, "soil_PH", s.Header[8])
	assert.Empty(t, s.Rows)
}
