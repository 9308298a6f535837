package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-monitor/internal/model"
)

func forecastServer(t *testing.T, days int) *httptest.Server {
	t.Helper()
	var items []string
	for i := 0; i < days; i++ {
		items = append(items, fmt.Sprintf(
			`{"ymd":"2023-05-%02d","high":"高温 %d℃","low":"低温 -%d℃","fx":"西南风","fl":"3级","type":"晴"}`,
			i+1, 20+i, i))
	}
	body := `{"data":{"forecast":[` + strings.Join(items, ",") + `]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/city/101050401" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForecastClient_Predict(t *testing.T) {
	srv := forecastServer(t, 15)
	fc := NewForecastClient(srv.URL+"/city/", map[string]string{"YY": "101050401"}, srv.Client())

	out, err := fc.Predict(context.Background(), model.Region{ID: 1, Name: "YY"}, DefaultForecastDays)
	require.NoError(t, err)
	require.Len(t, out, 7)
	assert.Equal(t, "2023-05-01", out[0].Date)
	assert.Equal(t, 20.0, out[0].TemperatureMax)
	assert.Equal(t, -1.0, out[1].TemperatureMin)
	assert.Equal(t, "西南风 3级", out[0].Windy)
	assert.Equal(t, "晴", out[0].Weather)
	assert.Equal(t, uint64(1), out[0].RegionID)
}

func TestForecastClient_ClampsDays(t *testing.T) {
	srv := forecastServer(t, 3)
	fc := NewForecastClient(srv.URL+"/city/", map[string]string{"YY": "101050401"}, srv.Client())

	out, err := fc.Predict(context.Background(), model.Region{ID: 1, Name: "YY"}, 30)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	out, err = fc.Predict(context.Background(), model.Region{ID: 1, Name: "YY"}, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestForecastClient_UnknownRegion(t *testing.T) {
	fc := NewForecastClient("http://unused/", map[string]string{}, nil)
	_, err := fc.Predict(context.Background(), model.Region{Name: "nowhere"}, 7)
	assert.True(t, errors.Is(err, ErrUnknownRegion))
}

func TestParseTemperature(t *testing.T) {
	v, err := parseTemperature("高温 25℃")
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)

	v, err = parseTemperature("低温 -3.5℃")
	require.NoError(t, err)
	assert.Equal(t, -3.5, v)

	_, err = parseTemperature("n/a")
	assert.Error(t, err)
}
