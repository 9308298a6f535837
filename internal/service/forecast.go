// Package service holds clients for the outside services the backend
// consults: the public weather forecast API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/iliyamo/farm-monitor/internal/model"
)

// DefaultForecastDays is used when the caller does not ask for a length.
const DefaultForecastDays = 7

// ErrUnknownRegion is returned for regions without a forecast city code.
var ErrUnknownRegion = errors.New("no forecast city code for region")

// Forecast is one predicted day.
type Forecast struct {
	RegionID       uint64  `json:"region_id"`
	RegionName     string  `json:"region_name"`
	Date           string  `json:"date"`
	TemperatureMax float64 `json:"temperature_max"`
	TemperatureMin float64 `json:"temperature_min"`
	Windy          string  `json:"windy"`
	Weather        string  `json:"weather"`
}

type forecastResponse struct {
	Data struct {
		Forecast []struct {
			YMD  string `json:"ymd"`
			High string `json:"high"`
			Low  string `json:"low"`
			FX   string `json:"fx"`
			FL   string `json:"fl"`
			Type string `json:"type"`
		} `json:"forecast"`
	} `json:"data"`
}

// ForecastClient queries <BaseURL><city code>.
type ForecastClient struct {
	BaseURL string
	Codes   map[string]string
	Client  *http.Client
}

func NewForecastClient(baseURL string, codes map[string]string, client *http.Client) *ForecastClient {
	return &ForecastClient{BaseURL: baseURL, Codes: codes, Client: client}
}

// Predict returns up to days forecasts for the region.  days is clamped to
// [1, number of days the API returned].
func (fc *ForecastClient) Predict(ctx context.Context, region model.Region, days int) ([]Forecast, error) {
	code, ok := fc.Codes[region.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, region.Name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fc.BaseURL+code, nil)
	if err != nil {
		return nil, err
	}
	client := fc.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("forecast: decode: %w", err)
	}

	days = clampDays(days, len(fr.Data.Forecast))
	out := make([]Forecast, 0, days)
	for _, d := range fr.Data.Forecast[:days] {
		hi, err := parseTemperature(d.High)
		if err != nil {
			return nil, err
		}
		lo, err := parseTemperature(d.Low)
		if err != nil {
			return nil, err
		}
		out = append(out, Forecast{
			RegionID:       region.ID,
			RegionName:     region.Name,
			Date:           d.YMD,
			TemperatureMax: hi,
			TemperatureMin: lo,
			Windy:          d.FX + " " + d.FL,
			Weather:        d.Type,
		})
	}
	return out, nil
}

func clampDays(days, available int) int {
	if days < 1 {
		days = 1
	}
	if days > available {
		days = available
	}
	return days
}

// parseTemperature extracts the number from labels like "高温 25℃".
func parseTemperature(label string) (float64, error) {
	num := strings.TrimFunc(label, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-' && r != '.'
	})
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("forecast: bad temperature %q", label)
	}
	return v, nil
}
