package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ErrObjectIDColumn is returned when an information sheet does not start
// with the OBJECTID column the feature service needs to match rows.
var ErrObjectIDColumn = errors.New("first column must be OBJECTID")

// Feature is one entry of an applyEdits "updates" array.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
}

// FeatureService pushes attribute updates to a geospatial feature layer.
type FeatureService struct {
	Client *http.Client
}

// ApplyEdits posts the updates to <layerURL>/applyEdits?f=json as the form
// field "updates".  Any status other than 200 is an error carrying the
// response body.
func (fs *FeatureService) ApplyEdits(ctx context.Context, layerURL string, updates []Feature) error {
	payload, err := json.Marshal(updates)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(layerURL, "/") + "/applyEdits?f=json"
	form := url.Values{"updates": {string(payload)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := fs.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("applyEdits: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ImportInformation reads an attribute sheet and pushes every row as an
// update to the feature layer at layerURL.
func (im *Importer) ImportInformation(ctx context.Context, fs *FeatureService, path, layerURL string) (Report, error) {
	rep := Report{Kind: KindInformation}
	if strings.TrimSpace(layerURL) == "" {
		return rep, errors.New("missing feature layer url")
	}
	s, err := ReadSheet(path)
	if err != nil {
		return rep, err
	}
	updates, err := Features(s)
	if err != nil {
		return rep, err
	}
	if err := fs.ApplyEdits(ctx, layerURL, updates); err != nil {
		im.logger().Warn(ctx, "import aborted", "kind", KindInformation, "rows", len(updates), "err", err)
		return rep, err
	}
	rep.Rows, rep.Records = len(updates), len(updates)
	im.logger().Info(ctx, "import finished", "kind", KindInformation, "rows", rep.Rows)
	return rep, nil
}

// Features converts each data row into a header-keyed attribute map.
func Features(s *Sheet) ([]Feature, error) {
	if !strings.EqualFold(s.Header[0], "objectid") {
		return nil, fmt.Errorf("%w, got %q", ErrObjectIDColumn, s.Header[0])
	}
	out := make([]Feature, 0, len(s.Rows))
	for _, row := range s.Rows {
		attrs := make(map[string]any, len(s.Header))
		for i, h := range s.Header {
			if h == "" {
				continue
			}
			attrs[h] = attributeValue(cell(row, i))
		}
		out = append(out, Feature{Attributes: attrs})
	}
	return out, nil
}

// attributeValue keeps numbers numeric so the feature service accepts them
// for numeric fields; integral values are sent without a fraction.
func attributeValue(v string) any {
	if v == "" {
		return nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	}
	return v
}
