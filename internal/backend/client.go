// Package backend dispatches analysis requests to the index backend and
// decodes its responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/config"
	"vegwatch-desktop/internal/geo"
)

const (
	// UserAgent sent with every backend request
	UserAgent = "vegwatch-desktop"

	// maxResponseSize caps how much of a response body is read
	maxResponseSize = 32 << 20
)

// Client talks to the analysis backend over HTTP
type Client struct {
	baseURL       string
	httpClient    *http.Client
	dateFormat    string
	dateOverrides map[string]string
	visualization map[string]config.VisParams
}

// NewClient creates a backend client with system proxy support
func NewClient(backend config.BackendSettings, vis map[string]config.VisParams) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	timeout := time.Duration(backend.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(backend.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		dateFormat:    backend.DateFormat,
		dateOverrides: backend.DateFormatOverrides,
		visualization: vis,
	}
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// formatDate renders a date the way the given endpoint family expects
func (c *Client) formatDate(family Family, t time.Time) string {
	format := c.dateFormat
	if override, ok := c.dateOverrides[string(family)]; ok {
		format = override
	}
	return common.FormatBackendDate(t, format)
}

// Tile requests the index visualization tile template for a single date
func (c *Client) Tile(ctx context.Context, kind common.IndexKind, date time.Time) (*TileResult, error) {
	path, err := EndpointPath(FamilyTile, kind)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("date", c.formatDate(FamilyTile, date))
	if vis, ok := c.visualization[string(kind)]; ok {
		if vis.Min != nil {
			q.Set("min", formatFloat(*vis.Min))
		}
		if vis.Max != nil {
			q.Set("max", formatFloat(*vis.Max))
		}
		for _, color := range vis.Palette {
			q.Add("palette", color)
		}
	}

	var result TileResult
	if err := c.getJSON(ctx, path, q, &result); err != nil {
		return nil, err
	}
	if result.TileURL == "" {
		return nil, decodeError(path, errors.New("response has no tileUrl"))
	}
	return &result, nil
}

// ComparePair requests the tiles for both dates concurrently. Either
// failure fails the pair.
func (c *Client) ComparePair(ctx context.Context, kind common.IndexKind, first, second time.Time) ([2]*TileResult, error) {
	var pair [2]*TileResult

	g, gctx := errgroup.WithContext(ctx)
	for i, date := range []time.Time{first, second} {
		i, date := i, date
		g.Go(func() error {
			result, err := c.Tile(gctx, kind, date)
			if err != nil {
				return err
			}
			pair[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [2]*TileResult{}, err
	}
	return pair, nil
}

// Diff requests the index difference between two dates. A nil bound or
// threshold is left to the backend default.
func (c *Client) Diff(ctx context.Context, kind common.IndexKind, first, second time.Time, bound *orb.Bound, threshold *float64) (*DiffResult, error) {
	path, err := EndpointPath(FamilyDiff, kind)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("date1", c.formatDate(FamilyDiff, first))
	q.Set("date2", c.formatDate(FamilyDiff, second))
	if bound != nil {
		setBBox(q, *bound)
	}
	if threshold != nil {
		q.Set("threshold", formatFloat(*threshold))
	}

	var result DiffResult
	if err := c.getJSON(ctx, path, q, &result); err != nil {
		return nil, err
	}
	if result.TileURL == "" {
		return nil, decodeError(path, errors.New("response has no tileUrl"))
	}
	return &result, nil
}

// Zones requests deforested zones inside a bounding box
func (c *Client) Zones(ctx context.Context, kind common.IndexKind, first, second time.Time, threshold float64, bound orb.Bound) (*ZonesResult, error) {
	path, err := EndpointPath(FamilyZones, kind)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("date1", c.formatDate(FamilyZones, first))
	q.Set("date2", c.formatDate(FamilyZones, second))
	q.Set("threshold", formatFloat(threshold))
	setBBox(q, bound)

	body, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return decodeZones(path, body)
}

// ZonesFromGeometry requests deforested zones inside a polygon
func (c *Client) ZonesFromGeometry(ctx context.Context, kind common.IndexKind, first, second time.Time, threshold float64, geometry orb.Geometry) (*ZonesResult, error) {
	path, err := EndpointPath(FamilyZonesGeoJSON, kind)
	if err != nil {
		return nil, err
	}

	geom, err := geo.GeometryJSON(geometry)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"date1":     c.formatDate(FamilyZonesGeoJSON, first),
		"date2":     c.formatDate(FamilyZonesGeoJSON, second),
		"threshold": threshold,
		"geometry":  geom,
	}

	body, err := c.post(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	return decodeZones(path, body)
}

// Stats requests summary statistics of the index inside a bounding box
func (c *Client) Stats(ctx context.Context, kind common.IndexKind, date time.Time, bound orb.Bound) (*Stats, error) {
	path, err := EndpointPath(FamilyStats, kind)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("date", c.formatDate(FamilyStats, date))
	setBBox(q, bound)

	var result Stats
	if err := c.getJSON(ctx, path, q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StatsFromGeometry requests summary statistics of the index inside a polygon
func (c *Client) StatsFromGeometry(ctx context.Context, kind common.IndexKind, date time.Time, geometry orb.Geometry) (*Stats, error) {
	path, err := EndpointPath(FamilyStatsGeoJSON, kind)
	if err != nil {
		return nil, err
	}

	geom, err := geo.GeometryJSON(geometry)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"date":     c.formatDate(FamilyStatsGeoJSON, date),
		"geometry": geom,
	}

	var result Stats
	if err := c.postJSON(ctx, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Histogram requests the distribution of the index difference inside a polygon
func (c *Client) Histogram(ctx context.Context, kind common.IndexKind, first, second time.Time, geometry orb.Geometry) (*Histogram, error) {
	path, err := EndpointPath(FamilyHistogram, kind)
	if err != nil {
		return nil, err
	}

	geom, err := geo.GeometryJSON(geometry)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"date1":    c.formatDate(FamilyHistogram, first),
		"date2":    c.formatDate(FamilyHistogram, second),
		"geometry": geom,
	}

	var result Histogram
	if err := c.postJSON(ctx, path, payload, &result); err != nil {
		return nil, err
	}
	if result.Counts == nil {
		return nil, decodeError(path, errors.New("response has no histogram"))
	}
	return &result, nil
}

// LandsatDates lists acquisition dates for the year of the given date
func (c *Client) LandsatDates(ctx context.Context, date time.Time) (*LandsatDates, error) {
	path, _ := EndpointPath(FamilyLandsatDates, "")

	q := url.Values{}
	q.Set("date", c.formatDate(FamilyLandsatDates, date))

	var result LandsatDates
	if err := c.getJSON(ctx, path, q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BestImageDate asks for the least cloudy acquisition near target. A nil
// geometry searches without a spatial filter.
func (c *Client) BestImageDate(ctx context.Context, target time.Time, geometry orb.Geometry) (*BestDate, error) {
	path, _ := EndpointPath(FamilyBestImageDate, "")

	payload := map[string]interface{}{
		"targetDate": c.formatDate(FamilyBestImageDate, target),
	}
	if geometry != nil {
		geom, err := geo.GeometryJSON(geometry)
		if err != nil {
			return nil, err
		}
		payload["geometry"] = geom
	}

	var result BestDate
	if err := c.postJSON(ctx, path, payload, &result); err != nil {
		return nil, err
	}
	if result.Date() == "" {
		return nil, decodeError(path, errors.New("response has no suggested date"))
	}
	return &result, nil
}

// Cloudiness requests the cloud cover over a bounding box on a date
func (c *Client) Cloudiness(ctx context.Context, date time.Time, bound orb.Bound) (*Cloudiness, error) {
	path, _ := EndpointPath(FamilyCloudiness, "")

	q := url.Values{}
	q.Set("date", c.formatDate(FamilyCloudiness, date))
	setBBox(q, bound)

	var result Cloudiness
	if err := c.getJSON(ctx, path, q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return decodeError(path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return decodeError(path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, path)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

// do executes a request and classifies the outcome. The returned body is
// only non-nil for a 2xx response without an error field.
func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Backend] %s %s failed: %v", req.Method, path, err)
		return nil, transportError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(path, err)
	}
	log.Printf("[Backend] %s %s -> %d (%d bytes, %v)", req.Method, path, resp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))

	message, hasError := errorField(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if !hasError {
			message = fmt.Sprintf("backend returned HTTP %d for %s", resp.StatusCode, path)
		}
		return nil, &Error{
			Kind:       ErrStatus,
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	if hasError {
		return nil, &Error{
			Kind:       ErrDomain,
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	return body, nil
}

// errorField extracts a non-null "error" member from a JSON object body
func errorField(body []byte) (string, bool) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false
	}
	raw := bytes.TrimSpace(envelope.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	return string(raw), true
}

func decodeZones(path string, body []byte) (*ZonesResult, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, decodeError(path, err)
	}

	var extra struct {
		Summary *ZoneSummary `json:"deforestationSummary"`
	}
	if err := json.Unmarshal(body, &extra); err != nil {
		return nil, decodeError(path, err)
	}

	return &ZonesResult{Features: fc, Summary: extra.Summary}, nil
}

func setBBox(q url.Values, b orb.Bound) {
	q.Set("minx", formatFloat(b.Min.Lon()))
	q.Set("miny", formatFloat(b.Min.Lat()))
	q.Set("maxx", formatFloat(b.Max.Lon()))
	q.Set("maxy", formatFloat(b.Max.Lat()))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
