package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/config"
)

var (
	date1 = time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	date2 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	bbox  = orb.Bound{Min: orb.Point{-75.5, -9.5}, Max: orb.Point{-75.0, -9.0}}
)

func square() orb.Polygon {
	return orb.Polygon{{{-75, -9}, {-74.9, -9}, {-74.9, -8.9}, {-75, -8.9}, {-75, -9}}}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	settings := config.DefaultSettings()
	settings.Backend.BaseURL = srv.URL
	return NewClient(settings.Backend, nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestEndpointPath(t *testing.T) {
	tests := []struct {
		family Family
		kind   common.IndexKind
		want   string
	}{
		{FamilyTile, common.IndexNDVI, "/gee-tile-url"},
		{FamilyTile, common.IndexSAVI, "/gee-savi-tile-url"},
		{FamilyDiff, common.IndexNBR, "/gee-nbr-diff"},
		{FamilyZones, common.IndexSAVI, "/gee-deforestation-zones-savi"},
		{FamilyZonesGeoJSON, common.IndexNDVI, "/gee-deforestation-zones-from-geojson"},
		{FamilyStats, common.IndexNBR, "/gee-nbr-stats"},
		{FamilyHistogram, common.IndexSAVI, "/gee-savi-histogram"},
		{FamilyLandsatDates, "", "/gee-landsat-dates"},
		{FamilyBestImageDate, common.IndexNDVI, "/find-best-image-date"},
	}

	for _, tt := range tests {
		t.Run(string(tt.family)+"/"+string(tt.kind), func(t *testing.T) {
			got, err := EndpointPath(tt.family, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := EndpointPath(FamilyTile, "evi")
	assert.Error(t, err)
	_, err = EndpointPath("unknown", common.IndexNDVI)
	assert.Error(t, err)
}

func TestTileUsesConfiguredDateFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gee-savi-tile-url", r.URL.Path)
		assert.Equal(t, "20230115", r.URL.Query().Get("date"))
		assert.Equal(t, []string{"#ff0000", "#00ff00"}, r.URL.Query()["palette"])
		assert.Equal(t, "-1", r.URL.Query().Get("min"))
		writeJSON(w, http.StatusOK, `{"tileUrl":"https://tiles/{z}/{x}/{y}","name":"SAVI 2023","cloudCover":12.5}`)
	})
	lo := -1.0
	client.visualization = map[string]config.VisParams{
		"savi": {Min: &lo, Palette: []string{"#ff0000", "#00ff00"}},
	}

	result, err := client.Tile(context.Background(), common.IndexSAVI, date1)
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/{z}/{x}/{y}", result.TileURL)
	assert.Equal(t, "SAVI 2023", result.Name)
	require.NotNil(t, result.CloudCover)
	assert.InDelta(t, 12.5, *result.CloudCover, 1e-9)
}

func TestStatsUsesISODateAndBBox(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/gee-ndvi-stats", r.URL.Path)
		assert.Equal(t, "2023-01-15", q.Get("date"))
		assert.Equal(t, "-75.5", q.Get("minx"))
		assert.Equal(t, "-9.5", q.Get("miny"))
		assert.Equal(t, "-75", q.Get("maxx"))
		assert.Equal(t, "-9", q.Get("maxy"))
		writeJSON(w, http.StatusOK, `{"year":2023,"mean":0.61,"min":-0.1,"max":0.9,"stdDev":0.12,"count":1500}`)
	})

	stats, err := client.Stats(context.Background(), common.IndexNDVI, date1, bbox)
	require.NoError(t, err)
	assert.Equal(t, 2023, stats.Year)
	assert.InDelta(t, 0.61, stats.Mean, 1e-9)
	assert.InDelta(t, 1500, stats.Count, 1e-9)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   ErrorKind
		wantStatus int
		wantMsg    string
	}{
		{"domain error on 200", http.StatusOK, `{"error":"No images found for the selected date"}`, ErrDomain, http.StatusOK, "No images found for the selected date"},
		{"status with message", http.StatusBadRequest, `{"error":"Missing date parameter"}`, ErrStatus, http.StatusBadRequest, "Missing date parameter"},
		{"status without body", http.StatusInternalServerError, `oops`, ErrStatus, http.StatusInternalServerError, "backend returned HTTP 500 for /gee-tile-url"},
		{"decode failure", http.StatusOK, `not json`, ErrDecode, 0, ""},
		{"missing tile url", http.StatusOK, `{"name":"x"}`, ErrDecode, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Tile(context.Background(), common.IndexNDVI, date1)
			require.Error(t, err)

			var berr *Error
			require.True(t, errors.As(err, &berr))
			assert.Equal(t, tt.wantKind, berr.Kind)
			assert.Equal(t, tt.wantStatus, berr.StatusCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, berr.Error())
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	settings := config.DefaultSettings()
	settings.Backend.BaseURL = url
	client := NewClient(settings.Backend, nil)

	_, err := client.Cloudiness(context.Background(), date1, bbox)
	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, ErrTransport, berr.Kind)
	assert.NotNil(t, berr.Unwrap())
}

func TestComparePair(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		writeJSON(w, http.StatusOK, `{"tileUrl":"https://tiles/`+date+`/{z}/{x}/{y}","name":"NDVI `+date+`"}`)
	})

	pair, err := client.ComparePair(context.Background(), common.IndexNDVI, date1, date2)
	require.NoError(t, err)
	assert.Equal(t, "NDVI 20230115", pair[0].Name)
	assert.Equal(t, "NDVI 20240115", pair[1].Name)
}

func TestComparePairFailsIfEitherFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "20240115" {
			writeJSON(w, http.StatusOK, `{"error":"no imagery"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"tileUrl":"https://tiles/{z}/{x}/{y}","name":"ok"}`)
	})

	_, err := client.ComparePair(context.Background(), common.IndexNDVI, date1, date2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no imagery")
}

func TestZonesDecodesSummary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gee-deforestation-zones-nbr", r.URL.Path)
		assert.Equal(t, "0.25", r.URL.Query().Get("threshold"))
		writeJSON(w, http.StatusOK, `{
			"type": "FeatureCollection",
			"features": [
				{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[-75,-9],[-74.9,-9],[-74.9,-8.9],[-75,-9]]]},"properties":{"label":1}}
			],
			"deforestationSummary": {"zoneCount": 7, "percentageAffected": 3.5}
		}`)
	})

	zones, err := client.Zones(context.Background(), common.IndexNBR, date1, date2, 0.25, bbox)
	require.NoError(t, err)
	require.NotNil(t, zones.Summary)
	assert.Equal(t, 7, zones.ZoneCount())
	assert.InDelta(t, 3.5, zones.Summary.PercentageAffected, 1e-9)
	assert.Len(t, zones.Features.Features, 1)
}

func TestZonesFromGeometryPostsPolygon(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gee-deforestation-zones-from-geojson-savi", r.URL.Path)

		var payload struct {
			Date1     string          `json:"date1"`
			Date2     string          `json:"date2"`
			Threshold float64         `json:"threshold"`
			Geometry  json.RawMessage `json:"geometry"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "2023-01-15", payload.Date1)
		assert.Equal(t, "2024-01-15", payload.Date2)
		assert.InDelta(t, 0.2, payload.Threshold, 1e-9)
		assert.Contains(t, string(payload.Geometry), `"Polygon"`)

		writeJSON(w, http.StatusOK, `{"type":"FeatureCollection","features":[]}`)
	})

	zones, err := client.ZonesFromGeometry(context.Background(), common.IndexSAVI, date1, date2, 0.2, square())
	require.NoError(t, err)
	assert.Nil(t, zones.Summary)
	assert.Equal(t, 0, zones.ZoneCount())
}

func TestHistogram(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gee-ndvi-histogram", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"bucketMin":-1,"bucketWidth":0.1,"histogram":[1,4,9],"bucketMeans":[-0.95,-0.85,-0.75]}`)
	})

	hist, err := client.Histogram(context.Background(), common.IndexNDVI, date1, date2, square())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 9}, hist.Counts)
	assert.InDelta(t, 0.1, hist.BucketWidth, 1e-9)
}

func TestBestImageDate(t *testing.T) {
	var withGeometry atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, ok := payload["geometry"]
		withGeometry.Store(ok)
		writeJSON(w, http.StatusOK, `{"optimalDate":"2023-02-01","cloudCover":4.2,"candidateImages":[{"date":"2023-02-01","cloud_cover":4.2},{"date":"2023-01-20","cloudCover":15}]}`)
	})

	best, err := client.BestImageDate(context.Background(), date1, nil)
	require.NoError(t, err)
	assert.False(t, withGeometry.Load())
	assert.Equal(t, "2023-02-01", best.Date())
	require.Len(t, best.CandidateImages, 2)
	assert.InDelta(t, 4.2, best.CandidateImages[0].CloudCover, 1e-9)
	assert.InDelta(t, 15, best.CandidateImages[1].CloudCover, 1e-9)

	_, err = client.BestImageDate(context.Background(), date1, square())
	require.NoError(t, err)
	assert.True(t, withGeometry.Load())
}

func TestLandsatDates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gee-landsat-dates", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"year":2023,"landsat_dates":["2023-01-03","2023-01-19"]}`)
	})

	dates, err := client.LandsatDates(context.Background(), date1)
	require.NoError(t, err)
	assert.Equal(t, 2023, dates.Year)
	assert.Equal(t, []string{"2023-01-03", "2023-01-19"}, dates.Dates)
}

func TestDiffMaxCloudCover(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20230115", r.URL.Query().Get("date1"))
		assert.Empty(t, r.URL.Query().Get("minx"))
		writeJSON(w, http.StatusOK, `{"tileUrl":"https://diff/{z}/{x}/{y}","name":"diff","deforestationDetected":true,"range1":{"cloudCover":5},"range2":{"cloudCover":31}}`)
	})

	diff, err := client.Diff(context.Background(), common.IndexNDVI, date1, date2, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, diff.DeforestationDetected)
	assert.True(t, *diff.DeforestationDetected)

	worst, ok := diff.MaxCloudCover()
	assert.True(t, ok)
	assert.InDelta(t, 31, worst, 1e-9)
}
