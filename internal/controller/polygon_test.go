package controller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegwatch-desktop/internal/geo"
)

func TestExportPolygonWithoutPolygon(t *testing.T) {
	c, view, _ := newTestController(t)

	path, err := c.ExportPolygon()
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, path)
	assert.Empty(t, view.saved, "no file without a polygon")
	assert.True(t, view.lastStatus().IsError)
}

func TestExportPolygon(t *testing.T) {
	c, view, _ := newTestController(t)
	require.NoError(t, c.SetPolygon(square()))

	path, err := c.ExportPolygon()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.json", path)

	data, ok := view.saved["area_20240305143000.json"]
	require.True(t, ok)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.GeoJSONType())
	assert.False(t, view.lastStatus().IsError)
}

func TestExportPolygonSaveFailure(t *testing.T) {
	c, view, _ := newTestController(t)
	require.NoError(t, c.SetPolygon(square()))
	view.saveErr = errors.New("disk full")

	_, err := c.ExportPolygon()
	require.Error(t, err)
	assert.True(t, view.lastStatus().IsError)
}

func TestImportPolygon(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "feature collection",
			data: `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-60,-3],[-59,-3],[-59,-2],[-60,-2],[-60,-3]]]}}]}`,
		},
		{
			name: "feature",
			data: `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-60,-3],[-59,-3],[-59,-2],[-60,-2],[-60,-3]]]}}`,
		},
		{
			name: "multipolygon",
			data: `{"type":"MultiPolygon","coordinates":[[[[-60,-3],[-59,-3],[-59,-2],[-60,-2],[-60,-3]]],[[[10,10],[11,10],[11,11],[10,10]]]]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, view, _ := newTestController(t)

			require.NoError(t, c.ImportPolygon([]byte(tt.data)))

			p, _, ok := c.Polygon()
			require.True(t, ok)
			assert.Equal(t, orb.Bound{Min: orb.Point{-60, -3}, Max: orb.Point{-59, -2}}, p.Bound())
			require.Len(t, view.fits, 1)
			assert.Equal(t, p.Bound(), view.fits[0])
			assert.NotNil(t, view.polygon)
			assert.True(t, view.button("download-polygon"))
		})
	}
}

func TestImportPolygonFailureKeepsExisting(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed", `{"type":`, geo.ErrMalformed},
		{"no polygon", `{"type":"Point","coordinates":[1,2]}`, geo.ErrNoPolygon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, view, _ := newTestController(t)
			require.NoError(t, c.SetPolygon(square()))
			_, id, _ := c.Polygon()

			err := c.ImportPolygon([]byte(tt.data))
			require.ErrorIs(t, err, tt.want)

			p, after, ok := c.Polygon()
			require.True(t, ok)
			assert.Equal(t, id, after)
			assert.Equal(t, square().Bound(), p.Bound())
			assert.Empty(t, view.fits)
			assert.True(t, view.lastStatus().IsError)
		})
	}
}

func TestCaptureAndHistoryRoundTrip(t *testing.T) {
	c, view, _ := newTestController(t)
	setDates(t, c)
	require.NoError(t, c.SetPolygon(square()))
	_, id, _ := c.Polygon()

	name, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "captura_20240305143000", name)
	assert.Equal(t, []string{name}, view.screenshots)

	h := c.History()
	assert.Equal(t, id, h.PolygonID)
	require.Len(t, h.Entries, 1)
	assert.Equal(t, "2023-06-01", h.Entries[0].StartDate)
	assert.Equal(t, "2023-06-15", h.Entries[0].EndDate)

	_, err = c.ExportHistory()
	require.NoError(t, err)
	data, ok := view.saved["history_20240305143000.json"]
	require.True(t, ok)

	other, otherView, _ := newTestController(t)
	require.NoError(t, other.ImportHistory(data))

	_, restoredID, ok := other.Polygon()
	require.True(t, ok)
	assert.Equal(t, id, restoredID)
	assert.Len(t, other.History().Entries, 1)
	assert.Len(t, otherView.fits, 1)
	assert.True(t, otherView.button("export-history"))
}

func TestCaptureResetsHistoryForNewPolygon(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.SetPolygon(square()))
	_, err := c.Capture(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.SetPolygon(orb.Polygon{{{1, 1}, {2, 1}, {2, 2}, {1, 1}}}))
	_, err = c.Capture(context.Background())
	require.NoError(t, err)

	assert.Len(t, c.History().Entries, 1)
}

func TestImportHistoryRejectsBadContent(t *testing.T) {
	tests := []struct {
		name    string
		history History
	}{
		{"bad date", History{Entries: []HistoryEntry{{Screenshot: "a.png", StartDate: "June 1st"}}}},
		{"no screenshot", History{Entries: []HistoryEntry{{StartDate: "2023-06-01"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, view, _ := newTestController(t)
			data, err := json.Marshal(tt.history)
			require.NoError(t, err)

			err = c.ImportHistory(data)
			require.ErrorIs(t, err, geo.ErrMalformed)
			assert.Empty(t, c.History().Entries)
			assert.True(t, view.lastStatus().IsError)
		})
	}
}
