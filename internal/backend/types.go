package backend

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// TileResult is the answer of the tile endpoints
type TileResult struct {
	TileURL              string   `json:"tileUrl"`
	Name                 string   `json:"name"`
	CloudCover           *float64 `json:"cloudCover,omitempty"`
	CalculationStartDate string   `json:"calculationStartDate,omitempty"`
}

// RangeInfo describes one side of a difference computation
type RangeInfo struct {
	CloudCover float64 `json:"cloudCover"`
}

// DiffResult is the answer of the difference endpoints
type DiffResult struct {
	TileURL               string                 `json:"tileUrl"`
	Name                  string                 `json:"name"`
	DeforestationDetected *bool                  `json:"deforestationDetected,omitempty"`
	ChangeStats           map[string]interface{} `json:"ndviChangeStats,omitempty"`
	Range1                *RangeInfo             `json:"range1,omitempty"`
	Range2                *RangeInfo             `json:"range2,omitempty"`
}

// MaxCloudCover returns the worst cloud cover of both ranges, if reported
func (d *DiffResult) MaxCloudCover() (float64, bool) {
	var worst float64
	found := false
	for _, r := range []*RangeInfo{d.Range1, d.Range2} {
		if r != nil {
			if !found || r.CloudCover > worst {
				worst = r.CloudCover
			}
			found = true
		}
	}
	return worst, found
}

// ZoneSummary is the deforestationSummary member of a zones response
type ZoneSummary struct {
	ZoneCount          int     `json:"zoneCount"`
	PercentageAffected float64 `json:"percentageAffected"`
}

// ZonesResult is a FeatureCollection of deforested zones plus its summary
type ZonesResult struct {
	Features *geojson.FeatureCollection
	Summary  *ZoneSummary
}

// ZoneCount prefers the backend summary and falls back to the feature count
func (z *ZonesResult) ZoneCount() int {
	if z.Summary != nil {
		return z.Summary.ZoneCount
	}
	if z.Features == nil {
		return 0
	}
	return len(z.Features.Features)
}

// Stats is the answer of the statistics endpoints
type Stats struct {
	Year   int     `json:"year"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
	Count  float64 `json:"count"`
}

// Histogram is the bucketed index difference inside a geometry
type Histogram struct {
	BucketMin   float64   `json:"bucketMin"`
	BucketWidth float64   `json:"bucketWidth"`
	Counts      []float64 `json:"histogram"`
	BucketMeans []float64 `json:"bucketMeans,omitempty"`
}

// LandsatDates lists acquisition dates for a year
type LandsatDates struct {
	Year  int      `json:"year"`
	Dates []string `json:"landsat_dates"`
}

// CandidateImage is one acquisition considered by the best-date search
type CandidateImage struct {
	Date       string  `json:"date"`
	CloudCover float64 `json:"cloudCover"`
}

// UnmarshalJSON accepts both cloud_cover and cloudCover
func (c *CandidateImage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date       string   `json:"date"`
		CloudCover *float64 `json:"cloudCover"`
		Snake      *float64 `json:"cloud_cover"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Date = raw.Date
	switch {
	case raw.CloudCover != nil:
		c.CloudCover = *raw.CloudCover
	case raw.Snake != nil:
		c.CloudCover = *raw.Snake
	}
	return nil
}

// BestDate is the answer of the best-image-date search
type BestDate struct {
	BestDate        string           `json:"bestDate"`
	OptimalDate     string           `json:"optimalDate,omitempty"`
	CloudCover      float64          `json:"cloudCover"`
	CandidateImages []CandidateImage `json:"candidateImages,omitempty"`
}

// Date returns the suggested date whichever field name the backend used
func (b *BestDate) Date() string {
	if b.BestDate != "" {
		return b.BestDate
	}
	return b.OptimalDate
}

// Cloudiness is the cloud cover over the visible area
type Cloudiness struct {
	Cloudiness float64 `json:"cloudiness"`
}
