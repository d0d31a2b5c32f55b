package backend

import (
	"fmt"

	"vegwatch-desktop/internal/common"
)

// Family groups the endpoints that share a request/response contract
type Family string

const (
	FamilyTile          Family = "tile"
	FamilyDiff          Family = "diff"
	FamilyZones         Family = "zones"
	FamilyZonesGeoJSON  Family = "zones-geojson"
	FamilyStats         Family = "stats"
	FamilyStatsGeoJSON  Family = "stats-geojson"
	FamilyHistogram     Family = "histogram"
	FamilyLandsatDates  Family = "landsat-dates"
	FamilyBestImageDate Family = "best-date"
	FamilyCloudiness    Family = "cloudiness"
)

// indexEndpoints maps index-qualified families to their path per index
var indexEndpoints = map[Family]map[common.IndexKind]string{
	FamilyTile: {
		common.IndexNDVI: "/gee-tile-url",
		common.IndexSAVI: "/gee-savi-tile-url",
		common.IndexNBR:  "/gee-nbr-tile-url",
	},
	FamilyDiff: {
		common.IndexNDVI: "/gee-ndvi-diff",
		common.IndexSAVI: "/gee-savi-diff",
		common.IndexNBR:  "/gee-nbr-diff",
	},
	FamilyZones: {
		common.IndexNDVI: "/gee-deforestation-zones",
		common.IndexSAVI: "/gee-deforestation-zones-savi",
		common.IndexNBR:  "/gee-deforestation-zones-nbr",
	},
	FamilyZonesGeoJSON: {
		common.IndexNDVI: "/gee-deforestation-zones-from-geojson",
		common.IndexSAVI: "/gee-deforestation-zones-from-geojson-savi",
		common.IndexNBR:  "/gee-deforestation-zones-from-geojson-nbr",
	},
	FamilyStats: {
		common.IndexNDVI: "/gee-ndvi-stats",
		common.IndexSAVI: "/gee-savi-stats",
		common.IndexNBR:  "/gee-nbr-stats",
	},
	FamilyStatsGeoJSON: {
		common.IndexNDVI: "/gee-ndvi-stats-from-geojson",
		common.IndexSAVI: "/gee-savi-stats-from-geojson",
		common.IndexNBR:  "/gee-nbr-stats-from-geojson",
	},
	FamilyHistogram: {
		common.IndexNDVI: "/gee-ndvi-histogram",
		common.IndexSAVI: "/gee-savi-histogram",
		common.IndexNBR:  "/gee-nbr-histogram",
	},
}

// fixedEndpoints are not parameterized by index
var fixedEndpoints = map[Family]string{
	FamilyLandsatDates:  "/gee-landsat-dates",
	FamilyBestImageDate: "/find-best-image-date",
	FamilyCloudiness:    "/gee-cloudiness-in-view",
}

// EndpointPath resolves the path for a family and index kind. Fixed
// endpoints ignore kind.
func EndpointPath(family Family, kind common.IndexKind) (string, error) {
	if path, ok := fixedEndpoints[family]; ok {
		return path, nil
	}
	byKind, ok := indexEndpoints[family]
	if !ok {
		return "", fmt.Errorf("unknown endpoint family: %s", family)
	}
	path, ok := byKind[kind]
	if !ok {
		return "", fmt.Errorf("no %s endpoint for index %q", family, kind)
	}
	return path, nil
}
