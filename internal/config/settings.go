package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"vegwatch-desktop/internal/common"
)

// BackendURLEnv overrides the configured backend base URL when set
const BackendURLEnv = "VEGWATCH_BACKEND_URL"

// VisParams are optional visualization parameters forwarded to tile endpoints
type VisParams struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Palette []string `json:"palette,omitempty"`
}

// BackendSettings describes how to reach the analysis backend
type BackendSettings struct {
	BaseURL        string `json:"baseURL"`
	TimeoutSeconds int    `json:"timeoutSeconds"`

	// DateFormat is "iso" (YYYY-MM-DD) or "compact" (YYYYMMDD)
	DateFormat string `json:"dateFormat"`

	// DateFormatOverrides maps an endpoint family ("tile", "diff", "zones", ...)
	// to the date format that family expects
	DateFormatOverrides map[string]string `json:"dateFormatOverrides,omitempty"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	Backend BackendSettings `json:"backend"`

	// Map settings
	DefaultCenterLat     float64 `json:"defaultCenterLat"`
	DefaultCenterLon     float64 `json:"defaultCenterLon"`
	DefaultZoom          int     `json:"defaultZoom"`
	MaxZoom              int     `json:"maxZoom"`
	BaseLayerURL         string  `json:"baseLayerURL"`
	BaseLayerAttribution string  `json:"baseLayerAttribution"`

	// Analysis settings
	DefaultThreshold    float64              `json:"defaultThreshold"`
	CloudAlertThreshold float64              `json:"cloudAlertThreshold"` // percent
	AutoOptimalDate     bool                 `json:"autoOptimalDate"`
	KeepPolygonOnClear  bool                 `json:"keepPolygonOnClear"`
	CaptureDelayMs      int                  `json:"captureDelayMs"`
	Visualization       map[string]VisParams `json:"visualization,omitempty"` // keyed by index kind

	// File settings
	ExportPath string `json:"exportPath"`

	// Overlay tile cache
	CacheMaxSizeMB int `json:"cacheMaxSizeMB"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	exportPath := filepath.Join(homeDir, "Downloads", "vegwatch")

	return &UserSettings{
		Backend: BackendSettings{
			BaseURL:        "http://127.0.0.1:8080",
			TimeoutSeconds: 120,
			DateFormat:     common.DateFormatISO,
			DateFormatOverrides: map[string]string{
				"tile": common.DateFormatCompact,
				"diff": common.DateFormatCompact,
			},
		},
		DefaultCenterLat:     -9.2, // Peru
		DefaultCenterLon:     -75.15,
		DefaultZoom:          6,
		MaxZoom:              22,
		BaseLayerURL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		BaseLayerAttribution: "Tiles © Esri",
		DefaultThreshold:     0.2,
		CloudAlertThreshold:  20,
		AutoOptimalDate:      true,
		KeepPolygonOnClear:   false,
		CaptureDelayMs:       300,
		ExportPath:           exportPath,
		CacheMaxSizeMB:       100,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	baseDir := filepath.Join(homeDir, ".vegwatch", "desktop", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from the default location and applies
// environment overrides
func LoadSettings() (*UserSettings, error) {
	settings, err := LoadSettingsFrom(GetSettingsPath())
	if err != nil {
		return nil, err
	}
	ApplyEnv(settings)
	return settings, nil
}

// LoadSettingsFrom loads user settings from path, merging defaults for any
// missing fields. A missing file yields the defaults.
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	mergeDefaults(&settings)
	return &settings, nil
}

func mergeDefaults(settings *UserSettings) {
	defaults := DefaultSettings()
	if settings.Backend.BaseURL == "" {
		settings.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if settings.Backend.TimeoutSeconds == 0 {
		settings.Backend.TimeoutSeconds = defaults.Backend.TimeoutSeconds
	}
	if settings.Backend.DateFormat == "" {
		settings.Backend.DateFormat = defaults.Backend.DateFormat
	}
	if settings.Backend.DateFormatOverrides == nil {
		settings.Backend.DateFormatOverrides = defaults.Backend.DateFormatOverrides
	}
	if settings.DefaultZoom == 0 {
		settings.DefaultZoom = defaults.DefaultZoom
	}
	if settings.DefaultCenterLat == 0 && settings.DefaultCenterLon == 0 {
		settings.DefaultCenterLat = defaults.DefaultCenterLat
		settings.DefaultCenterLon = defaults.DefaultCenterLon
	}
	if settings.MaxZoom == 0 {
		settings.MaxZoom = defaults.MaxZoom
	}
	if settings.BaseLayerURL == "" {
		settings.BaseLayerURL = defaults.BaseLayerURL
		settings.BaseLayerAttribution = defaults.BaseLayerAttribution
	}
	if settings.DefaultThreshold == 0 {
		settings.DefaultThreshold = defaults.DefaultThreshold
	}
	if settings.CloudAlertThreshold == 0 {
		settings.CloudAlertThreshold = defaults.CloudAlertThreshold
	}
	if settings.CaptureDelayMs == 0 {
		settings.CaptureDelayMs = defaults.CaptureDelayMs
	}
	if settings.ExportPath == "" {
		settings.ExportPath = defaults.ExportPath
	}
	if settings.CacheMaxSizeMB == 0 {
		settings.CacheMaxSizeMB = defaults.CacheMaxSizeMB
	}
}

// ApplyEnv applies environment overrides to settings
func ApplyEnv(settings *UserSettings) {
	if v := os.Getenv(BackendURLEnv); v != "" {
		settings.Backend.BaseURL = v
	}
}

// SaveSettings saves user settings to the default location
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo saves user settings to path
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateSettings validates a settings value before it is saved or used
func ValidateSettings(settings *UserSettings) error {
	u, err := url.Parse(settings.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend URL: %q", settings.Backend.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend URL must be http or https: %q", settings.Backend.BaseURL)
	}
	if settings.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if !common.ValidDateFormat(settings.Backend.DateFormat) {
		return fmt.Errorf("invalid date format: %s (must be iso or compact)", settings.Backend.DateFormat)
	}
	for family, format := range settings.Backend.DateFormatOverrides {
		if !common.ValidDateFormat(format) {
			return fmt.Errorf("invalid date format for %s: %s (must be iso or compact)", family, format)
		}
	}
	if settings.CloudAlertThreshold < 0 || settings.CloudAlertThreshold > 100 {
		return fmt.Errorf("cloud alert threshold must be between 0 and 100")
	}
	if settings.CaptureDelayMs < 0 {
		return fmt.Errorf("capture delay cannot be negative")
	}
	if settings.ExportPath == "" {
		return fmt.Errorf("export path cannot be empty")
	}
	if settings.CacheMaxSizeMB <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	return nil
}
