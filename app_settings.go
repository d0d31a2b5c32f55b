package main

import (
	"log"

	"vegwatch-desktop/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings validates and saves user settings
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	a.controller.SetThreshold(settings.DefaultThreshold)
	a.controller.SetKeepPolygonOnClear(settings.KeepPolygonOnClear)

	// Backend, cache and alert settings apply on next restart
	log.Printf("Settings saved. Backend, cache and alert settings will apply on next restart.")
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SaveMapPosition remembers the map position as the next start view
func (a *App) SaveMapPosition(lat, lon float64, zoom int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings.DefaultCenterLat = lat
	a.settings.DefaultCenterLon = lon
	a.settings.DefaultZoom = zoom

	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Saved map position: lat=%.6f, lon=%.6f, zoom=%d", lat, lon, zoom)
	return nil
}

// GetBackendURL returns the analysis backend base URL in use
func (a *App) GetBackendURL() string {
	return a.backend.BaseURL()
}

// SetBackendURL saves another analysis backend for the next start
func (a *App) SetBackendURL(baseURL string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	updated := *a.settings
	updated.Backend.BaseURL = baseURL
	if err := config.ValidateSettings(&updated); err != nil {
		return err
	}
	if err := config.SaveSettings(&updated); err != nil {
		return err
	}

	a.settings = &updated
	log.Printf("Backend set to %s (applies after restart)", baseURL)
	return nil
}
