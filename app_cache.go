package main

import (
	"log"

	"vegwatch-desktop/internal/cache"
)

// Cache Management Functions (Wails-exported)

// CacheStats represents overlay cache statistics for the frontend
type CacheStats struct {
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"sizeBytes"`
	MaxBytes  int64   `json:"maxBytes"`
	SizeMB    float64 `json:"sizeMB"`
	MaxMB     float64 `json:"maxMB"`
	HitRate   float64 `json:"hitRate"`
	CachePath string  `json:"cachePath"`
}

// GetCacheStats returns current overlay cache statistics
func (a *App) GetCacheStats() CacheStats {
	if a.tileCache == nil {
		return CacheStats{}
	}

	stats := a.tileCache.Stats()

	var hitRate float64
	if lookups := stats.Hits + stats.Misses; lookups > 0 {
		hitRate = float64(stats.Hits) / float64(lookups)
	}

	return CacheStats{
		Entries:   stats.Entries,
		SizeBytes: stats.SizeBytes,
		MaxBytes:  stats.MaxBytes,
		SizeMB:    float64(stats.SizeBytes) / 1024 / 1024,
		MaxMB:     float64(stats.MaxBytes) / 1024 / 1024,
		HitRate:   hitRate,
		CachePath: cache.GetCacheDir(),
	}
}

// ClearCache removes all cached overlay tiles
func (a *App) ClearCache() error {
	if a.tileCache == nil {
		return nil
	}
	if err := a.tileCache.Clear(); err != nil {
		return err
	}
	log.Printf("[App] Overlay cache cleared")
	return nil
}
