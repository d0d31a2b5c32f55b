package cache

import (
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"
)

// DefaultTTL bounds how long an overlay tile is reused. Backend tile URLs
// are short-lived, so cached tiles should not outlive them by much.
const DefaultTTL = 24 * time.Hour

// GetCacheDir returns the OS-specific overlay tile cache directory
func GetCacheDir() string {
	homeDir, _ := os.UserHomeDir()

	switch goruntime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", "vegwatch-desktop", "overlays")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(appData, "vegwatch-desktop", "cache", "overlays")
	default:
		cacheHome := os.Getenv("XDG_CACHE_HOME")
		if cacheHome == "" {
			cacheHome = filepath.Join(homeDir, ".cache")
		}
		return filepath.Join(cacheHome, "vegwatch-desktop", "overlays")
	}
}
