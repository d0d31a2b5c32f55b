// Package cache keeps overlay tiles on disk with LRU eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// TileCache provides LRU caching for overlay tiles with disk persistence.
// Files are named by the hash of their key so the index can be rebuilt
// from disk on restart.
type TileCache struct {
	baseDir  string
	maxSize  int64 // Maximum cache size in bytes
	ttl      time.Duration
	mu       sync.Mutex
	currSize int64
	index    map[string]*CacheEntry // keyed by hash
	hits     int64
	misses   int64
}

// CacheEntry represents a cached tile
type CacheEntry struct {
	Hash       string
	FilePath   string
	Size       int64
	AccessTime time.Time
	CreateTime time.Time
}

// Stats is a snapshot of cache usage
type Stats struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"sizeBytes"`
	MaxBytes  int64 `json:"maxBytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// NewTileCache creates a tile cache in baseDir. A zero ttl keeps tiles
// until they are evicted for space.
func NewTileCache(baseDir string, maxSizeMB int, ttl time.Duration) (*TileCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &TileCache{
		baseDir: baseDir,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		ttl:     ttl,
		index:   make(map[string]*CacheEntry),
	}

	if err := cache.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to load cache index: %w", err)
	}

	return cache, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// extensionFor picks a file extension from the tile bytes
func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Get retrieves a tile from cache. Expired or unreadable entries are
// dropped and reported as a miss.
func (c *TileCache) Get(key string) ([]byte, bool) {
	hash := hashKey(key)

	c.mu.Lock()
	entry, exists := c.index[hash]
	if exists && c.ttl > 0 && time.Since(entry.CreateTime) > c.ttl {
		c.removeLocked(hash)
		exists = false
	}
	if !exists {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	filePath := entry.FilePath
	c.mu.Unlock()

	data, err := os.ReadFile(filePath)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if current, ok := c.index[hash]; ok && current == entry {
			delete(c.index, hash)
			c.currSize -= entry.Size
		}
		c.misses++
		return nil, false
	}
	entry.AccessTime = time.Now()
	c.hits++
	return data, true
}

// Set stores a tile in cache, evicting least recently used tiles when the
// cache grows past its limit
func (c *TileCache) Set(key string, data []byte) error {
	hash := hashKey(key)
	filePath := filepath.Join(c.baseDir, hash[:2], hash+extensionFor(data))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache subdirectory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	entry := &CacheEntry{
		Hash:       hash,
		FilePath:   filePath,
		Size:       int64(len(data)),
		AccessTime: now,
		CreateTime: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.index[hash]; exists {
		c.currSize -= old.Size
		if old.FilePath != filePath {
			os.Remove(old.FilePath)
		}
	}
	c.index[hash] = entry
	c.currSize += entry.Size

	if c.currSize > c.maxSize {
		c.evictLocked()
	}
	return nil
}

// Delete removes a single tile
func (c *TileCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(hashKey(key))
}

func (c *TileCache) removeLocked(hash string) {
	entry, ok := c.index[hash]
	if !ok {
		return
	}
	os.Remove(entry.FilePath)
	delete(c.index, hash)
	c.currSize -= entry.Size
}

// evictLocked removes least recently used tiles down to 90% of the limit
func (c *TileCache) evictLocked() {
	targetSize := c.maxSize * 9 / 10

	entries := make([]*CacheEntry, 0, len(c.index))
	for _, entry := range c.index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccessTime.Before(entries[j].AccessTime)
	})

	evicted := 0
	for _, entry := range entries {
		if c.currSize <= targetSize {
			break
		}
		c.removeLocked(entry.Hash)
		evicted++
	}
	if evicted > 0 {
		log.Printf("[TileCache] Evicted %d tiles, %d bytes in use", evicted, c.currSize)
	}
}

// loadIndex scans the cache directory and rebuilds the in-memory index
func (c *TileCache) loadIndex() error {
	return filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		switch ext {
		case ".png", ".jpg", ".webp":
		default:
			return nil
		}

		hash := strings.TrimSuffix(filepath.Base(path), ext)
		if len(hash) != sha256.Size*2 {
			return nil
		}

		c.index[hash] = &CacheEntry{
			Hash:       hash,
			FilePath:   path,
			Size:       info.Size(),
			AccessTime: info.ModTime(),
			CreateTime: info.ModTime(),
		}
		c.currSize += info.Size()
		return nil
	})
}

// Stats returns cache statistics
func (c *TileCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:   len(c.index),
		SizeBytes: c.currSize,
		MaxBytes:  c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
	}
}

// Clear removes all cached tiles
func (c *TileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.index {
		os.Remove(entry.FilePath)
	}
	c.index = make(map[string]*CacheEntry)
	c.currSize = 0
	return nil
}
