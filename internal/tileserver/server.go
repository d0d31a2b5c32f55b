// Package tileserver runs the local overlay tile proxy the map frontend
// loads result layers through.
package tileserver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vegwatch-desktop/internal/cache"
)

const (
	// TileSize is the edge length of served tiles
	TileSize = 256

	// MaxUpstreamFetches bounds concurrent requests to tile upstreams
	MaxUpstreamFetches = 8
)

var transparentTile = func() []byte {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize)))
	return buf.Bytes()
}()

// Server proxies registered overlay templates and caches their tiles
type Server struct {
	mu         sync.RWMutex
	routes     map[string]string // overlay id -> upstream template
	tileCache  *cache.TileCache
	httpClient *http.Client
	workers    *semaphore.Weighted
	baseURL    string
	server     *http.Server
}

// NewServer creates a tile server. tileCache may be nil to disable caching.
func NewServer(tileCache *cache.TileCache) *Server {
	return &Server{
		routes:    make(map[string]string),
		tileCache: tileCache,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		workers: semaphore.NewWeighted(MaxUpstreamFetches),
	}
}

// URL returns the server base URL, empty until started
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// corsMiddleware adds CORS headers so the webview (wails://wails origin on
// macOS/Linux) may load tiles
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the proxy routes wrapped with CORS
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/overlay/", s.handleOverlayTile)
	return corsMiddleware(mux)
}

// Start listens on a random localhost port and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start tile server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	s.mu.Lock()
	s.baseURL = baseURL
	s.server = server
	s.mu.Unlock()
	log.Printf("[TileServer] Started on %s", baseURL)

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[TileServer] Stopped: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.baseURL = ""
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Register routes an overlay id to an upstream {z}/{x}/{y} template and
// returns the template the map should load. Before Start the upstream
// template is returned unchanged.
func (s *Server) Register(id, upstream string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baseURL == "" {
		return upstream
	}
	s.routes[id] = upstream
	return fmt.Sprintf("%s/overlay/%s/{z}/{x}/{y}", s.baseURL, id)
}

// Unregister drops an overlay route
func (s *Server) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routes, id)
}

func (s *Server) upstreamFor(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	upstream, ok := s.routes[id]
	return upstream, ok
}

// handleOverlayTile serves /overlay/{id}/{z}/{x}/{y}
func (s *Server) handleOverlayTile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/overlay/")
	parts := strings.Split(path, "/")
	if len(parts) != 4 {
		http.Error(w, "Invalid URL format. Expected: /overlay/{id}/{z}/{x}/{y}", http.StatusBadRequest)
		return
	}

	id := parts[0]
	coords := make([]int, 3)
	for i, part := range parts[1:] {
		v, err := strconv.Atoi(strings.TrimSuffix(part, ".png"))
		if err != nil || v < 0 {
			http.Error(w, "Invalid tile coordinate", http.StatusBadRequest)
			return
		}
		coords[i] = v
	}
	z, x, y := coords[0], coords[1], coords[2]

	upstream, ok := s.upstreamFor(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown overlay %s", id), http.StatusNotFound)
		return
	}

	tileURL := ExpandTemplate(upstream, z, x, y)

	if s.tileCache != nil {
		if data, found := s.tileCache.Get(tileURL); found {
			writeTile(w, data, "HIT")
			return
		}
	}

	data, err := s.fetch(r.Context(), tileURL)
	if err != nil {
		log.Printf("[TileServer] Failed to fetch %s z=%d x=%d y=%d: %v", id, z, x, y, err)
		serveTransparentTile(w)
		return
	}

	if s.tileCache != nil {
		if err := s.tileCache.Set(tileURL, data); err != nil {
			log.Printf("[TileServer] Failed to cache tile: %v", err)
		}
	}
	writeTile(w, data, "MISS")
}

func (s *Server) fetch(ctx context.Context, tileURL string) ([]byte, error) {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.workers.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile request failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ExpandTemplate substitutes tile coordinates into a {z}/{x}/{y} template
func ExpandTemplate(template string, z, x, y int) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(template)
}

func writeTile(w http.ResponseWriter, data []byte, cacheStatus string) {
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Header().Set("X-Cache-Status", cacheStatus)
	w.Write(data)
}

// serveTransparentTile keeps the map free of broken-image tiles when the
// upstream fails
func serveTransparentTile(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Cache-Status", "ERROR")
	w.Write(transparentTile)
}
