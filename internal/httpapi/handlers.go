// Package httpapi exposes the Coordinator over HTTP: a single tile
// route plus the request-logging and CORS middleware the teacher's
// internal/http package already established.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilecore/internal/coordinator"
	"tilecore/internal/registry"
	"tilecore/internal/tilecoord"
)

type Handlers struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
}

func New(coord *coordinator.Coordinator, logger *zap.Logger) *Handlers {
	return &Handlers{coord: coord, logger: logger}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleTile serves GET /tiles/{z}/{x}/{y}.mvt. If the tile is already
// resident it is written synchronously; otherwise the request blocks
// on a one-shot channel fed by whichever fires first: the per-request
// Ok listener, or the Coordinator's on_tile_finished broadcast (which
// also fires for non-Ok terminal states, unlike the listener — spec
// §4.6 drops listeners silently on non-Ok). Neither signal fires for a
// coord that is already terminal when RequestTiles is called — the
// listener is dropped silently and the broadcast only fires on a
// transition, which already happened and is sticky — so that case is
// resolved directly off StateOf before ever entering the select.
func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	coord, err := parseTilePath(strings.TrimPrefix(r.URL.Path, "/tiles/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.coord.RequestTilesLoad([]tilecoord.Coord{coord}, false)
	if tile, ok := result.Hits[coord]; ok {
		writeTile(w, tile.Bytes())
		return
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	signalDone := func() { closeOnce.Do(func() { close(done) }) }

	unsubscribe := h.coord.Subscribe(func(got tilecoord.Coord) {
		if got == coord {
			signalDone()
		}
	})
	defer unsubscribe()

	h.coord.RequestTiles([]tilecoord.Coord{coord}, func(tilecoord.Coord) { signalDone() }, true)

	if state, ok := h.coord.StateOf(coord); ok && state != registry.Pending {
		h.serveTerminal(w, coord, state)
		return
	}

	select {
	case <-done:
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	case <-time.After(10 * time.Second):
		http.Error(w, "tile load timed out", http.StatusGatewayTimeout)
		return
	}

	state, _ := h.coord.StateOf(coord)
	h.serveTerminal(w, coord, state)
}

// serveTerminal writes coord's bytes if state is Ok, or a 404 for any
// other terminal state (a hole — spec §4.6 never surfaces a non-Ok
// tile to the renderer).
func (h *Handlers) serveTerminal(w http.ResponseWriter, coord tilecoord.Coord, state registry.State) {
	if state != registry.Ok {
		http.Error(w, fmt.Sprintf("tile unavailable: %s", state), http.StatusNotFound)
		return
	}

	result := h.coord.RequestTilesLoad([]tilecoord.Coord{coord}, false)
	tile, ok := result.Hits[coord]
	if !ok {
		http.Error(w, "tile unavailable", http.StatusInternalServerError)
		return
	}
	writeTile(w, tile.Bytes())
}

func writeTile(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func parseTilePath(path string) (tilecoord.Coord, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return tilecoord.Coord{}, fmt.Errorf("expected /tiles/{z}/{x}/{y}.mvt")
	}

	z, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return tilecoord.Coord{}, fmt.Errorf("invalid zoom level")
	}
	x, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return tilecoord.Coord{}, fmt.Errorf("invalid x coordinate")
	}

	yPart := strings.TrimSuffix(parts[2], ".mvt")
	if yPart == parts[2] {
		return tilecoord.Coord{}, fmt.Errorf("tile path must end in .mvt")
	}
	y, err := strconv.ParseUint(yPart, 10, 32)
	if err != nil {
		return tilecoord.Coord{}, fmt.Errorf("invalid y coordinate")
	}

	return tilecoord.New(uint8(z), uint32(x), uint32(y))
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
