package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tilecore/internal/config"
	"tilecore/internal/coordinator"
)

func newTestHandlers(t *testing.T, mode config.Mode, urlTemplate string) *Handlers {
	t.Helper()
	cfg := &config.Config{
		CacheRoot:   t.TempDir(),
		Mode:        mode,
		URLTemplate: urlTemplate,
		WorkerCount: 2,
	}
	c, err := coordinator.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return New(c, zap.NewNop())
}

func TestParseTilePathValid(t *testing.T) {
	coord, err := parseTilePath("3/4/5.mvt")
	require.NoError(t, err)
	require.EqualValues(t, 3, coord.Z)
	require.EqualValues(t, 4, coord.X)
	require.EqualValues(t, 5, coord.Y)
}

func TestParseTilePathRejectsBadSuffix(t *testing.T) {
	_, err := parseTilePath("3/4/5.png")
	require.Error(t, err)
}

func TestParseTilePathRejectsOutOfRangeCoord(t *testing.T) {
	_, err := parseTilePath("1/9/9.mvt")
	require.Error(t, err)
}

func TestHandleTileServesUpstreamBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	h := newTestHandlers(t, config.ModeWeb, srv.URL+"/{z}/{x}/{y}.pbf")

	req := httptest.NewRequest(http.MethodGet, "/tiles/1/0/0.mvt", nil)
	rec := httptest.NewRecorder()
	h.HandleTile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tile-bytes", rec.Body.String())
	require.Equal(t, "application/vnd.mapbox-vector-tile", rec.Header().Get("Content-Type"))
}

func TestHandleTileReturnsNotFoundForHole(t *testing.T) {
	h := newTestHandlers(t, config.ModeLocalOnly, "")

	req := httptest.NewRequest(http.MethodGet, "/tiles/1/0/0.mvt", nil)
	rec := httptest.NewRecorder()
	h.HandleTile(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTileRejectsBadPath(t *testing.T) {
	h := newTestHandlers(t, config.ModeLocalOnly, "")

	req := httptest.NewRequest(http.MethodGet, "/tiles/not-a-tile", nil)
	rec := httptest.NewRecorder()
	h.HandleTile(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	h := newTestHandlers(t, config.ModeLocalOnly, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
