package rastercompanion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tilecore/internal/tilecoord"
)

func TestNewReturnsNilWhenTemplateIsBlank(t *testing.T) {
	c := New("", t.TempDir(), nil, zap.NewNop())
	require.Nil(t, c, "an empty template must disable the raster companion feature")
}

func TestURLSubstitutesPlaceholders(t *testing.T) {
	c := New("https://example.com/{z}/{x}/{y}.png", t.TempDir(), nil, zap.NewNop())
	require.NotNil(t, c)
	require.Equal(t, "https://example.com/2/3/4.png", c.url(tilecoord.Coord{Z: 2, X: 3, Y: 4}))
}

func TestFetchAndStoreFailureNeverPanics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL+"/{z}/{x}/{y}.png", t.TempDir(), nil, zap.NewNop())
	require.NotNil(t, c)

	coord := tilecoord.Coord{Z: 1, X: 0, Y: 0}
	c.FetchAndStore(context.Background(), coord)

	_, err := os.Stat(c.Path(coord))
	require.Error(t, err, "a failed fetch must not leave a file behind")
}

func TestFetchAndStoreInvalidPNGBytesIsLoggedNotPanicked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not a real png"))
	}))
	defer srv.Close()

	c := New(srv.URL+"/{z}/{x}/{y}.png", t.TempDir(), nil, zap.NewNop())
	require.NotNil(t, c)

	coord := tilecoord.Coord{Z: 1, X: 0, Y: 0}
	require.NotPanics(t, func() {
		c.FetchAndStore(context.Background(), coord)
	})

	data, err := os.ReadFile(c.Path(coord))
	require.NoError(t, err, "bytes are written to disk before decode validation runs")
	require.Equal(t, "not a real png", string(data))
}
