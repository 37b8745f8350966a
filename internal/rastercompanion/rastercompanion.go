// Package rastercompanion implements the optional raster-companion
// tile fetch supplemented from original_source/lib/TileLoader.cpp,
// which fetches a PNG alongside every PBF tile. It is off by default,
// never touches the vector tile's registry state, and only logs on
// failure: it exists purely so a host application can also show a
// raster basemap layer, exactly as the original viewer did.
package rastercompanion

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"tilecore/internal/tilecoord"
)

const placeholderZ, placeholderX, placeholderY = "{z}", "{x}", "{y}"

// Companion fetches and disk-caches a raster tile for a coord, then
// decode-validates it with vips. We treat every raster companion tile
// as a PNG, matching the original viewer's own simplifying assumption.
type Companion struct {
	client   *http.Client
	template string
	root     string
	logger   *zap.Logger
}

// New returns a Companion, or nil if template is empty (the feature is
// disabled by default).
func New(template, cacheRoot string, client *http.Client, logger *zap.Logger) *Companion {
	if strings.TrimSpace(template) == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Companion{
		client:   client,
		template: template,
		root:     filepath.Join(cacheRoot, "tiles"),
		logger:   logger,
	}
}

func (c *Companion) url(coord tilecoord.Coord) string {
	r := strings.NewReplacer(
		placeholderZ, strconv.FormatUint(uint64(coord.Z), 10),
		placeholderX, strconv.FormatUint(uint64(coord.X), 10),
		placeholderY, strconv.FormatUint(uint64(coord.Y), 10),
	)
	return r.Replace(c.template)
}

// Path returns the on-disk path of coord's raster companion tile.
func (c *Companion) Path(coord tilecoord.Coord) string {
	return filepath.Join(c.root, coord.PathSegment()+".png")
}

// FetchAndStore fetches, disk-caches, and decode-validates the raster
// companion tile for coord. It is best-effort: every failure is
// logged and nothing else happens. Callers run this in its own
// goroutine after the vector tile has already reached Ok.
func (c *Companion) FetchAndStore(ctx context.Context, coord tilecoord.Coord) {
	log := c.logger.With(zap.String("coord", coord.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(coord), nil)
	if err != nil {
		log.Warn("raster companion: building request failed", zap.Error(err))
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn("raster companion: fetch failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("raster companion: unexpected status", zap.Int("status", resp.StatusCode))
		return
	}

	path := c.Path(coord)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn("raster companion: creating parent directory failed", zap.Error(err))
		return
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Warn("raster companion: creating temp file failed", zap.Error(err))
		return
	}
	if _, err := f.ReadFrom(resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		log.Warn("raster companion: writing temp file failed", zap.Error(err))
		return
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		log.Warn("raster companion: closing temp file failed", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		log.Warn("raster companion: renaming temp file failed", zap.Error(err))
		return
	}

	opts := vips.DefaultPngloadOptions()
	img, err := vips.NewPngload(path, opts)
	if err != nil {
		log.Warn("raster companion: decoded bytes are not a valid PNG", zap.Error(err))
		return
	}
	img.Close()
}
