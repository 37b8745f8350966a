// Package diskcache implements the content-addressed on-disk tile
// cache: a read-through miss-is-silent cache backed by files named
// after the tile coordinate, written atomically via a temp-file
// rename. Adapted from the teacher's internal/cache/file_cache.go.
package diskcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"tilecore/internal/tilecoord"
)

// Cache is the Disk Cache component of spec §4.3.
type Cache struct {
	root   string
	logger *zap.Logger
}

// New returns a Cache rooted at cacheRoot/tiles, creating that
// directory eagerly (matching the teacher's NewFileCache) so Path is
// always valid to log even before any tile is requested.
func New(cacheRoot string, logger *zap.Logger) (*Cache, error) {
	dir := filepath.Join(cacheRoot, "tiles")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: creating cache directory: %w", err)
	}
	return &Cache{root: dir, logger: logger}, nil
}

// Path returns the on-disk path for coord: {cache_root}/tiles/z{Z}x{X}y{Y}.mvt.
func (c *Cache) Path(coord tilecoord.Coord) string {
	return filepath.Join(c.root, coord.PathSegment()+".mvt")
}

// TryRead reads coord's raw bytes from disk. A missing file is a
// silent miss; any other read error is logged and also reported as a
// miss, per spec §7's error table.
func (c *Cache) TryRead(coord tilecoord.Coord) ([]byte, bool) {
	data, err := os.ReadFile(c.Path(coord))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("disk cache read failed",
				zap.String("coord", coord.String()),
				zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Write durably stores data for coord via a temp file in the same
// directory followed by an atomic rename, creating parent directories
// on demand. A failed write is logged by the caller; the tile remains
// usable from memory regardless (spec §7).
func (c *Cache) Write(coord tilecoord.Coord, data []byte) error {
	path := c.Path(coord)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("diskcache: creating parent directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("diskcache: writing temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("diskcache: renaming temp file into place: %w", err)
	}
	return nil
}
