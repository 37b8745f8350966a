// Package coordinator implements the Request Coordinator: the public
// RequestTiles entry point of spec §4.2, and the on_tile_finished
// broadcast hook of spec §6. The Notifier of spec §4.6 is not a
// separate type here — it is the act of invoking a drained waiter
// list after the registry lock is released, performed inside
// internal/parsepool's workers.
package coordinator

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"tilecore/internal/config"
	"tilecore/internal/diskcache"
	"tilecore/internal/fetcher"
	"tilecore/internal/mvtparse"
	"tilecore/internal/parsepool"
	"tilecore/internal/rastercompanion"
	"tilecore/internal/registry"
	"tilecore/internal/tilecoord"
	"tilecore/internal/vectortile"
)

// RequestResult is the scoped handle returned by RequestTiles: a
// snapshot of every coord from the request that was already Ok at the
// moment of the locked registry scan.
type RequestResult struct {
	Hits map[tilecoord.Coord]*vectortile.Tile
}

// Coordinator wires the Registry, Disk Cache, Network Fetcher, and
// Parse Worker Pool together behind the public RequestTiles API.
type Coordinator struct {
	reg    *registry.Registry
	disk   *diskcache.Cache
	pool   *parsepool.Pool
	dummy  bool
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[int]func(tilecoord.Coord)
	nextSubID   int
}

// New builds a Coordinator from cfg. In Dummy mode, Created coords are
// still inserted into the registry as Pending (so state_of/lookup
// behave normally) but no load job is ever dispatched, per spec §6.
func New(cfg *config.Config, logger *zap.Logger) (*Coordinator, error) {
	disk, err := diskcache.New(cfg.CacheRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	var fetch fetcher.Fetcher
	if cfg.Mode == config.ModeWeb {
		httpFetcher, err := fetcher.New(cfg.URLTemplate, &http.Client{})
		if err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		fetch = httpFetcher
	}

	var companion *rastercompanion.Companion
	if cfg.Mode == config.ModeWeb {
		companion = rastercompanion.New(cfg.RasterURLTemplate, cfg.CacheRoot, &http.Client{}, logger)
	}

	c := &Coordinator{
		reg:         registry.New(),
		disk:        disk,
		dummy:       cfg.Mode == config.ModeDummy,
		logger:      logger,
		subscribers: make(map[int]func(tilecoord.Coord)),
	}

	c.pool = parsepool.New(cfg.WorkerCount, c.reg, disk, fetch, mvtparse.New(), c.broadcastFinished, companion, logger)
	c.pool.Start()

	return c, nil
}

// Close stops the worker pool, waiting for in-flight jobs to finish.
func (c *Coordinator) Close() error {
	return c.pool.Close()
}

// Subscribe registers fn to be called after every terminal transition,
// regardless of outcome — the on_tile_finished hook of spec §6, used
// by a host to schedule a repaint even for holes. The returned func
// removes fn; callers that only care about one in-flight coord should
// unsubscribe once it fires to avoid accumulating subscribers forever.
func (c *Coordinator) Subscribe(fn func(tilecoord.Coord)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) broadcastFinished(coord tilecoord.Coord) {
	c.mu.Lock()
	subs := make([]func(tilecoord.Coord), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(coord)
	}
}

// RequestTiles is the public entry point of spec §4.2. It never
// blocks on I/O: the locked registry scan is O(len(wanted)), and every
// dispatch is a constant-time enqueue performed after the lock is
// released.
func (c *Coordinator) RequestTiles(wanted []tilecoord.Coord, onLoaded registry.Listener, loadMissing bool) RequestResult {
	hits, _ := c.reg.Lookup(wanted)
	result := RequestResult{Hits: hits}

	if !loadMissing || onLoaded == nil {
		return result
	}

	var dispatch []tilecoord.Coord
	for _, coord := range wanted {
		if _, isHit := hits[coord]; isHit {
			continue
		}
		outcome, _ := c.reg.InsertPending(coord, onLoaded)
		if outcome == registry.Created {
			dispatch = append(dispatch, coord)
		}
	}

	if c.dummy {
		return result
	}
	for _, coord := range dispatch {
		c.pool.Submit(coord)
	}
	return result
}

// RequestTilesLoad is the "no listener" shorthand of spec §6:
// request_tiles(wanted, load_missing).
func (c *Coordinator) RequestTilesLoad(wanted []tilecoord.Coord, loadMissing bool) RequestResult {
	return c.RequestTiles(wanted, nil, loadMissing)
}

// RequestTilesListen is the "infer load_missing" shorthand of spec
// §6: request_tiles(wanted, on_loaded).
func (c *Coordinator) RequestTilesListen(wanted []tilecoord.Coord, onLoaded registry.Listener) RequestResult {
	return c.RequestTiles(wanted, onLoaded, onLoaded != nil)
}

// StateOf is the test/debug hook of spec §6.
func (c *Coordinator) StateOf(coord tilecoord.Coord) (registry.State, bool) {
	return c.reg.StateOf(coord)
}

// TileDiskPath is the debug hook of spec §6.
func (c *Coordinator) TileDiskPath(coord tilecoord.Coord) string {
	return c.disk.Path(coord)
}
