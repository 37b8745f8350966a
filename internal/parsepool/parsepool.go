// Package parsepool implements the Parse Worker Pool: a bounded set
// of goroutines that each run a missing tile's full load pipeline —
// disk read or network fetch, write-through, parse, registry
// transition, and listener invocation — start to finish, with the
// registry lock never held across any step of it.
//
// Generalized from the teacher's cmd/server/main.go warmupTiles
// worker-slot-channel pattern, turned from a one-shot WaitGroup
// fan-out into a long-lived pool.
package parsepool

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tilecore/internal/diskcache"
	"tilecore/internal/fetcher"
	"tilecore/internal/rastercompanion"
	"tilecore/internal/registry"
	"tilecore/internal/tilecoord"
	"tilecore/internal/vectortile"
)

// Pool is the Parse Worker Pool of spec §4.5.
type Pool struct {
	jobs    chan tilecoord.Coord
	closing chan struct{}
	count   int
	reg     *registry.Registry
	disk    *diskcache.Cache
	fetch   fetcher.Fetcher // nil means local-only: disk miss goes straight to UnknownError
	parser  vectortile.Parser

	onFinished func(tilecoord.Coord)
	companion  *rastercompanion.Companion // nil disables the raster companion fetch

	logger   *zap.Logger
	group    *errgroup.Group
	submitWG sync.WaitGroup
}

// New returns a Pool with count workers (count is clamped to at least 1).
// onFinished, if non-nil, is called once per terminal transition
// regardless of outcome — the on_tile_finished broadcast hook of spec
// §6. companion may be nil to disable the raster companion feature.
func New(
	count int,
	reg *registry.Registry,
	disk *diskcache.Cache,
	fetch fetcher.Fetcher,
	parser vectortile.Parser,
	onFinished func(tilecoord.Coord),
	companion *rastercompanion.Companion,
	logger *zap.Logger,
) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		jobs:       make(chan tilecoord.Coord),
		closing:    make(chan struct{}),
		count:      count,
		reg:        reg,
		disk:       disk,
		fetch:      fetch,
		parser:     parser,
		onFinished: onFinished,
		companion:  companion,
		logger:     logger,
	}
}

// Start launches the worker goroutines. Must be called once before
// any Submit.
func (p *Pool) Start() {
	p.group = new(errgroup.Group)
	for i := 0; i < p.count; i++ {
		p.group.Go(func() error {
			for coord := range p.jobs {
				p.process(coord)
			}
			return nil
		})
	}
}

// Submit enqueues a load job for coord. It never blocks the caller:
// spec §4.2 requires RequestTiles's dispatch step to be a constant-time
// enqueue, so the handoff to the unbuffered job channel happens on a
// throwaway goroutine rather than synchronously; pending submissions
// are therefore bounded only by the number of parked goroutines. The goroutine selects
// on p.closing as well as the send so that a Submit racing with Close
// bails out instead of blocking on a send that a closed p.jobs would
// turn into a panic.
func (p *Pool) Submit(coord tilecoord.Coord) {
	p.submitWG.Add(1)
	go func() {
		defer p.submitWG.Done()
		select {
		case p.jobs <- coord:
		case <-p.closing:
		}
	}()
}

// Close stops accepting new work, drains in-flight jobs, and waits for
// every worker to exit. It signals closing first and waits for every
// outstanding Submit goroutine to observe it (or finish its send)
// before closing p.jobs, so no Submit can ever send on a closed
// channel.
func (p *Pool) Close() error {
	close(p.closing)
	p.submitWG.Wait()
	close(p.jobs)
	return p.group.Wait()
}

func (p *Pool) process(coord tilecoord.Coord) {
	log := p.logger.With(zap.String("coord", coord.String()))

	raw, hitDisk := p.disk.TryRead(coord)
	if !hitDisk {
		if p.fetch == nil {
			log.Debug("disk miss, network disabled, tile is a hole")
			p.finishNonOk(coord, registry.UnknownError)
			return
		}

		fetched, err := p.fetch.Fetch(context.Background(), coord)
		if err != nil {
			log.Warn("network fetch failed", zap.Error(err))
			p.finishNonOk(coord, registry.UnknownError)
			return
		}
		raw = fetched

		if err := p.disk.Write(coord, raw); err != nil {
			log.Warn("disk write-through failed", zap.Error(err))
		}
	}

	parsed, err := p.parser.Decode(raw)
	if err != nil {
		log.Warn("parse failed", zap.Error(err))
		p.finishNonOk(coord, registry.ParsingFailed)
		return
	}

	waiters := p.reg.Transition(coord, registry.Ok, parsed)
	for _, listener := range waiters {
		listener(coord)
	}
	if p.onFinished != nil {
		p.onFinished(coord)
	}
	if p.companion != nil {
		go p.companion.FetchAndStore(context.Background(), coord)
	}
}

// finishNonOk transitions coord to a non-Ok terminal state. Its
// waiters are drained by Transition but deliberately never invoked:
// spec §4.6 — listeners fire only on Ok, dropped silently otherwise.
func (p *Pool) finishNonOk(coord tilecoord.Coord, state registry.State) {
	p.reg.Transition(coord, state, nil)
	if p.onFinished != nil {
		p.onFinished(coord)
	}
}
