package bitmap

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers is the size of the worker pool used when none is configured.
const DefaultWorkers = 4

// Loader decodes sources synchronously. Decoder is the production Loader.
type Loader interface {
	Load(ctx context.Context, source string, w, h int) (Loaded, error)
	Thumbnail(ctx context.Context, source string, w, h int) (Loaded, error)
}

// Pipeline runs decode and persist work on a fixed pool of workers and hands
// results back as futures. Submitting never blocks: work is queued until a
// worker is free. In-flight work cannot be cancelled. A task that panics
// resolves its future with ErrPanicked.
type Pipeline struct {
	loader    Loader
	persister Persister
	cache     *Cache
	workers   *pool.Pool

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	stopped chan struct{}
}

// NewPipeline starts a pipeline with the given number of workers. The cache is
// shared with every other user of the same *Cache.
func NewPipeline(loader Loader, persister Persister, cache *Cache, workers int) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pipeline{
		loader:    loader,
		persister: persister,
		cache:     cache,
		workers:   pool.New().WithMaxGoroutines(workers),
		stopped:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.dispatch()
	return p
}

func (p *Pipeline) dispatch() {
	defer close(p.stopped)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			break
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.workers.Go(task)
	}
	p.workers.Wait()
}

func submit[T any](ctx context.Context, p *Pipeline, run func(ctx context.Context) (T, error)) *Future[T] {
	ctx = context.WithoutCancel(ctx)
	f := newFuture[T]()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		var zero T
		f.complete(zero, ErrClosed)
		return f
	}
	p.queue = append(p.queue, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Ctx(ctx).Error().Interface("panic", r).Msg("pipeline task panicked")
				var zero T
				f.complete(zero, fmt.Errorf("%w: %v", ErrPanicked, r))
			}
		}()
		f.complete(run(ctx))
	})
	p.cond.Signal()
	return f
}

// Cache returns the bitmap cache backing the pipeline.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Load decodes source to fit w x h. A cached bitmap resolves immediately.
func (p *Pipeline) Load(ctx context.Context, source string, w, h int) *Future[Loaded] {
	key := Key(source, w, h)
	if l, ok := p.cache.Get(key); ok {
		log.Ctx(ctx).Debug().Str("source", source).Str("key", key).Msg("bitmap cache hit")
		return Resolved(l, nil)
	}
	return submit(ctx, p, func(ctx context.Context) (Loaded, error) {
		l, err := p.loader.Load(ctx, source, w, h)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("source", source).Msg("failed to load bitmap")
			return Loaded{}, err
		}
		p.remember(ctx, key, l)
		return l, nil
	})
}

// Thumbnail extracts a video frame of source scaled to fit w x h.
func (p *Pipeline) Thumbnail(ctx context.Context, source string, w, h int) *Future[Loaded] {
	key := Key("frame:"+source, w, h)
	if l, ok := p.cache.Get(key); ok {
		return Resolved(l, nil)
	}
	return submit(ctx, p, func(ctx context.Context) (Loaded, error) {
		l, err := p.loader.Thumbnail(ctx, source, w, h)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("source", source).Msg("failed to extract thumbnail")
			return Loaded{}, err
		}
		p.remember(ctx, key, l)
		return l, nil
	})
}

// Persist writes img to private storage and resolves to its location.
func (p *Pipeline) Persist(ctx context.Context, img image.Image) *Future[string] {
	return submit(ctx, p, func(ctx context.Context) (string, error) {
		location, err := p.persister.Persist(ctx, img)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("path", p.persister.Dir).Msg("failed to persist bitmap")
			return "", err
		}
		return location, nil
	})
}

func (p *Pipeline) remember(ctx context.Context, key string, l Loaded) {
	size := ByteSize(l.Bitmap)
	if !p.cache.Put(key, l) {
		log.Ctx(ctx).Debug().
			Str("key", key).
			Str("size", humanize.IBytes(uint64(size))).
			Str("capacity", humanize.IBytes(uint64(p.cache.Capacity()))).
			Msg("bitmap larger than cache, not cached")
		return
	}
	log.Ctx(ctx).Debug().
		Str("key", key).
		Str("size", humanize.IBytes(uint64(size))).
		Str("used", humanize.IBytes(uint64(p.cache.Size()))).
		Msg("cached bitmap")
}

// Close stops accepting work, lets queued and in-flight work finish and waits
// for it. Work submitted afterwards fails with ErrClosed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	<-p.stopped
}
