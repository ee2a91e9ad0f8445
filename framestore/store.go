// Package framestore owns the ordered, immutable frame sequence of a
// session and its two storage tiers.
//
// Every ingested frame lives as an encoded record in a slow blob tier
// (host memory by default, local disk or S3-compatible storage for long
// videos). Decoded frames are admitted to a byte-budgeted LRU fast tier on
// access and evicted in LRU order when the budget is exceeded, so a strictly
// sequential propagation pass keeps at most a handful of frames resident.
package framestore

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/videoseg/blobstore"
	"github.com/hupe1980/videoseg/framesource"
	"github.com/hupe1980/videoseg/internal/resource"
	"github.com/hupe1980/videoseg/model"
)

// Config holds frame store configuration.
type Config struct {
	// Blobs is the slow tier. Defaults to an in-memory store.
	Blobs blobstore.BlobStore

	// Compression applied to frame records in the slow tier.
	Compression CompressionType

	// Controller enforces the fast-tier byte budget. Nil disables
	// eviction (every decoded frame stays resident).
	Controller *resource.Controller

	// Prefetch is the maximum number of concurrent background fetches.
	// Defaults to 1.
	Prefetch int
}

type frameMeta struct {
	size       int
	origHeight int
	origWidth  int
}

type cacheEntry struct {
	index int
	frame model.Frame
}

// Store holds the ordered, immutable frames of one session.
//
// Frames are created once at ingestion (plus online appends) and never
// mutated. All methods are safe for concurrent use.
type Store struct {
	blobs     blobstore.BlobStore
	comp      CompressionType
	res       *resource.Controller
	prefetchN int

	mu    sync.Mutex
	metas []frameMeta
	items map[int]*list.Element
	lru   *list.List
	bytes int64

	wg sync.WaitGroup
}

// Ingest pulls every frame out of the source, encodes it into the slow tier
// and returns the populated store. This is a pure, one-time step; it fails
// with framesource.ErrNoFramesFound when the source is empty.
func Ingest(ctx context.Context, src framesource.Source, cfg Config) (*Store, error) {
	if src == nil || src.Len() == 0 {
		return nil, framesource.ErrNoFramesFound
	}

	s := newStore(cfg)
	for i := 0; i < src.Len(); i++ {
		f, err := src.Frame(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("ingest frame %d: %w", i, err)
		}
		f.Index = i
		if err := s.put(ctx, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newStore(cfg Config) *Store {
	blobs := cfg.Blobs
	if blobs == nil {
		blobs = blobstore.NewMemoryStore()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Store{
		blobs:     blobs,
		comp:      cfg.Compression,
		res:       cfg.Controller,
		prefetchN: prefetch,
		items:     make(map[int]*list.Element),
		lru:       list.New(),
	}
}

func frameKey(index int) string {
	return fmt.Sprintf("frames/%08d", index)
}

// Len returns the number of stored frames.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metas)
}

// OriginalSize returns the pre-resize (height, width) of a frame.
func (s *Store) OriginalSize(index int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.metas) {
		return 0, 0, &ErrOutOfRange{Index: index, Len: len(s.metas)}
	}
	m := s.metas[index]
	return m.origHeight, m.origWidth, nil
}

// Get returns the frame at the given index, copying it into the fast tier
// if it is not already resident.
func (s *Store) Get(ctx context.Context, index int) (model.Frame, error) {
	s.mu.Lock()
	n := len(s.metas)
	if index < 0 || index >= n {
		s.mu.Unlock()
		return model.Frame{}, &ErrOutOfRange{Index: index, Len: n}
	}
	if el, ok := s.items[index]; ok {
		s.lru.MoveToFront(el)
		f := el.Value.(*cacheEntry).frame
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()

	f, err := s.fetch(ctx, index)
	if err != nil {
		return model.Frame{}, err
	}
	s.admit(f)
	return f, nil
}

// Append admits one new frame arriving after ingestion. Indices are dense
// and strictly increasing: the only admissible index is Len().
func (s *Store) Append(ctx context.Context, f model.Frame, index int) error {
	s.mu.Lock()
	next := len(s.metas)
	s.mu.Unlock()

	if index != next {
		return &ErrNonMonotonicIndex{Index: index, Next: next}
	}

	f.Index = index
	if err := s.put(ctx, f); err != nil {
		return err
	}
	s.admit(f)
	return nil
}

// Release drops a frame from the fast tier, returning its bytes to the
// budget. The slow-tier record is untouched.
func (s *Store) Release(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[index]; ok {
		s.removeLocked(el)
	}
}

// Prefetch warms the fast tier with the given frames in the background.
// Errors are deliberately dropped; the next Get surfaces them.
func (s *Store) Prefetch(ctx context.Context, indices ...int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.prefetchN)
		for _, index := range indices {
			s.mu.Lock()
			_, cached := s.items[index]
			inRange := index >= 0 && index < len(s.metas)
			s.mu.Unlock()
			if cached || !inRange {
				continue
			}
			g.Go(func() error {
				if f, err := s.fetch(gctx, index); err == nil {
					s.admit(f)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Resident returns the fast-tier occupancy (frames, bytes).
func (s *Store) Resident() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), s.bytes
}

// Close waits for background prefetches and drops the fast tier.
func (s *Store) Close() error {
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range s.items {
		s.removeLocked(el)
	}
	return nil
}

func (s *Store) put(ctx context.Context, f model.Frame) error {
	data, err := encodeRecord(f, s.comp)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, frameKey(f.Index), data); err != nil {
		return fmt.Errorf("offload frame %d: %w", f.Index, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas = append(s.metas, frameMeta{
		size:       f.Size,
		origHeight: f.OrigHeight,
		origWidth:  f.OrigWidth,
	})
	return nil
}

func (s *Store) fetch(ctx context.Context, index int) (model.Frame, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, frameKey(index))
	if err != nil {
		return model.Frame{}, fmt.Errorf("fetch frame %d: %w", index, err)
	}
	return decodeRecord(data)
}

// admit inserts a decoded frame into the fast tier, evicting LRU entries
// until the byte budget accepts it. If the budget refuses even after the
// tier is empty, the frame is simply not cached.
func (s *Store) admit(f model.Frame) {
	size := f.NumBytes()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[f.Index]; ok {
		s.lru.MoveToFront(el)
		return
	}

	for !s.res.TryAcquireMemory(size) {
		back := s.lru.Back()
		if back == nil {
			return
		}
		s.removeLocked(back)
	}

	el := s.lru.PushFront(&cacheEntry{index: f.Index, frame: f})
	s.items[f.Index] = el
	s.bytes += size
}

func (s *Store) removeLocked(el *list.Element) {
	ent := el.Value.(*cacheEntry)
	s.lru.Remove(el)
	delete(s.items, ent.index)
	size := ent.frame.NumBytes()
	s.bytes -= size
	s.res.ReleaseMemory(size)
}
