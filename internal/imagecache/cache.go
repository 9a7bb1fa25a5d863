// Package imagecache keeps encoded copies of rendered frames so several
// HTTP clients polling the same frame share one encode.
package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// Key identifies one encoded rendition of a frame.
type Key struct {
	Seq     uint64
	Format  Format
	Quality int // JPEG only
	Width   int // 0 keeps the rendered size
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/q%d/w%d", k.Seq, k.Format, k.Quality, k.Width)
}

const (
	DefaultMaxEntries    = 32
	EntryTTL             = 10 * time.Second
	MaxConcurrentEncodes = 3
	MinWidth             = 16
)

type entry struct {
	data      []byte
	encodedAt time.Time
}

// Cache stores encoded frames with oldest-first eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	order   []Key // insertion order (oldest first)
	maxSize int

	group singleflight.Group
	sem   chan struct{} // bounds concurrent encodes

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most maxSize renditions.
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	return &Cache{
		entries: make(map[Key]*entry),
		order:   make([]Key, 0, maxSize),
		maxSize: maxSize,
		sem:     make(chan struct{}, MaxConcurrentEncodes),
	}
}

// Get returns a cached rendition.
func (c *Cache) Get(k Key) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	// Expired entries stay until evicted or overwritten
	if time.Since(e.encodedAt) > EntryTTL {
		return nil, false
	}
	return e.data, true
}

// Encode returns the rendition k of img, encoding it at most once per key
// even under concurrent callers.
func (c *Cache) Encode(ctx context.Context, img image.Image, k Key) ([]byte, error) {
	if data, ok := c.Get(k); ok {
		c.hits.Add(1)
		return data, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(k.String(), func() (interface{}, error) {
		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer func() { <-c.sem }()

		data, err := encode(Scale(img, k.Width), k)
		if err != nil {
			log.Warn().Err(err).Str("key", k.String()).Msg("⚠️ Frame encode failed")
			return nil, err
		}
		c.store(k, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func encode(img image.Image, k Key) ([]byte, error) {
	var buf bytes.Buffer
	switch k.Format {
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: k.Quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", k.Format)
	}
	return buf.Bytes(), nil
}

// Scale resizes img to width keeping the aspect ratio. Widths that are
// zero, too small or not smaller than the source return img unchanged.
func Scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width < MinWidth || width >= b.Dx() {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func (c *Cache) store(k Key, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[k]; !ok {
		for len(c.entries) >= c.maxSize && len(c.order) > 0 {
			c.evict()
		}
		c.order = append(c.order, k)
	}
	c.entries[k] = &entry{data: data, encodedAt: time.Now()}
}

// evict removes the oldest rendition
func (c *Cache) evict() {
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
