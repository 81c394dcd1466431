package bitmap

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"math"
	"runtime/debug"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// assumedMemory is the runtime memory budget used when no GOMEMLIMIT is set.
const assumedMemory = 1 << 30

// DefaultCapacity returns an eighth of the runtime memory budget, in bytes.
func DefaultCapacity() int64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		limit = assumedMemory
	}
	return limit / 8
}

// Key returns the cache key for a source decoded to fit w x h.
func Key(source string, w, h int) string {
	sum := sha256.Sum256([]byte(source + "\x00" + strconv.Itoa(w) + "x" + strconv.Itoa(h)))
	return hex.EncodeToString(sum[:])
}

// Cache is an LRU store of decoded bitmaps bounded by their pixel byte size.
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.LRU[string, Loaded]
	capacity int64
	used     int64
}

// NewCache returns a cache holding at most capacity bytes of pixel data.
func NewCache(capacity int64) *Cache {
	c := &Cache{capacity: capacity}
	// Eviction is driven by byte size below, the entry count limit only has to be out of reach.
	entries, err := lru.NewLRU[string, Loaded](math.MaxInt32, func(_ string, l Loaded) {
		c.used -= ByteSize(l.Bitmap)
	})
	if err != nil {
		panic(err)
	}
	c.entries = entries
	return c
}

// Get returns the entry stored under key and marks it as recently used.
func (c *Cache) Get(key string) (Loaded, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Put stores l under key, evicting least recently used entries until it fits.
// It reports false when the bitmap alone exceeds the capacity and was not stored.
func (c *Cache) Put(key string, l Loaded) bool {
	if l.Bitmap == nil {
		return false
	}
	size := ByteSize(l.Bitmap)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
	if size > c.capacity {
		return false
	}
	for c.used+size > c.capacity {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			break
		}
	}
	c.entries.Add(key, l)
	c.used += size
	return true
}

// Len returns the number of cached bitmaps.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Size returns the pixel bytes currently held.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity returns the byte budget of the cache.
func (c *Cache) Capacity() int64 {
	return c.capacity
}

// ByteSize returns the number of bytes backing the pixels of img.
func ByteSize(img image.Image) int64 {
	switch m := img.(type) {
	case nil:
		return 0
	case *image.NRGBA:
		return int64(len(m.Pix))
	case *image.RGBA:
		return int64(len(m.Pix))
	case *image.NRGBA64:
		return int64(len(m.Pix))
	case *image.RGBA64:
		return int64(len(m.Pix))
	case *image.Gray:
		return int64(len(m.Pix))
	case *image.Gray16:
		return int64(len(m.Pix))
	case *image.Alpha:
		return int64(len(m.Pix))
	case *image.Paletted:
		return int64(len(m.Pix))
	case *image.YCbCr:
		return int64(len(m.Y) + len(m.Cb) + len(m.Cr))
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
