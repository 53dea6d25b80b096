package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/disintegration/imaging"
)

var (
	// ErrLoad is returned when an image file is missing, unreadable or corrupt.
	ErrLoad = errors.New("image load failed")

	// ErrEmptyImage is returned for rasters with a zero width or height.
	ErrEmptyImage = errors.New("image has no pixels")
)

// FileLoader decodes images from disk and normalizes them to 8-bit NRGBA.
//
// The decoder is chosen from the file contents, so PNG, JPEG, GIF, BMP and
// TIFF sources are all accepted. When AutoOrient is set, JPEG EXIF
// orientation tags are applied before normalization.
type FileLoader struct {
	AutoOrient bool
}

// Load reads and decodes the image at path.
//
// Returns:
//   - *image.NRGBA: The normalized raster, bounds starting at (0,0).
//   - error: Wraps ErrLoad if the file cannot be opened or decoded, or
//     ErrEmptyImage if the decoded image has no pixels.
func (l FileLoader) Load(path string) (*image.NRGBA, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(l.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrLoad, path, err)
	}

	nrgba, err := Normalize(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nrgba, nil
}

// Normalize returns an independent 8-bit NRGBA copy of img whose bounds start
// at (0,0). Sixteen-bit and floating sources are rescaled to [0,255] here,
// once, so the rest of the pipeline only deals with one color depth.
func Normalize(img image.Image) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return imaging.Clone(img), nil
}

// ImageCache provides thread-safe caching of normalized images to avoid
// redundant disk reads.
//
// The cache stores decoded rasters keyed by their file path. Once an image is
// loaded, subsequent Load() calls for the same path return the cached copy
// without disk I/O. Cached rasters are shared between callers and must not be
// modified; the extraction session always works on its own copy.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load("/scans/batch-01.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Use img...
//	cache.Evict("/scans/batch-01.png") // Optional: free memory
type ImageCache struct {
	mu     sync.RWMutex
	loader FileLoader
	images map[string]*image.NRGBA
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.NRGBA),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// The image is cached using the exact path string provided. Different paths to
// the same file (e.g., relative vs absolute) will result in separate entries.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := c.loader.Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len reports how many images are currently cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*image.NRGBA)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}
