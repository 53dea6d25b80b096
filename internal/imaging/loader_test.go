package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createTestImage creates a simple test image file and returns its path.
// The caller is responsible for removing the file.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp("", "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 100, color.RGBA{255, 0, 0, 255})
	defer os.Remove(imgPath)

	// First load
	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img1 == nil {
		t.Fatal("Load returned nil image")
	}

	bounds := img1.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x100", bounds.Dx(), bounds.Dy())
	}

	// Second load should return cached image
	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Load_NonExistent(t *testing.T) {
	cache := NewImageCache()
	_, err := cache.Load("/nonexistent/path/to/image.png")
	if !errors.Is(err, ErrLoad) {
		t.Errorf("Load error = %v, want ErrLoad", err)
	}
}

func TestImageCache_Load_InvalidImage(t *testing.T) {
	cache := NewImageCache()

	// Create a file with invalid image data
	tmpFile, err := os.CreateTemp("", "invalid-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.WriteString("not an image")
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	_, err = cache.Load(tmpFile.Name())
	if !errors.Is(err, ErrLoad) {
		t.Errorf("Load error = %v, want ErrLoad", err)
	}
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 255, 0, 255})
	defer os.Remove(imgPath)

	// Load image
	_, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Clear cache
	cache.Clear()

	// Verify cache is empty by checking internal state
	cache.mu.RLock()
	count := len(cache.images)
	cache.mu.RUnlock()

	if count != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", count)
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 0, 255, 255})
	defer os.Remove(imgPath)

	// Load image
	_, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Evict
	cache.Evict(imgPath)

	// Verify image is evicted
	cache.mu.RLock()
	_, exists := cache.images[imgPath]
	cache.mu.RUnlock()

	if exists {
		t.Error("Evict did not remove image from cache")
	}
}

func TestImageCache_Evict_NonExistent(t *testing.T) {
	cache := NewImageCache()
	// Should not panic
	cache.Evict("/nonexistent/path")
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})
	defer os.Remove(imgPath)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	// Concurrent loads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(imgPath)
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestImageCache_Len(t *testing.T) {
	cache := NewImageCache()
	a := createTestImage(t, 10, 10, color.RGBA{1, 2, 3, 255})
	defer os.Remove(a)
	b := createTestImage(t, 10, 10, color.RGBA{4, 5, 6, 255})
	defer os.Remove(b)

	for _, p := range []string{a, b, a} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s) failed: %v", p, err)
		}
	}
	if got := cache.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestFileLoader_Load(t *testing.T) {
	imgPath := createTestImage(t, 30, 20, color.RGBA{181, 230, 29, 255})
	defer os.Remove(imgPath)

	img, err := FileLoader{}.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 30, 20) {
		t.Errorf("bounds = %v, want (0,0)-(30,20)", img.Bounds())
	}
	if !DefaultSeparator.At(img, 29, 19) {
		t.Errorf("pixel (29,19) = %v, want separator", img.NRGBAAt(29, 19))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		img     image.Image
		wantErr error
	}{
		{"nil image", nil, ErrEmptyImage},
		{"zero width", image.NewNRGBA(image.Rect(0, 0, 0, 10)), ErrEmptyImage},
		{"zero height", image.NewNRGBA(image.Rect(0, 0, 10, 0)), ErrEmptyImage},
		{"offset bounds", image.NewRGBA(image.Rect(5, 5, 15, 10)), nil},
		{"16-bit source", image.NewRGBA64(image.Rect(0, 0, 4, 4)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.img)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Normalize error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			want := image.Rect(0, 0, tt.img.Bounds().Dx(), tt.img.Bounds().Dy())
			if out.Bounds() != want {
				t.Errorf("bounds = %v, want %v", out.Bounds(), want)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	src := createInMemoryImage(8, 6, color.NRGBA{10, 20, 30, 255})
	path := filepath.Join(t.TempDir(), "out.png")

	if err := Save(src, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	img, err := FileLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := img.NRGBAAt(3, 3); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("pixel = %v, want {10 20 30 255}", got)
	}
}

func TestSupportedFormat(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"scan.png", true},
		{"scan.JPG", true},
		{"scan.jpeg", true},
		{"scan.tif", true},
		{"scan.bmp", true},
		{"scan.gif", true},
		{"scan.webp", false},
		{"scan", false},
	}
	for _, tt := range tests {
		if got := SupportedFormat(tt.path); got != tt.want {
			t.Errorf("SupportedFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
