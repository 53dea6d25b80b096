package batch

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/scan-splitter/internal/config"
	"github.com/ironsheep/scan-splitter/internal/detection"
	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// createScan creates a separator-colored scan with filled rectangles.
func createScan(width, height int, bg color.NRGBA, fill color.NRGBA, boxes ...detection.BoundingBox) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}
	for _, b := range boxes {
		for y := b.Top; y <= b.Bottom; y++ {
			for x := b.Left; x <= b.Right; x++ {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return img
}

var (
	gray      = color.NRGBA{200, 200, 200, 255}
	twoPhotos = []detection.BoundingBox{
		{Top: 5, Left: 5, Bottom: 34, Right: 44},
		{Top: 10, Left: 60, Bottom: 49, Right: 89},
	}
)

// writeScan saves img as dir/name and returns its path.
func writeScan(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to write scan: %v", err)
	}
	return path
}

// writeFile writes raw bytes as dir/name and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	return cfg
}
