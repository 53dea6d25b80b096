package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ironsheep/scan-splitter/internal/config"
	"github.com/ironsheep/scan-splitter/internal/deskew"
	"github.com/ironsheep/scan-splitter/internal/detection"
	"github.com/ironsheep/scan-splitter/internal/imaging"
)

var green = imaging.DefaultSeparator.NRGBA()

// memLoader serves rasters from memory.
type memLoader map[string]*image.NRGBA

func (m memLoader) Load(path string) (*image.NRGBA, error) {
	img, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", imaging.ErrLoad, path)
	}
	return img, nil
}

// memStore records saved regions.
type memStore struct {
	mu    sync.Mutex
	saved map[string][]detection.SubImage
	fail  error
}

func (m *memStore) Save(source string, regions []detection.SubImage) ([]string, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string][]detection.SubImage{}
	}
	m.saved[source] = regions
	out := make([]string, len(regions))
	for i, r := range regions {
		out[i] = SubImageName(source, r.Index)
	}
	return out, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestPipeline_ProcessDir(t *testing.T) {
	dir := t.TempDir()
	writeScan(t, dir, "album.png", createScan(100, 60, green, gray, twoPhotos...))
	writeFile(t, dir, "broken.png", "not an image")
	writeFile(t, dir, "notes.txt", "ignored")

	p := New(testConfig(), quietLogger())
	report, err := p.ProcessDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessDir failed: %v", err)
	}

	if report.Processed != 1 || report.Failed != 1 || report.SubImages != 2 {
		t.Fatalf("report: %s", report.Summary())
	}
	if report.InputDir != dir {
		t.Errorf("InputDir = %q, want %q", report.InputDir, dir)
	}

	// Results keep input order: album.png then broken.png.
	album, broken := report.Results[0], report.Results[1]
	if album.Err != nil {
		t.Fatalf("album failed: %v", album.Err)
	}
	if !errors.Is(broken.Err, imaging.ErrLoad) {
		t.Errorf("broken error = %v, want ErrLoad", broken.Err)
	}
	if broken.Error == "" {
		t.Error("broken result has no error message")
	}

	for i, name := range []string{"album_00.png", "album_01.png"} {
		want := filepath.Join(dir, DefaultOutputDirName, name)
		if album.Outputs[i] != want {
			t.Errorf("output %d: got %s, want %s", i, album.Outputs[i], want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if album.Regions[0] != twoPhotos[0] || album.Regions[1] != twoPhotos[1] {
		t.Errorf("regions = %v, want %v", album.Regions, twoPhotos)
	}
	if album.Separator != "#B5E61D" {
		t.Errorf("Separator = %s", album.Separator)
	}
	for i, s := range album.Skew {
		if s != 0 {
			t.Errorf("region %d of an aligned scan rotated by %.2f", i, s)
		}
	}
}

func TestPipeline_ProcessDir_Missing(t *testing.T) {
	p := New(testConfig(), quietLogger())
	if _, err := p.ProcessDir(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ProcessDir should fail for a missing directory")
	}
}

func TestPipeline_Isolation(t *testing.T) {
	scan := createScan(100, 60, green, gray, twoPhotos...)
	loader := memLoader{
		"a.png": scan,
		"c.png": createScan(20, 20, green, gray),
	}
	store := &memStore{}
	p := &Pipeline{Config: testConfig(), Loader: loader, Store: store, Logger: quietLogger()}

	report := p.ProcessFiles(context.Background(), []string{"a.png", "b.png", "c.png"})

	if report.Processed != 2 || report.Failed != 1 {
		t.Fatalf("report: %s", report.Summary())
	}
	if failed := report.Errors(); len(failed) != 1 || failed[0].Source != "b.png" {
		t.Errorf("Errors() = %+v", failed)
	}
	if len(store.saved["a.png"]) != 2 {
		t.Errorf("a.png saved %d regions, want 2", len(store.saved["a.png"]))
	}
	if len(report.Results[2].Outputs) != 0 {
		t.Errorf("blank scan produced outputs %v", report.Results[2].Outputs)
	}
}

func TestPipeline_StoreFailure(t *testing.T) {
	loader := memLoader{"a.png": createScan(100, 60, green, gray, twoPhotos...)}
	store := &memStore{fail: fmt.Errorf("%w: disk full", ErrPersistence)}
	p := &Pipeline{Config: testConfig(), Loader: loader, Store: store, Logger: quietLogger()}

	res := p.ProcessFile(context.Background(), "a.png")
	if !errors.Is(res.Err, ErrPersistence) {
		t.Errorf("error = %v, want ErrPersistence", res.Err)
	}
}

func TestPipeline_DeskewFailurePolicy(t *testing.T) {
	// A black photo has no edges, so its skew cannot be measured.
	black := color.NRGBA{0, 0, 0, 255}
	scan := createScan(60, 40, green, black, detection.BoundingBox{Top: 5, Left: 5, Bottom: 30, Right: 40})
	loader := memLoader{"a.png": scan}

	t.Run("keep", func(t *testing.T) {
		store := &memStore{}
		p := &Pipeline{Config: testConfig(), Loader: loader, Store: store, Logger: quietLogger()}

		res := p.ProcessFile(context.Background(), "a.png")
		if res.Err != nil {
			t.Fatalf("ProcessFile failed: %v", res.Err)
		}
		if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "unrotated") {
			t.Errorf("Warnings = %v", res.Warnings)
		}
		if len(store.saved["a.png"]) != 1 {
			t.Errorf("saved %d regions, want 1", len(store.saved["a.png"]))
		}
	})

	t.Run("fail", func(t *testing.T) {
		cfg := testConfig()
		cfg.Deskew.OnFailure = config.OnFailureFail
		p := &Pipeline{Config: cfg, Loader: loader, Store: &memStore{}, Logger: quietLogger()}

		res := p.ProcessFile(context.Background(), "a.png")
		if !errors.Is(res.Err, deskew.ErrSkewDetection) {
			t.Errorf("error = %v, want ErrSkewDetection", res.Err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Deskew.Enabled = false
		cfg.Deskew.OnFailure = config.OnFailureFail
		p := &Pipeline{Config: cfg, Loader: loader, Store: &memStore{}, Logger: quietLogger()}

		res := p.ProcessFile(context.Background(), "a.png")
		if res.Err != nil || len(res.Warnings) != 0 {
			t.Errorf("ProcessFile = %v, warnings %v", res.Err, res.Warnings)
		}
	})
}

func TestPipeline_AutoSeparator(t *testing.T) {
	white := color.NRGBA{255, 255, 255, 255}
	dark := color.NRGBA{40, 60, 80, 255}
	loader := memLoader{"a.png": createScan(100, 60, white, dark, twoPhotos...)}
	cfg := testConfig()
	cfg.Separator = config.SeparatorAuto
	p := &Pipeline{Config: cfg, Loader: loader, Store: &memStore{}, Logger: quietLogger()}

	res := p.ProcessFile(context.Background(), "a.png")
	if res.Err != nil {
		t.Fatalf("ProcessFile failed: %v", res.Err)
	}
	if res.Separator != "#FFFFFF" {
		t.Errorf("Separator = %s, want #FFFFFF", res.Separator)
	}
	if len(res.Regions) != 2 {
		t.Errorf("got %d regions, want 2", len(res.Regions))
	}
}

func TestPipeline_Canceled(t *testing.T) {
	loader := memLoader{"a.png": createScan(100, 60, green, gray, twoPhotos...)}
	store := &memStore{}
	p := &Pipeline{Config: testConfig(), Loader: loader, Store: store, Logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := p.ProcessFiles(ctx, []string{"a.png", "a.png"})
	if report.Failed != 2 {
		t.Fatalf("report: %s", report.Summary())
	}
	for _, r := range report.Results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", r.Err)
		}
	}
	if len(store.saved) != 0 {
		t.Error("canceled run saved sub-images")
	}
}

func TestPipeline_Split(t *testing.T) {
	p := &Pipeline{Config: testConfig(), Logger: quietLogger()}

	split, err := p.Split(context.Background(), createScan(100, 60, green, gray, twoPhotos...))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if split.Separator != imaging.DefaultSeparator || len(split.Regions) != 2 {
		t.Errorf("Split = %v with %d regions", split.Separator, len(split.Regions))
	}

	if _, err := p.Split(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, imaging.ErrEmptyImage) {
		t.Errorf("empty raster error = %v, want ErrEmptyImage", err)
	}
}
