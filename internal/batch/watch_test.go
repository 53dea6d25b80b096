package batch

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestPipeline_Watch(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Watch.Debounce = 50 * time.Millisecond
	p := New(cfg, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var results []Result
	got := make(chan struct{}, 4)

	errc := make(chan error, 1)
	go func() {
		errc <- p.Watch(ctx, dir, func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			got <- struct{}{}
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "notes.txt", "ignored")
	path := writeScan(t, dir, "album.png", createScan(100, 60, green, gray, twoPhotos...))

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the scan to be processed")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if res.Source != path || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Outputs) != 2 || filepath.Dir(res.Outputs[0]) != filepath.Join(dir, DefaultOutputDirName) {
		t.Errorf("Outputs = %v", res.Outputs)
	}
}

func TestPipeline_Watch_MissingDir(t *testing.T) {
	p := New(testConfig(), quietLogger())
	if err := p.Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("Watch should fail for a missing directory")
	}
}

func TestPipeline_StartReady_WorkersBusy(t *testing.T) {
	dir := t.TempDir()
	path := writeScan(t, dir, "album.png", createScan(100, 60, green, gray, twoPhotos...))
	p := New(testConfig(), quietLogger())

	var g errgroup.Group
	g.SetLimit(1)
	release := make(chan struct{})
	g.Go(func() error {
		<-release
		return nil
	})

	pending := map[string]time.Time{path: time.Now().Add(-time.Minute)}
	done := map[string]bool{}
	handled := make(chan Result, 1)
	handle := func(r Result) { handled <- r }

	returned := make(chan struct{})
	go func() {
		p.startReady(context.Background(), &g, pending, done, time.Second, handle)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("startReady blocked while every worker was busy")
	}

	if _, ok := pending[path]; !ok || done[path] {
		t.Fatalf("busy pool: pending=%v done=%v, want the file still pending", pending, done)
	}

	close(release)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	p.startReady(context.Background(), &g, pending, done, time.Second, handle)
	if _, ok := pending[path]; ok || !done[path] {
		t.Fatalf("free pool: pending=%v done=%v, want the file started", pending, done)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-handled:
		if r.Source != path || r.Err != nil {
			t.Errorf("result = %+v", r)
		}
	default:
		t.Error("handle was not called")
	}
}

func TestPipeline_StartReady_Debounce(t *testing.T) {
	dir := t.TempDir()
	fresh := writeScan(t, dir, "fresh.png", createScan(10, 10, green, gray))
	gone := filepath.Join(dir, "gone.png")
	p := New(testConfig(), quietLogger())

	var g errgroup.Group
	pending := map[string]time.Time{
		fresh: time.Now(),
		gone:  time.Now().Add(-time.Minute),
	}
	done := map[string]bool{}

	p.startReady(context.Background(), &g, pending, done, time.Minute, nil)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if _, ok := pending[fresh]; !ok {
		t.Error("file still being written was started")
	}
	if _, ok := pending[gone]; ok || done[gone] {
		t.Error("vanished file was not dropped")
	}
}
