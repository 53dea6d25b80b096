package batch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Watch processes scans as they appear in dir until ctx is canceled.
//
// A file is picked up when it is created or written and its name matches
// Config.Patterns, then processed once it has been quiet for
// Config.Watch.Debounce. Each scan is processed at most once per run. handle,
// if non-nil, receives every result; it may be called from several
// goroutines.
func (p *Pipeline) Watch(ctx context.Context, dir string, handle func(Result)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	p.logger().Printf("Watching %s (debounced) ...", dir)

	debounce := p.Config.Watch.Debounce
	tick := debounce / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var g errgroup.Group
	g.SetLimit(p.Config.Workers)
	defer g.Wait()

	pending := map[string]time.Time{}
	done := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if done[ev.Name] || !MatchesPatterns(filepath.Base(ev.Name), p.Config.Patterns) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			p.startReady(ctx, &g, pending, done, debounce, handle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger().Printf("watch error: %v", err)
		}
	}
}

// startReady hands every pending file that has been quiet for debounce to a
// worker of g. It never blocks: when all workers are busy the file stays
// pending and is retried on the next tick.
func (p *Pipeline) startReady(ctx context.Context, g *errgroup.Group, pending map[string]time.Time, done map[string]bool, debounce time.Duration, handle func(Result)) {
	now := time.Now()
	for path, t := range pending {
		if now.Sub(t) < debounce {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			delete(pending, path)
			continue
		}
		path := path
		started := g.TryGo(func() error {
			res := p.ProcessFile(ctx, path)
			if handle != nil {
				handle(res)
			}
			return nil
		})
		if !started {
			continue
		}
		delete(pending, path)
		done[path] = true
	}
}
