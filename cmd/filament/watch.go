package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"filament/internal/config"
	"filament/internal/driver"
	"filament/internal/pipeline"
)

// settleDelay merges the bursts of events an editor produces on save.
const settleDelay = 100 * time.Millisecond

var errWatchClosed = errors.New("watch: watcher closed")

// fileWatcher reports changes to a set of files. It watches their
// directories so that files replaced through a rename are still seen.
type fileWatcher struct {
	w     *fsnotify.Watcher
	files map[string]bool
	dirs  map[string]bool
	delay time.Duration
}

func newFileWatcher() (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	return &fileWatcher{
		w:     w,
		files: make(map[string]bool),
		dirs:  make(map[string]bool),
		delay: settleDelay,
	}, nil
}

// set replaces the watched files.
func (fw *fileWatcher) set(paths []string) error {
	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range fw.dirs {
		if !dirs[d] {
			// The directory may be gone already.
			_ = fw.w.Remove(d)
			delete(fw.dirs, d)
		}
	}
	for d := range dirs {
		if fw.dirs[d] {
			continue
		}
		if err := fw.w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
		fw.dirs[d] = true
	}
	fw.files = files
	return nil
}

func (fw *fileWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return fw.files[filepath.Clean(ev.Name)]
}

// next blocks until a watched file changes and returns its path. Events
// that follow each other within the settle delay count as one change.
func (fw *fileWatcher) next(ctx context.Context) (string, error) {
	var changed string
	var quiet <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-fw.w.Events:
			if !ok {
				return "", errWatchClosed
			}
			if !fw.relevant(ev) {
				continue
			}
			if changed == "" {
				changed = ev.Name
			}
			quiet = time.After(fw.delay)
		case err, ok := <-fw.w.Errors:
			if !ok {
				return "", errWatchClosed
			}
			return "", fmt.Errorf("watch: %w", err)
		case <-quiet:
			return changed, nil
		}
	}
}

func (fw *fileWatcher) close() error { return fw.w.Close() }

// inputs lists the files a compilation depends on: every source file it
// read, or the input alone when loading failed, and the bindings file.
func inputs(opts *config.Options, res *driver.Result) []string {
	var out []string
	if res != nil && res.Files != nil {
		out = res.Files.Paths()
	}
	if len(out) == 0 {
		out = append(out, opts.Input)
	}
	if opts.BindingsPath != "" {
		out = append(out, opts.BindingsPath)
	}
	return out
}

// watch compiles again every time one of the files of the previous
// compilation changes, until ctx is cancelled. Compilation errors are
// reported and do not end the loop.
func watch(ctx context.Context, c *compiler) error {
	fw, err := newFileWatcher()
	if err != nil {
		return err
	}
	defer fw.close()
	for {
		res, err := c.compile(ctx)
		var exit *exitError
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil && !errors.As(err, &exit):
			return err
		}
		if err := fw.set(inputs(c.opts, res)); err != nil {
			return err
		}
		if res != nil {
			fmt.Fprintf(c.stderr, "compiled in %s, ", res.Timings.Sum(pipeline.Stages...).Round(time.Millisecond))
		}
		fmt.Fprintf(c.stderr, "watching %d files\n", len(fw.files))
		changed, err := fw.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintf(c.stderr, "%s changed\n", changed)
	}
}
