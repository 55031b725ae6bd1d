// Package inbox turns a watched folder into an unattended export queue.
// Dropping a JSON manifest into the folder exports the files it names;
// the manifest is then renamed to .done or .failed.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satindergrewal/echoframe/internal/export"
)

// Manifest suffixes.
const (
	manifestExt = ".json"
	doneExt     = ".done"
	failedExt   = ".failed"
)

// Manifest describes one export. Relative paths are resolved against the
// manifest's directory.
type Manifest struct {
	Audio      string `json:"audio"`
	Background string `json:"background"`
	Avatar     string `json:"avatar,omitempty"`
	Lyrics     string `json:"lyrics,omitempty"`
	Title      string `json:"title,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
}

// ReadManifest parses the manifest at path into an export request.
func ReadManifest(path string) (export.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return export.Request{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return export.Request{}, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	if m.Audio == "" || m.Background == "" {
		return export.Request{}, fmt.Errorf("manifest %s: audio and background are required", filepath.Base(path))
	}

	dir := filepath.Dir(path)
	return export.Request{
		AudioPath:      resolve(dir, m.Audio),
		BackgroundPath: resolve(dir, m.Background),
		AvatarPath:     resolve(dir, m.Avatar),
		LyricsPath:     resolve(dir, m.Lyrics),
		Title:          m.Title,
		OutputDir:      resolve(dir, m.OutputDir),
	}, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Handler runs one export. A nil error marks the manifest done.
type Handler func(ctx context.Context, req export.Request) error

// Options configures a Watcher.
type Options struct {
	// Quiet is how long a manifest must go unmodified before it is picked
	// up. Defaults to 2s.
	Quiet  time.Duration
	Logger *log.Logger
}

// Watcher feeds manifests from one directory to a handler, one at a time.
type Watcher struct {
	dir    string
	handle Handler
	quiet  time.Duration
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	queued  map[string]bool
	queue   chan string
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, handle Handler, opts Options) *Watcher {
	if opts.Quiet <= 0 {
		opts.Quiet = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Watcher{
		dir:     dir,
		handle:  handle,
		quiet:   opts.Quiet,
		logger:  opts.Logger,
		pending: make(map[string]*time.Timer),
		queued:  make(map[string]bool),
		queue:   make(chan string, 64),
	}
}

// Run watches the directory until ctx is cancelled. Manifests already
// present are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Printf("Inbox: watching %s", w.dir)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(ctx)
	}()
	defer wg.Wait()
	defer w.stopTimers()

	if err := w.scan(); err != nil {
		w.logger.Printf("Inbox: initial scan: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("Inbox: watcher error: %v", err)
		}
	}
}

// scan schedules every manifest already in the directory, oldest name first.
func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.schedule(filepath.Join(w.dir, name))
	}
	return nil
}

// schedule (re)starts the quiet timer for a manifest. Non-manifests are
// ignored.
func (w *Watcher) schedule(path string) {
	if !strings.EqualFold(filepath.Ext(path), manifestExt) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.quiet)
		return
	}
	w.pending[path] = time.AfterFunc(w.quiet, func() { w.enqueue(path) })
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	if w.queued[path] {
		w.mu.Unlock()
		return
	}
	w.queued[path] = true
	w.mu.Unlock()

	select {
	case w.queue <- path:
	default:
		w.logger.Printf("Inbox: queue full, dropping %s until it changes again", filepath.Base(path))
		w.mu.Lock()
		delete(w.queued, path)
		w.mu.Unlock()
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			w.process(ctx, path)
			w.mu.Lock()
			delete(w.queued, path)
			w.mu.Unlock()
		}
	}
}

// process runs one manifest and renames it by outcome.
func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	name := filepath.Base(path)

	req, err := ReadManifest(path)
	if err == nil {
		w.logger.Printf("Inbox: exporting %s", name)
		err = w.handle(ctx, req)
	}
	if ctx.Err() != nil {
		// Shutting down; leave the manifest for the next run.
		return
	}

	suffix := doneExt
	if err != nil {
		suffix = failedExt
		w.logger.Printf("Inbox: %s failed: %v", name, err)
	} else {
		w.logger.Printf("Inbox: %s done", name)
	}
	if err := os.Rename(path, path+suffix); err != nil {
		w.logger.Printf("Inbox: rename %s: %v", name, err)
	}
}
