package taxonomy

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the taxonomy's custom section cache when the registry
// file changes on disk (for example, another fb process registering a
// section). Events are debounced so a burst of writes triggers one
// reload.
type Watcher struct {
	taxonomy *Taxonomy
	path     string
	debounce time.Duration
	logger   *log.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending time.Time
}

// NewWatcher creates a watcher for the taxonomy's registry file.
// If logger is nil, a default logger writing to stderr is used.
func NewWatcher(t *Taxonomy, logger *log.Logger) (*Watcher, error) {
	if t.registry == nil {
		return nil, fmt.Errorf("taxonomy has no registry to watch")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sections] ", log.LstdFlags)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		taxonomy: t,
		path:     t.registry.Path(),
		debounce: 100 * time.Millisecond,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Start begins watching. It returns once the watch is registered; the
// reload loop runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the parent directory: editors and atomic saves replace the
	// file, which drops a watch registered on the file itself.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Printf("Watching %s", w.path)

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop closes the watcher and waits for its goroutines.
func (w *Watcher) Stop() {
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if ready {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if !ready {
				continue
			}
			if err := w.taxonomy.Reload(); err != nil {
				w.logger.Printf("Error reloading sections: %v", err)
				continue
			}
			w.logger.Printf("Reloaded custom sections")
		}
	}
}
