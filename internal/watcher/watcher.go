// Package watcher ingests documents dropped into a directory.
package watcher

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"tax-rag/internal/parser"
)

type FileIngester interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// Watcher ingests created or rewritten files once they have been quiet for
// the debounce period. Removed files are ignored since records carry no
// source to delete by.
type Watcher struct {
	watcher    *fsnotify.Watcher
	ingester   FileIngester
	extensions []string
	debounce   time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

func New(ingester FileIngester, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		watcher:    w,
		ingester:   ingester,
		extensions: parser.SupportedExtensions,
		debounce:   debounce,
		pending:    make(map[string]time.Time),
	}, nil
}

// Run watches dir until ctx is done
func (w *Watcher) Run(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	log.Info().Str("dir", dir).Dur("debounce", w.debounce).Msg("Watching for documents")

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("Watcher error")
		case now := <-ticker.C:
			for _, path := range w.due(now) {
				w.ingest(ctx, path)
			}
		}
	}
}

// due removes and returns the files that have been quiet long enough
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	slices.Sort(ready)
	return ready
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	n, err := w.ingester.IngestFile(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Int("ingested", n).Msg("Auto-ingest failed")
		return
	}
	log.Info().Str("file", path).Int("ingested", n).Msg("Auto-ingested document")
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatchedExtension(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
