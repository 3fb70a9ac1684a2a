package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultDebounceDuration = 250 * time.Millisecond

// Watcher re-seeds the store when descriptor files in a directory change.
type Watcher struct {
	store            Store
	dir              string
	watcher          *fsnotify.Watcher
	debounceDuration time.Duration
	timer            *time.Timer
	mu               sync.Mutex
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// NewWatcher creates a watcher for dir.
func NewWatcher(store Store, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		store:            store,
		dir:              dir,
		watcher:          fw,
		debounceDuration: defaultDebounceDuration,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

// SetDebounceDuration sets how long to wait for further changes before re-seeding.
func (w *Watcher) SetDebounceDuration(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDuration = d
}

func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	log.Debug().Str("dir", w.dir).Msg("Watching function descriptors")

	w.wg.Add(1)
	go w.eventLoop()

	return nil
}

func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !seedPattern.Match(filepath.Base(event.Name)) {
				continue
			}
			log.Debug().Str("file", event.Name).Msg("Function descriptor changed")
			w.debounceSeed()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) debounceSeed() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDuration, w.reseed)
}

func (w *Watcher) reseed() {
	if w.ctx.Err() != nil {
		return
	}

	n, err := Seed(w.ctx, w.store, w.dir)
	if err != nil {
		log.Error().Err(err).Str("dir", w.dir).Msg("Reloading function descriptors failed")
		return
	}
	log.Info().Int("functions", n).Str("dir", w.dir).Msg("Reloaded function descriptors")
}
