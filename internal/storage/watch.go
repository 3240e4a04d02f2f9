package storage

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher refreshes a Store snapshot when its catalog file changes on disk, so edits made
// by hand or by another process become visible to readers.
type Watcher struct {
	store   *Store
	file    string
	watcher *fsnotify.Watcher
	delay   time.Duration

	refreshMu    sync.Mutex
	refreshTimer *time.Timer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func Watch(store *Store, file string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		store:   store,
		file:    filepath.Clean(file),
		watcher: fw,
		delay:   debounce,
		done:    make(chan struct{}),
	}
	// The directory is watched because atomic saves replace the file inode.
	if err := fw.Add(filepath.Dir(w.file)); err != nil {
		fw.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.refreshMu.Lock()
		if w.refreshTimer != nil {
			w.refreshTimer.Stop()
			w.refreshTimer = nil
		}
		w.refreshMu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleRefresh()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Warn().Err(err).Msg("catalog watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleRefresh() {
	select {
	case <-w.done:
		return
	default:
	}

	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()
	if w.refreshTimer != nil {
		w.refreshTimer.Stop()
	}
	w.refreshTimer = time.AfterFunc(w.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.store.Refresh(ctx)
		w.store.logger.Debug().Str("file", w.file).Msg("catalog snapshot refreshed")
	})
}
