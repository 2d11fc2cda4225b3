package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a RouterConfig from disk every time the underlying file
// changes, handing the new value to an OnReload callback. Load errors
// during a reload are reported but do not stop the watcher: the previous
// configuration stays in effect until a valid one replaces it.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*RouterConfig)
	onError  func(error)
	done     chan struct{}
}

// NewWatcher starts watching path for changes. Call Close to stop.
func NewWatcher(path string, onReload func(*RouterConfig), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}

	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		watcher:  fsw,
		onReload: onReload,
		onError:  onError,
		done:     make(chan struct{}),
	}

	go w.loop()

	return w, nil
}

// Close stops the watcher and releases the underlying inotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}

			if w.onReload != nil {
				w.onReload(cfg)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}
