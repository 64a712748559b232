package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the engine configuration whenever its backing file
// changes on disk, debouncing rapid successive writes from editors that
// save via a temp-file-and-rename dance.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(EngineConfig)
	onError  func(error)

	mu   sync.Mutex
	stop chan struct{}
}

// NewWatcher builds a Watcher for the config file at path. onChange is
// invoked with the freshly loaded and validated config after every
// debounced file event; onError is invoked instead if the reload fails
// validation, leaving the previous configuration active.
func NewWatcher(path string, onChange func(EngineConfig), onError func(error)) *Watcher {
	return &Watcher{path: path, onChange: onChange, onError: onError}
}

// Start begins watching. It watches the containing directory rather
// than the file itself so that editor save patterns which replace the
// inode are still observed.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.watcher = fw
	w.stop = make(chan struct{})
	w.mu.Unlock()

	go w.loop(fw, w.stop)
	return nil
}

func (w *Watcher) loop(fw *fsnotify.Watcher, stop chan struct{}) {
	const debounce = 150 * time.Millisecond
	var timer *time.Timer

	fire := func() {
		cfg, err := Load(w.path)
		if err != nil {
			if w.onError != nil {
				w.onError(err)
			}
			return
		}
		if w.onChange != nil {
			w.onChange(cfg)
		}
	}

	for {
		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, fire)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Stop releases the underlying filesystem watch.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
