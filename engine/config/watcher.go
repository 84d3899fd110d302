package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/prisma/engine/core"
)

// Watcher reloads the configuration file when it changes on disk. Every
// successful reload bumps a generation counter; the frame loop compares
// generations to pick up changes at a frame boundary instead of
// mid-frame.
type Watcher struct {
	path       string
	fsnotify   *fsnotify.Watcher
	done       chan struct{}
	generation atomic.Uint64

	mutex   sync.RWMutex
	current *Config
}

func NewWatcher(path string, initial *Config) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		current:  initial,
	}

	if err := fsWatch.Add(path); err != nil {
		// The file may not exist yet; the defaults stay active.
		core.LogWarn("config watch on %s unavailable: %s", path, err.Error())
	}

	go w.start()
	return w, nil
}

// Generation increases by one for every successful reload.
func (w *Watcher) Generation() uint64 {
	return w.generation.Load()
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.current
}

func (w *Watcher) Close() error {
	close(w.done)
	return nil
}

func (w *Watcher) start() {
	for {
		select {
		case e := <-w.fsnotify.Events:
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.reload()

		case e := <-w.fsnotify.Errors:
			core.LogError(e.Error())

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep running on the previous configuration.
		core.LogError("config reload failed: %s", err.Error())
		return
	}

	w.mutex.Lock()
	w.current = cfg
	w.mutex.Unlock()
	w.generation.Add(1)

	core.LogInfo("config reloaded from %s (generation %d)", w.path, w.generation.Load())
}
