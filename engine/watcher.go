package engine

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-frames/engine/core"
)

// ConfigWatcher pushes a ConfigReloadedEvent whenever the config file is
// written. The file itself is re-read by the engine loop.
type ConfigWatcher struct {
	path     string
	events   *core.EventQueue
	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func NewConfigWatcher(path string, events *core.EventQueue) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file instead of writing it, which drops a
	// watch on the file itself, so watch the directory.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		path:     abs,
		events:   events,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.start()
	return cw, nil
}

func (cw *ConfigWatcher) start() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				core.LogDebug("config %s changed", cw.path)
				if !cw.events.Push(core.ConfigReloadedEvent{Path: cw.path}) {
					core.LogWarn("event queue full, config reload dropped")
				}
			}

		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	var err error
	cw.once.Do(func() {
		close(cw.done)
		cw.wg.Wait()
		err = cw.fsnotify.Close()
	})
	return err
}
