package filewatcher

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/sammwyy/easel/api"
)

// Op is the kind of change seen on a watched file
type Op string

// File operations reported to subscribers
const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Event describes one change to a file in the watched directory
type Event struct {
	Path string
	Op   Op
}

// Handler receives file events on the watcher goroutine
type Handler func(event Event)

// MatchFunc decides which file names are reported
type MatchFunc func(name string) bool

// FileWatcher watches a directory and distributes changes of matching files
// to subscribers
type FileWatcher struct {
	dir         string
	match       MatchFunc
	watcher     *fsnotify.Watcher
	handlers    []Handler
	mutex       sync.RWMutex
	logger      api.Logger
	started     bool
	stopChannel chan struct{}
	done        chan struct{}
}

// NewFileWatcher creates a watcher for dir. A nil match reports *.json files.
func NewFileWatcher(dir string, match MatchFunc, logger api.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if match == nil {
		match = func(name string) bool {
			return filepath.Ext(name) == ".json"
		}
	}

	return &FileWatcher{
		dir:         dir,
		match:       match,
		watcher:     watcher,
		logger:      logger,
		stopChannel: make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Subscribe registers a handler for file events
func (fw *FileWatcher) Subscribe(handler Handler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// Start starts the file watcher
func (fw *FileWatcher) Start() error {
	if err := fw.watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to add directory to watcher: %w", err)
	}

	fw.started = true
	go fw.watchLoop()
	fw.logger.Info("FileWatcher started", "dir", fw.dir)
	return nil
}

// Stop stops the file watcher and waits for the loop to exit
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChannel:
		return nil
	default:
	}
	close(fw.stopChannel)

	if err := fw.watcher.Close(); err != nil {
		fw.logger.Error("Failed to close fsnotify watcher", "error", err)
	}
	if fw.started {
		<-fw.done
	}

	fw.logger.Info("FileWatcher stopped")
	return nil
}

// watchLoop is the main event loop for file watching
func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)

	for {
		select {
		case <-fw.stopChannel:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

// handleEvent translates an fsnotify event and hands it to subscribers
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if !fw.match(filepath.Base(event.Name)) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	fw.mutex.RLock()
	handlers := append([]Handler(nil), fw.handlers...)
	fw.mutex.RUnlock()

	fw.logger.Debug("File changed", "path", event.Name, "op", op)
	for _, handler := range handlers {
		handler(Event{Path: event.Name, Op: op})
	}
}
