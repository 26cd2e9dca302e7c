package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/memprune/internal/logging"
)

// Triggerer accepts external trigger signals.
type Triggerer interface {
	Trigger(kind Kind) error
}

// TriggerWatcher turns files created in a directory into triggers. A file
// named after a trigger kind (e.g. "screen_off") fires that trigger and is
// then removed. Other files are ignored.
type TriggerWatcher struct {
	dir    string
	target Triggerer
	log    *logging.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTriggerWatcher creates a watcher for dir, creating it if needed.
func NewTriggerWatcher(dir string, target Triggerer, log *logging.Logger) (*TriggerWatcher, error) {
	if target == nil {
		return nil, fmt.Errorf("trigger target cannot be nil")
	}
	if log == nil {
		log = logging.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trigger directory: %w", err)
	}
	return &TriggerWatcher{
		dir:    dir,
		target: target,
		log:    log,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching. Trigger files already present are processed
// immediately.
func (t *TriggerWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(t.dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", t.dir, err)
	}
	t.watcher = w

	entries, err := os.ReadDir(t.dir)
	if err == nil {
		for _, e := range entries {
			t.handle(filepath.Join(t.dir, e.Name()))
		}
	}

	t.wg.Add(1)
	go t.run()
	return nil
}

func (t *TriggerWatcher) run() {
	defer t.wg.Done()

	for {
		select {
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				t.handle(ev.Name)
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.log.Error("trigger watcher: %v", err)
		case <-t.stopCh:
			return
		}
	}
}

func (t *TriggerWatcher) handle(path string) {
	kind, err := ParseKind(filepath.Base(path))
	if err != nil {
		return
	}
	// Removal claims the trigger; a second event for the same file finds
	// nothing to remove and is dropped.
	if err := os.Remove(path); err != nil {
		return
	}
	if err := t.target.Trigger(kind); err != nil {
		if errors.Is(err, ErrBelowThreshold) || errors.Is(err, ErrDisabled) {
			t.log.Debug("%s trigger not run: %v", kind, err)
			return
		}
		t.log.Error("%s trigger failed: %v", kind, err)
		return
	}
	t.log.Debug("%s trigger queued", kind)
}

// Stop halts the watcher.
func (t *TriggerWatcher) Stop() error {
	close(t.stopCh)
	var err error
	if t.watcher != nil {
		err = t.watcher.Close()
	}
	t.wg.Wait()
	return err
}

// RequestTrigger asks a daemon watching dir to fire kind.
func RequestTrigger(dir string, kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create trigger directory: %w", err)
	}
	path := filepath.Join(dir, string(kind))
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("failed to write trigger file: %w", err)
	}
	return nil
}
