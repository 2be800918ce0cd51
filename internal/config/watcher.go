package config

import (
	"path/filepath"
	"time"

	"signet/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the event bursts editors produce when saving.
const watchDebounce = 500 * time.Millisecond

// Watcher reloads a Registry when its configuration changes on disk. The
// configuration directory is watched rather than the file itself so atomic
// saves (write to temp, rename over) keep being observed.
type Watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher
	stop     chan struct{}

	// onReload, when set, runs after every successful reload.
	onReload func()
}

// NewWatcher starts watching the registry's configuration directory.
// Call Stop when done.
func NewWatcher(registry *Registry, onReload func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(registry.Path()); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		registry: registry,
		fsw:      fsw,
		stop:     make(chan struct{}),
		onReload: onReload,
	}

	go w.loop()

	logging.Debug("Config", "Watching %s for configuration changes", registry.Path())

	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("Config", "Watcher error: %v", err)
		case <-timerChan(timer):
			timer = nil
			w.reload()
		case <-w.stop:
			return
		}
	}
}

// relevant filters for the files the loader actually reads.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	return base == configFileName || base == dotenvFileName
}

// reload swaps in the new configuration, keeping the last good snapshot when
// the new file does not load.
func (w *Watcher) reload() {
	if err := w.registry.Reload(); err != nil {
		logging.Warn("Config", "Configuration change rejected, keeping previous: %v", err)
		return
	}

	w.registry.logReloaded()

	if w.onReload != nil {
		w.onReload()
	}
}

// Stop terminates the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
}

func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
