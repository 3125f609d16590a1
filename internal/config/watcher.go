package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports changes to the flow definition file. It watches the
// containing directory, not the file, since editors commonly replace files
// by rename. Change notifications arrive on Changes; the consumer is
// expected to debounce them.
type Watcher struct {
	target  string
	watcher *fsnotify.Watcher
	changes chan string
	log     zerolog.Logger
}

// NewWatcher starts watching the flow file. Close to stop.
func NewWatcher(path string, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		target:  abs,
		watcher: fw,
		changes: make(chan string, 8),
		log:     log.With().Str("component", "watcher").Logger(),
	}
	return w, nil
}

// Changes delivers the path of the flow file every time it changes.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run pumps filesystem events until the context ends or the watcher
// closes. It filters to writes, creates, and renames of the target file.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("flow file changed")
			select {
			case w.changes <- w.target:
			default:
				// A notification is already pending; one is enough.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
