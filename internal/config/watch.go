package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

var watchDebounce = 250 * time.Millisecond

// Watch reloads the config at path whenever it changes and passes the result
// to onChange; watcher failures arrive with a nil config. The directory is
// watched rather than the file so editors that save by rename are picked up.
// The returned channel closes when ctx ends.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) (<-chan struct{}, error) {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	done := make(chan struct{})
	go func() {
		defer watcher.Close()
		defer close(done)

		debounceTimer := time.NewTimer(watchDebounce)
		if !debounceTimer.Stop() {
			<-debounceTimer.C
		}
		defer debounceTimer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(watchDebounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onChange(nil, fmt.Errorf("config watcher: %w", err))

			case <-debounceTimer.C:
				cfg, err := LoadFile(path)
				onChange(cfg, err)
			}
		}
	}()
	return done, nil
}
