// Package signalfile implements the clock-out signal: a zero-byte file in
// the tracker's directory whose appearance requests flush-and-exit.
package signalfile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Name is the signal file name.
const Name = ".clockout_signal"

// File is the clock-out signal file of one directory.
type File struct {
	path   string
	logger zerolog.Logger
}

// New returns the signal file for dir, resolved to an absolute path.
func New(dir string, logger zerolog.Logger) (*File, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", dir)
	}
	return &File{
		path:   filepath.Join(abs, Name),
		logger: logger.With().Str("component", "signalfile").Logger(),
	}, nil
}

// Path returns the absolute path of the signal file.
func (f *File) Path() string {
	return f.path
}

// Present reports whether the signal file exists.
func (f *File) Present() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Consume removes the signal file and reports whether it was there.
// Removal is the test, so two callers can never both consume one signal.
func (f *File) Consume() (bool, error) {
	err := os.Remove(f.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, errors.Wrap(err, "failed to remove clock-out signal")
	}
}

// RemoveStale deletes a signal file left over from an earlier run.
func (f *File) RemoveStale() error {
	removed, err := f.Consume()
	if err != nil {
		return err
	}
	if removed {
		f.logger.Warn().Str("path", f.path).Msg("Removed stale clock-out signal")
	}
	return nil
}

// Create writes the signal file.
func (f *File) Create() error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create clock-out signal")
	}
	return file.Close()
}

// Watch returns a channel that receives a value soon after the signal file
// is created, until ctx is cancelled. If the directory cannot be watched it
// returns nil and callers rely on polling alone.
func (f *File) Watch(ctx context.Context) <-chan struct{} {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Warn().Err(err).Msg("File watching unavailable, polling only")
		return nil
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		f.logger.Warn().Err(err).Msg("File watching unavailable, polling only")
		return nil
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != Name {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watcher errors are non-fatal; polling still runs.
				f.logger.Debug().Err(err).Msg("File watcher error")
			}
		}
	}()
	return wake
}
