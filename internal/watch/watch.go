// Package watch re-runs a callback whenever a source file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the file must stay quiet before fn runs again.
const DefaultDebounce = 200 * time.Millisecond

type options struct {
	debounce time.Duration
	logger   zerolog.Logger
}

// Option configures Run.
type Option func(*options)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithLogger sets the logger used for watch events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run calls fn once, then again after every debounced write, create or rename of path,
// until ctx is done. fn always runs on the calling goroutine.
//
// The parent directory is watched rather than the file itself, so editors that replace
// the file on save keep triggering.
func Run(ctx context.Context, path string, fn func(), opts ...Option) error {
	o := options{debounce: DefaultDebounce, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	o.logger.Debug().Str("path", abs).Msg("watching")

	fn()

	timer := time.NewTimer(o.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			o.logger.Debug().Str("op", event.Op.String()).Msg("source changed")
			timer.Reset(o.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			fn()
		}
	}
}
