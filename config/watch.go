package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/mfe-bridge/errors"
)

// debounce is how long the file must stay quiet before it is reloaded.
const debounce = 100 * time.Millisecond

// Watch reloads path whenever it changes and passes each successfully
// loaded configuration to fn. Invalid intermediate states are logged and
// skipped. Watch blocks until ctx is done.
//
// The directory is watched rather than the file so that editors which
// replace the file on save are followed.
func Watch(ctx context.Context, path string, log *zap.Logger, fn func(*Config)) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindUnsupported, err, "create watcher")
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "config path")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "watch "+filepath.Dir(abs))
	}

	var (
		timer  *time.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			// Saves arrive as truncate plus one or more writes; reload once
			// they have settled.
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			settle = timer.C
		case <-settle:
			settle = nil
			if fi, err := os.Stat(abs); err != nil || fi.Size() == 0 {
				log.Debug("config file empty or missing, waiting", zap.String("path", abs))
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config reload failed", zap.String("path", abs), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", abs))
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
