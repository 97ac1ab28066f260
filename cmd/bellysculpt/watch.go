package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/bellysculpt/internal/character"
	"github.com/Faultbox/bellysculpt/internal/logger"
	"github.com/Faultbox/bellysculpt/internal/scheduler"
)

// watchSettle is how long a parameter file must stay quiet before it is
// read. Editors often truncate and then write in separate events.
const watchSettle = 200 * time.Millisecond

var errEmptyParams = errors.New("parameter file is empty")

// watch re-inflates a character whenever its parameter file is written.
// Controllers are only touched from this goroutine from here on.
func watch(ctx context.Context, jobs []*job) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	byPath := make(map[string]*job)
	dirs := make(map[string]bool)
	for _, j := range jobs {
		if j.paramsPath == "" {
			continue
		}
		abs, err := filepath.Abs(j.paramsPath)
		if err != nil {
			return err
		}
		byPath[abs] = j
		// Editors often replace files, so watch the directory.
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := w.Add(dir); err != nil {
				return err
			}
			dirs[dir] = true
		}
	}
	if len(byPath) == 0 {
		logger.Warn("nothing to watch, pass parameter files with -params")
		return nil
	}
	logger.Info("watching parameter files", zap.Int("files", len(byPath)))

	timers := scheduler.NewDebouncer(time.Now)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			timers.Poll()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(ev.Name)
			j, found := byPath[path]
			if !found {
				continue
			}
			timers.Schedule(path, watchSettle, func() {
				err := reinflate(ctx, j)
				switch {
				case errors.Is(err, errEmptyParams):
					logger.Debug("skipping empty parameter file", zap.String("path", path))
				case err != nil:
					logger.Warn("re-inflating", zap.String("character", j.id), zap.Error(err))
				default:
					printStats(j)
				}
			})
		}
	}
}

// reinflate reloads the job's parameters and runs a pass with them. A file
// caught between truncation and rewrite is left alone.
func reinflate(ctx context.Context, j *job) error {
	if fi, err := os.Stat(j.paramsPath); err == nil && fi.Size() == 0 {
		return errEmptyParams
	}
	shape, err := j.loadShape()
	if err != nil {
		return err
	}
	j.ctl.SetShape(shape)
	j.ctl.Inflate(character.Flags{})
	return settle(ctx, j.ctl)
}
