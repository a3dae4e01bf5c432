package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"nsref/internal/core/watcher"
	"nsref/internal/shared/observability"
	"nsref/internal/shared/util"
	"nsref/internal/ui/report"
)

// watch performs an initial sync, then rescans changed files until ctx is
// cancelled.
func (c *command) watch(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	initial, err := c.session.Sync(ctx)
	if err != nil {
		return err
	}
	if err := c.out.Render(initial); err != nil {
		return err
	}

	limiter := util.NewLimiter(c.cfg.Watch.RescanPerSecond, c.cfg.Watch.RescanBurst)
	var renderMu sync.Mutex

	w, err := watcher.New(
		c.cfg.Watch.Debounce,
		c.cfg.Exclude.Dirs,
		c.cfg.Exclude.Files,
		c.cfg.Extensions,
		func(paths []string) {
			batch := c.rescan(ctx, limiter, paths)
			renderMu.Lock()
			defer renderMu.Unlock()
			if err := c.out.Render(batch); err != nil {
				slog.Warn("failed to render change batch", "error", err)
			}
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()

	roots := c.session.Namespaces().Roots()
	if err := w.Watch(roots); err != nil {
		return err
	}
	slog.Info("watching for changes", "roots", len(roots), "session", c.session.ID())

	<-ctx.Done()
	return ctx.Err()
}

func (c *command) rescan(ctx context.Context, limiter *util.Limiter, paths []string) report.ChangeBatch {
	batch := report.ChangeBatch{Paths: paths}
	for _, path := range paths {
		if !limiter.Allow(1) {
			observability.RescansThrottledTotal.Inc()
			if err := limiter.Wait(ctx, 1); err != nil {
				batch.Failures = append(batch.Failures, path+": "+err.Error())
				continue
			}
		}
		if err := c.session.Invalidate(path); err != nil {
			slog.Warn("failed to invalidate module", "path", path, "error", err)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			batch.Removed++
			continue
		}
		if _, err := c.session.ScanFile(ctx, path); err != nil {
			batch.Failures = append(batch.Failures, path+": "+err.Error())
			continue
		}
		batch.Rescanned++
	}
	return batch
}
