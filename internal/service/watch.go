package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ── Watchers (document file + refresh schedule) ───────────

// reloadDebounce coalesces the burst of writes an editor makes on save.
const reloadDebounce = 500 * time.Millisecond

// Watch reloads the open document whenever its file is written, and, when
// schedule is a non-empty cron expression, refreshes the data source on
// that schedule. Any previous watcher is stopped first.
func (s *PreviewService) Watch(ctx context.Context, schedule string) error {
	s.Stop()

	path := s.DocumentPath()
	if path == "" {
		return ErrNoDocument
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(schedule, func() {
			log.Debug().Str("document", path).Msg("scheduled refresh")
			if err := s.Refresh(ctx); err != nil {
				log.Error().Err(err).Str("document", path).Msg("scheduled refresh failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
		}
		c.Start()
		s.cronSched = c
		log.Info().Str("schedule", schedule).Msg("refresh scheduled")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.stopLocked()
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors often replace the file, so the directory is watched
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		s.stopLocked()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	s.watcher = watcher

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				abs, _ := filepath.Abs(event.Name)
				if abs != path {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if watchCtx.Err() != nil {
						return
					}
					log.Info().Str("document", path).Msg("document changed, reloading")
					if err := s.Reload(ctx); err != nil {
						log.Error().Err(err).Str("document", path).Msg("reload failed")
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("document watcher error")
			}
		}
	}()

	log.Info().Str("document", path).Msg("watching document")
	return nil
}

// WaitRunning blocks until running reloads and refreshes finish or ctx is
// cancelled.
func (s *PreviewService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down the watcher and scheduler. It is safe to call repeatedly.
func (s *PreviewService) Stop() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopLocked()
}

func (s *PreviewService) stopLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
