package contextstore

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Watcher rescans the contexts directory on a cron schedule and merges new
// or updated domains into the registry.
type Watcher struct {
	cron     *cron.Cron
	loader   *Loader
	registry *Registry
	logger   *slog.Logger
}

// NewWatcher creates a watcher over loader and registry.
func NewWatcher(loader *Loader, registry *Registry, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cron:     cron.New(),
		loader:   loader,
		registry: registry,
		logger:   logger,
	}
}

// Start schedules the rescan and starts the cron loop. A rescan failure is
// logged and the previously served catalog stays in place.
func (w *Watcher) Start(schedule string) error {
	_, err := w.cron.AddFunc(schedule, w.rescan)
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("context rescan scheduled", "schedule", schedule)
	return nil
}

// Stop stops the cron loop. Does not wait for a running rescan.
func (w *Watcher) Stop() {
	w.cron.Stop()
	w.logger.Info("context rescan stopped")
}

func (w *Watcher) rescan() {
	result, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("context rescan failed", "error", err)
		return
	}
	changed := w.registry.Apply(result, w.logger)
	if len(changed) > 0 || len(result.Failed) > 0 {
		w.logger.Info("context rescan complete",
			"changed", len(changed), "failed", len(result.Failed))
	}
}
