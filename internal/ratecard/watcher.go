package ratecard

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Watcher polls the rate card file and resets the cache when the file
// changes on disk, so a corrected card is picked up without a restart.
type Watcher struct {
	cache    *Cache
	opts     Options
	interval time.Duration

	lastMod time.Time
}

func NewWatcher(cache *Cache, opts Options, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watcher{
		cache:    cache,
		opts:     opts,
		interval: interval,
	}
}

// Start runs the polling loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	logger := log.With().Str("component", "rate_card_watcher").Logger()
	logger.Info().Dur("interval", w.interval).Msg("starting rate card watcher")

	w.lastMod = w.modTime()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down rate card watcher")
			return
		case <-ticker.C:
			if w.check() {
				logger.Info().Msg("rate card changed on disk, cache reset")
			}
		}
	}
}

// check resets the cache if the file's modification time moved. It reports
// whether a reset happened.
func (w *Watcher) check() bool {
	mod := w.modTime()
	if mod.IsZero() || mod.Equal(w.lastMod) {
		return false
	}
	w.lastMod = mod
	w.cache.Reset()
	return true
}

func (w *Watcher) modTime() time.Time {
	path, err := ResolvePath(w.opts)
	if err != nil {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
