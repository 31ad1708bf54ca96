package ratecard

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ksred/klear-bill/internal/types"
)

// DefaultSearchPaths are tried in order when no explicit path is configured.
var DefaultSearchPaths = []string{
	filepath.Join("config", "rate_card.xlsx"),
	filepath.Join("config", "FO CHARGES FORMULA.xlsx"),
}

// Loader produces a rate card. Cache calls it at most once per successful
// load.
type Loader func() (*RateCard, error)

// Options control where the file loader looks for the workbook.
type Options struct {
	Path        string
	SearchPaths []string
	MinRules    int
}

// Cache holds the process-wide rate card. The first Get loads it, concurrent
// first callers share that single load, and failures are not remembered so
// the next call retries. A load that overlaps a Reset is returned to its
// callers but not stored.
type Cache struct {
	load  Loader
	group singleflight.Group

	mu         sync.RWMutex
	card       *RateCard
	generation uint64
}

func NewCache(load Loader) *Cache {
	return &Cache{load: load}
}

// Get returns the cached card, loading it on first use.
func (c *Cache) Get() (*RateCard, error) {
	c.mu.RLock()
	card := c.card
	c.mu.RUnlock()
	if card != nil {
		return card, nil
	}

	v, err, _ := c.group.Do("rate_card", func() (interface{}, error) {
		c.mu.RLock()
		cached, gen := c.card, c.generation
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded, err := c.load()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		stale := gen != c.generation
		if !stale {
			c.card = loaded
		}
		c.mu.Unlock()
		if stale {
			log.Debug().Str("source", loaded.Source).Msg("rate card reset during load, not cached")
			return loaded, nil
		}

		log.Info().
			Str("source", loaded.Source).
			Int("rules", len(loaded.Rules)).
			Msg("rate card loaded")
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RateCard), nil
}

// Reset drops the cached card so the next Get reloads it.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.card = nil
	c.generation++
	c.mu.Unlock()
}

// FileLoader loads the workbook resolved from opts.
func FileLoader(opts Options) Loader {
	return func() (*RateCard, error) {
		path, err := ResolvePath(opts)
		if err != nil {
			return nil, err
		}

		rules, err := ParseFile(path, opts.MinRules)
		if err != nil {
			return nil, err
		}

		card := New(path, rules)
		if missing := card.MissingKeys(); len(missing) > 0 {
			log.Warn().Strs("missing_keys", missing).Str("source", path).Msg("rate card lacks expected rules")
		}

		return card, nil
	}
}

// ResolvePath picks the rate card file. An explicit path must exist; otherwise
// the first existing search path is used.
func ResolvePath(opts Options) (string, error) {
	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err != nil {
			return "", types.NewConfigError("Rate card not found at %s", opts.Path)
		}
		return opts.Path, nil
	}

	searchPaths := opts.SearchPaths
	if len(searchPaths) == 0 {
		searchPaths = DefaultSearchPaths
	}
	for _, candidate := range searchPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", types.NewConfigError("Rate card not found. Set RATE_CARD_PATH or place file at %s", searchPaths[0])
}
