// Package fetcher implements the Fetcher component: fan-out crawl of
// registered provider sources with bounded concurrency, deduplication, geo
// filtering, and lazy delivery (spec §4.4).
package fetcher

import "time"

// Config controls one Gather run. Gather uses the Config as given and
// substitutes no defaults for zero values (EnforceUniqueIP and
// EnableGeoLookup default to true, which a Go zero-value bool can't
// represent, so callers start from DefaultConfig()). A ConcurrencyLimit of
// zero or less runs with a single permit.
type Config struct {
	EnforceUniqueIP   bool
	ConcurrencyLimit  int
	RequestTimeout    time.Duration
	EnableGeoLookup   bool
	Countries         []string // ISO alpha-2; empty = no country filter
}

// DefaultConfig matches original_source/src/fetcher/config.rs's Default impl.
func DefaultConfig() Config {
	return Config{
		EnforceUniqueIP:  true,
		ConcurrencyLimit: 10,
		RequestTimeout:   3 * time.Second,
		EnableGeoLookup:  true,
	}
}
