// Package validator implements the Validator component: consumes a stream
// of candidate Proxy values, probes each against HTTP/HTTPS judges and raw
// SOCKS/CONNECT handshakes, and re-emits only proxies with at least one
// confirmed protocol (spec §4.7).
package validator

import (
	"time"

	"proxyprobe/internal/model"
	"proxyprobe/internal/perrors"
)

// Config controls one validate run.
type Config struct {
	ConcurrencyLimit int
	RequestTimeout   time.Duration
	Types            []model.Protocol // required; empty is a fatal EmptyTypeFilter
	MaxAttempts      int              // judge retries per protocol probe
}

// DefaultConfig matches original_source/src/validator/config.rs's Default impl.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: 50,
		RequestTimeout:   3 * time.Second,
		MaxAttempts:      1,
	}
}

func (c Config) validate() error {
	if len(c.Types) == 0 {
		return perrors.NewConfigError(perrors.ErrorEmptyTypeFilter, "validator: types filter is empty", nil)
	}
	return nil
}
