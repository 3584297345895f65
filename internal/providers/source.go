// Package providers implements the Providers component: per-source
// HTML/text fetch with redirect following, parsed into candidate Proxy
// values (spec §4.3).
package providers

import (
	"time"

	"proxyprobe/internal/model"
)

// defaultTimeout is the per-source timeout unless a provider overrides it.
const defaultTimeout = 3 * time.Second

// Source names one URL to fetch, the protocols initially plausible for any
// candidate it yields, and a per-source timeout.
type Source struct {
	URL          string
	DefaultTypes []model.Protocol
	Timeout      time.Duration
}

func withDefaultTimeout(s Source) Source {
	if s.Timeout == 0 {
		s.Timeout = defaultTimeout
	}
	return s
}

// HTTPSource builds a Source whose candidates are plausibly HTTP-class
// proxies: {Http(Unknown), Https, Connect(80), Connect(25)}.
func HTTPSource(url string) Source {
	return withDefaultTimeout(Source{
		URL: url,
		DefaultTypes: []model.Protocol{
			model.HTTP(model.AnonymityUnknown),
			model.HTTPS(),
			model.Connect(80),
			model.Connect(25),
		},
	})
}

// SocksSource builds a Source whose candidates are plausibly SOCKS-class
// proxies: {Socks4, Socks5}.
func SocksSource(url string) Source {
	return withDefaultTimeout(Source{
		URL:          url,
		DefaultTypes: []model.Protocol{model.Socks4(), model.Socks5()},
	})
}

// AllSource builds a Source whose candidates are plausibly any protocol:
// {Http(Unknown), Https, Socks4, Socks5, Connect(25), Connect(80)}.
func AllSource(url string) Source {
	return withDefaultTimeout(Source{
		URL: url,
		DefaultTypes: []model.Protocol{
			model.HTTP(model.AnonymityUnknown),
			model.HTTPS(),
			model.Socks4(),
			model.Socks5(),
			model.Connect(25),
			model.Connect(80),
		},
	})
}
