package providers

import "proxyprobe/internal/model"

// ProxyscrapeProvider fetches the Proxyscrape public API's plain-text
// ip:port list.
type ProxyscrapeProvider struct{}

func (ProxyscrapeProvider) Name() string { return "proxyscrape" }

func (ProxyscrapeProvider) Sources() []Source {
	return []Source{
		AllSource("https://api.proxyscrape.com/v4/free-proxy-list/get?request=display_proxies&proxy_format=ipport&format=text"),
	}
}

func (ProxyscrapeProvider) Scrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error {
	return PlainTextScrape(body, defaultTypes, emit)
}

// All returns the full registered provider set, in a fixed order (no
// reflection needed, per spec §9 "Dynamic provider dispatch").
func All() []Provider {
	return []Provider{
		FreeProxyListProvider{},
		GithubProvider{},
		ProxyscrapeProvider{},
	}
}
