package providers

import "proxyprobe/internal/model"

// FreeProxyListProvider scrapes the free-proxy-list.net family of sites,
// whose pages render candidates as an HTML table (grounded on the original
// scraper.rs draft's use of an HTML-table selector crate).
type FreeProxyListProvider struct{}

func (FreeProxyListProvider) Name() string { return "free-proxy-list" }

func (FreeProxyListProvider) Sources() []Source {
	return []Source{
		AllSource("https://free-proxy-list.net/"),
		AllSource("https://www.sslproxies.org/"),
		AllSource("https://www.us-proxy.org/"),
	}
}

func (FreeProxyListProvider) Scrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error {
	return TableScrape(body, defaultTypes, emit)
}
