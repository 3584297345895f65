package providers

import "proxyprobe/internal/model"

// GithubProvider fetches the raw-text proxy lists a number of GitHub
// repositories publish and keep roughly up to date. The source catalogue is
// recovered from original_source/src/providers/github.rs (the distillation
// dropped it; spec.md only describes the shape of a provider's source
// list), since it gives the fan-out concurrency story real breadth.
type GithubProvider struct{}

func (GithubProvider) Name() string { return "github" }

func githubRaw(path string) string {
	return "https://raw.githubusercontent.com/" + path
}

func (GithubProvider) Sources() []Source {
	return []Source{
		HTTPSource(githubRaw("zevtyardt/proxy-list/main/http.txt")),
		SocksSource(githubRaw("zevtyardt/proxy-list/main/socks4.txt")),
		SocksSource(githubRaw("zevtyardt/proxy-list/main/socks5.txt")),

		HTTPSource(githubRaw("TheSpeedX/SOCKS-List/master/http.txt")),
		SocksSource(githubRaw("TheSpeedX/SOCKS-List/master/socks4.txt")),
		SocksSource(githubRaw("TheSpeedX/SOCKS-List/master/socks5.txt")),

		HTTPSource(githubRaw("monosans/proxy-list/main/proxies/http.txt")),
		SocksSource(githubRaw("monosans/proxy-list/main/proxies/socks4.txt")),
		SocksSource(githubRaw("monosans/proxy-list/main/proxies/socks5.txt")),

		SocksSource(githubRaw("hookzof/socks5_list/master/proxy.txt")),

		HTTPSource(githubRaw("mmpx12/proxy-list/master/http.txt")),
		HTTPSource(githubRaw("mmpx12/proxy-list/master/https.txt")),
		SocksSource(githubRaw("mmpx12/proxy-list/master/socks4.txt")),
		SocksSource(githubRaw("mmpx12/proxy-list/master/socks5.txt")),

		AllSource(githubRaw("proxifly/free-proxy-list/main/proxies/all/data.txt")),

		HTTPSource(githubRaw("MuRongPIG/Proxy-Master/main/http.txt")),
		SocksSource(githubRaw("MuRongPIG/Proxy-Master/main/socks4.txt")),

		HTTPSource(githubRaw("zloi-user/hideip.me/main/http.txt")),
		HTTPSource(githubRaw("zloi-user/hideip.me/main/https.txt")),
		SocksSource(githubRaw("zloi-user/hideip.me/main/socks4.txt")),
		SocksSource(githubRaw("zloi-user/hideip.me/main/socks5.txt")),
	}
}

func (GithubProvider) Scrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error {
	return PlainTextScrape(body, defaultTypes, emit)
}
