package providers

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"proxyprobe/internal/model"
)

// Provider is the capability set every concrete provider implements:
// its fixed Source list, and how to parse a fetched body into candidates.
type Provider interface {
	Name() string
	Sources() []Source
	Scrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error
}

// TableScrape implements the "table scraper" shape (free-proxy-list family
// sites): locate table > tbody, iterate rows, first column is IPv4, second
// is the port.
func TableScrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return err
	}

	doc.Find("table > tbody > tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		ipText := strings.TrimSpace(cells.Eq(0).Text())
		portText := strings.TrimSpace(cells.Eq(1).Text())

		proxy, ok := parseIPPort(ipText, portText, defaultTypes)
		if !ok {
			return true
		}
		return emit(proxy)
	})
	return nil
}

// PlainTextScrape implements the "plain-text scraper" shape (GitHub raw
// files, Proxyscrape API): one "ip:port" candidate per line.
func PlainTextScrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		host, port, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		proxy, ok := parseIPPort(host, port, defaultTypes)
		if !ok {
			continue
		}
		if !emit(proxy) {
			break
		}
	}
	return scanner.Err()
}

func parseIPPort(ipText, portText string, defaultTypes []model.Protocol) (*model.Proxy, bool) {
	ip, port, err := model.ParseAddr(strings.TrimSpace(ipText) + ":" + strings.TrimSpace(portText))
	if err != nil {
		return nil, false
	}
	return model.NewProxy(ip, port, defaultTypes), true
}
