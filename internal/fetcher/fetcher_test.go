package fetcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"proxyprobe/internal/metrics"
	"proxyprobe/internal/model"
	"proxyprobe/internal/providers"
)

// plainTextProvider serves whatever its sources return as an ip:port list.
type plainTextProvider struct {
	name    string
	sources []providers.Source
}

func (p plainTextProvider) Name() string               { return p.name }
func (p plainTextProvider) Sources() []providers.Source { return p.sources }
func (p plainTextProvider) Scrape(body []byte, defaultTypes []model.Protocol, emit func(*model.Proxy) bool) error {
	return providers.PlainTextScrape(body, defaultTypes, emit)
}

func textServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeGeo maps IPs to ISO codes without touching a real MMDB file.
type fakeGeo map[string]string

func (f fakeGeo) Lookup(ip net.IP) model.GeoData {
	if code, ok := f[ip.String()]; ok {
		return model.GeoData{ISOCode: code}
	}
	return model.GeoData{}
}

func drain(t *testing.T, f *Fetcher, timeout time.Duration) []*model.Proxy {
	t.Helper()
	var got []*model.Proxy
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			p, ok := f.Next()
			if !ok {
				return
			}
			got = append(got, p)
		}
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out draining fetcher")
	}
	return got
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.EnforceUniqueIP {
		t.Fatal("default EnforceUniqueIP should be true")
	}
	if !cfg.EnableGeoLookup {
		t.Fatal("default EnableGeoLookup should be true")
	}
	if cfg.ConcurrencyLimit != 10 {
		t.Fatalf("default ConcurrencyLimit = %d, want 10", cfg.ConcurrencyLimit)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("default RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
}

func TestGatherWithNoProvidersEndsImmediately(t *testing.T) {
	f := Gather(context.Background(), DefaultConfig(), nil, nil, nil, nil)
	got := drain(t, f, 2*time.Second)
	if len(got) != 0 {
		t.Fatalf("got %d proxies from an empty provider list, want 0", len(got))
	}
	f.Close()
}

// TestDeduplication covers spec §8 scenario 5: two providers both yield
// 198.51.100.2:8080. With EnforceUniqueIP=true exactly one record reaches
// the consumer; with false, two.
func TestDeduplication(t *testing.T) {
	run := func(enforce bool) int {
		srvA := textServer(t, "198.51.100.2:8080\n")
		srvB := textServer(t, "198.51.100.2:8080\n")
		providerList := []providers.Provider{
			plainTextProvider{name: "a", sources: []providers.Source{providers.AllSource(srvA.URL)}},
			plainTextProvider{name: "b", sources: []providers.Source{providers.AllSource(srvB.URL)}},
		}
		cfg := DefaultConfig()
		cfg.EnforceUniqueIP = enforce
		cfg.EnableGeoLookup = false
		f := Gather(context.Background(), cfg, providerList, nil, nil, nil)
		got := drain(t, f, 5*time.Second)
		f.Close()
		return len(got)
	}

	if n := run(true); n != 1 {
		t.Fatalf("enforce_unique_ip=true: got %d records, want 1", n)
	}
	if n := run(false); n != 2 {
		t.Fatalf("enforce_unique_ip=false: got %d records, want 2", n)
	}
}

// TestCountryFilter covers spec §8 scenario 6: a geo stub maps
// 198.51.100.5 -> US and 198.51.100.6 -> DE. countries=["DE"] must admit
// only the second.
func TestCountryFilter(t *testing.T) {
	srv := textServer(t, "198.51.100.5:3128\n198.51.100.6:3128\n")
	providerList := []providers.Provider{
		plainTextProvider{name: "mixed", sources: []providers.Source{providers.AllSource(srv.URL)}},
	}
	geoStub := fakeGeo{
		"198.51.100.5": "US",
		"198.51.100.6": "DE",
	}
	cfg := DefaultConfig()
	cfg.EnableGeoLookup = true
	cfg.Countries = []string{"DE"}

	f := Gather(context.Background(), cfg, providerList, geoStub, nil, nil)
	got := drain(t, f, 5*time.Second)
	f.Close()

	if len(got) != 1 {
		t.Fatalf("got %d proxies, want 1", len(got))
	}
	if got[0].IP.String() != "198.51.100.6" {
		t.Fatalf("got IP %s, want 198.51.100.6", got[0].IP)
	}
	if got[0].Geo.ISOCode != "DE" {
		t.Fatalf("got ISOCode %q, want DE", got[0].Geo.ISOCode)
	}
}

// TestMetricsCollectorCounters checks the fetch/dedup/geo counters a
// *metrics.Collector accumulates over one full Gather pass. The country
// filter runs before dedup, so all three candidates are counted as
// geo-filtered and none as deduped.
func TestMetricsCollectorCounters(t *testing.T) {
	srv := textServer(t, "198.51.100.2:8080\n198.51.100.2:8080\n198.51.100.7:3128\n")
	providerList := []providers.Provider{
		plainTextProvider{name: "mixed", sources: []providers.Source{providers.AllSource(srv.URL)}},
	}
	geoStub := fakeGeo{"198.51.100.7": "US"}
	cfg := DefaultConfig()
	cfg.EnableGeoLookup = true
	cfg.Countries = []string{"DE"}

	collector := metrics.NewCollector()
	f := Gather(context.Background(), cfg, providerList, geoStub, nil, collector)
	got := drain(t, f, 5*time.Second)
	f.Close()

	if len(got) != 0 {
		t.Fatalf("got %d proxies, want 0 (neither IP is DE)", len(got))
	}

	expected := `
# HELP proxyprobe_proxies_fetched_total Total number of candidate proxies scraped from all sources
# TYPE proxyprobe_proxies_fetched_total counter
proxyprobe_proxies_fetched_total 3
# HELP proxyprobe_proxies_deduped_total Total number of candidates discarded as duplicate ip:port pairs
# TYPE proxyprobe_proxies_deduped_total counter
proxyprobe_proxies_deduped_total 0
# HELP proxyprobe_proxies_geo_filtered_total Total number of candidates discarded by the country filter
# TYPE proxyprobe_proxies_geo_filtered_total counter
proxyprobe_proxies_geo_filtered_total 3
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"proxyprobe_proxies_fetched_total", "proxyprobe_proxies_deduped_total", "proxyprobe_proxies_geo_filtered_total"); err != nil {
		t.Fatalf("counters mismatch: %v", err)
	}
}

func TestCloseStopsFurtherDelivery(t *testing.T) {
	srv := textServer(t, "198.51.100.9:8080\n")
	providerList := []providers.Provider{
		plainTextProvider{name: "single", sources: []providers.Source{providers.AllSource(srv.URL)}},
	}
	f := Gather(context.Background(), DefaultConfig(), providerList, nil, nil, nil)
	f.Close()
	if _, ok := f.Next(); ok {
		t.Fatal("Next() after Close() should report exhausted")
	}
}
