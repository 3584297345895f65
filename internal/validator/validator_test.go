package validator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"proxyprobe/internal/logging"
	"proxyprobe/internal/metrics"
	"proxyprobe/internal/model"
)

func TestDefaultConfigMatchesOriginal(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ConcurrencyLimit != 50 {
		t.Fatalf("ConcurrencyLimit = %d, want 50", cfg.ConcurrencyLimit)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if cfg.MaxAttempts != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", cfg.MaxAttempts)
	}
}

func TestConfigValidateEmptyTypeFilter(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.validate(); err == nil {
		t.Fatal("expected EmptyTypeFilter error for a config with no Types")
	}
}

func TestMatchingProtocolsFamilyRules(t *testing.T) {
	proxy := model.NewProxy(net.ParseIP("198.51.100.1"), 8080, []model.Protocol{
		model.HTTP(model.AnonymityUnknown),
		model.Socks5(),
		model.Connect(80),
	})

	got := matchingProtocols(proxy, []model.Protocol{model.HTTP(model.AnonymityElite)})
	if len(got) != 1 || got[0].Kind != model.ProtocolHTTP {
		t.Fatalf("Http(_) family match failed: %v", got)
	}

	got = matchingProtocols(proxy, []model.Protocol{model.Connect(25)})
	if len(got) != 1 || got[0].Kind != model.ProtocolConnect {
		t.Fatalf("Connect(_) family match failed: %v", got)
	}

	got = matchingProtocols(proxy, []model.Protocol{model.Socks4()})
	if len(got) != 0 {
		t.Fatalf("Socks4 filter should not match a Socks5-only proxy: %v", got)
	}
}

// stubSource replays a fixed slice of proxies, then reports exhausted.
type stubSource struct {
	proxies []*model.Proxy
	i       int
}

func (s *stubSource) Next() (*model.Proxy, bool) {
	if s.i >= len(s.proxies) {
		return nil, false
	}
	p := s.proxies[s.i]
	s.i++
	return p, true
}

// TestValidateEmitsConfirmedHTTPProxy runs the full dispatcher against a
// goproxy pass-through fixture standing in for the real proxy under test,
// with an HTTP judge whose body classifies as Elite.
func TestValidateEmitsConfirmedHTTPProxy(t *testing.T) {
	proxyAddr, judgeURL := judgeProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "echo: %s\n", r.Header.Get("User-Agent"))
	})
	withJudges(t, []string{judgeURL})

	ip, port, err := splitAddr(proxyAddr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	proxy := model.NewProxy(ip, port, []model.Protocol{model.HTTP(model.AnonymityUnknown)})
	source := &stubSource{proxies: []*model.Proxy{proxy}}

	cfg := DefaultConfig()
	cfg.Types = []model.Protocol{model.HTTP(model.AnonymityUnknown)}
	cfg.ConcurrencyLimit = 4

	v, err := Validate(context.Background(), cfg, source, fixedIPResolver("203.0.113.9"), logging.GetDefaultLogger(), nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	got, ok := v.Next()
	if !ok {
		t.Fatal("expected one confirmed proxy")
	}
	if got.Addr() != proxy.Addr() {
		t.Fatalf("got %s, want %s", got.Addr(), proxy.Addr())
	}
	checked := got.CheckedTypes()
	if len(checked) != 1 || checked[0].Protocol.Kind != model.ProtocolHTTP {
		t.Fatalf("expected one checked Http type, got %v", checked)
	}

	if _, ok := v.Next(); ok {
		t.Fatal("expected exhaustion after the single proxy")
	}
	v.Close()
}

// TestValidateRecordsMetrics checks that a confirmed HTTP probe increments
// both the attempted and confirmed counters under the "http" label.
func TestValidateRecordsMetrics(t *testing.T) {
	proxyAddr, judgeURL := judgeProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "echo: %s\n", r.Header.Get("User-Agent"))
	})
	withJudges(t, []string{judgeURL})

	ip, port, err := splitAddr(proxyAddr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	proxy := model.NewProxy(ip, port, []model.Protocol{model.HTTP(model.AnonymityUnknown)})
	source := &stubSource{proxies: []*model.Proxy{proxy}}

	cfg := DefaultConfig()
	cfg.Types = []model.Protocol{model.HTTP(model.AnonymityUnknown)}
	cfg.ConcurrencyLimit = 4

	collector := metrics.NewCollector()
	v, err := Validate(context.Background(), cfg, source, fixedIPResolver("203.0.113.9"), logging.GetDefaultLogger(), collector)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := v.Next(); !ok {
		t.Fatal("expected one confirmed proxy")
	}

	expected := `
# HELP proxyprobe_validator_probes_attempted_total Total number of validator probes attempted, by protocol family
# TYPE proxyprobe_validator_probes_attempted_total counter
proxyprobe_validator_probes_attempted_total{protocol="http"} 1
# HELP proxyprobe_validator_probes_confirmed_total Total number of validator probes that confirmed the protocol, by family
# TYPE proxyprobe_validator_probes_confirmed_total counter
proxyprobe_validator_probes_confirmed_total{protocol="http"} 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"proxyprobe_validator_probes_attempted_total", "proxyprobe_validator_probes_confirmed_total"); err != nil {
		t.Fatalf("probe counters mismatch: %v", err)
	}
	v.Close()
}

func splitAddr(hostport string) (net.IP, uint16, error) {
	return model.ParseAddr(hostport)
}

// fixedIPResolverT is a trivial IPResolver stub so tests don't depend on a
// real OpenDNS lookup.
type fixedIPResolverT string

func (f fixedIPResolverT) MyIP(context.Context, time.Duration) (string, error) {
	return string(f), nil
}

func fixedIPResolver(ip string) IPResolver { return fixedIPResolverT(ip) }
