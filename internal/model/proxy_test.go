package model

import (
	"encoding/json"
	"net"
	"testing"
)

func TestAddrRoundTrip(t *testing.T) {
	p := NewProxy(net.ParseIP("198.51.100.2"), 8080, nil)
	ip, port, err := ParseAddr(p.Addr())
	if err != nil {
		t.Fatalf("ParseAddr: %v", err)
	}
	if !ip.Equal(p.IP) || port != p.Port {
		t.Fatalf("round trip mismatch: got %s:%d want %s:%d", ip, port, p.IP, p.Port)
	}
}

func TestAvgResponseTime(t *testing.T) {
	p := NewProxy(net.ParseIP("198.51.100.2"), 80, nil)
	if got := p.AvgResponseTime(); got != 0 {
		t.Fatalf("empty runtimes avg = %v, want 0", got)
	}
	p.AppendRuntime(1.0)
	p.AppendRuntime(3.0)
	if got := p.AvgResponseTime(); got != 2.0 {
		t.Fatalf("avg = %v, want 2.0", got)
	}
}

func TestProxyJSONRoundTrip(t *testing.T) {
	p := NewProxy(net.ParseIP("198.51.100.2"), 8080, []Protocol{HTTP(AnonymityUnknown)})
	p.Geo = GeoData{ISOCode: "US", CountryName: "United States"}
	p.AppendRuntime(0.5)
	p.AppendRuntime(1.5)
	p.MarkChecked(HTTP(AnonymityElite), 1700000000)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out Proxy
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.IP.Equal(p.IP) || out.Port != p.Port {
		t.Fatalf("ip/port mismatch: %s:%d vs %s:%d", out.IP, out.Port, p.IP, p.Port)
	}
	if out.Geo.ISOCode != "US" {
		t.Fatalf("geo not preserved: %+v", out.Geo)
	}
	if out.AvgResponseTime() != p.AvgResponseTime() {
		t.Fatalf("avg response time not preserved: %v vs %v", out.AvgResponseTime(), p.AvgResponseTime())
	}
	if len(out.Runtimes) != 1 {
		t.Fatalf("raw runtimes should collapse to one scalar sample, got %d", len(out.Runtimes))
	}
}

func TestProtocolSameFamily(t *testing.T) {
	if !HTTP(AnonymityElite).SameFamily(HTTP(AnonymityUnknown)) {
		t.Fatal("HTTP variants should match under family equality")
	}
	if !Connect(80).SameFamily(Connect(25)) {
		t.Fatal("CONNECT variants should match under family equality")
	}
	if HTTPS().SameFamily(Socks4()) {
		t.Fatal("HTTPS and SOCKS4 must not match")
	}
}

func TestParseProtocolSpec(t *testing.T) {
	cases := []struct {
		spec string
		want Protocol
	}{
		{"HTTP", HTTP(AnonymityUnknown)},
		{"HTTP:Elite", HTTP(AnonymityElite)},
		{"HTTP:Anonymous", HTTP(AnonymityAnonymous)},
		{"HTTP:Transparent", HTTP(AnonymityTransparent)},
		{"HTTPS", HTTPS()},
		{"SOCKS4", Socks4()},
		{"SOCKS5", Socks5()},
		{"CONNECT:8080", Connect(8080)},
	}
	for _, tc := range cases {
		got, err := ParseProtocolSpec(tc.spec)
		if err != nil {
			t.Fatalf("ParseProtocolSpec(%q): %v", tc.spec, err)
		}
		if got != tc.want {
			t.Fatalf("ParseProtocolSpec(%q) = %+v, want %+v", tc.spec, got, tc.want)
		}
		rendered := got.String()
		reparsed, err := ParseProtocolSpec(protocolJSONToSpec(rendered))
		if err != nil {
			t.Fatalf("reparse %q: %v", rendered, err)
		}
		if reparsed != got {
			t.Fatalf("render/reparse mismatch for %q: got %+v want %+v", tc.spec, reparsed, got)
		}
	}
}

func TestParseProtocolSpecInvalid(t *testing.T) {
	for _, s := range []string{"", "BOGUS", "CONNECT", "CONNECT:abc", "HTTP:Weird"} {
		if _, err := ParseProtocolSpec(s); err == nil {
			t.Fatalf("ParseProtocolSpec(%q) should have failed", s)
		}
	}
}
