package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
)

// GeoData holds MMDB-derived location fields. All fields are optional; an
// empty string means the lookup did not populate that field.
type GeoData struct {
	ISOCode       string
	CountryName   string
	RegionISOCode string
	RegionName    string
	CityName      string
}

// ProxyType pairs a Protocol with its validation state. Created unchecked
// when declared by a source; flips to Checked=true with a CheckedOn
// timestamp only after a successful validator probe for that protocol.
type ProxyType struct {
	Protocol  Protocol
	Checked   bool
	CheckedOn float64 // unix epoch seconds
}

// NewProxyType builds an unchecked declaration of protocol.
func NewProxyType(protocol Protocol) ProxyType {
	return ProxyType{Protocol: protocol}
}

// WithChecked returns a copy of t marked as checked at the given unix timestamp.
func (t ProxyType) WithChecked(at float64) ProxyType {
	t.Checked = true
	t.CheckedOn = at
	return t
}

// Proxy is the pipeline's nominal unit: an IPv4:port endpoint enriched with
// geolocation, timing samples, and protocol support state.
type Proxy struct {
	IP   net.IP
	Port uint16

	Geo GeoData

	// Runtimes is append-only: per-step elapsed seconds (TCP connect, TLS
	// handshake, per-write, per-read, request). Never reordered or removed.
	Runtimes []float64

	// Types is the union of declared (by source) and confirmed (by
	// validator) protocol states.
	Types []ProxyType

	// ExpectedTypes is the remaining candidate protocol set the validator
	// must still probe.
	ExpectedTypes []Protocol

	mu sync.Mutex
}

// NewProxy builds a Proxy with the given identity and declared types, with
// ExpectedTypes initialized to the same protocol set.
func NewProxy(ip net.IP, port uint16, declared []Protocol) *Proxy {
	p := &Proxy{IP: ip.To4(), Port: port}
	for _, proto := range declared {
		p.Types = append(p.Types, NewProxyType(proto))
		p.ExpectedTypes = append(p.ExpectedTypes, proto)
	}
	return p
}

// AppendRuntime records one timed network step. Safe for concurrent use by
// at most one in-flight worker per proxy (the validator's contract), but
// guarded regardless since emission may race with a final read.
func (p *Proxy) AppendRuntime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Runtimes = append(p.Runtimes, seconds)
}

// MergeRuntimes appends another worker's private timing buffer into the
// proxy's own Runtimes, per the shared append-only timing buffer design: a
// worker accumulates into its own slice, then folds it in once on emission.
func (p *Proxy) MergeRuntimes(buf []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Runtimes = append(p.Runtimes, buf...)
}

// MarkChecked flips the ProxyType entry for protocol (matched by exact
// equality, not family) to checked, adding a new entry if none existed.
func (p *Proxy) MarkChecked(protocol Protocol, at float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.Types {
		if p.Types[i].Protocol == protocol {
			p.Types[i] = p.Types[i].WithChecked(at)
			return
		}
	}
	p.Types = append(p.Types, NewProxyType(protocol).WithChecked(at))
}

// AvgResponseTime is sum(Runtimes)/len(Runtimes), or 0 when empty.
func (p *Proxy) AvgResponseTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Runtimes) == 0 {
		return 0
	}
	var sum float64
	for _, r := range p.Runtimes {
		sum += r
	}
	return sum / float64(len(p.Runtimes))
}

// CheckedTypes returns only the Types entries with Checked=true, in
// insertion order.
func (p *Proxy) CheckedTypes() []ProxyType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ProxyType
	for _, t := range p.Types {
		if t.Checked {
			out = append(out, t)
		}
	}
	return out
}

// Addr returns the "<ip>:<port>" text form used as the dedup key and for
// TCP dialing.
func (p *Proxy) Addr() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// ParseAddr parses a "<ip>:<port>" string, the inverse of Addr.
func ParseAddr(s string) (net.IP, uint16, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, 0, fmt.Errorf("parse addr %q: %w", s, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, 0, fmt.Errorf("parse addr %q: not an IPv4 address", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, 0, fmt.Errorf("parse addr %q: bad port: %w", s, err)
	}
	return ip.To4(), uint16(port), nil
}

// String renders the Display form:
// "<Proxy <ISO|--> <avg>s [<checked-protocols, comma-separated>] <ip>:<port>>"
func (p *Proxy) String() string {
	iso := p.Geo.ISOCode
	if iso == "" {
		iso = "--"
	}
	checked := p.CheckedTypes()
	names := make([]string, len(checked))
	for i, t := range checked {
		names[i] = t.Protocol.String()
	}
	return fmt.Sprintf("<Proxy %s %.2fs [%s] %s>", iso, p.AvgResponseTime(), strings.Join(names, ", "), p.Addr())
}

type proxyTypeJSON struct {
	Protocol  string  `json:"protocol"`
	Checked   bool    `json:"checked"`
	CheckedOn float64 `json:"checked_on"`
}

type geoDataJSON struct {
	ISOCode       string `json:"iso_code,omitempty"`
	CountryName   string `json:"country_name,omitempty"`
	RegionISOCode string `json:"region_iso_code,omitempty"`
	RegionName    string `json:"region_name,omitempty"`
	CityName      string `json:"city_name,omitempty"`
}

type proxyJSON struct {
	IP                  string          `json:"ip"`
	Port                uint16          `json:"port"`
	Geo                 geoDataJSON     `json:"geo"`
	AverageResponseTime float64         `json:"average_response_time"`
	Types               []proxyTypeJSON `json:"types"`
}

// MarshalJSON implements the §4.1 JSON form: average_response_time replaces
// the raw Runtimes sequence, and Types lists only user-visible fields. This
// is an intentionally asymmetric round trip (see UnmarshalJSON).
func (p *Proxy) MarshalJSON() ([]byte, error) {
	p.mu.Lock()
	types := make([]proxyTypeJSON, len(p.Types))
	for i, t := range p.Types {
		types[i] = proxyTypeJSON{Protocol: t.Protocol.String(), Checked: t.Checked, CheckedOn: t.CheckedOn}
	}
	avg := p.AvgResponseTimeLocked()
	p.mu.Unlock()

	out := proxyJSON{
		IP:   p.IP.String(),
		Port: p.Port,
		Geo: geoDataJSON{
			ISOCode:       p.Geo.ISOCode,
			CountryName:   p.Geo.CountryName,
			RegionISOCode: p.Geo.RegionISOCode,
			RegionName:    p.Geo.RegionName,
			CityName:      p.Geo.CityName,
		},
		AverageResponseTime: avg,
		Types:               types,
	}
	return json.Marshal(out)
}

// AvgResponseTimeLocked computes the average assuming mu is already held.
func (p *Proxy) AvgResponseTimeLocked() float64 {
	if len(p.Runtimes) == 0 {
		return 0
	}
	var sum float64
	for _, r := range p.Runtimes {
		sum += r
	}
	return sum / float64(len(p.Runtimes))
}

// UnmarshalJSON decodes the §4.1 JSON form. The raw runtimes sequence is not
// preserved by design: AverageResponseTime becomes the sole entry in
// Runtimes so AvgResponseTime() still reports it, but the original sample
// count is lost.
func (p *Proxy) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var in proxyJSON
	if err := dec.Decode(&in); err != nil {
		return err
	}
	ip := net.ParseIP(in.IP)
	if ip == nil {
		return fmt.Errorf("proxy json: invalid ip %q", in.IP)
	}
	p.IP = ip.To4()
	p.Port = in.Port
	p.Geo = GeoData{
		ISOCode:       in.Geo.ISOCode,
		CountryName:   in.Geo.CountryName,
		RegionISOCode: in.Geo.RegionISOCode,
		RegionName:    in.Geo.RegionName,
		CityName:      in.Geo.CityName,
	}
	if in.AverageResponseTime != 0 {
		p.Runtimes = []float64{in.AverageResponseTime}
	} else {
		p.Runtimes = nil
	}
	p.Types = make([]ProxyType, 0, len(in.Types))
	for _, t := range in.Types {
		proto, err := ParseProtocolSpec(protocolJSONToSpec(t.Protocol))
		if err != nil {
			continue
		}
		p.Types = append(p.Types, ProxyType{Protocol: proto, Checked: t.Checked, CheckedOn: t.CheckedOn})
	}
	return nil
}

// protocolJSONToSpec adapts the Display-style protocol strings ("HTTP: Elite")
// produced by Protocol.String (and thus by MarshalJSON) to the CLI spec
// grammar ("HTTP:Elite") accepted by ParseProtocolSpec.
func protocolJSONToSpec(s string) string {
	return strings.ReplaceAll(s, ": ", ":")
}
