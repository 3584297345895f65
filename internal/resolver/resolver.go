// Package resolver implements MyIpResolver: a single, process-lifetime
// cached lookup of this process's public egress IP, resolved via OpenDNS's
// "myip.opendns.com" trick (spec §4.8).
package resolver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	openDNSServer = "208.67.222.222:53"
	myIPHost      = "myip.opendns.com"
)

// Resolver resolves and caches this process's public egress IP.
type Resolver struct {
	once   sync.Once
	ip     string
	err    error
	host   string
	server string
}

// New builds a Resolver using the default OpenDNS server and hostname.
func New() *Resolver {
	return &Resolver{host: myIPHost, server: openDNSServer}
}

// NewWithServer builds a Resolver against a custom DNS server and hostname,
// for tests that stub out the OpenDNS trick.
func NewWithServer(server, host string) *Resolver {
	return &Resolver{host: host, server: server}
}

// MyIP resolves and caches the public egress IP for the lifetime of the
// process (or of this Resolver value in tests). Failure is fatal to the
// validator's setup per spec §4.8.
func (r *Resolver) MyIP(ctx context.Context, timeout time.Duration) (string, error) {
	r.once.Do(func() {
		resolver := &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: timeout}
				return d.DialContext(ctx, network, r.server)
			},
		}
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ips, err := resolver.LookupIP(dctx, "ip4", r.host)
		if err != nil {
			r.err = fmt.Errorf("resolver: lookup %s via %s: %w", r.host, r.server, err)
			return
		}
		if len(ips) == 0 {
			r.err = fmt.Errorf("resolver: no A records for %s", r.host)
			return
		}
		r.ip = ips[0].String()
	})
	return r.ip, r.err
}
