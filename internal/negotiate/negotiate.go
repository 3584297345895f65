// Package negotiate implements the per-protocol pre-body handshake state
// machines: HTTP pass-through, HTTPS CONNECT tunnel, SOCKS4, and SOCKS5
// (no-auth). Every network write/read is timestamped into a caller-owned
// runtimes buffer (spec §4.5, §9 "shared append-only timing buffer").
package negotiate

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"proxyprobe/internal/perrors"
)

// Negotiator drives one proxy protocol's handshake before any application
// request is sent, and declares whether the request must be TLS-wrapped.
type Negotiator interface {
	// Negotiate runs the handshake over conn, appending one elapsed-seconds
	// sample to *runtimes per timed network step. proxyHost is the proxy's
	// own "<ip>:<port>" (used only as context in returned errors);
	// targetHost is the destination: HTTPSTunnel takes a host with or
	// without a port (any port is dropped, the tunnel always targets 443),
	// the SOCKS negotiators take "host:port" (a bare host implies port 80);
	// targetScheme is the scheme of the request the caller ultimately wants
	// to send ("http" or "https").
	Negotiate(conn net.Conn, runtimes *[]float64, proxyHost, targetHost, targetScheme string) error
	// WithTLS reports whether the caller must start a TLS client handshake
	// over conn before sending the application request.
	WithTLS() bool
}

func timeStep(runtimes *[]float64, start time.Time) {
	*runtimes = append(*runtimes, time.Since(start).Seconds())
}

// PassThrough is the no-handshake HTTP negotiator: proxies forward the
// plaintext request as-is.
type PassThrough struct{}

func (PassThrough) Negotiate(net.Conn, *[]float64, string, string, string) error { return nil }
func (PassThrough) WithTLS() bool                                               { return false }

// HTTPSTunnel issues an HTTP CONNECT to establish a tunnel, after which the
// caller TLS-wraps the same connection.
type HTTPSTunnel struct{}

func (HTTPSTunnel) WithTLS() bool { return true }

func (HTTPSTunnel) Negotiate(conn net.Conn, runtimes *[]float64, proxyHost, targetHost, targetScheme string) error {
	if targetScheme != "https" {
		return perrors.NewNegotiationError(perrors.NegotiationProtocolMismatch, proxyHost,
			fmt.Errorf("CONNECT tunnel requires an https target, got %q", targetScheme))
	}

	host := targetHost
	if h, _, err := net.SplitHostPort(targetHost); err == nil {
		host = h
	}
	req := fmt.Sprintf("CONNECT %s:443 HTTP/1.1\r\nHost: %s\r\nConnection: keep-alive\r\n\r\n", host, host)

	start := time.Now()
	if _, err := conn.Write([]byte(req)); err != nil {
		return perrors.NewProxyError(perrors.ErrorRequestFailed, "write CONNECT request", proxyHost, err)
	}
	timeStep(runtimes, start)

	start = time.Now()
	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: "CONNECT"})
	if err != nil {
		return perrors.NewProxyError(perrors.ErrorHttp1HandshakeFailed, "read CONNECT response", proxyHost, err)
	}
	resp.Body.Close()
	timeStep(runtimes, start)

	if resp.StatusCode != http.StatusOK {
		return perrors.NewNegotiationError(perrors.NegotiationTunnelRejected, proxyHost,
			fmt.Errorf("CONNECT rejected: %d %s", resp.StatusCode, resp.Status))
	}
	return nil
}

// Socks4 performs the SOCKS4 connect handshake (no user-id, null-terminated).
type Socks4 struct{}

func (Socks4) WithTLS() bool { return false }

func (Socks4) Negotiate(conn net.Conn, runtimes *[]float64, proxyHost, targetHost, _ string) error {
	ip, port, err := resolveIPv4Port(targetHost)
	if err != nil {
		return perrors.NewProxyError(perrors.ErrorRequestFailed, "resolve socks4 target", proxyHost, err)
	}

	packet := make([]byte, 0, 9)
	packet = append(packet, 0x04, 0x01, byte(port>>8), byte(port))
	packet = append(packet, ip...)
	packet = append(packet, 0x00)

	start := time.Now()
	if _, err := conn.Write(packet); err != nil {
		return perrors.NewProxyError(perrors.ErrorRequestFailed, "write socks4 request", proxyHost, err)
	}
	timeStep(runtimes, start)

	start = time.Now()
	reply := make([]byte, 8)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return perrors.NewProxyError(perrors.ErrorHttp1HandshakeFailed, "read socks4 reply", proxyHost, err)
	}
	timeStep(runtimes, start)

	if reply[0] != 0x00 {
		return perrors.NewNegotiationError(perrors.NegotiationInvalidResponseVersion, proxyHost,
			fmt.Errorf("socks4 reply byte[0] = %#x, want 0x00", reply[0]))
	}

	switch reply[1] {
	case 90:
		return nil
	case 91:
		return perrors.NewNegotiationError(perrors.NegotiationInvalidResponseCode, proxyHost, fmt.Errorf("socks4 request rejected (91)"))
	case 92:
		return perrors.NewNegotiationError(perrors.NegotiationIdentdUnreachable, proxyHost, fmt.Errorf("socks4 identd unreachable (92)"))
	case 93:
		return perrors.NewNegotiationError(perrors.NegotiationIdentdUserMismatch, proxyHost, fmt.Errorf("socks4 identd user mismatch (93)"))
	default:
		return perrors.NewNegotiationError(perrors.NegotiationInvalidResponseCode, proxyHost, fmt.Errorf("socks4 unknown reply code %d", reply[1]))
	}
}

// Socks5 performs the no-auth SOCKS5 method-select + connect handshake.
type Socks5 struct{}

func (Socks5) WithTLS() bool { return false }

func (Socks5) Negotiate(conn net.Conn, runtimes *[]float64, proxyHost, targetHost, _ string) error {
	ip, port, err := resolveIPv4Port(targetHost)
	if err != nil {
		return perrors.NewProxyError(perrors.ErrorRequestFailed, "resolve socks5 target", proxyHost, err)
	}

	start := time.Now()
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return perrors.NewProxyError(perrors.ErrorRequestFailed, "write socks5 method select", proxyHost, err)
	}
	timeStep(runtimes, start)

	start = time.Now()
	methodReply := make([]byte, 2)
	if _, err := io.ReadFull(conn, methodReply); err != nil {
		return perrors.NewProxyError(perrors.ErrorHttp1HandshakeFailed, "read socks5 method reply", proxyHost, err)
	}
	timeStep(runtimes, start)

	if methodReply[0] != 0x05 {
		return perrors.NewNegotiationError(perrors.NegotiationInvalidResponseData, proxyHost,
			fmt.Errorf("socks5 method reply version = %#x, want 0x05", methodReply[0]))
	}
	if methodReply[1] == 0xFF {
		return perrors.NewNegotiationError(perrors.NegotiationAuthRequired, proxyHost, fmt.Errorf("socks5 requires authentication"))
	}
	if methodReply[1] != 0x00 {
		return perrors.NewNegotiationError(perrors.NegotiationInvalidResponseData, proxyHost,
			fmt.Errorf("socks5 method reply method = %#x, want 0x00 (no-auth)", methodReply[1]))
	}

	connectReq := make([]byte, 0, 10)
	connectReq = append(connectReq, 0x05, 0x01, 0x00, 0x01)
	connectReq = append(connectReq, ip...)
	connectReq = append(connectReq, byte(port>>8), byte(port))

	start = time.Now()
	if _, err := conn.Write(connectReq); err != nil {
		return perrors.NewProxyError(perrors.ErrorRequestFailed, "write socks5 connect request", proxyHost, err)
	}
	timeStep(runtimes, start)

	start = time.Now()
	connectReply := make([]byte, 10)
	if _, err := io.ReadFull(conn, connectReply); err != nil {
		return perrors.NewProxyError(perrors.ErrorHttp1HandshakeFailed, "read socks5 connect reply", proxyHost, err)
	}
	timeStep(runtimes, start)

	if connectReply[0] != 0x05 || connectReply[1] != 0x00 {
		return perrors.NewNegotiationError(perrors.NegotiationInvalidResponseData, proxyHost,
			fmt.Errorf("socks5 connect reply = % x", connectReply[:2]))
	}
	return nil
}

// resolveIPv4Port splits "host:port" and returns host's IPv4 address: a
// literal address is used as-is, any other host is resolved with the local
// resolver and its first IPv4 address is taken (no DNS-over-proxy
// resolution).
func resolveIPv4Port(hostport string) (net.IP, uint16, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// Allow a bare host with an implied port of 80 for judge hosts that
		// come in as "host" rather than "host:port".
		host = hostport
		portStr = "80"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, 0, fmt.Errorf("resolve %q: %w", host, err)
		}
		for _, candidate := range ips {
			if v4 := candidate.To4(); v4 != nil {
				ip = v4
				break
			}
		}
		if ip == nil {
			return nil, 0, fmt.Errorf("resolve %q: no IPv4 address found", host)
		}
	}
	var port uint64
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, 0, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	return ip.To4(), uint16(port), nil
}
