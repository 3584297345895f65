// Package proxyclient encapsulates a single timed request against a single
// proxy: TCP connect, optional protocol negotiation, optional TLS wrapping,
// HTTP/1 request/response, with per-step latency capture (spec §4.6).
package proxyclient

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"proxyprobe/internal/negotiate"
	"proxyprobe/internal/perrors"
)

// Client runs one request against one proxy. The TLS trust model is
// deliberately permissive: a free proxy may front arbitrary TLS, and the
// goal here is reachability, not identity (spec §9 "TLS trust model").
type Client struct {
	ProxyHost string // "<ip>:<port>"
	Timeout   time.Duration
}

// New builds a Client for proxyHost. timeout bounds the TCP dial, and
// separately the request write and response read that follow negotiation;
// the negotiation and TLS handshake steps run without a deadline.
func New(proxyHost string, timeout time.Duration) *Client {
	return &Client{ProxyHost: proxyHost, Timeout: timeout}
}

// ConnectTimeout dials ProxyHost over TCP, recording the connect elapsed
// time as the first runtime sample.
func (c *Client) ConnectTimeout() (net.Conn, []float64, error) {
	dialer := net.Dialer{Timeout: c.Timeout}

	start := time.Now()
	conn, err := dialer.Dial("tcp", c.ProxyHost)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, perrors.NewProxyError(perrors.ErrorConnectTimeout, "tcp connect timeout", c.ProxyHost, err)
		}
		return nil, nil, perrors.NewProxyError(perrors.ErrorConnectRefused, "tcp connect refused", c.ProxyHost, err)
	}
	return conn, []float64{elapsed}, nil
}

// SendRequest orchestrates the full exchange per spec §4.6:
//  1. ConnectTimeout
//  2. optional negotiator.Negotiate
//  3. TLS wrap iff the negotiator demands it or the request targets https
//  4. HTTP/1 handshake + send + read response, with per-step runtimes
//
// targetHost is the request's destination host:port (for CONNECT/SOCKS
// negotiation); targetScheme is "http" or "https".
func (c *Client) SendRequest(req *http.Request, negotiator negotiate.Negotiator, targetHost, targetScheme string) (*http.Response, []float64, error) {
	conn, runtimes, err := c.ConnectTimeout()
	if err != nil {
		return nil, nil, err
	}
	useTLS := targetScheme == "https"
	if negotiator != nil {
		if err := negotiator.Negotiate(conn, &runtimes, c.ProxyHost, targetHost, targetScheme); err != nil {
			conn.Close()
			return nil, runtimes, err
		}
		useTLS = useTLS || negotiator.WithTLS()
	}

	if useTLS {
		resp, tlsRuntimes, err := c.sendWithTLS(conn, req)
		runtimes = append(runtimes, tlsRuntimes...)
		return resp, runtimes, err
	}
	resp, plainRuntimes, err := c.sendWithoutTLS(conn, req)
	runtimes = append(runtimes, plainRuntimes...)
	return resp, runtimes, err
}

func (c *Client) sendWithTLS(conn net.Conn, req *http.Request) (*http.Response, []float64, error) {
	var runtimes []float64

	start := time.Now()
	tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true}) //nolint:gosec // intentional: reachability over identity
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, runtimes, perrors.NewProxyError(perrors.ErrorTlsHandshakeFailed, "tls handshake failed", c.ProxyHost, err)
	}
	runtimes = append(runtimes, time.Since(start).Seconds())

	return c.roundTrip(tlsConn, req, &runtimes)
}

func (c *Client) sendWithoutTLS(conn net.Conn, req *http.Request) (*http.Response, []float64, error) {
	var runtimes []float64
	return c.roundTrip(conn, req, &runtimes)
}

func (c *Client) roundTrip(conn net.Conn, req *http.Request, runtimes *[]float64) (*http.Response, []float64, error) {
	if c.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.Timeout))
	}

	start := time.Now()
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, *runtimes, perrors.NewProxyError(perrors.ErrorRequestFailed, "write request", c.ProxyHost, err)
	}
	*runtimes = append(*runtimes, time.Since(start).Seconds())

	start = time.Now()
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, *runtimes, perrors.NewProxyError(perrors.ErrorTimeout, "read response timed out", c.ProxyHost, err)
		}
		return nil, *runtimes, perrors.NewProxyError(perrors.ErrorHttp1HandshakeFailed, "read response", c.ProxyHost, err)
	}
	*runtimes = append(*runtimes, time.Since(start).Seconds())

	// http.ReadResponse over a bare conn doesn't wire resp.Body.Close() to
	// close the connection; do that ourselves so callers that just defer
	// resp.Body.Close() don't leak the socket.
	resp.Body = bodyWithConn{resp.Body, conn}
	return resp, *runtimes, nil
}

// bodyWithConn closes conn once the response body is closed.
type bodyWithConn struct {
	io.ReadCloser
	conn net.Conn
}

func (b bodyWithConn) Close() error {
	b.ReadCloser.Close()
	return b.conn.Close()
}

// Addr renders proxyHost for error messages / logging context.
func Addr(ip net.IP, port uint16) string {
	return fmt.Sprintf("%s:%d", ip.String(), port)
}
