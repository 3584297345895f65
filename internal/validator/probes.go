package validator

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"proxyprobe/internal/negotiate"
	"proxyprobe/internal/perrors"
	"proxyprobe/internal/proxyclient"
)

// socksDestinations gives the SOCKS4/5 handshake probes "any reachable judge
// destination" to request a tunnel to (spec §4.7 step 2), reusing the HTTP
// judge hostnames on port 80 rather than inventing a separate host list.
// Recomputed by SetJudges whenever the runtime-config judge ring changes.
var socksDestinations = computeSocksDestinations(httpJudges)

func computeSocksDestinations(judges []string) []string {
	out := make([]string, 0, len(judges))
	for _, j := range judges {
		if u, err := url.Parse(j); err == nil && u.Host != "" {
			out = append(out, u.Host+":80")
		}
	}
	return out
}

// probeHTTPS cycles httpsJudges up to maxAttempts times, tunneling a GET
// through each via the HTTPS CONNECT negotiator; the first successful
// round trip confirms the protocol.
func probeHTTPS(proxyHost string, timeout time.Duration, maxAttempts int) (runtimes []float64, ok bool) {
	for i := 0; i < maxAttempts; i++ {
		judge := httpsJudges[i%len(httpsJudges)]
		u, err := url.Parse(judge)
		if err != nil {
			continue
		}
		targetHost := u.Host
		if net.ParseIP(targetHost) == nil {
			if _, _, err := net.SplitHostPort(targetHost); err != nil {
				targetHost = targetHost + ":443"
			}
		}

		req, err := http.NewRequest(http.MethodGet, judge, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", randomClassifierUserAgent())

		client := proxyclient.New(proxyHost, timeout)
		resp, stepRuntimes, err := client.SendRequest(req, negotiate.HTTPSTunnel{}, targetHost, "https")
		runtimes = append(runtimes, stepRuntimes...)
		if err != nil {
			continue
		}
		resp.Body.Close()
		return runtimes, true
	}
	return runtimes, false
}

// probeHandshake cycles socksDestinations, dialing the proxy fresh each
// attempt and running negotiator's handshake against the chosen destination
// (spec §4.7 step 2, Socks4/Socks5 case).
func probeHandshake(proxyHost string, negotiator negotiate.Negotiator, timeout time.Duration, maxAttempts int) (runtimes []float64, ok bool) {
	for i := 0; i < maxAttempts; i++ {
		dest := socksDestinations[i%len(socksDestinations)]
		client := proxyclient.New(proxyHost, timeout)
		conn, connRuntimes, err := client.ConnectTimeout()
		runtimes = append(runtimes, connRuntimes...)
		if err != nil {
			continue
		}

		var stepRuntimes []float64
		err = negotiator.Negotiate(conn, &stepRuntimes, proxyHost, dest, "")
		runtimes = append(runtimes, stepRuntimes...)
		conn.Close()
		if err != nil {
			continue
		}
		return runtimes, true
	}
	return runtimes, false
}

// probeConnect issues a raw "CONNECT <host>:<port>" to proxyHost, confirming
// the Connect(port) protocol on a 200 response (spec §4.7 step 2).
func probeConnect(proxyHost string, port uint16, timeout time.Duration, maxAttempts int) (runtimes []float64, ok bool) {
	for i := 0; i < maxAttempts; i++ {
		destHost, _, _ := net.SplitHostPort(socksDestinations[i%len(socksDestinations)])

		client := proxyclient.New(proxyHost, timeout)
		conn, connRuntimes, err := client.ConnectTimeout()
		runtimes = append(runtimes, connRuntimes...)
		if err != nil {
			continue
		}

		ok, elapsed, err := connectTunnel(conn, destHost, port, timeout)
		runtimes = append(runtimes, elapsed)
		conn.Close()
		if err != nil || !ok {
			continue
		}
		return runtimes, true
	}
	return runtimes, false
}

func connectTunnel(conn net.Conn, destHost string, port uint16, timeout time.Duration) (bool, float64, error) {
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}
	req := fmt.Sprintf("CONNECT %s:%d HTTP/1.1\r\nHost: %s\r\nConnection: keep-alive\r\n\r\n", destHost, port, destHost)

	start := time.Now()
	if _, err := conn.Write([]byte(req)); err != nil {
		return false, time.Since(start).Seconds(), perrors.NewProxyError(perrors.ErrorRequestFailed, "write connect probe", conn.RemoteAddr().String(), err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: "CONNECT"})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return false, elapsed, perrors.NewProxyError(perrors.ErrorHttp1HandshakeFailed, "read connect probe response", conn.RemoteAddr().String(), err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, elapsed, nil
}
