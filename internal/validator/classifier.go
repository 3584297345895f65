package validator

import (
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"proxyprobe/internal/model"
	"proxyprobe/internal/negotiate"
	"proxyprobe/internal/proxyclient"
)

// httpJudges is the fixed ring support_http cycles through (spec §4.7.1),
// grounded on original_source/src/validator/checker.rs's HTTP_JUDGES.
var httpJudges = []string{
	"http://azenv.net/",
	"http://httpheader.net/azenv.php",
	"http://httpbin.org/get?show_env",
	"http://mojeip.net.pl/asdfa/azenv.php",
	"http://proxyjudge.us",
	"http://pascal.hoez.free.fr/azenv.php",
	"http://www.9ravens.com/env.cgi",
	"http://www3.wind.ne.jp/hassii/env.cgi",
	"http://shinh.org/env.cgi",
	"http://www2t.biglobe.ne.jp/~take52/test/env.cgi",
}

// httpsJudges backs the Https protocol's CONNECT-tunnel confirmation probe.
var httpsJudges = []string{
	"https://httpbin.org/get?show_env",
	"https://www.proxyjudge.info",
	"https://www.proxy-listen.de/azenv.php",
	"https://httpheader.net/azenv.php",
}

// SetJudges overrides the package-level HTTP/HTTPS judge rings, used by
// cmd/proxyprobe to apply internal/config's RuntimeConfig at startup. Either
// slice may be nil to leave that ring unchanged. Not safe to call once
// Validate is running.
func SetJudges(http, https []string) {
	if len(http) > 0 {
		httpJudges = http
		socksDestinations = computeSocksDestinations(httpJudges)
	}
	if len(https) > 0 {
		httpsJudges = https
	}
}

// anonInterest is the proxy-indicator header-name set (spec §4.7.1 step 5).
var anonInterest = []string{
	"X-REAL-IP", "X-FORWARDED-FOR", "X-PROXY-ID", "VIA", "FORWARDED-FOR",
	"X-FORWARDED", "HTTP-FORWARDED", "CLIENT-IP", "FORWARDED-FOR-IP",
	"FORWARDED_FOR", "X_FORWARDED", "CLIENT_IP", "PROXY-CONNECTION",
	"X-PROXY-CONNECTION", "X-IMFORWARDS",
}

var classifierUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

func randomClassifierUserAgent() string {
	return classifierUserAgents[rand.Intn(len(classifierUserAgents))]
}

// classification is support_http's result: the refined protocol and the
// private timing buffer accumulated across every attempt, successful or not.
type classification struct {
	protocol model.Protocol
	runtimes []float64
}

// supportHTTP implements spec §4.7.1: cycle the judge ring up to maxAttempts
// times looking for a response that actually echoes our request, classify
// Transparent/Anonymous/Elite from its body, and give up with ok=false if no
// attempt yields a usable body.
func supportHTTP(proxyHost, myIP string, timeout time.Duration, maxAttempts int) (classification, bool) {
	ua := randomClassifierUserAgent()
	var runtimes []float64

	for i := 0; i < maxAttempts; i++ {
		judge := httpJudges[i%len(httpJudges)]
		body, ok := probeJudge(proxyHost, judge, ua, timeout, &runtimes)
		if !ok {
			continue
		}
		if !strings.Contains(body, ua) {
			continue
		}
		if strings.Contains(body, myIP) {
			return classification{protocol: model.HTTP(model.AnonymityTransparent), runtimes: runtimes}, true
		}

		upper := strings.ToUpper(body)
		if headerIndicatorPresent(upper) || strings.Contains(upper, strings.ToUpper(hostOf(proxyHost))) {
			return classification{protocol: model.HTTP(model.AnonymityAnonymous), runtimes: runtimes}, true
		}
		return classification{protocol: model.HTTP(model.AnonymityElite), runtimes: runtimes}, true
	}
	return classification{}, false
}

func headerIndicatorPresent(upperBody string) bool {
	for _, h := range anonInterest {
		if strings.Contains(upperBody, h) {
			return true
		}
	}
	return false
}

func hostOf(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func probeJudge(proxyHost, judgeURL, ua string, timeout time.Duration, runtimes *[]float64) (string, bool) {
	u, err := url.Parse(judgeURL)
	if err != nil {
		return "", false
	}
	targetHost := u.Host
	if !strings.Contains(targetHost, ":") {
		targetHost = targetHost + ":80"
	}

	req, err := http.NewRequest(http.MethodGet, judgeURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", ua)

	client := proxyclient.New(proxyHost, timeout)
	resp, stepRuntimes, err := client.SendRequest(req, negotiate.PassThrough{}, targetHost, "http")
	*runtimes = append(*runtimes, stepRuntimes...)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false
	}
	return string(data), true
}
