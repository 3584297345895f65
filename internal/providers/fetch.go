package providers

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Fetch issues a GET with a randomized User-Agent, follows Location
// redirects iteratively (propagating the previous URL as Referer, no
// explicit max-redirect count), and returns the accumulated response body
// text of the final hop (spec §4.3's default fetch method).
func Fetch(ctx context.Context, client *http.Client, startURL string, timeout time.Duration) ([]byte, error) {
	current := startURL
	referer := ""

	for {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, current, nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("providers: build request for %s: %w", current, err)
		}
		req.Header.Set("User-Agent", randomUserAgent())
		if referer != "" {
			req.Header.Set("Referer", referer)
		}

		resp, err := client.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("providers: fetch %s: %w", current, err)
		}

		loc := resp.Header.Get("Location")
		if loc == "" {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			cancel()
			if err != nil {
				return nil, fmt.Errorf("providers: read body of %s: %w", current, err)
			}
			return body, nil
		}
		resp.Body.Close()
		cancel()

		next, err := resolveLocation(current, loc)
		if err != nil {
			return nil, fmt.Errorf("providers: resolve redirect %q from %s: %w", loc, current, err)
		}
		referer = current
		current = next
	}
}

func resolveLocation(base, loc string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	locURL, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(locURL).String(), nil
}
