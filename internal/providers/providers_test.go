package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proxyprobe/internal/model"
)

func TestTableScrape(t *testing.T) {
	html := `<html><body><table><tbody>
		<tr><td>198.51.100.2</td><td>8080</td><td>US</td></tr>
		<tr><td>198.51.100.3</td><td>3128</td><td>DE</td></tr>
	</tbody></table></body></html>`

	var got []*model.Proxy
	err := TableScrape([]byte(html), []model.Protocol{model.HTTP(model.AnonymityUnknown)}, func(p *model.Proxy) bool {
		got = append(got, p)
		return true
	})
	if err != nil {
		t.Fatalf("TableScrape: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d proxies, want 2", len(got))
	}
	if got[0].Addr() != "198.51.100.2:8080" {
		t.Fatalf("first proxy = %s", got[0].Addr())
	}
}

func TestPlainTextScrape(t *testing.T) {
	body := "198.51.100.2:8080\nmalformed-line\n198.51.100.3:3128\n\n"

	var got []*model.Proxy
	err := PlainTextScrape([]byte(body), []model.Protocol{model.Socks4()}, func(p *model.Proxy) bool {
		got = append(got, p)
		return true
	})
	if err != nil {
		t.Fatalf("PlainTextScrape: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d proxies, want 2 (malformed line silently skipped)", len(got))
	}
}

func TestPlainTextScrapeStopsOnFalse(t *testing.T) {
	body := "198.51.100.2:8080\n198.51.100.3:3128\n198.51.100.4:80\n"
	n := 0
	PlainTextScrape([]byte(body), nil, func(*model.Proxy) bool {
		n++
		return n < 1
	})
	if n != 1 {
		t.Fatalf("emit called %d times, want exactly 1 before stopping", n)
	}
}

func TestSourceDefaultTypes(t *testing.T) {
	if got := len(HTTPSource("u").DefaultTypes); got != 4 {
		t.Fatalf("HTTPSource default types = %d, want 4", got)
	}
	if got := len(SocksSource("u").DefaultTypes); got != 2 {
		t.Fatalf("SocksSource default types = %d, want 2", got)
	}
	if got := len(AllSource("u").DefaultTypes); got != 6 {
		t.Fatalf("AllSource default types = %d, want 6", got)
	}
}

// noAutoRedirectClient mirrors internal/pool.Pool.Client: it disables the
// stdlib's own auto-follow so Fetch's own Location-handling loop is the one
// actually driving redirects here, not net/http's built-in policy.
func noAutoRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	var redirectorURL string
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Referer"); got != redirectorURL {
			t.Errorf("Referer = %q, want %q (the redirecting hop's own URL)", got, redirectorURL)
		}
		w.Write([]byte("198.51.100.2:8080"))
	}))
	defer final.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", final.URL)
		w.WriteHeader(http.StatusFound)
	}))
	defer redirector.Close()
	redirectorURL = redirector.URL

	body, err := Fetch(context.Background(), noAutoRedirectClient(), redirector.URL, time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "198.51.100.2:8080" {
		t.Fatalf("body = %q", body)
	}
}

// TestFetchExceedsStdlibDefaultRedirectLimit proves Fetch's own loop has no
// max-redirect cap, unlike net/http's built-in policy (which errors out
// after 10 hops with "stopped after 10 redirects"). 15 hops would fail under
// http.DefaultClient but must succeed here.
func TestFetchExceedsStdlibDefaultRedirectLimit(t *testing.T) {
	const hops = 15
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	for i := 0; i < hops; i++ {
		i := i
		mux.HandleFunc(fmt.Sprintf("/hop%d", i), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", fmt.Sprintf("%s/hop%d", srv.URL, i+1))
			w.WriteHeader(http.StatusFound)
		})
	}
	mux.HandleFunc(fmt.Sprintf("/hop%d", hops), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("reached the end"))
	})

	body, err := Fetch(context.Background(), noAutoRedirectClient(), srv.URL+"/hop0", time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "reached the end" {
		t.Fatalf("body = %q", body)
	}
}

func TestAllProvidersHaveSources(t *testing.T) {
	for _, p := range All() {
		if len(p.Sources()) == 0 {
			t.Fatalf("provider %s has no sources", p.Name())
		}
	}
}
