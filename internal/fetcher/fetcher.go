package fetcher

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"proxyprobe/internal/geo"
	"proxyprobe/internal/logging"
	"proxyprobe/internal/metrics"
	"proxyprobe/internal/model"
	"proxyprobe/internal/pool"
	"proxyprobe/internal/providers"
	"proxyprobe/internal/support"
)

// sharedPool backs every Gather call's client with one tuned, reusable
// transport instead of building a fresh one per run.
var sharedPool = pool.New(pool.DefaultConfig())

// sourceTask pairs one Source with the Provider that owns it.
type sourceTask struct {
	provider providers.Provider
	source   providers.Source
}

// Fetcher is a single-consumer lazy sequence of *model.Proxy, backed by a
// background fan-out across every registered provider's sources.
type Fetcher struct {
	it       *support.Iterator[*model.Proxy]
	finished *atomic.Bool
	cancel   context.CancelFunc
	start    time.Time
	found    atomic.Int64
	logger   *logging.Logger
}

// Gather launches the fetch pipeline and returns immediately with a lazy
// Fetcher; callers pull with Next() and must eventually call Close().
func Gather(ctx context.Context, cfg Config, providerList []providers.Provider, geoLookup geo.Lookuper, logger *logging.Logger, collector *metrics.Collector) *Fetcher {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	var finished atomic.Bool

	var tasks []sourceTask
	for _, p := range providerList {
		for _, src := range p.Sources() {
			tasks = append(tasks, sourceTask{provider: p, source: src})
		}
	}

	client := sharedPool.Client(cfg.RequestTimeout + 5*time.Second)
	sem := support.NewSemaphore(cfg.ConcurrencyLimit)
	raw := support.NewUnbounded[*model.Proxy]()

	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			if finished.Load() {
				return
			}
			if err := sem.Acquire(ctx); err != nil {
				return
			}
			defer sem.Release()
			if finished.Load() {
				return
			}
			runSource(ctx, client, task, raw, logger, collector)
		}()
	}

	go func() {
		wg.Wait()
		raw.CloseSend()
	}()

	out := make(chan *model.Proxy)
	seen := make(map[string]struct{})
	f := &Fetcher{logger: logger, start: time.Now(), finished: &finished, cancel: cancel}

	go func() {
		defer close(out)
		for proxy := range raw.Out() {
			if finished.Load() {
				continue
			}
			collectorProxyFetched(collector)
			if cfg.EnableGeoLookup && geoLookup != nil {
				proxy.Geo = geoLookup.Lookup(proxy.IP)
			}
			if len(cfg.Countries) > 0 {
				if !containsFold(cfg.Countries, proxy.Geo.ISOCode) {
					logger.ProxyDiscarded(proxy.Addr(), "country filter")
					collectorProxyGeoFiltered(collector)
					continue
				}
			}
			if cfg.EnforceUniqueIP {
				key := proxy.Addr()
				if _, dup := seen[key]; dup {
					logger.ProxyDiscarded(key, "duplicate ip:port")
					collectorProxyDeduped(collector)
					continue
				}
				seen[key] = struct{}{}
			}
			f.found.Add(1)
			select {
			case out <- proxy:
			case <-ctx.Done():
				return
			}
		}
	}()

	f.it = support.NewIterator[*model.Proxy](out, &finished, func() {
		cancel()
		logger.FetcherShutdown(time.Since(f.start).Seconds(), int(f.found.Load()))
	})
	return f
}

func runSource(ctx context.Context, client *http.Client, task sourceTask, raw *support.Unbounded[*model.Proxy], logger *logging.Logger, collector *metrics.Collector) {
	logger.SourceFetchStart(task.source.URL)
	collectorSourceAttempted(collector)
	body, err := providers.Fetch(ctx, client, task.source.URL, task.source.Timeout)
	if err != nil {
		logger.SourceFetchFailed(task.source.URL, err)
		collectorSourceFailed(collector)
		return
	}
	err = task.provider.Scrape(body, task.source.DefaultTypes, func(p *model.Proxy) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		raw.Send(p)
		return true
	})
	if err != nil {
		logger.SourceFetchFailed(task.source.URL, err)
		collectorSourceFailed(collector)
	}
}

// collectorSourceAttempted, collectorSourceFailed, collectorProxyFetched,
// collectorProxyDeduped, and collectorProxyGeoFiltered guard against a nil
// collector so tests and callers that don't care about metrics can pass nil.
func collectorSourceAttempted(c *metrics.Collector) {
	if c != nil {
		c.SourceAttempted()
	}
}

func collectorSourceFailed(c *metrics.Collector) {
	if c != nil {
		c.SourceFailed()
	}
}

func collectorProxyFetched(c *metrics.Collector) {
	if c != nil {
		c.ProxyFetched()
	}
}

func collectorProxyDeduped(c *metrics.Collector) {
	if c != nil {
		c.ProxyDeduped()
	}
}

func collectorProxyGeoFiltered(c *metrics.Collector) {
	if c != nil {
		c.ProxyGeoFiltered()
	}
}

func containsFold(list []string, v string) bool {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}

// Next pulls the next admitted proxy, or (nil, false) when the sequence is
// exhausted.
func (f *Fetcher) Next() (*model.Proxy, bool) { return f.it.Next() }

// Close cancels all in-flight producer tasks and logs elapsed time/count
// (spec §9's Drop semantics, since Go has no destructors).
func (f *Fetcher) Close() { f.it.Close() }
