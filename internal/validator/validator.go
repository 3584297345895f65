package validator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"proxyprobe/internal/logging"
	"proxyprobe/internal/metrics"
	"proxyprobe/internal/model"
	"proxyprobe/internal/negotiate"
	"proxyprobe/internal/resolver"
	"proxyprobe/internal/support"
)

// ProxySource is anything the validator can pull candidate proxies from;
// *fetcher.Fetcher satisfies this.
type ProxySource interface {
	Next() (*model.Proxy, bool)
}

// IPResolver is the MyIpResolver seam (spec §4.8); *resolver.Resolver
// satisfies it. Tests can inject a fake that skips the real OpenDNS lookup.
type IPResolver interface {
	MyIP(ctx context.Context, timeout time.Duration) (string, error)
}

// Validator is a lazy sequence of *model.Proxy values with at least one
// confirmed protocol, backed by a background fan-out of per-protocol probes.
type Validator struct {
	it       *support.Iterator[*model.Proxy]
	finished *atomic.Bool
	cancel   context.CancelFunc
	start    time.Time
	spawned  atomic.Int64
	emitted  atomic.Int64
	logger   *logging.Logger
}

// Validate launches the validate pipeline over source and returns
// immediately with a lazy Validator; callers pull with Next() and must
// eventually call Close(). Returns an error only for fatal pre-flight
// configuration problems (spec §4.7's EmptyTypeFilter, or MyIpResolver
// failure — anonymity classification is unsound without the baseline IP).
func Validate(ctx context.Context, cfg Config, source ProxySource, myIP IPResolver, logger *logging.Logger, collector *metrics.Collector) (*Validator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	if myIP == nil {
		myIP = resolver.New()
	}
	ip, err := myIP.MyIP(ctx, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var finished atomic.Bool
	sem := support.NewSemaphore(cfg.ConcurrencyLimit)
	raw := support.NewUnbounded[*model.Proxy]()

	v := &Validator{logger: logger, start: time.Now(), finished: &finished, cancel: cancel}

	var wg sync.WaitGroup
	go func() {
		for {
			if finished.Load() {
				break
			}
			proxy, hasMore := source.Next()
			if !hasMore {
				break
			}
			matching := matchingProtocols(proxy, cfg.Types)
			if len(matching) == 0 {
				continue
			}
			wg.Add(1)
			go func(proxy *model.Proxy, protocols []model.Protocol) {
				defer wg.Done()
				dispatchProxy(ctx, &finished, sem, proxy, protocols, ip, cfg, logger, collector, raw, v)
			}(proxy, matching)
		}
		wg.Wait()
		raw.CloseSend()
	}()

	out := make(chan *model.Proxy)
	go func() {
		defer close(out)
		for proxy := range raw.Out() {
			if finished.Load() {
				continue
			}
			v.emitted.Add(1)
			if collector != nil {
				collector.ProxyEmitted()
			}
			select {
			case out <- proxy:
			case <-ctx.Done():
				return
			}
		}
	}()

	v.it = support.NewIterator[*model.Proxy](out, &finished, func() {
		cancel()
		logger.ValidatorShutdown(int(v.spawned.Load()), int(v.emitted.Load()))
	})
	return v, nil
}

// matchingProtocols filters proxy.ExpectedTypes down to the subset allowed
// by the configured types filter, using family equality for Http/Connect and
// exact equality otherwise (spec §4.7 dispatcher rule).
func matchingProtocols(proxy *model.Proxy, types []model.Protocol) []model.Protocol {
	var out []model.Protocol
	for _, candidate := range proxy.ExpectedTypes {
		for _, want := range types {
			if candidate.SameFamily(want) {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// dispatchProxy spawns one semaphore-bounded worker per matching protocol,
// waits for them all, and emits the proxy at most once if any confirmed.
func dispatchProxy(ctx context.Context, finished *atomic.Bool, sem *support.Semaphore, proxy *model.Proxy, protocols []model.Protocol, myIP string, cfg Config, logger *logging.Logger, collector *metrics.Collector, raw *support.Unbounded[*model.Proxy], v *Validator) {
	var sub sync.WaitGroup
	var anyConfirmed atomic.Bool

	for _, protocol := range protocols {
		if finished.Load() {
			break
		}
		sub.Add(1)
		v.spawned.Add(1)
		go func(protocol model.Protocol) {
			defer sub.Done()
			if err := sem.Acquire(ctx); err != nil {
				return
			}
			defer sem.Release()
			if finished.Load() {
				return
			}
			confirmed := probeOne(proxy, protocol, myIP, cfg, logger, collector)
			if confirmed {
				anyConfirmed.Store(true)
			}
		}(protocol)
	}
	sub.Wait()

	if anyConfirmed.Load() {
		logger.ProxyEmitted(proxy.Addr(), protocolNames(proxy.CheckedTypes()))
		raw.Send(proxy)
	}
}

func protocolNames(types []model.ProxyType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Protocol.String()
	}
	return names
}

// probeOne runs the single-protocol confirmation probe and, on success,
// marks the proxy's type checked and merges the worker's timing samples.
func probeOne(proxy *model.Proxy, protocol model.Protocol, myIP string, cfg Config, logger *logging.Logger, collector *metrics.Collector) bool {
	proxyHost := proxy.Addr()
	now := float64(time.Now().Unix())
	label := protocol.Kind.String()

	if collector != nil {
		collector.ValidatorProbeAttempted(label)
	}
	confirmed := func() bool {
		switch protocol.Kind {
		case model.ProtocolHTTP:
			result, ok := supportHTTP(proxyHost, myIP, cfg.RequestTimeout, cfg.MaxAttempts)
			if !ok {
				logger.ProxyDiscarded(proxyHost, "http judges produced no usable response")
				return false
			}
			proxy.MergeRuntimes(result.runtimes)
			proxy.MarkChecked(result.protocol, now)
			return true

		case model.ProtocolHTTPS:
			runtimes, ok := probeHTTPS(proxyHost, cfg.RequestTimeout, cfg.MaxAttempts)
			proxy.MergeRuntimes(runtimes)
			if !ok {
				logger.ProxyNegotiationFailed(proxyHost, protocol.String(), nil)
				return false
			}
			proxy.MarkChecked(protocol, now)
			return true

		case model.ProtocolSocks4:
			runtimes, ok := probeHandshake(proxyHost, negotiate.Socks4{}, cfg.RequestTimeout, cfg.MaxAttempts)
			proxy.MergeRuntimes(runtimes)
			if !ok {
				logger.ProxyNegotiationFailed(proxyHost, protocol.String(), nil)
				return false
			}
			proxy.MarkChecked(protocol, now)
			return true

		case model.ProtocolSocks5:
			runtimes, ok := probeHandshake(proxyHost, negotiate.Socks5{}, cfg.RequestTimeout, cfg.MaxAttempts)
			proxy.MergeRuntimes(runtimes)
			if !ok {
				logger.ProxyNegotiationFailed(proxyHost, protocol.String(), nil)
				return false
			}
			proxy.MarkChecked(protocol, now)
			return true

		case model.ProtocolConnect:
			runtimes, ok := probeConnect(proxyHost, protocol.Port, cfg.RequestTimeout, cfg.MaxAttempts)
			proxy.MergeRuntimes(runtimes)
			if !ok {
				logger.ProxyNegotiationFailed(proxyHost, protocol.String(), nil)
				return false
			}
			proxy.MarkChecked(protocol, now)
			return true

		default:
			return false
		}
	}()

	if confirmed && collector != nil {
		collector.ValidatorProbeConfirmed(label)
	}
	return confirmed
}

// Next pulls the next confirmed proxy, or (nil, false) when the sequence is
// exhausted.
func (v *Validator) Next() (*model.Proxy, bool) { return v.it.Next() }

// Close cancels the pipeline context and logs spawned/emitted counts (spec
// §9's Drop semantics). Workers still waiting for a semaphore permit stop;
// probes already running finish and their results are dropped.
func (v *Validator) Close() { v.it.Close() }
