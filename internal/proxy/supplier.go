package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const probeConcurrency = 16

// Supplier hands out outbound proxies for the oracle providers in
// round-robin order.
type Supplier interface {
	// Get returns the next proxy URL, or "" when none are configured.
	Get() string
	Len() int
}

type roundRobin struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewSupplier returns a supplier over the given proxies without probing them.
func NewSupplier(proxies []string) Supplier {
	return &roundRobin{proxies: append([]string(nil), proxies...)}
}

// NewProbedSupplier keeps only the proxies through which probeURL answers.
// Any HTTP status counts as reachable: provider endpoints reject anonymous
// probes with 4xx, which still proves the tunnel works.
func NewProbedSupplier(ctx context.Context, proxies []string, probeURL string) Supplier {
	if len(proxies) == 0 {
		return NewSupplier(nil)
	}

	log.Infof("🔄 Probing %d oracle proxies...", len(proxies))

	reachable := make([]bool, len(proxies))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, proxyURL := range proxies {
		g.Go(func() error {
			reachable[i] = isReachable(ctx, proxyURL, probeURL)
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]string, 0, len(proxies))
	for i, ok := range reachable {
		if ok {
			valid = append(valid, proxies[i])
		} else {
			log.Warnf("❌ Proxy %s is not reachable, skipping", proxies[i])
		}
	}

	log.Infof("✅ Using %d of %d oracle proxies", len(valid), len(proxies))
	return NewSupplier(valid)
}

func (p *roundRobin) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)
	return proxy
}

func (p *roundRobin) Len() int {
	return len(p.proxies)
}

func isReachable(ctx context.Context, proxyURL, probeURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)
	defer client.Close()

	_, err := client.R().
		SetContext(ctx).
		Head(probeURL)
	if err != nil {
		log.Debugf("Proxy probe failed for %s: %v", proxyURL, err)
		return false
	}
	return true
}
