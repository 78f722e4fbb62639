package oracle

import (
	"context"
	"fmt"
	"time"

	"marketplace/categorizer/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// httpProvider is the transport shared by the HTTP oracle providers: one
// resty client, a request pacer and optional proxy rotation. Requests are
// never retried; a failed call is simply no answer.
type httpProvider struct {
	name    string
	client  *resty.Client
	rl      ratelimit.Limiter
	proxies proxy.Supplier
	timeout time.Duration
}

func newHTTPProvider(name, baseURL string, timeout time.Duration, requestsPerSecond int, proxies proxy.Supplier) *httpProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if proxies != nil {
		if proxyURL := proxies.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 %s oracle using proxy: %s", name, proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if requestsPerSecond > 0 {
		rl = ratelimit.New(requestsPerSecond)
	}

	return &httpProvider{
		name:    name,
		client:  client,
		rl:      rl,
		proxies: proxies,
		timeout: timeout,
	}
}

// post sends body to path and returns the raw response text.
func (p *httpProvider) post(ctx context.Context, path string, headers map[string]string, body []byte) (string, error) {
	p.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.R().
		SetContext(reqCtx).
		SetHeaders(headers).
		SetBody(body).
		Post(path)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		p.rotateProxy()
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("%s HTTP error: %d %s", p.name, resp.StatusCode(), truncateBody(resp.String()))
	}

	return resp.String(), nil
}

// rotateProxy moves the next call onto another proxy after a transport failure.
func (p *httpProvider) rotateProxy() {
	if p.proxies == nil || p.proxies.Len() < 2 {
		return
	}
	if next := p.proxies.Get(); next != "" {
		log.Infof("🔄 Switching %s oracle to proxy: %s", p.name, next)
		p.client.SetProxy(next)
	}
}

func (p *httpProvider) Close() error {
	return p.client.Close()
}

func truncateBody(body string) string {
	const limit = 512
	if len(body) <= limit {
		return body
	}
	return body[:limit] + "..."
}
