package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	Timeout time.Duration
	// Proxy routes every request through a relay. http/https use CONNECT,
	// socks5/socks5h dial through golang.org/x/net/proxy.
	Proxy *url.URL
	// Limiter throttles outbound requests; nil = unlimited.
	Limiter *rate.Limiter
}

// NewHTTPClient creates an HTTP client for captions, player and media calls.
func NewHTTPClient(opts ClientOptions) (*http.Client, error) {
	tr := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		Proxy:               http.ProxyFromEnvironment,
	}

	if opts.Proxy != nil {
		switch opts.Proxy.Scheme {
		case "http", "https":
			tr.Proxy = http.ProxyURL(opts.Proxy)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(opts.Proxy, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("socks proxy: %w", err)
			}
			tr.Proxy = nil
			if cd, ok := d.(proxy.ContextDialer); ok {
				tr.DialContext = cd.DialContext
			} else {
				tr.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return d.Dial(network, addr)
				}
			}
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", opts.Proxy.Scheme)
		}
	}

	var rt http.RoundTripper = tr
	if opts.Limiter != nil {
		rt = &limitedTransport{base: tr, limiter: opts.Limiter}
	}

	return &http.Client{Timeout: opts.Timeout, Transport: rt}, nil
}

// NewLimiter returns a limiter allowing rps requests per second, or nil for rps <= 0.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
