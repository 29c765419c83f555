package executor

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns the client used for WFS calls. timeout bounds a
// whole call, body included, and falls back to 30s. Servers are few and
// feature bodies large, so the pool is small and the header wait is capped
// separately from the body read.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          32,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: min(timeout, 2*time.Minute),
		},
	}
}
