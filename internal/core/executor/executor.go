// Package executor performs the HTTP calls made to remote OGC services.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/security"
)

// Request is one upstream call. Headers and Basic are applied as given;
// callers build them per request.
type Request struct {
	// label for logs and metrics, e.g. "wfs_capabilities"
	Op          string
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Accept      string
	Headers     map[string]string
	Basic       *security.Credentials
	Timeout     time.Duration
}

// Fetcher returns the body of a successful (2xx) upstream response.
type Fetcher interface {
	Fetch(ctx context.Context, r Request) ([]byte, error)
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	startNow func() time.Time // for tests
	maxBody  int64
}

// 512 MiB, feature payloads can be large
const defaultMaxBody = 512 << 20

func New(logger *slog.Logger, client *http.Client) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Executor{
		logger:   logger,
		client:   client,
		startNow: time.Now,
		maxBody:  defaultMaxBody,
	}
}

// Fetch runs r. Transport failures and non-2xx statuses wrap
// errs.ErrUpstreamUnavailable. Nothing is retried.
func (e *Executor) Fetch(ctx context.Context, r Request) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if r.Basic.Valid() {
		// sent up front rather than after a 401 challenge
		req.SetBasicAuth(r.Basic.Username, r.Basic.Password)
	}

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		observability.ObserveUpstreamLatency(r.Op, err, time.Since(start).Seconds())
		return nil, errs.Upstream(r.Op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
		observability.ObserveUpstreamLatency(r.Op, err, time.Since(start).Seconds())
		return nil, errs.Upstream(r.Op, err)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	if err == nil && int64(len(b)) > e.maxBody {
		err = fmt.Errorf("response body exceeds %d bytes", e.maxBody)
	}
	dur := time.Since(start)
	observability.ObserveUpstreamLatency(r.Op, err, dur.Seconds())
	if err != nil {
		return nil, errs.Upstream(r.Op, fmt.Errorf("read body: %w", err))
	}
	e.logger.DebugContext(ctx, "upstream call done",
		"op", r.Op,
		"method", method,
		"status", resp.StatusCode,
		"bytes", len(b),
		"duration", dur.String())
	return b, nil
}
