// Package fetch performs SSRF-guarded, bounded HTTP requests against
// untrusted third-party origins.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/config"
)

// Result is the outcome of a single fetch call. HTTPStatus is populated for
// any response the origin produced; callers decide what a given status
// means for them.
type Result struct {
	Success    bool
	Body       []byte
	HTTPStatus int
	FinalURL   string
	Headers    http.Header
}

// Text returns the body as a string.
func (r *Result) Text() string { return string(r.Body) }

// OK reports whether the response carried a 2xx status.
func (r *Result) OK() bool {
	return r.HTTPStatus >= 200 && r.HTTPStatus <= 299
}

// Fetcher validates target URLs and performs bounded, timeout-guarded
// requests with a fixed identifying user agent.
type Fetcher struct {
	cfg       config.FetchConfig
	transport http.RoundTripper
	logger    *zap.Logger
}

// New builds a Fetcher.
func New(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(cfg.ConnectTimeout()),
		logger:    logger,
	}
}

func newHTTPTransport(connectTimeout time.Duration) *http.Transport {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Head issues a HEAD request. Redirects are never followed: a same-origin
// looking link could redirect to an internal host, so the caller gets the
// redirect response itself.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (*Result, error) {
	return f.do(ctx, http.MethodHead, rawURL, 0, false, 0)
}

// Get downloads at most maxBytes of the response body, aborting mid-stream
// once the ceiling is exceeded. Redirects are followed up to the configured
// cap, each hop re-validated against the SSRF rules.
func (f *Fetcher) Get(ctx context.Context, rawURL string, maxBytes int64) (*Result, error) {
	return f.do(ctx, http.MethodGet, rawURL, maxBytes, true, 0)
}

// GetWithTimeout is Get with an explicit total timeout for slow upstreams
// such as rendering APIs.
func (f *Fetcher) GetWithTimeout(ctx context.Context, rawURL string, maxBytes int64, timeout time.Duration) (*Result, error) {
	return f.do(ctx, http.MethodGet, rawURL, maxBytes, true, timeout)
}

// GetNoRedirect issues a GET that returns the first response as-is, for
// endpoints whose redirect is itself the answer.
func (f *Fetcher) GetNoRedirect(ctx context.Context, rawURL string, maxBytes int64) (*Result, error) {
	return f.do(ctx, http.MethodGet, rawURL, maxBytes, false, 0)
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, maxBytes int64, follow bool, timeout time.Duration) (*Result, error) {
	if err := f.Validate(rawURL); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = f.timeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, wrapError(KindUnknown, "build request", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	client := &http.Client{
		Transport:     f.transport,
		CheckRedirect: f.redirectPolicy(follow),
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		cerr := classify(err)
		f.logger.Debug("fetch failed",
			zap.String("url", rawURL),
			zap.String("method", method),
			zap.String("kind", string(cerr.Kind)),
			zap.Error(err),
		)
		return nil, cerr
	}
	defer resp.Body.Close() //nolint:errcheck

	result := &Result{
		Success:    true,
		HTTPStatus: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Headers:    resp.Header.Clone(),
	}

	if method == http.MethodGet {
		body, err := readCapped(resp.Body, maxBytes)
		if err != nil {
			return nil, err
		}
		result.Body = body
	}

	f.logger.Debug("fetch done",
		zap.String("url", rawURL),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// redirectPolicy caps redirect depth and re-validates every hop. When
// follow is false the first response is returned as-is.
func (f *Fetcher) redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) >= f.maxRedirects() {
			return newError(KindConnectionError, fmt.Sprintf("stopped after %d redirects", f.maxRedirects()))
		}
		return f.Validate(req.URL.String())
	}
}

func (f *Fetcher) timeout() time.Duration {
	if t := f.cfg.Timeout(); t > 0 {
		return t
	}
	return 30 * time.Second
}

func (f *Fetcher) maxRedirects() int {
	if f.cfg.MaxRedirects > 0 {
		return f.cfg.MaxRedirects
	}
	return 5
}

// readCapped reads at most maxBytes from r. A body that exceeds the
// ceiling is a hard failure, never a truncated success.
func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, classify(err)
	}
	if int64(len(body)) > maxBytes {
		return nil, newError(KindSizeLimit, fmt.Sprintf("response exceeds %d byte ceiling", maxBytes))
	}
	return body, nil
}
