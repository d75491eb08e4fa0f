// Package linkcheck probes URL liveness with a lightweight HEAD request.
package linkcheck

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/fetch"
)

// Result classifies a liveness probe.
type Result struct {
	Broken  bool
	Message string
}

// Checker issues HEAD probes and classifies the responses. Redirects are
// reported as healthy, not chased: following them is an SSRF vector and a
// redirect means the resource exists.
type Checker struct {
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// New builds a Checker.
func New(fetcher *fetch.Fetcher, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{fetcher: fetcher, logger: logger}
}

// Check probes the URL. A non-nil error is returned only for policy
// rejections (SSRF target, bad scheme); network failures are a broken
// verdict, not an error.
func (c *Checker) Check(ctx context.Context, rawURL string) (Result, error) {
	res, err := c.fetcher.Head(ctx, rawURL)
	if err != nil {
		if fetch.Rejected(err) {
			return Result{}, err
		}
		c.logger.Debug("liveness probe failed", zap.String("url", rawURL), zap.Error(err))
		return Result{Broken: true, Message: fmt.Sprintf("Unreachable: %s", fetch.KindOf(err))}, nil
	}
	return classify(res.HTTPStatus), nil
}

// classify implements the fixed liveness policy. A server that answers at
// all, even with an auth or rate-limit refusal, is not a dead link.
func classify(status int) Result {
	switch {
	case status >= 200 && status <= 299:
		return Result{Broken: false, Message: "OK"}
	case status >= 300 && status <= 399:
		return Result{Broken: false, Message: fmt.Sprintf("Redirect (HTTP %d)", status)}
	case status == 401 || status == 403 || status == 405 || status == 429:
		return Result{Broken: false, Message: fmt.Sprintf("Accessible but restricted (HTTP %d)", status)}
	case status <= 0:
		return Result{Broken: true, Message: "No response"}
	default:
		return Result{Broken: true, Message: fmt.Sprintf("HTTP error %d", status)}
	}
}
