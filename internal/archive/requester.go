// Package archive asks a public web archive to snapshot URLs.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/fetch"
)

// Requester submits save requests to a web-archive endpoint and extracts
// the resulting permalink.
type Requester struct {
	cfg     config.ArchiveConfig
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// New builds a Requester.
func New(cfg config.ArchiveConfig, fetcher *fetch.Fetcher, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Archive requests a snapshot of rawURL and returns the archive permalink.
// When the save endpoint responds without a parseable permalink, a
// browse-all-snapshots URL is returned instead of failing: the snapshot was
// still requested.
func (r *Requester) Archive(ctx context.Context, rawURL string) (string, error) {
	if err := r.fetcher.Validate(rawURL); err != nil {
		return "", err
	}

	saveURL := strings.TrimSuffix(r.cfg.SaveEndpoint, "/") + "/" + rawURL
	res, err := r.fetcher.GetNoRedirect(ctx, saveURL, 1<<20)
	if err != nil {
		return "", fmt.Errorf("archive save request: %w", err)
	}

	if link := permalinkFrom(res, saveURL); link != "" {
		return link, nil
	}

	r.logger.Debug("archive permalink not present, using browse fallback",
		zap.String("url", rawURL),
		zap.Int("status", res.HTTPStatus),
	)
	return r.cfg.BrowseEndpoint + rawURL, nil
}

// permalinkFrom extracts the snapshot location the archive announces in
// its response headers, resolved against the save endpoint when relative.
func permalinkFrom(res *fetch.Result, saveURL string) string {
	for _, header := range []string{"Location", "Content-Location"} {
		value := strings.TrimSpace(res.Headers.Get(header))
		if value == "" {
			continue
		}
		base, err := url.Parse(saveURL)
		if err != nil {
			return value
		}
		ref, err := url.Parse(value)
		if err != nil {
			return value
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
