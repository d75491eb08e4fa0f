package thumb

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/enrich"
)

// faviconStrategy requests a third-party favicon service for the subject's
// domain at a generous size. Minimum dimensions are relaxed: even a 16x16
// favicon beats a synthetic placeholder.
type faviconStrategy struct {
	imageDownloader
	cfg config.FaviconConfig
}

func (faviconStrategy) Name() string        { return enrich.MethodFavicon }
func (faviconStrategy) MinSize() (int, int) { return 16, 16 }

func (s faviconStrategy) Acquire(ctx context.Context, subjectURL string) ([]byte, error) {
	if s.cfg.Endpoint == "" {
		return nil, errNotApplicable
	}
	u, err := url.Parse(subjectURL)
	if err != nil || u.Hostname() == "" {
		return nil, errNotApplicable
	}

	q := url.Values{}
	q.Set("domain", u.Hostname())
	q.Set("sz", fmt.Sprint(s.faviconSize()))
	return s.download(ctx, s.cfg.Endpoint+"?"+q.Encode())
}

func (s faviconStrategy) faviconSize() int {
	if s.cfg.Size > 0 {
		return s.cfg.Size
	}
	return 128
}
