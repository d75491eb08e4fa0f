package thumb

import (
	"context"
	"errors"

	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/fetch"
	"github.com/dlnorman/linkhoard/internal/image"
)

// Strategy is one independent method of obtaining a thumbnail image for a
// URL. The pipeline tries strategies in priority order and keeps the first
// candidate that passes the validation gate.
type Strategy interface {
	Name() string
	// MinSize returns the minimum acceptable candidate dimensions;
	// zeroes mean no minimum.
	MinSize() (width, height int)
	// Acquire returns raw image bytes. errNotApplicable means the
	// strategy does not apply to this URL; any other error falls through
	// to the next strategy.
	Acquire(ctx context.Context, subjectURL string) ([]byte, error)
}

// errNotApplicable signals a clean skip rather than a failed attempt.
var errNotApplicable = errors.New("strategy not applicable")

// typeIconStrategy short-circuits URLs pointing at known binary file types.
type typeIconStrategy struct{}

func (typeIconStrategy) Name() string        { return enrich.MethodTypeIcon }
func (typeIconStrategy) MinSize() (int, int) { return 0, 0 }

func (typeIconStrategy) Acquire(_ context.Context, subjectURL string) ([]byte, error) {
	ft, ok := fileTypeFor(subjectURL)
	if !ok {
		return nil, errNotApplicable
	}
	return image.SynthesizeTypeIcon(ft.Label, ft.Color, image.SynthWidth, image.SynthHeight)
}

// placeholderStrategy is the terminal step: a deterministic, always
// decodable placeholder derived from the domain.
type placeholderStrategy struct{}

func (placeholderStrategy) Name() string        { return enrich.MethodPlaceholder }
func (placeholderStrategy) MinSize() (int, int) { return 0, 0 }

func (placeholderStrategy) Acquire(_ context.Context, subjectURL string) ([]byte, error) {
	domain := NormalizeDomain(subjectURL)
	// Undo the filesystem collapsing for display; dots read better.
	return image.SynthesizePlaceholder(displayDomain(subjectURL, domain), image.SynthWidth, image.SynthHeight)
}

// Renderer produces a full-page screenshot locally. Implemented by the
// chromedp renderer; a Noop stands in when rendering is disabled.
type Renderer interface {
	Screenshot(ctx context.Context, rawURL string) ([]byte, error)
}

// renderStrategy runs the local headless renderer ahead of the remote
// screenshot API when one is configured. The browser dials the subject URL
// itself, so the same SSRF rules that gate the fetcher apply before any
// navigation starts.
type renderStrategy struct {
	renderer Renderer
	fetcher  *fetch.Fetcher
}

func (renderStrategy) Name() string        { return enrich.MethodLocalRender }
func (renderStrategy) MinSize() (int, int) { return 0, 0 }

func (s renderStrategy) Acquire(ctx context.Context, subjectURL string) ([]byte, error) {
	if s.renderer == nil {
		return nil, errNotApplicable
	}
	if err := s.fetcher.Validate(subjectURL); err != nil {
		return nil, err
	}
	return s.renderer.Screenshot(ctx, subjectURL)
}
