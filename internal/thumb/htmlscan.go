package thumb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/fetch"
)

// junkImage matches URLs that are obviously not content imagery.
var junkImage = regexp.MustCompile(`(?i)icon|logo|avatar|pixel|tracking|sprite`)

// imageDownloader fetches candidate images through the SSRF-validated,
// size-capped fetcher.
type imageDownloader struct {
	fetcher  *fetch.Fetcher
	maxBytes int64
}

func (d imageDownloader) download(ctx context.Context, imageURL string) ([]byte, error) {
	res, err := d.fetcher.Get(ctx, imageURL, d.maxBytes)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("image fetch status %d", res.HTTPStatus)
	}
	return res.Body, nil
}

// fetchDocument downloads page HTML (size-capped) and parses at most
// scanBytes of it. Limiting the parsed slice bounds work on pathological
// documents.
func fetchDocument(ctx context.Context, fetcher *fetch.Fetcher, pageURL string, maxHTMLBytes int64, scanBytes int) (*goquery.Document, string, error) {
	res, err := fetcher.Get(ctx, pageURL, maxHTMLBytes)
	if err != nil {
		return nil, "", err
	}
	if !res.OK() {
		return nil, "", fmt.Errorf("page fetch status %d", res.HTTPStatus)
	}
	body := res.Body
	if scanBytes > 0 && len(body) > scanBytes {
		body = body[:scanBytes]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}
	return doc, res.FinalURL, nil
}

func resolveRef(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	target, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	return base.ResolveReference(target).String(), nil
}

// ogImageStrategy extracts the page's og:image meta tag from the first
// slice of the document.
type ogImageStrategy struct {
	imageDownloader
	cfg          config.ThumbConfig
	maxHTMLBytes int64
}

func (ogImageStrategy) Name() string { return enrich.MethodOpenGraph }

func (s ogImageStrategy) MinSize() (int, int) { return s.cfg.MinWidth, s.cfg.MinHeight }

func (s ogImageStrategy) Acquire(ctx context.Context, subjectURL string) ([]byte, error) {
	doc, finalURL, err := fetchDocument(ctx, s.fetcher, subjectURL, s.maxHTMLBytes, s.cfg.HTMLScanBytes)
	if err != nil {
		return nil, err
	}

	var ref string
	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		prop, _ := sel.Attr("property")
		if prop == "" {
			prop, _ = sel.Attr("name")
		}
		if !strings.EqualFold(prop, "og:image") && !strings.EqualFold(prop, "og:image:url") {
			return true
		}
		content, _ := sel.Attr("content")
		if strings.TrimSpace(content) == "" {
			return true
		}
		ref = content
		return false
	})
	if ref == "" {
		return nil, errNotApplicable
	}

	abs, err := resolveRef(finalURL, ref)
	if err != nil {
		return nil, err
	}
	return s.download(ctx, abs)
}

// contentImageStrategy scans the page's main content for usable inline
// images.
type contentImageStrategy struct {
	imageDownloader
	cfg             config.ThumbConfig
	maxHTMLBytes    int64
	maxDecodedBytes int64
}

func (contentImageStrategy) Name() string { return enrich.MethodContentImage }

func (s contentImageStrategy) MinSize() (int, int) { return s.cfg.MinWidth, s.cfg.MinHeight }

func (s contentImageStrategy) Acquire(ctx context.Context, subjectURL string) ([]byte, error) {
	doc, finalURL, err := fetchDocument(ctx, s.fetcher, subjectURL, s.maxHTMLBytes, 0)
	if err != nil {
		return nil, err
	}

	// Chrome, navigation, and sidebars mostly carry icons and logos.
	doc.Find("nav, header, footer, aside").Remove()

	scope := doc.Find("main, article").First()
	if scope.Length() == 0 {
		scope = doc.Find("div#content, div.content, div[class*=content]").First()
	}
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}

	candidates := s.collectCandidates(scope, finalURL)
	if len(candidates) == 0 {
		return nil, errNotApplicable
	}

	maxDownloads := s.cfg.MaxDownloads
	if maxDownloads <= 0 {
		maxDownloads = 5
	}
	var lastErr error
	for i, candidate := range candidates {
		if i >= maxDownloads {
			break
		}
		data, err := s.download(ctx, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		if err := validateCandidate(data, s.cfg.MinWidth, s.cfg.MinHeight, s.maxDecodedBytes); err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no usable content image")
	}
	return nil, lastErr
}

func (s contentImageStrategy) collectCandidates(scope *goquery.Selection, baseURL string) []string {
	maxCandidates := s.cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	var candidates []string
	seen := make(map[string]struct{})
	scope.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		src = strings.TrimSpace(src)
		if !ok || src == "" {
			return true
		}
		lower := strings.ToLower(src)
		if strings.HasPrefix(lower, "data:") || strings.Contains(lower, ".svg") || junkImage.MatchString(src) {
			return true
		}
		abs, err := resolveRef(baseURL, src)
		if err != nil {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		candidates = append(candidates, abs)
		return len(candidates) < maxCandidates
	})
	return candidates
}
