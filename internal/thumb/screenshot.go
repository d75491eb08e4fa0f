package thumb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/fetch"
)

// screenshotStrategy asks a third-party page-rendering API for a
// screenshot. This is a soft dependency: no key configured, network
// failure, or a malformed payload all fall through to the next strategy.
type screenshotStrategy struct {
	cfg      config.ScreenshotConfig
	fetcher  *fetch.Fetcher
	maxBytes int64
}

func (screenshotStrategy) Name() string        { return enrich.MethodScreenshotAPI }
func (screenshotStrategy) MinSize() (int, int) { return 0, 0 }

func (s screenshotStrategy) Acquire(ctx context.Context, subjectURL string) ([]byte, error) {
	if s.cfg.APIKey == "" || s.cfg.Endpoint == "" {
		return nil, errNotApplicable
	}

	q := url.Values{}
	q.Set("url", subjectURL)
	q.Set("strategy", s.cfg.Strategy)
	q.Set("access_key", s.cfg.APIKey)
	reqURL := strings.TrimSuffix(s.cfg.Endpoint, "?") + "?" + q.Encode()

	res, err := s.fetcher.GetWithTimeout(ctx, reqURL, s.maxBytes, s.cfg.Timeout())
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("screenshot api status %d", res.HTTPStatus)
	}
	return decodeScreenshotPayload(res.Body)
}

// decodeScreenshotPayload extracts the base64 image from an API response.
// The body is either a JSON envelope or the bare base64 text; a data: URI
// prefix is stripped first. Standard base64 is probed before translating
// the URL-safe alphabet, so a standard-encoded payload is never corrupted
// by the substitution.
func decodeScreenshotPayload(body []byte) ([]byte, error) {
	payload := strings.TrimSpace(string(body))
	if strings.HasPrefix(payload, "{") {
		var envelope struct {
			Data       string `json:"data"`
			Screenshot string `json:"screenshot"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("parse screenshot response: %w", err)
		}
		switch {
		case envelope.Data != "":
			payload = envelope.Data
		case envelope.Screenshot != "":
			payload = envelope.Screenshot
		default:
			return nil, errors.New("screenshot response carries no payload")
		}
	}

	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, errors.New("malformed data uri in screenshot payload")
		}
		payload = payload[idx+1:]
	}
	payload = padBase64(strings.TrimSpace(payload))

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		translated := strings.NewReplacer("_", "/", "-", "+").Replace(payload)
		raw, err = base64.StdEncoding.DecodeString(translated)
	}
	if err != nil {
		return nil, fmt.Errorf("decode screenshot payload: %w", err)
	}
	return raw, nil
}

func padBase64(s string) string {
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return s
}
