package thumb

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/fetch"
)

func TestDecodeScreenshotPayloadVariants(t *testing.T) {
	img := validImage(t)
	std := base64.StdEncoding.EncodeToString(img)
	urlSafe := base64.URLEncoding.EncodeToString(img)

	cases := []struct {
		name string
		body string
	}{
		{"bare standard base64", std},
		{"bare url-safe base64", urlSafe},
		{"data uri", "data:image/png;base64," + std},
		{"json data field", fmt.Sprintf(`{"data":%q}`, std)},
		{"json screenshot field", fmt.Sprintf(`{"screenshot":%q}`, std)},
		{"json with data uri", fmt.Sprintf(`{"data":"data:image/png;base64,%s"}`, std)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeScreenshotPayload([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, img, got)
		})
	}
}

func TestDecodeScreenshotPayloadUnpadded(t *testing.T) {
	img := validImage(t)
	unpadded := base64.RawStdEncoding.EncodeToString(img)
	got, err := decodeScreenshotPayload([]byte(unpadded))
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestDecodeScreenshotPayloadErrors(t *testing.T) {
	_, err := decodeScreenshotPayload([]byte(`{"status":"queued"}`))
	assert.Error(t, err, "envelope without image payload")

	_, err = decodeScreenshotPayload([]byte("data:image/png;base64"))
	assert.Error(t, err, "data uri without comma")

	_, err = decodeScreenshotPayload([]byte("!!not base64 at all!!"))
	assert.Error(t, err)
}

func TestScreenshotStrategySkipsWithoutKey(t *testing.T) {
	s := screenshotStrategy{cfg: config.ScreenshotConfig{Endpoint: "https://shots.example.com"}}
	_, err := s.Acquire(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, errNotApplicable)
}

func TestScreenshotStrategyRequestsAPI(t *testing.T) {
	img := validImage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "https://example.com/", q.Get("url"))
		assert.Equal(t, "desktop", q.Get("strategy"))
		assert.Equal(t, "secret", q.Get("access_key"))
		fmt.Fprintf(w, `{"data":%q}`, base64.StdEncoding.EncodeToString(img))
	}))
	defer srv.Close()

	fetcher := newLoopbackFetcher(t)
	s := screenshotStrategy{
		cfg: config.ScreenshotConfig{
			Endpoint:       srv.URL,
			APIKey:         "secret",
			Strategy:       "desktop",
			TimeoutSeconds: 5,
		},
		fetcher:  fetcher,
		maxBytes: 10 << 20,
	}
	got, err := s.Acquire(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestScreenshotStrategyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	s := screenshotStrategy{
		cfg:      config.ScreenshotConfig{Endpoint: srv.URL, APIKey: "k", Strategy: "desktop", TimeoutSeconds: 5},
		fetcher:  newLoopbackFetcher(t),
		maxBytes: 1 << 20,
	}
	_, err := s.Acquire(context.Background(), "https://example.com/")
	assert.Error(t, err)
}

func newLoopbackFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	return fetch.New(config.FetchConfig{
		UserAgent:             "test-agent/1.0",
		ConnectTimeoutSeconds: 5,
		TimeoutSeconds:        10,
		MaxImageBytes:         10 << 20,
		MaxHTMLBytes:          5 << 20,
		MaxRedirects:          5,
		AllowLoopback:         true,
	}, nil)
}
