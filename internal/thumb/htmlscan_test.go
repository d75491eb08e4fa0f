package thumb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/image"
)

func ogStrategyFor(t *testing.T) ogImageStrategy {
	t.Helper()
	fetcher := newLoopbackFetcher(t)
	return ogImageStrategy{
		imageDownloader: imageDownloader{fetcher: fetcher, maxBytes: 10 << 20},
		cfg:             testThumbConfig(),
		maxHTMLBytes:    5 << 20,
	}
}

func contentStrategyFor(t *testing.T) contentImageStrategy {
	t.Helper()
	fetcher := newLoopbackFetcher(t)
	return contentImageStrategy{
		imageDownloader: imageDownloader{fetcher: fetcher, maxBytes: 10 << 20},
		cfg:             testThumbConfig(),
		maxHTMLBytes:    5 << 20,
		maxDecodedBytes: 50 << 20,
	}
}

func TestOGImageStrategyExtractsMetaTag(t *testing.T) {
	img := validImage(t)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><head>
			<meta property="og:title" content="A page"/>
			<meta property="og:image" content="/social.png"/>
		</head><body></body></html>`)
	})
	mux.HandleFunc("/social.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(img)
	})

	got, err := ogStrategyFor(t).Acquire(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestOGImageStrategyNameAttribute(t *testing.T) {
	img := validImage(t)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><head><meta name="og:image" content="%s/pic.png"/></head></html>`, srv.URL)
	})
	mux.HandleFunc("/pic.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(img)
	})

	got, err := ogStrategyFor(t).Acquire(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestOGImageStrategyNotApplicableWithoutTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>no social tags</title></head><body></body></html>`)
	}))
	defer srv.Close()

	_, err := ogStrategyFor(t).Acquire(context.Background(), srv.URL)
	assert.ErrorIs(t, err, errNotApplicable)
}

func TestOGImageStrategyIgnoresTagBeyondScanWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Pad the head so the og:image tag lands past the scan window.
		fmt.Fprintf(w, `<html><head><!-- %s --><meta property="og:image" content="/late.png"/></head></html>`,
			strings.Repeat("x", 128<<10))
	}))
	defer srv.Close()

	_, err := ogStrategyFor(t).Acquire(context.Background(), srv.URL)
	assert.ErrorIs(t, err, errNotApplicable)
}

func TestContentImageStrategyPicksMainImage(t *testing.T) {
	img := validImage(t)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<header><img src="/header-logo.png"/></header>
			<nav><img src="/nav.png"/></nav>
			<main>
				<img src="data:image/gif;base64,R0lGOD"/>
				<img src="/diagram.svg"/>
				<img src="/tracking-pixel.png"/>
				<img src="/photo.png"/>
			</main>
			<footer><img src="/footer.png"/></footer>
		</body></html>`)
	})
	var fetched []string
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Path)
		if r.URL.Path == "/photo.png" {
			w.Write(img)
			return
		}
		http.NotFound(w, r)
	})

	got, err := contentStrategyFor(t).Acquire(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, img, got)
	assert.Equal(t, []string{"/photo.png"}, fetched,
		"junk, data URIs, svg and chrome images never downloaded")
}

func TestContentImageStrategySkipsTooSmall(t *testing.T) {
	small, err := image.SynthesizePlaceholder("example.com", 32, 32)
	require.NoError(t, err)
	big, err := image.SynthesizePlaceholder("example.com", 256, 256)
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><article>
			<img src="/small.png"/>
			<img src="/big.png"/>
		</article></body></html>`)
	})
	mux.HandleFunc("/small.png", func(w http.ResponseWriter, _ *http.Request) { w.Write(small) })
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, _ *http.Request) { w.Write(big) })

	got, err := contentStrategyFor(t).Acquire(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestContentImageStrategyNotApplicableWithoutImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><main><p>plain text only</p></main></body></html>`)
	}))
	defer srv.Close()

	_, err := contentStrategyFor(t).Acquire(context.Background(), srv.URL)
	assert.ErrorIs(t, err, errNotApplicable)
}

func TestFaviconStrategyQueriesService(t *testing.T) {
	img := validImage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "example.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "128", r.URL.Query().Get("sz"))
		w.Write(img)
	}))
	defer srv.Close()

	s := faviconStrategy{
		imageDownloader: imageDownloader{fetcher: newLoopbackFetcher(t), maxBytes: 10 << 20},
		cfg:             config.FaviconConfig{Endpoint: srv.URL, Size: 128},
	}
	got, err := s.Acquire(context.Background(), "https://example.com/some/page")
	require.NoError(t, err)
	assert.Equal(t, img, got)

	minW, minH := s.MinSize()
	assert.Equal(t, 16, minW)
	assert.Equal(t, 16, minH)
}

func TestFaviconStrategyNotApplicableWithoutEndpoint(t *testing.T) {
	var s faviconStrategy
	_, err := s.Acquire(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, errNotApplicable)
}
