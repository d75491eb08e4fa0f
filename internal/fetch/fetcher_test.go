package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlnorman/linkhoard/internal/config"
)

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		UserAgent:             "test-agent/1.0",
		ConnectTimeoutSeconds: 5,
		TimeoutSeconds:        10,
		MaxImageBytes:         10 << 20,
		MaxHTMLBytes:          5 << 20,
		MaxRedirects:          5,
		AllowLoopback:         true,
	}
}

func TestValidateRejectsUnsafeTargets(t *testing.T) {
	cfg := testConfig()
	cfg.AllowLoopback = false
	f := New(cfg, nil)

	cases := []struct {
		name string
		url  string
		kind ErrorKind
	}{
		{"ftp scheme", "ftp://example.com/file", KindSchemeRejected},
		{"file scheme", "file:///etc/passwd", KindSchemeRejected},
		{"no host", "http://", KindSchemeRejected},
		{"loopback ip", "http://127.0.0.1/admin", KindPrivateAddress},
		{"loopback range", "http://127.8.8.8/", KindPrivateAddress},
		{"localhost", "http://localhost:8080/", KindPrivateAddress},
		{"localhost subdomain", "http://foo.localhost/", KindPrivateAddress},
		{"rfc1918 ten", "http://10.0.0.5/", KindPrivateAddress},
		{"rfc1918 c", "http://192.168.1.1/router", KindPrivateAddress},
		{"rfc1918 b", "http://172.16.0.1/", KindPrivateAddress},
		{"link local", "http://169.254.169.254/latest/meta-data/", KindPrivateAddress},
		{"unspecified", "http://0.0.0.0/", KindPrivateAddress},
		{"cgnat", "http://100.64.0.1/", KindPrivateAddress},
		{"test net", "http://192.0.2.10/", KindPrivateAddress},
		{"reserved", "http://240.1.2.3/", KindPrivateAddress},
		{"ipv6 loopback", "http://[::1]/", KindPrivateAddress},
		{"ipv6 link local", "http://[fe80::1]/", KindPrivateAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.Validate(tc.url)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.True(t, Rejected(err))
		})
	}
}

func TestValidateAllowsPublicTargets(t *testing.T) {
	f := New(testConfig(), nil)

	for _, u := range []string{
		"https://example.com/page",
		"http://93.184.216.34/",
		"https://example.com:8443/path?q=1",
	} {
		assert.NoError(t, f.Validate(u), u)
	}
}

func TestValidateAllowsUnresolvableHosts(t *testing.T) {
	f := New(testConfig(), nil)
	// Resolution failure is deferred to the fetch itself.
	assert.NoError(t, f.Validate("https://definitely-not-a-real-host.invalid/"))
}

func TestValidateLoopbackToggle(t *testing.T) {
	f := New(testConfig(), nil)
	assert.NoError(t, f.Validate("http://127.0.0.1:9999/"))
	assert.NoError(t, f.Validate("http://localhost/"))
}

func TestGetDownloadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "hello world")
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	res, err := f.Get(context.Background(), srv.URL, 1024)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "hello world", res.Text())
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
}

func TestGetEnforcesSizeCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	_, err := f.Get(context.Background(), srv.URL, 1024)
	require.Error(t, err)
	assert.Equal(t, KindSizeLimit, KindOf(err))
}

func TestGetBodyAtCeilingSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	res, err := f.Get(context.Background(), srv.URL, 1024)
	require.NoError(t, err)
	assert.Len(t, res.Body, 1024)
}

func TestHeadNeverFollowsRedirects(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Location", "http://127.0.0.1:1/admin")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	res, err := f.Head(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.HTTPStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetRevalidatesRedirectTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "http://10.0.0.1/internal")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	_, err := f.Get(context.Background(), srv.URL, 1024)
	require.Error(t, err)
	assert.Equal(t, KindPrivateAddress, KindOf(err))
}

func TestGetFollowsSafeRedirects(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "arrived")
	})

	f := New(testConfig(), nil)
	res, err := f.Get(context.Background(), srv.URL+"/start", 1024)
	require.NoError(t, err)
	assert.Equal(t, "arrived", res.Text())
	assert.Equal(t, srv.URL+"/final", res.FinalURL)
}

func TestGetCapsRedirectDepth(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRedirects = 3
	f := New(cfg, nil)
	_, err := f.Get(context.Background(), srv.URL+"/a", 1024)
	require.Error(t, err)
	assert.Equal(t, KindConnectionError, KindOf(err))
}

func TestGetWithTimeoutClassifiesDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, "too late")
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	_, err := f.GetWithTimeout(context.Background(), srv.URL, 1024, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.False(t, Rejected(err))
}

func TestGetNoRedirectReturnsFirstResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/web/20260101000000/https://example.com/")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	res, err := f.GetNoRedirect(context.Background(), srv.URL, 1024)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.HTTPStatus)
	assert.Equal(t, "/web/20260101000000/https://example.com/", res.Headers.Get("Location"))
}

func TestConnectionRefusedClassified(t *testing.T) {
	f := New(testConfig(), nil)
	// Port 1 is essentially never listening.
	_, err := f.Get(context.Background(), "http://127.0.0.1:1/", 1024)
	require.Error(t, err)
	assert.Equal(t, KindConnectionError, KindOf(err))
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTP://Example.COM/Path", "http://example.com/Path"},
		{"http://example.com:80/x", "http://example.com/x"},
		{"https://example.com:443/x", "https://example.com/x"},
		{"https://example.com/x#frag", "https://example.com/x"},
		{"https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
