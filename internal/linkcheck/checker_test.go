package linkcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/fetch"
)

func testChecker(allowLoopback bool) *Checker {
	fetcher := fetch.New(config.FetchConfig{
		UserAgent:             "test-agent/1.0",
		ConnectTimeoutSeconds: 5,
		TimeoutSeconds:        5,
		MaxImageBytes:         1 << 20,
		MaxHTMLBytes:          1 << 20,
		MaxRedirects:          5,
		AllowLoopback:         allowLoopback,
	}, nil)
	return New(fetcher, nil)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status  int
		broken  bool
		message string
	}{
		{200, false, "OK"},
		{204, false, "OK"},
		{301, false, "Redirect (HTTP 301)"},
		{302, false, "Redirect (HTTP 302)"},
		{401, false, "Accessible but restricted (HTTP 401)"},
		{403, false, "Accessible but restricted (HTTP 403)"},
		{405, false, "Accessible but restricted (HTTP 405)"},
		{429, false, "Accessible but restricted (HTTP 429)"},
		{404, true, "HTTP error 404"},
		{410, true, "HTTP error 410"},
		{500, true, "HTTP error 500"},
		{503, true, "HTTP error 503"},
		{0, true, "No response"},
	}
	for _, tc := range cases {
		got := classify(tc.status)
		assert.Equal(t, tc.broken, got.Broken, "status %d", tc.status)
		assert.Equal(t, tc.message, got.Message, "status %d", tc.status)
	}
}

func TestCheckHealthyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := testChecker(true).Check(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Broken)
	assert.Equal(t, "OK", res.Message)
}

func TestCheckRedirectIsHealthyAndNotFollowed(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Location", "http://192.168.0.1/internal")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	res, err := testChecker(true).Check(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Broken)
	assert.Equal(t, "Redirect (HTTP 301)", res.Message)
	assert.Equal(t, 1, hits)
}

func TestCheckDeadURLIsBrokenNotError(t *testing.T) {
	// Nothing listens on port 1.
	res, err := testChecker(true).Check(context.Background(), "http://127.0.0.1:1/")
	require.NoError(t, err)
	assert.True(t, res.Broken)
	assert.Contains(t, res.Message, "Unreachable")
}

func TestCheckPolicyRejectionIsError(t *testing.T) {
	_, err := testChecker(false).Check(context.Background(), "http://169.254.169.254/latest/meta-data/")
	require.Error(t, err)
	assert.True(t, fetch.Rejected(err))

	_, err = testChecker(false).Check(context.Background(), "ftp://example.com/file")
	require.Error(t, err)
	assert.True(t, fetch.Rejected(err))
}

func TestCheckServerErrorIsBroken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res, err := testChecker(true).Check(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Broken)
	assert.Equal(t, "HTTP error 500", res.Message)
}
