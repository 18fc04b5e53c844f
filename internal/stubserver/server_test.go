package stubserver

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelcloud/navwalk/internal/browserapi"
	"github.com/babelcloud/navwalk/pkg/logger"
)

func newTestServer(t *testing.T) (*Server, *browserapi.Client) {
	t.Helper()
	log := logger.NewWithOutput(io.Discard, false)
	srv := New(log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := browserapi.NewClient(ts.URL, browserapi.WithLogger(log))
	require.NoError(t, err)
	return srv, client
}

func TestBrowserLifecycle(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	resp, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "s1", Headless: true})
	require.NoError(t, err)
	assert.True(t, resp.Success())
	browserID, ok := resp.Field("browserId")
	assert.True(t, ok)
	assert.NotEmpty(t, browserID)
	assert.Equal(t, 1, srv.Store().Len())

	resp, err = client.URL(ctx, "s1")
	require.NoError(t, err)
	current, _ := resp.Field("url")
	assert.Equal(t, "about:blank", current)

	_, err = client.StopBrowser(ctx, browserapi.StopParams{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0, srv.Store().Len())
}

func TestStartTwiceConflicts(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "dup"})
	require.NoError(t, err)

	_, err = client.StartBrowser(ctx, browserapi.StartParams{SessionID: "dup"})
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already exists")
}

func TestStartRequiresSessionID(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.StartBrowser(context.Background(), browserapi.StartParams{})
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestUnknownSessionNotFound(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.Title(ctx, "missing")
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = client.StopBrowser(ctx, browserapi.StopParams{SessionID: "missing"})
	apiErr, ok = browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestNavigateUpdatesPage(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "nav"})
	require.NoError(t, err)

	resp, err := client.Navigate(ctx, browserapi.NavigateParams{SessionID: "nav", URL: "https://www.baidu.com"})
	require.NoError(t, err)
	assert.True(t, resp.Success())

	resp, err = client.Title(ctx, "nav")
	require.NoError(t, err)
	title, _ := resp.Field("title")
	assert.Equal(t, "百度一下，你就知道", title)

	resp, err = client.URL(ctx, "nav")
	require.NoError(t, err)
	current, _ := resp.Field("url")
	assert.Equal(t, "https://www.baidu.com/", current)

	resp, err = client.HTML(ctx, "nav")
	require.NoError(t, err)
	html, _ := resp.Field("html")
	assert.Contains(t, html, "<title>百度一下，你就知道</title>")

	resp, err = client.Execute(ctx, browserapi.ExecuteParams{SessionID: "nav", Script: "document.location.href"})
	require.NoError(t, err)
	result, _ := resp.Field("result")
	assert.Equal(t, "https://www.baidu.com/", result)
}

func TestNavigateRejectsBadURL(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "bad"})
	require.NoError(t, err)

	_, err = client.Navigate(ctx, browserapi.NavigateParams{SessionID: "bad", URL: "not a url"})
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestExecuteUnsupportedScript(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "js"})
	require.NoError(t, err)

	_, err = client.Execute(ctx, browserapi.ExecuteParams{SessionID: "js", Script: "alert(1)"})
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestScreenshotReturnsImage(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "shot"})
	require.NoError(t, err)
	_, err = client.Navigate(ctx, browserapi.NavigateParams{SessionID: "shot", URL: "https://github.com"})
	require.NoError(t, err)

	resp, err := client.Screenshot(ctx, browserapi.ScreenshotParams{SessionID: "shot", Format: "png"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", resp.ContentType)

	img, err := png.Decode(bytes.NewReader(resp.Body))
	require.NoError(t, err)
	assert.Equal(t, screenshotWidth, img.Bounds().Dx())
	assert.Equal(t, screenshotHeight, img.Bounds().Dy())

	resp, err = client.Screenshot(ctx, browserapi.ScreenshotParams{SessionID: "shot", Format: "jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", resp.ContentType)

	_, err = client.Screenshot(ctx, browserapi.ScreenshotParams{SessionID: "shot", Format: "gif"})
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestJournalRecordsSessionIDs(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "j1"})
	require.NoError(t, err)
	_, err = client.Title(ctx, "j1")
	require.NoError(t, err)
	_, _ = client.Title(ctx, "other")

	calls := srv.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Method: http.MethodPost, Path: browserapi.PathStart, SessionID: "j1", Status: http.StatusOK}, calls[0])
	assert.Equal(t, Call{Method: http.MethodGet, Path: browserapi.PathTitle, SessionID: "j1", Status: http.StatusOK}, calls[1])
	assert.Equal(t, http.StatusNotFound, calls[2].Status)
}

func TestFailPath(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	srv.FailPath(browserapi.PathStart, http.StatusServiceUnavailable)
	_, err := client.StartBrowser(ctx, browserapi.StartParams{SessionID: "f1"})
	apiErr, ok := browserapi.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "injected failure")
	assert.Equal(t, 0, srv.Store().Len())

	srv.FailPath(browserapi.PathStart, 0)
	_, err = client.StartBrowser(ctx, browserapi.StartParams{SessionID: "f1"})
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.StatusServiceUnavailable, calls[0].Status)
	assert.Equal(t, "f1", calls[0].SessionID)
}

func TestEndpoints(t *testing.T) {
	srv := New(logger.NewWithOutput(io.Discard, false))

	paths := make([]string, 0, len(srv.Endpoints()))
	for _, e := range srv.Endpoints() {
		paths = append(paths, e.Method+" "+e.Path)
	}
	assert.ElementsMatch(t, []string{
		"POST " + browserapi.PathStart,
		"POST " + browserapi.PathStop,
		"POST " + browserapi.PathNavigate,
		"GET " + browserapi.PathTitle,
		"GET " + browserapi.PathURL,
		"GET " + browserapi.PathHTML,
		"POST " + browserapi.PathScreenshot,
		"POST " + browserapi.PathExecute,
	}, paths)
}

func TestListenAndServeShutsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := New(logger.NewWithOutput(io.Discard, false))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + browserapi.PathTitle + "?sessionId=x")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSessionFromRequestRestoresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, browserapi.PathStart, strings.NewReader(`{"sessionId":"abc"}`))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, "abc", sessionFromRequest(req))
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId":"abc"}`, string(body))
}
