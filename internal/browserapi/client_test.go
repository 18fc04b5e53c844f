package browserapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL)
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	_, err := NewClient("localhost:3000")
	assert.Error(t, err)

	_, err = NewClient("ftp://localhost:3000")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:3000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.BaseURL())
}

func TestStartBrowserSendsJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathStart, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var params StartParams
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "test-navigate-1", params.SessionID)
		assert.True(t, params.Headless)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"Browser started"}`))
	})

	resp, err := client.StartBrowser(context.Background(), StartParams{SessionID: "test-navigate-1", Headless: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Success())
	msg, ok := resp.Field("message")
	assert.True(t, ok)
	assert.Equal(t, "Browser started", msg)
}

func TestTitleUsesSessionQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathTitle, r.URL.Path)
		assert.Equal(t, "s 1&x", r.URL.Query().Get("sessionId"))
		assert.True(t, strings.HasPrefix(r.UserAgent(), "navwalk/"))
		w.Write([]byte(`{"title": "Example"}`))
	})

	resp, err := client.Title(context.Background(), "s 1&x")
	require.NoError(t, err)
	title, ok := resp.Field("title")
	assert.True(t, ok)
	assert.Equal(t, "Example", title)
}

func TestNonJSONBodyIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain text result\n"))
	})

	resp, err := client.URL(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, resp.IsJSON())
	assert.Equal(t, "plain text result", resp.Text())
	_, ok := resp.Field("url")
	assert.False(t, ok)
}

func TestScreenshotReturnsRawBytes(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var params ScreenshotParams
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "png", params.Format)
		w.Header().Set("Content-Type", "image/png")
		w.Write(image)
	})

	resp, err := client.Screenshot(context.Background(), ScreenshotParams{SessionID: "s1", Format: "png"})
	require.NoError(t, err)
	assert.Equal(t, image, resp.Body)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.False(t, resp.IsJSON())
}

func TestErrorStatusReturnsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"session not found"}`))
	})

	resp, err := client.HTML(context.Background(), "missing")
	require.Error(t, err)
	require.NotNil(t, resp)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "session not found", apiErr.Message)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.False(t, IsConnectionError(err))
	assert.False(t, resp.Success())
}

func TestUnreachableServerIsConnectionError(t *testing.T) {
	// Grab a free port and close it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client, err := NewClient("http://" + addr)
	require.NoError(t, err)

	_, err = client.StartBrowser(context.Background(), StartParams{SessionID: "s1"})
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "cannot connect to "+addr)
}

func TestDialTimeoutIsConnectionError(t *testing.T) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ETIMEDOUT}
		},
	}
	client, err := NewClient("http://10.255.255.1:3000", WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)

	_, err = client.StartBrowser(context.Background(), StartParams{SessionID: "s1"})
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.NotContains(t, err.Error(), "timed out")
}

func TestCanceledContextIsNotConnectionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Title(ctx, "s1")
	require.Error(t, err)
	assert.False(t, IsConnectionError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeoutIsNotConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Title(context.Background(), "s1")
	require.Error(t, err)
	assert.False(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestResponseFieldRendersNonStrings(t *testing.T) {
	resp := newResponse(http.StatusOK, "application/json", []byte(`{"result":{"a":1},"n":3,"nil":null}`))

	v, ok := resp.Field("result")
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, v)

	v, ok = resp.Field("n")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = resp.Field("nil")
	assert.False(t, ok)
}

func TestSuccessFlag(t *testing.T) {
	assert.False(t, newResponse(http.StatusOK, "", []byte(`{"success":false}`)).Success())
	assert.True(t, newResponse(http.StatusOK, "", []byte(`{"success":true}`)).Success())
	assert.True(t, newResponse(http.StatusOK, "", []byte(`ok`)).Success())
	assert.False(t, newResponse(http.StatusInternalServerError, "", []byte(`{}`)).Success())
}
