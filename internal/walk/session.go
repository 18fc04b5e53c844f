package walk

import (
	"context"
	"time"

	"github.com/babelcloud/navwalk/internal/browserapi"
)

// releaseTimeout bounds the best-effort stop sent on a failure path
const releaseTimeout = 5 * time.Second

// API is the browser automation surface the walkthrough drives.
type API interface {
	StartBrowser(ctx context.Context, params browserapi.StartParams) (*browserapi.Response, error)
	StopBrowser(ctx context.Context, params browserapi.StopParams) (*browserapi.Response, error)
	Navigate(ctx context.Context, params browserapi.NavigateParams) (*browserapi.Response, error)
	Title(ctx context.Context, sessionID string) (*browserapi.Response, error)
	URL(ctx context.Context, sessionID string) (*browserapi.Response, error)
	HTML(ctx context.Context, sessionID string) (*browserapi.Response, error)
	Screenshot(ctx context.Context, params browserapi.ScreenshotParams) (*browserapi.Response, error)
	Execute(ctx context.Context, params browserapi.ExecuteParams) (*browserapi.Response, error)
}

var _ API = (*browserapi.Client)(nil)

// Session is a started remote browser. The id never changes after Acquire.
type Session struct {
	id       string
	api      API
	released bool
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Released reports whether a stop has been attempted
func (s *Session) Released() bool {
	return s.released
}

// Acquire starts a browser session. The returned Session is non-nil even when
// start fails, so a caller can still release it.
func Acquire(ctx context.Context, api API, id string, headless bool) (*Session, *browserapi.Response, error) {
	s := &Session{id: id, api: api}
	resp, err := api.StartBrowser(ctx, browserapi.StartParams{SessionID: id, Headless: headless})
	return s, resp, err
}

// Release stops the session. Only the first call reaches the server.
func (s *Session) Release(ctx context.Context) (*browserapi.Response, error) {
	if s.released {
		return nil, nil
	}
	s.released = true
	return s.api.StopBrowser(ctx, browserapi.StopParams{SessionID: s.id})
}

// releaseQuietly is the failure-path stop. Errors are dropped and the caller's
// cancellation does not prevent it.
func (s *Session) releaseQuietly(ctx context.Context) bool {
	if s.released {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	_, _ = s.Release(ctx)
	return true
}

// WithSession acquires a session, runs fn and guarantees one release attempt
// on every exit path except a connection failure. fn is expected to release
// the session itself on success; onStart sees the start response before fn.
func WithSession(ctx context.Context, api API, id string, headless bool,
	onStart func(*browserapi.Response, error) error, fn func(*Session) error) (cleanedUp bool, err error) {

	s, resp, err := Acquire(ctx, api, id, headless)
	if onStart != nil {
		err = onStart(resp, err)
	}
	if err == nil {
		err = fn(s)
	}
	if err == nil {
		if !s.released {
			_, err = s.Release(ctx)
		}
		return false, err
	}
	if browserapi.IsConnectionError(err) {
		return false, err
	}
	return s.releaseQuietly(ctx), err
}
