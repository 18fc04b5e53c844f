package stubserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emicklei/go-restful/v3"

	"github.com/babelcloud/navwalk/pkg/format"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// Server is an in-memory stand-in for the browser automation service.
type Server struct {
	store     *Store
	logger    *logger.Logger
	container *restful.Container
	endpoints []format.APIEndpoint

	mu       sync.RWMutex
	failures map[string]int
}

// New builds the server and its routes
func New(log *logger.Logger) *Server {
	if log == nil {
		log = logger.New()
	}
	s := &Server{
		store:    NewStore(),
		logger:   log,
		failures: make(map[string]int),
	}

	ws := new(restful.WebService)
	ws.Path("/api").Produces(restful.MIME_JSON)
	RegisterRoutes(ws, NewHandler(s.store, log))

	container := restful.NewContainer()
	container.Add(ws)

	for _, route := range ws.Routes() {
		s.endpoints = append(s.endpoints, format.APIEndpoint{
			Method:      route.Method,
			Path:        route.Path,
			Description: route.Doc,
		})
	}

	cors := restful.CrossOriginResourceSharing{
		AllowedHeaders: []string{"Content-Type", "Accept"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedDomains: []string{"*"},
		Container:      container,
	}
	container.Filter(cors.Filter)
	container.Filter(s.journalFilter)

	s.container = container
	return s
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.container
}

// Store returns the backing session store
func (s *Server) Store() *Store {
	return s.store
}

// Calls returns the journal of handled requests
func (s *Server) Calls() []Call {
	return s.store.Calls()
}

// Endpoints lists the registered routes
func (s *Server) Endpoints() []format.APIEndpoint {
	return s.endpoints
}

// FailPath makes every request to path answer with status. A status of zero
// clears the failure.
func (s *Server) FailPath(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

func (s *Server) failureFor(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.failures[path]
	return status, ok
}

// journalFilter logs and records each request and applies injected failures.
func (s *Server) journalFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	path := req.Request.URL.Path
	sessionID := sessionFromRequest(req.Request)

	s.logger.Info("%s %s %s", format.FormatHTTPMethod(req.Request.Method), req.Request.URL.RequestURI(), req.Request.Proto)

	if status, ok := s.failureFor(path); ok {
		_ = resp.WriteHeaderAndJson(status, errorBody{Success: false, Error: fmt.Sprintf("injected failure for %s", path)}, restful.MIME_JSON)
	} else {
		chain.ProcessFilter(req, resp)
	}

	s.logger.Debug("Response status: %d", resp.StatusCode())
	s.store.record(Call{
		Method:    req.Request.Method,
		Path:      path,
		SessionID: sessionID,
		Status:    resp.StatusCode(),
	})
}

// sessionFromRequest reads the session id from the query or a JSON body,
// leaving the body readable for the handler
func sessionFromRequest(r *http.Request) string {
	if id := r.URL.Query().Get("sessionId"); id != "" {
		return id
	}
	if r.Body == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var probe struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.SessionID
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	format.LogAPIEndpoints(s.logger, s.endpoints)

	server := &http.Server{
		Addr:    addr,
		Handler: s.container,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting stub browser API on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info("Server exited properly")
	return nil
}
