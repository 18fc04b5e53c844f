package stubserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/emicklei/go-restful/v3"

	"github.com/babelcloud/navwalk/internal/browserapi"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// Handler exposes a Store through the browser automation API.
type Handler struct {
	store  *Store
	logger *logger.Logger
}

// NewHandler creates a handler for store
func NewHandler(store *Store, log *logger.Logger) *Handler {
	if store == nil {
		panic("Store cannot be nil")
	}
	return &Handler{store: store, logger: log}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError writes a JSON error body with statusCode
func (h *Handler) writeError(resp *restful.Response, statusCode int, err error) {
	h.logger.Debug("API Error (%d): %v", statusCode, err)
	_ = resp.WriteHeaderAndJson(statusCode, errorBody{Success: false, Error: err.Error()}, restful.MIME_JSON)
}

func (h *Handler) writeJSON(resp *restful.Response, body interface{}) {
	_ = resp.WriteHeaderAndJson(http.StatusOK, body, restful.MIME_JSON)
}

// storeStatus maps store errors to status codes
func storeStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// StartBrowser handles POST /api/browser/start
func (h *Handler) StartBrowser(req *restful.Request, resp *restful.Response) {
	var params browserapi.StartParams
	if err := req.ReadEntity(&params); err != nil {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if params.SessionID == "" {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("sessionId is required"))
		return
	}

	bs, err := h.store.Start(params.SessionID, params.Headless)
	if err != nil {
		h.writeError(resp, storeStatus(err), err)
		return
	}
	h.logger.Info("Started browser %s for session %s (headless=%t)", bs.BrowserID, bs.ID, bs.Headless)

	h.writeJSON(resp, map[string]interface{}{
		"success":   true,
		"sessionId": bs.ID,
		"browserId": bs.BrowserID,
		"headless":  bs.Headless,
		"message":   "Browser started",
	})
}

// StopBrowser handles POST /api/browser/stop
func (h *Handler) StopBrowser(req *restful.Request, resp *restful.Response) {
	var params browserapi.StopParams
	if err := req.ReadEntity(&params); err != nil {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := h.store.Stop(params.SessionID); err != nil {
		h.writeError(resp, storeStatus(err), err)
		return
	}
	h.logger.Info("Stopped browser for session %s", params.SessionID)

	h.writeJSON(resp, map[string]interface{}{
		"success":   true,
		"sessionId": params.SessionID,
		"message":   "Browser stopped",
	})
}

// Navigate handles POST /api/page/navigate
func (h *Handler) Navigate(req *restful.Request, resp *restful.Response) {
	var params browserapi.NavigateParams
	if err := req.ReadEntity(&params); err != nil {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if _, err := h.store.Page(params.SessionID); err != nil {
		h.writeError(resp, storeStatus(err), err)
		return
	}
	if params.URL == "" {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}

	page, err := loadPage(params.URL)
	if err != nil {
		h.writeError(resp, http.StatusBadRequest, err)
		return
	}
	if err := h.store.SetPage(params.SessionID, page); err != nil {
		h.writeError(resp, storeStatus(err), err)
		return
	}

	h.writeJSON(resp, map[string]interface{}{
		"success": true,
		"url":     page.URL,
		"title":   page.Title,
	})
}

// pageFor loads the page of the session named in the query string
func (h *Handler) pageFor(req *restful.Request, resp *restful.Response) (Page, bool) {
	sessionID := req.QueryParameter("sessionId")
	if sessionID == "" {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("sessionId is required"))
		return Page{}, false
	}
	page, err := h.store.Page(sessionID)
	if err != nil {
		h.writeError(resp, storeStatus(err), err)
		return Page{}, false
	}
	return page, true
}

// GetTitle handles GET /api/page/title
func (h *Handler) GetTitle(req *restful.Request, resp *restful.Response) {
	if page, ok := h.pageFor(req, resp); ok {
		h.writeJSON(resp, map[string]interface{}{"success": true, "title": page.Title})
	}
}

// GetURL handles GET /api/page/url
func (h *Handler) GetURL(req *restful.Request, resp *restful.Response) {
	if page, ok := h.pageFor(req, resp); ok {
		h.writeJSON(resp, map[string]interface{}{"success": true, "url": page.URL})
	}
}

// GetHTML handles GET /api/page/html
func (h *Handler) GetHTML(req *restful.Request, resp *restful.Response) {
	if page, ok := h.pageFor(req, resp); ok {
		h.writeJSON(resp, map[string]interface{}{"success": true, "html": page.HTML})
	}
}

// Screenshot handles POST /api/page/screenshot
func (h *Handler) Screenshot(req *restful.Request, resp *restful.Response) {
	var params browserapi.ScreenshotParams
	if err := req.ReadEntity(&params); err != nil {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	page, err := h.store.Page(params.SessionID)
	if err != nil {
		h.writeError(resp, storeStatus(err), err)
		return
	}

	data, contentType, err := renderScreenshot(page, params.Format)
	if err != nil {
		h.writeError(resp, http.StatusBadRequest, err)
		return
	}

	resp.Header().Set("Content-Type", contentType)
	resp.WriteHeader(http.StatusOK)
	if _, err := resp.Write(data); err != nil {
		h.logger.Error("Failed to write screenshot: %v", err)
	}
}

// Execute handles POST /api/page/execute
func (h *Handler) Execute(req *restful.Request, resp *restful.Response) {
	var params browserapi.ExecuteParams
	if err := req.ReadEntity(&params); err != nil {
		h.writeError(resp, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	page, err := h.store.Page(params.SessionID)
	if err != nil {
		h.writeError(resp, storeStatus(err), err)
		return
	}

	result, err := evaluate(page, params.Script)
	if err != nil {
		h.writeError(resp, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(resp, map[string]interface{}{"success": true, "result": result})
}
