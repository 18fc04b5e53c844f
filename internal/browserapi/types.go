package browserapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Endpoint paths of the browser automation API
const (
	PathStart      = "/api/browser/start"
	PathStop       = "/api/browser/stop"
	PathNavigate   = "/api/page/navigate"
	PathTitle      = "/api/page/title"
	PathURL        = "/api/page/url"
	PathScreenshot = "/api/page/screenshot"
	PathHTML       = "/api/page/html"
	PathExecute    = "/api/page/execute"
)

// StartParams is the body of a browser start request.
type StartParams struct {
	SessionID string `json:"sessionId"`
	Headless  bool   `json:"headless"`
}

// StopParams is the body of a browser stop request.
type StopParams struct {
	SessionID string `json:"sessionId"`
}

// NavigateParams is the body of a navigation request.
type NavigateParams struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// ScreenshotParams is the body of a screenshot request.
type ScreenshotParams struct {
	SessionID string `json:"sessionId"`
	Format    string `json:"format"`
}

// ExecuteParams is the body of a script execution request.
type ExecuteParams struct {
	SessionID string `json:"sessionId"`
	Script    string `json:"script"`
}

// Response is a received API response. Data is set only when the body
// decodes as a JSON object.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Data        map[string]interface{}
}

func newResponse(statusCode int, contentType string, body []byte) *Response {
	r := &Response{
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        body,
	}
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err == nil {
		r.Data = data
	}
	return r
}

// IsJSON reports whether the body was a JSON object
func (r *Response) IsJSON() bool {
	return r != nil && r.Data != nil
}

// Field returns a top-level field of the JSON body rendered as a string.
// Strings are returned as is, other values in their JSON form.
func (r *Response) Field(name string) (string, bool) {
	if !r.IsJSON() {
		return "", false
	}
	val, ok := r.Data[name]
	if !ok || val == nil {
		return "", false
	}
	switch t := val.(type) {
	case string:
		return t, true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(b), true
	}
}

// Success reports the "success" flag of the body; bodies without one count as
// successful when the status is 2xx.
func (r *Response) Success() bool {
	if r == nil || r.StatusCode < 200 || r.StatusCode > 299 {
		return false
	}
	if r.IsJSON() {
		if flag, ok := r.Data["success"].(bool); ok {
			return flag
		}
	}
	return true
}

// Text returns the body as text, trimmed of surrounding whitespace
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Body))
}
