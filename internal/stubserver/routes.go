package stubserver

import (
	"net/http"

	"github.com/emicklei/go-restful/v3"

	"github.com/babelcloud/navwalk/internal/browserapi"
)

// RegisterRoutes adds the browser and page routes to ws, which is rooted at /api.
func RegisterRoutes(ws *restful.WebService, handler *Handler) {

	// --- Browser lifecycle ---

	ws.Route(ws.POST("/browser/start").To(handler.StartBrowser).
		Doc("Start a browser session").
		Consumes(restful.MIME_JSON).
		Reads(browserapi.StartParams{}).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusBadRequest, "Bad Request", errorBody{}).
		Returns(http.StatusConflict, "Conflict", errorBody{}))

	ws.Route(ws.POST("/browser/stop").To(handler.StopBrowser).
		Doc("Stop a browser session").
		Consumes(restful.MIME_JSON).
		Reads(browserapi.StopParams{}).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))

	// --- Page ---

	ws.Route(ws.POST("/page/navigate").To(handler.Navigate).
		Doc("Navigate the session page to a URL").
		Consumes(restful.MIME_JSON).
		Reads(browserapi.NavigateParams{}).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusBadRequest, "Bad Request", errorBody{}).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))

	ws.Route(ws.GET("/page/title").To(handler.GetTitle).
		Doc("Get the page title").
		Param(ws.QueryParameter("sessionId", "identifier of the session").DataType("string")).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))

	ws.Route(ws.GET("/page/url").To(handler.GetURL).
		Doc("Get the page URL").
		Param(ws.QueryParameter("sessionId", "identifier of the session").DataType("string")).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))

	ws.Route(ws.GET("/page/html").To(handler.GetHTML).
		Doc("Get the page HTML").
		Param(ws.QueryParameter("sessionId", "identifier of the session").DataType("string")).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))

	ws.Route(ws.POST("/page/screenshot").To(handler.Screenshot).
		Doc("Capture the page as an image").
		Consumes(restful.MIME_JSON).
		Produces("image/png", "image/jpeg", restful.MIME_JSON).
		Reads(browserapi.ScreenshotParams{}).
		Returns(http.StatusOK, "image bytes", nil).
		Returns(http.StatusBadRequest, "Bad Request", errorBody{}).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))

	ws.Route(ws.POST("/page/execute").To(handler.Execute).
		Doc("Evaluate a script in the page").
		Consumes(restful.MIME_JSON).
		Reads(browserapi.ExecuteParams{}).
		Returns(http.StatusOK, "OK", nil).
		Returns(http.StatusBadRequest, "Bad Request", errorBody{}).
		Returns(http.StatusNotFound, "Not Found", errorBody{}))
}
