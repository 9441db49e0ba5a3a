// Package page answers requests with server-driven pages: the name of a client-side component
// plus the props it is rendered with.
package page

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contacts-service/internal/flash"
	"gitlab.com/dirk.krummacker/contacts-service/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-service/pkg/model"
	"go.uber.org/zap"
)

// Protocol headers.
const (
	Header         = "X-Inertia"
	VersionHeader  = "X-Inertia-Version"
	LocationHeader = "X-Inertia-Location"
)

// shell is the HTML document for the first visit. The client-side app reads the page from the
// data-page attribute and takes over from there.
const shell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Contact Manager</title>
<script type="module" src="/build/app.js"></script>
</head>
<body>
<div id="app" data-page="{{ .Page }}"></div>
</body>
</html>
`

// Renderer renders pages and redirects. Flash data stored before a redirect is pulled into the
// props of the next rendered page.
type Renderer struct {
	flash   flash.Store
	version string
}

// NewRenderer returns a renderer for the given asset version.
func NewRenderer(store flash.Store, version string) *Renderer {
	return &Renderer{flash: store, version: version}
}

// Install registers the HTML shell with the router.
func (r *Renderer) Install(router *gin.Engine) {
	router.SetHTMLTemplate(template.Must(template.New("app").Parse(shell)))
}

// IsPageRequest reports whether the client asked for the page as JSON.
func IsPageRequest(c *gin.Context) bool {
	return c.GetHeader(Header) == "true"
}

// Render answers with the component and its props. The shared props "flash" and "errors" are
// always present.
func (r *Renderer) Render(c *gin.Context, component string, props gin.H) {
	clientVersion := c.GetHeader(VersionHeader)
	if IsPageRequest(c) && c.Request.Method == http.MethodGet && clientVersion != "" && clientVersion != r.version {
		// The client runs outdated assets and has to reload the whole document.
		c.Header(LocationHeader, c.Request.URL.RequestURI())
		c.Status(http.StatusConflict)
		return
	}

	f, err := r.flash.Pull(c)
	if err != nil {
		logger.FromGin(c).Warn("discarding unreadable flash", zap.Error(err))
	}
	if props == nil {
		props = gin.H{}
	}
	var success interface{}
	if f.Success != "" {
		success = f.Success
	}
	props["flash"] = gin.H{"success": success}
	errors := f.Errors
	if errors == nil {
		errors = map[string]string{}
	}
	props["errors"] = errors

	p := model.Page{
		Component: component,
		Props:     props,
		URL:       c.Request.URL.RequestURI(),
		Version:   r.version,
	}
	c.Header("Vary", Header)
	if IsPageRequest(c) {
		c.Header(Header, "true")
		c.JSON(http.StatusOK, p)
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.HTML(http.StatusOK, "app", gin.H{"Page": string(data)})
}

// Redirect stores the flash and redirects with 303 See Other, so that the client follows up
// with a GET whatever the method of the original request was.
func (r *Renderer) Redirect(c *gin.Context, location string, f flash.Flash) {
	if !f.Empty() {
		if err := r.flash.Put(c, f); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}
	c.Redirect(http.StatusSeeOther, location)
}

// Back returns the page the request came from if it belongs to this site, otherwise fallback.
func Back(c *gin.Context, fallback string) string {
	referer, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || referer.Path == "" {
		return fallback
	}
	if referer.Host != "" && referer.Host != c.Request.Host {
		return fallback
	}
	return referer.RequestURI()
}
