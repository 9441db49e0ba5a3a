package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// TestMiddlewareUsesRoutePattern expects requests to be counted per route, not per URL.
func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/contacts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", m.Handler())

	for _, url := range []string{"/contacts/1", "/contacts/2", "/nowhere"} {
		request, _ := http.NewRequest("GET", url, nil)
		router.ServeHTTP(httptest.NewRecorder(), request)
	}
	m.Mutation("created")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/contacts/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("created")))

	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `contacts_mutations_total{operation="created"} 1`)
}
