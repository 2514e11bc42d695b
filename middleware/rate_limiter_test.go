package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func rateLimitedRouter(r rate.Limit, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/limited", middleware.RateLimit(r, burst), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func getFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstExceeded(t *testing.T) {
	router := rateLimitedRouter(rate.Every(time.Hour), 2)

	assert.Equal(t, http.StatusOK, getFrom(router, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, getFrom(router, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, getFrom(router, "10.0.0.1:1000").Code)
}

func TestRateLimit_BucketsPerClientIP(t *testing.T) {
	router := rateLimitedRouter(rate.Every(time.Hour), 1)

	assert.Equal(t, http.StatusOK, getFrom(router, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, getFrom(router, "10.0.0.1:1000").Code)

	// A different client still has its own budget.
	assert.Equal(t, http.StatusOK, getFrom(router, "10.0.0.2:1000").Code)
}
