package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewGinEngine builds a Gin router and registers the authorization server routes.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(logger.GinLogger())
	r.Use(parseFormMiddleware())

	r.GET("/authorize", ginFrom(s.HandleAuthorizeRequest))
	r.POST("/approve", ginFrom(s.HandleApproveRequest))
	r.POST("/token", ginFrom(s.HandleTokenRequest))
	r.POST("/revoke", ginFrom(s.HandleRevocationRequest))
	r.POST("/introspect", ginFrom(s.HandleIntrospectionRequest))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// ginFrom adapts existing handlers (http.ResponseWriter, *http.Request) to a Gin handler.
func ginFrom(h func(http.ResponseWriter, *http.Request) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h(c.Writer, c.Request); err != nil {
			_ = c.Error(err)
		}
		c.Abort()
	}
}

// parseFormMiddleware ensures r.ParseForm() is called for urlencoded/multipart requests so r.FormValue works.
func parseFormMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		ct := r.Header.Get("Content-Type")
		if r.Method == http.MethodPost && ct != "" {
			if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
				_ = r.ParseForm()
			}
		}
		c.Next()
	}
}
