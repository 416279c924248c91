package preview

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Server exposes acquired previews over loopback HTTP.
type Server struct {
	Registry *Registry

	srv *http.Server
	ln  net.Listener
}

// Start listens on addr (use port 0 for any free port) and serves
// GET /preview/:id until Shutdown.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry("http://" + ln.Addr().String())
	s := &Server{
		Registry: reg,
		ln:       ln,
		srv: &http.Server{
			Handler:           Router(reg),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("preview server stopped")
		}
	}()
	logrus.WithField("addr", ln.Addr().String()).Info("preview server listening")
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error {
	s.Registry.ReleaseAll()
	return s.srv.Shutdown(ctx)
}

// Router builds the gin engine serving reg.
func Router(reg *Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/preview/:id", func(c *gin.Context) {
		src, err := reg.Lookup(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
			return
		}
		if src.ContentType != "" {
			c.Header("Content-Type", src.ContentType)
		}
		c.Header("Cache-Control", "no-store")
		c.File(src.Path)
	})
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("preview request")
	}
}
