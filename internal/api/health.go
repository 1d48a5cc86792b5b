package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"startedAt": humanize.Time(s.startedAt),
	})
}

func (s *Server) healthDetailed(c *gin.Context) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"filesystem": statusHealthy}
	if err := s.checkUploadDir(); err != nil {
		s.logger.Warn("health check failed", "check", "filesystem", "error", err)
		checks["filesystem"] = statusUnhealthy
	}
	for name, check := range s.checks {
		checks[name] = statusHealthy
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", "check", name, "error", err)
			checks[name] = statusUnhealthy
		}
	}

	overall, code := statusHealthy, http.StatusOK
	for _, state := range checks {
		if state != statusHealthy {
			overall, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, gin.H{
		"status":       overall,
		"checks":       checks,
		"timestamp":    time.Now().UTC(),
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"responseTime": fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	})
}

// checkUploadDir verifies the upload directory accepts writes.
func (s *Server) checkUploadDir() error {
	f, err := os.CreateTemp(s.cfg.UploadDir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
