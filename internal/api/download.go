package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
)

const presignExpiry = 15 * time.Minute

func (s *Server) downloadInfo(c *gin.Context) {
	app, err := s.dist.Lookup(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "application loaded", app)
}

func (s *Server) downloadVersions(c *gin.Context) {
	versions, err := s.dist.ListVersionHistory(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "versions loaded", versions)
}

func (s *Server) downloadPlist(c *gin.Context) {
	m, err := s.dist.InstallManifest(c.Request.Context(), c.Param("key"), c.Query("version"), c.Request.Host)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", m.Filename))
	c.Data(http.StatusOK, "application/x-plist", m.Body)
}

// safeSegment rejects path segments that could escape the upload directory.
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}

// serveUpload serves a confirmed binary from disk, or redirects to the mirror
// when the local copy is gone.
func (s *Server) serveUpload(c *gin.Context) {
	appID, name := c.Param("appId"), c.Param("file")
	if !safeSegment(appID) || !safeSegment(name) || appID == "temp" {
		s.fail(c, apperr.ErrFileNotFound)
		return
	}
	path := filepath.Join(s.cfg.UploadDir, appID, name)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if strings.EqualFold(filepath.Ext(name), ".apk") {
			c.Header("Content-Type", "application/vnd.android.package-archive")
		}
		c.File(path)
		return
	}
	if s.mirror != nil {
		ctx := c.Request.Context()
		key := appID + "/" + name
		found, err := s.mirror.Exists(ctx, key)
		if err != nil {
			s.logger.Warn("mirror lookup failed", "object_key", key, "error", err)
		}
		if found {
			u, err := s.mirror.PresignURL(ctx, key, name, presignExpiry)
			if err != nil {
				s.fail(c, apperr.ErrFileSystem.Wrap(err))
				return
			}
			c.Redirect(http.StatusFound, u)
			return
		}
	}
	s.fail(c, apperr.ErrFileNotFound)
}
