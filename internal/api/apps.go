package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/AppCenter/internal/catalog"
	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/upload"
)

type appRequest struct {
	Name        *string         `json:"name"`
	AppName     *string         `json:"appName"`
	DownloadKey *string         `json:"downloadKey"`
	Platform    *model.Platform `json:"system"`
	BundleID    *string         `json:"bundleId"`
	Icon        *string         `json:"icon"`
	Description *string         `json:"description"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (r appRequest) patch() model.ApplicationPatch {
	return model.ApplicationPatch{
		Name:        r.Name,
		AppName:     r.AppName,
		DownloadKey: r.DownloadKey,
		Platform:    r.Platform,
		BundleID:    r.BundleID,
		Icon:        r.Icon,
		Description: r.Description,
	}
}

type versionRequest struct {
	FileID        string `json:"fileId"`
	Version       string `json:"version"`
	BuildNumber   string `json:"buildNumber"`
	UpdateContent string `json:"updateContent"`
	Confirm       bool   `json:"confirm"`
}

type versionChanges struct {
	Version       *string              `json:"version"`
	BuildNumber   *string              `json:"buildNumber"`
	UpdateContent *string              `json:"updateContent"`
	Status        *model.VersionStatus `json:"status"`
}

func (s *Server) listApps(c *gin.Context) {
	apps, err := s.catalog.ListAppsFor(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "applications loaded", apps)
}

func (s *Server) createApp(c *gin.Context) {
	var req appRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid application request")
		return
	}
	in := catalog.NewApp{
		Name:        str(req.Name),
		AppName:     str(req.AppName),
		BundleID:    str(req.BundleID),
		Icon:        str(req.Icon),
		Description: str(req.Description),
		DownloadKey: str(req.DownloadKey),
		OwnerID:     actorFrom(c).ID,
	}
	if req.Platform != nil {
		in.Platform = *req.Platform
	}
	app, err := s.catalog.CreateApp(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "application created", app)
}

func (s *Server) getApp(c *gin.Context) {
	app, err := s.catalog.ManagedApp(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "application loaded", app)
}

func (s *Server) updateApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.catalog.ManagedApp(ctx, actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req appRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid application request")
		return
	}
	updated, err := s.catalog.UpdateApp(ctx, app.ID, req.patch())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "application updated", updated)
}

func (s *Server) deleteApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.catalog.ManagedApp(ctx, actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.catalog.DeleteApp(ctx, app.ID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "application deleted", nil)
}

func (s *Server) deleteAllApps(c *gin.Context) {
	n, err := s.catalog.ClearAll(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "all applications deleted", gin.H{"deletedCount": n})
}

func (s *Server) listVersions(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.catalog.ManagedApp(ctx, actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	versions, err := s.catalog.ListVersions(ctx, app.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "versions loaded", versions)
}

// confirmVersion previews the staged file when confirm is false and creates
// the version otherwise.
func (s *Server) confirmVersion(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.catalog.ManagedApp(ctx, actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid version request")
		return
	}
	res, err := s.uploads.ConfirmVersion(ctx, upload.ConfirmRequest{
		AppID:        app.ID,
		FileID:       strings.TrimSpace(req.FileID),
		Version:      req.Version,
		BuildNumber:  req.BuildNumber,
		ReleaseNotes: req.UpdateContent,
		Preview:      !req.Confirm,
		BaseURL:      baseURL(c),
		Actor:        actorFrom(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if !req.Confirm {
		respond(c, http.StatusOK, "file parsed", res)
		return
	}
	respond(c, http.StatusCreated, "version created", res)
}

func (s *Server) appVersion(c *gin.Context) (*model.Version, bool) {
	ctx := c.Request.Context()
	app, err := s.catalog.ManagedApp(ctx, actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	v, err := s.catalog.GetAppVersion(ctx, app.ID, c.Param("vid"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return v, true
}

func (s *Server) getVersion(c *gin.Context) {
	v, ok := s.appVersion(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "version loaded", v)
}

func (s *Server) updateVersion(c *gin.Context) {
	v, ok := s.appVersion(c)
	if !ok {
		return
	}
	var req versionChanges
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid version request")
		return
	}
	updated, err := s.catalog.UpdateVersion(c.Request.Context(), v.ID, model.VersionPatch{
		Version:      req.Version,
		BuildNumber:  req.BuildNumber,
		ReleaseNotes: req.UpdateContent,
		Status:       req.Status,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "version updated", updated)
}

func (s *Server) deleteVersion(c *gin.Context) {
	v, ok := s.appVersion(c)
	if !ok {
		return
	}
	if err := s.catalog.RemoveVersion(c.Request.Context(), v.ID); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "version deleted", nil)
}
