// Package api exposes the AppCenter HTTP surface: the authenticated dashboard
// API, the automation upload endpoint and the public download routes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/AppCenter/internal/catalog"
	"github.com/dharsanguruparan/AppCenter/internal/config"
	"github.com/dharsanguruparan/AppCenter/internal/distribution"
	"github.com/dharsanguruparan/AppCenter/internal/staging"
	"github.com/dharsanguruparan/AppCenter/internal/upload"
	"github.com/dharsanguruparan/AppCenter/internal/users"
)

// Presigner serves mirrored binaries when the local copy is missing.
type Presigner interface {
	Exists(ctx context.Context, objectKey string) (bool, error)
	PresignURL(ctx context.Context, objectKey, fileName string, expiry time.Duration) (string, error)
}

// Check is a named dependency probe for the detailed health endpoint.
type Check func(ctx context.Context) error

// Deps are the services behind the HTTP surface.
type Deps struct {
	Config       *config.Config
	Users        *users.Service
	Catalog      *catalog.Service
	Uploads      *upload.Service
	Distribution *distribution.Service
	Staging      *staging.Store
	// Mirror may be nil.
	Mirror Presigner
	// Checks are probed by /health/detailed in addition to the upload dir.
	Checks map[string]Check
	Logger *slog.Logger
}

// Server hosts the gin engine.
type Server struct {
	cfg       *config.Config
	users     *users.Service
	catalog   *catalog.Service
	uploads   *upload.Service
	dist      *distribution.Service
	staging   *staging.Store
	mirror    Presigner
	checks    map[string]Check
	logger    *slog.Logger
	startedAt time.Time

	once    sync.Once
	handler http.Handler
	server  *http.Server
}

// New constructs a Server.
func New(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		users:     d.Users,
		catalog:   d.Catalog,
		uploads:   d.Uploads,
		dist:      d.Distribution,
		staging:   d.Staging,
		mirror:    d.Mirror,
		checks:    d.Checks,
		logger:    d.Logger.With("component", "api"),
		startedAt: time.Now(),
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), requestLogger(s.logger), cors(s.cfg.CORSOrigin))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Code: "SY4041", Message: "route not found"})
	})

	r.GET("/uploads/:appId/:file", s.serveUpload)
	r.HEAD("/uploads/:appId/:file", s.serveUpload)

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.health)
	v1.GET("/health/detailed", s.healthDetailed)

	authGroup := v1.Group("/auth")
	authGroup.POST("/login", s.login)
	authGroup.POST("/register", s.register)
	authGroup.GET("/verify", s.authenticate(), s.verify)

	download := v1.Group("/download")
	download.GET("/:key", s.downloadInfo)
	download.GET("/:key/plist", s.downloadPlist)
	download.GET("/:key/versions", s.downloadVersions)

	v1.POST("/automation/upload", s.automationUpload)

	protected := v1.Group("")
	protected.Use(s.authenticate())

	usersGroup := protected.Group("/users")
	usersGroup.GET("", s.listUsers)
	usersGroup.GET("/mine", s.listMyUsers)
	usersGroup.GET("/my-users", s.listMyUsers)
	usersGroup.GET("/stats", s.userStats)
	usersGroup.GET("/:id", s.getUser)
	usersGroup.POST("", s.createUser)
	usersGroup.PUT("/:id", s.updateUser)
	usersGroup.POST("/:id/toggle-status", s.toggleUser)
	usersGroup.DELETE("/:id", s.deleteUser)

	manage := requireRole(roleAdmin, roleSuperAdmin)
	apps := protected.Group("/apps")
	apps.GET("", s.listApps)
	apps.POST("", manage, s.createApp)
	apps.POST("/delete-all", requireRole(roleSuperAdmin), s.deleteAllApps)
	apps.GET("/:id", s.getApp)
	apps.POST("/:id/update", manage, s.updateApp)
	apps.POST("/:id/delete", manage, s.deleteApp)
	apps.GET("/:id/versions", s.listVersions)
	apps.POST("/:id/versions", manage, s.confirmVersion)
	apps.GET("/:id/versions/:vid", s.getVersion)
	apps.POST("/:id/versions/:vid/update", manage, s.updateVersion)
	apps.POST("/:id/versions/:vid/delete", manage, s.deleteVersion)

	files := protected.Group("/files", manage)
	files.POST("/upload", s.uploadFile)
	files.POST("/cleanup/temp", s.cleanupTemp)
	files.GET("/:id", s.getFile)
	files.POST("/:id/delete", s.deleteFile)

	return r
}
