package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/authz"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/config"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/strava"
	clubsync "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/sync"
)

type Server struct {
	cfg    *config.Config
	db     *gorm.DB
	client *strava.Client
	syncer *clubsync.Syncer
	worker *clubsync.Worker
	authz  *authz.AuthzApp
}

func New(cfg *config.Config, database *gorm.DB, client *strava.Client, syncer *clubsync.Syncer, worker *clubsync.Worker) *Server {
	return &Server{
		cfg:    cfg,
		db:     database,
		client: client,
		syncer: syncer,
		worker: worker,
		authz:  &authz.AuthzApp{DB: database},
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.Default())
	r.Use(s.authz.AuthMiddleware())

	if s.cfg.Uploads.Dir != "" {
		r.Static("/uploads", s.cfg.Uploads.Dir)
	}

	s.authz.RegisterRoutes(r)

	api := r.Group("/api")
	{
		api.GET("/health", s.healthCheckHandler)

		api.GET("/events", s.listEventsHandler)
		api.GET("/events/:slug", s.getEventHandler)

		api.GET("/news", s.listNewsHandler)
		api.GET("/news/feed.xml", s.newsFeedHandler)
		api.GET("/news/feed.atom", s.newsFeedHandler)
		api.GET("/news/:slug", s.getNewsHandler)

		api.GET("/photos", s.listPhotosHandler)
		api.GET("/products", s.listProductsHandler)

		api.GET("/pace", s.paceHandler)

		api.GET("/leaderboard", s.leaderboardHandler)
		api.GET("/activities/:id/route", s.activityRouteHandler)

		api.GET("/strava/connect", s.stravaConnectHandler)
		api.GET("/strava/callback", s.stravaCallbackHandler)
	}

	admin := api.Group("/admin")
	admin.Use(s.authz.RequireAuth(), s.authz.RequireAdmin())
	{
		admin.POST("/strava/sync", s.manualSyncHandler)
		admin.POST("/events", s.createEventHandler)
		admin.PUT("/events/:id", s.updateEventHandler)
		admin.DELETE("/events/:id", s.deleteEventHandler)
		admin.POST("/news", s.createNewsHandler)
		admin.PUT("/news/:id", s.updateNewsHandler)
		admin.DELETE("/news/:id", s.deleteNewsHandler)
		admin.POST("/products", s.createProductHandler)
		admin.PUT("/products/:id", s.updateProductHandler)
		admin.DELETE("/products/:id", s.deleteProductHandler)
		admin.POST("/photos", s.uploadPhotoHandler)
		admin.DELETE("/photos/:id", s.deletePhotoHandler)
	}

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	return s.Router().Run(addr)
}

func (s *Server) healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
