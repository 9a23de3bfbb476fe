package http

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dkeye/callrecap/internal/adapters/ratelimit"
	"github.com/dkeye/callrecap/internal/adapters/signal"
	"github.com/dkeye/callrecap/internal/app/orch"
	"github.com/dkeye/callrecap/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// pages are the browser entry points served from the static root.
var pages = []string{"start-call", "join-room", "call-room"}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, rec Recorder) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 30, HttpOnly: true})
	r.Use(sessions.Sessions("RecapSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	for _, page := range pages {
		file := filepath.Join(cfg.StaticPath, page+".html")
		r.GET("/"+page+".html", func(c *gin.Context) { c.File(file) })
	}

	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	uploads := &uploadHandler{
		rec:      rec,
		maxBytes: cfg.Recording.MaxUploadBytes,
		limiter:  ratelimit.New(cfg.Upload.Rate, cfg.Upload.Burst),
	}
	r.POST("/upload-audio", uploads.handle)
	go uploads.limiter.SweepEvery(ctx, time.Minute, 10*time.Minute)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		Rate:       cfg.Signal.Rate,
		Burst:      cfg.Signal.Burst,
	})
	api := r.Group("/api")
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	rest := &restHandler{orch: o, rec: rec, iceURLs: cfg.ICEServers}
	api.GET("/rooms", rest.listRooms)
	api.DELETE("/rooms/:id", rest.stopRoom)
	api.GET("/rooms/:id/participants", rest.participants)
	api.GET("/rooms/:id/recording", rest.recording)
	api.GET("/ice-servers", rest.iceServers)
	api.GET("/profile", rest.getProfile)
	api.PUT("/profile", rest.putProfile)

	return r
}
