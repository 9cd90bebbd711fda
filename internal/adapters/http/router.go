package http

import (
	"context"
	"net/http"

	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionName = "HuddleSessions"

// SetupRouter wires the static UI, the REST API under /api and the
// signaling websocket at /api/ws/signal.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.Controller) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	rooms := &roomHandlers{orch: o}
	api.GET("/rooms", rooms.list)
	api.GET("/rooms/:id", rooms.get)
	api.GET("/rooms/:id/messages", rooms.messages)
	api.GET("/router-rtp-capabilities", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", o.RouterCapabilities())
	})

	api.GET("/ws/signal", IdentityMiddleware(), func(c *gin.Context) {
		user := currentUser(c)
		log.Info().Str("module", "adapters.http").Str("user_id", string(user.ID)).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c, user)
	})

	return r
}
