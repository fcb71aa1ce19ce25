package http

import (
	"context"
	"net/http"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/config"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// StateSource is the read side of the engine.
type StateSource interface {
	State() *domain.State
	Subscribe(fn app.Observer) app.Subscription
}

const viewerKey = "viewer"

// ViewerTokenMiddleware gives every inspector client a stable token kept
// in its session, used to tell websocket viewers apart in logs.
func ViewerTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(viewerKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(viewerKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save viewer session")
			}
		}
		c.Set(viewerKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, src StateSource, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallStateInspector", store))
	r.Use(ViewerTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": src.State().Version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.State())
	})
	api.GET("/ws/state", func(c *gin.Context) {
		viewer := c.GetString(viewerKey)
		log.Info().Str("module", "adapters.http").Str("viewer", viewer).Msg("ws state endpoint hit")
		ServeState(ctx, c, src, viewer)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
