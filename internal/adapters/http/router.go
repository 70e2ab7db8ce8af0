package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/harvey0995/GhostBridge/internal/adapters/signal"
	"github.com/harvey0995/GhostBridge/internal/app"
	"github.com/harvey0995/GhostBridge/internal/config"
)

const serverVersion = "1.0.0"

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if _, ok := set[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// healthDevice is the trimmed device view exposed on /health; activity and
// socket id stay internal.
type healthDevice struct {
	DeviceType  string `json:"deviceType"`
	DeviceName  string `json:"deviceName"`
	ConnectedAt string `json:"connectedAt"`
}

// SetupRouter wires the HTTP surface: the read-only status routes, the
// metrics endpoint, and the WebSocket upgrade for the event gateway.
func SetupRouter(ctx context.Context, cfg *config.Config, engine *app.Engine, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("GhostBridgeSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "GhostBridge relay running",
			"version": serverVersion,
			"socketEvents": gin.H{
				"listen": []string{signal.EvRegisterDevice, signal.EvJoinRoom, signal.EvButtonClicked, signal.EvSendFile},
				"emit":   []string{app.EvDevicesUpdated, app.EvClickReceived, app.EvClickConfirmed, app.EvReceiveFile, app.EvServerShutdown},
			},
		})
	})

	r.GET("/health", func(c *gin.Context) {
		devices := engine.Registry.Devices()
		out := make([]healthDevice, 0, len(devices))
		for _, d := range devices {
			out = append(out, healthDevice{
				DeviceType:  d.DeviceType,
				DeviceName:  d.DeviceName,
				ConnectedAt: d.ConnectedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"timestamp":        time.Now().Format(time.RFC3339),
			"connectedDevices": len(devices),
			"devices":          out,
		})
	})

	r.GET("/devices", func(c *gin.Context) {
		devices := engine.Registry.Devices()
		c.JSON(http.StatusOK, gin.H{
			"count":   len(devices),
			"devices": devices,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	return r
}
