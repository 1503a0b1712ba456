package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Password    string
	CORSOrigins []string
	Release     bool
}

func SetupRouter(cfg RouterConfig, logger *zap.Logger, h *Handler) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(recovery(logger))
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(passwordAuth(cfg.Password))
	{
		api.GET("/channels", h.ListChannels)
		api.POST("/channels", h.AddChannel)
		api.POST("/channels/reload", h.ReloadChannels)
		api.GET("/channels/info", h.ChannelInfo)
		api.PUT("/channels/:identifier", h.RenameChannel)
		api.DELETE("/channels/:identifier", h.RemoveChannel)

		api.GET("/state/:channelID", h.GetState)
		api.DELETE("/state/:channelID", h.ResetState)

		api.POST("/check", h.Check)
		api.POST("/cache/cleanup", h.CleanupCache)
		api.GET("/status", h.Status)
	}

	return r
}
