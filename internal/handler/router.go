package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keyforge/keyforge/internal/middleware"
)

type RouterDeps struct {
	Shares    *ShareHandler
	Layouts   *LayoutHandler
	Realtime  *RealtimeHandler
	Files     *FileHandler
	JWTSecret []byte

	// zero disables rate limiting
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.OptionalIdentity(deps.JWTSecret))

	limited := api.Group("")
	if deps.RateLimitWindow > 0 {
		limited.Use(middleware.RateLimit(deps.RateLimitWindow))
	}
	limited.POST("/shares", deps.Shares.Create)
	limited.GET("/shares/:token", deps.Shares.Inspect)

	api.GET("/shares", deps.Shares.List)
	api.PATCH("/shares/:token", deps.Shares.Patch)
	api.DELETE("/shares/:token", deps.Shares.Delete)

	api.POST("/layouts", deps.Layouts.Create)
	api.GET("/layouts", deps.Layouts.List)
	api.GET("/layouts/:id", deps.Layouts.Get)
	api.PUT("/layouts/:id", deps.Layouts.Update)

	api.POST("/files/upload", deps.Files.Upload)
	api.GET("/files/:key", deps.Files.Get)

	api.GET("/realtime/ws", deps.Realtime.Serve)
}
