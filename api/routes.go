package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailresponder/api/middleware"
	"github.com/customeros/mailresponder/api/rest/handlers"
	"github.com/customeros/mailresponder/interfaces"
	"github.com/customeros/mailresponder/internal/tracing"
)

const AppSource = "mailresponder"

type RouteConfig struct {
	Mailbox interfaces.MailboxConnection
	Poller  handlers.Poller
	// APIKey protects /v1; the group is not registered without one
	APIKey string
}

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, cfg RouteConfig) {
	if cfg.Mailbox == nil {
		panic("Mailbox cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(cfg.Mailbox))

	if cfg.APIKey == "" || cfg.Poller == nil {
		return
	}

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.DefaultAPIKeyHeader,
		ValidAPIKey: cfg.APIKey,
	}))
	api.Use(middleware.CustomContextMiddleware(AppSource, cfg.Mailbox.Status().Mailbox))
	api.Use(middleware.TracingMiddleware())
	{
		api.POST("/poll", handlers.Poll(cfg.Poller))
	}
}
