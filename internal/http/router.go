package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterConfig selects the middleware stack around the resource routes.
type RouterConfig struct {
	BasePath     string
	MaxBodyBytes int64
	Metrics      bool
	Tracing      bool
	ServiceName  string
}

// NewRouter builds the gin engine serving handler.
func NewRouter(cfg RouterConfig, handler *Handler, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	// unknown paths, trailing slashes included, get the JSON not-found body
	router.RedirectTrailingSlash = false
	router.Use(recovery(logger))
	if cfg.Tracing {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(
		requestID(),
		requestLogger(logger),
		securityHeaders(),
		corsMiddleware(),
		bodyLimit(cfg.MaxBodyBytes),
	)

	if cfg.Metrics {
		prom := ginprometheus.NewPrometheus("gin")
		// label by route template so ids do not explode cardinality
		prom.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			if route := c.FullPath(); route != "" {
				return route
			}
			return "unmatched"
		}
		prom.Use(router)
	}

	handler.RegisterRoutes(router, cfg.BasePath)
	return router
}
