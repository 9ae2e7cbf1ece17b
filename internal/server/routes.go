package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins: s.config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/workers", s.workersHandler)
		v1.GET("/matches", s.listMatchesHandler)
		v1.GET("/matches/:id", s.getMatchHandler)
		v1.POST("/matches/:id/republish", s.republishHandler)
		v1.POST("/discovery/:lane/run", s.runDiscoveryHandler)
		v1.POST("/aggregation/backfill", s.backfillHandler)
		v1.GET("/fights", s.fightsHandler)
	}

	return r
}
