// Package server is the gin-based ops API: health, metrics, and the
// manual pipeline controls.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/config"
	"skirmish/internal/controller"
)

type Server struct {
	system    controller.SystemController
	matches   controller.MatchController
	discovery controller.DiscoveryController
	stats     controller.StatsController
	config    *config.Config
	logger    zerolog.Logger
}

func New(cfg *config.Config, system controller.SystemController, matches controller.MatchController, discovery controller.DiscoveryController, stats controller.StatsController, logger zerolog.Logger) *http.Server {
	s := &Server{
		system:    system,
		matches:   matches,
		discovery: discovery,
		stats:     stats,
		config:    cfg,
		logger:    logger.With().Str("component", "ops_api").Logger(),
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
