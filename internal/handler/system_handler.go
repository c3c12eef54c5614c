package handler

import (
	"context"
	"net/http"

	"github.com/hongjs/code-tanuki/internal/provider"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type HealthChecker interface {
	Health(context.Context) error
}

// Integrations reports which external services have credentials.
type Integrations struct {
	HasJiraConfig   bool `json:"hasJiraConfig"`
	HasAnthropicKey bool `json:"hasAnthropicKey"`
	HasGeminiKey    bool `json:"hasGeminiKey"`
	HasGitHubToken  bool `json:"hasGitHubToken"`
}

func SetupSystemRoutes(
	g *echo.Group,
	health HealthChecker,
	catalog *provider.Catalog,
	integrations Integrations,
	logger *zap.Logger,
) {
	h := NewSystemHandler(health, catalog, integrations, logger)
	g.GET("/health", h.GetHealth)
	g.GET("/config", h.GetConfig)
	g.GET("/models", h.GetModels)
}

type SystemHandler struct {
	health       HealthChecker
	catalog      *provider.Catalog
	integrations Integrations
	logger       *zap.Logger
}

func NewSystemHandler(
	health HealthChecker,
	catalog *provider.Catalog,
	integrations Integrations,
	logger *zap.Logger,
) *SystemHandler {
	if catalog == nil {
		catalog = provider.DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{
		health:       health,
		catalog:      catalog,
		integrations: integrations,
		logger:       logger,
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *SystemHandler) GetHealth(c echo.Context) error {
	if err := h.health.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(
			http.StatusServiceUnavailable,
			healthResponse{Status: "unhealthy", Error: err.Error()},
		)
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "healthy"})
}

func (h *SystemHandler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.integrations)
}

func (h *SystemHandler) GetModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]provider.Model{"models": h.catalog.Models()})
}
