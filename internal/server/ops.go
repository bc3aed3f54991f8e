package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/briefbot/internal/graph"
	"github.com/mohammad-safakhou/briefbot/internal/runtime"
	"github.com/mohammad-safakhou/briefbot/internal/store"
	"github.com/mohammad-safakhou/briefbot/models"
)

// OpsHandler exposes operator-only endpoints: manual job triggers and daily
// cache inspection.
type OpsHandler struct {
	Engine *graph.Engine
	Sched  *Scheduler
	Store  *store.Store
	Secret []byte
}

// Register mounts the ops endpoints behind JWT auth.
func (h *OpsHandler) Register(g *echo.Group) {
	g.Use(runtime.EchoAuthMiddleware(h.Secret))
	g.POST("/generate/:category", h.generate)
	g.POST("/push", h.push)
	g.GET("/cache", h.cache)
	g.GET("/cache/:category/:date", h.cacheEntry)
}

// generate forces one category's briefing now, bypassing today's cache.
func (h *OpsHandler) generate(c echo.Context) error {
	category := c.Param("category")
	force := c.QueryParam("force") != "false"
	b, err := h.Engine.GenerateCategory(c.Request().Context(), category, force)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}

// push runs the push-and-archive pass in the background.
func (h *OpsHandler) push(c echo.Context) error {
	go h.Sched.RunPushAndArchive(context.Background())
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// cache lists recent daily cache rows, newest first.
func (h *OpsHandler) cache(c echo.Context) error {
	entries, err := h.Store.ListCache(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]interface{}{
			"category":     e.Category,
			"date":         e.Date,
			"generated_at": e.GeneratedAt,
			"bytes":        len(e.Structured),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// cacheEntry returns one row's structured briefing.
func (h *OpsHandler) cacheEntry(c echo.Context) error {
	entry, err := h.Store.GetCache(c.Request().Context(), c.Param("category"), c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	b, err := models.ParseBriefing(entry.Structured)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}
