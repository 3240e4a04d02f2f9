// Package api exposes the bot over HTTP: the Telegram webhook plus read-only catalog views.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
)

// Enqueuer hands an update to the event loop. *bot.Bot satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, u tg.Update) error
}

const (
	maxUpdateBytes = 2 << 20
	enqueueTimeout = 9 * time.Second
)

type Handler struct {
	Bot    Enqueuer
	Store  *storage.Store
	Logger zerolog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rg := router.Group("/api")
	rg.POST("/webhook", h.webhook)
	h.RegisterLibraryRoutes(rg)
	return router
}

func (h *Handler) webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpdateBytes)

	var upd tg.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), enqueueTimeout)
	defer cancel()
	if err := h.Bot.Enqueue(ctx, upd); err != nil {
		h.Logger.Warn().Err(err).Int("update_id", upd.UpdateID).Msg("update dropped")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
		return
	}
	c.Status(http.StatusOK)
}
