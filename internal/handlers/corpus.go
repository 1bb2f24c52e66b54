package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parrothq/parrot/internal/corpus"
)

type CorpusHandler struct {
	logger *slog.Logger
	store  corpus.Store
}

func NewCorpusHandler(log *slog.Logger, store corpus.Store) *CorpusHandler {
	return &CorpusHandler{
		logger: log.With(slog.String("handler", "corpus")),
		store:  store,
	}
}

func (h *CorpusHandler) Register(e *echo.Echo) {
	e.GET("/api/corpus/stats", h.Stats)
}

// Stats reports the learned entry count of one guild.
func (h *CorpusHandler) Stats(c echo.Context) error {
	guildID := c.QueryParam("guild")
	if guildID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "guild query parameter is required",
		})
	}
	n, err := h.store.Count(c.Request().Context(), guildID)
	if err != nil {
		h.logger.Error("count entries", slog.String("guild_id", guildID), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "store unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"guild":   guildID,
		"entries": n,
	})
}
