package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/bin-collection/internal/collector"
	"github.com/andygrunwald/bin-collection/internal/models"
	"github.com/andygrunwald/bin-collection/internal/schedule"
)

// Schedule is the read side of the collector used by the handlers.
type Schedule interface {
	Collections(ctx context.Context) (models.ProcessedApiResponse, collector.Entry, error)
	CacheStatus() models.CacheStatus
	Stats() collector.StatsSnapshot
}

// CollectionsHandler handles the /api/bin-collection endpoint.
type CollectionsHandler struct {
	cfg      ServerConfig
	schedule Schedule
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewCollectionsHandler creates a new CollectionsHandler.
func NewCollectionsHandler(cfg ServerConfig, s Schedule, metrics *Metrics, logger zerolog.Logger) *CollectionsHandler {
	return &CollectionsHandler{
		cfg:      cfg.withDefaults(),
		schedule: s,
		metrics:  metrics,
		logger:   logger,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *CollectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.TestMode {
		h.logger.Info().Str("scenario", string(h.cfg.TestVariant)).Msg("test mode enabled, returning canned schedule")
		data := schedule.Scenario(h.cfg.TestVariant, h.cfg.Now(), h.cfg.Location)
		h.respond(w, http.StatusOK, models.SourceTest, data)
		return
	}

	if h.cfg.UPRN == "" {
		h.respond(w, http.StatusInternalServerError, "", models.ErrorResponse{
			Error:   "UPRN not configured",
			Message: "UPRN environment variable is required",
		})
		return
	}

	data, entry, err := h.schedule.Collections(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Str("uprn", h.cfg.UPRN).Msg("error fetching bin collection data")
		h.respond(w, http.StatusInternalServerError, "", models.ErrorResponse{
			Error:   "Failed to fetch bin collection data",
			Message: err.Error(),
		})
		return
	}

	h.respond(w, http.StatusOK, entry.Source, data)
}

func (h *CollectionsHandler) respond(w http.ResponseWriter, status int, source models.Source, v any) {
	if source != "" {
		w.Header().Set("X-Data-Source", string(source))
	}
	if h.metrics != nil {
		h.metrics.RecordRequest("bin-collection", strconv.Itoa(status))
	}
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Debug().Err(err).Msg("failed to encode response")
	}
}
