package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// ArchiveReporter reports the state of the fetch archive.
type ArchiveReporter interface {
	Status(ctx context.Context) models.ArchiveStatus
}

// archiveStatusTimeout bounds the database round trips of a health check.
const archiveStatusTimeout = 2 * time.Second

// HealthHandler handles the /api/health endpoint. It only inspects state
// and never triggers an upstream fetch.
type HealthHandler struct {
	cfg       ServerConfig
	schedule  Schedule
	archive   ArchiveReporter
	startTime time.Time
	logger    zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg ServerConfig, s Schedule, archive ArchiveReporter, logger zerolog.Logger) *HealthHandler {
	cfg = cfg.withDefaults()
	return &HealthHandler{
		cfg:       cfg,
		schedule:  s,
		archive:   archive,
		startTime: cfg.Now(),
		logger:    logger,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := h.cfg.Now()

	response := models.HealthResponse{
		Status:        "healthy",
		UPRN:          h.cfg.UPRN,
		Timestamp:     now.UTC(),
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		TestMode: models.TestModeStatus{
			Enabled: h.cfg.TestMode,
			Variant: h.cfg.TestVariant,
		},
	}

	if h.schedule != nil {
		response.Cache = h.schedule.CacheStatus()

		snapshot := h.schedule.Stats()
		response.Upstream = models.UpstreamStatus{
			LastFetchAt:        snapshot.LastFetchAt,
			LastFetchSuccess:   snapshot.LastFetchSuccess,
			LastResponseTimeMs: snapshot.LastResponseTime.Milliseconds(),
			LastError:          snapshot.LastError,
			TotalRequests:      snapshot.TotalRequests,
			TotalErrors:        snapshot.TotalErrors,
		}
	}

	if h.archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), archiveStatusTimeout)
		defer cancel()
		response.Archive = h.archive.Status(ctx)
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		h.logger.Debug().Err(err).Msg("failed to encode health response")
	}
}
