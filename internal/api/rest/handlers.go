package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	domainerrors "github.com/pokerwatch/player-integrity-backend/internal/domain/errors"
	"github.com/pokerwatch/player-integrity-backend/internal/infrastructure/cache"
	"github.com/pokerwatch/player-integrity-backend/internal/service/scoring"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Handler serves the scoring and analytics endpoints
type Handler struct {
	scoring scoring.Service
	reports *cache.ReportCache
	logger  *slog.Logger
}

// NewHandler creates a new REST API handler. reports may be nil when no
// cache backend is configured.
func NewHandler(service scoring.Service, reports *cache.ReportCache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scoring: service,
		reports: reports,
		logger:  logger,
	}
}

// handleScoreBatch scores the requested players, or the full population when
// the request body is empty or names no ids.
func (h *Handler) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req scoring.ScoreBatchRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_BODY", "failed to read request body").WithCause(err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_JSON", "request body is not valid JSON").WithCause(err))
			return
		}
	}

	report, err := h.scoring.ScoreBatch(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.reports != nil {
		h.reports.SetBatchReport(r.Context(), report)
		h.reports.Invalidate(r.Context())
	}

	h.writeJSON(w, http.StatusOK, report)
}

// handleGetBatch returns a previously scored batch from the report cache.
// Batch reports are persisted to the database as well; the cache serves the
// recent ones without a round trip.
func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if batchID == "" {
		h.writeError(w, r, domainerrors.NewValidationError("MISSING_BATCH_ID", "batch id is required"))
		return
	}

	if h.reports != nil {
		if cached, ok := h.reports.GetBatchReport(r.Context(), batchID); ok {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	h.writeError(w, r, domainerrors.NewNotFoundError("batch report"))
}

// handleStatistics returns the population statistical report, or a single
// player comparison when player_id is given.
func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if playerID := r.URL.Query().Get("player_id"); playerID != "" {
		comparison, err := h.scoring.ComparePlayer(r.Context(), playerID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, comparison)
		return
	}

	minHands := int64(0)
	if raw := r.URL.Query().Get("min_hands"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_MIN_HANDS", "min_hands must be a non-negative integer"))
			return
		}
		minHands = parsed
	}

	if h.reports != nil {
		if cached, ok := h.reports.GetStatisticalReport(r.Context(), minHands); ok {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	report, err := h.scoring.StatisticalReport(r.Context(), minHands)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.reports != nil {
		h.reports.SetStatisticalReport(r.Context(), minHands, report)
	}

	h.writeJSON(w, http.StatusOK, report)
}

// handleClusters returns the behavioral clustering report
func (h *Handler) handleClusters(w http.ResponseWriter, r *http.Request) {
	if h.reports != nil {
		if cached, ok := h.reports.GetClusterReport(r.Context()); ok {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	report, err := h.scoring.ClusterReport(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.reports != nil {
		h.reports.SetClusterReport(r.Context(), report)
	}

	h.writeJSON(w, http.StatusOK, report)
}

// handlePatterns returns the peer-group pattern report
func (h *Handler) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if h.reports != nil {
		if cached, ok := h.reports.GetPatternReport(r.Context()); ok {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	report, err := h.scoring.PatternReport(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.reports != nil {
		h.reports.SetPatternReport(r.Context(), report)
	}

	h.writeJSON(w, http.StatusOK, report)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainerrors.GetStatusCode(err)
	code := "INTERNAL_ERROR"
	message := "An internal error occurred"

	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"path", r.URL.Path,
			"status", status,
		)
	}

	h.writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}})
}
