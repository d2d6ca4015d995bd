package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edu-registry/penmatch/internal/domain"
	"github.com/edu-registry/penmatch/internal/engine"
	"github.com/edu-registry/penmatch/internal/metrics"
	"github.com/edu-registry/penmatch/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	screening *rules.Engine
	matcher   *engine.Engine
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, screening *rules.Engine, matcher *engine.Engine, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		screening: screening,
		matcher:   matcher,
		version:   version,
	}
}

// MatchResponse is the response for POST /match.
type MatchResponse struct {
	Outcome   *domain.MatchOutcome     `json:"outcome,omitempty"`
	Verdict   string                   `json:"verdict"`
	Screening []domain.ScreeningResult `json:"screening,omitempty"`
	Version   string                   `json:"version"`
}

// Match handles POST /match requests: screening first, then synchronous
// resolution through the match engine.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var tx domain.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := engine.Validate(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Screen before matching; a reject verdict never reaches the engine.
	var screening []domain.ScreeningResult
	verdict := domain.ScreeningAccept
	if h.screening != nil {
		screening = h.screening.Screen(&tx)
		verdict = rules.Verdict(screening)
	}
	if verdict == domain.ScreeningReject {
		metrics.ScreeningRejects.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, MatchResponse{
			Verdict:   verdict,
			Screening: screening,
			Version:   h.version,
		})
		return
	}

	outcome, err := h.matcher.Match(ctx, &tx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("match failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "match failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveMatchOutcome(ctx, outcome); err != nil {
			slog.Error("failed to save match outcome", "outcome_id", outcome.ID, "error", err)
		}
		if len(outcome.Candidates) > 0 {
			if err := h.savePossibleMatches(r, outcome); err != nil {
				slog.Error("failed to save possible matches", "outcome_id", outcome.ID, "error", err)
			}
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(outcome)
		if err := h.bus.Publish(ctx, domain.TopicMatchCompleted, payload); err != nil {
			slog.Error("failed to publish match completed", "outcome_id", outcome.ID, "error", err)
		}
	}

	metrics.ObserveMatch(outcome.Status, time.Since(start).Seconds(), outcome.Metadata.CandidatesRetrieved)

	writeJSON(w, http.StatusOK, MatchResponse{
		Outcome:   outcome,
		Verdict:   verdict,
		Screening: screening,
		Version:   h.version,
	})
}

func (h *Handler) savePossibleMatches(r *http.Request, outcome *domain.MatchOutcome) error {
	now := time.Now().UTC()
	matches := make([]*domain.PossibleMatch, 0, len(outcome.Candidates))
	for i, cand := range outcome.Candidates {
		matches = append(matches, &domain.PossibleMatch{
			ID:        uuid.New().String(),
			OutcomeID: outcome.ID,
			PEN:       cand.PEN,
			Rank:      i + 1,
			Result:    cand.Result,
			CreatedAt: now,
		})
	}
	return h.repo.SavePossibleMatches(r.Context(), matches)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetMatchOutcome retrieves a match outcome by ID.
func (h *Handler) GetMatchOutcome(w http.ResponseWriter, r *http.Request) {
	outcomeID := chi.URLParam(r, "id")
	if outcomeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "outcome id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	outcome, err := h.repo.GetMatchOutcome(r.Context(), outcomeID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "outcome not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get match outcome", "id", outcomeID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load outcome",
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// GetStudent retrieves a registry record by identifier.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	pen := chi.URLParam(r, "pen")
	if pen == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "pen is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	student, err := h.repo.LookupByIdentifier(r.Context(), pen)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "student not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get student", "pen", pen, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load student",
		})
		return
	}

	writeJSON(w, http.StatusOK, student)
}

// ListPossibleMatches returns the possible-match links recorded against an
// identifier.
func (h *Handler) ListPossibleMatches(w http.ResponseWriter, r *http.Request) {
	pen := chi.URLParam(r, "pen")
	if pen == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "pen is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	matches, err := h.repo.ListPossibleMatches(r.Context(), pen)
	if err != nil {
		slog.Error("failed to list possible matches", "pen", pen, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load possible matches",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"possibleMatches": matches,
		"count":           len(matches),
	})
}

// ListRules returns all screening rules loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.screening.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loaded,
		"count":  len(loaded),
		"source": "database",
	})
}

// GetRule retrieves a screening rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")
	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.screening.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a screening rule.
type CreateRuleRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Expression  string                 `json:"expression"`
	Bands       []domain.ScreeningBand `json:"bands"`
	Enabled     bool                   `json:"enabled"`
}

// CreateRule validates and persists a screening rule.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.ScreeningRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting
	if err := h.screening.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveScreeningRule(ctx, rule); err != nil {
			slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all screening rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Error("failed to list screening rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.screening.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
