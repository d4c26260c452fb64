package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PortNumber53/creator-ai/backend/internal/aigen"
	"github.com/PortNumber53/creator-ai/backend/internal/middleware"
	"github.com/PortNumber53/creator-ai/backend/internal/models"
	"github.com/PortNumber53/creator-ai/backend/internal/usage"
)

// gateUsage runs the monthly rollover and the plan ceiling check. It writes
// the 429 response itself and reports whether the caller may proceed. The
// ledger is not incremented here; that happens only after the provider call
// succeeds.
func (h *Handler) gateUsage(w http.ResponseWriter, r *http.Request, userID string) bool {
	if err := h.ledger.ResetIfNewMonth(r.Context(), userID, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	snap, err := h.ledger.Check(r.Context(), userID)
	if errors.Is(err, usage.ErrLimitExceeded) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"message":      "AI usage limit exceeded for your plan",
			"currentUsage": snap.Current,
			"limit":        snap.Limit,
		})
		return false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	return true
}

// loadBrandForGeneration resolves the brand before any provider call so an
// unknown brand never burns quota or money.
func (h *Handler) loadBrandForGeneration(w http.ResponseWriter, brandID, userID string) *models.Brand {
	b, err := h.getOwnedBrand(brandID, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	return b
}

// writeGenerationError maps a failed provider call onto a 500 carrying the
// upstream error payload when one was decodable.
func writeGenerationError(w http.ResponseWriter, op string, err error) {
	log.Printf("[AI][%s] generation failed: %v", op, err)
	detail := any(err.Error())
	var ge *aigen.GenerationError
	if errors.As(err, &ge) && len(ge.Upstream) > 0 {
		detail = ge.Upstream
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"message": "Error generating content",
		"error":   detail,
	})
}

func usagePayload(snap usage.Snapshot) map[string]any {
	return map[string]any{"current": snap.Current, "limit": snap.Limit}
}

func (h *Handler) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req aigen.CaptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	if !h.gateUsage(w, r, userID) {
		return
	}
	brand := h.loadBrandForGeneration(w, req.BrandID, userID)
	if brand == nil {
		return
	}

	out, err := h.ai.Complete(r.Context(), aigen.ModelContent,
		aigen.CaptionSystemPrompt(brand, req), aigen.CaptionUserPrompt(req), 0.7, 1000)
	if err != nil {
		writeGenerationError(w, "GenerateCaption", err)
		return
	}

	snap, err := h.ledger.Consume(r.Context(), userID, usage.KindCaption)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.emitEvent(userID, realtimeEvent{Type: "generation.completed", BrandID: req.BrandID})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"content": aigen.ParseCaption(out),
		"usage":   usagePayload(snap),
	})
}

func (h *Handler) GenerateImageConcept(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req aigen.ImageConceptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	if !h.gateUsage(w, r, userID) {
		return
	}
	brand := h.loadBrandForGeneration(w, req.BrandID, userID)
	if brand == nil {
		return
	}

	out, err := h.ai.Complete(r.Context(), aigen.ModelCreative,
		aigen.ImageConceptSystemPrompt(brand, req), aigen.ImageConceptUserPrompt(req), 0.8, 800)
	if err != nil {
		writeGenerationError(w, "GenerateImageConcept", err)
		return
	}

	snap, err := h.ledger.Consume(r.Context(), userID, usage.KindAICall)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.emitEvent(userID, realtimeEvent{Type: "generation.completed", BrandID: req.BrandID})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"concept": out,
		"usage":   usagePayload(snap),
	})
}

func (h *Handler) GenerateVideoScript(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req aigen.VideoScriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	if !h.gateUsage(w, r, userID) {
		return
	}
	brand := h.loadBrandForGeneration(w, req.BrandID, userID)
	if brand == nil {
		return
	}

	out, err := h.ai.Complete(r.Context(), aigen.ModelCreative,
		aigen.VideoScriptSystemPrompt(brand, req), aigen.VideoScriptUserPrompt(req), 0.7, 1200)
	if err != nil {
		writeGenerationError(w, "GenerateVideoScript", err)
		return
	}

	snap, err := h.ledger.Consume(r.Context(), userID, usage.KindAICall)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.emitEvent(userID, realtimeEvent{Type: "generation.completed", BrandID: req.BrandID})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"script":  out,
		"usage":   usagePayload(snap),
	})
}

type analyzePerformanceRequest struct {
	ContentData json.RawMessage `json:"contentData"`
	Timeframe   string          `json:"timeframe"`
}

// AnalyzePerformance runs the analysis model over caller-supplied metrics.
// No brand lookup: the data to analyze arrives in the request.
func (h *Handler) AnalyzePerformance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req analyzePerformanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.ContentData) == 0 {
		writeError(w, http.StatusBadRequest, "contentData is required")
		return
	}

	if !h.gateUsage(w, r, userID) {
		return
	}

	out, err := h.ai.Complete(r.Context(), aigen.ModelAnalysis,
		aigen.AnalysisSystemPrompt(), aigen.AnalysisUserPrompt(req.ContentData), 0.3, 1500)
	if err != nil {
		writeGenerationError(w, "AnalyzePerformance", err)
		return
	}

	snap, err := h.ledger.Consume(r.Context(), userID, usage.KindAICall)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"analysis": out,
		"usage":    usagePayload(snap),
	})
}

func (h *Handler) UsageStats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	stats, err := h.ledger.Stats(r.Context(), userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
