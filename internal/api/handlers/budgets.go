package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/jask/ledgerchat/internal/api/middleware"
	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/logger"
)

// BudgetsHandler handles budget endpoints.
type BudgetsHandler struct {
	store chat.Store
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(store chat.Store) *BudgetsHandler {
	return &BudgetsHandler{store: store}
}

// ListBudgets handles GET /api/budgets
func (h *BudgetsHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.store.AllBudgets(r.Context())
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list budgets")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list budgets")
		return
	}
	if budgets == nil {
		budgets = []domain.Budget{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"budgets": budgets})
}

// UpsertBudget handles POST /api/budgets
func (h *BudgetsHandler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string   `json:"category"`
		Amount   *float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Category is required")
		return
	}
	if req.Amount == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Amount is required")
		return
	}
	if *req.Amount < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Budget amount must be positive")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)
	if err := h.store.UpsertBudget(ctx, category, *req.Amount); err != nil {
		log.Error().Err(err).Str("category", category).Msg("Failed to save budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save budget")
		return
	}
	saved, err := h.store.BudgetByCategory(ctx, category)
	if err != nil || saved == nil {
		log.Error().Err(err).Str("category", category).Msg("Budget missing after save")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create budget")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, saved)
}

// DeleteBudget handles DELETE /api/budgets/{category}
func (h *BudgetsHandler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.PathValue("category"))
	if category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Category is required")
		return
	}
	deleted, err := h.store.DeleteBudget(r.Context(), category)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("category", category).Msg("Failed to delete budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete budget")
		return
	}
	if !deleted {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("No budget found for category: %s", category))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "category": category})
}

// Summary handles GET /api/budgets/summary. Items are sorted most
// over-budget first.
func (h *BudgetsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	report, err := chat.SummarizeBudgets(r.Context(), h.store)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to summarise budgets")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarise budgets")
		return
	}
	if report.Lines == nil {
		report.Lines = []chat.BudgetLine{}
	}
	for i := range report.Lines {
		report.Lines[i].Percentage = round1(report.Lines[i].Percentage)
	}
	report.TotalPercentage = round1(report.TotalPercentage)
	sort.SliceStable(report.Lines, func(i, j int) bool {
		return report.Lines[i].Percentage > report.Lines[j].Percentage
	})
	middleware.WriteJSON(w, http.StatusOK, report)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
