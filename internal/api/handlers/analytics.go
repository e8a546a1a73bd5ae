package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/jask/ledgerchat/internal/api/middleware"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/logger"
)

// AnalyticsReader is what the statement analytics endpoints read.
type AnalyticsReader interface {
	AllStatements(ctx context.Context) ([]domain.Statement, error)
	LatestStatement(ctx context.Context) (*domain.Statement, error)
	CategorySummaryForStatement(ctx context.Context, number string) ([]domain.CategorySummary, error)
}

// Analytics is the per-statement spending breakdown.
type Analytics struct {
	StatementNumber  string                   `json:"statement_number"`
	StatementDate    string                   `json:"statement_date,omitempty"`
	TotalDebits      float64                  `json:"total_debits"`
	TotalCredits     float64                  `json:"total_credits"`
	TransactionCount int                      `json:"transaction_count"`
	Categories       []domain.CategorySummary `json:"categories"`
}

// AnalyticsHandler handles statement analytics endpoints.
type AnalyticsHandler struct {
	store AnalyticsReader
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(store AnalyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// Statements handles GET /api/statements
func (h *AnalyticsHandler) Statements(w http.ResponseWriter, r *http.Request) {
	statements, err := h.store.AllStatements(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to list statements")
		return
	}
	if statements == nil {
		statements = []domain.Statement{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"statements": statements})
}

// Latest handles GET /api/analytics/latest
func (h *AnalyticsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.LatestStatement(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to load latest statement")
		return
	}
	if latest == nil {
		middleware.WriteError(w, http.StatusNotFound, "No statements found")
		return
	}
	if latest.StatementNumber == "" {
		middleware.WriteError(w, http.StatusNotFound, "Latest statement has no statement number")
		return
	}
	h.write(w, r, *latest)
}

// ByStatement handles GET /api/analytics/statement/{number}
func (h *AnalyticsHandler) ByStatement(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	statements, err := h.store.AllStatements(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to list statements")
		return
	}
	for _, s := range statements {
		if s.StatementNumber == number {
			h.write(w, r, s)
			return
		}
	}
	middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("Statement %s not found", number))
}

func (h *AnalyticsHandler) write(w http.ResponseWriter, r *http.Request, s domain.Statement) {
	summary, err := h.store.CategorySummaryForStatement(r.Context(), s.StatementNumber)
	if err != nil {
		h.fail(w, r, err, "Failed to summarise statement")
		return
	}
	out := Analytics{
		StatementNumber: s.StatementNumber,
		StatementDate:   s.StatementDate,
		Categories:      summary,
	}
	if out.Categories == nil {
		out.Categories = []domain.CategorySummary{}
	}
	for _, cs := range summary {
		out.TotalDebits += math.Abs(cs.TotalDebits)
		out.TotalCredits += cs.TotalCredits
		out.TransactionCount += cs.Count
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, msg)
}
