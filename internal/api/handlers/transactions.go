package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jask/ledgerchat/internal/api/middleware"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionReader is what the transaction endpoints read.
type TransactionReader interface {
	StatsSource
	TransactionPage(ctx context.Context, limit, offset int) ([]domain.Transaction, error)
	SearchTransactions(ctx context.Context, term string) ([]domain.Transaction, error)
	TransactionsByCategory(ctx context.Context, category string) ([]domain.Transaction, error)
	TransactionsByType(ctx context.Context, txType string) ([]domain.Transaction, error)
	TransactionsInDateRange(ctx context.Context, start, end string) ([]domain.Transaction, error)
	TransactionsByStatement(ctx context.Context, number string) ([]domain.Transaction, error)
}

// TransactionsHandler handles transaction query endpoints.
type TransactionsHandler struct {
	store TransactionReader
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store TransactionReader) *TransactionsHandler {
	return &TransactionsHandler{store: store}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultPageSize, 1, maxPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0, 0, -1)
	if !ok {
		return
	}

	ctx := r.Context()
	txs, err := h.store.TransactionPage(ctx, limit, offset)
	if err != nil {
		h.fail(w, r, err, "Failed to list transactions")
		return
	}
	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.fail(w, r, err, "Failed to count transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": nonNil(txs),
		"total":        stats.TotalTransactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// Search handles GET /api/transactions/search?q=term
func (h *TransactionsHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Search term is required")
		return
	}
	txs, err := h.store.SearchTransactions(r.Context(), term)
	if err != nil {
		h.fail(w, r, err, "Failed to search transactions")
		return
	}
	writeTransactions(w, txs)
}

// ByCategory handles GET /api/transactions/category/{category}
func (h *TransactionsHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.TransactionsByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		h.fail(w, r, err, "Failed to load category")
		return
	}
	writeTransactions(w, txs)
}

// ByType handles GET /api/transactions/type/{type}
func (h *TransactionsHandler) ByType(w http.ResponseWriter, r *http.Request) {
	txType := strings.ToLower(r.PathValue("type"))
	if txType != domain.Debit && txType != domain.Credit {
		middleware.WriteError(w, http.StatusBadRequest, "Type must be 'debit' or 'credit'")
		return
	}
	txs, err := h.store.TransactionsByType(r.Context(), txType)
	if err != nil {
		h.fail(w, r, err, "Failed to load transactions")
		return
	}
	writeTransactions(w, txs)
}

// DateRange handles GET /api/transactions/date-range?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *TransactionsHandler) DateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.DateOnly, q.Get("start"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "start must be a date (YYYY-MM-DD)")
		return
	}
	end, err := time.Parse(time.DateOnly, q.Get("end"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "end must be a date (YYYY-MM-DD)")
		return
	}
	if start.After(end) {
		middleware.WriteError(w, http.StatusBadRequest, "Start date must be before or equal to end date")
		return
	}
	txs, err := h.store.TransactionsInDateRange(r.Context(), start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		h.fail(w, r, err, "Failed to load transactions")
		return
	}
	writeTransactions(w, txs)
}

// ByStatement handles GET /api/transactions/statement/{number}
func (h *TransactionsHandler) ByStatement(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.TransactionsByStatement(r.Context(), r.PathValue("number"))
	if err != nil {
		h.fail(w, r, err, "Failed to load statement")
		return
	}
	writeTransactions(w, txs)
}

func (h *TransactionsHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, msg)
}

func writeTransactions(w http.ResponseWriter, txs []domain.Transaction) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": nonNil(txs),
		"count":        len(txs),
	})
}

func nonNil(txs []domain.Transaction) []domain.Transaction {
	if txs == nil {
		return []domain.Transaction{}
	}
	return txs
}

// queryInt reads an integer query parameter, writing a 400 when it is not a
// number or falls outside lo..hi. hi < 0 means no upper bound.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi >= 0 && v > hi) {
		msg := name + " must be an integer of at least " + strconv.Itoa(lo)
		if hi >= 0 {
			msg += " and at most " + strconv.Itoa(hi)
		}
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return 0, false
	}
	return v, true
}
