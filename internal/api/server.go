// Package api exposes transactions, statement analytics and budget
// management over REST and the assistant over a WebSocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jask/ledgerchat/internal/api/handlers"
	"github.com/jask/ledgerchat/internal/api/middleware"
	"github.com/jask/ledgerchat/internal/chat"
)

// Store is what the HTTP surface reads and writes.
type Store interface {
	chat.Store
	handlers.TransactionReader
	handlers.AnalyticsReader
}

// Options configures NewHandler.
type Options struct {
	MaxTransactions int
	Logger          zerolog.Logger
}

// NewHandler builds the routed, middleware-wrapped HTTP handler.
func NewHandler(store Store, assistant *chat.Assistant, opts Options) http.Handler {
	log := opts.Logger
	transactionsHandler := handlers.NewTransactionsHandler(store)
	analyticsHandler := handlers.NewAnalyticsHandler(store)
	budgetsHandler := handlers.NewBudgetsHandler(store)
	chatHandler := handlers.NewChatHandler(assistant, store, opts.MaxTransactions)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/transactions", transactionsHandler.List)
	mux.HandleFunc("GET /api/transactions/search", transactionsHandler.Search)
	mux.HandleFunc("GET /api/transactions/category/{category}", transactionsHandler.ByCategory)
	mux.HandleFunc("GET /api/transactions/type/{type}", transactionsHandler.ByType)
	mux.HandleFunc("GET /api/transactions/date-range", transactionsHandler.DateRange)
	mux.HandleFunc("GET /api/transactions/statement/{number}", transactionsHandler.ByStatement)

	mux.HandleFunc("GET /api/statements", analyticsHandler.Statements)
	mux.HandleFunc("GET /api/analytics/latest", analyticsHandler.Latest)
	mux.HandleFunc("GET /api/analytics/statement/{number}", analyticsHandler.ByStatement)

	mux.HandleFunc("GET /api/budgets", budgetsHandler.ListBudgets)
	mux.HandleFunc("POST /api/budgets", budgetsHandler.UpsertBudget)
	mux.HandleFunc("GET /api/budgets/summary", budgetsHandler.Summary)
	mux.HandleFunc("DELETE /api/budgets/{category}", budgetsHandler.DeleteBudget)

	mux.HandleFunc("GET /ws/chat", chatHandler.ServeWS)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.CORS(mux),
		),
	)
}

// Serve runs the HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
