package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerchat/internal/api"
	"github.com/jask/ledgerchat/internal/api/handlers"
	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/database"
	"github.com/jask/ledgerchat/internal/database/repository"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/llm"
)

// blockingCompleter answers "Hello!" except for queries containing "slow",
// which wait for cancellation.
type blockingCompleter struct {
	mu    sync.Mutex
	calls int
}

func (b *blockingCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	last := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(last, "slow") {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	}
	return llm.CompletionResponse{
		Content: "Hello!",
		Usage:   &llm.Usage{PromptTokens: 12, CompletionTokens: 2, TotalTokens: 14},
	}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *repository.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.OpenAndMigrate(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repository.NewStore(db)
	log := zerolog.Nop()
	assistant := chat.NewAssistant(store, &blockingCompleter{}, chat.Options{Logger: &log})
	srv := httptest.NewServer(api.NewHandler(store, assistant, api.Options{Logger: log}))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestBudgetsREST(t *testing.T) {
	srv, store := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/budgets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body["budgets"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/budgets", `{"category":"Groceries","amount":5000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "groceries", body["category"])
	require.Equal(t, 5000.0, body["amount"])

	// upsert replaces the amount
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/budgets", `{"category":"groceries","amount":4500}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := store.BudgetByCategory(context.Background(), "groceries")
	require.NoError(t, err)
	require.Equal(t, 4500.0, b.Amount)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/budgets", `{"category":"fuel","amount":-1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Budget amount must be positive", body["error"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/budgets", `{"category":"fuel"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/budgets", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/budgets/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["items"], 1)

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/budgets/groceries", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/budgets/groceries", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "No budget found for category: groceries", body["error"])
}

// seedLedger imports two statements; #287 is the latest.
func seedLedger(t *testing.T, store *repository.Store) {
	t.Helper()
	ctx := context.Background()
	jan, err := store.StatementRepo.Insert(ctx, domain.Statement{Filename: "jan.csv", StatementDate: "2025-01-31", StatementNumber: "286"})
	require.NoError(t, err)
	feb, err := store.StatementRepo.Insert(ctx, domain.Statement{Filename: "feb.csv", StatementDate: "2025-02-28", StatementNumber: "287"})
	require.NoError(t, err)
	for _, tx := range []domain.Transaction{
		{StatementID: jan, Date: "2025-01-05", Description: "Checkers Rosebank", Amount: -400, Category: "groceries"},
		{StatementID: jan, Date: "2025-01-25", Description: "Salary ACME", Amount: 30000, Category: "salary"},
		{StatementID: feb, Date: "2025-02-02", Description: "Woolworths Food", Amount: -600, Category: "groceries"},
		{StatementID: feb, Date: "2025-02-10", Description: "Engen Fuel", Amount: -900, Category: "fuel"},
		{StatementID: feb, Date: "2025-02-25", Description: "Salary ACME", Amount: 30000, Category: "salary"},
	} {
		_, inserted, err := store.TransactionRepo.Insert(ctx, repository.TransactionRow{Transaction: tx})
		require.NoError(t, err)
		require.True(t, inserted)
	}
}

func TestTransactionsREST(t *testing.T) {
	srv, store := newTestServer(t)
	seedLedger(t, store)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/transactions?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 5, body["total"])
	require.EqualValues(t, 2, body["limit"])
	require.EqualValues(t, 1, body["offset"])
	page := body["transactions"].([]interface{})
	require.Len(t, page, 2)
	require.Equal(t, "2025-02-10", page[0].(map[string]interface{})["date"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions?limit=500", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/search?q=salary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["count"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/search?q=", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Search term is required", body["error"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/category/groceries", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["count"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/category/yachts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, body["count"])
	require.NotNil(t, body["transactions"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/type/credit", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["count"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/type/refund", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Type must be 'debit' or 'credit'", body["error"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/date-range?start=2025-02-01&end=2025-02-15", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["count"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/date-range?start=2025-03-01&end=2025-02-01", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/date-range?start=March", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/statement/287", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, body["count"])
}

func TestAnalyticsREST(t *testing.T) {
	srv, store := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/latest", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "No statements found", body["error"])

	seedLedger(t, store)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/statements", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	statements := body["statements"].([]interface{})
	require.Len(t, statements, 2)
	require.Equal(t, "287", statements[0].(map[string]interface{})["statement_number"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/analytics/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "287", body["statement_number"])
	require.Equal(t, "2025-02-28", body["statement_date"])
	require.Equal(t, 1500.0, body["total_debits"])
	require.Equal(t, 30000.0, body["total_credits"])
	require.EqualValues(t, 3, body["transaction_count"])
	require.Len(t, body["categories"], 3)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/analytics/statement/286", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 400.0, body["total_debits"])
	require.EqualValues(t, 2, body["transaction_count"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/analytics/statement/999", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Statement 999 not found", body["error"])
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(raw string) {
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (c *wsClient) next() handlers.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env handlers.Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

func (c *wsClient) expectError(code string) {
	c.t.Helper()
	env := c.next()
	require.Equal(c.t, "error", env.Type)
	var p struct {
		Code string `json:"code"`
	}
	require.NoError(c.t, json.Unmarshal(env.Payload, &p))
	require.Equal(c.t, code, p.Code)
}

func TestChatSocketProtocol(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)

	env := c.next()
	require.Equal(t, "connected", env.Type)
	var connected struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &connected))
	require.NotEmpty(t, connected.SessionID)

	c.send(`{"type":"ping"}`)
	require.Equal(t, "pong", c.next().Type)

	c.send(`{nope`)
	c.expectError(handlers.CodeInvalidJSON)

	c.send(`{"type":"chat","payload":{"message":"   "}}`)
	c.expectError(handlers.CodeEmptyMessage)

	c.send(`{"type":"dance"}`)
	c.expectError(handlers.CodeUnknownType)

	c.send(`{"type":"chat","payload":{"message":"hi"}}`)
	env = c.next()
	require.Equal(t, "chat_response", env.Type)
	var reply handlers.ChatResponse
	require.NoError(t, json.Unmarshal(env.Payload, &reply))
	require.Equal(t, "Hello!", reply.Message)
	require.NotNil(t, reply.Transactions)
	require.NotNil(t, reply.LLMStats)
	require.Equal(t, 14, reply.LLMStats.TotalTokens)

	c.send(`{"type":"clear"}`)
	require.Equal(t, "cleared", c.next().Type)
}

func TestChatSocketCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)
	require.Equal(t, "connected", c.next().Type)

	// a stray cancel is ignored
	c.send(`{"type":"cancel"}`)
	c.send(`{"type":"ping"}`)
	require.Equal(t, "pong", c.next().Type)

	c.send(`{"type":"chat","payload":{"message":"hi, this is slow"}}`)
	c.send(`{"type":"ping"}`)
	require.Equal(t, "pong", c.next().Type)
	c.send(`{"type":"cancel"}`)
	require.Equal(t, "cancelled", c.next().Type)

	c.send(`{"type":"chat","payload":{"message":"hello"}}`)
	env := c.next()
	require.Equal(t, "chat_response", env.Type)
	var reply handlers.ChatResponse
	require.NoError(t, json.Unmarshal(env.Payload, &reply))
	require.Equal(t, "Hello!", reply.Message)
}
