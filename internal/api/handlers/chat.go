package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jask/ledgerchat/internal/chat"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/llm"
	"github.com/jask/ledgerchat/internal/logger"
)

// Error codes sent in "error" frames.
const (
	CodeInvalidJSON  = "INVALID_JSON"
	CodeEmptyMessage = "EMPTY_MESSAGE"
	CodeUnknownType  = "UNKNOWN_TYPE"
	CodeChatError    = "CHAT_ERROR"
)

// DefaultMaxTransactions caps the transactions sent with one reply.
const DefaultMaxTransactions = 20

// StatsSource reports ledger totals for the connection banner.
type StatsSource interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// Envelope is one WebSocket frame in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type connectedPayload struct {
	SessionID string       `json:"session_id"`
	Stats     domain.Stats `json:"stats"`
}

// ChatResponse is the payload of a "chat_response" frame.
type ChatResponse struct {
	Message      string               `json:"message"`
	Transactions []domain.Transaction `json:"transactions"`
	Timestamp    string               `json:"timestamp"`
	LLMStats     *llm.Usage           `json:"llm_stats,omitempty"`
}

// ChatHandler serves the /ws/chat conversation protocol. Every connection
// gets its own session.
type ChatHandler struct {
	assistant       *chat.Assistant
	stats           StatsSource
	maxTransactions int
	upgrader        websocket.Upgrader
	now             func() time.Time
}

// NewChatHandler creates a new chat handler. maxTransactions <= 0 uses
// DefaultMaxTransactions.
func NewChatHandler(assistant *chat.Assistant, stats StatsSource, maxTransactions int) *ChatHandler {
	if maxTransactions <= 0 {
		maxTransactions = DefaultMaxTransactions
	}
	return &ChatHandler{
		assistant:       assistant,
		stats:           stats,
		maxTransactions: maxTransactions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// ServeWS handles GET /ws/chat
func (h *ChatHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &chatConn{
		h:       h,
		conn:    conn,
		session: chat.NewSession(),
		log:     log.With().Str("component", "ws").Logger(),
	}
	c.log = c.log.With().Str("session", c.session.ID).Logger()
	c.run(r.Context())
}

// turnRun is one Ask running in the background.
type turnRun struct {
	cancel   context.CancelFunc
	snapshot int
	done     chan turnResult
}

type turnResult struct {
	reply chat.Reply
	err   error
}

type chatConn struct {
	h       *ChatHandler
	conn    *websocket.Conn
	session *chat.Session
	log     zerolog.Logger

	// active is the turn whose answer will be sent; cancelled is a turn the
	// client abandoned that may still be touching the session.
	active    *turnRun
	cancelled *turnRun
}

func (c *chatConn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	incoming := make(chan []byte)
	go c.readLoop(ctx, incoming)

	var stats domain.Stats
	if c.h.stats != nil {
		var err error
		if stats, err = c.h.stats.Stats(ctx); err != nil {
			c.log.Warn().Err(err).Msg("stats unavailable")
		}
	}
	if err := c.send("connected", connectedPayload{SessionID: c.session.ID, Stats: stats}); err != nil {
		return
	}
	c.log.Debug().Msg("chat connected")

	for {
		var activeDone, cancelledDone <-chan turnResult
		if c.active != nil {
			activeDone = c.active.done
		}
		if c.cancelled != nil {
			cancelledDone = c.cancelled.done
		}

		select {
		case raw, ok := <-incoming:
			if !ok {
				c.abandon()
				c.log.Debug().Msg("chat disconnected")
				return
			}
			if err := c.handle(ctx, raw); err != nil {
				c.abandon()
				return
			}
		case res := <-activeDone:
			c.active = nil
			if err := c.deliver(res); err != nil {
				return
			}
		case <-cancelledDone:
			c.session.Rollback(c.cancelled.snapshot)
			c.cancelled = nil
		}
	}
}

func (c *chatConn) readLoop(ctx context.Context, out chan<- []byte) {
	defer close(out)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (c *chatConn) handle(ctx context.Context, raw []byte) error {
	var msg Envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		return c.sendError(CodeInvalidJSON, "Invalid JSON message")
	}

	switch msg.Type {
	case "ping":
		return c.send("pong", nil)
	case "cancel":
		if c.active == nil {
			return nil
		}
		c.active.cancel()
		c.cancelled, c.active = c.active, nil
		return c.send("cancelled", nil)
	}

	// only cancel and ping are served while a turn is outstanding
	if c.active != nil {
		return nil
	}

	switch msg.Type {
	case "clear":
		c.settle()
		c.h.assistant.Clear(c.session)
		return c.send("cleared", nil)
	case "chat":
		var payload struct {
			Message string `json:"message"`
		}
		if len(msg.Payload) > 0 {
			_ = json.Unmarshal(msg.Payload, &payload)
		}
		query := strings.TrimSpace(payload.Message)
		if query == "" {
			return c.sendError(CodeEmptyMessage, "Message cannot be empty")
		}
		c.settle()
		c.start(ctx, query)
		return nil
	default:
		return c.sendError(CodeUnknownType, "Unknown message type: "+msg.Type)
	}
}

// start runs Ask in the background so cancel and ping stay responsive.
func (c *chatConn) start(ctx context.Context, query string) {
	turnCtx, cancel := context.WithCancel(ctx)
	t := &turnRun{
		cancel:   cancel,
		snapshot: c.session.Begin(c.h.assistant.HistoryLimit()),
		done:     make(chan turnResult, 1),
	}
	c.active = t
	go func() {
		defer cancel()
		reply, err := c.h.assistant.Ask(turnCtx, query, c.session)
		t.done <- turnResult{reply: reply, err: err}
	}()
}

// settle waits for a cancelled turn to finish and undoes its history changes.
func (c *chatConn) settle() {
	if c.cancelled == nil {
		return
	}
	<-c.cancelled.done
	c.session.Rollback(c.cancelled.snapshot)
	c.cancelled = nil
}

// abandon cancels any running turn; the session is discarded with the
// connection so nothing is rolled back.
func (c *chatConn) abandon() {
	if c.active != nil {
		c.active.cancel()
	}
	if c.cancelled != nil {
		c.cancelled.cancel()
	}
}

func (c *chatConn) deliver(res turnResult) error {
	if res.err != nil {
		c.log.Error().Err(res.err).Msg("chat turn failed")
		return c.sendError(CodeChatError, res.err.Error())
	}
	txs := res.reply.Transactions
	if len(txs) > c.h.maxTransactions {
		txs = txs[:c.h.maxTransactions]
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return c.send("chat_response", ChatResponse{
		Message:      res.reply.Text,
		Transactions: txs,
		Timestamp:    c.h.now().Format(time.RFC3339),
		LLMStats:     res.reply.Usage,
	})
}

func (c *chatConn) sendError(code, message string) error {
	return c.send("error", errorPayload{Code: code, Message: message})
}

func (c *chatConn) send(kind string, payload interface{}) error {
	env := Envelope{Type: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Payload = data
	}
	if err := c.conn.WriteJSON(env); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			c.log.Debug().Err(err).Str("type", kind).Msg("write failed")
		}
		return err
	}
	return nil
}
