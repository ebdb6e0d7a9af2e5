// Package webchat exposes the chat over HTTP and a websocket session, and
// pushes server-side events (typing, booking confirmations) to connected
// visitors.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/despacho-web/internal/chat"
	"github.com/wolfman30/despacho-web/internal/identity"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// ChatService is the chat flow the transport drives.
type ChatService interface {
	SendMessage(ctx context.Context, userID, text string) (*chat.Reply, error)
	SendQuickPrompt(ctx context.Context, userID, name string) (*chat.Reply, error)
	History(ctx context.Context, userID string) (*chat.HistoryView, error)
	ConfirmAppointment(ctx context.Context, userID, text string) error
}

// defaultWriteTimeout bounds a single frame write to a visitor's socket.
const defaultWriteTimeout = 5 * time.Second

// Handler manages chat requests and websocket sessions.
type Handler struct {
	chat         ChatService
	logger       *logging.Logger
	writeTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*wsConn // userID -> active connection
}

type wsConn struct {
	conn    *websocket.Conn
	timeout time.Duration
	// send serialises frames written from the read loop and from
	// server-side pushes.
	send sync.Mutex
}

// InboundMessage is what the page sends over the websocket.
type InboundMessage struct {
	Type   string `json:"type"` // "message", "quick", "ping"
	Text   string `json:"text,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// OutboundMessage is what the page receives over the websocket.
type OutboundMessage struct {
	Type      string            `json:"type"` // "session", "history", "typing", "message", "error", "pong"
	UserID    string            `json:"user_id,omitempty"`
	Active    *bool             `json:"active,omitempty"`
	Reply     *chat.Reply       `json:"reply,omitempty"`
	History   *chat.HistoryView `json:"history,omitempty"`
	Message   *chat.Message     `json:"message,omitempty"`
	Text      string            `json:"text,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// NewHandler creates the chat transport and registers it as the service's
// typing signaler when the service supports one.
func NewHandler(svc ChatService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		chat:         svc,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		sessions:     make(map[string]*wsConn),
	}
	if s, ok := svc.(interface{ SetTypingSignaler(chat.TypingSignaler) }); ok {
		s.SetTypingSignaler(h)
	}
	return h
}

// HandleWebSocket upgrades to a websocket and serves the visitor's session.
// The visitor is identified by the userId cookie assigned by middleware.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing visitor id", http.StatusBadRequest)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, userID)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, userID string) {
	wsc := &wsConn{conn: conn, timeout: h.writeTimeout}
	h.mu.Lock()
	h.sessions[userID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[userID] == wsc {
			delete(h.sessions, userID)
		}
		h.mu.Unlock()
	}()

	_ = wsc.write(OutboundMessage{Type: "session", UserID: userID})
	if view, err := h.chat.History(ctx, userID); err == nil {
		_ = wsc.write(OutboundMessage{Type: "history", History: view})
	} else {
		h.logger.Warn("webchat: loading history failed", "user_id", userID, "error", err)
	}

	h.logger.Info("webchat: connection opened", "user_id", userID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "user_id", userID, "error", err)
			return
		}

		var (
			reply *chat.Reply
			err   error
		)
		switch msg.Type {
		case "ping":
			_ = wsc.write(OutboundMessage{Type: "pong"})
			continue
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			reply, err = h.chat.SendMessage(ctx, userID, msg.Text)
		case "quick":
			reply, err = h.chat.SendQuickPrompt(ctx, userID, msg.Prompt)
		default:
			continue
		}

		if reply != nil {
			_ = wsc.write(OutboundMessage{Type: "message", Reply: reply, Timestamp: reply.Bot.Timestamp.Format(time.RFC3339)})
		} else if err != nil {
			_ = wsc.write(OutboundMessage{Type: "error", Text: err.Error()})
		}
	}
}

// write sends one frame. A socket that does not drain within the timeout is
// closed so server-side pushes never stall the visitor's HTTP requests.
func (c *wsConn) write(msg OutboundMessage) error {
	c.send.Lock()
	defer c.send.Unlock()
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	if err := websocket.JSON.Send(c.conn, msg); err != nil {
		_ = c.conn.Close()
		return err
	}
	return nil
}

// SendToSession sends a frame to the visitor's open websocket, if any, and
// reports whether it was delivered.
func (h *Handler) SendToSession(userID string, msg OutboundMessage) bool {
	h.mu.RLock()
	wsc, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := wsc.write(msg); err != nil {
		h.logger.Warn("webchat: dropping stalled connection", "user_id", userID, "error", err)
		h.mu.Lock()
		if h.sessions[userID] == wsc {
			delete(h.sessions, userID)
		}
		h.mu.Unlock()
		return false
	}
	return true
}

// Typing implements chat.TypingSignaler.
func (h *Handler) Typing(userID string, active bool) {
	h.SendToSession(userID, OutboundMessage{Type: "typing", Active: &active})
}

// ConfirmAppointment records a booking confirmation in the visitor's chat and
// pushes it to an open session so the bubble appears without a reload.
func (h *Handler) ConfirmAppointment(ctx context.Context, userID, text string) error {
	if err := h.chat.ConfirmAppointment(ctx, userID, text); err != nil {
		return err
	}
	now := time.Now().UTC()
	h.SendToSession(userID, OutboundMessage{
		Type:      "message",
		Message:   &chat.Message{Sender: chat.SenderBot, Text: text, Timestamp: now},
		Timestamp: now.Format(time.RFC3339),
	})
	return nil
}

// HandleMessage is the HTTP transport for sending a message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"mensaje"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	userID, _ := identity.FromContext(r.Context())
	reply, err := h.chat.SendMessage(r.Context(), userID, req.Text)
	h.writeReply(w, reply, err)
}

// HandleQuickPrompt sends one of the fixed quick-action questions.
func (h *Handler) HandleQuickPrompt(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())
	reply, err := h.chat.SendQuickPrompt(r.Context(), userID, chi.URLParam(r, "prompt"))
	h.writeReply(w, reply, err)
}

func (h *Handler) writeReply(w http.ResponseWriter, reply *chat.Reply, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, chat.ErrUnknownPrompt):
		http.Error(w, "unknown prompt", http.StatusNotFound)
	case err != nil && reply != nil:
		writeJSON(w, http.StatusBadGateway, reply)
	case err != nil:
		http.Error(w, "chat unavailable", http.StatusBadGateway)
	default:
		writeJSON(w, http.StatusOK, reply)
	}
}

// HandleHistory returns the visitor's transcript.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.FromContext(r.Context())
	view, err := h.chat.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "user_id", userID, "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
