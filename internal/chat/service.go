package chat

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

const (
	errorReply = "Lo siento, ha ocurrido un error. Por favor, intenta nuevamente."

	// AppointmentSection is the page anchor of the booking form.
	AppointmentSection = "citas"
	// ScrollDelay is how long the page waits before scrolling to the
	// booking form, so the reply can be read first.
	ScrollDelay = time.Second

	historyLimit = 100
)

// ErrEmptyMessage is returned for blank input; nothing is sent or stored.
var ErrEmptyMessage = errors.New("chat: empty message")

// Upstream is the assistant endpoint.
type Upstream interface {
	Chat(ctx context.Context, message, userID string) (*legalapi.ChatResponse, error)
}

// TypingSignaler shows or hides the typing indicator for a visitor.
type TypingSignaler interface {
	Typing(userID string, active bool)
}

// Metrics records redirects from the chat to the booking form.
type Metrics interface {
	ObserveChatRedirect()
}

// Config wires a Service.
type Config struct {
	API     Upstream
	Store   Store
	Metrics Metrics
	Logger  *logging.Logger
}

// Service relays messages between visitors and the assistant.
type Service struct {
	api     Upstream
	store   Store
	metrics Metrics
	logger  *logging.Logger
	typing  TypingSignaler
}

// NewService falls back to an in-memory store when none is configured.
func NewService(cfg Config) *Service {
	if cfg.API == nil {
		panic("chat: upstream API required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		api:     cfg.API,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// SetTypingSignaler attaches the transport that draws the typing indicator.
func (s *Service) SetTypingSignaler(t TypingSignaler) {
	s.typing = t
}

// Reply is the result of one exchange.
type Reply struct {
	User     Message       `json:"user"`
	Bot      Message       `json:"bot"`
	UserHTML template.HTML `json:"user_html"`
	BotHTML  template.HTML `json:"bot_html"`
	// Suggestions replace the current chips when non-empty.
	Suggestions     []string      `json:"suggestions,omitempty"`
	SuggestionsHTML template.HTML `json:"suggestions_html,omitempty"`
	// ScrollTo names the section the page should scroll to after
	// ScrollDelayMS.
	ScrollTo            string `json:"scroll_to,omitempty"`
	ScrollDelayMS       int64  `json:"scroll_delay_ms,omitempty"`
	AwaitingAppointment bool   `json:"awaiting_appointment"`
	Failed              bool   `json:"failed,omitempty"`
}

// SendMessage posts the visitor's text to the assistant and records both
// sides of the exchange. When the assistant fails, the returned reply holds
// the apology bubble and the error is returned alongside it.
func (s *Service) SendMessage(ctx context.Context, userID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	reply := &Reply{User: Message{Sender: SenderUser, Text: text}}
	reply.User = stamp(reply.User)
	s.append(ctx, userID, reply.User)

	s.setTyping(userID, true)
	resp, err := s.api.Chat(ctx, text, userID)
	s.setTyping(userID, false)

	if err != nil {
		s.logger.Error("chat: assistant request failed", "user_id", userID, "error", err)
		reply.Bot = stamp(Message{Sender: SenderBot, Text: errorReply})
		reply.Failed = true
		s.append(ctx, userID, reply.Bot)
		s.render(reply)
		return reply, err
	}

	reply.Bot = stamp(Message{
		Sender:              SenderBot,
		Text:                resp.Reply,
		Suggestions:         resp.Suggestions,
		RequiresAppointment: resp.RequiresAppointment,
	})
	s.append(ctx, userID, reply.Bot)
	reply.Suggestions = resp.Suggestions

	if resp.RequiresAppointment {
		reply.ScrollTo = AppointmentSection
		reply.ScrollDelayMS = ScrollDelay.Milliseconds()
		reply.AwaitingAppointment = true
		if userID != "" {
			if err := s.store.SetAwaitingAppointment(ctx, userID, true); err != nil {
				s.logger.Warn("chat: marking awaiting appointment failed", "user_id", userID, "error", err)
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveChatRedirect()
		}
	} else if userID != "" {
		awaiting, err := s.store.AwaitingAppointment(ctx, userID)
		if err == nil {
			reply.AwaitingAppointment = awaiting
		}
	}

	s.render(reply)
	return reply, nil
}

// SendQuickPrompt sends the fixed question behind a quick-action button.
func (s *Service) SendQuickPrompt(ctx context.Context, userID, name string) (*Reply, error) {
	prompt, ok := QuickPrompt(name)
	if !ok {
		return nil, ErrUnknownPrompt
	}
	return s.SendMessage(ctx, userID, prompt)
}

// ErrUnknownPrompt is returned for a quick action that does not exist.
var ErrUnknownPrompt = errors.New("chat: unknown quick prompt")

// ConfirmAppointment appends a booking confirmation to the visitor's chat and
// clears the awaiting-appointment flag.
func (s *Service) ConfirmAppointment(ctx context.Context, userID, text string) error {
	if userID == "" {
		return nil
	}
	if err := s.store.Append(ctx, userID, Message{Sender: SenderBot, Text: text}); err != nil {
		return err
	}
	return s.store.SetAwaitingAppointment(ctx, userID, false)
}

// HistoryView is the transcript as the page restores it on load.
type HistoryView struct {
	Messages            []Message     `json:"messages"`
	HTML                template.HTML `json:"html"`
	Suggestions         []string      `json:"suggestions"`
	SuggestionsHTML     template.HTML `json:"suggestions_html"`
	AwaitingAppointment bool          `json:"awaiting_appointment"`
}

// History returns the visitor's transcript. The chips are those of the last
// bot message that offered any, or the start chips.
func (s *Service) History(ctx context.Context, userID string) (*HistoryView, error) {
	view := &HistoryView{Messages: []Message{}}
	if userID != "" {
		msgs, err := s.store.List(ctx, userID, historyLimit)
		if err != nil {
			return nil, err
		}
		view.Messages = msgs
		if view.AwaitingAppointment, err = s.store.AwaitingAppointment(ctx, userID); err != nil {
			s.logger.Warn("chat: reading awaiting appointment failed", "user_id", userID, "error", err)
		}
	}

	view.Suggestions = StartSuggestions
	for i := len(view.Messages) - 1; i >= 0; i-- {
		if m := view.Messages[i]; m.Sender == SenderBot && len(m.Suggestions) > 0 {
			view.Suggestions = m.Suggestions
			break
		}
	}
	view.HTML = RenderTranscript(view.Messages)
	view.SuggestionsHTML = RenderSuggestions(view.Suggestions)
	return view, nil
}

func (s *Service) append(ctx context.Context, userID string, msg Message) {
	if userID == "" {
		return
	}
	if err := s.store.Append(ctx, userID, msg); err != nil {
		s.logger.Warn("chat: transcript append failed", "user_id", userID, "error", err)
	}
}

func (s *Service) setTyping(userID string, active bool) {
	if s.typing != nil && userID != "" {
		s.typing.Typing(userID, active)
	}
}

func (s *Service) render(r *Reply) {
	r.UserHTML = RenderMessage(r.User)
	r.BotHTML = RenderMessage(r.Bot)
	if len(r.Suggestions) > 0 {
		r.SuggestionsHTML = RenderSuggestions(r.Suggestions)
	}
}
