// Package chat drives the legal assistant chat: it relays visitor messages to
// the upstream assistant, keeps the per-visitor transcript, and renders the
// message bubbles and suggestion chips.
package chat

import (
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/despacho-web/internal/ui"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

const (
	botAuthor  = "🤖 Asistente Legal"
	userAuthor = "👤 Tú"
)

// Message is one chat bubble.
type Message struct {
	ID                  string    `json:"id"`
	Sender              Sender    `json:"sender"`
	Text                string    `json:"text"`
	Suggestions         []string  `json:"suggestions,omitempty"`
	RequiresAppointment bool      `json:"requires_appointment,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.*?)\*`)
)

// RenderMarkdown converts the assistant's light markdown into HTML. The text
// is escaped first so only the generated tags survive.
func RenderMarkdown(text string) template.HTML {
	out := template.HTMLEscapeString(text)
	out = boldPattern.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")
	out = strings.ReplaceAll(out, "\n", "<br>")
	return template.HTML(out)
}

// RenderMessage renders a message bubble. Bot text gets the markdown pass;
// user text is only escaped.
func RenderMessage(msg Message) template.HTML {
	data := struct {
		Sender Sender
		Author string
		Body   template.HTML
	}{Sender: msg.Sender}

	if msg.Sender == SenderBot {
		data.Author = botAuthor
		data.Body = RenderMarkdown(msg.Text)
	} else {
		data.Sender = SenderUser
		data.Author = userAuthor
		data.Body = template.HTML(template.HTMLEscapeString(msg.Text))
	}
	return ui.Render("chat_message", data)
}

// RenderTranscript renders every message in order.
func RenderTranscript(msgs []Message) template.HTML {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(RenderMessage(m)))
	}
	return template.HTML(b.String())
}

// RenderSuggestions renders the suggestion chips. Clicking a chip resends its
// label as a message.
func RenderSuggestions(suggestions []string) template.HTML {
	return ui.Render("suggestions", suggestions)
}

// StartSuggestions are the chips shown before the first exchange.
var StartSuggestions = []string{
	"Ver servicios disponibles",
	"Consultar costos",
	"Agendar una cita",
	"Información de contacto",
}

var quickPrompts = map[string]string{
	"services":    "¿Qué servicios legales ofrecen?",
	"costs":       "¿Cuáles son sus costos?",
	"contact":     "¿Cuál es su información de contacto?",
	"appointment": "Quiero agendar una cita",
}

// QuickPrompt returns the fixed question behind a quick-action button.
func QuickPrompt(name string) (string, bool) {
	p, ok := quickPrompts[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// QuickPromptNames lists the quick actions in display order.
func QuickPromptNames() []string {
	return []string{"services", "costs", "contact", "appointment"}
}
