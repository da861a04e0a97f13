// Package notification renders appointment messages and fans them out to a
// Sink. Delivery is best-effort: a failed write is logged and counted, and
// the remaining targets are still attempted.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Severity tags a message for the recipient's inbox.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Message is one inbox row.
type Message struct {
	RecipientID uuid.UUID
	Text        string
	Severity    Severity
}

// Sink persists messages. The inbox repository is the production sink.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Deliver(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Observer is told about every delivery attempt.
type Observer interface {
	NotificationDelivered(event, severity, outcome string)
}

// Template ids.
const (
	TplAppointmentRequest = "appointment-request"
	TplAppointmentReceipt = "appointment-receipt"
	TplAppointmentAlert   = "appointment-admin-alert"
	TplStatusUpdated      = "appointment-status-updated"
	TplReminderToPatient  = "reminder-to-patient"
	TplReminderToDoctor   = "reminder-to-doctor"
)

// TemplateEngine stores message bodies with {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateEngine returns an engine with the appointment templates loaded.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{templates: map[string]string{
		TplAppointmentRequest: "New Appointment Request: {{reason}} ({{date}} at {{time_slot}})",
		TplAppointmentReceipt: "Request sent to Dr. {{doctor}} for {{date}}. Status: {{status}}.",
		TplAppointmentAlert:   "System Alert: New Appointment booked by {{patient}} with Dr. {{doctor}}.",
		TplStatusUpdated:      "Your appointment status has been updated to: {{status}}",
		TplReminderToPatient:  "Reminder: You have an appointment with Dr. {{doctor}} on {{date}} at {{time_slot}}.",
		TplReminderToDoctor:   "Reminder: Patient {{patient}} has an upcoming appointment on {{date}} at {{time_slot}}.",
	}}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(id, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[id] = body
}

// Render substitutes data into the template in a single pass, so values that
// themselves contain placeholders are left untouched. Unknown placeholders
// stay as-is.
func (e *TemplateEngine) Render(id string, data map[string]string) (string, error) {
	e.mu.RLock()
	body, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", id)
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(body), nil
}

// Target is one recipient of an event.
type Target struct {
	RecipientID uuid.UUID
	Severity    Severity
	Template    string
	Data        map[string]string
}

// Dispatcher renders and delivers targets in order.
type Dispatcher struct {
	sink      Sink
	templates *TemplateEngine
	observer  Observer
	logger    zerolog.Logger
}

// NewDispatcher creates a Dispatcher. observer may be nil.
func NewDispatcher(sink Sink, templates *TemplateEngine, observer Observer, logger zerolog.Logger) *Dispatcher {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Dispatcher{
		sink:      sink,
		templates: templates,
		observer:  observer,
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// Fanout delivers each target sequentially and returns how many were
// written. It never returns an error.
func (d *Dispatcher) Fanout(ctx context.Context, event string, targets ...Target) int {
	sent := 0
	for _, t := range targets {
		if d.deliver(ctx, event, t) {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) deliver(ctx context.Context, event string, t Target) bool {
	text, err := d.templates.Render(t.Template, t.Data)
	if err == nil {
		err = d.sink.Deliver(ctx, Message{RecipientID: t.RecipientID, Text: text, Severity: t.Severity})
	}

	outcome := "sent"
	if err != nil {
		outcome = "failed"
		d.logger.Error().Err(err).
			Str("event", event).
			Str("recipient_id", t.RecipientID.String()).
			Str("severity", string(t.Severity)).
			Msg("notification delivery failed")
	}
	if d.observer != nil {
		d.observer.NotificationDelivered(event, string(t.Severity), outcome)
	}
	return err == nil
}

// MemorySink keeps delivered messages in memory. FailFor makes deliveries to
// the given recipients fail.
type MemorySink struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[uuid.UUID]error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{failFor: make(map[uuid.UUID]error)}
}

func (s *MemorySink) Deliver(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[msg.RecipientID]; ok {
		return err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *MemorySink) FailFor(recipient uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[recipient] = err
}

// Messages returns a copy of everything delivered so far.
func (s *MemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// For returns the messages delivered to one recipient.
func (s *MemorySink) For(recipient uuid.UUID) []Message {
	var out []Message
	for _, m := range s.Messages() {
		if m.RecipientID == recipient {
			out = append(out, m)
		}
	}
	return out
}
