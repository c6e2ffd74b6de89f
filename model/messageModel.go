// model/messageModel.go
package model

import (
	"fmt"
	"strings"
	"time"
)

type MessageKind string

const (
	KindChat   MessageKind = "chat"
	KindSystem MessageKind = "system"
)

// Event identifies the state transition a system message records.
type Event string

const (
	EventProposal          Event = "proposal"
	EventAgreed            Event = "agreed"
	EventRefused           Event = "refused"
	EventClosed            Event = "closed"
	EventReturned          Event = "returned"
	EventReturnReminder    Event = "return_reminder"
	EventReturnReminderAck Event = "return_reminder_ack"
)

// LegacySystemPrefix marks system messages in rows written before the kind
// column existed.
const LegacySystemPrefix = "!system:"

const DateLayout = "02.01.2006"

// Window is a rental period; either end may be open.
type Window struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (w Window) IsZero() bool { return w.From == nil && w.To == nil }

func (w Window) Equal(o Window) bool {
	return sameDay(w.From, o.From) && sameDay(w.To, o.To)
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (w Window) String() string {
	switch {
	case w.From != nil && w.To != nil:
		return fmt.Sprintf("from %s to %s", w.From.Format(DateLayout), w.To.Format(DateLayout))
	case w.From != nil:
		return "from " + w.From.Format(DateLayout)
	case w.To != nil:
		return "until " + w.To.Format(DateLayout)
	}
	return ""
}

// Message is immutable once stored, except for Read which only the recipient
// may set. A message without ThreadID heads its own thread.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Body        string      `json:"body"`
	Kind        MessageKind `json:"kind"`
	Event       Event       `json:"event,omitempty"`
	Window      *Window     `json:"window,omitempty"`
	ThreadID    *string     `json:"thread_id,omitempty"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"created_at"`
}

// EffectiveThreadID is ThreadID when set, otherwise the message's own id.
func (m Message) EffectiveThreadID() string {
	if m.ThreadID != nil && *m.ThreadID != "" {
		return *m.ThreadID
	}
	return m.ID
}

func (m Message) IsSystem() bool { return m.Kind == KindSystem }

// SystemBody renders the display text of a system event.
func SystemBody(ev Event, w Window) string {
	switch ev {
	case EventProposal:
		return "Requested rent period " + w.String()
	case EventAgreed:
		return "Owner agreed to rent the book."
	case EventRefused:
		return "Owner refused to rent the book."
	case EventClosed:
		return "Owner closed the discussion."
	case EventReturned:
		return "Owner confirmed the book was returned by the borrower."
	case EventReturnReminder:
		return "Please contact the owner to agree on a new return date."
	case EventReturnReminderAck:
		return "We asked the borrower to contact you to agree on the return date."
	}
	return string(ev)
}

var legacyEvents = map[string]Event{
	SystemBody(EventAgreed, Window{}):            EventAgreed,
	SystemBody(EventRefused, Window{}):           EventRefused,
	SystemBody(EventClosed, Window{}):            EventClosed,
	SystemBody(EventReturned, Window{}):          EventReturned,
	SystemBody(EventReturnReminder, Window{}):    EventReturnReminder,
	SystemBody(EventReturnReminderAck, Window{}): EventReturnReminderAck,
}

// ParseLegacyBody classifies a body stored without a kind. System bodies
// carry LegacySystemPrefix; the prefix is stripped from the returned text.
func ParseLegacyBody(body string) (MessageKind, Event, *Window, string) {
	if !strings.HasPrefix(body, LegacySystemPrefix) {
		return KindChat, "", nil, body
	}
	text := strings.TrimSpace(strings.TrimPrefix(body, LegacySystemPrefix))
	if ev, ok := legacyEvents[text]; ok {
		return KindSystem, ev, nil, text
	}
	if rest, ok := strings.CutPrefix(text, "Requested rent period "); ok {
		return KindSystem, EventProposal, parseLegacyWindow(rest), text
	}
	return KindSystem, "", nil, text
}

func parseLegacyWindow(s string) *Window {
	w := &Window{}
	parse := func(v string) *time.Time {
		t, err := time.Parse(DateLayout, strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &t
	}
	switch {
	case strings.HasPrefix(s, "from "):
		from, to, found := strings.Cut(strings.TrimPrefix(s, "from "), " to ")
		w.From = parse(from)
		if found {
			w.To = parse(to)
		}
	case strings.HasPrefix(s, "until "):
		w.To = parse(strings.TrimPrefix(s, "until "))
	}
	if w.IsZero() {
		return nil
	}
	return w
}
