// Package audit records stage transitions for replay and operational
// visibility. Publishing is fire-and-forget: a failed sink never blocks or
// fails the turn that caused the transition.
package audit

import (
	"context"
	"time"

	id "lifeshield/pkg/domain"
)

// Event captures one stage transition.
type Event struct {
	SessionID id.SessionID `json:"session_id"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	At        time.Time    `json:"at"`
	RequestID string       `json:"request_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

// Publisher delivers transition events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// Nop discards events. Used when no sink is configured and tests do not
// care about the trail.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close()                         {}
