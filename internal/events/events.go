// Package events carries ledger notifications to live clients.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeStockUpdate = "stock_update"
	TypeUserStatus  = "user_status_update"
)

// Stock update actions.
const (
	ActionTransactionCreated  = "transaction_created"
	ActionTransactionUpdated  = "transaction_updated"
	ActionTransactionDeleted  = "transaction_deleted"
	ActionTransactionsDeleted = "transactions_deleted"
	ActionBatchApplied        = "batch_applied"
	ActionProductCreated      = "product_created"
	ActionProductUpdated      = "product_updated"
	ActionProductDeleted      = "product_deleted"
)

// User identifies who caused an event.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Event struct {
	Type      string      `json:"type"`
	Action    string      `json:"action,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	User      *User       `json:"user,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewStockUpdate builds a stock_update event stamped with the current time.
func NewStockUpdate(action string, data interface{}, user *User, message string) Event {
	return Event{
		Type:      TypeStockUpdate,
		Action:    action,
		Data:      data,
		User:      user,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers events to subscribers. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Sink receives already-encoded events, typically the local websocket hub.
type Sink interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	select {
	case r.ch <- evt:
	default:
	}
	return nil
}

// Events drains what has been recorded so far.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case evt := <-r.ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}
