// Package events publishes auth lifecycle events to a message broker so
// downstream consumers (audit trails, notification workers) can react to
// sign-ups, sign-ins, and session changes.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types emitted by the auth service.
const (
	TypeSignedUp  = "account.signed_up"
	TypeSignedIn  = "account.signed_in"
	TypeRefreshed = "session.refreshed"
	TypeRevoked   = "session.revoked"
)

// Event describes one auth lifecycle occurrence. The payload carries no
// credential material.
type Event struct {
	Type      string    `json:"type"`
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to a broker. Publishing is best-effort from
// the orchestrator's point of view; a failed publish never fails the auth
// operation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

func marshal(event Event) ([]byte, map[string]string, error) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	attrs := map[string]string{"type": event.Type}
	return data, attrs, nil
}
