package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventAdminBootstrapped EventType = "admin_bootstrapped"
)

// AllTypes lists every event type the service emits.
var AllTypes = []EventType{EventUserRegistered, EventLoginSucceeded, EventLoginFailed, EventAdminBootstrapped}

// Event represents an audit-relevant fact emitted by services. Subject is the
// normalized email of the account concerned.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps a new event.
func NewEvent(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// LoginFailedPayload payload. Reason is internal only and never returned to clients.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// AdminBootstrappedPayload payload.
type AdminBootstrappedPayload struct {
	UserID string `json:"user_id"`
}
