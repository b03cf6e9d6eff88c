// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of session event
type EventType string

const (
	EventSessionStarted  EventType = "SESSION_STARTED"
	EventStartupComplete EventType = "STARTUP_COMPLETE"
	EventMenuReady       EventType = "MENU_READY"
	EventRequestDone     EventType = "REQUEST_COMPLETED"
	EventStreamOutput    EventType = "STREAM_OUTPUT"
	EventConfirmation    EventType = "CONFIRMATION"
	EventParameterUpdate EventType = "PARAMETER_UPDATE"
	EventSessionFault    EventType = "SESSION_FAULT"
)

// SessionEvent represents an event published to subscribers
type SessionEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Severity  string     `json:"severity"` // INFO, WARNING, ERROR
}

// JSONObject is a free-form event payload
type JSONObject map[string]interface{}

// NewSessionEvent creates an event stamped with the current time
func NewSessionEvent(eventType EventType, severity string, data JSONObject) SessionEvent {
	return SessionEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  severity,
	}
}
