// internal/model/request.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestKind represents what a firmware request does
type RequestKind string

const (
	RequestKindRead     RequestKind = "READ"
	RequestKindTransmit RequestKind = "TRANSMIT"
	RequestKindWrite    RequestKind = "WRITE"
	RequestKindAction   RequestKind = "ACTION"
	RequestKindFlow     RequestKind = "FLOW"
)

// RequestStatus represents the status of a firmware request
type RequestStatus string

const (
	RequestStatusQueued    RequestStatus = "QUEUED"
	RequestStatusSuccess   RequestStatus = "SUCCESS"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusFailed    RequestStatus = "FAILED"
	RequestStatusTimeout   RequestStatus = "TIMEOUT"
	RequestStatusCancelled RequestStatus = "CANCELLED"
	RequestStatusDropped   RequestStatus = "DROPPED"
)

// RequestRecord is one entry of the request history
type RequestRecord struct {
	ID           uuid.UUID     `json:"id"`
	Kind         RequestKind   `json:"kind"`
	Path         string        `json:"path,omitempty"`
	Identifier   string        `json:"identifier"`
	Keys         []string      `json:"keys"`
	Payload      string        `json:"payload,omitempty"`
	Status       RequestStatus `json:"status"`
	Lines        []string      `json:"lines,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	QueuedAt     time.Time     `json:"queued_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	DurationMs   *int64        `json:"duration_ms,omitempty"`
}

// NewRequestRecord creates a queued record
func NewRequestRecord(kind RequestKind, path, identifier string, keys []string) *RequestRecord {
	return &RequestRecord{
		ID:         uuid.New(),
		Kind:       kind,
		Path:       path,
		Identifier: identifier,
		Keys:       append([]string(nil), keys...),
		Status:     RequestStatusQueued,
		QueuedAt:   time.Now(),
	}
}

// IsCompleted checks if the request has left the queue
func (r *RequestRecord) IsCompleted() bool {
	return r.Status != RequestStatusQueued
}

// Complete records the outcome of the request
func (r *RequestRecord) Complete(status RequestStatus, lines []string, err error, at time.Time) {
	r.Status = status
	r.Lines = append([]string(nil), lines...)
	if err != nil {
		msg := err.Error()
		r.ErrorMessage = &msg
	}
	r.CompletedAt = &at
	duration := at.Sub(r.QueuedAt).Milliseconds()
	r.DurationMs = &duration
}

// Clone returns a copy that shares no slices with r
func (r *RequestRecord) Clone() *RequestRecord {
	c := *r
	c.Keys = append([]string(nil), r.Keys...)
	c.Lines = append([]string(nil), r.Lines...)
	return &c
}
