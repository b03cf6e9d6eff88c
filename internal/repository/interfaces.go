// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"microconfig-service/internal/model"
)

// ErrRequestNotFound is returned when no record has the given id
var ErrRequestNotFound = errors.New("request not found")

// RequestRepository defines request history access operations
type RequestRepository interface {
	// CRUD operations
	Create(ctx context.Context, record *model.RequestRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RequestRecord, error)
	Update(ctx context.Context, record *model.RequestRecord) error

	// Listing and filtering
	List(ctx context.Context, filter *RequestFilter) ([]*model.RequestRecord, int, error)

	// Analytics
	GetRequestStats(ctx context.Context) (*RequestStats, error)
}

// RequestFilter represents request listing filters
type RequestFilter struct {
	Kind    *model.RequestKind   `json:"kind,omitempty"`
	Status  *model.RequestStatus `json:"status,omitempty"`
	Path    *string              `json:"path,omitempty"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
}

// RequestStats represents request statistics
type RequestStats struct {
	TotalRequests int                         `json:"total_requests"`
	Successful    int                         `json:"successful_requests"`
	Failed        int                         `json:"failed_requests"`
	Pending       int                         `json:"pending_requests"`
	AvgDuration   time.Duration               `json:"average_duration"`
	ByKind        map[model.RequestKind]int   `json:"by_kind"`
	ByStatus      map[model.RequestStatus]int `json:"by_status"`
}
