// internal/repository/request_repository.go
package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"microconfig-service/internal/model"
)

// requestRepository keeps the most recent requests in memory
type requestRepository struct {
	mutex    sync.RWMutex
	records  []*model.RequestRecord
	byID     map[uuid.UUID]*model.RequestRecord
	capacity int
	logger   *zap.Logger
}

// NewRequestRepository creates a history holding at most capacity records.
// The oldest record is evicted first.
func NewRequestRepository(capacity int, logger *zap.Logger) RequestRepository {
	if capacity <= 0 {
		capacity = 1
	}
	return &requestRepository{
		byID:     make(map[uuid.UUID]*model.RequestRecord),
		capacity: capacity,
		logger:   logger,
	}
}

// Create stores a new record
func (r *requestRepository) Create(ctx context.Context, record *model.RequestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byID[record.ID]; exists {
		return fmt.Errorf("request %s already recorded", record.ID)
	}

	if len(r.records) >= r.capacity {
		evicted := r.records[0]
		r.records = r.records[1:]
		delete(r.byID, evicted.ID)
		r.logger.Debug("Evicted request from history", zap.String("request_id", evicted.ID.String()))
	}

	stored := record.Clone()
	r.records = append(r.records, stored)
	r.byID[stored.ID] = stored
	return nil
}

// GetByID retrieves a record by ID
func (r *requestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return record.Clone(), nil
}

// Update replaces a stored record
func (r *requestRepository) Update(ctx context.Context, record *model.RequestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.byID[record.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, record.ID)
	}
	*stored = *record.Clone()
	return nil
}

// List returns records newest first, with the total number matching the filter
func (r *requestRepository) List(ctx context.Context, filter *RequestFilter) ([]*model.RequestRecord, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if filter == nil {
		filter = &RequestFilter{}
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matched []*model.RequestRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if filter.Kind != nil && record.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		if filter.Path != nil && !strings.EqualFold(record.Path, *filter.Path) {
			continue
		}
		matched = append(matched, record)
	}

	total := len(matched)
	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	start := (page - 1) * perPage
	if start >= total {
		return []*model.RequestRecord{}, total, nil
	}
	end := min(start+perPage, total)

	out := make([]*model.RequestRecord, 0, end-start)
	for _, record := range matched[start:end] {
		out = append(out, record.Clone())
	}
	return out, total, nil
}

// GetRequestStats summarises the history
func (r *requestRepository) GetRequestStats(ctx context.Context) (*RequestStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := &RequestStats{
		TotalRequests: len(r.records),
		ByKind:        make(map[model.RequestKind]int),
		ByStatus:      make(map[model.RequestStatus]int),
	}

	var total time.Duration
	var completed int
	for _, record := range r.records {
		stats.ByKind[record.Kind]++
		stats.ByStatus[record.Status]++
		switch record.Status {
		case model.RequestStatusSuccess:
			stats.Successful++
		case model.RequestStatusQueued:
			stats.Pending++
		default:
			stats.Failed++
		}
		if record.DurationMs != nil {
			total += time.Duration(*record.DurationMs) * time.Millisecond
			completed++
		}
	}
	if completed > 0 {
		stats.AvgDuration = total / time.Duration(completed)
	}
	return stats, nil
}
