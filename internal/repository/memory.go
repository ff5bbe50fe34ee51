package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// MemoryLeadRepository implements LeadRepository in process memory. It is the
// default backend when no database is configured and comes seeded with one
// sample lead so the dialer UI has something to call on a fresh install.
type MemoryLeadRepository struct {
	mutex sync.RWMutex
	leads []*domain.Lead
}

// NewMemoryLeadRepository creates a seeded in-memory lead repository
func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{
		leads: []*domain.Lead{
			{
				ID:        "1",
				Name:      "arsenii",
				Phone:     "+41762693103",
				Notes:     "Primary contact",
				Status:    domain.LeadStatusNotContacted,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			},
		},
	}
}

// GetAll returns copies of all leads, newest first
func (r *MemoryLeadRepository) GetAll(ctx context.Context) ([]*domain.Lead, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*domain.Lead, 0, len(r.leads))
	for i := len(r.leads) - 1; i >= 0; i-- {
		var lead domain.Lead
		if err := copier.Copy(&lead, r.leads[i]); err != nil {
			return nil, fmt.Errorf("failed to copy lead: %w", err)
		}
		result = append(result, &lead)
	}

	return result, nil
}

// GetByID returns a copy of the lead with the given ID
func (r *MemoryLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, stored := range r.leads {
		if stored.ID == id {
			var lead domain.Lead
			if err := copier.Copy(&lead, stored); err != nil {
				return nil, fmt.Errorf("failed to copy lead: %w", err)
			}
			return &lead, nil
		}
	}

	return nil, fmt.Errorf("lead not found: %s", id)
}

// Create appends a new lead
func (r *MemoryLeadRepository) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	lead := r.newLead(req)
	r.leads = append(r.leads, lead)

	var out domain.Lead
	if err := copier.Copy(&out, lead); err != nil {
		return nil, fmt.Errorf("failed to copy lead: %w", err)
	}
	return &out, nil
}

// BulkCreate appends leads in one locked pass
func (r *MemoryLeadRepository) BulkCreate(ctx context.Context, reqs []*domain.CreateLeadRequest) ([]*domain.Lead, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	created := make([]*domain.Lead, 0, len(reqs))
	for _, req := range reqs {
		lead := r.newLead(req)
		r.leads = append(r.leads, lead)

		var out domain.Lead
		if err := copier.Copy(&out, lead); err != nil {
			return nil, fmt.Errorf("failed to copy lead: %w", err)
		}
		created = append(created, &out)
	}

	return created, nil
}

func (r *MemoryLeadRepository) newLead(req *domain.CreateLeadRequest) *domain.Lead {
	status := req.Status
	if status == "" {
		status = domain.LeadStatusNotContacted
	}
	notes := req.Notes
	if notes == "" {
		notes = "Manually added"
	}

	now := time.Now()
	return &domain.Lead{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Notes:     notes,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
