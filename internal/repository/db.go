package repository

import (
	"context"
	"fmt"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadRepository defines the interface for lead operations
type LeadRepository interface {
	// Read operations
	GetAll(ctx context.Context) ([]*domain.Lead, error)
	GetByID(ctx context.Context, id string) (*domain.Lead, error)

	// Create operations
	Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error)
	BulkCreate(ctx context.Context, reqs []*domain.CreateLeadRequest) ([]*domain.Lead, error)
}

// GormLeadRepository implements LeadRepository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GORM lead repository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// GetAll retrieves all leads, newest first
func (r *GormLeadRepository) GetAll(ctx context.Context) ([]*domain.Lead, error) {
	var leads []*domain.Lead
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("failed to get leads: %w", err)
	}

	return leads, nil
}

// GetByID retrieves a lead by ID
func (r *GormLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("lead not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return &lead, nil
}

// Create creates a new lead
func (r *GormLeadRepository) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.Lead, error) {
	lead := newLeadFromRequest(req)

	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	return lead, nil
}

// BulkCreate creates leads in a single transaction
func (r *GormLeadRepository) BulkCreate(ctx context.Context, reqs []*domain.CreateLeadRequest) ([]*domain.Lead, error) {
	leads := make([]*domain.Lead, 0, len(reqs))
	for _, req := range reqs {
		leads = append(leads, newLeadFromRequest(req))
	}

	if len(leads) == 0 {
		return leads, nil
	}

	if err := r.db.WithContext(ctx).Create(&leads).Error; err != nil {
		return nil, fmt.Errorf("failed to bulk create leads: %w", err)
	}

	return leads, nil
}

func newLeadFromRequest(req *domain.CreateLeadRequest) *domain.Lead {
	status := req.Status
	if status == "" {
		status = domain.LeadStatusNotContacted
	}
	notes := req.Notes
	if notes == "" {
		notes = "Manually added"
	}

	return &domain.Lead{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Phone:  req.Phone,
		Notes:  notes,
		Status: status,
	}
}
