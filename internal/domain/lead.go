package domain

import (
	"time"
)

// LeadStatusNotContacted is the only status eligible for CSV import
const LeadStatusNotContacted = "Not contacted"

// Lead represents a contact record the agent is dialing
type Lead struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primary_key"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Phone     string    `json:"phone" gorm:"type:varchar(64);not null"`
	Notes     string    `json:"notes" gorm:"type:text"`
	Status    string    `json:"status,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Lead
func (Lead) TableName() string {
	return "leads"
}

// CreateLeadRequest represents the request to add a prospect manually
type CreateLeadRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Notes  string `json:"notes,omitempty"`
	Status string `json:"status,omitempty"`
}

// ImportLeadsResult reports the outcome of a CSV import
type ImportLeadsResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
