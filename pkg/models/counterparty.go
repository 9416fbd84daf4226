package models

import (
	"time"
)

// CounterpartyType classifies the legal form of a counterparty
type CounterpartyType string

const (
	CounterpartyTypeIndividual    CounterpartyType = "INDIVIDUAL"
	CounterpartyTypeCorporate     CounterpartyType = "CORPORATE"
	CounterpartyTypeInstitutional CounterpartyType = "INSTITUTIONAL"
)

// CounterpartyTypes lists every known counterparty type
var CounterpartyTypes = []CounterpartyType{
	CounterpartyTypeIndividual,
	CounterpartyTypeCorporate,
	CounterpartyTypeInstitutional,
}

// Valid reports whether t is a known counterparty type
func (t CounterpartyType) Valid() bool {
	for _, known := range CounterpartyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CounterpartyStatus represents whether a counterparty may trade
type CounterpartyStatus string

const (
	CounterpartyStatusActive    CounterpartyStatus = "ACTIVE"
	CounterpartyStatusInactive  CounterpartyStatus = "INACTIVE"
	CounterpartyStatusSuspended CounterpartyStatus = "SUSPENDED"
)

// CounterpartyStatuses lists every known counterparty status
var CounterpartyStatuses = []CounterpartyStatus{
	CounterpartyStatusActive,
	CounterpartyStatusInactive,
	CounterpartyStatusSuspended,
}

// Valid reports whether s is a known counterparty status
func (s CounterpartyStatus) Valid() bool {
	for _, known := range CounterpartyStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Counterparty is the external party on the other side of a trade
type Counterparty struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Name        string             `gorm:"not null;size:100;index" json:"name"`
	Code        string             `gorm:"not null;size:20;uniqueIndex:idx_counterparties_code" json:"code"`
	Email       string             `gorm:"size:100" json:"email,omitempty"`
	PhoneNumber string             `gorm:"size:20" json:"phone_number,omitempty"`
	Address     string             `gorm:"size:500" json:"address,omitempty"`
	Type        CounterpartyType   `gorm:"not null;size:20;index" json:"type"`
	Status      CounterpartyStatus `gorm:"not null;size:20;default:'ACTIVE';index" json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IsActive reports whether new trades may reference the counterparty
func (c *Counterparty) IsActive() bool {
	return c.Status == CounterpartyStatusActive
}

// TableName methods
func (Counterparty) TableName() string { return "counterparties" }
