package models

import (
	"encoding/json"
	"time"
)

// Variant is a named pricing option that replaces a flat price (e.g. size S/L).
type Variant struct {
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
}

type MenuItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Category    string    `json:"category" gorm:"not null;index"`
	Price       float64   `json:"price" gorm:"not null;default:0"`
	Variants    []Variant `json:"variants" gorm:"serializer:json"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Available   bool      `json:"available" gorm:"not null"`
	Bestseller  bool      `json:"bestseller" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasVariants reports whether the item is priced per variant instead of by Price.
func (m *MenuItem) HasVariants() bool {
	return len(m.Variants) > 0
}

// MarshalJSON renders a flat-priced item with an empty variants list, never null.
func (m MenuItem) MarshalJSON() ([]byte, error) {
	type plain MenuItem
	if m.Variants == nil {
		m.Variants = []Variant{}
	}
	return json.Marshal(plain(m))
}
