package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OrderStatus represents all possible states of a café order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID            uint                 `json:"id" gorm:"primaryKey"`
	OrderNumber   int64                `json:"orderNumber" gorm:"uniqueIndex;not null"`
	Items         []OrderItem          `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TableNumber   string               `json:"tableNumber" gorm:"index;not null"`
	Status        OrderStatus          `json:"status" gorm:"index;not null;default:'pending'"`
	Subtotal      float64              `json:"subtotal" gorm:"not null"`
	ParcelCharges float64              `json:"parcelCharges" gorm:"not null;default:0"`
	Total         float64              `json:"total" gorm:"not null"`
	IsParcel      bool                 `json:"isParcel" gorm:"not null;default:false"`
	CustomerName  string               `json:"customerName"`
	Notes         string               `json:"notes"`
	StatusHistory []OrderStatusHistory `json:"statusHistory" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// OrderItem is a snapshot of a menu item taken when the order was placed.
// Later catalog edits never touch it.
type OrderItem struct {
	ID       uint    `json:"-" gorm:"primaryKey"`
	OrderID  uint    `json:"-" gorm:"not null;index"`
	Position int     `json:"-" gorm:"not null"`
	ItemID   string  `json:"itemId" gorm:"not null"`
	Name     string  `json:"name" gorm:"not null"`
	Variant  string  `json:"variant"`
	Quantity int     `json:"quantity" gorm:"not null"`
	Price    float64 `json:"price" gorm:"not null"` // snapshot unit price
	Notes    string  `json:"notes"`
}

// OrderStatusHistory is the append-only audit trail of an order's statuses
type OrderStatusHistory struct {
	ID        uint        `json:"-" gorm:"primaryKey"`
	OrderID   uint        `json:"-" gorm:"not null;index"`
	Status    OrderStatus `json:"status" gorm:"not null"`
	Timestamp time.Time   `json:"timestamp" gorm:"not null"`
}

// LooseString decodes from either a JSON string or a JSON number.
// Front-ends send table numbers and item ids both ways.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	if i, err := num.Int64(); err == nil {
		*s = LooseString(strconv.FormatInt(i, 10))
		return nil
	}
	*s = LooseString(num.String())
	return nil
}
