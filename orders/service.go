// Package orders runs the order lifecycle: placement, status changes,
// lookups and the daily summary.
package orders

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"cafe-ordering-api/apperr"
	"cafe-ordering-api/metrics"
	"cafe-ordering-api/models"
	"cafe-ordering-api/sequence"
	"cafe-ordering-api/statemachine"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notifier is told about committed order changes.
type Notifier interface {
	OrderCreated(o *models.Order)
	OrderUpdated(o *models.Order)
}

type Service struct {
	db           *gorm.DB
	counter      *sequence.Counter
	notifier     Notifier
	parcelCharge float64
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewService(db *gorm.DB, counter *sequence.Counter, notifier Notifier, parcelCharge float64, log logrus.FieldLogger) *Service {
	return &Service{
		db:           db,
		counter:      counter,
		notifier:     notifier,
		parcelCharge: parcelCharge,
		log:          log,
		now:          time.Now,
	}
}

// LineInput is one requested line. Price is the unit price the client saw.
type LineInput struct {
	ItemID   models.LooseString `json:"itemId"`
	Name     string             `json:"name"`
	Variant  string             `json:"variant"`
	Quantity int                `json:"quantity"`
	Price    float64            `json:"price"`
	Notes    string             `json:"notes"`
}

type CreateInput struct {
	Items        []LineInput        `json:"items"`
	TableNumber  models.LooseString `json:"tableNumber"`
	IsParcel     bool               `json:"isParcel"`
	CustomerName string             `json:"customerName"`
	Notes        string             `json:"notes"`
}

func (in CreateInput) validate() error {
	if len(in.Items) == 0 {
		return apperr.Validation("No items in order")
	}
	if strings.TrimSpace(string(in.TableNumber)) == "" {
		return apperr.Validation("Table number is required")
	}
	for _, line := range in.Items {
		switch {
		case strings.TrimSpace(string(line.ItemID)) == "":
			return apperr.Validation("Each item needs an itemId")
		case strings.TrimSpace(line.Name) == "":
			return apperr.Validation("Each item needs a name")
		case line.Quantity < 1:
			return apperr.Validation("Item quantity must be at least 1")
		case line.Price < 0:
			return apperr.Validation("Item price must not be negative")
		}
	}
	return nil
}

// Create prices and stores a new pending order. The order number is drawn
// inside the same transaction as the insert.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	order := models.Order{
		TableNumber:  strings.TrimSpace(string(in.TableNumber)),
		Status:       models.StatusPending,
		IsParcel:     in.IsParcel,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Notes:        in.Notes,
		Items:        make([]models.OrderItem, len(in.Items)),
	}
	var subtotal float64
	for i, line := range in.Items {
		order.Items[i] = models.OrderItem{
			Position: i,
			ItemID:   strings.TrimSpace(string(line.ItemID)),
			Name:     strings.TrimSpace(line.Name),
			Variant:  line.Variant,
			Quantity: line.Quantity,
			Price:    line.Price,
			Notes:    line.Notes,
		}
		subtotal += line.Price * float64(line.Quantity)
	}
	order.Subtotal = roundMoney(subtotal)
	if in.IsParcel {
		order.ParcelCharges = s.parcelCharge
	}
	order.Total = roundMoney(order.Subtotal + order.ParcelCharges)
	order.StatusHistory = []models.OrderStatusHistory{
		{Status: models.StatusPending, Timestamp: s.now()},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.counter.Next(ctx, tx)
		if err != nil {
			return err
		}
		order.OrderNumber = n
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, apperr.Internal("Failed to create order", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"table":        order.TableNumber,
		"total":        order.Total,
	}).Info("order placed")
	metrics.RecordOrderCreated()
	s.notifier.OrderCreated(&order)
	return &order, nil
}

// SetStatus moves an order to raw, which must be a known status. Any known
// status is accepted from any other; moves outside the declared progression
// are logged.
func (s *Service) SetStatus(ctx context.Context, id uint, raw string) (*models.Order, error) {
	status, err := statemachine.Parse(raw)
	if err != nil {
		return nil, err
	}

	var order models.Order
	var previous models.OrderStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := preload(tx).First(&order, id).Error; err != nil {
			return err
		}
		previous = order.Status

		ts := s.now()
		if n := len(order.StatusHistory); n > 0 && ts.Before(order.StatusHistory[n-1].Timestamp) {
			ts = order.StatusHistory[n-1].Timestamp
		}
		entry := models.OrderStatusHistory{OrderID: order.ID, Status: status, Timestamp: ts}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&order).Update("status", status).Error; err != nil {
			return err
		}
		order.StatusHistory = append(order.StatusHistory, entry)
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to update order", err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"from":         previous,
		"to":           status,
	})
	if previous != status && !statemachine.IsDeclared(previous, status) {
		entry.Warn("order moved outside the usual progression")
	} else {
		entry.Info("order status changed")
	}
	metrics.RecordStatusChange(string(status))
	s.notifier.OrderUpdated(&order)
	return &order, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := preload(s.db.WithContext(ctx)).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch order", err)
	}
	return &order, nil
}

// Filter narrows List. An empty Status or "all" matches every status.
type Filter struct {
	Status string
	Table  string
}

// List returns matching orders, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Order, error) {
	tx := preload(s.db.WithContext(ctx))
	if st := strings.TrimSpace(f.Status); st != "" && st != "all" {
		status, err := statemachine.Parse(st)
		if err != nil {
			return nil, err
		}
		tx = tx.Where("status = ?", status)
	}
	if table := strings.TrimSpace(f.Table); table != "" {
		tx = tx.Where("table_number = ?", table)
	}

	list := []models.Order{}
	if err := tx.Order("created_at desc, id desc").Find(&list).Error; err != nil {
		return nil, apperr.Internal("Failed to fetch orders", err)
	}
	return list, nil
}

// Summary reports on orders placed during the local day.
type Summary struct {
	Date          string  `json:"date"`
	TotalOrders   int     `json:"totalOrders"`
	TotalRevenue  float64 `json:"totalRevenue"`
	AvgOrderValue float64 `json:"avgOrderValue"`
	Pending       int     `json:"pending"`
	Preparing     int     `json:"preparing"`
	Ready         int     `json:"ready"`
	Served        int     `json:"served"`
	Cancelled     int     `json:"cancelled"`
}

// Summary aggregates the orders created on the calendar day containing now.
// Revenue counts every order of the day, cancelled ones included.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	var rows []models.Order
	err := s.db.WithContext(ctx).
		Select("status", "total").
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal("Failed to build summary", err)
	}

	sum := &Summary{Date: start.Format("2006-01-02"), TotalOrders: len(rows)}
	var revenue float64
	for _, o := range rows {
		revenue += o.Total
		switch o.Status {
		case models.StatusPending:
			sum.Pending++
		case models.StatusPreparing:
			sum.Preparing++
		case models.StatusReady:
			sum.Ready++
		case models.StatusServed:
			sum.Served++
		case models.StatusCancelled:
			sum.Cancelled++
		}
	}
	sum.TotalRevenue = roundMoney(revenue)
	if len(rows) > 0 {
		sum.AvgOrderValue = roundMoney(revenue / float64(len(rows)))
	}
	return sum, nil
}

func preload(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") })
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
