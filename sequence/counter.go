// Package sequence issues human-readable order numbers.
package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cafe-ordering-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counter hands out strictly increasing values from a single named row.
// Each increment is one UPDATE ... RETURNING statement, so concurrent callers
// never observe the same value.
type Counter struct {
	name  string
	start int64
}

func NewCounter(name string, start int64) *Counter {
	return &Counter{name: name, start: start}
}

// Ensure creates the counter row at its starting offset if it does not exist.
func (c *Counter) Ensure(ctx context.Context, db *gorm.DB) error {
	row := models.Counter{Name: c.name, Value: c.start}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("ensure counter %s: %w", c.name, err)
	}
	return nil
}

// Next increments the counter and returns the new value. Pass a transaction
// to tie the increment to the record that consumes it.
func (c *Counter) Next(ctx context.Context, db *gorm.DB) (int64, error) {
	value, ok, err := c.increment(ctx, db)
	if err != nil {
		return 0, err
	}
	if ok {
		return value, nil
	}
	if err := c.Ensure(ctx, db); err != nil {
		return 0, err
	}
	value, ok, err = c.increment(ctx, db)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("counter %s missing after ensure", c.name)
	}
	return value, nil
}

// Current returns the last issued value without changing it.
func (c *Counter) Current(ctx context.Context, db *gorm.DB) (int64, error) {
	var row models.Counter
	if err := db.WithContext(ctx).Where("name = ?", c.name).Take(&row).Error; err != nil {
		return 0, fmt.Errorf("read counter %s: %w", c.name, err)
	}
	return row.Value, nil
}

func (c *Counter) increment(ctx context.Context, db *gorm.DB) (int64, bool, error) {
	var value int64
	err := db.WithContext(ctx).
		Raw("UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value", c.name).
		Row().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment counter %s: %w", c.name, err)
	}
	return value, true, nil
}
