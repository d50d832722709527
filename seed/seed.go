// Package seed loads the default café menu, admin account and order counter.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"cafe-ordering-api/models"
	"cafe-ordering-api/sequence"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const DefaultAdminUsername = "admin"

//go:embed menu.yaml
var defaultMenu []byte

type menuFile struct {
	Items []struct {
		Name     string           `yaml:"name"`
		Category string           `yaml:"category"`
		Price    float64          `yaml:"price"`
		Variants []models.Variant `yaml:"variants"`
	} `yaml:"items"`
	Bestsellers []string `yaml:"bestsellers"`
}

// DefaultMenu parses the embedded menu.
func DefaultMenu() ([]models.MenuItem, error) {
	return ParseMenu(defaultMenu)
}

// ParseMenu decodes a menu YAML document into available items, flagging
// the listed bestsellers.
func ParseMenu(data []byte) ([]models.MenuItem, error) {
	var f menuFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	best := make(map[string]bool, len(f.Bestsellers))
	for _, name := range f.Bestsellers {
		best[name] = true
	}
	items := make([]models.MenuItem, 0, len(f.Items))
	for i, it := range f.Items {
		if it.Name == "" || it.Category == "" {
			return nil, fmt.Errorf("parse menu: item %d needs a name and category", i+1)
		}
		items = append(items, models.MenuItem{
			Name:       it.Name,
			Category:   it.Category,
			Price:      it.Price,
			Variants:   it.Variants,
			Available:  true,
			Bestseller: best[it.Name],
		})
	}
	return items, nil
}

type Options struct {
	AdminPassword    string
	OrderNumberStart int64
}

// Run seeds each part independently: menu items only into an empty catalog,
// the admin only when no admin exists, and the counter only when missing.
func Run(ctx context.Context, db *gorm.DB, opts Options, log logrus.FieldLogger) error {
	if err := seedMenu(ctx, db, log); err != nil {
		return err
	}
	if err := seedAdmin(ctx, db, opts.AdminPassword, log); err != nil {
		return err
	}
	counter := sequence.NewCounter(models.OrderNumberCounter, opts.OrderNumberStart)
	if err := counter.Ensure(ctx, db); err != nil {
		return err
	}
	log.WithField("start", opts.OrderNumberStart).Info("order counter ready")
	return nil
}

func seedMenu(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.MenuItem{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count menu items: %w", err)
	}
	if count > 0 {
		log.WithField("items", count).Info("menu already populated, skipping seed")
		return nil
	}
	items, err := DefaultMenu()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).CreateInBatches(items, 50).Error; err != nil {
		return fmt.Errorf("insert menu items: %w", err)
	}
	log.WithField("items", len(items)).Info("seeded menu")
	return nil
}

func seedAdmin(ctx context.Context, db *gorm.DB, password string, log logrus.FieldLogger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		log.Info("admin already exists, skipping")
		return nil
	}
	if password == "" {
		return fmt.Errorf("seed admin: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.Admin{Username: DefaultAdminUsername, PasswordHash: string(hash)}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.WithField("username", admin.Username).Info("created default admin")
	return nil
}
