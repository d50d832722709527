// Package menu manages the café's catalog of menu items.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cafe-ordering-api/apperr"
	"cafe-ordering-api/models"
	"cafe-ordering-api/storage"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CategoryOrder is the order in which the public menu lists categories.
// Categories not named here follow, in catalog order.
var CategoryOrder = []string{
	"Tea", "Hot Coffee", "Hot Chocolate", "Cold Coffee & Frappe",
	"Breads & Bun", "Snacks", "Puff", "Nachos & Chips",
	"Pasta", "Desserts", "Waffles", "Ramen", "Full Meal Special",
}

// Group is one category section of the public menu.
type Group struct {
	Category string            `json:"category"`
	Items    []models.MenuItem `json:"items"`
}

type Service struct {
	db     *gorm.DB
	images storage.ImageStore
	log    logrus.FieldLogger
}

func NewService(db *gorm.DB, images storage.ImageStore, log logrus.FieldLogger) *Service {
	return &Service{db: db, images: images, log: log}
}

// ListAvailable returns available items grouped by category.
func (s *Service) ListAvailable(ctx context.Context) ([]Group, error) {
	var items []models.MenuItem
	err := s.db.WithContext(ctx).
		Where("available = ?", true).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, apperr.Internal("Failed to fetch menu", err)
	}
	return GroupByCategory(items, CategoryOrder), nil
}

// GroupByCategory groups items by category, listing preferred categories
// first and the rest in order of first appearance. Item order within a
// category is preserved.
func GroupByCategory(items []models.MenuItem, preferred []string) []Group {
	byCategory := make(map[string][]models.MenuItem)
	var seen []string
	for _, it := range items {
		if _, ok := byCategory[it.Category]; !ok {
			seen = append(seen, it.Category)
		}
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	groups := make([]Group, 0, len(byCategory))
	for _, cat := range preferred {
		if list, ok := byCategory[cat]; ok {
			groups = append(groups, Group{Category: cat, Items: list})
			delete(byCategory, cat)
		}
	}
	for _, cat := range seen {
		if list, ok := byCategory[cat]; ok {
			groups = append(groups, Group{Category: cat, Items: list})
		}
	}
	return groups
}

// Search matches available items whose name contains q, ignoring case.
func (s *Service) Search(ctx context.Context, q string) ([]models.MenuItem, error) {
	tx := s.db.WithContext(ctx).Where("available = ?", true)
	if q = strings.TrimSpace(q); q != "" {
		tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(q))+"%")
	}
	items := []models.MenuItem{}
	if err := tx.Order("id asc").Find(&items).Error; err != nil {
		return nil, apperr.Internal("Search failed", err)
	}
	return items, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListAll returns every item, including unavailable ones, for the admin view.
func (s *Service) ListAll(ctx context.Context) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	if err := s.db.WithContext(ctx).Order("category asc, name asc").Find(&items).Error; err != nil {
		return nil, apperr.Internal("Failed to fetch menu", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Item not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch item", err)
	}
	return &item, nil
}

// ItemInput describes a new menu item.
type ItemInput struct {
	Name        string
	Category    string
	Price       *float64
	Variants    []models.Variant
	Description string
	Available   *bool
	Bestseller  bool
}

// Create validates and stores a new item, persisting img first when given.
func (s *Service) Create(ctx context.Context, in ItemInput, img *storage.Upload) (*models.MenuItem, error) {
	item := models.MenuItem{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		Variants:    in.Variants,
		Description: in.Description,
		Available:   true,
		Bestseller:  in.Bestseller,
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.Available != nil {
		item.Available = *in.Available
	}
	if in.Price == nil && len(in.Variants) == 0 {
		return nil, apperr.Validation("price is required when no variants are given")
	}
	if err := validate(&item, in.Variants != nil, in.Price != nil); err != nil {
		return nil, err
	}

	if img != nil {
		ref, err := s.images.Save(ctx, img.Name, img.Body, img.ContentType)
		if err != nil {
			return nil, apperr.Internal("Failed to store image", err)
		}
		item.Image = ref
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if item.Image != "" {
			s.releaseImage(ctx, item.Image)
		}
		return nil, apperr.Internal("Failed to add item", err)
	}
	return &item, nil
}

// ItemPatch holds the fields of a partial update. Nil fields are left alone.
// With VariantsSet, a nil Variants switches the item back to flat pricing.
type ItemPatch struct {
	Name        *string
	Category    *string
	Price       *float64
	Variants    []models.Variant
	VariantsSet bool
	Description *string
	Available   *bool
	Bestseller  *bool
}

// Update applies patch to the item with the given id. A new image replaces
// and releases the previous one.
func (s *Service) Update(ctx context.Context, id uint, patch ItemPatch, img *storage.Upload) (*models.MenuItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		item.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}
	if patch.Bestseller != nil {
		item.Bestseller = *patch.Bestseller
	}
	if patch.VariantsSet {
		item.Variants = patch.Variants
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if err := validate(item, patch.VariantsSet && patch.Variants != nil, patch.Price != nil); err != nil {
		return nil, err
	}

	previous := item.Image
	if img != nil {
		ref, err := s.images.Save(ctx, img.Name, img.Body, img.ContentType)
		if err != nil {
			return nil, apperr.Internal("Failed to store image", err)
		}
		item.Image = ref
	}

	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		if img != nil {
			s.releaseImage(ctx, item.Image)
		}
		return nil, apperr.Internal("Failed to update item", err)
	}
	if img != nil && previous != "" {
		s.releaseImage(ctx, previous)
	}
	return item, nil
}

// Delete removes the item and then, best-effort, its image.
func (s *Service) Delete(ctx context.Context, id uint) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.MenuItem{}, item.ID)
	if res.Error != nil {
		return apperr.Internal("Failed to delete item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Item not found")
	}
	if item.Image != "" {
		s.releaseImage(ctx, item.Image)
	}
	return nil
}

func (s *Service) releaseImage(ctx context.Context, ref string) {
	if err := s.images.Remove(ctx, ref); err != nil {
		s.log.WithError(err).WithField("image", ref).Warn("failed to remove image")
	}
}

// validate checks required fields and pricing. variantsGiven and priceGiven
// say whether this request supplied them, so a flat price left over from
// before can be cleared when switching to variants.
func validate(item *models.MenuItem, variantsGiven, priceGiven bool) error {
	var result *multierror.Error
	if item.Name == "" {
		result = multierror.Append(result, errors.New("name is required"))
	}
	if item.Category == "" {
		result = multierror.Append(result, errors.New("category is required"))
	}
	if item.Price < 0 {
		result = multierror.Append(result, errors.New("price must not be negative"))
	}
	if item.Variants != nil && len(item.Variants) == 0 {
		result = multierror.Append(result, errors.New("variants must not be an empty list"))
	}
	for i, v := range item.Variants {
		if strings.TrimSpace(v.Name) == "" {
			result = multierror.Append(result, fmt.Errorf("variant %d: name is required", i+1))
		}
		if v.Price < 0 {
			result = multierror.Append(result, fmt.Errorf("variant %d: price must not be negative", i+1))
		}
	}
	if item.HasVariants() && item.Price != 0 {
		if priceGiven || !variantsGiven {
			result = multierror.Append(result, errors.New("price and variants are mutually exclusive"))
		} else {
			item.Price = 0
		}
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return apperr.Validation(result.Error())
}
