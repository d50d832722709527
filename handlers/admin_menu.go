package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cafe-ordering-api/apperr"
	"cafe-ordering-api/menu"
	"cafe-ordering-api/models"
	"cafe-ordering-api/storage"

	"github.com/gin-gonic/gin"
)

// ── Menu Management ──────────────────────────────────────────────────────────
// Create and update take multipart forms: text fields plus an optional
// "image" file. Variants arrive as a JSON array string.

// ListMenuItems returns every item, including unavailable ones
func (h *Handler) ListMenuItems(c *gin.Context) {
	items, err := h.Menu.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddMenuItem creates a menu item
func (h *Handler) AddMenuItem(c *gin.Context) {
	img, err := h.formImage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer img.Close()

	in := menu.ItemInput{
		Name:        c.PostForm("name"),
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Bestseller:  c.PostForm("bestseller") == "true",
	}
	if in.Price, err = formPrice(c); err != nil {
		h.respondError(c, err)
		return
	}
	if raw, ok := c.GetPostForm("variants"); ok && strings.TrimSpace(raw) != "" {
		if in.Variants, err = parseVariants(raw); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if raw, ok := c.GetPostForm("available"); ok {
		v := raw == "true"
		in.Available = &v
	}

	item, err := h.Menu.Create(c.Request.Context(), in, img)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateMenuItem applies the fields present in the form
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	id, err := paramID(c, "Item not found")
	if err != nil {
		h.respondError(c, err)
		return
	}
	img, err := h.formImage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer img.Close()

	var patch menu.ItemPatch
	if v, ok := c.GetPostForm("name"); ok {
		patch.Name = &v
	}
	if v, ok := c.GetPostForm("category"); ok {
		patch.Category = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		patch.Description = &v
	}
	if patch.Price, err = formPrice(c); err != nil {
		h.respondError(c, err)
		return
	}
	if raw, ok := c.GetPostForm("variants"); ok {
		patch.VariantsSet = true
		if strings.TrimSpace(raw) != "" {
			if patch.Variants, err = parseVariants(raw); err != nil {
				h.respondError(c, err)
				return
			}
		}
	}
	if raw, ok := c.GetPostForm("available"); ok {
		v := raw == "true"
		patch.Available = &v
	}
	if raw, ok := c.GetPostForm("bestseller"); ok {
		v := raw == "true"
		patch.Bestseller = &v
	}

	item, err := h.Menu.Update(c.Request.Context(), id, patch, img)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteMenuItem removes an item; its image is cleaned up best-effort
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	id, err := paramID(c, "Item not found")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Menu.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// formOverhead is the room left for text fields and multipart framing on
// top of the image size limit.
const formOverhead = 1 << 20

// formImage opens the optional "image" upload. It returns nil when the
// request carries no file. The body is capped while it is read, so an
// oversized upload is rejected before it is spooled to disk.
func (h *Handler) formImage(c *gin.Context) (*storage.Upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload+formOverhead)
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, apperr.Validation(fmt.Sprintf("Image too large (max %d bytes)", h.MaxUpload))
	}
	if err != nil {
		return nil, apperr.Validation("Invalid upload")
	}
	return storage.Open(fh, h.MaxUpload)
}

func formPrice(c *gin.Context) (*float64, error) {
	raw, ok := c.GetPostForm("price")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, apperr.Validation("price must be a number")
	}
	return &v, nil
}

// parseVariants decodes a JSON array of variants. An empty array is kept
// non-nil so validation can reject it.
func parseVariants(raw string) ([]models.Variant, error) {
	variants := []models.Variant{}
	if err := json.Unmarshal([]byte(raw), &variants); err != nil {
		return nil, apperr.Validation("variants must be a JSON array of {name, price}")
	}
	return variants, nil
}
