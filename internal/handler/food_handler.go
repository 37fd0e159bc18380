package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/service"
)

const maxImagesPerProduct = 4

// FoodHandler serves the food catalog and label scanning
type FoodHandler struct {
	states      *service.StateService
	labels      *service.FoodLabelService
	maxUploadMB int64
	now         func() time.Time
}

// NewFoodHandler creates a new food handler
func NewFoodHandler(states *service.StateService, labels *service.FoodLabelService, maxUploadMB int64) *FoodHandler {
	return &FoodHandler{
		states:      states,
		labels:      labels,
		maxUploadMB: maxUploadMB,
		now:         time.Now,
	}
}

// ListFoods handles GET /v1/me/foods, the built-in table plus the user's foods
func (h *FoodHandler) ListFoods(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	state, err := h.states.Snapshot(c.UserContext(), userID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, state.Catalog().Groups())
}

// AddFood handles POST /v1/me/foods
func (h *FoodHandler) AddFood(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	var food domain.FoodItem
	if err := c.BodyParser(&food); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(food.Name) == "" {
		return fail(c, fiber.StatusBadRequest, "food name is required")
	}
	if food.ID == "" {
		food.ID = domain.CustomFoodID(h.now())
	}

	if _, err := h.states.AddCustomFood(c.UserContext(), userID, food); err != nil {
		return failErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    food,
	})
}

// ScanFood handles POST /v1/me/foods/scan. Form fields: images (1..4),
// group, and save=true to add the result to the catalog.
func (h *FoodHandler) ScanFood(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid multipart form: "+err.Error())
	}

	images, err := h.readImages(form, "images")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if len(images) == 0 {
		return fail(c, fiber.StatusBadRequest, "missing 'images' field in form data")
	}

	group := c.FormValue("group")
	ctx := c.UserContext()

	snapshot, err := h.states.Snapshot(ctx, userID)
	if err != nil {
		return failErr(c, err)
	}

	food, imageURL, err := h.labels.ExtractFood(ctx, snapshot, images, group)
	if err != nil {
		status := errorStatus(err)
		if status == fiber.StatusInternalServerError {
			status = fiber.StatusBadGateway
		}
		return fail(c, status, "failed to read label: "+err.Error())
	}

	saved := c.FormValue("save") == "true"
	if saved {
		if _, err := h.states.AddCustomFood(ctx, userID, *food); err != nil {
			return failErr(c, err)
		}
	}

	return ok(c, fiber.Map{
		"food":     food,
		"imageUrl": imageURL,
		"saved":    saved,
	})
}

// AnalyzeLabel handles POST /v1/me/foods/analyze. Form fields: images_a,
// optional images_b for a comparison, and an optional prompt.
func (h *FoodHandler) AnalyzeLabel(c *fiber.Ctx) error {
	userID, authed := currentUser(c)
	if !authed {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid multipart form: "+err.Error())
	}

	imagesA, err := h.readImages(form, "images_a")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if len(imagesA) == 0 {
		return fail(c, fiber.StatusBadRequest, "missing 'images_a' field in form data")
	}
	imagesB, err := h.readImages(form, "images_b")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	snapshot, err := h.states.Snapshot(ctx, userID)
	if err != nil {
		return failErr(c, err)
	}

	text, err := h.labels.AnalyzeLabel(ctx, snapshot, service.AnalyzeRequest{
		ImagesA: imagesA,
		ImagesB: imagesB,
		Prompt:  c.FormValue("prompt"),
	})
	if err != nil {
		return failInput(c, err)
	}

	return ok(c, fiber.Map{
		"analysis": text,
		"compare":  len(imagesB) > 0,
	})
}

// readImages validates and reads every file of a form field
func (h *FoodHandler) readImages(form *multipart.Form, field string) ([][]byte, error) {
	files := form.File[field]
	if len(files) > maxImagesPerProduct {
		return nil, fmt.Errorf("at most %d images allowed in '%s'", maxImagesPerProduct, field)
	}

	maxBytes := h.maxUploadMB * 1024 * 1024
	images := make([][]byte, 0, len(files))
	for _, file := range files {
		if file.Size > maxBytes {
			return nil, fmt.Errorf("file size exceeds maximum of %dMB", h.maxUploadMB)
		}
		if !isValidImageType(file) {
			return nil, fmt.Errorf("invalid file type, only JPEG, PNG, WEBP and HEIC images are allowed")
		}

		fh, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file")
		}
		data, err := io.ReadAll(fh)
		fh.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file")
		}
		images = append(images, data)
	}
	return images, nil
}

// isValidImageType checks if the uploaded file is a valid image type
func isValidImageType(file *multipart.FileHeader) bool {
	switch file.Header.Get("Content-Type") {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/heic", "image/heif":
		return true
	}

	// Fallback: check by file extension
	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif":
		return true
	}
	return false
}
