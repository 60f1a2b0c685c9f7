package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"

	"cvbuilder/internal/cv"
	"cvbuilder/internal/logging"
	"cvbuilder/internal/store"
)

// CVStore is the slice of the store the CV handlers need.
type CVStore interface {
	SaveCV(ctx context.Context, c store.CV) error
	CVByID(ctx context.Context, id, ownerID string) (store.CV, error)
	PreviewCV(ctx context.Context, id string) (store.CV, error)
	ListCVs(ctx context.Context, ownerID string) ([]store.CV, error)
	DeleteCV(ctx context.Context, id, ownerID string) error
}

// CVs handles the saved-CV CRUD API. All routes are scoped to the
// session user.
type CVs struct {
	cvs  CVStore
	auth *Auth
}

// NewCVs builds the CV handler.
func NewCVs(cvs CVStore, auth *Auth) *CVs {
	return &CVs{cvs: cvs, auth: auth}
}

type saveCVRequest struct {
	ID      string          `json:"id,omitempty"`
	Country string          `json:"country"`
	Title   string          `json:"title"`
	Data    json.RawMessage `json:"data"`
}

type cvResponse struct {
	ID      string          `json:"id"`
	Country string          `json:"country"`
	Title   string          `json:"title"`
	Data    json.RawMessage `json:"data,omitempty"`
	Updated string          `json:"updatedAt,omitempty"`
}

// HandleSave creates a CV, or updates it when the payload carries an id.
func (h *CVs) HandleSave(c *fiber.Ctx) error {
	userID, err := h.auth.RequireUser(c)
	if err != nil {
		return err
	}

	var req saveCVRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if _, ok := cv.PresetByCountry(req.Country); !ok {
		return fiber.NewError(fiber.StatusBadRequest, "Unknown country")
	}
	if req.Title == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing title")
	}
	if err := cv.Validate(req.Data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	id := req.ID
	created := id == ""
	if created {
		id = xid.New().String()
	}

	rec := store.CV{ID: id, OwnerID: userID, Country: req.Country, Title: req.Title, Data: req.Data}
	if err := h.cvs.SaveCV(c.Context(), rec); err != nil {
		logging.Error("CV save failed", "cv_id", id, "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Could not save CV")
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"id": id})
}

// HandleList returns the session user's CVs without their payloads.
func (h *CVs) HandleList(c *fiber.Ctx) error {
	userID, err := h.auth.RequireUser(c)
	if err != nil {
		return err
	}
	records, err := h.cvs.ListCVs(c.Context(), userID)
	if err != nil {
		logging.Error("CV list failed", "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Could not list CVs")
	}
	out := make([]cvResponse, 0, len(records))
	for _, r := range records {
		out = append(out, cvResponse{ID: r.ID, Country: r.Country, Title: r.Title, Updated: r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")})
	}
	return c.JSON(out)
}

// HandleGet returns one CV with its payload.
func (h *CVs) HandleGet(c *fiber.Ctx) error {
	userID, err := h.auth.RequireUser(c)
	if err != nil {
		return err
	}
	rec, err := h.cvs.CVByID(c.Context(), c.Params("id"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "CV not found")
		}
		logging.Error("CV fetch failed", "cv_id", c.Params("id"), "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Could not load CV")
	}
	return c.JSON(cvResponse{ID: rec.ID, Country: rec.Country, Title: rec.Title, Data: rec.Data})
}

// HandleDelete removes one CV.
func (h *CVs) HandleDelete(c *fiber.Ctx) error {
	userID, err := h.auth.RequireUser(c)
	if err != nil {
		return err
	}
	if err := h.cvs.DeleteCV(c.Context(), c.Params("id"), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "CV not found")
		}
		logging.Error("CV delete failed", "cv_id", c.Params("id"), "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Could not delete CV")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandlePresets returns the full country preset catalog.
func (h *CVs) HandlePresets(c *fiber.Ctx) error {
	return c.JSON(cv.Presets())
}

// HandlePresetByCountry returns one preset.
func (h *CVs) HandlePresetByCountry(c *fiber.Ctx) error {
	p, ok := cv.PresetByCountry(c.Params("country"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Unknown country")
	}
	return c.JSON(p)
}
