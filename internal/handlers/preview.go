package handlers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"cvbuilder/internal/cv"
	"cvbuilder/internal/logging"
	"cvbuilder/internal/store"
)

//go:embed templates/preview.html
var templateFS embed.FS

var previewTmpl = template.Must(template.ParseFS(templateFS, "templates/preview.html"))

// Preview serves the server-rendered CV preview page. This is the page
// the PDF exporter navigates to; once rendered it exposes the
// #cv-preview-container marker.
type Preview struct {
	cvs CVStore
}

// NewPreview builds the preview handler.
func NewPreview(cvs CVStore) *Preview {
	return &Preview{cvs: cvs}
}

type previewData struct {
	Title   string
	Country string
	Doc     cv.Document
}

// HandlePreview renders the CV identified by the cv query parameter.
func (h *Preview) HandlePreview(c *fiber.Ctx) error {
	id := c.Query("cv")
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing cv parameter")
	}

	rec, err := h.cvs.PreviewCV(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "CV not found")
		}
		logging.Error("Preview load failed", "cv_id", id, "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Could not load CV")
	}

	doc, err := cv.ParseDocument(rec.Data)
	if err != nil {
		logging.Error("Stored CV failed to parse", "cv_id", id, "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Stored CV is not renderable")
	}

	var buf bytes.Buffer
	if err := previewTmpl.Execute(&buf, previewData{Title: rec.Title, Country: rec.Country, Doc: doc}); err != nil {
		logging.Error("Preview render failed", "cv_id", id, "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Could not render preview")
	}

	c.Set("Content-Type", fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}
