package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"cvbuilder/internal/export"
	"cvbuilder/internal/logging"
)

const exportFilename = "cv.pdf"

// Export handles PDF export requests. The response shape is part of the
// client contract, so errors are written here as flat {"error": msg}
// bodies rather than going through the app error handler.
type Export struct {
	exporter *export.Exporter
}

// NewExport builds the export handler.
func NewExport(e *export.Exporter) *Export {
	return &Export{exporter: e}
}

// HandleExport renders the preview page at the requested URL into a PDF
// and streams it back as a download.
func (h *Export) HandleExport(c *fiber.Ctx) error {
	var req export.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing url"})
	}

	pdf, err := h.exporter.Export(c.Context(), req)
	if err != nil {
		if errors.Is(err, export.ErrMissingURL) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing url"})
		}
		logging.Error("PDF export failed", "url", req.URL, "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", "attachment; filename="+exportFilename)
	return c.Send(pdf)
}
