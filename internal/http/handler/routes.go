package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gcgdocs/internal/model"
	"gcgdocs/internal/repository"
	"gcgdocs/internal/service"
)

// ReconcileRunner is the slice of the reconciler the HTTP layer needs.
type ReconcileRunner interface {
	Run(ctx context.Context, year int) (*model.RepairReport, error)
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic: parse, delegate,
// translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, assessSvc service.AssessmentService, reconciler ReconcileRunner) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Health endpoint: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Upload document endpoint (multipart/form-data: file, year, unit, item_id)
	app.Post("/documents", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		year, err := strconv.Atoi(c.FormValue("year"))
		if err != nil || year <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "valid year is required")
		}
		itemID, err := strconv.Atoi(c.FormValue("item_id"))
		if err != nil || itemID <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ITEM_ID", "valid item_id is required")
		}
		unit := c.FormValue("unit")
		if unit == "" {
			return writeError(c, fiber.StatusBadRequest, "UNIT_REQUIRED", "unit is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		res, err := docSvc.Upload(c.UserContext(), service.UploadInput{
			Year:        year,
			Unit:        unit,
			ItemID:      itemID,
			FileName:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Content:     f,
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	// List documents by year with optional unit/item_id/status filters
	app.Get("/documents", func(c *fiber.Ctx) error {
		year, err := strconv.Atoi(c.Query("year", "0"))
		if err != nil || year <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "valid year is required")
		}
		itemID := 0
		if v := c.Query("item_id"); v != "" {
			if itemID, err = strconv.Atoi(v); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ITEM_ID", "invalid item_id")
			}
		}

		items, err := docSvc.List(c.UserContext(), repository.ListFilter{
			Year:   year,
			Unit:   c.Query("unit"),
			ItemID: itemID,
			Status: model.DocumentStatus(c.Query("status")),
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"items": items, "total": len(items)})
	})

	// File-existence probe for a (year, unit, item_id) partition
	app.Get("/documents/exists", func(c *fiber.Ctx) error {
		year, err := strconv.Atoi(c.Query("year", "0"))
		if err != nil || year <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "valid year is required")
		}
		itemID, err := strconv.Atoi(c.Query("item_id", "0"))
		if err != nil || itemID <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ITEM_ID", "valid item_id is required")
		}

		has, err := docSvc.HasFiles(c.UserContext(), year, c.Query("unit"), itemID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"exists": has})
	})

	// Get document metadata by ID
	app.Get("/documents/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rec, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(rec)
	})

	// Stream document bytes
	app.Get("/documents/:id/download", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rc, rec, err := docSvc.Download(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		c.Set(fiber.HeaderContentType, rec.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rec.FileName))
		// SendStream takes an int, which is 32 bits on some platforms.
		// Fall back to chunked transfer when the size does not fit.
		if size := int(rec.FileSize); rec.FileSize > 0 && int64(size) == rec.FileSize {
			return c.SendStream(rc, size)
		}
		return c.SendStream(rc)
	})

	// Delete document by ID
	app.Delete("/documents/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		res, err := docSvc.Delete(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		if len(res.Warnings) > 0 {
			return c.JSON(res)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Move a document to a new (year, unit) organizational key
	app.Post("/documents/:id/reassign", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var body struct {
			Year int    `json:"year"`
			Unit string `json:"unit"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		res, err := docSvc.Reassign(c.UserContext(), id, body.Year, body.Unit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	})

	// Run a reconcile scan; year 0 or absent means every known year
	app.Post("/reconcile", func(c *fiber.Ctx) error {
		var body struct {
			Year int `json:"year"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}
		report, err := reconciler.Run(c.UserContext(), body.Year)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(report)
	})

	// Replace a yearly assessment table
	app.Put("/assessments/:year", func(c *fiber.Ctx) error {
		year, err := assessmentYear(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "invalid year")
		}
		var body struct {
			Rows []model.AssessmentRow `json:"rows"`
		}
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		res, err := assessSvc.Save(c.UserContext(), year, body.Rows)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	})

	// Load a yearly assessment table in canonical order
	app.Get("/assessments/:year", func(c *fiber.Ctx) error {
		year, err := assessmentYear(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "invalid year")
		}
		rows, err := assessSvc.Load(c.UserContext(), year)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"year": year, "rows": rows})
	})

	// Drop a yearly assessment table
	app.Delete("/assessments/:year", func(c *fiber.Ctx) error {
		year, err := assessmentYear(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_YEAR", "invalid year")
		}
		removed, err := assessSvc.DeleteYear(c.UserContext(), year)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"year": year, "rows_removed": removed})
	})
}

func assessmentYear(c *fiber.Ctx) (int, error) {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year <= 0 {
		return 0, fmt.Errorf("invalid year %q", c.Params("year"))
	}
	return year, nil
}

// serviceError translates service-layer errors into the standardized
// error envelope without leaking internals.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrConflict):
		return writeError(c, fiber.StatusConflict, "CONFLICT", "destination already holds files")
	case errors.Is(err, service.ErrIDRequired),
		errors.Is(err, service.ErrYearRequired),
		errors.Is(err, service.ErrUnitRequired),
		errors.Is(err, service.ErrItemRequired),
		errors.Is(err, service.ErrFileRequired),
		errors.Is(err, service.ErrReaderNil),
		errors.Is(err, service.ErrInvalidRow):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
