package report

import (
	"fmt"

	"medchain-backend/internal/auth"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/batches/:id/report.xlsx (the batch manufacturer, Admin)
func BatchReportHandler(src Source) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		batchID := c.Params("id")

		ctx := c.UserContext()
		b, err := src.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if s.Role != models.RoleAdmin && s.UserID != b.ManufacturerID {
			return ledger.ErrForbidden
		}

		f, err := BatchWorkbook(ctx, src, batchID)
		if err != nil {
			return err
		}
		defer f.Close()

		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=batch-%s.xlsx", batchID))
		return f.Write(c.Response().BodyWriter())
	}
}
