// Package batch exposes batch creation, lookup, quantities, sales and recall
// over HTTP.
package batch

import (
	"strings"
	"time"

	"medchain-backend/internal/audit"
	"medchain-backend/internal/auth"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"
	"medchain-backend/internal/packaging"

	"github.com/gofiber/fiber/v2"
)

// CreateBatchRequest accepts the canonical hierarchy fields and the legacy
// names older clients still send.
type CreateBatchRequest struct {
	MedicineName      string `json:"medicineName" validate:"required,max=150"`
	Description       string `json:"description" validate:"max=500"`
	ExpiryDate        string `json:"expiryDate" validate:"required"`
	TotalCartons      int    `json:"totalCartons"`
	BoxesPerCarton    int    `json:"boxesPerCarton"`
	SmallBoxesPerBox  int    `json:"smallBoxesPerBox"`
	StripsPerSmallBox int    `json:"stripsPerSmallBox"`
	TabletsPerStrip   int    `json:"tabletsPerStrip"`

	BigCartonCount    int `json:"bigCartonCount"`
	BigBoxPerCarton   int `json:"bigBoxPerCarton"`
	SmallBoxPerBigBox int `json:"smallBoxPerBigBox"`
	BigBoxCount       int `json:"bigBoxCount"`
}

// Input folds legacy names onto the canonical hierarchy. A bare legacy
// bigBoxCount is a batch of single-box cartons.
func (r CreateBatchRequest) Input() (ledger.CreateBatchInput, error) {
	expiry, err := parseDate(r.ExpiryDate)
	if err != nil {
		return ledger.CreateBatchInput{}, fiber.NewError(fiber.StatusBadRequest, "expiryDate must be YYYY-MM-DD or RFC3339")
	}

	cartons := firstPositive(r.TotalCartons, r.BigCartonCount)
	perCarton := firstPositive(r.BoxesPerCarton, r.BigBoxPerCarton)
	if cartons == 0 && perCarton == 0 && r.BigBoxCount > 0 {
		cartons, perCarton = r.BigBoxCount, 1
	}

	return ledger.CreateBatchInput{
		MedicineName: r.MedicineName,
		Description:  r.Description,
		ExpiryDate:   expiry,
		TotalCartons: cartons,
		Hierarchy: packaging.Hierarchy{
			BoxesPerCarton:    perCarton,
			SmallBoxesPerBox:  firstPositive(r.SmallBoxesPerBox, r.SmallBoxPerBigBox),
			StripsPerSmallBox: r.StripsPerSmallBox,
			TabletsPerStrip:   r.TabletsPerStrip,
		},
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

type VerifyRequest struct {
	BatchID string `json:"batchId" validate:"required"`
}

type SaleRequest struct {
	Units int64 `json:"units" validate:"gt=0"`
}

// POST /api/batches (Manufacturer)
func CreateBatchHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}

		var body CreateBatchRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		in, err := body.Input()
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		b, err := svc.CreateBatch(ctx, s.Actor(), in)
		if err != nil {
			return err
		}

		audit.Write(ctx, rec, audit.LogOptions{
			UserID:      s.UserID,
			UserName:    s.Name,
			UserRole:    s.Role,
			EntityType:  "batch",
			EntityID:    b.BatchID,
			Action:      models.AuditActionCreate,
			Description: "batch created",
			After:       b,
		})
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// GET /api/batches/:id
func GetBatchHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := svc.GetBatch(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(b)
	}
}

// GET /api/batches?manufacturerId=...&limit=...
// Manufacturers without a filter see their own batches.
func ListBatchesHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ledger.BatchFilter{
			ManufacturerID: c.Query("manufacturerId"),
			Limit:          c.QueryInt("limit", 0),
		}
		if s, ok := auth.SessionFrom(c); ok && f.ManufacturerID == "" && s.Role == models.RoleManufacturer {
			f.ManufacturerID = s.UserID
		}
		list, err := svc.ListBatches(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// GET /api/batches/count?manufacturerId=...
func CountBatchesHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := svc.CountBatches(c.UserContext(), ledger.BatchFilter{ManufacturerID: c.Query("manufacturerId")})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"count": n})
	}
}

// POST /api/batches/verify, public. Answers whether a scanned batch id exists.
func VerifyBatchHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body VerifyRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		b, err := svc.GetBatch(c.UserContext(), strings.TrimSpace(body.BatchID))
		if err != nil {
			if httpx.StatusOf(err) == fiber.StatusNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"status":  "not_found",
					"message": "Batch not found",
				})
			}
			return err
		}

		return c.JSON(fiber.Map{
			"status":  "found",
			"message": "Batch found",
			"batch": fiber.Map{
				"batchId":             b.BatchID,
				"medicineName":        b.MedicineName,
				"manufacturerName":    b.ManufacturerName,
				"expiryDate":          b.ExpiryDate,
				"totalCartons":        b.TotalCartons,
				"boxesPerCarton":      b.BoxesPerCarton,
				"smallBoxesPerBox":    b.SmallBoxesPerBox,
				"stripsPerSmallBox":   b.StripsPerSmallBox,
				"tabletsPerStrip":     b.TabletsPerStrip,
				"status":              b.Status,
				"supplyChainComplete": b.SupplyChainComplete,
				"createdAt":           b.CreatedAt,
				"blockchainHash":      b.BlockchainHash,
			},
		})
	}
}

// GET /api/batches/:id/quantities
func QuantitiesHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := svc.Quantities(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(q)
	}
}

// GET /api/batches/:id/history
// GET /api/supply-chain/batch/:id (public, for consumers checking a pack)
func HistoryHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := svc.GetBatch(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"batchId":             b.BatchID,
			"supplyChainComplete": b.SupplyChainComplete,
			"history":             b.SupplyChainHistory,
		})
	}
}

// POST /api/batches/:id/sales (Retailer)
func RecordSaleHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		var body SaleRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		ctx := c.UserContext()
		b, err := svc.RecordSale(ctx, s.Actor(), c.Params("id"), body.Units)
		if err != nil {
			return err
		}

		audit.Write(ctx, rec, audit.LogOptions{
			UserID:      s.UserID,
			UserName:    s.Name,
			UserRole:    s.Role,
			EntityType:  "batch",
			EntityID:    b.BatchID,
			Action:      models.AuditActionUpdate,
			Description: "sale recorded",
			After:       fiber.Map{"units": body.Units, "remainingMedicineCount": b.RemainingMedicineCount},
		})
		return c.JSON(fiber.Map{
			"batchId":                b.BatchID,
			"remainingMedicineCount": b.RemainingMedicineCount,
			"status":                 b.Status,
		})
	}
}

// POST /api/batches/:id/recall (Manufacturer)
func RecallHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		b, err := svc.Recall(ctx, s.Actor(), c.Params("id"))
		if err != nil {
			return err
		}

		audit.Write(ctx, rec, audit.LogOptions{
			UserID:      s.UserID,
			UserName:    s.Name,
			UserRole:    s.Role,
			EntityType:  "batch",
			EntityID:    b.BatchID,
			Action:      models.AuditActionUpdate,
			Description: "batch recalled",
			After:       fiber.Map{"status": b.Status},
		})
		return c.JSON(b)
	}
}
