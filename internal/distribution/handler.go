// Package distribution exposes the distribution lifecycle over HTTP.
package distribution

import (
	"context"

	"medchain-backend/internal/audit"
	"medchain-backend/internal/auth"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateRequest struct {
	BatchID        string          `json:"batchId" validate:"required"`
	ReceiverID     string          `json:"receiverId" validate:"required"`
	ReceiverRole   models.UserRole `json:"receiverRole" validate:"required,oneof=Wholesaler Distributor Retailer"`
	BigBoxCount    int64           `json:"bigBoxCount" validate:"gt=0"`
	ShippingMethod string          `json:"shippingMethod" validate:"max=50"`
	TrackingNumber string          `json:"trackingNumber" validate:"max=100"`
	Temperature    *float64        `json:"temperature"`
	Humidity       *float64        `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	Notes          string          `json:"notes" validate:"max=500"`
}

type ReceiveRequest struct {
	ReceiverID string `json:"receiverId"`
}

type VerifyRequest struct {
	VerificationCode string `json:"verificationCode" validate:"required,len=8"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// POST /api/distributions (Manufacturer, Wholesaler)
func CreateHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		var body CreateRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		ctx := c.UserContext()
		d, err := svc.CreateDistribution(ctx, s.Actor(), ledger.CreateDistributionInput{
			BatchID:        body.BatchID,
			ReceiverID:     body.ReceiverID,
			ReceiverRole:   body.ReceiverRole,
			BigBoxCount:    body.BigBoxCount,
			ShippingMethod: body.ShippingMethod,
			TrackingNumber: body.TrackingNumber,
			Temperature:    body.Temperature,
			Humidity:       body.Humidity,
			Notes:          body.Notes,
		})
		if err != nil {
			return err
		}

		audit.Write(ctx, rec, audit.LogOptions{
			UserID:      s.UserID,
			UserName:    s.Name,
			UserRole:    s.Role,
			EntityType:  "distribution",
			EntityID:    d.DistributionID,
			Action:      models.AuditActionCreate,
			Description: "distribution created",
			After:       redacted(*d),
		})
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":          "Distribution created",
			"distributionId":   d.DistributionID,
			"verificationCode": d.VerificationCode,
			"distribution":     d,
		})
	}
}

// GET /api/distributions/:id
// Parties to the distribution and admins may read it; only the sender sees
// the verification code.
func GetHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		d, err := svc.GetDistribution(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		switch s.UserID {
		case d.SenderID:
			return c.JSON(d)
		case d.ReceiverID, d.ManufacturerID:
			return c.JSON(redacted(*d))
		}
		if s.Role == models.RoleAdmin {
			return c.JSON(redacted(*d))
		}
		return ledger.ErrForbidden
	}
}

// GET /api/distributions/incoming/:receiverId
func IncomingHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		receiverID, err := requireSelf(c, svc, c.Params("receiverId"))
		if err != nil {
			return err
		}
		list, err := svc.ListDistributions(c.UserContext(), ledger.DistributionFilter{ReceiverID: receiverID})
		if err != nil {
			return err
		}
		for i := range list {
			list[i] = redacted(list[i])
		}
		return c.JSON(list)
	}
}

// GET /api/distributions/sent/:senderId
func SentHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		senderID, err := requireSelf(c, svc, c.Params("senderId"))
		if err != nil {
			return err
		}
		list, err := svc.ListDistributions(c.UserContext(), ledger.DistributionFilter{SenderID: senderID})
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// GET /api/distributions/by-manufacturer/:manufacturerId?batchId=&status=
func ByManufacturerHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		manufacturerID, err := requireSelf(c, svc, c.Params("manufacturerId"))
		if err != nil {
			return err
		}
		list, err := svc.ListDistributions(c.UserContext(), ledger.DistributionFilter{
			ManufacturerID: manufacturerID,
			BatchID:        c.Query("batchId"),
			Status:         models.DistributionStatus(c.Query("status")),
		})
		if err != nil {
			return err
		}
		for i := range list {
			if list[i].SenderID != manufacturerID {
				list[i] = redacted(list[i])
			}
		}
		return c.JSON(list)
	}
}

// GET /api/distributions/available/:holderId/:batchId
func AvailableHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		holderID, err := requireSelf(c, svc, c.Params("holderId"))
		if err != nil {
			return err
		}
		n, err := svc.AvailableForHolder(c.UserContext(), c.Params("batchId"), holderID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"available": n})
	}
}

// PATCH /api/distributions/:id/receive
// An empty receiverId means the caller. A wallet address is resolved to its user.
func ReceiveHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		var body ReceiveRequest
		if len(c.Body()) > 0 {
			if err := httpx.ParseBody(c, &body); err != nil {
				return err
			}
		}
		if body.ReceiverID == "" {
			body.ReceiverID = s.UserID
		}

		ctx := c.UserContext()
		receiverID, err := svc.ResolveParticipant(ctx, body.ReceiverID)
		if err != nil {
			return err
		}
		d, err := svc.MarkReceived(ctx, s.Actor(), c.Params("id"), receiverID)
		if err != nil {
			return err
		}
		writeStatusAudit(c, rec, s, d, models.AuditActionUpdate, "distribution received")
		return c.JSON(fiber.Map{
			"message":      "Distribution marked as received",
			"status":       d.Status,
			"distribution": redacted(*d),
		})
	}
}

// PATCH /api/distributions/:id/ship
func ShipHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return senderTransition(svc.Ship, rec, "distribution shipped")
}

// PATCH /api/distributions/:id/in-transit
func InTransitHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return senderTransition(svc.MarkInTransit, rec, "distribution in transit")
}

func senderTransition(fn func(ctx context.Context, actor ledger.Actor, id string) (*models.Distribution, error), rec audit.Recorder, desc string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		d, err := fn(c.UserContext(), s.Actor(), c.Params("id"))
		if err != nil {
			return err
		}
		writeStatusAudit(c, rec, s, d, models.AuditActionUpdate, desc)
		return c.JSON(d)
	}
}

// POST /api/distributions/:id/verify
func VerifyHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		var body VerifyRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		d, err := svc.Verify(c.UserContext(), s.Actor(), c.Params("id"), body.VerificationCode)
		if err != nil {
			return err
		}
		writeStatusAudit(c, rec, s, d, models.AuditActionVerify, "distribution verified")
		return c.JSON(redacted(*d))
	}
}

// POST /api/distributions/:id/reject
func RejectHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		var body RejectRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		d, err := svc.Reject(c.UserContext(), s.Actor(), c.Params("id"), body.Reason)
		if err != nil {
			return err
		}
		writeStatusAudit(c, rec, s, d, models.AuditActionReject, "distribution rejected: "+d.RejectionReason)
		if s.UserID == d.SenderID {
			return c.JSON(d)
		}
		return c.JSON(redacted(*d))
	}
}

// requireSelf resolves a path participant, which may be a wallet address,
// and checks that it is the caller unless the caller is an admin.
func requireSelf(c *fiber.Ctx, svc *ledger.Service, id string) (string, error) {
	s, err := auth.RequireSession(c)
	if err != nil {
		return "", err
	}
	userID, err := svc.ResolveParticipant(c.UserContext(), id)
	if err != nil {
		return "", err
	}
	if s.UserID != userID && s.Role != models.RoleAdmin {
		return "", ledger.ErrForbidden
	}
	return userID, nil
}

func redacted(d models.Distribution) models.Distribution {
	d.VerificationCode = ""
	return d
}

func writeStatusAudit(c *fiber.Ctx, rec audit.Recorder, s auth.Session, d *models.Distribution, action models.AuditAction, desc string) {
	audit.Write(c.UserContext(), rec, audit.LogOptions{
		UserID:      s.UserID,
		UserName:    s.Name,
		UserRole:    s.Role,
		EntityType:  "distribution",
		EntityID:    d.DistributionID,
		Action:      action,
		Description: desc,
		After:       fiber.Map{"status": d.Status},
	})
}
