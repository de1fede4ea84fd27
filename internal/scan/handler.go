// Package scan records QR scans as provenance events and serves scan
// listings and supply-chain statistics.
package scan

import (
	"sort"

	"medchain-backend/internal/audit"
	"medchain-backend/internal/auth"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type RecordRequest struct {
	BatchID        string          `json:"batchId" validate:"required_without=DistributionID"`
	DistributionID string          `json:"distributionId"`
	Role           models.UserRole `json:"role"`
	ActorID        string          `json:"actorId" validate:"max=64"`
	ActorWallet    string          `json:"actorWallet" validate:"omitempty,eth_addr"`
	Details        any             `json:"details"`
}

// POST /api/scans
// Open to anonymous consumers; a bearer token, when sent, decides the role.
func RecordHandler(svc *ledger.Service, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RecordRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var session *ledger.Actor
		s, ok := auth.SessionFrom(c)
		if ok {
			actor := s.Actor()
			session = &actor
		}

		ctx := c.UserContext()
		res, err := svc.RecordScan(ctx, session, ledger.ScanInput{
			BatchID:        body.BatchID,
			DistributionID: body.DistributionID,
			Role:           body.Role,
			ActorID:        body.ActorID,
			ActorWallet:    body.ActorWallet,
			Details:        body.Details,
		})
		if err != nil {
			return err
		}

		if res.Created {
			audit.Write(ctx, rec, audit.LogOptions{
				UserID:      res.Scan.ActorID,
				UserName:    s.Name,
				UserRole:    res.Scan.Role,
				EntityType:  "batch",
				EntityID:    res.Scan.BatchID,
				Action:      models.AuditActionCreate,
				Description: "first scan recorded: " + res.Entry.Step,
				After:       res.Entry,
			})
		}

		status := fiber.StatusOK
		if res.Created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(fiber.Map{
			"supplyChainComplete": res.SupplyChainComplete,
			"firstScan":           res.Created,
			"entry":               res.Entry,
			"scan":                res.Scan,
		})
	}
}

type EventRequest struct {
	BatchID string `json:"batchId" validate:"required"`
	Details any    `json:"details"`
}

// POST /api/supply-chain
// Records a provenance event under the caller's own role.
func EventHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.RequireSession(c)
		if err != nil {
			return err
		}
		var body EventRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		res, err := svc.RecordEvent(c.UserContext(), body.BatchID, s.Role, s.UserID, body.Details)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// GET /api/scans?limit=200
func ListHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scans, err := svc.ListScans(c.UserContext(), c.QueryInt("limit", ledger.DefaultScanListLimit))
		if err != nil {
			return err
		}
		return c.JSON(scans)
	}
}

type StepCount struct {
	Step  string `json:"step"`
	Count int64  `json:"count"`
}

// GET /api/supply-chain/stats (Admin, Manufacturer)
func StatsHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := svc.StepCounts(c.UserContext())
		if err != nil {
			return err
		}
		out := make([]StepCount, 0, len(counts))
		for step, n := range counts {
			out = append(out, StepCount{Step: step, Count: n})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
		return c.JSON(out)
	}
}
