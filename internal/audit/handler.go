package audit

import (
	"encoding/json"

	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const maxListLimit = 500

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      string             `json:"user_id"`
	UserName    string             `json:"user_name"`
	UserRole    models.UserRole    `json:"user_role"`
	EntityType  string             `json:"entity_type"`
	EntityID    string             `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  json.RawMessage    `json:"before_data,omitempty"`
	AfterData   json.RawMessage    `json:"after_data,omitempty"`
}

// GET /api/admin/audit-logs?entity_type=distribution&entity_id=...&user_id=...&limit=100
func ListAuditLogsHandler(r *DBRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > maxListLimit {
			limit = maxListLimit
		}

		logs, err := r.List(c.UserContext(), ListFilter{
			EntityType: c.Query("entity_type"),
			EntityID:   c.Query("entity_id"),
			UserID:     c.Query("user_id"),
			Limit:      limit,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, toResponse(log))
		}
		return c.JSON(resp)
	}
}

func toResponse(log models.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:          log.ID,
		CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
		UserID:      log.UserID,
		UserName:    log.UserName,
		UserRole:    log.UserRole,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      log.Action,
		Description: log.Description,
		BeforeData:  rawOrNil(log.BeforeData),
		AfterData:   rawOrNil(log.AfterData),
	}
}

func rawOrNil(s string) json.RawMessage {
	if s == "" || s == "null" {
		return nil
	}
	return json.RawMessage(s)
}
