package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medchain-backend/internal/audit"
	"medchain-backend/internal/config"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/ttacon/libphonenumber"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          string          `json:"phone"`
	Password       string          `json:"password" validate:"required,min=8"`
	Role           models.UserRole `json:"role" validate:"required,oneof=Manufacturer Wholesaler Distributor Retailer"`
	WalletAddress  string          `json:"walletAddress" validate:"omitempty,eth_addr"`
	LicenseNumber  string          `json:"licenseNumber" validate:"max=100"`
	CompanyAddress string          `json:"companyAddress" validate:"max=255"`
}

type RegisterAdminRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func ValidatePhoneNumber(phoneNumber, region string) error {
	p, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// RegisterHandler creates an unapproved supply-chain participant.
func RegisterHandler(cfg *config.Config, users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		body.WalletAddress = strings.TrimSpace(strings.ToLower(body.WalletAddress))

		if body.Phone != "" {
			if err := ValidatePhoneNumber(body.Phone, cfg.PhoneRegion); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid phone number")
			}
		}

		ctx := c.UserContext()
		if taken, err := emailTaken(ctx, users, body.Email); err != nil {
			return err
		} else if taken {
			return fiber.NewError(fiber.StatusBadRequest, "email already registered")
		}

		var wallet *string
		if body.WalletAddress != "" {
			_, err := users.ByWallet(ctx, body.WalletAddress)
			if err == nil {
				return fiber.NewError(fiber.StatusBadRequest, "wallet address already registered")
			}
			if !errors.Is(err, ledger.ErrNotFound) {
				return err
			}
			wallet = &body.WalletAddress
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}

		user := models.User{
			ID:             uuid.NewString(),
			Name:           strings.TrimSpace(body.Name),
			Email:          body.Email,
			Phone:          body.Phone,
			PasswordHash:   string(hash),
			Role:           body.Role,
			WalletAddress:  wallet,
			LicenseNumber:  body.LicenseNumber,
			CompanyAddress: body.CompanyAddress,
		}
		if err := users.Create(ctx, &user); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":         user.ID,
			"email":      user.Email,
			"role":       user.Role,
			"isApproved": user.IsApproved,
		})
	}
}

// RegisterAdminHandler bootstraps the first admin. Refused once one exists.
func RegisterAdminHandler(cfg *config.Config, users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterAdminRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		ctx := c.UserContext()
		count, err := users.CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "an admin already exists")
		}
		if taken, err := emailTaken(ctx, users, body.Email); err != nil {
			return err
		} else if taken {
			return fiber.NewError(fiber.StatusBadRequest, "email already registered")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}

		user := models.User{
			ID:           uuid.NewString(),
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
			IsApproved:   true,
		}
		if err := users.Create(ctx, &user); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

func LoginHandler(cfg *config.Config, users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		user, err := users.ByEmail(c.UserContext(), body.Email)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
			}
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}
		if !user.IsApproved {
			return fiber.NewError(fiber.StatusForbidden, "account is pending approval")
		}

		token, err := GenerateToken(cfg.JWTSecret, user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not issue token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  user,
		})
	}
}

func MeHandler(users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := RequireSession(c)
		if err != nil {
			return err
		}
		user, err := users.ByID(c.UserContext(), s.UserID)
		if err != nil {
			return err
		}
		return c.JSON(user)
	}
}

// GET /api/auth/check-wallet?address=0x...
func CheckWalletHandler(users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := strings.TrimSpace(strings.ToLower(c.Query("address")))
		if address == "" {
			return fiber.NewError(fiber.StatusBadRequest, "address is required")
		}
		_, err := users.ByWallet(c.UserContext(), address)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		return c.JSON(fiber.Map{"exists": err == nil})
	}
}

// ListParticipantsHandler lists approved users of the given roles, e.g. the
// receivers a sender can pick.
func ListParticipantsHandler(users UserStore, roles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		approved := true
		list, err := users.List(c.UserContext(), UserFilter{Roles: roles, Approved: &approved})
		if err != nil {
			return err
		}

		resp := make([]fiber.Map, 0, len(list))
		for _, u := range list {
			resp = append(resp, fiber.Map{
				"id":             u.ID,
				"name":           u.Name,
				"role":           u.Role,
				"walletAddress":  u.WalletAddress,
				"companyAddress": u.CompanyAddress,
			})
		}
		return c.JSON(resp)
	}
}

// GET /api/admin/users?approved=false
func ListUsersHandler(users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f UserFilter
		switch c.Query("approved") {
		case "true":
			v := true
			f.Approved = &v
		case "false":
			v := false
			f.Approved = &v
		}
		if role := c.Query("role"); role != "" {
			f.Roles = []models.UserRole{models.UserRole(role)}
		}
		list, err := users.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// POST /api/admin/users/:id/approve
func ApproveUserHandler(users UserStore, rec audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := RequireSession(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		user, err := users.SetApproved(ctx, c.Params("id"), true)
		if err != nil {
			return err
		}

		audit.Write(ctx, rec, audit.LogOptions{
			UserID:      s.UserID,
			UserName:    s.Name,
			UserRole:    s.Role,
			EntityType:  "user",
			EntityID:    user.ID,
			Action:      models.AuditActionUpdate,
			Description: "user approved",
			After:       fiber.Map{"isApproved": true},
		})
		return c.JSON(user)
	}
}

func emailTaken(ctx context.Context, users UserStore, email string) (bool, error) {
	_, err := users.ByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	return false, err
}
