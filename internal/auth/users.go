package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"

	"gorm.io/gorm"
)

type UserFilter struct {
	Roles    []models.UserRole
	Approved *bool
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ByID(ctx context.Context, id string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByWallet(ctx context.Context, wallet string) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	SetApproved(ctx context.Context, id string, approved bool) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, error)
}

// GormUsers stores users in Postgres. It also serves as the ledger's
// participant directory.
type GormUsers struct {
	db *gorm.DB
}

var (
	_ UserStore        = (*GormUsers)(nil)
	_ ledger.Directory = (*GormUsers)(nil)
)

func NewGormUsers(db *gorm.DB) *GormUsers {
	return &GormUsers{db: db}
}

func (g *GormUsers) Create(ctx context.Context, u *models.User) error {
	return g.db.WithContext(ctx).Create(u).Error
}

func (g *GormUsers) ByID(ctx context.Context, id string) (*models.User, error) {
	return g.first(ctx, "id = ?", id)
}

func (g *GormUsers) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return g.first(ctx, "email = ?", email)
}

func (g *GormUsers) ByWallet(ctx context.Context, wallet string) (*models.User, error) {
	return g.first(ctx, "wallet_address = ?", wallet)
}

func (g *GormUsers) first(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	err := g.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %q %w", arg, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (g *GormUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

func (g *GormUsers) SetApproved(ctx context.Context, id string, approved bool) (*models.User, error) {
	res := g.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_approved", approved)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("user %q %w", id, ledger.ErrNotFound)
	}
	return g.ByID(ctx, id)
}

func (g *GormUsers) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := g.db.WithContext(ctx).Model(&models.User{})
	if len(f.Roles) > 0 {
		q = q.Where("role IN ?", f.Roles)
	}
	if f.Approved != nil {
		q = q.Where("is_approved = ?", *f.Approved)
	}
	var users []models.User
	if err := q.Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (g *GormUsers) Participant(ctx context.Context, id string) (models.UserRole, bool, error) {
	u, err := g.ByID(ctx, id)
	if err != nil {
		return "", false, err
	}
	return u.Role, u.IsApproved, nil
}

func (g *GormUsers) ResolveWallet(ctx context.Context, wallet string) (string, error) {
	u, err := g.ByWallet(ctx, strings.ToLower(wallet))
	if err != nil {
		return "", err
	}
	return u.ID, nil
}
