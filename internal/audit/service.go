package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"medchain-backend/internal/logging"
	"medchain-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      string
	UserName    string
	UserRole    models.UserRole
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Recorder persists audit entries. Handlers call it after a successful
// mutation; a failed write is logged by the caller and never undoes the
// mutation.
type Recorder interface {
	WriteLog(ctx context.Context, opts LogOptions) error
}

type DBRecorder struct {
	db *gorm.DB
}

func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

func (r *DBRecorder) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := newEntry(opts, time.Now())
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Write records opts and logs a failure instead of returning it.
func Write(ctx context.Context, r Recorder, opts LogOptions) {
	if r == nil {
		return
	}
	if err := r.WriteLog(ctx, opts); err != nil {
		logging.LogError(logging.GetLogger(), "audit", "Write", opts.Description,
			map[string]string{"entityType": opts.EntityType, "entityId": opts.EntityID}, err)
	}
}

type ListFilter struct {
	EntityType string
	EntityID   string
	UserID     string
	Limit      int
}

func (r *DBRecorder) List(ctx context.Context, f ListFilter) ([]models.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// newEntry renders before/after as JSON. jsonb rejects the empty string, so
// absent values are stored as null.
func newEntry(opts LogOptions, now time.Time) models.AuditLog {
	return models.AuditLog{
		CreatedAt:   now,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		UserRole:    opts.UserRole,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  jsonOrNull(opts.Before),
		AfterData:   jsonOrNull(opts.After),
	}
}

func jsonOrNull(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// MemoryRecorder keeps entries in memory. Used in tests and when the server
// runs without an audit table.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *MemoryRecorder) WriteLog(_ context.Context, opts LogOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := newEntry(opts, time.Now())
	entry.ID = uint(len(r.entries) + 1)
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryRecorder) Entries() []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLog(nil), r.entries...)
}
