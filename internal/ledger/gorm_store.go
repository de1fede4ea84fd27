package ledger

import (
	"context"
	"errors"

	"medchain-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the ledger in Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateBatch(ctx context.Context, batch *models.Batch) error {
	return s.db.WithContext(ctx).Create(batch).Error
}

func (s *GormStore) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	var b models.Batch
	err := s.db.WithContext(ctx).
		Preload("SupplyChainHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&b, "batch_id = ?", batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("batch", batchID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) ListBatches(ctx context.Context, f BatchFilter) ([]models.Batch, error) {
	var batches []models.Batch
	q := s.db.WithContext(ctx).Model(&models.Batch{})
	if f.ManufacturerID != "" {
		q = q.Where("manufacturer_id = ?", f.ManufacturerID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Order("created_at DESC").Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *GormStore) CountBatches(ctx context.Context, f BatchFilter) (int64, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Batch{})
	if f.ManufacturerID != "" {
		q = q.Where("manufacturer_id = ?", f.ManufacturerID)
	}
	err := q.Count(&count).Error
	return count, err
}

func (s *GormStore) GetDistribution(ctx context.Context, distributionID string) (*models.Distribution, error) {
	return getDistribution(s.db.WithContext(ctx), distributionID)
}

func (s *GormStore) ListDistributions(ctx context.Context, f DistributionFilter) ([]models.Distribution, error) {
	var out []models.Distribution
	q := s.db.WithContext(ctx).Model(&models.Distribution{})
	if f.BatchID != "" {
		q = q.Where("batch_id = ?", f.BatchID)
	}
	if f.SenderID != "" {
		q = q.Where("sender_id = ?", f.SenderID)
	}
	if f.ReceiverID != "" {
		q = q.Where("receiver_id = ?", f.ReceiverID)
	}
	if f.ManufacturerID != "" {
		q = q.Where("manufacturer_id = ?", f.ManufacturerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) SumBoxes(ctx context.Context, batchID, holderID string) (int64, int64, error) {
	return sumBoxes(s.db.WithContext(ctx), batchID, holderID)
}

func (s *GormStore) ListScans(ctx context.Context, limit int) ([]models.Scan, error) {
	var scans []models.Scan
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&scans).Error
	return scans, err
}

func (s *GormStore) StepCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Step  string
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.HistoryEntry{}).
		Select("step, COUNT(*) AS count").
		Group("step").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Step] = r.Count
	}
	return out, nil
}

func (s *GormStore) UpdateBatch(ctx context.Context, batchID string, fn func(tx Tx, batch *models.Batch) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var b models.Batch
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, "batch_id = ?", batchID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("batch", batchID)
		}
		if err != nil {
			return err
		}
		return fn(&gormTx{db: db}, &b)
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) SumBoxes(batchID, holderID string) (int64, int64, error) {
	return sumBoxes(t.db, batchID, holderID)
}

func (t *gormTx) GetDistribution(distributionID string) (*models.Distribution, error) {
	return getDistribution(t.db, distributionID)
}

func (t *gormTx) CreateDistribution(d *models.Distribution) error {
	return t.db.Create(d).Error
}

func (t *gormTx) SaveDistribution(d *models.Distribution) error {
	return t.db.Save(d).Error
}

func (t *gormTx) AppendHistory(entry *models.HistoryEntry) (bool, error) {
	res := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}, {Name: "role"}, {Name: "details_key"}},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) ListHistory(batchID string) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := t.db.Where("batch_id = ?", batchID).Order("id ASC").Find(&entries).Error
	return entries, err
}

func (t *gormTx) CreateScan(scan *models.Scan) error {
	return t.db.Create(scan).Error
}

func (t *gormTx) SumSales(batchID, holderID string) (int64, error) {
	var units int64
	err := t.db.Model(&models.Sale{}).
		Select("COALESCE(SUM(units), 0)").
		Where("batch_id = ? AND holder_id = ?", batchID, holderID).
		Scan(&units).Error
	return units, err
}

func (t *gormTx) CreateSale(sale *models.Sale) error {
	return t.db.Create(sale).Error
}

func (t *gormTx) SaveBatch(batch *models.Batch) error {
	return t.db.Omit(clause.Associations).Save(batch).Error
}

func getDistribution(db *gorm.DB, distributionID string) (*models.Distribution, error) {
	var d models.Distribution
	err := db.First(&d, "distribution_id = ?", distributionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("distribution", distributionID)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func sumBoxes(db *gorm.DB, batchID, holderID string) (received, sent int64, err error) {
	err = db.Model(&models.Distribution{}).
		Select("COALESCE(SUM(big_box_count), 0)").
		Where("batch_id = ? AND receiver_id = ? AND status <> ?", batchID, holderID, models.DistributionRejected).
		Scan(&received).Error
	if err != nil {
		return 0, 0, err
	}
	err = db.Model(&models.Distribution{}).
		Select("COALESCE(SUM(big_box_count), 0)").
		Where("batch_id = ? AND sender_id = ? AND status <> ?", batchID, holderID, models.DistributionRejected).
		Scan(&sent).Error
	if err != nil {
		return 0, 0, err
	}
	return received, sent, nil
}
