// Package ledgertest provides an in-memory ledger.Store for tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"

	"medchain-backend/internal/ledger"
	"medchain-backend/internal/models"
)

// MemStore keeps ledger state in maps. UpdateBatch holds a store-wide mutex
// and restores a snapshot when fn fails, mirroring a rolled back transaction.
type MemStore struct {
	mu            sync.Mutex
	batches       map[string]models.Batch
	history       []models.HistoryEntry
	distributions map[string]models.Distribution
	scans         []models.Scan
	sales         []models.Sale
	nextID        uint

	// FailWrite, when set, is consulted before every write inside UpdateBatch.
	FailWrite func(op string) error
}

var _ ledger.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		batches:       map[string]models.Batch{},
		distributions: map[string]models.Distribution{},
	}
}

func (m *MemStore) CreateBatch(_ context.Context, batch *models.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.batches[batch.BatchID]; ok {
		return ledger.ErrInvalidPayload
	}
	for i := range batch.SupplyChainHistory {
		m.nextID++
		batch.SupplyChainHistory[i].ID = m.nextID
		batch.SupplyChainHistory[i].BatchID = batch.BatchID
		m.history = append(m.history, batch.SupplyChainHistory[i])
	}
	stored := *batch
	stored.SupplyChainHistory = nil
	m.batches[batch.BatchID] = stored
	return nil
}

func (m *MemStore) GetBatch(_ context.Context, batchID string) (*models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[batchID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	b.SupplyChainHistory = m.historyOf(batchID)
	return &b, nil
}

func (m *MemStore) ListBatches(_ context.Context, f ledger.BatchFilter) ([]models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Batch, 0)
	for _, b := range m.batches {
		if f.ManufacturerID != "" && b.ManufacturerID != f.ManufacturerID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemStore) CountBatches(ctx context.Context, f ledger.BatchFilter) (int64, error) {
	f.Limit = 0
	list, err := m.ListBatches(ctx, f)
	return int64(len(list)), err
}

func (m *MemStore) GetDistribution(_ context.Context, distributionID string) (*models.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getDistribution(distributionID)
}

func (m *MemStore) ListDistributions(_ context.Context, f ledger.DistributionFilter) ([]models.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Distribution, 0)
	for _, d := range m.distributions {
		if f.BatchID != "" && d.BatchID != f.BatchID {
			continue
		}
		if f.SenderID != "" && d.SenderID != f.SenderID {
			continue
		}
		if f.ReceiverID != "" && d.ReceiverID != f.ReceiverID {
			continue
		}
		if f.ManufacturerID != "" && d.ManufacturerID != f.ManufacturerID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DistributionID < out[j].DistributionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemStore) SumBoxes(_ context.Context, batchID, holderID string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	received, sent := m.sumBoxes(batchID, holderID)
	return received, sent, nil
}

func (m *MemStore) ListScans(_ context.Context, limit int) ([]models.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Scan, 0, len(m.scans))
	for i := len(m.scans) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.scans[i])
	}
	return out, nil
}

func (m *MemStore) StepCounts(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]int64{}
	for _, e := range m.history {
		out[e.Step]++
	}
	return out, nil
}

func (m *MemStore) UpdateBatch(_ context.Context, batchID string, fn func(tx ledger.Tx, batch *models.Batch) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[batchID]
	if !ok {
		return ledger.ErrNotFound
	}

	snap := m.snapshot()
	if err := fn(&memTx{m: m}, &b); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Distributions returns the number of stored distributions.
func (m *MemStore) Distributions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.distributions)
}

func (m *MemStore) historyOf(batchID string) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0)
	for _, e := range m.history {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemStore) getDistribution(id string) (*models.Distribution, error) {
	d, ok := m.distributions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &d, nil
}

func (m *MemStore) sumBoxes(batchID, holderID string) (received, sent int64) {
	for _, d := range m.distributions {
		if d.BatchID != batchID || d.Status == models.DistributionRejected {
			continue
		}
		if d.ReceiverID == holderID {
			received += d.BigBoxCount
		}
		if d.SenderID == holderID {
			sent += d.BigBoxCount
		}
	}
	return received, sent
}

type snapshot struct {
	batches       map[string]models.Batch
	history       []models.HistoryEntry
	distributions map[string]models.Distribution
	scans         []models.Scan
	sales         []models.Sale
	nextID        uint
}

func (m *MemStore) snapshot() snapshot {
	s := snapshot{
		batches:       make(map[string]models.Batch, len(m.batches)),
		history:       append([]models.HistoryEntry(nil), m.history...),
		distributions: make(map[string]models.Distribution, len(m.distributions)),
		scans:         append([]models.Scan(nil), m.scans...),
		sales:         append([]models.Sale(nil), m.sales...),
		nextID:        m.nextID,
	}
	for k, v := range m.batches {
		s.batches[k] = v
	}
	for k, v := range m.distributions {
		s.distributions[k] = v
	}
	return s
}

func (m *MemStore) restore(s snapshot) {
	m.batches = s.batches
	m.history = s.history
	m.distributions = s.distributions
	m.scans = s.scans
	m.sales = s.sales
	m.nextID = s.nextID
}

type memTx struct {
	m *MemStore
}

func (t *memTx) fail(op string) error {
	if t.m.FailWrite != nil {
		return t.m.FailWrite(op)
	}
	return nil
}

func (t *memTx) SumBoxes(batchID, holderID string) (int64, int64, error) {
	received, sent := t.m.sumBoxes(batchID, holderID)
	return received, sent, nil
}

func (t *memTx) GetDistribution(id string) (*models.Distribution, error) {
	return t.m.getDistribution(id)
}

func (t *memTx) CreateDistribution(d *models.Distribution) error {
	if err := t.fail("CreateDistribution"); err != nil {
		return err
	}
	if _, ok := t.m.distributions[d.DistributionID]; ok {
		return ledger.ErrInvalidPayload
	}
	t.m.distributions[d.DistributionID] = *d
	return nil
}

func (t *memTx) SaveDistribution(d *models.Distribution) error {
	if err := t.fail("SaveDistribution"); err != nil {
		return err
	}
	t.m.distributions[d.DistributionID] = *d
	return nil
}

func (t *memTx) AppendHistory(entry *models.HistoryEntry) (bool, error) {
	if err := t.fail("AppendHistory"); err != nil {
		return false, err
	}
	for _, e := range t.m.history {
		if e.BatchID == entry.BatchID && e.Role == entry.Role && e.DetailsKey == entry.DetailsKey {
			return false, nil
		}
	}
	t.m.nextID++
	entry.ID = t.m.nextID
	t.m.history = append(t.m.history, *entry)
	return true, nil
}

func (t *memTx) ListHistory(batchID string) ([]models.HistoryEntry, error) {
	return t.m.historyOf(batchID), nil
}

func (t *memTx) CreateScan(scan *models.Scan) error {
	if err := t.fail("CreateScan"); err != nil {
		return err
	}
	t.m.scans = append(t.m.scans, *scan)
	return nil
}

func (t *memTx) SumSales(batchID, holderID string) (int64, error) {
	var units int64
	for _, s := range t.m.sales {
		if s.BatchID == batchID && s.HolderID == holderID {
			units += s.Units
		}
	}
	return units, nil
}

func (t *memTx) CreateSale(sale *models.Sale) error {
	if err := t.fail("CreateSale"); err != nil {
		return err
	}
	t.m.nextID++
	sale.ID = t.m.nextID
	t.m.sales = append(t.m.sales, *sale)
	return nil
}

func (t *memTx) SaveBatch(batch *models.Batch) error {
	if err := t.fail("SaveBatch"); err != nil {
		return err
	}
	stored := *batch
	stored.SupplyChainHistory = nil
	t.m.batches[batch.BatchID] = stored
	return nil
}
