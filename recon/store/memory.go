// Package store provides the in-memory Store implementation used by tests
// and development runs.
package store

import (
	"context"
	"sync"

	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the whole system of record in process memory. Save is a
// no-op; Backup is not supported (BackupIfSupported skips it).
type Memory struct {
	mu        sync.RWMutex
	employees []recon.Employee
	periods   []recon.ServicePeriod
	insurer   []recon.InsurerPaymentRecord
	batches   []recon.PaymentBatch
	summaries []recon.ReconciliationSummary
}

func NewMemory() *Memory {
	return &Memory{}
}

var _ recon.Store = (*Memory)(nil)

func (m *Memory) Employees(_ context.Context) ([]recon.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]recon.Employee(nil), m.employees...), nil
}

func (m *Memory) AppendEmployee(_ context.Context, e recon.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, e)
	return nil
}

func (m *Memory) Periods(_ context.Context) ([]recon.ServicePeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]recon.ServicePeriod(nil), m.periods...), nil
}

func (m *Memory) AppendPeriod(_ context.Context, p recon.ServicePeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods = append(m.periods, p)
	return nil
}

func (m *Memory) UpdatePeriod(_ context.Context, p recon.ServicePeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.periods {
		if m.periods[i].ID == p.ID {
			m.periods[i] = p
			return nil
		}
	}
	return recon.ErrPeriodNotFound
}

func (m *Memory) InsurerRecords(_ context.Context) ([]recon.InsurerPaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]recon.InsurerPaymentRecord(nil), m.insurer...), nil
}

func (m *Memory) AppendInsurerRecord(_ context.Context, r recon.InsurerPaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insurer = append(m.insurer, r)
	return nil
}

func (m *Memory) UpdateInsurerRecord(_ context.Context, r recon.InsurerPaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.insurer {
		if m.insurer[i].Key() == r.Key() {
			m.insurer[i] = r
			return nil
		}
	}
	return recon.ErrRecordNotFound
}

func (m *Memory) Batches(_ context.Context) ([]recon.PaymentBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]recon.PaymentBatch(nil), m.batches...), nil
}

func (m *Memory) UpsertBatch(_ context.Context, b recon.PaymentBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.batches {
		if m.batches[i].Number == b.Number {
			m.batches[i] = b
			return nil
		}
	}
	m.batches = append(m.batches, b)
	return nil
}

func (m *Memory) ReplaceSummaries(_ context.Context, s []recon.ReconciliationSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append([]recon.ReconciliationSummary(nil), s...)
	return nil
}

// Summaries returns the current derived summary table. Not part of the
// Store contract; tests use it to inspect ReplaceSummaries results.
func (m *Memory) Summaries() []recon.ReconciliationSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]recon.ReconciliationSummary(nil), m.summaries...)
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods = nil
	m.insurer = nil
	m.batches = nil
	m.summaries = nil
	return nil
}

func (m *Memory) Save(_ context.Context) error { return nil }
