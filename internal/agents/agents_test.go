package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainstore "github.com/privoscope/privoscope/internal/domain/store"
)

// memStore is an in-memory ResultStore fake for agent/orchestrator tests,
// covering the PutStageResult idempotency contract (spec §4.5, Property 9)
// without standing up a real database.
type memStore struct {
	mu       sync.Mutex
	stages   map[string][]byte
	reports  map[string][]byte
	puts     int
	scans    []domainstore.ScanRecord
	scanErrs []domainstore.ScanErrorEntry
}

func newMemStore() *memStore {
	return &memStore{stages: map[string][]byte{}, reports: map[string][]byte{}}
}

func stageKey(correlationID, stageID string) string {
	return correlationID + "/" + stageID
}

func (m *memStore) PutStageResult(_ context.Context, correlationID, stageID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stageKey(correlationID, stageID)
	if existing, ok := m.stages[key]; ok && string(existing) == string(payload) {
		return nil
	}
	m.stages[key] = payload
	m.puts++
	return nil
}

func (m *memStore) PutReport(_ context.Context, correlationID string, payload []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locator := fmt.Sprintf("mem://%s?type=%s", correlationID, contentType)
	m.reports[locator] = payload
	return locator, nil
}

func (m *memStore) GetStageResult(_ context.Context, correlationID, stageID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.stages[stageKey(correlationID, stageID)]
	return v, ok, nil
}

func (m *memStore) GetReport(_ context.Context, locator string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.reports[locator]
	if !ok {
		return nil, "", fmt.Errorf("no report at %s", locator)
	}
	return v, "application/json", nil
}

func (m *memStore) SaveScanRecord(_ context.Context, rec domainstore.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.scans {
		if existing.CorrelationID == rec.CorrelationID {
			m.scans[i] = rec
			return nil
		}
	}
	m.scans = append(m.scans, rec)
	return nil
}

func (m *memStore) PaginateScans(_ context.Context, tenantID string, page, pageSize int) (domainstore.PaginatedScans, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var matched []domainstore.ScanRecord
	for _, s := range m.scans {
		if s.TenantID == tenantID {
			matched = append(matched, s)
		}
	}
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return domainstore.PaginatedScans{
		Data:     matched[start:end],
		Page:     page,
		PageSize: pageSize,
		Total:    int64(len(matched)),
	}, nil
}

func (m *memStore) CursorScans(_ context.Context, tenantID string, cursorTime time.Time, cursorID string, pageSize int) ([]domainstore.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pageSize <= 0 {
		pageSize = 20
	}
	var out []domainstore.ScanRecord
	for _, s := range m.scans {
		if s.TenantID != tenantID {
			continue
		}
		if s.TriggeredAt.Before(cursorTime) || (s.TriggeredAt.Equal(cursorTime) && s.CorrelationID < cursorID) {
			out = append(out, s)
		}
		if len(out) >= pageSize {
			break
		}
	}
	return out, nil
}

func (m *memStore) RecordScanError(_ context.Context, entry domainstore.ScanErrorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanErrs = append(m.scanErrs, entry)
	return nil
}

func (m *memStore) ListScanErrors(_ context.Context, tenantID, correlationID string, limit int) ([]domainstore.ScanErrorEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []domainstore.ScanErrorEntry
	for _, e := range m.scanErrs {
		if e.TenantID == tenantID && e.CorrelationID == correlationID {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fixedClock is a deterministic clock.Clock for assertions on ProducedAt.
type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }
