package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/engine"
	"github.com/privoscope/privoscope/internal/middleware"
	"github.com/privoscope/privoscope/internal/orchestrator"
	"github.com/privoscope/privoscope/internal/scanners"
)

type memStore struct {
	mu       sync.Mutex
	stages   map[string][]byte
	reports  map[string][]byte
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
	m.stages[stageKey(correlationID, stageID)] = append([]byte(nil), payload...)
	return nil
}

func (m *memStore) GetStageResult(_ context.Context, correlationID, stageID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.stages[stageKey(correlationID, stageID)]
	return v, ok, nil
}

func (m *memStore) PutReport(_ context.Context, correlationID string, payload []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locator := fmt.Sprintf("mem://%s?type=%s", correlationID, contentType)
	m.reports[locator] = append([]byte(nil), payload...)
	return locator, nil
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
	return domainstore.PaginatedScans{Data: matched[start:end], Page: page, PageSize: pageSize, Total: int64(len(matched))}, nil
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

var _ domainstore.ResultStore = (*memStore)(nil)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	eng := engine.New(scanners.New())
	orch := orchestrator.New(eng, newMemStore(), nil, false, 0, nil)
	validKeys := map[string]string{"acme": "secret"}
	checkers := map[string]middleware.HealthChecker{}
	return NewRouter(orch, eng, validKeys, checkers, nil)
}

func TestRouter_HealthEndpointsAreUnauthenticated(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_TenantRoutesRequireAPIKey(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/acme/rules", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_GetRules_ListsFullCatalog(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/acme/rules", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.NotEmpty(t, stats)
}

func TestRouter_TriggerScan_RunsPipelineAndReturnsReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("email = 'a@b.com'\n"), 0o644))

	r := newTestRouter(t)
	body, err := json.Marshal(findings.ScanRequest{ProjectPath: dir})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/acme/scans", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Report  findings.Report `json:"report"`
		Locator string          `json:"locator"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Locator)
	assert.Contains(t, out.Report.Metadata.CompletedStages, "S5_REPORT")
}

func TestRouter_TriggerScan_RejectsTraversalProjectPath(t *testing.T) {
	r := newTestRouter(t)
	body, err := json.Marshal(findings.ScanRequest{ProjectPath: "../../etc"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/acme/scans", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_GetReport_NotFoundYields404(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/acme/scans/does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ListScans_ReturnsTriggeredRunForTenant(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("email = 'a@b.com'\n"), 0o644))

	r := newTestRouter(t)
	triggerBody, err := json.Marshal(findings.ScanRequest{ProjectPath: dir})
	require.NoError(t, err)
	triggerReq := httptest.NewRequest(http.MethodPost, "/v1/acme/scans", bytes.NewReader(triggerBody))
	triggerReq.Header.Set("Authorization", "Bearer secret")
	triggerReq.Header.Set("Content-Type", "application/json")
	triggerRec := httptest.NewRecorder()
	r.ServeHTTP(triggerRec, triggerReq)
	require.Equal(t, http.StatusOK, triggerRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/v1/acme/scans?page=1&page_size=10", nil)
	listReq.Header.Set("Authorization", "Bearer secret")
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)

	require.Equal(t, http.StatusOK, listRec.Code)
	var page domainstore.PaginatedScans
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "acme", page.Data[0].TenantID)
	assert.Equal(t, int64(1), page.Total)
}

func TestRouter_ListScanErrors_EmptyWhenRunDidNotDegrade(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("email = 'a@b.com'\n"), 0o644))

	r := newTestRouter(t)
	triggerBody, err := json.Marshal(findings.ScanRequest{ProjectPath: dir})
	require.NoError(t, err)
	triggerReq := httptest.NewRequest(http.MethodPost, "/v1/acme/scans", bytes.NewReader(triggerBody))
	triggerReq.Header.Set("Authorization", "Bearer secret")
	triggerReq.Header.Set("Content-Type", "application/json")
	triggerRec := httptest.NewRecorder()
	r.ServeHTTP(triggerRec, triggerReq)
	require.Equal(t, http.StatusOK, triggerRec.Code)

	var out struct {
		Report  findings.Report `json:"report"`
		Locator string          `json:"locator"`
	}
	require.NoError(t, json.Unmarshal(triggerRec.Body.Bytes(), &out))

	errReq := httptest.NewRequest(http.MethodGet, "/v1/acme/scans/"+out.Report.Metadata.CorrelationID+"/errors", nil)
	errReq.Header.Set("Authorization", "Bearer secret")
	errRec := httptest.NewRecorder()
	r.ServeHTTP(errRec, errReq)

	require.Equal(t, http.StatusOK, errRec.Code)
	var body map[string][]domainstore.ScanErrorEntry
	require.NoError(t, json.Unmarshal(errRec.Body.Bytes(), &body))
	assert.Empty(t, body["data"])
}
