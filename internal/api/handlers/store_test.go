package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/leozw/mantenapp/internal/api/middleware"
	"github.com/leozw/mantenapp/internal/core"
	"github.com/leozw/mantenapp/internal/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testUserID = "11111111-1111-1111-1111-111111111111"

// memStore is an in-memory stand-in for *db.Repository.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*core.User
	clients  map[string]*core.Client
	alerts   map[string]*core.Alert
	siteData []*core.SiteData
	audits   []*core.AuditLog
	syncs    []syncCall

	siteDataErr error
	takenURLs   map[string]bool
	dashboard   db.DashboardCounts
	health      db.HealthCounts
}

type syncCall struct {
	ClientID string
	SiteName string
	SiteURL  string
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*core.User{},
		clients:   map[string]*core.Client{},
		alerts:    map[string]*core.Alert{},
		takenURLs: map[string]bool{},
	}
}

func (m *memStore) addClient(id, apiKey string, status core.ClientStatus) *core.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &core.Client{
		ID:       id,
		UserID:   testUserID,
		SiteName: "Site " + id,
		SiteURL:  "https://" + id + ".example.com",
		APIKey:   apiKey,
		Status:   status,
	}
	m.clients[id] = c
	return c
}

func (m *memStore) addAlert(a *core.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audits))
	for _, a := range m.audits {
		out = append(out, a.Resource+":"+a.Action)
	}
	return out
}

func (m *memStore) CreateUser(_ context.Context, u *core.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return db.ErrConflict
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, db.ErrNotFound
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) UpdateUserPassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memStore) CreateAuditLog(_ context.Context, l *core.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, l)
	return nil
}

func (m *memStore) ListAuditLogs(_ context.Context, userID string, limit int) ([]*core.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*core.AuditLog{}
	for i := len(m.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audits[i].UserID == userID {
			out = append(out, m.audits[i])
		}
	}
	return out, nil
}

func (m *memStore) GetClientByAPIKey(_ context.Context, apiKey string) (*core.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.APIKey == apiKey {
			return c, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) CreateSiteData(_ context.Context, d *core.SiteData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.siteDataErr != nil {
		return m.siteDataErr
	}
	m.siteData = append(m.siteData, d)
	return nil
}

func (m *memStore) RecordSync(_ context.Context, id, siteName, siteURL string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs = append(m.syncs, syncCall{ClientID: id, SiteName: siteName, SiteURL: siteURL})
	if siteURL != "" && m.takenURLs[siteURL] {
		return db.ErrConflict
	}
	c, ok := m.clients[id]
	if !ok {
		return db.ErrNotFound
	}
	if siteName != "" {
		c.SiteName = siteName
	}
	if siteURL != "" {
		c.SiteURL = siteURL
	}
	c.LastSync = &at
	return nil
}

func (m *memStore) HasActiveAlert(_ context.Context, clientID string, alertType core.AlertType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(clientID, alertType, ""), nil
}

func (m *memStore) activeLocked(clientID string, alertType core.AlertType, except string) bool {
	for _, a := range m.alerts {
		if a.ID != except && a.ClientID == clientID && a.Type == alertType && a.Status == core.AlertStatusActive {
			return true
		}
	}
	return false
}

func (m *memStore) CreateAlert(_ context.Context, a *core.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked(a.ClientID, a.Type, "") {
		return false, nil
	}
	m.alerts[a.ID] = a
	return true, nil
}

func (m *memStore) ownedLocked(a *core.Alert, userID string) bool {
	c, ok := m.clients[a.ClientID]
	return ok && c.UserID == userID
}

func (m *memStore) ListAlerts(_ context.Context, f core.AlertFilters) ([]*core.Alert, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*core.Alert
	for _, a := range m.alerts {
		if !m.ownedLocked(a, f.UserID) {
			continue
		}
		if (f.Status != "" && a.Status != f.Status) ||
			(f.Severity != "" && a.Severity != f.Severity) ||
			(f.Type != "" && a.Type != f.Type) ||
			(f.ClientID != "" && a.ClientID != f.ClientID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	if f.Offset >= total {
		return []*core.Alert{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return out[f.Offset:end], total, nil
}

func (m *memStore) GetAlert(_ context.Context, id, userID string) (*core.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || !m.ownedLocked(a, userID) {
		return nil, db.ErrNotFound
	}
	return a, nil
}

func (m *memStore) UpdateAlertStatus(_ context.Context, id, userID string, status core.AlertStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || !m.ownedLocked(a, userID) {
		return db.ErrNotFound
	}
	if status == core.AlertStatusActive && m.activeLocked(a.ClientID, a.Type, a.ID) {
		return db.ErrConflict
	}
	a.Status = status
	a.UpdatedAt = at
	a.ResolvedAt, a.ResolvedBy = nil, nil
	if status == core.AlertStatusResolved {
		uid := userID
		a.ResolvedAt, a.ResolvedBy = &at, &uid
	}
	return nil
}

func (m *memStore) BulkUpdateAlertStatus(ctx context.Context, ids []string, userID string, status core.AlertStatus, at time.Time) (int, error) {
	m.mu.Lock()
	for _, id := range ids {
		a, ok := m.alerts[id]
		if !ok || !m.ownedLocked(a, userID) {
			m.mu.Unlock()
			return 0, db.ErrNotFound
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.UpdateAlertStatus(ctx, id, userID, status, at); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (m *memStore) DeleteAlert(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || !m.ownedLocked(a, userID) {
		return db.ErrNotFound
	}
	delete(m.alerts, id)
	return nil
}

func (m *memStore) AlertStats(_ context.Context, userID string, since time.Time) (*core.AlertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &core.AlertStats{ByStatus: map[string]int{}, BySeverity: map[string]int{}, ByType: []core.TypeCount{}}
	for _, a := range m.alerts {
		if !m.ownedLocked(a, userID) {
			continue
		}
		stats.Total++
		stats.ByStatus[string(a.Status)]++
		if a.Status == core.AlertStatusActive {
			stats.BySeverity[string(a.Severity)]++
		}
		if !a.CreatedAt.Before(since) {
			stats.Recent++
		}
	}
	return stats, nil
}

func (m *memStore) ListClients(_ context.Context, f core.ClientFilters) ([]*core.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*core.Client
	for _, c := range m.clients {
		if c.UserID != f.UserID || (f.Status != "" && c.Status != f.Status) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.SiteName+c.SiteURL), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memStore) GetClient(_ context.Context, id, userID string) (*core.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateClient(_ context.Context, c *core.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.clients {
		if existing.UserID == c.UserID && existing.SiteURL == c.SiteURL {
			return db.ErrConflict
		}
	}
	m.clients[c.ID] = c
	return nil
}

func (m *memStore) UpdateClient(_ context.Context, c *core.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.clients[c.ID]
	if !ok || existing.UserID != c.UserID {
		return db.ErrNotFound
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *memStore) DeleteClient(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return db.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *memStore) UpdateClientAPIKey(_ context.Context, id, userID, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return db.ErrNotFound
	}
	c.APIKey = apiKey
	return nil
}

func (m *memStore) ListActiveAlertsForClient(_ context.Context, clientID string, limit int) ([]*core.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*core.Alert{}
	for _, a := range m.alerts {
		if a.ClientID == clientID && a.Status == core.AlertStatusActive && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) LatestSiteData(_ context.Context, clientID string) (*core.SiteData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.siteData) - 1; i >= 0; i-- {
		if m.siteData[i].ClientID == clientID {
			return m.siteData[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) ListSiteData(_ context.Context, clientID, dataType string, limit int) ([]*core.SiteData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*core.SiteData{}
	for i := len(m.siteData) - 1; i >= 0 && len(out) < limit; i-- {
		d := m.siteData[i]
		if d.ClientID == clientID && (dataType == "" || d.DataType == dataType) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) DashboardCounts(context.Context, string, time.Time) (*db.DashboardCounts, error) {
	counts := m.dashboard
	return &counts, nil
}

func (m *memStore) RecentlySyncedClients(context.Context, string, int) ([]*core.Client, error) {
	return []*core.Client{}, nil
}

func (m *memStore) ListRecentAlerts(context.Context, string, int) ([]*core.Alert, error) {
	return []*core.Alert{}, nil
}

func (m *memStore) SyncActivity(context.Context, string, time.Time) ([]core.SyncActivityPoint, error) {
	return []core.SyncActivityPoint{{Date: "2026-10-15", Syncs: 3}}, nil
}

func (m *memStore) ActiveAlertsByType(context.Context, string) ([]core.TypeCount, error) {
	return []core.TypeCount{{Type: "security", Count: 2}}, nil
}

func (m *memStore) ActiveAlertsBySeverity(context.Context, string) ([]core.SeverityCount, error) {
	return []core.SeverityCount{{Severity: "critical", Count: 1}}, nil
}

func (m *memStore) SystemHealthCounts(context.Context, string, time.Time) (*db.HealthCounts, error) {
	counts := m.health
	return &counts, nil
}

var errStoreDown = errors.New("store unavailable")

// asUser authenticates every request as testUserID.
func asUser(c *gin.Context) {
	c.Set(middleware.ContextUserID, testUserID)
	c.Next()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Message    string              `json:"message"`
		StatusCode int                 `json:"statusCode"`
		Details    []map[string]string `json:"details"`
	} `json:"error"`
}

func doRequest(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}
