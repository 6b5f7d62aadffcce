package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// MockTenantRepository is an in-memory domain.TenantRepository for testing.
type MockTenantRepository struct {
	mu      sync.Mutex
	Tenants map[string]*domain.Tenant // keyed by username

	FindErr      error
	IncrementErr error
	UsageErr     error
	SetUsageErr  error

	// AfterUsageRead runs after the fallback read, outside the lock.
	AfterUsageRead func(username string)

	FindCalls      int
	IncrementCalls int
	UsageCalls     int
	SetUsageCalls  int
}

// NewMockTenantRepository seeds the repository with copies of tenants.
func NewMockTenantRepository(tenants ...domain.Tenant) *MockTenantRepository {
	m := &MockTenantRepository{Tenants: make(map[string]*domain.Tenant)}
	for _, t := range tenants {
		t := t
		m.Tenants[t.Username] = &t
	}
	return m
}

func (m *MockTenantRepository) FindByAPIKey(ctx context.Context, key string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, t := range m.Tenants {
		if t.APIKey == key {
			c := *t
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTenantRepository) FindByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	t, ok := m.Tenants[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *MockTenantRepository) IncrementUsage(ctx context.Context, username string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementCalls++
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	t, ok := m.Tenants[username]
	if !ok {
		return domain.ErrNotFound
	}
	t.APIUsage += n
	return nil
}

func (m *MockTenantRepository) Usage(ctx context.Context, username string) (int64, error) {
	m.mu.Lock()
	m.UsageCalls++
	if m.UsageErr != nil {
		m.mu.Unlock()
		return 0, m.UsageErr
	}
	t, ok := m.Tenants[username]
	if !ok {
		m.mu.Unlock()
		return 0, domain.ErrNotFound
	}
	usage := t.APIUsage
	hook := m.AfterUsageRead
	m.mu.Unlock()

	if hook != nil {
		hook(username)
	}
	return usage, nil
}

func (m *MockTenantRepository) SetUsage(ctx context.Context, username string, usage int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetUsageCalls++
	if m.SetUsageErr != nil {
		return m.SetUsageErr
	}
	t, ok := m.Tenants[username]
	if !ok {
		return domain.ErrNotFound
	}
	t.APIUsage = usage
	return nil
}

// UsageOf returns the stored counter for username.
func (m *MockTenantRepository) UsageOf(username string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Tenants[username]; ok {
		return t.APIUsage
	}
	return 0
}

// Calls returns the total number of datastore calls made.
func (m *MockTenantRepository) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FindCalls + m.IncrementCalls + m.UsageCalls + m.SetUsageCalls
}

// MockWorkshopRepository is an in-memory domain.WorkshopRepository for testing.
type MockWorkshopRepository struct {
	mu        sync.Mutex
	Workshops []domain.Workshop

	ListErr error
	GetErr  error

	ListCalls      int
	GetCalls       int
	ListByIDsCalls int
}

func (m *MockWorkshopRepository) List(ctx context.Context, filter domain.WorkshopFilter, page domain.Page) ([]domain.Workshop, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}

	var matched []domain.Workshop
	for _, w := range m.Workshops {
		if matchesWorkshop(w, filter) {
			matched = append(matched, w.Clone())
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

func (m *MockWorkshopRepository) Get(ctx context.Context, id string) (*domain.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, w := range m.Workshops {
		if w.ID == id {
			c := w.Clone()
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockWorkshopRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListByIDsCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.Workshop
	for _, w := range m.Workshops {
		if _, ok := want[w.ID]; ok {
			out = append(out, w.Clone())
		}
	}
	return out, nil
}

func matchesWorkshop(w domain.Workshop, f domain.WorkshopFilter) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(w.Name), q) &&
			!strings.Contains(strings.ToLower(w.City), q) &&
			!strings.Contains(strings.ToLower(w.ZipCode), q) {
			return false
		}
	}
	if f.City != "" && w.City != f.City {
		return false
	}
	if f.ZipCode != "" && w.ZipCode != f.ZipCode {
		return false
	}
	if f.Concept != "" {
		found := false
		for _, c := range w.Concepts {
			if c == f.Concept {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MockEventRepository serves fixed event datasets.
type MockEventRepository struct {
	Data map[domain.EventType][]domain.Event
	Err  error
}

func (m *MockEventRepository) Events(ctx context.Context, eventType domain.EventType) ([]domain.Event, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data[eventType], nil
}
