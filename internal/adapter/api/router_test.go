package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/auth"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/pii"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/domain/mocks"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

type testEnv struct {
	handler   http.Handler
	tenants   *mocks.MockTenantRepository
	workshops *mocks.MockWorkshopRepository
}

func ptr[T any](v T) *T { return &v }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestEnv(t *testing.T, dashboard bool, opts ...func(*Dependencies)) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewAPIMetrics(prometheus.NewRegistry())

	tenants := mocks.NewMockTenantRepository(
		domain.Tenant{Username: "acme", TenantName: "ACME", APIKey: "k1", Password: "acme-pass", APILimit: ptr[int64](10), Active: ptr(true)},
		domain.Tenant{Username: "beta", APIKey: "k2", APILimit: ptr[int64](10), Active: ptr(false)},
		domain.Tenant{Username: "small", APIKey: "k3", APILimit: ptr[int64](2)},
		domain.Tenant{Username: "spent", APIKey: "k4", APIUsage: 10, APILimit: ptr[int64](10), APIValidTo: ptr(day("2020-01-01"))},
	)
	workshops := &mocks.MockWorkshopRepository{Workshops: []domain.Workshop{
		{ID: "w1", Name: "Alpha Autoservice", City: "Berlin", Email: []string{"info@alpha.de", "x@northdata.de"}},
		{ID: "w2", Name: "Beta Reifen", City: "Hamburg"},
		{ID: "w3", Name: "Gamma KFZ", City: "Berlin"},
	}}
	event := func(id, workshopID, date string) domain.Event {
		return domain.Event{ID: id, WorkshopID: workshopID, Type: domain.EventFounding, Date: date,
			CompanyName: "Company " + id, City: "Berlin", OccurredOn: day(date)}
	}
	events := &mocks.MockEventRepository{Data: map[domain.EventType][]domain.Event{
		domain.EventFounding: {
			event("e1", "w1", "2025-03-01"),
			event("e2", "w1", "2025-02-15"),
			event("e3", "w2", "2025-02-01"),
			event("e4", "", "2025-01-10"),
		},
	}}

	sanitizer := pii.NewSanitizer(pii.Options{
		SourceRenames:   map[string]string{"NORTHDATA": "HANDELSREGISTER"},
		InternalMarker:  "northdata",
		ExcludedDomains: []string{"northdata.de"},
	}, logger)
	workshopService := usecase.NewWorkshopService(workshops, sanitizer, logger)

	d := Dependencies{
		Logger:        logger,
		Metrics:       m,
		Location:      time.UTC,
		Authenticator: usecase.NewAuthenticator(tenants, time.UTC, logger),
		Tracker:       usecase.NewUsageTracker(tenants, nil, nil, m, logger),
		Workshops:     workshopService,
		Events:        usecase.NewEventService(events, workshops, sanitizer, logger),
		SessionTTL:    time.Hour,
	}
	if dashboard {
		tokens := auth.NewTokenService("test-secret", time.Hour)
		d.Sessions = tokens
		d.Dashboard = usecase.NewDashboardService(tenants, workshopService, tokens,
			usecase.AdminAccount{Username: "admin", Password: "s3cret"}, logger)
		d.CORSAllowedOrigins = []string{"https://dashboard.example.com"}
	}
	for _, opt := range opts {
		opt(&d)
	}

	return &testEnv{handler: NewRouter(d), tenants: tenants, workshops: workshops}
}

func (e *testEnv) do(t *testing.T, method, target, key string, body io.Reader, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type usageJSON struct {
	Current    int64    `json:"current"`
	Limit      *int64   `json:"limit"`
	Remaining  *int64   `json:"remaining"`
	Percentage *float64 `json:"percentage"`
}

type listResponse struct {
	Metadata struct {
		Total     int       `json:"total"`
		Returned  int       `json:"returned"`
		Workshops *int      `json:"workshops"`
		Offset    int       `json:"offset"`
		Limit     int       `json:"limit"`
		Usage     usageJSON `json:"usage"`
	} `json:"metadata"`
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Usage     *int64 `json:"usage"`
	Limit     *int64 `json:"limit"`
	Requested *int64 `json:"requested"`
}

func TestRouter_WorkshopsBillAndReportUsage(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/workshops?limit=3", "k1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	list := decode[listResponse](t, rr)
	md := list.Metadata
	if md.Total != 3 || md.Returned != 3 || md.Limit != 3 || md.Offset != 0 {
		t.Errorf("metadata = %+v", md)
	}
	if md.Usage.Current != 3 || md.Usage.Remaining == nil || *md.Usage.Remaining != 7 {
		t.Errorf("usage = %+v, want current 3 remaining 7", md.Usage)
	}
	if strings.Contains(string(list.Data), "northdata.de") {
		t.Errorf("excluded email leaked: %s", list.Data)
	}
	if got := env.tenants.UsageOf("acme"); got != 3 {
		t.Errorf("stored usage = %d, want 3", got)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/usage", "k1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("usage status = %d", rr.Code)
	}
	usage := decode[struct {
		Usage    usageJSON `json:"usage"`
		Validity struct {
			ValidTo   *string `json:"validTo"`
			IsExpired bool    `json:"isExpired"`
		} `json:"validity"`
	}](t, rr)
	if usage.Usage.Current != 3 || *usage.Usage.Remaining != 7 || *usage.Usage.Percentage != 30 {
		t.Errorf("usage = %+v", usage.Usage)
	}
	if usage.Validity.ValidTo != nil || usage.Validity.IsExpired {
		t.Errorf("validity = %+v", usage.Validity)
	}
	if got := env.tenants.UsageOf("acme"); got != 3 {
		t.Errorf("usage endpoint was billed: stored usage = %d", got)
	}
}

func TestRouter_InactiveAccount(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/api/v1/workshops", "/api/v1/foundings", "/api/v1/usage"} {
		rr := env.do(t, http.MethodGet, path, "k2", nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", path, rr.Code)
		}
		if got := decode[errorResponse](t, rr).Error; got != "Account inactive" {
			t.Errorf("%s: error = %q", path, got)
		}
	}
}

func TestRouter_MissingKeyNeverTouchesDatastore(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/workshops", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if got := decode[errorResponse](t, rr).Error; got != "API key required" {
		t.Errorf("error = %q", got)
	}
	if env.tenants.Calls() != 0 || env.workshops.ListCalls != 0 {
		t.Errorf("datastore calls: tenants=%d workshops=%d", env.tenants.Calls(), env.workshops.ListCalls)
	}
}

func TestRouter_QuotaInsufficient(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/workshops", "k3", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	body := decode[errorResponse](t, rr)
	if body.Error != "Insufficient API quota" || *body.Requested != 3 || *body.Limit != 2 {
		t.Errorf("body = %+v", body)
	}
	if got := env.tenants.UsageOf("small"); got != 0 {
		t.Errorf("stored usage = %d, want 0", got)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/workshops?limit=2", "k3", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status with limit=2 = %d, want 200", rr.Code)
	}
}

func TestRouter_UsageIsLenient(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/workshops", "k4", nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expired key on resource: status = %d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/usage", "k4", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`"remaining":0`, `"percentage":100`, `"validTo":"2020-01-01"`, `"isExpired":true`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}

func TestRouter_WorkshopByID(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/workshops/w2", "k1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"current":1`) {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/workshops/missing", "k1", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if got := env.tenants.UsageOf("acme"); got != 1 {
		t.Errorf("stored usage = %d, want 1", got)
	}
}

func TestRouter_FoundingsBillDistinctWorkshops(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/foundings", "k1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	list := decode[listResponse](t, rr)
	if list.Metadata.Returned != 4 || list.Metadata.Workshops == nil || *list.Metadata.Workshops != 2 {
		t.Errorf("metadata = %+v", list.Metadata)
	}
	if list.Metadata.Usage.Current != 2 {
		t.Errorf("usage.current = %d, want 2", list.Metadata.Usage.Current)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/foundings?dateFrom=2025-02-01&dateTo=2025-02-15", "k1", nil)
	list = decode[listResponse](t, rr)
	if list.Metadata.Total != 2 {
		t.Errorf("date range total = %d, want 2", list.Metadata.Total)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/management-changes", "k1", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"events":[]`) {
		t.Errorf("empty dataset: status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func TestRouter_InvalidDate(t *testing.T) {
	env := newTestEnv(t, false)

	for _, q := range []string{"dateFrom=yesterday", "dateTo=2025-13-01"} {
		rr := env.do(t, http.MethodGet, "/api/v1/foundings?"+q, "k1", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rr.Code)
		}
	}
	if got := env.tenants.UsageOf("acme"); got != 0 {
		t.Errorf("stored usage = %d, want 0", got)
	}
}

func TestRouter_Dashboard(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(`{"username":"admin"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing password: status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(`{"username":"acme","password":"acme-pass"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "auth_token" {
			session = c
		}
	}
	if session == nil || !session.HttpOnly || session.MaxAge != 3600 {
		t.Fatalf("session cookie = %+v", session)
	}

	rr = env.do(t, http.MethodGet, "/api/auth/me", "", nil, session)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"tenant_name":"ACME"`) {
		t.Errorf("me: status = %d body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard/export?format=csv&city=Berlin", "", nil, session)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("content disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 || lines[0] != "id,name,street,zip_code,city,concepts,email,phone,website" {
		t.Errorf("csv = %q", lines)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard/export?format=xml", "", nil, session)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("xml export: status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard/workshops", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard/workshops", "", nil, session)
	if rr.Code != http.StatusOK {
		t.Errorf("dashboard workshops: status = %d", rr.Code)
	}
	if got := env.tenants.UsageOf("acme"); got != 0 {
		t.Errorf("dashboard was metered: usage = %d", got)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/logout", "", nil, session)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Errorf("logout: status = %d set-cookie = %q", rr.Code, rr.Header().Get("Set-Cookie"))
	}
}

func TestRouter_RotatingKeysShareIPLimit(t *testing.T) {
	env := newTestEnv(t, false, func(d *Dependencies) { d.RateLimitPerMinute = 3 })

	var limited int
	for i := 0; i < 10; i++ {
		rr := env.do(t, http.MethodGet, "/api/v1/workshops", fmt.Sprintf("fake-%d", i), nil)
		switch rr.Code {
		case http.StatusForbidden:
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("request %d: status = %d", i, rr.Code)
		}
	}
	if limited != 7 {
		t.Errorf("limited = %d, want 7", limited)
	}
	if env.tenants.FindCalls != 3 {
		t.Errorf("key lookups = %d, want 3", env.tenants.FindCalls)
	}
}

func TestRouter_TenantLimitAfterAuth(t *testing.T) {
	env := newTestEnv(t, false, func(d *Dependencies) { d.RateLimitPerMinute = 2 })

	// Different IPs, one tenant: the tenant bucket still applies.
	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.0.%d:1234", i+1)
		req.Header.Set("X-API-Key", "k1")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestRouter_LoginRateLimited(t *testing.T) {
	env := newTestEnv(t, true, func(d *Dependencies) { d.LoginRateLimitPerMinute = 3 })

	var codes []int
	for i := 0; i < 5; i++ {
		rr := env.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(`{"username":"admin","password":"guess"}`))
		codes = append(codes, rr.Code)
	}
	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("attempt %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
	if body := decode[errorResponse](t, env.do(t, http.MethodPost, "/api/auth/login", "",
		strings.NewReader(`{"username":"admin","password":"s3cret"}`))); body.Error != domain.KindRateLimited.Label() {
		t.Errorf("error = %q, want %q", body.Error, domain.KindRateLimited.Label())
	}
}

func TestRouter_CORSExplicitOrigin(t *testing.T) {
	env := newTestEnv(t, true)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/dashboard/workshops", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		return rr
	}

	rr := preflight("https://dashboard.example.com")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Errorf("allowed origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow credentials = %q, want true", got)
	}
	if got := preflight("https://evil.example.org").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestRouter_DashboardDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(`{}`))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d", rr.Code)
	}
}

func TestAdminRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAPIMetrics(reg)
	m.RecordsServed.WithLabelValues("workshops").Add(3)

	rr := httptest.NewRecorder()
	NewAdminRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "workshop_api_usage_records_served_total") {
		t.Errorf("metrics: status = %d", rr.Code)
	}
}
