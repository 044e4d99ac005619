package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/cmlabs-hris/payroll-engine/internal/service/deduction"
	"github.com/cmlabs-hris/payroll-engine/internal/service/export"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/service/payslip"
	rateTableService "github.com/cmlabs-hris/payroll-engine/internal/service/ratetable"
	timeEntryService "github.com/cmlabs-hris/payroll-engine/internal/service/timeentry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type testApp struct {
	server   *httptest.Server
	jwt      jwt.Service
	employee employee.Employee
}

func newTestApp(t *testing.T, rateLimit config.RateLimitConfig) *testApp {
	t.Helper()
	ctx := t.Context()

	store := memory.NewStore()
	rate := decimal.RequireFromString("28.50")
	emp := store.PutEmployee(employee.Employee{
		EmployeeNumber: "E-001",
		FirstName:      "Anna",
		LastName:       "Muster",
		Email:          "anna@example.ch",
		Status:         employee.StatusActive,
		HourlyRate:     &rate,
		HoursPerWeek:   decimal.NewFromInt(40),
		StartDate:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	rates := rateTableService.NewRateTableService(memory.NewRateTableRepository(store), rateTableService.DefaultSource{})
	require.NoError(t, rates.Reload(ctx))

	entryRepo := memory.NewTimeEntryRepository(store)
	employeeRepo := memory.NewEmployeeRepository(store)
	runRepo := memory.NewPayrollRunRepository(store)
	slipRepo := memory.NewPaySlipRepository(store)
	ledger := timeEntryService.NewLedger(entryRepo, store)

	files, err := storage.NewLocalStorage(t.TempDir(), "http://files.test")
	require.NoError(t, err)
	exporter := export.NewExportService(runRepo, slipRepo, files, nil)

	payrollSvc := payrollService.NewPayrollService(payrollService.Dependencies{
		Tx:           store,
		RunRepo:      runRepo,
		SlipRepo:     slipRepo,
		EmployeeRepo: employeeRepo,
		Ledger:       ledger,
		Builder:      payslip.NewBuilder(ledger, deduction.NewCalculator(rates), nil),
		Locker:       lock.NewMemoryLocker(),
		Exporter:     exporter,
	}, payrollService.Options{Workers: 2, LockTTL: time.Minute})
	t.Cleanup(payrollSvc.Wait)

	jwtService := jwt.NewJWTService(config.JWTConfig{Secret: handlerTestSecret})
	router := NewRouter(
		RouterConfig{App: config.AppConfig{CORSOrigins: []string{"*"}}, RateLimit: rateLimit},
		jwtService,
		NewPayrollHandler(payrollSvc, exporter),
		NewTimeEntryHandler(timeEntryService.NewTimeEntryService(entryRepo, employeeRepo)),
		NewRateTableHandler(rates),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, jwt: jwtService, employee: emp}
}

func (a *testApp) token(t *testing.T, actor user.Actor) string {
	t.Helper()
	token, _, err := a.jwt.GenerateAccessToken(actor, time.Hour)
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (a *testApp) do(t *testing.T, token, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, a.server.URL+path, &reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

var (
	adminActor   = user.Actor{UserID: "admin-1", Role: user.RoleAdmin}
	managerActor = user.Actor{UserID: "manager-1", Role: user.RoleManager}
)

func TestRouter_Health(t *testing.T) {
	app := newTestApp(t, config.RateLimitConfig{})

	resp, err := app.server.Client().Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Authorization(t *testing.T) {
	app := newTestApp(t, config.RateLimitConfig{})
	employeeID := app.employee.ID
	employeeToken := app.token(t, user.Actor{UserID: "u-1", EmployeeID: &employeeID, Role: user.RoleEmployee})

	status, _ := app.do(t, "", http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = app.do(t, "not-a-token", http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := app.do(t, employeeToken, http.MethodPost, "/api/v1/runs", map[string]int{"year": 2025, "month": 3})
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, env.Success)

	status, _ = app.do(t, app.token(t, managerActor), http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, app.token(t, managerActor), http.MethodGet, "/api/v1/rate-tables", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Employees may not book time for someone else.
	status, _ = app.do(t, employeeToken, http.MethodPost, "/api/v1/time-entries", map[string]interface{}{
		"employee_id": "someone-else",
		"entry_date":  "2025-03-03",
		"entry_type":  "regular",
		"hours":       "8",
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_NegativeHoursRejected(t *testing.T) {
	app := newTestApp(t, config.RateLimitConfig{})
	token := app.token(t, managerActor)

	status, env := app.do(t, token, http.MethodPost, "/api/v1/time-entries", map[string]interface{}{
		"employee_id": app.employee.ID,
		"entry_date":  "2025-03-03",
		"entry_type":  "regular",
		"hours":       "-1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "negative")

	status, env = app.do(t, token, http.MethodGet, "/api/v1/time-entries?employee_id="+app.employee.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var entries []map[string]interface{}
	decodeData(t, env, &entries)
	assert.Empty(t, entries)
}

func TestRouter_PayrollLifecycle(t *testing.T) {
	app := newTestApp(t, config.RateLimitConfig{})
	employeeID := app.employee.ID
	employeeToken := app.token(t, user.Actor{UserID: "u-1", EmployeeID: &employeeID, Role: user.RoleEmployee})
	managerToken := app.token(t, managerActor)
	adminToken := app.token(t, adminActor)

	status, env := app.do(t, employeeToken, http.MethodPost, "/api/v1/time-entries", map[string]interface{}{
		"employee_id": employeeID,
		"entry_date":  "2025-03-03",
		"entry_type":  "regular",
		"hours":       "8",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var entry struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &entry)

	status, _ = app.do(t, employeeToken, http.MethodPost, "/api/v1/time-entries/"+entry.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, employeeToken, http.MethodPost, "/api/v1/time-entries/"+entry.ID+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = app.do(t, managerToken, http.MethodPost, "/api/v1/time-entries/"+entry.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = app.do(t, adminToken, http.MethodPost, "/api/v1/runs", map[string]int{"year": 2025, "month": 3})
	require.Equal(t, http.StatusCreated, status)
	var run struct {
		ID         string          `json:"id"`
		Status     string          `json:"status"`
		PeriodName string          `json:"period_name"`
		TotalGross decimal.Decimal `json:"total_gross"`
		Exports    *struct {
			CSVKey string `json:"csv_key"`
		} `json:"exports"`
	}
	decodeData(t, env, &run)
	assert.Equal(t, "März 2025", run.PeriodName)

	status, _ = app.do(t, adminToken, http.MethodPost, "/api/v1/runs", map[string]int{"year": 2025, "month": 3})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = app.do(t, adminToken, http.MethodPost, "/api/v1/runs/"+run.ID+"/export", nil)
	assert.Equal(t, http.StatusConflict, status, "export needs an approved run")

	status, env = app.do(t, adminToken, http.MethodPost, "/api/v1/runs/"+run.ID+"/calculate", nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = app.do(t, managerToken, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &run)
	assert.Equal(t, "pending_review", run.Status)
	assert.True(t, run.TotalGross.Equal(decimal.NewFromInt(228)), run.TotalGross.String())

	// Paid entries are frozen.
	status, _ = app.do(t, managerToken, http.MethodPost, "/api/v1/time-entries/"+entry.ID+"/reject", map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, status)

	for _, step := range []string{"approve", "export"} {
		status, env = app.do(t, adminToken, http.MethodPost, "/api/v1/runs/"+run.ID+"/"+step, nil)
		require.Equal(t, http.StatusOK, status, step, env.Error)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, app.server.URL+"/api/v1/runs/"+run.ID+"/exports/csv", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := app.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, storage.ContentTypeCSV, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "payslips.csv")

	status, _ = app.do(t, adminToken, http.MethodGet, "/api/v1/runs/"+run.ID+"/exports/docx", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_RateLimit(t *testing.T) {
	app := newTestApp(t, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	token := app.token(t, adminActor)

	status, _ := app.do(t, token, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := app.do(t, token, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
}
