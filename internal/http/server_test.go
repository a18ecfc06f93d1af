package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/invest"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const testEmail = "owner@example.com"

// pinOutbox captures issued PINs in place of the message broker.
type pinOutbox struct {
	mu   sync.Mutex
	pins map[string]string
}

func (o *pinOutbox) Publish(_ context.Context, ev amqp.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ev.Kind == amqp.KindPINIssued {
		o.pins[ev.Email] = ev.PIN
	}
	return nil
}

func (o *pinOutbox) pin(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pins[email]
}

type testEnv struct {
	srv    *Server
	outbox *pinOutbox
}

func newTestEnv(t *testing.T, authLimit int) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := log.New(log.Config{Output: io.Discard})

	repo, err := storage.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	outbox := &pinOutbox{pins: map[string]string{}}
	policy, err := invest.NewPolicy(invest.PolicyDrift, invest.PolicyOptions{DriftTolerance: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	ledger := services.NewLedgerService(repo, outbox, cache.NewLRUCache[core.Summary](16, time.Minute), logger)
	investments := services.NewInvestmentService(repo, invest.Engine{Policy: policy, SevereDrift: decimal.NewFromInt(15)}, logger)
	auth := services.NewAuthService(repo, outbox, services.AuthConfig{
		Secret:         []byte("test-secret-test-secret-test-secret"),
		SessionTTL:     time.Hour,
		PINTTL:         10 * time.Minute,
		PINMaxAttempts: 3,
	}, logger)
	if err := auth.RegisterUsers(ctx, []string{testEmail}); err != nil {
		t.Fatalf("register users: %v", err)
	}

	srv := NewServer(Options{Addr: ":0", AuthRateLimitPerMinute: authLimit, Logger: logger}, ledger, investments, auth, repo)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, outbox: outbox}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	if rr := e.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": testEmail}); rr.Code != http.StatusOK {
		t.Fatalf("verify-email status=%d body=%s", rr.Code, rr.Body)
	}
	rr := e.do(t, http.MethodPost, "/api/auth/verify-pin", "", map[string]string{"email": testEmail, "pin": e.outbox.pin(testEmail)})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify-pin status=%d body=%s", rr.Code, rr.Body)
	}
	var resp struct {
		OK    bool   `json:"ok"`
		Token string `json:"token"`
	}
	decode(t, rr, &resp)
	if !resp.OK || resp.Token == "" {
		t.Fatalf("unexpected session response: %s", rr.Body)
	}
	return resp.Token
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rr, &body)
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 100)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing request id", path)
		}
	}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t, 100)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantError  string
	}{
		{"empty email", "/api/auth/verify-email", map[string]string{"email": " "}, http.StatusBadRequest, "Email is required"},
		{"unknown email", "/api/auth/verify-email", map[string]string{"email": "stranger@example.com"}, http.StatusNotFound, "Email not registered"},
		{"malformed body", "/api/auth/verify-email", "{", http.StatusBadRequest, "Invalid JSON body"},
		{"empty pin", "/api/auth/verify-pin", map[string]string{"email": testEmail}, http.StatusBadRequest, "PIN is required"},
		{"no pin issued", "/api/auth/verify-pin", map[string]string{"email": testEmail, "pin": "123456"}, http.StatusUnauthorized, "Invalid or expired PIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, tt.path, "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body)
			}
			if got := errorMessage(t, rr); got != tt.wantError {
				t.Errorf("error=%q want %q", got, tt.wantError)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, 100)

	rr := env.do(t, http.MethodGet, "/api/expenses", "", nil)
	if rr.Code != http.StatusUnauthorized || errorMessage(t, rr) != "Authentication required" {
		t.Fatalf("anonymous request: status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := env.do(t, http.MethodGet, "/api/expenses", "not-a-token", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status=%d", rr.Code)
	}

	token := env.login(t)
	if rr := env.do(t, http.MethodGet, "/api/expenses", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("authenticated list status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := env.do(t, http.MethodPost, "/api/auth/logout", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/expenses", token, nil)
	if rr.Code != http.StatusUnauthorized || errorMessage(t, rr) != "Invalid or expired session" {
		t.Fatalf("revoked token: status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)
	for i := 0; i < 2; i++ {
		env.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": testEmail})
	}
	rr := env.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": testEmail})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func createCategory(t *testing.T, env *testEnv, token string, c core.Category) core.Category {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/categories", token, c)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status=%d body=%s", rr.Code, rr.Body)
	}
	var out core.Category
	decode(t, rr, &out)
	return out
}

func createTransaction(t *testing.T, env *testEnv, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, http.MethodPost, "/api/expenses", token, body)
}

func TestLedgerAndStats(t *testing.T) {
	env := newTestEnv(t, 100)
	token := env.login(t)

	food := createCategory(t, env, token, core.Category{Name: "Food", Icon: "🍜", Type: core.Expense})
	if food.Color != core.DefaultCategoryColor {
		t.Errorf("default color = %q", food.Color)
	}

	if rr := createTransaction(t, env, token, `{"amount":1000000,"date":"2025-05-02","type":"income","description":"Salary"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create income status=%d body=%s", rr.Code, rr.Body)
	}
	rr := createTransaction(t, env, token, `{"amount":300000,"date":"2025-05-03","type":"expense","category_id":`+itoa(food.ID)+`}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create expense status=%d body=%s", rr.Code, rr.Body)
	}
	var expense core.Transaction
	decode(t, rr, &expense)
	if expense.CategoryName != "Food" {
		t.Errorf("category name = %q", expense.CategoryName)
	}

	rr = createTransaction(t, env, token, `{"amount":5,"date":"2025-05-03","type":"income","category_id":`+itoa(food.ID)+`}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("mismatch status=%d", rr.Code)
	}
	if rr := createTransaction(t, env, token, `{"amount":0,"date":"2025-05-03","type":"expense"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("zero amount status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/stats/summary?startDate=2025-05-01&endDate=2025-05-31", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status=%d", rr.Code)
	}
	var sum core.Summary
	decode(t, rr, &sum)
	if !sum.Net.Equal(decimal.NewFromInt(700000)) || sum.Count != 2 {
		t.Errorf("net=%s count=%d", sum.Net, sum.Count)
	}
	if len(sum.ByCategory) != 1 || sum.ByCategory[0].Name != "Food" {
		t.Errorf("byCategory = %+v", sum.ByCategory)
	}

	rr = env.do(t, http.MethodDelete, "/api/categories/"+itoa(food.ID), token, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("delete in-use category status=%d", rr.Code)
	}
	if got := errorMessage(t, rr); got != "Cannot delete category: 1 transaction(s) still use it" {
		t.Errorf("error = %q", got)
	}

	rr = env.do(t, http.MethodPut, "/api/expenses/"+itoa(expense.ID), token,
		`{"amount":250000,"date":"2025-05-03","type":"expense","category_id":`+itoa(food.ID)+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}
	rr = env.do(t, http.MethodGet, "/api/stats/summary?startDate=2025-05-01&endDate=2025-05-31", token, nil)
	decode(t, rr, &sum)
	if !sum.Net.Equal(decimal.NewFromInt(750000)) {
		t.Errorf("net after update = %s", sum.Net)
	}

	if rr := env.do(t, http.MethodDelete, "/api/expenses/"+itoa(expense.ID), token, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/expenses/"+itoa(expense.ID), token, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/categories/"+itoa(food.ID), token, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete unused category status=%d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, 100)
	token := env.login(t)
	createTransaction(t, env, token, `{"amount":42000,"date":"2025-04-10","type":"expense","description":"Coffee, beans"}`)

	rr := env.do(t, http.MethodGet, "/api/expenses/export?startDate=2025-04-01&endDate=2025-04-30", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("csv status=%d body=%s", rr.Code, rr.Body)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions_2025-04-01_2025-04-30.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	rows, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][4] != "Coffee, beans" || rows[1][3] != "42000" {
		t.Errorf("rows = %q", rows)
	}

	rr = env.do(t, http.MethodGet, "/api/expenses/export?format=xlsx&startDate=2025-04-01&endDate=2025-04-30", token, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != xlsxMediaType {
		t.Fatalf("xlsx status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Error("xlsx body is not a zip archive")
	}

	if rr := env.do(t, http.MethodGet, "/api/expenses/export?format=pdf", token, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format status=%d", rr.Code)
	}
}

func TestInvestmentEndpoints(t *testing.T) {
	env := newTestEnv(t, 100)
	token := env.login(t)

	rr := env.do(t, http.MethodPut, "/api/investments/holdings/gold", token, map[string]int{"current_value": 10000000})
	if rr.Code != http.StatusOK {
		t.Fatalf("set holding status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := env.do(t, http.MethodPut, "/api/investments/holdings/crypto", token, map[string]int{"current_value": 1}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown asset status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/investments/holdings/gold", token, map[string]int{"current_value": -1}); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative value status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/investments/summary", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var summary struct {
		TotalValue    decimal.Decimal `json:"totalValue"`
		MonthlyBudget decimal.Decimal `json:"monthlyBudget"`
	}
	decode(t, rr, &summary)
	if !summary.TotalValue.Equal(decimal.NewFromInt(10000000)) || !summary.MonthlyBudget.Equal(decimal.NewFromInt(5000000)) {
		t.Errorf("totalValue=%s monthlyBudget=%s", summary.TotalValue, summary.MonthlyBudget)
	}

	for _, path := range []string{"/api/investments/contribution-plan", "/api/investments/action-items", "/api/investments/contributions"} {
		if rr := env.do(t, http.MethodGet, path, token, nil); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body)
		}
	}

	rr = env.do(t, http.MethodPost, "/api/investments/contributions", token,
		`{"type":"indonesian_equity","amount":2500000,"date":"2025-05-20"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add contribution status=%d body=%s", rr.Code, rr.Body)
	}

	if rr := env.do(t, http.MethodPut, "/api/investments/config", token, `{"monthly_budget":-1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative budget status=%d body=%s", rr.Code, rr.Body)
	}

	if rr := env.do(t, http.MethodPost, "/api/investments/start-plan", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("start plan status=%d body=%s", rr.Code, rr.Body)
	}
	rr = env.do(t, http.MethodPost, "/api/investments/start-plan", token, nil)
	if rr.Code != http.StatusConflict || errorMessage(t, rr) != "Plan already started" {
		t.Fatalf("second start: status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, 100)
	rr := env.do(t, http.MethodGet, "/api/nope", "", nil)
	if rr.Code != http.StatusNotFound || errorMessage(t, rr) != "Not found" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
