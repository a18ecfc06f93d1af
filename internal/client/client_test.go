package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/invest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func TestVerifyFlowSetsToken(t *testing.T) {
	exp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var sawAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/verify-pin":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "123456", body["pin"])
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "email": "me@example.com", "token": "tok", "expires_at": exp})
		case "/api/categories":
			sawAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`[]`))
		}
	})
	ctx := context.Background()

	s, err := c.VerifyPIN(ctx, "me@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)
	assert.True(t, s.ExpiresAt.Equal(exp))

	_, err = c.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", sawAuth)
}

func TestRequiredFieldsAreNeverSent(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls++ })
	ctx := context.Background()

	var vErr *ValidationError
	require.ErrorAs(t, c.VerifyEmail(ctx, "  "), &vErr)
	assert.Equal(t, "Email is required", vErr.Error())

	_, err := c.VerifyPIN(ctx, "me@example.com", "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "PIN", vErr.Field)

	_, err = c.CreateCategory(ctx, core.Category{Type: core.Expense})
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, calls)
}

func TestAPIErrorCarriesBackendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Cannot delete category: 2 transaction(s) still use it"}`))
	})

	err := c.DeleteCategory(context.Background(), 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Cannot delete category: 2 transaction(s) still use it", Message(err))
	assert.True(t, IsStatus(err, http.StatusConflict))
}

func TestAPIErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := c.DeleteTransaction(context.Background(), 1)
	assert.Equal(t, "Bad Gateway", Message(err))
}

func TestConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.ListCategories(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, "Connection error", Message(err))
}

func TestCancelledContextIsNotAConnectionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListCategories(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestMissingNumericFieldsDecodeAsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-05-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2025-05-31", r.URL.Query().Get("endDate"))
		_, _ = w.Write([]byte(`{"income":1000000}`))
	})
	sum, err := c.Summary(context.Background(), core.DateRange{Start: core.NewDate(2025, 5, 1), End: core.NewDate(2025, 5, 31)})
	require.NoError(t, err)
	assert.True(t, sum.Income.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, sum.Expenses.IsZero())
	assert.Zero(t, sum.Count)
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})
	_, err := c.ContributionPlan(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSetHoldingAndExport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/investments/holdings/gold":
			assert.Equal(t, http.MethodPut, r.Method)
			var body map[string]json.Number
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, json.Number("1500000"), body["current_value"])
			_, _ = w.Write([]byte(`{"type":"gold","name":"Gold","current_value":1500000}`))
		case "/api/expenses/export":
			assert.Equal(t, "csv", r.URL.Query().Get("format"))
			w.Header().Set("Content-Disposition", `attachment; filename="transactions_2025-05-01_2025-05-31.csv"`)
			_, _ = w.Write([]byte("Date,Type\n"))
		}
	})
	ctx := context.Background()

	h, err := c.SetHolding(ctx, invest.Gold, decimal.NewFromInt(1500000))
	require.NoError(t, err)
	assert.True(t, h.CurrentValue.Equal(decimal.NewFromInt(1500000)))

	data, name, err := c.Export(ctx, core.DateRange{Start: core.NewDate(2025, 5, 1), End: core.NewDate(2025, 5, 31)}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "transactions_2025-05-01_2025-05-31.csv", name)
	assert.Equal(t, "Date,Type\n", string(data))
}

func TestSessionStore(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(filepath.Join(t.TempDir(), "fintrack", "session.json"))

	_, ok := store.Load(now)
	assert.False(t, ok, "no marker yet")

	m := Marker{Email: "me@example.com", Authenticated: true, Token: "tok", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Save(m))

	got, ok := store.Load(now)
	require.True(t, ok)
	assert.Equal(t, "me@example.com", got.Email)

	_, ok = store.Load(now.Add(2 * time.Hour))
	assert.False(t, ok, "expired markers load as logged out")

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, ok = store.Load(now)
	assert.False(t, ok)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "Name is required", Message(&ValidationError{Field: "Name"}))
}
