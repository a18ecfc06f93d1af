// Package client is a typed client for the fintrack REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/invest"
)

// DefaultBaseURL is used when FINTRACK_API_URL is not set.
const DefaultBaseURL = "http://localhost:8081"

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send performs req and turns non-2xx answers into an *APIError. A
// cancelled context is returned as is, other transport failures as
// ErrConnection.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrConnection
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	return nil, &APIError{Status: resp.StatusCode, Message: eb.Error}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func rangeQuery(dr core.DateRange) url.Values {
	q := url.Values{}
	if !dr.Start.IsZero() {
		q.Set("startDate", dr.Start.String())
	}
	if !dr.End.IsZero() {
		q.Set("endDate", dr.End.String())
	}
	return q
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

// Session is the answer of a successful PIN check.
type Session struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyEmail asks the backend to issue a login PIN.
func (c *Client) VerifyEmail(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "Email"}
	}
	return c.do(ctx, http.MethodPost, "/api/auth/verify-email", nil, map[string]string{"email": email}, nil)
}

// VerifyPIN exchanges a PIN for a session and starts using its token.
func (c *Client) VerifyPIN(ctx context.Context, email, pin string) (Session, error) {
	if strings.TrimSpace(email) == "" {
		return Session{}, &ValidationError{Field: "Email"}
	}
	if strings.TrimSpace(pin) == "" {
		return Session{}, &ValidationError{Field: "PIN"}
	}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-pin", nil, map[string]string{"email": email, "pin": pin}, &s); err != nil {
		return Session{}, err
	}
	c.SetToken(s.Token)
	return s, nil
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	c.SetToken("")
	return err
}

func (c *Client) ListTransactions(ctx context.Context, dr core.DateRange) ([]core.Transaction, error) {
	var out []core.Transaction
	err := c.do(ctx, http.MethodGet, "/api/expenses", rangeQuery(dr), nil, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPost, "/api/expenses", nil, tx, &out)
	return out, err
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, tx core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPut, idPath("/api/expenses", id), nil, tx, &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/expenses", id), nil, nil, nil)
}

// Summary returns the server-side aggregate for dr.
func (c *Client) Summary(ctx context.Context, dr core.DateRange) (core.Summary, error) {
	var out core.Summary
	err := c.do(ctx, http.MethodGet, "/api/stats/summary", rangeQuery(dr), nil, &out)
	return out, err
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if strings.TrimSpace(cat.Name) == "" {
		return core.Category{}, &ValidationError{Field: "Name"}
	}
	var out core.Category
	err := c.do(ctx, http.MethodPost, "/api/categories", nil, cat, &out)
	return out, err
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, cat core.Category) (core.Category, error) {
	if strings.TrimSpace(cat.Name) == "" {
		return core.Category{}, &ValidationError{Field: "Name"}
	}
	var out core.Category
	err := c.do(ctx, http.MethodPut, idPath("/api/categories", id), nil, cat, &out)
	return out, err
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/categories", id), nil, nil, nil)
}

// InvestmentSummary is the portfolio snapshot with the plan settings.
type InvestmentSummary struct {
	invest.Snapshot
	StartDate     core.Date       `json:"startDate"`
	MonthlyBudget decimal.Decimal `json:"monthlyBudget"`
}

func (c *Client) InvestmentSummary(ctx context.Context) (InvestmentSummary, error) {
	var out InvestmentSummary
	err := c.do(ctx, http.MethodGet, "/api/investments/summary", nil, nil, &out)
	return out, err
}

func (c *Client) ContributionPlan(ctx context.Context) (invest.Plan, error) {
	var out invest.Plan
	err := c.do(ctx, http.MethodGet, "/api/investments/contribution-plan", nil, nil, &out)
	return out, err
}

func (c *Client) Contributions(ctx context.Context) ([]invest.Contribution, error) {
	var out []invest.Contribution
	err := c.do(ctx, http.MethodGet, "/api/investments/contributions", nil, nil, &out)
	return out, err
}

func (c *Client) ActionItems(ctx context.Context) ([]invest.ActionItem, error) {
	var out []invest.ActionItem
	err := c.do(ctx, http.MethodGet, "/api/investments/action-items", nil, nil, &out)
	return out, err
}

func (c *Client) UpdateConfig(ctx context.Context, cfg invest.PlanConfig) (invest.PlanConfig, error) {
	var out invest.PlanConfig
	err := c.do(ctx, http.MethodPut, "/api/investments/config", nil, cfg, &out)
	return out, err
}

func (c *Client) AddContribution(ctx context.Context, contrib invest.Contribution) (invest.Contribution, error) {
	if contrib.Type == "" {
		return invest.Contribution{}, &ValidationError{Field: "Type"}
	}
	var out invest.Contribution
	err := c.do(ctx, http.MethodPost, "/api/investments/contributions", nil, contrib, &out)
	return out, err
}

func (c *Client) SetHolding(ctx context.Context, asset invest.AssetType, value decimal.Decimal) (invest.Holding, error) {
	var out invest.Holding
	body := map[string]decimal.Decimal{"current_value": value}
	err := c.do(ctx, http.MethodPut, "/api/investments/holdings/"+url.PathEscape(string(asset)), nil, body, &out)
	return out, err
}

func (c *Client) StartPlan(ctx context.Context) (invest.PlanConfig, error) {
	var out invest.PlanConfig
	err := c.do(ctx, http.MethodPost, "/api/investments/start-plan", nil, nil, &out)
	return out, err
}

// Export downloads the transactions of dr as "csv" or "xlsx" and returns the
// file name suggested by the server.
func (c *Client) Export(ctx context.Context, dr core.DateRange, format string) ([]byte, string, error) {
	q := rangeQuery(dr)
	q.Set("format", format)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/expenses/export", q, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", ErrConnection
	}
	name := "transactions." + format
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return data, name, nil
}
