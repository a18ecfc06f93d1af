package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     string
		wantStart string
		wantEnd   string
		wantErr   error
	}{
		{name: "defaults to current month", query: "", wantStart: "2025-03-01", wantEnd: "2025-03-17"},
		{name: "explicit range", query: "startDate=2025-01-01&endDate=2025-01-31", wantStart: "2025-01-01", wantEnd: "2025-01-31"},
		{name: "start only", query: "startDate=2025-02-10", wantStart: "2025-02-10", wantEnd: "2025-03-17"},
		{name: "inverted range", query: "startDate=2025-02-10&endDate=2025-02-01", wantErr: core.ErrInvalidRange},
		{name: "malformed date", query: "startDate=10/02/2025", wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/expenses?"+tt.query, nil)
			dr, err := parseDateRange(r, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dr.Start.String() != tt.wantStart || dr.End.String() != tt.wantEnd {
				t.Errorf("range = %s..%s, want %s..%s", dr.Start, dr.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "single object", body: `{"email":"a@b.c"}`},
		{name: "trailing whitespace", body: "{\"email\":\"a@b.c\"}\n"},
		{name: "not json", body: `email=a@b.c`, wantErr: true},
		{name: "two objects", body: `{"email":"a"}{"email":"b"}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst verifyEmailRequest
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if tt.wantErr {
				if !errors.Is(err, errBadJSON) {
					t.Fatalf("err = %v, want errBadJSON", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dst.Email != "a@b.c" {
				t.Errorf("Email = %q", dst.Email)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	for raw, want := range map[string]int64{"1": 1, "42": 42} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.SetPathValue("id", raw)
		got, err := pathID(r)
		if err != nil || got != want {
			t.Errorf("pathID(%q) = %d, %v", raw, got, err)
		}
	}
	for _, raw := range []string{"", "0", "-3", "abc"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.SetPathValue("id", raw)
		if _, err := pathID(r); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("pathID(%q) err = %v, want ErrInvalidInput", raw, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct{ header, want string }{
		{"Bearer abc.def", "abc.def"},
		{"bearer  abc.def ", "abc.def"},
		{"Basic Zm9vOmJhcg==", ""},
		{"abc.def", ""},
		{"", ""},
	}
	for _, tt := range tests {
		header, want := tt.header, tt.want
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := bearerToken(r); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
