package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientEmptyURL(t *testing.T) {
	if c := NewClient("", "tok", "default"); c != nil {
		t.Fatal("expected nil client for empty base URL")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	var stored []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/profiles/casa/budgets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}

		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(stored)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", "casa")
	ctx := context.Background()

	if _, err := c.Load(ctx, "budgets"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before Save = %v, want ErrNotFound", err)
	}

	doc := []byte(`[{"id":"b1"}]`)
	if err := c.Save(ctx, "budgets", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := c.Load(ctx, "budgets")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(doc) {
		t.Fatalf("Load = %s, want %s", got, doc)
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := NewClient(srv.URL, "tok", "default")
		_, err := c.Load(context.Background(), "budgets")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}
