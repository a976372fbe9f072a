package medfind

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSearch(t *testing.T) {
	var gotPath, gotAuth, gotQ, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQ = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		_ = json.NewEncoder(w).Encode(SearchResult{
			Query:   "thermometer",
			Limit:   5,
			Results: []Listing{{Title: "Digital Thermometer", URL: "https://x/1"}},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithAPIKey("secret"))

	res, err := client.Search(context.Background(), "thermometer", WithLimit(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotPath != "/api/search" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQ != "thermometer" || gotLimit != "5" {
		t.Errorf("q = %q, limit = %q", gotQ, gotLimit)
	}
	if len(res.Results) != 1 || res.Results[0].Title != "Digital Thermometer" {
		t.Errorf("results = %v", res.Results)
	}
}

func TestClientLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/live" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(LiveResult{Query: "nebulizer"})
	}))
	defer srv.Close()

	client := New(srv.URL)

	res, err := client.Live(context.Background(), "nebulizer")
	if err != nil {
		t.Fatalf("Live: %v", err)
	}
	if res.Query != "nebulizer" {
		t.Errorf("query = %q", res.Query)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "validation_failed",
			"message": "no query provided",
		})
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.Search(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "validation_failed" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("validation error does not match ErrEmptyQuery: %v", err)
	}
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.Search(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "gateway exploded" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClientHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Checks: map[string]string{"corpus": "ok"}})
	}))
	defer srv.Close()

	client := New(srv.URL)

	h, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if h.Status != "ok" || h.Checks["corpus"] != "ok" {
		t.Errorf("health = %+v", h)
	}
}
