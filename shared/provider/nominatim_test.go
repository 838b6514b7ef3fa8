package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNominatimSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Rua A, Petrópolis" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit = %q, want 1", got)
		}
		if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
		}
		w.Write([]byte(`[{"lat": "-22.45", "lon": "-43.05", "display_name": "Rua A"}]`))
	}))
	defer server.Close()

	p := NewNominatimProvider(server.URL, "", server.Client())
	results, err := p.Search(context.Background(), "Rua A, Petrópolis")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Lat != "-22.45" || results[0].Lon != "-43.05" {
		t.Fatalf("results = %+v", results)
	}
}

func TestNominatimReverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q, want /reverse", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lat") != "-22.45" || q.Get("lon") != "-43.05" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"display_name": "Petrópolis, Brasil"}`))
	}))
	defer server.Close()

	p := NewNominatimProvider(server.URL+"/", "test-agent", nil)
	result, err := p.Reverse(context.Background(), -22.45, -43.05)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if result.DisplayName != "Petrópolis, Brasil" {
		t.Fatalf("DisplayName = %q", result.DisplayName)
	}
}

func TestNominatimNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewNominatimProvider(server.URL, "", nil)
	_, err := p.Reverse(context.Background(), 0, 0)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("Reverse error = %v, want ErrUnexpectedStatus", err)
	}
}
