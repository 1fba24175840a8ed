package erpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Simplici0/producao/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.UpstreamConfig{
		BaseURL: srv.URL + "/",
		Token:   "secret",
		Timeout: 5 * time.Second,
	}, nil)
}

func TestListBoms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/production/bom" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "b1", "product_code": "PROD-1", "version": "2.0", "lot_size": "100", "items": [
				{"component_code": "ING-001", "quantity": "0,5", "unit_cost": 4}
			]},
			{"id": "b2", "product_code": "PROD-2", "lot_size": 10, "items": []}
		]`))
	})

	records, err := client.ListBoms(context.Background())
	if err != nil {
		t.Fatalf("ListBoms: %v", err)
	}
	// b1 carries a comma decimal and is dropped.
	if len(records) != 1 || records[0].ID != "b2" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestLatestBom(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/production/bom/product/PROD-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "b1", "product_code": "PROD-1", "lot_size": 100, "items": [
			{"component_code": "ING-001", "quantity": 0.5, "unit_cost": "4"}
		]}`))
	})

	bom, err := client.LatestBom(context.Background(), "PROD-1")
	if err != nil {
		t.Fatalf("LatestBom: %v", err)
	}
	if bom.Version != "1.0" {
		t.Fatalf("Version = %q, want default 1.0", bom.Version)
	}
	if len(bom.Items) != 1 || bom.Items[0].UnitCost != 4 {
		t.Fatalf("unexpected items %+v", bom.Items)
	}
	if bom.TotalCost <= 0 {
		t.Fatalf("expected recomputed totals, got %v", bom.TotalCost)
	}

	if _, err := client.LatestBom(context.Background(), "MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing product err = %v, want ErrNotFound", err)
	}
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message": "erp offline"}`))
	})

	_, err := client.ListBoms(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "erp offline" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}
