package erp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"elcotec/internal"
	"elcotec/internal/config"
	"elcotec/internal/customers"
	"elcotec/internal/util"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testProfile() customers.Profile {
	return customers.Profile{
		Domain:         "vdlgroep.com",
		Name:           "VDL Groep",
		Administration: "01",
		DebtorNumber:   "100245",
		RelationNumber: "4511",
	}
}

func orderItem() internal.LineItem {
	return internal.LineItem{
		Kind:        internal.KindOrder,
		ArticleCode: "340.221.06",
		Description: "Flenslager compleet",
		Quantity:    util.FloatPtr(10),
		Unit:        "PCS",
		Priority:    "Normal",
		Status:      "Draft",
		Order:       &internal.OrderFields{PONumber: "40012345", UnitPrice: util.FloatPtr(14.5)},
	}
}

func TestInjectItemRetriesTransientFailure(t *testing.T) {
	attempt := 0

	cfg, _ := config.Load()
	cfg.MKGAPIToken = "test"
	cfg.MKGAPIBaseURL = "https://example.test/api/v1"
	cfg.MKGRateLimit = 1000
	cfg.MKGDryRun = false

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/v1/sales-orders" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test" {
				t.Fatalf("unexpected auth header %q", got)
			}

			attempt++
			if attempt == 1 {
				return &http.Response{
					StatusCode: http.StatusServiceUnavailable,
					Body:       io.NopCloser(strings.NewReader(`{"error":"maintenance"}`)),
					Header:     make(http.Header),
				}, nil
			}

			body, _ := io.ReadAll(r.Body)
			var payload map[string]any
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if payload["poNumber"] != "40012345" || payload["administration"] != "01" {
				t.Fatalf("payload missing order fields: %v", payload)
			}

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"success":true,"data":{}}`)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if err := client.InjectItem(context.Background(), testProfile(), internal.ContentOrder, orderItem()); err != nil {
		t.Fatal(err)
	}
	if attempt != 2 {
		t.Fatalf("expected retry, got %d attempts", attempt)
	}
}

func TestInjectItemRejectsMismatchedKind(t *testing.T) {
	cfg, _ := config.Load()
	cfg.MKGAPIToken = "test"
	client := NewClient(cfg)

	item := orderItem()
	if err := client.InjectItem(context.Background(), testProfile(), internal.ContentRevision, item); err == nil {
		t.Fatal("expected error for order item injected as revision")
	}
}

func TestInjectItemsDryRunSkipsNetwork(t *testing.T) {
	cfg, _ := config.Load()
	cfg.MKGAPIToken = "test"
	cfg.MKGDryRun = true

	client := NewClient(cfg)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			t.Fatal("dry run must not hit the network")
			return nil, nil
		}),
	}

	result, err := client.InjectItems(context.Background(), testProfile(), internal.ContentOrder, []internal.LineItem{orderItem(), orderItem()})
	if err != nil {
		t.Fatal(err)
	}
	if result.Injected != 2 || result.Skipped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}
