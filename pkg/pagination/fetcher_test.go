package pagination

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/Sternrassler/drata-client/pkg/client"
)

// fakeRequester serves pages from a fixed list of page sizes and records requests.
type fakeRequester struct {
	pageSizes []int
	failPage  int
	requests  []client.Request
}

func (f *fakeRequester) Do(ctx context.Context, req client.Request) (any, error) {
	f.requests = append(f.requests, req)

	page, _ := req.Query["page"].(int)
	if page == 0 {
		page = 1
	}
	if page == f.failPage {
		return nil, &client.APIError{StatusCode: 500, ErrorClass: client.ErrorClassServer, Message: "boom"}
	}

	n := 0
	if page-1 < len(f.pageSizes) {
		n = f.pageSizes[page-1]
	}
	data := make([]any, n)
	for i := range data {
		data[i] = map[string]any{"id": fmt.Sprintf("%d-%d", page, i)}
	}
	return map[string]any{"data": data}, nil
}

func fullPages(n, last int) []int {
	sizes := make([]int, 0, n+1)
	for i := 0; i < n; i++ {
		sizes = append(sizes, PageSize)
	}
	return append(sizes, last)
}

func TestFetchAll_Termination(t *testing.T) {
	tests := []struct {
		name         string
		pageSizes    []int
		wantItems    int
		wantRequests int
	}{
		{"empty first page", []int{0}, 0, 1},
		{"single partial page", []int{7}, 7, 1},
		{"two full pages and partial", fullPages(2, 13), 113, 3},
		{"exact multiple needs trailing empty page", fullPages(3, 0), 150, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &fakeRequester{pageSizes: tt.pageSizes}

			items, err := FetchAll(context.Background(), req, client.Request{Path: "/controls"})
			if err != nil {
				t.Fatalf("FetchAll() error = %v", err)
			}
			if len(items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(items), tt.wantItems)
			}
			if len(req.requests) != tt.wantRequests {
				t.Errorf("requests = %d, want %d", len(req.requests), tt.wantRequests)
			}

			for i, r := range req.requests {
				if r.Query["page"] != i+1 {
					t.Errorf("request %d page = %v, want %d", i, r.Query["page"], i+1)
				}
				if r.Query["limit"] != PageSize {
					t.Errorf("request %d limit = %v, want %d", i, r.Query["limit"], PageSize)
				}
			}
		})
	}
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	req := &fakeRequester{pageSizes: fullPages(1, 2)}

	items, err := FetchAll(context.Background(), req, client.Request{Path: "/vendors"})
	if err != nil {
		t.Fatal(err)
	}

	if items[0]["id"] != "1-0" || items[PageSize]["id"] != "2-0" || items[PageSize+1]["id"] != "2-1" {
		t.Errorf("unexpected order: first=%v 51st=%v 52nd=%v", items[0]["id"], items[PageSize]["id"], items[PageSize+1]["id"])
	}
}

func TestFetchAll_DoesNotMutateQuery(t *testing.T) {
	query := map[string]any{"updatedAfter": "2024-01-01T00:00:00.000Z"}
	original := map[string]any{"updatedAfter": "2024-01-01T00:00:00.000Z"}
	req := &fakeRequester{pageSizes: fullPages(1, 0)}

	if _, err := FetchAll(context.Background(), req, client.Request{Path: "/controls", Query: query}); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(query, original) {
		t.Errorf("query mutated: %v", query)
	}
	if req.requests[0].Query["updatedAfter"] != "2024-01-01T00:00:00.000Z" {
		t.Error("caller query values should be forwarded")
	}
}

func TestFetchAll_ErrorPropagates(t *testing.T) {
	req := &fakeRequester{pageSizes: fullPages(3, 1), failPage: 2}

	items, err := FetchAll(context.Background(), req, client.Request{Path: "/personnel"})
	if items != nil {
		t.Errorf("items = %d, want nil on error", len(items))
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Errorf("error = %v, want the requester's APIError", err)
	}
	if len(req.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(req.requests))
	}
}

func TestFetchAll_NonArrayData(t *testing.T) {
	requester := client.RequesterFunc(func(ctx context.Context, req client.Request) (any, error) {
		return map[string]any{"data": "unexpected"}, nil
	})

	items, err := FetchAll(context.Background(), requester, client.Request{Path: "/risks"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestFetchAll_MaxPages(t *testing.T) {
	req := &fakeRequester{pageSizes: fullPages(10, 0)}
	fetcher := NewFetcher(req, Config{PageSize: PageSize, MaxPages: 2})

	items, err := fetcher.FetchAll(context.Background(), client.Request{Path: "/assets"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2*PageSize {
		t.Errorf("items = %d, want %d", len(items), 2*PageSize)
	}
	if len(req.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(req.requests))
	}
}

func TestFetchPage(t *testing.T) {
	req := &fakeRequester{pageSizes: []int{5}}

	items, err := FetchPage(context.Background(), req, client.Request{Path: "/users", Query: map[string]any{"role": "ADMIN"}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 {
		t.Errorf("items = %d, want 5", len(items))
	}
	if req.requests[0].Query["limit"] != 5 || req.requests[0].Query["role"] != "ADMIN" {
		t.Errorf("query = %v", req.requests[0].Query)
	}
	if _, ok := req.requests[0].Query["page"]; ok {
		t.Error("single page fetch should not set page")
	}
}

func TestFetchPage_MissingData(t *testing.T) {
	requester := client.RequesterFunc(func(ctx context.Context, req client.Request) (any, error) {
		return map[string]any{}, nil
	})

	items, err := FetchPage(context.Background(), requester, client.Request{Path: "/users"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %v, want empty slice", items)
	}
}
