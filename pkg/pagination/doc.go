// Package pagination fetches every item of a paginated Drata list endpoint.
//
// Drata list endpoints accept limit and page query parameters and answer with
// {"data": [...]}. There is no total count, so the fetcher walks pages
// sequentially and stops at the first page shorter than the page size.
//
// Example usage:
//
//	items, err := pagination.FetchAll(ctx, drataClient.WithRetry(3), client.Request{
//		Method: http.MethodGet,
//		Path:   "/controls",
//		Query:  map[string]any{"frameworkId": "soc2"},
//	})
//
// The fetcher:
//   - Copies the caller's query and sets limit and page on the copy
//   - Requests pages 1, 2, 3, ... exactly once each
//   - Stops when data is missing, not an array, or shorter than the page size
//   - Returns the first request error unchanged and discards collected items
//
// A page that holds exactly PageSize items triggers one more request, which
// returns an empty page when the collection is exhausted.
package pagination
