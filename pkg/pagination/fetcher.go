package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageSize is the number of items requested per page.
const PageSize = 50

// Prometheus metrics for pagination.
var (
	drataPaginationPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drata_pagination_pages_total",
		Help: "Total number of list pages fetched",
	})

	drataPaginationItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drata_pagination_items_total",
		Help: "Total number of items collected from list pages",
	})
)

// Config holds fetcher configuration.
type Config struct {
	// PageSize is sent as the limit query parameter.
	PageSize int

	// MaxPages stops the walk after this many pages. 0 means unbounded.
	MaxPages int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: PageSize,
		MaxPages: 0,
	}
}

// Fetcher walks paginated list endpoints through a Requester.
type Fetcher struct {
	requester client.Requester
	config    Config
	logger    zerolog.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(requester client.Requester, config Config) *Fetcher {
	if config.PageSize <= 0 {
		config.PageSize = PageSize
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Fetcher{
		requester: requester,
		config:    config,
		logger:    log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll requests every page of req and returns the concatenated items in
// API order.
func (f *Fetcher) FetchAll(ctx context.Context, req client.Request) ([]client.Item, error) {
	start := time.Now()
	items := []client.Item{}

	for page := 1; ; page++ {
		if f.config.MaxPages > 0 && page > f.config.MaxPages {
			f.logger.Warn().
				Str("endpoint", req.Path).
				Int("max_pages", f.config.MaxPages).
				Int("items", len(items)).
				Msg("Page limit reached - returning collected items")
			break
		}

		pageReq := req
		pageReq.Query = withPaging(req.Query, f.config.PageSize, page)

		resp, err := f.requester.Do(ctx, pageReq)
		if err != nil {
			f.logger.Debug().
				Err(err).
				Str("endpoint", req.Path).
				Int("page", page).
				Msg("Page fetch failed")
			return nil, err
		}
		drataPaginationPagesTotal.Inc()

		data, ok := dataArray(resp)
		if !ok {
			break
		}

		items = appendItems(items, data)
		drataPaginationItemsTotal.Add(float64(len(data)))

		if len(data) < f.config.PageSize {
			break
		}
	}

	f.logger.Debug().
		Str("endpoint", req.Path).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

// FetchPage requests a single page of at most limit items.
func (f *Fetcher) FetchPage(ctx context.Context, req client.Request, limit int) ([]client.Item, error) {
	pageReq := req
	pageReq.Query = withLimit(req.Query, limit)

	resp, err := f.requester.Do(ctx, pageReq)
	if err != nil {
		return nil, err
	}
	drataPaginationPagesTotal.Inc()

	data, _ := dataArray(resp)
	drataPaginationItemsTotal.Add(float64(len(data)))
	return appendItems([]client.Item{}, data), nil
}

// FetchAll fetches every page of req with the default configuration.
func FetchAll(ctx context.Context, requester client.Requester, req client.Request) ([]client.Item, error) {
	return NewFetcher(requester, DefaultConfig()).FetchAll(ctx, req)
}

// FetchPage fetches a single page of req with the default configuration.
func FetchPage(ctx context.Context, requester client.Requester, req client.Request, limit int) ([]client.Item, error) {
	return NewFetcher(requester, DefaultConfig()).FetchPage(ctx, req, limit)
}

// withPaging copies query and sets limit and page on the copy.
func withPaging(query map[string]any, limit, page int) map[string]any {
	out := make(map[string]any, len(query)+2)
	for k, v := range query {
		out[k] = v
	}
	out["limit"] = limit
	out["page"] = page
	return out
}

func withLimit(query map[string]any, limit int) map[string]any {
	out := make(map[string]any, len(query)+1)
	for k, v := range query {
		out[k] = v
	}
	out["limit"] = limit
	return out
}

// dataArray returns the "data" array of a list response.
func dataArray(resp any) ([]any, bool) {
	obj, ok := resp.(map[string]any)
	if !ok {
		return nil, false
	}
	data, ok := obj["data"].([]any)
	return data, ok
}

// appendItems appends the object elements of data to items.
func appendItems(items []client.Item, data []any) []client.Item {
	for _, e := range data {
		if item, ok := e.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}
