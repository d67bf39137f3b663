package resources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/pagination"
	"github.com/Sternrassler/drata-client/pkg/params"
)

// pathWith renders format with the escaped values of the named parameters.
func pathWith(in Input, format string, names ...string) (string, error) {
	args := make([]any, len(names))
	for i, name := range names {
		v, err := in.String(name)
		if err != nil {
			return "", err
		}
		args[i] = url.PathEscape(v)
	}
	return fmt.Sprintf(format, args...), nil
}

// call sends one request and returns the decoded response.
func call(method, format string, ids ...string) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		path, err := pathWith(in, format, ids...)
		if err != nil {
			return nil, err
		}
		return api.Do(ctx, client.Request{Method: method, Path: path})
	}
}

func getOne(format string, ids ...string) Handler {
	return call(http.MethodGet, format, ids...)
}

func remove(format string, ids ...string) Handler {
	return call(http.MethodDelete, format, ids...)
}

// fetchList honours returnAll: all pages through the pagination engine, or a
// single page of limit items.
func fetchList(ctx context.Context, api API, in Input, path string, query map[string]any) (any, error) {
	req := client.Request{Method: http.MethodGet, Path: path, Query: query}
	if in.Bool("returnAll", false) {
		return pagination.FetchAll(ctx, api, req)
	}
	return pagination.FetchPage(ctx, api, req, in.Int("limit", DefaultLimit))
}

// listFiltered lists path with the cleaned filters collection as query.
func listFiltered(path string) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		return fetchList(ctx, api, in, path, in.Fields("filters"))
	}
}

// listSub lists a sub-collection of one entity.
func listSub(format string, ids ...string) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		path, err := pathWith(in, format, ids...)
		if err != nil {
			return nil, err
		}
		return fetchList(ctx, api, in, path, nil)
	}
}

// listBy lists path filtered by the given required parameters.
func listBy(path string, names ...string) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		query := make(map[string]any, len(names))
		for _, name := range names {
			v, err := in.String(name)
			if err != nil {
				return nil, err
			}
			query[name] = v
		}
		return fetchList(ctx, api, in, path, query)
	}
}

// findBy sends a GET with the given required parameters as query, without paging.
func findBy(path string, names ...string) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		query := make(map[string]any, len(names))
		for _, name := range names {
			v, err := in.String(name)
			if err != nil {
				return nil, err
			}
			query[name] = v
		}
		return api.Do(ctx, client.Request{Method: http.MethodGet, Path: path, Query: query})
	}
}

// bodySpec describes a JSON body: required parameters copied as-is, an
// optional collection merged on top, and date fields normalized to YYYY-MM-DD.
type bodySpec struct {
	required   []string
	rename     map[string]string
	collection string
	dates      []string
}

func (s bodySpec) build(in Input) (map[string]any, error) {
	body := map[string]any{}
	for _, name := range s.required {
		v, ok := in.Params[name]
		if !ok || v == nil || v == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
		field := name
		if renamed, ok := s.rename[name]; ok {
			field = renamed
		}
		body[field] = v
	}

	if s.collection != "" {
		for k, v := range in.Fields(s.collection) {
			body[k] = v
		}
	}

	if err := formatDates(body, s.dates...); err != nil {
		return nil, err
	}
	return body, nil
}

// send builds the body and sends it to the rendered path.
func send(method, format string, ids []string, spec bodySpec) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		path, err := pathWith(in, format, ids...)
		if err != nil {
			return nil, err
		}
		body, err := spec.build(in)
		if err != nil {
			return nil, err
		}
		return api.Do(ctx, client.Request{Method: method, Path: path, Body: body})
	}
}

func create(path string, spec bodySpec) Handler {
	return send(http.MethodPost, path, nil, spec)
}

func update(format, id string, spec bodySpec) Handler {
	return send(http.MethodPut, format, []string{id}, spec)
}

// upload sends the item's binary data with the built fields as multipart form.
func upload(format, id string, spec bodySpec) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		path, err := pathWith(in, format, id)
		if err != nil {
			return nil, err
		}
		fields, err := spec.build(in)
		if err != nil {
			return nil, err
		}
		file, err := in.File()
		if err != nil {
			return nil, err
		}
		return api.Upload(ctx, path, file, fields)
	}
}

// formatDates rewrites the named fields of m as YYYY-MM-DD dates. Absent and
// empty fields are left alone.
func formatDates(m map[string]any, fields ...string) error {
	for _, field := range fields {
		v, ok := m[field]
		if !ok || v == nil || v == "" {
			continue
		}
		date, err := params.FormatDateForAPI(v)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		m[field] = date
	}
	return nil
}

// listAllSub always returns every page of a sub-collection.
func listAllSub(format string, ids ...string) Handler {
	return func(ctx context.Context, api API, in Input) (any, error) {
		path, err := pathWith(in, format, ids...)
		if err != nil {
			return nil, err
		}
		return pagination.FetchAll(ctx, api, client.Request{Method: http.MethodGet, Path: path})
	}
}
