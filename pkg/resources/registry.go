// Package resources maps (resource, operation) pairs of the Drata action node
// to the API calls that implement them.
package resources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Sternrassler/drata-client/pkg/client"
)

var (
	// ErrUnknownOperation is returned for a (resource, operation) pair without a handler.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrMissingParameter is returned when a required parameter is absent or empty.
	ErrMissingParameter = errors.New("missing parameter")
)

// API is the subset of *client.Client used by handlers.
type API interface {
	Do(ctx context.Context, req client.Request) (any, error)
	Upload(ctx context.Context, path string, file client.File, fields map[string]any) (client.Item, error)
}

// Key identifies one operation of one resource.
type Key struct {
	Resource  string
	Operation string
}

func (k Key) String() string {
	return k.Resource + "." + k.Operation
}

// Handler performs one operation. It returns a single object, a list of
// objects or whatever the endpoint answered with.
type Handler func(ctx context.Context, api API, in Input) (any, error)

// Registry holds the handlers. It is safe for concurrent use.
type Registry struct {
	mtx      sync.RWMutex
	handlers map[Key]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Key]Handler),
	}
}

// Add registers h for resource and operation, replacing any previous handler.
func (r *Registry) Add(resource, operation string, h Handler) *Registry {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.handlers[Key{Resource: resource, Operation: operation}] = h

	return r
}

// Get returns the handler for resource and operation.
func (r *Registry) Get(resource, operation string) (Handler, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	h, ok := r.handlers[Key{Resource: resource, Operation: operation}]
	return h, ok
}

// Execute runs the handler for resource and operation.
func (r *Registry) Execute(ctx context.Context, api API, resource, operation string, in Input) (any, error) {
	h, ok := r.Get(resource, operation)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, resource, operation)
	}
	return h(ctx, api, in)
}

// Keys returns the registered keys sorted by resource, then operation.
func (r *Registry) Keys() []Key {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	keys := make([]Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Resource != keys[j].Resource {
			return keys[i].Resource < keys[j].Resource
		}
		return keys[i].Operation < keys[j].Operation
	})
	return keys
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry with every Drata resource registered.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerCompliance(defaultRegistry)
		registerPeople(defaultRegistry)
		registerInventory(defaultRegistry)
		registerAudit(defaultRegistry)
	})
	return defaultRegistry
}
