package node

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/logging"
	"github.com/Sternrassler/drata-client/pkg/resources"
)

var (
	drataActionItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drata_action_items_total",
		Help: "Input items processed by the action node",
	}, []string{"resource", "operation", "result"})
)

// ActionConfig configures an Action. Zero values select the defaults.
type ActionConfig struct {
	Registry *resources.Registry
	Notice   *logging.Notice

	// Connect builds the API for one invocation. Defaults to Connect.
	Connect func(Credentials) (resources.API, error)
}

// Action executes one resource operation per input item.
type Action struct {
	registry *resources.Registry
	notice   *logging.Notice
	connect  func(Credentials) (resources.API, error)
	logger   zerolog.Logger
}

// NewAction creates an action node.
func NewAction(cfg ActionConfig) *Action {
	a := &Action{
		registry: cfg.Registry,
		notice:   cfg.Notice,
		connect:  cfg.Connect,
		logger:   log.With().Str("component", "node").Str("node", "action").Logger(),
	}
	if a.registry == nil {
		a.registry = resources.Default()
	}
	if a.notice == nil {
		a.notice = logging.DefaultNotice()
	}
	if a.connect == nil {
		a.connect = func(creds Credentials) (resources.API, error) {
			return Connect(creds)
		}
	}
	return a
}

// Execute runs the node over itemCount input items. Resource and operation
// are read from the first item and apply to all of them.
//
// Every output item carries a pairedItem field with the index of the input
// item it came from. When the host continues on failure, a failing item
// yields {"error": message} and processing moves on.
func (a *Action) Execute(ctx context.Context, host Host, itemCount int) ([]client.Item, error) {
	a.notice.Emit()

	if itemCount == 0 {
		return []client.Item{}, nil
	}

	first, err := host.Parameters(0)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	head := resources.Input{Params: first}
	resource := head.OptionalString("resource")
	operation := head.OptionalString("operation")

	creds, err := host.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	api, err := a.connect(creds)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if closer, ok := api.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	logger := a.logger.With().Str("resource", resource).Str("operation", operation).Logger()

	var out []client.Item
	for i := 0; i < itemCount; i++ {
		result, err := a.executeItem(ctx, api, host, resource, operation, i)
		if err != nil {
			drataActionItemsTotal.WithLabelValues(resource, operation, "error").Inc()
			if ctx.Err() != nil || !host.ContinueOnFail() {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			logger.Warn().Err(err).Int("item", i).Msg("Item failed - continuing")
			out = append(out, paired(client.Item{"error": err.Error()}, i))
			continue
		}
		drataActionItemsTotal.WithLabelValues(resource, operation, "success").Inc()
		out = appendResult(out, result, i)
	}

	logger.Debug().Int("items", itemCount).Int("output", len(out)).Msg("Action executed")
	return out, nil
}

func (a *Action) executeItem(ctx context.Context, api resources.API, host Host, resource, operation string, index int) (any, error) {
	p, err := host.Parameters(index)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	in := resources.Input{
		Params: p,
		Binary: func(property string) (client.File, error) {
			return host.BinaryData(index, property)
		},
	}
	return a.registry.Execute(ctx, api, resource, operation, in)
}

// appendResult spreads list results and appends object results, tagging each
// with the input index.
func appendResult(out []client.Item, result any, index int) []client.Item {
	switch v := result.(type) {
	case nil:
		return out
	case []client.Item:
		for _, item := range v {
			out = append(out, paired(item, index))
		}
	case []any:
		for _, elem := range v {
			if item, ok := elem.(map[string]any); ok {
				out = append(out, paired(item, index))
			} else {
				out = append(out, paired(client.Item{"data": elem}, index))
			}
		}
	case map[string]any:
		out = append(out, paired(v, index))
	default:
		out = append(out, paired(client.Item{"data": v}, index))
	}
	return out
}

// paired returns a copy of item with pairedItem set.
func paired(item client.Item, index int) client.Item {
	out := make(client.Item, len(item)+1)
	for k, v := range item {
		out[k] = v
	}
	out["pairedItem"] = map[string]any{"item": index}
	return out
}
