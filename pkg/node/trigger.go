package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/logging"
	"github.com/Sternrassler/drata-client/pkg/poll"
	"github.com/Sternrassler/drata-client/pkg/resources"
	"github.com/Sternrassler/drata-client/pkg/watermark"
)

// TriggerConfig configures a TriggerNode. Zero values select the defaults.
type TriggerConfig struct {
	Notice *logging.Notice

	// Connect builds the requester for one poll. Defaults to a client from
	// Connect that retries rate limited requests. A requester with a Close
	// method is closed when the poll returns.
	Connect func(Credentials) (client.Requester, error)
}

// TriggerNode polls Drata for the event selected in its parameters.
type TriggerNode struct {
	notice  *logging.Notice
	connect func(Credentials) (client.Requester, error)
	logger  zerolog.Logger
}

// NewTriggerNode creates a trigger node.
func NewTriggerNode(cfg TriggerConfig) *TriggerNode {
	n := &TriggerNode{
		notice:  cfg.Notice,
		connect: cfg.Connect,
		logger:  log.With().Str("component", "node").Str("node", "trigger").Logger(),
	}
	if n.notice == nil {
		n.notice = logging.DefaultNotice()
	}
	if n.connect == nil {
		n.connect = func(creds Credentials) (client.Requester, error) {
			c, err := Connect(creds)
			if err != nil {
				return nil, err
			}
			return Retrying(c), nil
		}
	}
	return n
}

// retryingClient sends every request through Client.Retrying. Close releases
// the client's idle connections.
type retryingClient struct {
	*client.Client
}

func (r retryingClient) Do(ctx context.Context, req client.Request) (any, error) {
	return r.Retrying(ctx, req)
}

// Retrying returns a requester that retries rate limited requests of c and
// closes c when the trigger node is done with it.
func Retrying(c *client.Client) client.Requester {
	return retryingClient{Client: c}
}

// Poll runs one poll for the instance whose watermark lives in store. It
// returns nil when there is nothing to emit.
func (n *TriggerNode) Poll(ctx context.Context, host Host, store watermark.Store) ([]poll.Event, error) {
	n.notice.Emit()

	p, err := host.Parameters(0)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	event, options := TriggerOptions(p)
	if _, err := poll.ParseEventType(string(event)); err != nil {
		return nil, err
	}

	creds, err := host.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	requester, err := n.connect(creds)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if closer, ok := requester.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	trigger, err := poll.NewTrigger(requester, store, event, options)
	if err != nil {
		return nil, err
	}

	events, err := trigger.Poll(ctx)
	if err != nil {
		return nil, err
	}
	n.logger.Debug().Str("event", string(event)).Int("events", len(events)).Msg("Trigger polled")
	return events, nil
}

// TriggerOptions reads the event type and the options collection from the
// trigger parameters.
func TriggerOptions(p map[string]any) (poll.EventType, poll.Options) {
	in := resources.Input{Params: p}
	opts, _ := p["options"].(map[string]any)
	o := resources.Input{Params: opts}

	defaults := poll.DefaultOptions()
	return poll.EventType(in.OptionalString("event")), poll.Options{
		DaysBeforeExpiry: o.Int("daysBeforeExpiry", defaults.DaysBeforeExpiry),
		FrameworkID:      o.OptionalString("frameworkId"),
		IncludeDetails:   o.Bool("includeDetails", defaults.IncludeDetails),
		AckConcurrency:   o.Int("ackConcurrency", defaults.AckConcurrency),
	}
}
