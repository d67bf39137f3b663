package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/node"
	"github.com/Sternrassler/drata-client/pkg/poll"
	"github.com/Sternrassler/drata-client/pkg/watermark"
)

// triggerFlags are the trigger options shared by poll and watch.
type triggerFlags struct {
	nodeID           string
	daysBeforeExpiry int
	frameworkID      string
	includeDetails   bool
	ackConcurrency   int
}

func (f *triggerFlags) register(cmd *cobra.Command) {
	defaults := poll.DefaultOptions()
	cmd.Flags().StringVar(&f.nodeID, "node-id", "", "trigger instance id used in the watermark key (default: the event name)")
	cmd.Flags().IntVar(&f.daysBeforeExpiry, "days-before-expiry", defaults.DaysBeforeExpiry, "horizon of the expiring events in days")
	cmd.Flags().StringVar(&f.frameworkID, "framework-id", "", "restrict controlStatusChanged to one framework")
	cmd.Flags().BoolVar(&f.includeDetails, "include-details", defaults.IncludeDetails, "attach the full entity to every event")
	cmd.Flags().IntVar(&f.ackConcurrency, "ack-concurrency", defaults.AckConcurrency, "parallel acknowledgment requests of policyAcknowledgmentPending")
}

// parameters renders the flags as trigger node parameters.
func (f *triggerFlags) parameters(event string) map[string]any {
	return map[string]any{
		"event": event,
		"options": map[string]any{
			"daysBeforeExpiry": f.daysBeforeExpiry,
			"frameworkId":      f.frameworkID,
			"includeDetails":   f.includeDetails,
			"ackConcurrency":   f.ackConcurrency,
		},
	}
}

func (f *triggerFlags) key(cfg *Config, event string) watermark.Key {
	id := f.nodeID
	if id == "" {
		id = event
	}
	return watermark.Key{WorkflowID: cfg.WorkflowID, NodeID: id}
}

func newPollCommand(a *app) *cobra.Command {
	var (
		flags triggerFlags
		since string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "poll <event>",
		Short: "Poll one event type once and print the events",
		Long: `Poll one event type once and print the emitted events as a JSON array.

Without --redis-url the watermark lives in memory for this run only; use
--since to set the previous poll time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			event := args[0]

			store, closeStore, err := a.openStore(ctx, flags.key(a.cfg, event), since)
			if err != nil {
				return err
			}
			defer closeStore()

			if reset {
				if err := store.Reset(ctx); err != nil {
					return fmt.Errorf("reset watermark: %w", err)
				}
			}

			events, err := a.pollOnce(ctx, event, &flags, store)
			if err != nil {
				return err
			}
			if events == nil {
				events = []poll.Event{}
			}
			return writeJSON(cmd.OutOrStdout(), events)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&since, "since", "", "previous poll time for the in-memory watermark (ISO-8601)")
	cmd.Flags().BoolVar(&reset, "reset", false, "forget the stored watermark before polling")
	cmd.MarkFlagsMutuallyExclusive("since", "reset")

	return cmd
}

// pollOnce runs the trigger node for event against store.
func (a *app) pollOnce(ctx context.Context, event string, flags *triggerFlags, store watermark.Store) ([]poll.Event, error) {
	host := &node.StaticHost{
		Creds: a.cfg.Credentials(),
		Items: []map[string]any{flags.parameters(event)},
	}
	trigger := node.NewTriggerNode(node.TriggerConfig{
		Connect: func(creds node.Credentials) (client.Requester, error) {
			c, err := a.cfg.NewClient(creds)
			if err != nil {
				return nil, err
			}
			return node.Retrying(c), nil
		},
	})
	return trigger.Poll(ctx, host, store)
}

// openStore returns the Redis store when a Redis URL is configured and an
// in-memory store seeded with since otherwise.
func (a *app) openStore(ctx context.Context, key watermark.Key, since string) (watermark.Store, func(), error) {
	if a.cfg.RedisURL == "" {
		if since != "" {
			return watermark.NewMemoryStoreWith(since), func() {}, nil
		}
		return watermark.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.logger.Debug().Str("addr", opts.Addr).Str("key", key.String()).Msg("Using Redis watermark store")

	store := watermark.NewRedisStore(redisClient, key, a.cfg.WatermarkTTL)
	if since != "" {
		if err := store.Save(ctx, since); err != nil {
			redisClient.Close()
			return nil, nil, err
		}
	}
	return store, func() { redisClient.Close() }, nil
}
