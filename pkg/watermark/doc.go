// Package watermark persists the last-poll timestamp of a trigger instance.
//
// A watermark is an ISO-8601 string. The poll engine loads it at the start of
// an invocation and saves "now" at the end, so consecutive polls see only the
// changes made since the previous one.
//
// Stores:
//   - MemoryStore keeps the value in process (tests, single-shot CLI runs)
//   - RedisStore keeps it in Redis under a key scoped to workflow and node
//
// Redis key format:
//
//	drata:trigger:<workflow>:<node>:last_poll_time
//
// Example usage:
//
//	store := watermark.NewRedisStore(redisClient, watermark.Key{
//		WorkflowID: "wf-42",
//		NodeID:     "drata-trigger",
//	}, 0)
//	last, ok, err := store.Load(ctx)
package watermark
