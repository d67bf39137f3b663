// Package poll implements change detection over the Drata API.
//
// A Trigger runs one strategy per invocation, selected by EventType, and
// turns the matching entities into flat events. Time-based strategies read
// the watermark saved by the previous invocation and only report entities
// changed since then; expiry strategies look a configurable number of days
// ahead instead.
//
// Every invocation that is not cancelled advances the watermark to the time
// the invocation started, including invocations whose strategy failed. A
// failed strategy is logged and yields no events.
//
// Example usage:
//
//	trigger, err := poll.NewTrigger(drataClient.WithRetry(3), store,
//		poll.ControlStatusChanged, poll.DefaultOptions())
//	events, err := trigger.Poll(ctx)
package poll
