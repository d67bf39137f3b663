package poll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/params"
	"github.com/Sternrassler/drata-client/pkg/watermark"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultLookback is the window used when no watermark has been saved yet.
const DefaultLookback = 24 * time.Hour

// DefaultDaysBeforeExpiry is the expiry horizon of the expiring strategies.
const DefaultDaysBeforeExpiry = 30

// ErrUnknownEvent is returned for an event type without a strategy.
var ErrUnknownEvent = errors.New("unknown event type")

// Prometheus metrics for polling.
var (
	drataPollEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drata_poll_events_total",
		Help: "Total number of events emitted by event type",
	}, []string{"event"})

	drataPollErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drata_poll_errors_total",
		Help: "Total number of failed poll strategies by event type",
	}, []string{"event"})

	drataPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drata_poll_duration_seconds",
		Help:    "Poll invocation duration in seconds by event type",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"event"})
)

// EventType selects the change-detection strategy.
type EventType string

// Supported event types.
const (
	ControlStatusChanged        EventType = "controlStatusChanged"
	PersonnelComplianceChanged  EventType = "personnelComplianceChanged"
	VendorRiskChanged           EventType = "vendorRiskChanged"
	AuditEventCreated           EventType = "auditEventCreated"
	EvidenceExpiring            EventType = "evidenceExpiring"
	BackgroundCheckExpiring     EventType = "backgroundCheckExpiring"
	TrainingOverdue             EventType = "trainingOverdue"
	PolicyAcknowledgmentPending EventType = "policyAcknowledgmentPending"
)

// Event is one emitted domain event.
type Event = map[string]any

// Options tune the strategies.
type Options struct {
	// DaysBeforeExpiry is the horizon of the expiring strategies. 0 means DefaultDaysBeforeExpiry.
	DaysBeforeExpiry int

	// FrameworkID restricts controlStatusChanged to one framework.
	FrameworkID string

	// IncludeDetails attaches the full source entity to every event.
	IncludeDetails bool

	// AckConcurrency bounds the parallel acknowledgment requests of
	// policyAcknowledgmentPending. Values below 2 fetch sequentially.
	AckConcurrency int
}

// DefaultOptions returns the default strategy options.
func DefaultOptions() Options {
	return Options{
		DaysBeforeExpiry: DefaultDaysBeforeExpiry,
		IncludeDetails:   true,
		AckConcurrency:   1,
	}
}

// window is the time frame of one invocation.
type window struct {
	// since is the previous watermark.
	since    time.Time
	sinceISO string

	// now was captured before any request was made.
	now time.Time
}

// strategy fetches the entities of one event type and maps them to events.
type strategy func(ctx context.Context, t *Trigger, w window) ([]Event, error)

// strategies maps every supported event type to its strategy.
var strategies = map[EventType]strategy{
	ControlStatusChanged:        pollControlStatusChanges,
	PersonnelComplianceChanged:  pollPersonnelComplianceChanges,
	VendorRiskChanged:           pollVendorRiskChanges,
	AuditEventCreated:           pollAuditEvents,
	EvidenceExpiring:            pollExpiringEvidence,
	BackgroundCheckExpiring:     pollExpiringBackgroundChecks,
	TrainingOverdue:             pollOverdueTraining,
	PolicyAcknowledgmentPending: pollPendingPolicyAcknowledgments,
}

// EventTypes returns the supported event types in name order.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(strategies))
	for et := range strategies {
		types = append(types, et)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParseEventType returns the event type named s or ErrUnknownEvent.
func ParseEventType(s string) (EventType, error) {
	event := EventType(s)
	if _, ok := strategies[event]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return event, nil
}

// Trigger polls one event type for one trigger instance.
type Trigger struct {
	event     EventType
	requester client.Requester
	store     watermark.Store
	options   Options
	now       func() time.Time
	logger    zerolog.Logger
}

// NewTrigger creates a trigger. The requester is used for every API call;
// pass a retrying requester to survive 429 responses.
func NewTrigger(requester client.Requester, store watermark.Store, event EventType, options Options) (*Trigger, error) {
	if _, err := ParseEventType(string(event)); err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, fmt.Errorf("requester is required")
	}
	if store == nil {
		return nil, fmt.Errorf("watermark store is required")
	}
	if options.DaysBeforeExpiry <= 0 {
		options.DaysBeforeExpiry = DefaultDaysBeforeExpiry
	}
	if options.AckConcurrency < 1 {
		options.AckConcurrency = 1
	}

	return &Trigger{
		event:     event,
		requester: requester,
		store:     store,
		options:   options,
		now:       time.Now,
		logger:    log.With().Str("component", "poll").Str("event", string(event)).Logger(),
	}, nil
}

// Event returns the trigger's event type.
func (t *Trigger) Event() EventType {
	return t.event
}

// Poll runs one invocation. It returns nil when there are no events.
//
// A strategy failure is logged and yields no events; the watermark still
// advances. When ctx is cancelled the watermark is left untouched and the
// context error is returned.
func (t *Trigger) Poll(ctx context.Context) ([]Event, error) {
	run, ok := strategies[t.event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t.event)
	}

	startTime := time.Now()
	defer func() {
		drataPollDuration.WithLabelValues(string(t.event)).Observe(time.Since(startTime).Seconds())
	}()

	now := t.now().UTC()

	w, err := t.loadWindow(ctx, now)
	if err != nil {
		return nil, err
	}

	events, err := run(ctx, t, w)
	if ctxErr := ctx.Err(); ctxErr != nil {
		t.logger.Warn().Msg("Poll cancelled - watermark not advanced")
		return nil, fmt.Errorf("poll %s: %w", t.event, ctxErr)
	}
	if err != nil {
		drataPollErrorsTotal.WithLabelValues(string(t.event)).Inc()
		t.logger.Error().
			Err(err).
			Str("since", w.sinceISO).
			Msg("Poll strategy failed - no events emitted")
		events = nil
	}

	if err := t.store.Save(ctx, params.FormatISO(now)); err != nil {
		return nil, fmt.Errorf("save watermark: %w", err)
	}

	drataPollEventsTotal.WithLabelValues(string(t.event)).Add(float64(len(events)))
	t.logger.Info().
		Int("events", len(events)).
		Str("since", w.sinceISO).
		Dur("duration", time.Since(startTime)).
		Msg("Poll complete")

	if len(events) == 0 {
		return nil, nil
	}
	return events, nil
}

// loadWindow reads the previous watermark. A missing or unreadable value
// falls back to now minus DefaultLookback.
func (t *Trigger) loadWindow(ctx context.Context, now time.Time) (window, error) {
	value, found, err := t.store.Load(ctx)
	if err != nil {
		return window{}, fmt.Errorf("load watermark: %w", err)
	}

	since := now.Add(-DefaultLookback)
	if found && value != "" {
		parsed, err := params.ParseTime(value)
		if err != nil {
			t.logger.Warn().Err(err).Str("watermark", value).Msg("Unreadable watermark - using default lookback")
		} else {
			since = parsed
		}
	}

	return window{
		since:    since,
		sinceISO: params.FormatISO(since),
		now:      now,
	}, nil
}
