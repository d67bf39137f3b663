package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/watermark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeAPI routes requests by path and records them.
type fakeAPI struct {
	mu       sync.Mutex
	routes   map[string]func(req client.Request) (any, error)
	requests []client.Request
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{routes: map[string]func(req client.Request) (any, error){}}
}

func (f *fakeAPI) Do(ctx context.Context, req client.Request) (any, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler, ok := f.routes[req.Path]
	f.mu.Unlock()

	if !ok {
		return nil, &client.APIError{StatusCode: 404, ErrorClass: client.ErrorClassClient, Message: "Not Found"}
	}
	return handler(req)
}

func (f *fakeAPI) list(path string, items ...map[string]any) {
	data := make([]any, len(items))
	for i, item := range items {
		data[i] = item
	}
	f.routes[path] = func(req client.Request) (any, error) {
		return map[string]any{"data": data}, nil
	}
}

func (f *fakeAPI) fail(path string, status int) {
	f.routes[path] = func(req client.Request) (any, error) {
		return nil, &client.APIError{StatusCode: status, ErrorClass: client.ErrorClassServer, Message: "boom"}
	}
}

func (f *fakeAPI) requestsTo(path string) []client.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.Request
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func newTestTrigger(t *testing.T, api client.Requester, store watermark.Store, event EventType, opts Options) *Trigger {
	t.Helper()
	trigger, err := NewTrigger(api, store, event, opts)
	require.NoError(t, err)
	trigger.now = func() time.Time { return fixedNow }
	return trigger
}

func TestNewTrigger_UnknownEvent(t *testing.T) {
	_, err := NewTrigger(newFakeAPI(), watermark.NewMemoryStore(), "somethingElse", DefaultOptions())
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestPoll_UnknownEventDoesNotTouchStore(t *testing.T) {
	store := watermark.NewMemoryStore()
	trigger := &Trigger{event: "bogus", requester: newFakeAPI(), store: store, now: time.Now}

	_, err := trigger.Poll(context.Background())
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, ok, _ := store.Load(context.Background())
	assert.False(t, ok)
}

func TestParseEventType(t *testing.T) {
	event, err := ParseEventType("evidenceExpiring")
	require.NoError(t, err)
	assert.Equal(t, EvidenceExpiring, event)

	_, err = ParseEventType("EvidenceExpiring")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEventTypes(t *testing.T) {
	types := EventTypes()
	assert.Len(t, types, 8)
	assert.Contains(t, types, PolicyAcknowledgmentPending)
}

func TestPoll_ControlStatusChanged(t *testing.T) {
	api := newFakeAPI()
	api.list("/controls",
		map[string]any{"id": float64(1), "name": "MFA", "status": "PASSED", "previousStatus": "FAILED", "updatedAt": "2024-06-15T10:00:00.000Z"},
		map[string]any{"id": float64(2), "name": "Backups", "status": "FAILED", "updatedAt": "2024-06-14T09:00:00.000Z"},
		map[string]any{"id": float64(3), "name": "No date", "status": "PASSED"},
	)
	store := watermark.NewMemoryStoreWith("2024-06-15T00:00:00.000Z")
	opts := DefaultOptions()
	opts.FrameworkID = "soc2"
	opts.IncludeDetails = false

	events, err := newTestTrigger(t, api, store, ControlStatusChanged, opts).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, Event{
		"eventType":      "controlStatusChanged",
		"controlId":      float64(1),
		"controlName":    "MFA",
		"status":         "PASSED",
		"previousStatus": "FAILED",
		"updatedAt":      "2024-06-15T10:00:00.000Z",
	}, events[0])

	reqs := api.requestsTo("/controls")
	require.Len(t, reqs, 1)
	assert.Equal(t, "2024-06-15T00:00:00.000Z", reqs[0].Query["updatedAfter"])
	assert.Equal(t, "soc2", reqs[0].Query["frameworkId"])

	saved, _, _ := store.Load(context.Background())
	assert.Equal(t, "2024-06-15T12:00:00.000Z", saved)
}

func TestPoll_DefaultWatermark(t *testing.T) {
	api := newFakeAPI()
	api.list("/personnel")
	store := watermark.NewMemoryStore()

	events, err := newTestTrigger(t, api, store, PersonnelComplianceChanged, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, events)

	reqs := api.requestsTo("/personnel")
	require.Len(t, reqs, 1)
	assert.Equal(t, "2024-06-14T12:00:00.000Z", reqs[0].Query["updatedAfter"])

	saved, ok, _ := store.Load(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "2024-06-15T12:00:00.000Z", saved)
}

func TestPoll_PersonnelComplianceChanged(t *testing.T) {
	api := newFakeAPI()
	person := map[string]any{
		"id": float64(7), "email": "ada@example.com", "firstName": "Ada", "lastName": "Lovelace",
		"complianceStatus": "NON_COMPLIANT", "updatedAt": "2024-06-15T11:00:00Z",
	}
	api.list("/personnel", person)
	store := watermark.NewMemoryStoreWith("2024-06-15T00:00:00.000Z")

	events, err := newTestTrigger(t, api, store, PersonnelComplianceChanged, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "Ada Lovelace", events[0]["name"])
	assert.Equal(t, "NON_COMPLIANT", events[0]["complianceStatus"])
	assert.Equal(t, person, events[0]["details"])
}

func TestPoll_VendorRiskChanged(t *testing.T) {
	api := newFakeAPI()
	api.list("/vendors",
		map[string]any{"id": "v1", "name": "Acme", "riskRating": "HIGH", "previousRiskRating": "LOW", "updatedAt": "2024-06-15T01:00:00.000Z"},
		map[string]any{"id": "v2", "name": "Same instant", "riskRating": "LOW", "updatedAt": "2024-06-15T00:00:00.000Z"},
	)
	store := watermark.NewMemoryStoreWith("2024-06-15T00:00:00.000Z")

	events, err := newTestTrigger(t, api, store, VendorRiskChanged, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1, "updatedAt equal to the watermark is not a change")
	assert.Equal(t, "v1", events[0]["vendorId"])
	assert.Equal(t, "HIGH", events[0]["riskRating"])
	assert.Equal(t, "LOW", events[0]["previousRiskRating"])
}

func TestPoll_AuditEventCreated(t *testing.T) {
	api := newFakeAPI()
	api.list("/audit-events",
		map[string]any{"id": "e1", "entityType": "CONTROL", "entityId": "c1", "action": "UPDATE", "userId": "u1", "timestamp": "2024-06-15T09:00:00Z"},
		map[string]any{"id": "e2", "entityType": "POLICY", "entityId": "p1", "action": "CREATE", "userId": "u2", "timestamp": "2024-06-15T09:30:00Z"},
	)
	store := watermark.NewMemoryStoreWith("2024-06-15T08:00:00.000Z")

	events, err := newTestTrigger(t, api, store, AuditEventCreated, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0]["eventId"])
	assert.Equal(t, "e2", events[1]["eventId"])

	reqs := api.requestsTo("/audit-events")
	assert.Equal(t, "2024-06-15T08:00:00.000Z", reqs[0].Query["after"])
}

func TestPoll_EvidenceExpiring(t *testing.T) {
	api := newFakeAPI()
	api.list("/evidence",
		map[string]any{
			"id": "ev1", "fileName": "pentest.pdf", "type": "REPORT", "controlId": "c9",
			"expirationDate": fixedNow.Add(30*24*time.Hour + time.Hour).Format(time.RFC3339),
		},
		map[string]any{"id": "ev2", "fileName": "no-date.pdf"},
		map[string]any{"id": "ev3", "expirationDate": "garbage"},
	)
	store := watermark.NewMemoryStore()

	events, err := newTestTrigger(t, api, store, EvidenceExpiring, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, 31, events[0]["daysUntilExpiry"])
	assert.Nil(t, events[1]["daysUntilExpiry"])
	assert.Nil(t, events[2]["daysUntilExpiry"])

	reqs := api.requestsTo("/evidence")
	assert.Equal(t, "2024-07-15T12:00:00.000Z", reqs[0].Query["expiringBefore"])
}

func TestPoll_BackgroundCheckExpiring(t *testing.T) {
	api := newFakeAPI()
	api.list("/background-checks", map[string]any{
		"id": "bc1", "personnelId": "p1", "provider": "Checkr",
		"expirationDate": "2024-06-20T12:00:00.000Z",
	})
	opts := DefaultOptions()
	opts.DaysBeforeExpiry = 7

	events, err := newTestTrigger(t, api, watermark.NewMemoryStore(), BackgroundCheckExpiring, opts).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0]["daysUntilExpiry"])
	assert.Equal(t, "Checkr", events[0]["provider"])

	reqs := api.requestsTo("/background-checks")
	assert.Equal(t, "2024-06-22T12:00:00.000Z", reqs[0].Query["expiringBefore"])
}

func TestPoll_TrainingOverdue(t *testing.T) {
	api := newFakeAPI()
	api.list("/security-training", map[string]any{
		"id": "t1", "personnelId": "p1", "courseName": "Security Awareness", "dueDate": "2024-06-01", "status": "OVERDUE",
	})

	events, err := newTestTrigger(t, api, watermark.NewMemoryStore(), TrainingOverdue, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Security Awareness", events[0]["courseName"])

	reqs := api.requestsTo("/security-training")
	assert.Equal(t, "OVERDUE", reqs[0].Query["status"])
}

func TestPoll_StrategyFailureAdvancesWatermark(t *testing.T) {
	api := newFakeAPI()
	api.fail("/controls", 500)
	store := watermark.NewMemoryStoreWith("2024-06-01T00:00:00.000Z")

	events, err := newTestTrigger(t, api, store, ControlStatusChanged, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, events)

	saved, _, _ := store.Load(context.Background())
	assert.Equal(t, "2024-06-15T12:00:00.000Z", saved)
}

func TestPoll_CancelledDoesNotCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := newFakeAPI()
	api.routes["/controls"] = func(req client.Request) (any, error) {
		cancel()
		return nil, context.Canceled
	}
	store := watermark.NewMemoryStoreWith("2024-06-01T00:00:00.000Z")

	events, err := newTestTrigger(t, api, store, ControlStatusChanged, DefaultOptions()).Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, events)

	saved, _, _ := store.Load(context.Background())
	assert.Equal(t, "2024-06-01T00:00:00.000Z", saved)
}

// failingStore fails Load or Save.
type failingStore struct {
	loadErr, saveErr error
	saved            []string
}

func (s *failingStore) Load(ctx context.Context) (string, bool, error) {
	return "", false, s.loadErr
}

func (s *failingStore) Save(ctx context.Context, value string) error {
	s.saved = append(s.saved, value)
	return s.saveErr
}

func (s *failingStore) Reset(ctx context.Context) error {
	return nil
}

func TestPoll_StoreErrors(t *testing.T) {
	api := newFakeAPI()
	api.list("/controls")

	loadFail := &failingStore{loadErr: errors.New("redis down")}
	_, err := newTestTrigger(t, api, loadFail, ControlStatusChanged, DefaultOptions()).Poll(context.Background())
	assert.ErrorContains(t, err, "load watermark")
	assert.Empty(t, loadFail.saved)
	assert.Empty(t, api.requestsTo("/controls"), "no request without a watermark")

	saveFail := &failingStore{saveErr: errors.New("redis down")}
	_, err = newTestTrigger(t, api, saveFail, ControlStatusChanged, DefaultOptions()).Poll(context.Background())
	assert.ErrorContains(t, err, "save watermark")
}

func TestPoll_UnreadableWatermarkFallsBack(t *testing.T) {
	api := newFakeAPI()
	api.list("/vendors")
	store := watermark.NewMemoryStoreWith("not-a-date")

	_, err := newTestTrigger(t, api, store, VendorRiskChanged, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)

	reqs := api.requestsTo("/vendors")
	assert.Equal(t, "2024-06-14T12:00:00.000Z", reqs[0].Query["updatedAfter"])
}

func policyAPI(failing string) *fakeAPI {
	api := newFakeAPI()
	api.list("/policies",
		map[string]any{"id": float64(1), "name": "Acceptable Use"},
		map[string]any{"id": float64(2), "name": "Access Control"},
		map[string]any{"id": float64(3), "name": "Incident Response"},
	)
	for i := 1; i <= 3; i++ {
		path := fmt.Sprintf("/policies/%d/acknowledgments", i)
		if path == failing {
			api.fail(path, 403)
			continue
		}
		api.list(path, map[string]any{"personnelId": fmt.Sprintf("p%d", i), "requestedAt": "2024-06-10T00:00:00Z"})
	}
	return api
}

func TestPoll_PolicyAcknowledgmentPartialFailure(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			api := policyAPI("/policies/2/acknowledgments")
			opts := DefaultOptions()
			opts.AckConcurrency = concurrency

			events, err := newTestTrigger(t, api, watermark.NewMemoryStore(), PolicyAcknowledgmentPending, opts).Poll(context.Background())
			require.NoError(t, err)
			require.Len(t, events, 2)

			assert.Equal(t, float64(1), events[0]["policyId"])
			assert.Equal(t, "p1", events[0]["personnelId"])
			assert.Equal(t, float64(3), events[1]["policyId"])
			assert.Equal(t, "p3", events[1]["personnelId"])
			assert.NotNil(t, events[0]["policyDetails"])
			assert.NotNil(t, events[0]["acknowledgmentDetails"])

			reqs := api.requestsTo("/policies/1/acknowledgments")
			require.Len(t, reqs, 1)
			assert.Equal(t, "PENDING", reqs[0].Query["status"])
		})
	}
}

func TestPoll_PolicyAcknowledgmentWithoutDetails(t *testing.T) {
	api := policyAPI("")
	opts := DefaultOptions()
	opts.IncludeDetails = false

	events, err := newTestTrigger(t, api, watermark.NewMemoryStore(), PolicyAcknowledgmentPending, opts).Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.NotContains(t, events[0], "policyDetails")
	assert.NotContains(t, events[0], "acknowledgmentDetails")
}

func TestPoll_PolicyAcknowledgmentMissingData(t *testing.T) {
	api := newFakeAPI()
	api.list("/policies", map[string]any{"id": "pol-1", "name": "Policy"})
	api.routes["/policies/pol-1/acknowledgments"] = func(req client.Request) (any, error) {
		return map[string]any{}, nil
	}

	events, err := newTestTrigger(t, api, watermark.NewMemoryStore(), PolicyAcknowledgmentPending, DefaultOptions()).Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestDaysUntilExpiry(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"thirty days and an hour", fixedNow.Add(30*24*time.Hour + time.Hour).Format(time.RFC3339), 31},
		{"exactly one day", fixedNow.Add(24 * time.Hour).Format(time.RFC3339), 1},
		{"one millisecond", fixedNow.Add(time.Millisecond).Format(time.RFC3339Nano), 1},
		{"expired two days ago", fixedNow.Add(-48 * time.Hour).Format(time.RFC3339), -2},
		{"unix millis", float64(fixedNow.Add(36 * time.Hour).UnixMilli()), 2},
		{"missing", nil, nil},
		{"garbage", "soon", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, daysUntilExpiry(tt.input, fixedNow))
		})
	}
}
