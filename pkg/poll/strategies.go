package poll

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/pagination"
	"github.com/Sternrassler/drata-client/pkg/params"
	"golang.org/x/sync/errgroup"
)

const msPerDay = 24 * 60 * 60 * 1000

func pollControlStatusChanges(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	query := map[string]any{"updatedAfter": w.sinceISO}
	if t.options.FrameworkID != "" {
		query["frameworkId"] = t.options.FrameworkID
	}

	controls, err := t.fetchAll(ctx, "/controls", query)
	if err != nil {
		return nil, err
	}

	events := []Event{}
	for _, control := range updatedSince(controls, w.since) {
		events = append(events, t.withDetails(Event{
			"eventType":      string(ControlStatusChanged),
			"controlId":      control["id"],
			"controlName":    control["name"],
			"status":         control["status"],
			"previousStatus": control["previousStatus"],
			"updatedAt":      control["updatedAt"],
		}, control))
	}
	return events, nil
}

func pollPersonnelComplianceChanges(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	personnel, err := t.fetchAll(ctx, "/personnel", map[string]any{"updatedAfter": w.sinceISO})
	if err != nil {
		return nil, err
	}

	events := []Event{}
	for _, person := range updatedSince(personnel, w.since) {
		events = append(events, t.withDetails(Event{
			"eventType":        string(PersonnelComplianceChanged),
			"personnelId":      person["id"],
			"email":            person["email"],
			"name":             fullName(person),
			"complianceStatus": person["complianceStatus"],
			"updatedAt":        person["updatedAt"],
		}, person))
	}
	return events, nil
}

func pollVendorRiskChanges(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	vendors, err := t.fetchAll(ctx, "/vendors", map[string]any{"updatedAfter": w.sinceISO})
	if err != nil {
		return nil, err
	}

	events := []Event{}
	for _, vendor := range updatedSince(vendors, w.since) {
		events = append(events, t.withDetails(Event{
			"eventType":          string(VendorRiskChanged),
			"vendorId":           vendor["id"],
			"vendorName":         vendor["name"],
			"riskRating":         vendor["riskRating"],
			"previousRiskRating": vendor["previousRiskRating"],
			"updatedAt":          vendor["updatedAt"],
		}, vendor))
	}
	return events, nil
}

// pollAuditEvents relies on the server-side "after" filter.
func pollAuditEvents(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	auditEvents, err := t.fetchAll(ctx, "/audit-events", map[string]any{"after": w.sinceISO})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(auditEvents))
	for _, ev := range auditEvents {
		events = append(events, t.withDetails(Event{
			"eventType":  string(AuditEventCreated),
			"eventId":    ev["id"],
			"entityType": ev["entityType"],
			"entityId":   ev["entityId"],
			"action":     ev["action"],
			"userId":     ev["userId"],
			"timestamp":  ev["timestamp"],
		}, ev))
	}
	return events, nil
}

func pollExpiringEvidence(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	evidence, err := t.fetchAll(ctx, "/evidence", map[string]any{"expiringBefore": t.expiringBefore(w.now)})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(evidence))
	for _, item := range evidence {
		events = append(events, t.withDetails(Event{
			"eventType":       string(EvidenceExpiring),
			"evidenceId":      item["id"],
			"fileName":        item["fileName"],
			"type":            item["type"],
			"expirationDate":  item["expirationDate"],
			"controlId":       item["controlId"],
			"daysUntilExpiry": daysUntilExpiry(item["expirationDate"], w.now),
		}, item))
	}
	return events, nil
}

func pollExpiringBackgroundChecks(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	checks, err := t.fetchAll(ctx, "/background-checks", map[string]any{"expiringBefore": t.expiringBefore(w.now)})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(checks))
	for _, check := range checks {
		events = append(events, t.withDetails(Event{
			"eventType":       string(BackgroundCheckExpiring),
			"checkId":         check["id"],
			"personnelId":     check["personnelId"],
			"provider":        check["provider"],
			"expirationDate":  check["expirationDate"],
			"daysUntilExpiry": daysUntilExpiry(check["expirationDate"], w.now),
		}, check))
	}
	return events, nil
}

func pollOverdueTraining(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	training, err := t.fetchAll(ctx, "/security-training", map[string]any{"status": "OVERDUE"})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(training))
	for _, item := range training {
		events = append(events, t.withDetails(Event{
			"eventType":   string(TrainingOverdue),
			"trainingId":  item["id"],
			"personnelId": item["personnelId"],
			"courseName":  item["courseName"],
			"dueDate":     item["dueDate"],
			"status":      item["status"],
		}, item))
	}
	return events, nil
}

// pollPendingPolicyAcknowledgments lists all policies, then the pending
// acknowledgments of each. A policy whose acknowledgments cannot be fetched
// is skipped.
func pollPendingPolicyAcknowledgments(ctx context.Context, t *Trigger, w window) ([]Event, error) {
	policies, err := t.fetchAll(ctx, "/policies", nil)
	if err != nil {
		return nil, err
	}

	perPolicy := make([][]Event, len(policies))

	if t.options.AckConcurrency < 2 {
		for i, policy := range policies {
			events, err := t.pendingAcknowledgments(ctx, policy)
			if err != nil {
				return nil, err
			}
			perPolicy[i] = events
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.options.AckConcurrency)
		for i, policy := range policies {
			g.Go(func() error {
				events, err := t.pendingAcknowledgments(gctx, policy)
				if err != nil {
					return err
				}
				perPolicy[i] = events
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	events := []Event{}
	for _, pe := range perPolicy {
		events = append(events, pe...)
	}
	return events, nil
}

// pendingAcknowledgments returns the events of one policy. Request failures
// are swallowed; only context cancellation is returned.
func (t *Trigger) pendingAcknowledgments(ctx context.Context, policy client.Item) ([]Event, error) {
	policyID := params.IDString(policy["id"])

	resp, err := t.requester.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/policies/%s/acknowledgments", policyID),
		Query:  map[string]any{"status": "PENDING"},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		t.logger.Warn().
			Err(err).
			Str("policy_id", policyID).
			Msg("Skipping policy - acknowledgments unavailable")
		return nil, nil
	}

	var acks []any
	if obj, ok := resp.(map[string]any); ok {
		acks, _ = obj["data"].([]any)
	}

	events := make([]Event, 0, len(acks))
	for _, a := range acks {
		ack, ok := a.(map[string]any)
		if !ok {
			continue
		}
		event := Event{
			"eventType":   string(PolicyAcknowledgmentPending),
			"policyId":    policy["id"],
			"policyName":  policy["name"],
			"personnelId": ack["personnelId"],
			"requestedAt": ack["requestedAt"],
		}
		if t.options.IncludeDetails {
			event["policyDetails"] = policy
			event["acknowledgmentDetails"] = ack
		}
		events = append(events, event)
	}
	return events, nil
}

func (t *Trigger) fetchAll(ctx context.Context, path string, query map[string]any) ([]client.Item, error) {
	return pagination.FetchAll(ctx, t.requester, client.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

func (t *Trigger) withDetails(event Event, item client.Item) Event {
	if t.options.IncludeDetails {
		event["details"] = item
	}
	return event
}

// expiringBefore is now plus DaysBeforeExpiry days.
func (t *Trigger) expiringBefore(now time.Time) string {
	return params.FormatISO(now.AddDate(0, 0, t.options.DaysBeforeExpiry))
}

// updatedSince keeps the items whose updatedAt is strictly after since.
// Items without a readable updatedAt are dropped.
func updatedSince(items []client.Item, since time.Time) []client.Item {
	out := make([]client.Item, 0, len(items))
	for _, item := range items {
		updatedAt, err := params.ParseDate(item["updatedAt"])
		if err != nil {
			continue
		}
		if updatedAt.After(since) {
			out = append(out, item)
		}
	}
	return out
}

// daysUntilExpiry rounds the time left up to whole days. Missing or
// unreadable dates yield nil.
func daysUntilExpiry(expiration any, now time.Time) any {
	expiresAt, err := params.ParseDate(expiration)
	if err != nil {
		return nil
	}
	ms := float64(expiresAt.Sub(now).Milliseconds())
	return int(math.Ceil(ms / msPerDay))
}

func fullName(person client.Item) string {
	first, _ := person["firstName"].(string)
	last, _ := person["lastName"].(string)
	return strings.TrimSpace(first + " " + last)
}
