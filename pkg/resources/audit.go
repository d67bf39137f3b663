package resources

import (
	"context"
	"fmt"

	"github.com/Sternrassler/drata-client/pkg/params"
)

// ResourceAuditEvent is the audit log resource.
const ResourceAuditEvent = "auditEvent"

func registerAudit(r *Registry) {
	r.Add(ResourceAuditEvent, "get", getOne("/audit-events/%s", "eventId")).
		Add(ResourceAuditEvent, "getAll", listFiltered("/audit-events")).
		Add(ResourceAuditEvent, "getByDateRange", getAuditEventsByDateRange).
		Add(ResourceAuditEvent, "getByUser", listBy("/audit-events", "userId")).
		Add(ResourceAuditEvent, "getByEntity", listBy("/audit-events", "entityType", "entityId"))
}

// getAuditEventsByDateRange sends startDate and endDate as full ISO-8601
// timestamps rather than calendar dates.
func getAuditEventsByDateRange(ctx context.Context, api API, in Input) (any, error) {
	query := map[string]any{}
	for _, name := range []string{"startDate", "endDate"} {
		iso, err := params.ToISODate(in.Params[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		query[name] = iso
	}
	return fetchList(ctx, api, in, "/audit-events", params.Clean(query))
}
