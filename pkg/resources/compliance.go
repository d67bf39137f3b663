package resources

import (
	"context"
)

// Compliance resources.
const (
	ResourceControl   = "control"
	ResourceEvidence  = "evidence"
	ResourceFramework = "framework"
	ResourcePolicy    = "policy"
)

func registerCompliance(r *Registry) {
	r.Add(ResourceControl, "get", getOne("/controls/%s", "controlId")).
		Add(ResourceControl, "getAll", listFiltered("/controls")).
		Add(ResourceControl, "update", update("/controls/%s", "controlId", bodySpec{collection: "updateFields"})).
		Add(ResourceControl, "getEvidence", listAllSub("/controls/%s/evidence", "controlId")).
		Add(ResourceControl, "uploadEvidence", upload("/controls/%s/evidence", "controlId", bodySpec{collection: "additionalFields"})).
		Add(ResourceControl, "getMonitoringStatus", getOne("/controls/%s/monitoring-status", "controlId"))

	r.Add(ResourceEvidence, "get", getOne("/evidence/%s", "evidenceId")).
		Add(ResourceEvidence, "getAll", listFiltered("/evidence")).
		Add(ResourceEvidence, "getByControl", listSub("/controls/%s/evidence", "controlId")).
		Add(ResourceEvidence, "getByType", getEvidenceByType).
		Add(ResourceEvidence, "upload", upload("/controls/%s/evidence", "controlId", bodySpec{
			collection: "evidenceOptions",
			dates:      []string{"expirationDate"},
		})).
		Add(ResourceEvidence, "delete", remove("/evidence/%s", "evidenceId"))

	r.Add(ResourceFramework, "get", getOne("/frameworks/%s", "frameworkId")).
		Add(ResourceFramework, "getAll", listFiltered("/frameworks")).
		Add(ResourceFramework, "getControls", listSub("/frameworks/%s/controls", "frameworkId")).
		Add(ResourceFramework, "getComplianceScore", getOne("/frameworks/%s/compliance-score", "frameworkId")).
		Add(ResourceFramework, "getGaps", getOne("/frameworks/%s/gaps", "frameworkId"))

	r.Add(ResourcePolicy, "get", getOne("/policies/%s", "policyId")).
		Add(ResourcePolicy, "getAll", listFiltered("/policies")).
		Add(ResourcePolicy, "getAcknowledgments", listSub("/policies/%s/acknowledgments", "policyId")).
		Add(ResourcePolicy, "getVersionHistory", getOne("/policies/%s/versions", "policyId"))
}

func getEvidenceByType(ctx context.Context, api API, in Input) (any, error) {
	evidenceType, err := in.String("evidenceType")
	if err != nil {
		return nil, err
	}
	return fetchList(ctx, api, in, "/evidence", map[string]any{"type": evidenceType})
}
