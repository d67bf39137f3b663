package resources

import (
	"net/http"
)

// Inventory resources.
const (
	ResourceAsset  = "asset"
	ResourceVendor = "vendor"
	ResourceRisk   = "risk"
)

func registerInventory(r *Registry) {
	r.Add(ResourceAsset, "create", create("/assets", bodySpec{
		required:   []string{"name", "assetType"},
		collection: "additionalFields",
	})).
		Add(ResourceAsset, "get", getOne("/assets/%s", "assetId")).
		Add(ResourceAsset, "getAll", listFiltered("/assets")).
		Add(ResourceAsset, "update", update("/assets/%s", "assetId", bodySpec{collection: "updateFields"})).
		Add(ResourceAsset, "delete", remove("/assets/%s", "assetId")).
		Add(ResourceAsset, "getComplianceStatus", getOne("/assets/%s/compliance-status", "assetId"))

	r.Add(ResourceVendor, "create", create("/vendors", bodySpec{
		required:   []string{"vendorName"},
		collection: "additionalFields",
		dates:      []string{"contractExpiration"},
	})).
		Add(ResourceVendor, "get", getOne("/vendors/%s", "vendorId")).
		Add(ResourceVendor, "getAll", listFiltered("/vendors")).
		Add(ResourceVendor, "update", update("/vendors/%s", "vendorId", bodySpec{
			collection: "updateFields",
			dates:      []string{"contractExpiration"},
		})).
		Add(ResourceVendor, "delete", remove("/vendors/%s", "vendorId")).
		Add(ResourceVendor, "getSecurityAssessment", getOne("/vendors/%s/security-assessment", "vendorId")).
		Add(ResourceVendor, "uploadDocument", upload("/vendors/%s/documents", "vendorId", bodySpec{collection: "documentOptions"}))

	r.Add(ResourceRisk, "create", create("/risks", bodySpec{
		required:   []string{"title"},
		collection: "additionalFields",
	})).
		Add(ResourceRisk, "get", getOne("/risks/%s", "riskId")).
		Add(ResourceRisk, "getAll", listFiltered("/risks")).
		Add(ResourceRisk, "update", update("/risks/%s", "riskId", bodySpec{collection: "updateFields"})).
		Add(ResourceRisk, "delete", remove("/risks/%s", "riskId")).
		Add(ResourceRisk, "addMitigation", send(http.MethodPost, "/risks/%s/mitigations", []string{"riskId"}, bodySpec{
			required:   []string{"mitigationPlan"},
			rename:     map[string]string{"mitigationPlan": "plan"},
			collection: "mitigationOptions",
		})).
		Add(ResourceRisk, "linkControl", call(http.MethodPost, "/risks/%s/controls/%s", "riskId", "controlId"))
}
