package resources

import (
	"net/http"
)

// People resources.
const (
	ResourcePersonnel        = "personnel"
	ResourceUser             = "user"
	ResourceBackgroundCheck  = "backgroundCheck"
	ResourceSecurityTraining = "securityTraining"
)

func registerPeople(r *Registry) {
	r.Add(ResourcePersonnel, "create", create("/personnel", bodySpec{
		required:   []string{"email", "firstName", "lastName"},
		collection: "additionalFields",
		dates:      []string{"startDate"},
	})).
		Add(ResourcePersonnel, "get", getOne("/personnel/%s", "personnelId")).
		Add(ResourcePersonnel, "getByEmail", findBy("/personnel", "email")).
		Add(ResourcePersonnel, "getAll", listFiltered("/personnel")).
		Add(ResourcePersonnel, "update", update("/personnel/%s", "personnelId", bodySpec{collection: "updateFields"})).
		Add(ResourcePersonnel, "offboard", update("/personnel/%s/offboard", "personnelId", bodySpec{
			required: []string{"endDate"},
			dates:    []string{"endDate"},
		})).
		Add(ResourcePersonnel, "uploadEvidence", upload("/personnel/%s/evidence", "personnelId", bodySpec{collection: "evidenceOptions"})).
		Add(ResourcePersonnel, "getComplianceStatus", getOne("/personnel/%s/compliance-status", "personnelId"))

	r.Add(ResourceUser, "get", getOne("/users/%s", "userId")).
		Add(ResourceUser, "getByEmail", findBy("/users", "email")).
		Add(ResourceUser, "getAll", listFiltered("/users")).
		Add(ResourceUser, "getRoles", getOne("/users/%s/roles", "userId")).
		Add(ResourceUser, "getActivity", listSub("/users/%s/activity", "userId"))

	checkDates := []string{"completedDate", "expirationDate"}

	r.Add(ResourceBackgroundCheck, "get", getOne("/background-checks/%s", "checkId")).
		Add(ResourceBackgroundCheck, "getAll", listFiltered("/background-checks")).
		Add(ResourceBackgroundCheck, "getByPersonnel", listSub("/personnel/%s/background-checks", "personnelId")).
		Add(ResourceBackgroundCheck, "updateStatus", send(http.MethodPut, "/background-checks/%s", []string{"checkId"}, bodySpec{
			required:   []string{"status"},
			collection: "additionalFields",
			dates:      checkDates,
		})).
		Add(ResourceBackgroundCheck, "upload", upload("/personnel/%s/background-checks", "personnelId", bodySpec{
			collection: "uploadOptions",
			dates:      checkDates,
		}))

	r.Add(ResourceSecurityTraining, "get", getOne("/security-training/%s", "trainingId")).
		Add(ResourceSecurityTraining, "getAll", listFiltered("/security-training")).
		Add(ResourceSecurityTraining, "getByPersonnel", listSub("/personnel/%s/security-training", "personnelId")).
		Add(ResourceSecurityTraining, "getOverdue", listSub("/security-training/overdue")).
		Add(ResourceSecurityTraining, "updateStatus", update("/security-training/%s", "trainingId", bodySpec{
			required:   []string{"status"},
			collection: "additionalFields",
			dates:      checkDates,
		})).
		Add(ResourceSecurityTraining, "upload", upload("/personnel/%s/security-training", "personnelId", bodySpec{
			required:   []string{"courseName"},
			collection: "uploadOptions",
			dates:      checkDates,
		}))
}
