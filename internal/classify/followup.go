package classify

import (
	"strings"

	"github.com/vozline/tramita/internal/transcript"
)

// FollowUp is the result of matching a classified call against the caller's
// open incidents.
type FollowUp struct {
	IsFollowUp        bool   `json:"is_follow_up"`
	RelatedIncidentID string `json:"related_incident_id,omitempty"`
	CreateNewTicket   bool   `json:"create_new_ticket"`
}

// DetectFollowUp compares the classified incident against the open incidents
// from the identification result by keyword overlap. On a match the call is a
// follow-up of that incident and by default no new ticket is created.
//
// A new ticket is still created when the classifier found a second distinct
// management that does not match the open incident — that is the explicit
// "materially new request layered on an open incident" rule.
func DetectFollowUp(cls Classification, openIncidents []transcript.Incidencia) FollowUp {
	for _, inc := range openIncidents {
		if !matchesIncident(cls.Primary.IncidentType, inc) {
			continue
		}
		fu := FollowUp{
			IsFollowUp:        true,
			RelatedIncidentID: inc.ID,
			CreateNewTicket:   false,
		}
		for _, extra := range cls.Additional {
			if !matchesIncident(extra.IncidentType, inc) {
				fu.CreateNewTicket = true
				break
			}
		}
		return fu
	}
	return FollowUp{CreateNewTicket: true}
}

// matchesIncident reports whether a classified type refers to the same subject
// as an open incident's recorded type.
func matchesIncident(classifiedType string, inc transcript.Incidencia) bool {
	recorded := normalize(inc.Tipo)
	if recorded == "" {
		return false
	}
	if recorded == normalize(classifiedType) {
		return true
	}
	for _, kw := range typeKeywords[classifiedType] {
		if strings.Contains(recorded, kw) {
			return true
		}
	}
	return false
}
