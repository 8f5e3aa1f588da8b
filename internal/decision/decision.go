// Package decision merges identity resolution, incident classification and
// the eligibility verdict into one immutable decision record. Assembly is
// pure: no network, no storage, no mutation of inputs.
package decision

import (
	"github.com/vozline/tramita/internal/classify"
	"github.com/vozline/tramita/internal/eligibility"
	"github.com/vozline/tramita/internal/identity"
)

// ClientDecision says what to do about the caller's customer record.
type ClientDecision struct {
	ShouldCreateClient bool                `json:"should_create_client"`
	UseExistingClient  bool                `json:"use_existing_client"`
	ClientData         identity.Resolution `json:"client_data"`
}

// TicketPlan is one ticket to be created.
type TicketPlan struct {
	IncidentType     string `json:"incident_type"`
	ManagementReason string `json:"management_reason"`
	InsuranceLine    string `json:"insurance_line,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// TicketDecision says which tickets to create.
type TicketDecision struct {
	ShouldCreateTickets bool         `json:"should_create_tickets"`
	TicketCount         int          `json:"ticket_count"`
	Tickets             []TicketPlan `json:"tickets,omitempty"`
}

// Decision is the single per-call decision record. Immutable after assembly.
type Decision struct {
	Client     ClientDecision    `json:"client_decision"`
	Tickets    TicketDecision    `json:"ticket_decision"`
	FollowUp   classify.FollowUp `json:"follow_up_decision"`
	Eligible   bool              `json:"eligible"`
	Score      int               `json:"score"`
	Factors    []string          `json:"factors"`
	Rationale  string            `json:"rationale,omitempty"`
	Confidence float64           `json:"confidence"`
}

// Assemble builds the decision record.
//
// Client: new+eligible callers get a record created; leads also get one,
// tagged with the lead id so creation links back to the campaign; existing
// callers reuse their record. Tickets: one per classified management unless
// the call is a purely confirmatory follow-up.
func Assemble(res identity.Resolution, cls classify.Classification, fu classify.FollowUp, elig eligibility.Result) Decision {
	d := Decision{
		FollowUp:   fu,
		Eligible:   elig.Process,
		Score:      elig.Score,
		Factors:    append([]string(nil), elig.Factors...),
		Rationale:  cls.Rationale,
		Confidence: cls.Confidence,
	}

	switch res.Type {
	case identity.TypeExisting:
		d.Client = ClientDecision{UseExistingClient: true, ClientData: res}
	case identity.TypeLead:
		d.Client = ClientDecision{ShouldCreateClient: elig.Process, ClientData: res}
	default:
		d.Client = ClientDecision{ShouldCreateClient: elig.Process, ClientData: res}
	}

	suppressed := fu.IsFollowUp && !fu.CreateNewTicket
	if elig.Process && !suppressed {
		for _, inc := range cls.Incidents() {
			d.Tickets.Tickets = append(d.Tickets.Tickets, TicketPlan{
				IncidentType:     inc.IncidentType,
				ManagementReason: inc.ManagementReason,
				InsuranceLine:    inc.InsuranceLine,
				Notes:            cls.Rationale,
			})
		}
		d.Tickets.ShouldCreateTickets = len(d.Tickets.Tickets) > 0
		d.Tickets.TicketCount = len(d.Tickets.Tickets)
	}

	return d
}
