// Package eligibility gates side-effect creation: a classified call must carry
// enough combined signal before customers, tickets or follow-ups are created.
// The score is additive over a declarative rule table so any single strong
// signal can clear the bar alone and every verdict is auditable.
package eligibility

import (
	"strings"

	"github.com/vozline/tramita/internal/classify"
	"github.com/vozline/tramita/internal/identity"
)

// Threshold is the minimum additive score that permits processing.
const Threshold = 30

// Input bundles the upstream signals the rules inspect.
type Input struct {
	Classification classify.Classification
	Resolution     identity.Resolution
	Summary        string
}

// Result is the scorer's verdict with the full factor trail.
type Result struct {
	Process bool     `json:"process"`
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

// Rule is one scoring entry: a label for the audit trail, a weight, and the
// predicate that decides whether it applies.
type Rule struct {
	Label   string
	Weight  int
	Applies func(Input) bool
}

// rules is evaluated in order; weights are strictly additive.
var rules = []Rule{
	{
		Label:  "critical_incident_type",
		Weight: 100,
		Applies: func(in Input) bool {
			return classify.CriticalTypes[in.Classification.Primary.IncidentType]
		},
	},
	{
		Label:  "client_name_present",
		Weight: 30,
		Applies: func(in Input) bool {
			return strings.TrimSpace(in.Resolution.Name) != ""
		},
	},
	{
		Label:  "contact_info_present",
		Weight: 20,
		Applies: func(in Input) bool {
			return in.Resolution.HasContact()
		},
	},
	{
		Label:  "coherent_summary",
		Weight: 25,
		Applies: func(in Input) bool {
			s := strings.TrimSpace(in.Summary)
			return len(s) > 50 && !strings.Contains(strings.ToLower(s), "error")
		},
	},
	{
		Label:  "confidence_high",
		Weight: 40,
		Applies: func(in Input) bool {
			return in.Classification.Confidence >= 0.7
		},
	},
	{
		Label:  "confidence_medium",
		Weight: 20,
		Applies: func(in Input) bool {
			c := in.Classification.Confidence
			return c >= 0.5 && c < 0.7
		},
	},
	{
		Label:  "confidence_low",
		Weight: 10,
		Applies: func(in Input) bool {
			c := in.Classification.Confidence
			return c >= 0.3 && c < 0.5
		},
	},
	{
		Label:  "follow_up_prone_type",
		Weight: 15,
		Applies: func(in Input) bool {
			return classify.FollowUpProneTypes[in.Classification.Primary.IncidentType]
		},
	},
}

// Score evaluates the rule table. Pure: no I/O, no mutation of the input.
func Score(in Input) Result {
	res := Result{}
	for _, r := range rules {
		if r.Applies(in) {
			res.Score += r.Weight
			res.Factors = append(res.Factors, r.Label)
		}
	}
	res.Process = res.Score >= Threshold
	return res
}
