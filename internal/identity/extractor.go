package identity

import (
	"strings"

	"github.com/vozline/tramita/internal/transcript"
)

// ResolutionType classifies the caller relative to the customer base.
type ResolutionType string

const (
	TypeExisting ResolutionType = "existing"
	TypeLead     ResolutionType = "lead"
	TypeNew      ResolutionType = "new"
)

// Extraction sources, strongest first.
const (
	SourceToolResult     = "tool_result"
	SourceAgentUtterance = "agent_utterance"
	SourceUserUtterance  = "user_utterance"
)

// Resolution is the derived identity of the caller. It is best-effort by
// contract: Resolve never fails, it only lowers Confidence.
type Resolution struct {
	Type         ResolutionType `json:"type"`
	ClientCode   string         `json:"client_code,omitempty"`
	LeadID       string         `json:"lead_id,omitempty"`
	Campaign     string         `json:"campaign,omitempty"`
	Name         string         `json:"name,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Email        string         `json:"email,omitempty"`
	GovernmentID string         `json:"government_id,omitempty"`
	Policies     []string       `json:"policies,omitempty"`
	Source       string         `json:"source"`
	Confidence   float64        `json:"confidence"`
}

// HasContact reports whether any contact channel was extracted.
func (r Resolution) HasContact() bool {
	return r.Phone != "" || r.Email != ""
}

// Resolve scans a call for identity signals and classifies the caller.
//
// Precedence: a successful identification tool result is authoritative.
// Matched customers win over leads; with neither, the caller is new and the
// best-effort fields come from utterance pattern matching.
func Resolve(call *transcript.Call) Resolution {
	ident := transcript.Identification(call)

	if ident != nil && len(ident.Data.Clientes) > 0 {
		return resolveExisting(call, ident)
	}
	if ident != nil && len(ident.Data.Leads) > 0 {
		return resolveLead(call, ident)
	}
	return resolveNew(call)
}

func resolveExisting(call *transcript.Call, ident *transcript.IdentificationResult) Resolution {
	// First matched customer is canonical.
	c := ident.Data.Clientes[0]
	res := Resolution{
		Type:         TypeExisting,
		ClientCode:   c.Codigo,
		Name:         c.Nombre,
		Phone:        c.Telefono,
		Email:        c.Email,
		GovernmentID: c.NIF,
		Source:       SourceToolResult,
		Confidence:   0.95,
	}
	for _, p := range ident.Data.DetallePolizas {
		if p.Numero != "" {
			res.Policies = append(res.Policies, p.Numero)
		}
	}
	fillFromUtterances(call, &res)
	return res
}

func resolveLead(call *transcript.Call, ident *transcript.IdentificationResult) Resolution {
	l := ident.Data.Leads[0]
	res := Resolution{
		Type:       TypeLead,
		LeadID:     l.IDLead,
		Campaign:   l.Campania,
		Name:       l.Nombre,
		Phone:      l.Telefono,
		Email:      l.Email,
		Source:     SourceToolResult,
		Confidence: 0.9,
	}
	fillFromUtterances(call, &res)
	return res
}

func resolveNew(call *transcript.Call) Resolution {
	res := Resolution{Type: TypeNew, Source: SourceUserUtterance, Confidence: 0.3}

	userText := transcript.UserText(call)
	res.Name = FindName(userText)
	res.Phone = FindPhone(userText)
	res.Email = FindEmail(userText)
	res.GovernmentID = FindGovernmentID(userText)

	// An agent restating a name after a lookup is a stronger signal than the
	// caller's own free-form speech.
	if res.Name == "" {
		if name := FindAgentConfirmedName(transcript.AgentText(call)); name != "" {
			res.Name = name
			res.Source = SourceAgentUtterance
			res.Confidence = 0.5
		}
	}

	if res.Name != "" && (res.Phone != "" || res.Email != "" || res.GovernmentID != "") {
		res.Confidence = 0.6
	} else if res.Name != "" || res.Phone != "" || res.Email != "" {
		if res.Confidence < 0.4 {
			res.Confidence = 0.4
		}
	}
	return res
}

// fillFromUtterances backfills fields the lookup left empty from the
// transcript, without touching tool-sourced fields or the confidence.
func fillFromUtterances(call *transcript.Call, res *Resolution) {
	userText := transcript.UserText(call)
	if res.Phone == "" {
		res.Phone = FindPhone(userText)
	}
	if res.Email == "" {
		res.Email = FindEmail(userText)
	}
	if res.GovernmentID == "" {
		res.GovernmentID = FindGovernmentID(userText)
	}
	if strings.TrimSpace(res.Name) == "" {
		res.Name = FindName(userText)
	}
}
