package transcript

import (
	"encoding/json"
	"strings"
)

// ToolIdentify is the identity-lookup tool the gateway agent calls during a
// conversation. Its payload carries matched customers, leads, policies and
// open incidents.
const ToolIdentify = "buscar_cliente"

// ParsedResult is the tagged union over known tool-result payloads.
// Exactly one of the pointer fields is non-nil; Unknown carries the raw
// payload for tools this pipeline does not understand.
type ParsedResult struct {
	ToolName       string
	Identification *IdentificationResult
	Unknown        json.RawMessage
}

// IdentificationResult is the payload of a buscar_cliente result.
type IdentificationResult struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    IdentificationData `json:"data"`
}

// IdentificationData holds the matched records from the lookup backend.
type IdentificationData struct {
	Clientes       []Cliente    `json:"clientes"`
	Leads          []Lead       `json:"leads"`
	DetallePolizas []Poliza     `json:"detalle_polizas"`
	Incidencias    []Incidencia `json:"incidencias"`
}

// Cliente is one matched customer record.
type Cliente struct {
	Codigo   string `json:"codigo"`
	Nombre   string `json:"nombre"`
	Telefono string `json:"telefono"`
	Email    string `json:"email"`
	NIF      string `json:"nif,omitempty"`
}

// Lead is a prospective customer known only through a campaign.
type Lead struct {
	IDLead   string `json:"id_lead"`
	Nombre   string `json:"nombre"`
	Telefono string `json:"telefono"`
	Email    string `json:"email"`
	Campania string `json:"campania"`
}

// Poliza is one policy attached to a matched customer.
type Poliza struct {
	Numero string `json:"numero_poliza"`
	Ramo   string `json:"ramo"`
	Estado string `json:"estado"`
}

// Incidencia is a previously opened incident, possibly still unresolved.
type Incidencia struct {
	ID     string `json:"id_incidencia"`
	Tipo   string `json:"tipo"`
	Ramo   string `json:"ramo,omitempty"`
	Estado string `json:"estado"`
	Fecha  string `json:"fecha,omitempty"`
}

// Open reports whether the incident is still unresolved.
func (i Incidencia) Open() bool {
	switch strings.ToLower(strings.TrimSpace(i.Estado)) {
	case "abierta", "abierto", "open", "pendiente", "en curso", "en trámite", "en tramite":
		return true
	}
	return false
}

// Parse decodes a tool result into the tagged union. Unknown tools and
// unparseable payloads degrade to the Unknown variant; Parse never fails.
func Parse(r ToolResult) ParsedResult {
	switch r.ToolName {
	case ToolIdentify:
		var ident IdentificationResult
		if err := json.Unmarshal(r.Payload, &ident); err != nil {
			return ParsedResult{ToolName: r.ToolName, Unknown: r.Payload}
		}
		return ParsedResult{ToolName: r.ToolName, Identification: &ident}
	default:
		return ParsedResult{ToolName: r.ToolName, Unknown: r.Payload}
	}
}

// Identification returns the authoritative identification result for a call:
// the most recent successful (non-error) buscar_cliente result, scanning
// segments in order. Returns nil if the call has none.
func Identification(c *Call) *IdentificationResult {
	var latest *IdentificationResult
	for _, seg := range c.Segments {
		for _, r := range seg.Results {
			if r.ToolName != ToolIdentify || r.IsError {
				continue
			}
			if parsed := Parse(r); parsed.Identification != nil {
				latest = parsed.Identification
			}
		}
	}
	return latest
}

// OpenIncidents returns the open incidents from the authoritative
// identification result, or nil when there is none.
func OpenIncidents(c *Call) []Incidencia {
	ident := Identification(c)
	if ident == nil {
		return nil
	}
	var open []Incidencia
	for _, inc := range ident.Data.Incidencias {
		if inc.Open() {
			open = append(open, inc)
		}
	}
	return open
}

// Text renders the transcript as plain dialogue, one line per segment.
// The rendering is deterministic; it is what the classifier prompt is built from.
func Text(c *Call) string {
	var b strings.Builder
	for _, seg := range c.Segments {
		if strings.TrimSpace(seg.Message) == "" {
			continue
		}
		switch seg.Speaker {
		case SpeakerAgent:
			b.WriteString("Agente: ")
		default:
			b.WriteString("Cliente: ")
		}
		b.WriteString(strings.TrimSpace(seg.Message))
		b.WriteString("\n")
	}
	return b.String()
}

// UserText concatenates only the caller's utterances.
func UserText(c *Call) string {
	var b strings.Builder
	for _, seg := range c.Segments {
		if seg.Speaker != SpeakerUser {
			continue
		}
		if strings.TrimSpace(seg.Message) == "" {
			continue
		}
		b.WriteString(strings.TrimSpace(seg.Message))
		b.WriteString("\n")
	}
	return b.String()
}

// AgentText concatenates only the agent's utterances.
func AgentText(c *Call) string {
	var b strings.Builder
	for _, seg := range c.Segments {
		if seg.Speaker != SpeakerAgent {
			continue
		}
		if strings.TrimSpace(seg.Message) == "" {
			continue
		}
		b.WriteString(strings.TrimSpace(seg.Message))
		b.WriteString("\n")
	}
	return b.String()
}
