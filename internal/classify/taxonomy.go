package classify

import "strings"

// Incident types. The classifier may only return values from this set;
// anything else is clamped to TypeUnclassified.
const (
	TypeNewContract  = "Nueva Contratación"
	TypeRetention    = "Retención de Cliente Cartera"
	TypeClaim        = "Siniestros"
	TypeInquiry      = "Consulta"
	TypePayment      = "Gestión de Pago"
	TypeDuplicate    = "Duplicado de Póliza"
	TypeChange       = "Modificación de Datos"
	TypeUnclassified = "No Clasificada"
)

// Management reasons.
const (
	ReasonCommercial     = "Gestión Comercial"
	ReasonAdministrative = "Gestión Administrativa"
	ReasonClaim          = "Tramitación de Siniestro"
	ReasonComplaint      = "Queja o Reclamación"
	ReasonInformation    = "Solicitud de Información"
	ReasonUnknown        = "Sin Determinar"
)

// Insurance lines. Empty is valid: not every call names a line.
const (
	LineHome    = "HOME"
	LineAuto    = "AUTO"
	LineLife    = "LIFE"
	LineHealth  = "HEALTH"
	LineFuneral = "FUNERAL"
)

var incidentTypes = map[string]bool{
	TypeNewContract:  true,
	TypeRetention:    true,
	TypeClaim:        true,
	TypeInquiry:      true,
	TypePayment:      true,
	TypeDuplicate:    true,
	TypeChange:       true,
	TypeUnclassified: true,
}

var managementReasons = map[string]bool{
	ReasonCommercial:     true,
	ReasonAdministrative: true,
	ReasonClaim:          true,
	ReasonComplaint:      true,
	ReasonInformation:    true,
	ReasonUnknown:        true,
}

var insuranceLines = map[string]bool{
	LineHome:    true,
	LineAuto:    true,
	LineLife:    true,
	LineHealth:  true,
	LineFuneral: true,
}

// ValidIncidentType reports whether t is in the fixed taxonomy.
func ValidIncidentType(t string) bool { return incidentTypes[t] }

// ClampIncidentType returns t if it is a known type, TypeUnclassified otherwise.
// Free-form classifier output is never trusted as an identifier.
func ClampIncidentType(t string) string {
	if incidentTypes[t] {
		return t
	}
	return TypeUnclassified
}

// ClampManagementReason returns r if known, ReasonUnknown otherwise.
func ClampManagementReason(r string) string {
	if managementReasons[r] {
		return r
	}
	return ReasonUnknown
}

// ClampInsuranceLine returns the normalized line code, or "" if unknown.
func ClampInsuranceLine(l string) string {
	code := strings.ToUpper(strings.TrimSpace(l))
	if insuranceLines[code] {
		return code
	}
	return ""
}

// CriticalTypes are incident types that alone justify persistent side effects.
var CriticalTypes = map[string]bool{
	TypeNewContract: true,
	TypeRetention:   true,
	TypeClaim:       true,
}

// FollowUpProneTypes are types that historically generate follow-up calls.
var FollowUpProneTypes = map[string]bool{
	TypeInquiry:   true,
	TypePayment:   true,
	TypeDuplicate: true,
	TypeChange:    true,
}

// typeKeywords drive the follow-up matcher: a classified type matches an open
// incident when any of its keywords appears in the incident's recorded type
// (both sides normalized).
var typeKeywords = map[string][]string{
	TypeNewContract: {"contratacion", "alta", "presupuesto", "cotizacion", "nueva"},
	TypeRetention:   {"retencion", "baja", "cancelacion", "anulacion", "cartera"},
	TypeClaim:       {"siniestro", "parte", "incidente"},
	TypeInquiry:     {"consulta", "informacion", "duda"},
	TypePayment:     {"pago", "recibo", "cobro", "devolucion"},
	TypeDuplicate:   {"duplicado", "copia"},
	TypeChange:      {"modificacion", "cambio", "actualizacion"},
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

// normalize lower-cases and strips accents for keyword comparison.
func normalize(s string) string {
	return strings.ToLower(accentReplacer.Replace(s))
}
