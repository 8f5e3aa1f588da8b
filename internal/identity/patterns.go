package identity

import (
	"regexp"
	"strings"
)

// Utterance-level extraction patterns. These only run when the identity lookup
// returned nothing usable, so precision matters more than recall.
var (
	phonePattern = regexp.MustCompile(`(?:\+34[\s.-]?)?([6789]\d{2})[\s.-]?(\d{3})[\s.-]?(\d{3})\b`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	dniPattern   = regexp.MustCompile(`\b(\d{8})[\s-]?([A-Za-z])\b`)
	niePattern   = regexp.MustCompile(`\b([XYZxyz])[\s-]?(\d{7})[\s-]?([A-Za-z])\b`)

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)me llamo\s+([\p{L}]+(?:\s+[\p{L}]+){0,3})`),
		regexp.MustCompile(`(?i)mi nombre es\s+([\p{L}]+(?:\s+[\p{L}]+){0,3})`),
		regexp.MustCompile(`(?i)\bsoy\s+([A-ZÁÉÍÓÚÑ][\p{L}]+(?:\s+[A-ZÁÉÍÓÚÑ][\p{L}]+){0,3})`),
	}

	// Agent confirmations after a successful lookup, e.g.
	// "He encontrado su ficha, don Carlos García".
	agentNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:don|doña|señor|señora|sr\.?|sra\.?)\s+([A-ZÁÉÍÓÚÑ][\p{L}]+(?:\s+[A-ZÁÉÍÓÚÑ][\p{L}]+){0,3})`),
		regexp.MustCompile(`(?i)a nombre de\s+([A-ZÁÉÍÓÚÑ][\p{L}]+(?:\s+[A-ZÁÉÍÓÚÑ][\p{L}]+){0,3})`),
	}

	// Words that terminate a captured name when speech-to-text runs phrases together.
	nameStopwords = map[string]bool{
		"y": true, "que": true, "pero": true, "porque": true, "para": true,
		"llamo": true, "quiero": true, "tengo": true, "necesito": true,
	}
)

// FindPhone returns the first phone number in the text, digits only, or "".
func FindPhone(text string) string {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + m[2] + m[3]
}

// FindEmail returns the first email address in the text, or "".
func FindEmail(text string) string {
	return emailPattern.FindString(text)
}

// FindGovernmentID returns the first DNI or NIE in the text, normalized to
// upper case without separators, or "".
func FindGovernmentID(text string) string {
	if m := dniPattern.FindStringSubmatch(text); m != nil {
		return m[1] + strings.ToUpper(m[2])
	}
	if m := niePattern.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]) + m[2] + strings.ToUpper(m[3])
	}
	return ""
}

// FindName extracts a caller-stated name from user utterances, or "".
func FindName(text string) string {
	return findNameWith(namePatterns, text)
}

// FindAgentConfirmedName extracts a name the agent restated, or "".
func FindAgentConfirmedName(text string) string {
	return findNameWith(agentNamePatterns, text)
}

func findNameWith(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := trimNameStopwords(m[1])
		if name != "" {
			return name
		}
	}
	return ""
}

func trimNameStopwords(raw string) string {
	words := strings.Fields(raw)
	var kept []string
	for _, w := range words {
		if nameStopwords[strings.ToLower(w)] {
			break
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
