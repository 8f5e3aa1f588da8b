package orchestrator

import "strings"

// SanitizePolicyNumbers normalizes a multi-value policy field for the
// case-management system, whose multi-value parser only accepts pipe
// separators. "5951086, D6Z020016684" becomes "5951086|D6Z020016684";
// empty input becomes "N/A".
func SanitizePolicyNumbers(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	var clean []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return "N/A"
	}
	return strings.Join(clean, "|")
}

// JoinPolicyNumbers applies the same sanitization to an already split list.
func JoinPolicyNumbers(policies []string) string {
	return SanitizePolicyNumbers(strings.Join(policies, ","))
}

// SanitizeField trims a free-text field, substituting "N/A" when empty.
func SanitizeField(raw string) string {
	if s := strings.TrimSpace(raw); s != "" {
		return s
	}
	return "N/A"
}
