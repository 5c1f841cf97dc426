package feeds

import (
	"regexp"
	"strings"

	"github.com/riskhub/riskhub-backend/config"
)

var cveIDPattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,}`)

// SeverityFromText maps advisory free text to a severity band using the
// policy keyword rules. Rules are evaluated in table order so CRITICAL
// keywords win over HIGH and so on; text matching nothing is INFO.
func SeverityFromText(rules []config.SeverityRule, text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range rules {
		for _, term := range rule.Terms {
			if strings.Contains(lowered, strings.ToLower(term)) {
				return rule.Severity
			}
		}
	}
	return "INFO"
}

// ExtractCVEIDs pulls CVE identifiers out of free text, deduplicated
// case-insensitively and normalized to upper case, in first-seen order.
func ExtractCVEIDs(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, match := range cveIDPattern.FindAllString(text, -1) {
		id := strings.ToUpper(match)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
