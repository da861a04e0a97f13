package appointment

import (
	"strings"

	"github.com/carebook/carebook/internal/platform/notification"
)

var (
	criticalKeywords = []string{"pain", "emergency", "severe", "bleeding", "heart"}
	warningKeywords  = []string{"fever", "flu", "cough", "infection", "cold"}
)

// ClassifyUrgency derives the severity of the doctor-facing booking
// notification from the free-text reason. Matching is case-insensitive
// substring search; critical keywords win over warning keywords.
func ClassifyUrgency(reason string) notification.Severity {
	r := strings.ToLower(reason)
	if containsAny(r, criticalKeywords) {
		return notification.SeverityCritical
	}
	if containsAny(r, warningKeywords) {
		return notification.SeverityWarning
	}
	return notification.SeverityInfo
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
