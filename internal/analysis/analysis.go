// Package analysis grades complaints: it decides how severe a report is and
// how much it weighs toward a ban.
package analysis

import (
	"dilse/backend/internal/config"
	"dilse/backend/internal/models"
	"strings"
)

// NormalizeSeverity lowercases a severity and maps anything unknown to low.
func NormalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	if _, ok := config.ComplaintWeights[s]; !ok {
		return models.SeverityLow
	}
	return s
}

// GetWeight returns the weight (penalty) for a given complaint severity.
// It returns 0 if the severity is not recognized.
func GetWeight(severity string) int {
	return config.ComplaintWeights[severity]
}
