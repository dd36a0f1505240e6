// Package query implements the natural-language query interpreter: intent
// classification, parameter extraction, case filtering, and summary message
// generation over the persisted leakage case collection.
package query

import (
	"regexp"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// intentRule pairs one pattern with the intent it resolves to. The cascade is
// evaluated top to bottom and the first match wins, so a message containing
// both "exempt" and "delay" resolves to EXEMPTION_USAGE.
type intentRule struct {
	pattern *regexp.Regexp
	intent  domain.Intent
}

var intentCascade = []intentRule{
	{regexp.MustCompile(`exempt`), domain.IntentExemptionUsage},
	{regexp.MustCompile(`prohibit`), domain.IntentProhibitedLand},
	{regexp.MustCompile(`delay|challan`), domain.IntentChallanDelay},
	{regexp.MustCompile(`\bsla\b|breach|overdue`), domain.IntentSLABreach},
	{regexp.MustCompile(`high[\s-]?value|lakh|crore|top\s+\d+`), domain.IntentHighValue},
	{regexp.MustCompile(`payment\s+gap|underpaid|short[\s-]?paid|paid\s+less`), domain.IntentPaymentGap},
	{regexp.MustCompile(`leakage|\bgap\b|revenue|summary|overview|total`), domain.IntentLeakageSummary},
	{regexp.MustCompile(`\bcases?\b`), domain.IntentCaseSearch},
	{regexp.MustCompile(`show\b.*\bin\b`), domain.IntentCaseSearch},
}

// DetectIntent classifies a free-text analyst message. It never fails;
// anything that matches no cascade entry is a GENERAL_QUERY.
func DetectIntent(message string) domain.Intent {
	m := strings.ToLower(message)
	for _, rule := range intentCascade {
		if rule.pattern.MatchString(m) {
			return rule.intent
		}
	}
	return domain.IntentGeneralQuery
}
