package legal

import (
	"regexp"
	"strings"
)

// RiskLevel is the overall risk stated in a compliance report.
type RiskLevel string

// Risk levels. The empty level means the report named none we recognize.
const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

var riskPattern = regexp.MustCompile(`(?i)risk\s*level[\s*_:\-]*([a-z]+)`)

// ComplianceReport is the structured view of the Compliance output.
type ComplianceReport struct {
	Risk RiskLevel
	Text string
}

// ParseComplianceReport extracts the risk level from a report. The text is
// always kept; an unknown level leaves Risk empty.
func ParseComplianceReport(text string) ComplianceReport {
	report := ComplianceReport{Text: text}

	m := riskPattern.FindStringSubmatch(text)
	if m == nil {
		return report
	}

	switch strings.ToLower(m[1]) {
	case "low":
		report.Risk = RiskLow
	case "med", "medium", "moderate":
		report.Risk = RiskMedium
	case "high":
		report.Risk = RiskHigh
	}

	return report
}
