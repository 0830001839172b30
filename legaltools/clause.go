package legaltools

import (
	"strings"

	"github.com/hupe1980/legalmesh/core"
)

// CompareClause flags a company clause as compliant when its trimmed text
// is at least as long as the statutory clause. The heuristic is length
// based, not semantic.
func CompareClause(companyClause, lawClause string) core.Result {
	if len(strings.TrimSpace(companyClause)) < len(strings.TrimSpace(lawClause)) {
		return core.StructuredResult(map[string]any{
			"status": "non-compliant",
			"notes":  "Company clause appears weaker than statutory requirement.",
		})
	}

	return core.StructuredResult(map[string]any{
		"status": "compliant",
		"notes":  "Company clause meets or exceeds statutory requirement.",
	})
}
