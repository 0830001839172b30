package legaltools

import (
	"slices"

	"github.com/hupe1980/legalmesh/core"
)

// SupportedJurisdictions is the case-sensitive allow-list.
var SupportedJurisdictions = []string{"California", "New York", "Texas"}

// CheckJurisdiction reports whether name is supported.
func CheckJurisdiction(name string) core.Result {
	if !slices.Contains(SupportedJurisdictions, name) {
		return errorResult("message", name+" not supported.")
	}

	return core.StructuredResult(map[string]any{"status": "success", "jurisdiction": name})
}
