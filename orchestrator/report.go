package orchestrator

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/search"
)

// NoDocumentsHighlight marks a report without internal document facts.
const NoDocumentsHighlight = "No internal legal documents available"

// Report is the fixed-schema answer of a turn.
type Report struct {
	LegalIssue    string      `json:"legal_issue"`
	OriginalQuery string      `json:"original_query"`
	DataSummary   DataSummary `json:"data_summary"`
	AdjustedGoals []string    `json:"adjusted_goals"`
	Sources       []Source    `json:"sources"`
	Plan          string      `json:"plan"`
}

// DataSummary carries the facts gathered by the delegates.
type DataSummary struct {
	Highlights    []string `json:"highlights"`
	DocumentsUsed []string `json:"documents_used"`
	Citations     []string `json:"citations"`
}

// Source is one cited web page.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RemoteOutcome is what the remote delegate produced.
type RemoteOutcome struct {
	Used      bool
	Err       error
	Answer    string
	Documents []string
}

// SDKOutcome is what the legal workflow produced.
type SDKOutcome struct {
	Used        bool
	Err         error
	FinalAnswer string
	Sources     []search.Source
	Risk        legal.RiskLevel
}

// MergeInput collects everything Merge needs.
type MergeInput struct {
	Query  string
	Plan   Plan
	Remote RemoteOutcome
	SDK    SDKOutcome
}

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)
	sourcesHeading = regexp.MustCompile(`(?i)^\W*sources?\W*$`)
)

// Merge builds the report. The remote delegate contributes document facts,
// the workflow contributes citations and sources, the planner everything
// else.
func Merge(in MergeInput) Report {
	r := Report{
		LegalIssue:    in.Plan.LegalIssue,
		OriginalQuery: in.Query,
		AdjustedGoals: nonNil(in.Plan.AdjustedGoals),
		Plan:          in.Plan.Plan,
		DataSummary: DataSummary{
			Highlights:    []string{},
			DocumentsUsed: []string{},
			Citations:     []string{},
		},
		Sources: []Source{},
	}

	remoteOK := in.Remote.Used && in.Remote.Err == nil
	sdkOK := in.SDK.Used && in.SDK.Err == nil

	if remoteOK {
		r.DataSummary.DocumentsUsed = nonNil(in.Remote.Documents)
	}

	if len(r.DataSummary.DocumentsUsed) == 0 {
		r.DataSummary.Highlights = append(r.DataSummary.Highlights, NoDocumentsHighlight)
	}

	if remoteOK {
		r.DataSummary.Highlights = append(r.DataSummary.Highlights, lines(in.Remote.Answer)...)
	}

	if sdkOK {
		r.DataSummary.Citations = appendUnique(r.DataSummary.Citations, sourceLines(in.SDK.FinalAnswer)...)
		for _, s := range in.SDK.Sources {
			r.DataSummary.Citations = appendUnique(r.DataSummary.Citations, s.Title)
		}

		for _, s := range in.SDK.Sources {
			r.Sources = appendSource(r.Sources, Source{Title: s.Title, URL: s.URL})
		}

		if in.SDK.Risk != "" {
			r.DataSummary.Highlights = append(r.DataSummary.Highlights, "Compliance risk: "+string(in.SDK.Risk))
		}
	}

	if remoteOK {
		for _, u := range urlPattern.FindAllString(in.Remote.Answer, -1) {
			u = strings.TrimRight(u, ".,;:")
			r.Sources = appendSource(r.Sources, Source{Title: u, URL: u})
		}
	}

	return r
}

// Render encodes the report as indented JSON.
func (r Report) Render() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// sourceLines returns the list items under a "Sources" heading.
func sourceLines(text string) []string {
	var (
		out     []string
		inBlock bool
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case sourcesHeading.MatchString(trimmed):
			inBlock = true
		case !inBlock:
		case strings.HasPrefix(trimmed, "-"), strings.HasPrefix(trimmed, "*"):
			if item := strings.TrimSpace(strings.TrimLeft(trimmed, "-* ")); item != "" {
				out = append(out, item)
			}
		case trimmed == "":
		default:
			inBlock = false
		}
	}

	return out
}

func lines(text string) []string {
	var out []string

	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}

	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" && !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}

	return dst
}

func appendSource(dst []Source, s Source) []Source {
	if s.URL == "" || slices.ContainsFunc(dst, func(o Source) bool { return o.URL == s.URL }) {
		return dst
	}

	return append(dst, s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
