// Package orchestrator implements the top-level agent of the mesh. A planner
// model call picks the delegates (the remote A2A delegate, the in-process
// legal workflow, or both), the orchestrator runs them in a fixed order and
// merges their outputs into one JSON report:
//
//	planner -> plan (legal_issue, delegates, adjusted_goals, plan)
//	remote  -> remote_answer, remote_documents
//	sdk     -> final_answer, search_sources
//	merge   -> final_report
//
// The plan text in the report is always authored by the planner or, when
// planning fails, by the orchestrator itself.
package orchestrator
