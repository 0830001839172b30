// Package legal implements the in-process legal workflow.
//
// A Coordinator asks the Classifier for a routing label, hands the request to
// one specialist (or the clause drafter followed by compliance) and always
// finishes with the Formatter, which assembles final_answer. Specialists
// call the Search agent first when the seeded context is too thin and keep
// it available as a tool for further citations.
//
// All agents communicate through typed blackboard slots:
//
//	user_query, context                 seeded by the caller
//	task_label_json                     Classifier
//	search_results (+ search_sources)   Search
//	summary                             Summarizer
//	drafted_clauses                     ClauseDrafter
//	compliance_checked                  Compliance
//	final_answer                        Formatter
//
// Declare registers the agents with a graph.Builder so the slot contract is
// validated before the first turn runs.
package legal
