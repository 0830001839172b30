// Package rag answers questions about a PDF document.
//
// The pipeline extracts the text, segments it into sentences, merges
// adjacent sentences into semantic chunks while their embeddings stay
// similar, indexes the chunks in a fresh chromem-go collection, retrieves
// the top chunks by maximal marginal relevance and asks the model a
// grounded question over them. Nothing is cached between calls.
package rag
