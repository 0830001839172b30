// Package model defines the provider agnostic Model and Embedder interfaces
// used by agents, the document QA pipeline and the memory store.
//
// Providers live in sub-packages (gemini, openai, anthropic) and translate
// between core.Content and their SDK message formats. ScriptedModel and
// HashEmbedder are deterministic stand-ins for tests and examples.
package model
