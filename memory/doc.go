// Package memory contains core.MemoryStore implementations used to recall
// prior answers of a session as context for the next turn.
//
// VectorStore embeds every stored snippet and ranks by cosine similarity in
// a chromem-go collection per session. KeywordStore ranks by word overlap
// and needs no embedder; it backs providers without an embeddings API.
package memory
