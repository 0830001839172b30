// Package artifact stores generated documents (DOCX reports and similar)
// produced by tools during a run. It implements core.ArtifactStore.
package artifact
