package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/model"
)

// Options tune the document QA pipeline.
type Options struct {
	// Threshold is the sentence merge similarity.
	Threshold float64
	// K is the number of chunks placed in the prompt.
	K int
	// FetchK is the number of similarity candidates MMR chooses from.
	FetchK int
	// Lambda trades relevance (1) against diversity (0).
	Lambda float64
	Logger logging.Logger
}

// QA answers questions grounded in one document per call.
type QA struct {
	llm      model.Model
	embedder model.Embedder
	opts     Options
}

// NewQA creates a pipeline.
func NewQA(llm model.Model, embedder model.Embedder, optFns ...func(o *Options)) *QA {
	opts := Options{
		Threshold: DefaultSimilarityThreshold,
		K:         3,
		FetchK:    20,
		Lambda:    0.5,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &QA{llm: llm, embedder: embedder, opts: opts}
}

// AnswerFromPDF extracts the PDF at path and answers question over it.
func (q *QA) AnswerFromPDF(ctx context.Context, path, question string) (string, error) {
	text, err := ExtractPDFText(path)
	if err != nil {
		return "", err
	}

	return q.AnswerFromText(ctx, text, question)
}

// AnswerFromText runs the pipeline over already extracted text.
func (q *QA) AnswerFromText(ctx context.Context, text, question string) (string, error) {
	docContext, err := q.Context(ctx, text, question)
	if err != nil {
		return "", err
	}

	answer, err := model.GenerateText(ctx, q.llm, "", GroundedPrompt(docContext, question))
	if err != nil {
		return "", fmt.Errorf("document qa: %w", err)
	}

	return answer, nil
}

// Context returns the retrieved chunks joined by blank lines.
func (q *QA) Context(ctx context.Context, text, question string) (string, error) {
	chunks, err := SemanticChunks(ctx, q.embedder, SplitSentences(text), q.opts.Threshold)
	if err != nil {
		return "", err
	}

	ix, err := NewIndex(ctx, q.embedder, chunks)
	if err != nil {
		return "", err
	}

	retrieved, err := ix.RetrieveMMR(ctx, question, q.opts.K, q.opts.FetchK, q.opts.Lambda)
	if err != nil {
		return "", err
	}

	q.opts.Logger.Debug("rag.retrieve", "chunks", len(chunks), "retrieved", len(retrieved))

	return strings.Join(retrieved, "\n\n"), nil
}

// GroundedPrompt builds the question prompt over docContext.
func GroundedPrompt(docContext, question string) string {
	return fmt.Sprintf(`Use the following context to answer the question. Do not include personal opinions or outside information; answer ONLY from the context provided. If no context is available, tell the user you don't know.
If the document contains [] (especially highlighted or in bold), treat them as placeholders for dates, numbers or names.

Context:
%s

Question: %s
Answer:`, docContext, question)
}
