package legaltools

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/hupe1980/legalmesh/blackboard"
	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/internal/util"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/rag"
	"github.com/hupe1980/legalmesh/tool"
)

// Tool names as seen by the model.
const (
	CompareClauseName      = "compare_clause"
	AddDaysName            = "add_days"
	CheckJurisdictionName  = "check_jurisdiction"
	FormatAsDocumentName   = "format_as_document"
	AnswerFromDocumentName = "answer_from_document"
)

// DocumentsUsed lists the document paths the tools touched during a run.
var DocumentsUsed = blackboard.NewKey[[]string]("documents_used")

// Options configure a Provider.
type Options struct {
	// OutputDir is where relative document filenames are written.
	OutputDir string
	// OnResult sees the result of every in-process call, e.g. for metrics.
	OnResult func(name string, res core.Result)
	Logger   logging.Logger
}

// Provider binds the tool operations to their collaborators.
type Provider struct {
	qa   *rag.QA
	opts Options
}

// New creates a provider. qa may be nil, in which case
// answer_from_document reports an error result.
func New(qa *rag.QA, optFns ...func(o *Options)) *Provider {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{qa: qa, opts: opts}
}

type compareClauseArgs struct {
	CompanyClause string `json:"company_clause" description:"Text of the company policy clause. When a PDF is involved, extract the clause with answer_from_document first."`
	LawClause     string `json:"law_clause" description:"Text of the statutory or legal clause."`
}

type addDaysArgs struct {
	StartDate string `json:"start_date" description:"Start date in YYYY-MM-DD format, e.g. 2025-08-01."`
	DayCount  string `json:"day_count" description:"Number of days to add as an integer string; may be negative."`
}

type checkJurisdictionArgs struct {
	Jurisdiction string `json:"jurisdiction" description:"Jurisdiction name, e.g. California."`
}

type formatArgs struct {
	Content  string `json:"content" description:"Legal text to format; blank lines separate paragraphs."`
	Filename string `json:"filename,omitempty" description:"Output filename, defaults to legal_output.docx."`
}

type answerArgs struct {
	FilePath string `json:"file_path" description:"Path or link of the PDF document."`
	Question string `json:"question" description:"Natural language question about the document."`
}

// Definitions returns the five operations as transport-neutral tools.
func (p *Provider) Definitions() []tool.Definition {
	return []tool.Definition{
		{
			Name:        CompareClauseName,
			Description: "Compare a company policy clause with a statutory clause and flag compliance.",
			Parameters:  schema(compareClauseArgs{}),
			Fn: func(_ context.Context, args map[string]any) (core.Result, error) {
				return CompareClause(str(args, "company_clause"), str(args, "law_clause")), nil
			},
		},
		{
			Name:        AddDaysName,
			Description: `Add a number of days to a date. For "Add 45 days to 2025-08-01" pass start_date 2025-08-01 and day_count 45.`,
			Parameters:  schema(addDaysArgs{}),
			Fn: func(_ context.Context, args map[string]any) (core.Result, error) {
				return AddDays(str(args, "start_date"), str(args, "day_count")), nil
			},
		},
		{
			Name:        CheckJurisdictionName,
			Description: "Check whether a jurisdiction is valid and supported.",
			Parameters:  schema(checkJurisdictionArgs{}),
			Fn: func(_ context.Context, args map[string]any) (core.Result, error) {
				return CheckJurisdiction(str(args, "jurisdiction")), nil
			},
		},
		{
			Name:        FormatAsDocumentName,
			Description: "Format legal text into a .docx document and return its file path.",
			Parameters:  schema(formatArgs{}),
			Fn: func(_ context.Context, args map[string]any) (core.Result, error) {
				return FormatAsDocument(str(args, "content"), str(args, "filename"), p.opts.OutputDir), nil
			},
		},
		{
			Name:        AnswerFromDocumentName,
			Description: "Answer a question using a PDF document. Put the document path in file_path and the question in question.",
			Parameters:  schema(answerArgs{}),
			Fn:          p.answerFromDocument,
		},
	}
}

func (p *Provider) answerFromDocument(ctx context.Context, args map[string]any) (core.Result, error) {
	path, question := str(args, "file_path"), str(args, "question")

	if p.qa == nil {
		return errorResult("error_message", "document question answering is not configured"), nil
	}

	answer, err := p.qa.AnswerFromPDF(ctx, path, question)
	if err != nil {
		p.opts.Logger.Warn("legaltools.answer_from_document.failed", "file", path, "error", err.Error())
		return errorResult("error_message", err.Error()), nil
	}

	return core.TextResult(answer), nil
}

// Tools returns the operations as in-process tools. Calls record the
// documents they touch and save generated documents as artifacts.
func (p *Provider) Tools() []tool.Tool {
	defs := p.Definitions()
	tools := make([]tool.Tool, len(defs))

	for i, d := range defs {
		tools[i] = tool.NewFunctionTool(d.Name, d.Description, d.Parameters, func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			res, err := d.Fn(toolCtx.Context(), args)
			if err != nil {
				return nil, err
			}

			Observe(toolCtx, d.Name, args, res)

			if p.opts.OnResult != nil {
				p.opts.OnResult(d.Name, res)
			}

			return res, nil
		})
	}

	return tools
}

// Observe records document side effects of a completed tool call. A PDF
// answered by answer_from_document is added to DocumentsUsed. The file
// written by format_as_document is saved as a session artifact only: it is
// generated output, not a source document.
func Observe(toolCtx *core.ToolContext, name string, args map[string]any, res core.Result) {
	switch name {
	case AnswerFromDocumentName:
		if res.IsStructured() {
			return
		}
		recordDocument(toolCtx, str(args, "file_path"))
	case FormatAsDocumentName:
		if res.Field("status") != "success" {
			return
		}
		saveArtifact(toolCtx, res.Field("file_path"))
	}
}

func saveArtifact(toolCtx *core.ToolContext, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		toolCtx.LogWarn("legaltools.artifact.read_failed", "file", path, "error", err.Error())
		return
	}

	if err := toolCtx.SaveArtifact(filepath.Base(path), data); err != nil && !errors.Is(err, core.ErrStoreNotConfigured) {
		toolCtx.LogWarn("legaltools.artifact.save_failed", "file", path, "error", err.Error())
	}
}

func recordDocument(toolCtx *core.ToolContext, path string) {
	if path == "" {
		return
	}

	docs := DocumentsUsed.Value(toolCtx)
	if !slices.Contains(docs, path) {
		DocumentsUsed.Set(toolCtx, append(slices.Clone(docs), path))
	}
}

func schema(args any) map[string]any { return util.CreateSchema(args) }

// str reads a string argument. Numbers are rendered as decimal text so
// day_count: 45 reads like day_count: "45".
func str(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}

	return ""
}
