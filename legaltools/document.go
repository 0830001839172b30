package legaltools

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/hupe1980/legalmesh/core"
)

// DefaultFilename is used when format_as_document gets no filename.
const DefaultFilename = "legal_output.docx"

// RenderDocument builds a DOCX with a "Legal Document" heading followed by
// one paragraph per blank-line separated section of content.
func RenderDocument(content string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText("Legal Document").Size("44").Bold()

	for _, section := range strings.Split(content, "\n\n") {
		doc.AddParagraph().AddText(section)
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render docx: %w", err)
	}

	return buf.Bytes(), nil
}

// FormatAsDocument renders content and writes it to filename. Relative names
// resolve against dir (the working directory when dir is empty). The result
// carries the absolute file_path.
func FormatAsDocument(content, filename, dir string) core.Result {
	if strings.TrimSpace(filename) == "" {
		filename = DefaultFilename
	}

	path := filename
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return errorResult("error_message", err.Error())
	}

	data, err := RenderDocument(content)
	if err != nil {
		return errorResult("error_message", err.Error())
	}

	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return errorResult("error_message", err.Error())
	}

	return core.StructuredResult(map[string]any{"status": "success", "file_path": abs})
}
