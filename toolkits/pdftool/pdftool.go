// Package pdftool provides a PDF text extraction tool over the ledongthuc/pdf reader.
package pdftool

import (
	"context"
	"fmt"

	"github.com/funcbox/funcbox"
	"github.com/ledongthuc/pdf"
)

type extractRequest struct {
	FilePath  string `json:"file_path" jsonschema:"Path to the PDF file on the server filesystem."`
	FirstPage int    `json:"first_page,omitempty" jsonschema:"First page to extract (1-based); defaults to 1."`
	LastPage  int    `json:"last_page,omitempty" jsonschema:"Last page to extract inclusive; defaults to the final page."`
}

// pageText is one extracted page. Pages that fail extraction carry Error instead of Text.
type pageText struct {
	Page  int    `json:"page"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

type extractResponse struct {
	Success   bool       `json:"success"`
	FilePath  string     `json:"file_path"`
	PageCount int        `json:"page_count,omitempty"`
	Pages     []pageText `json:"pages,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// NewExtractTextTool builds the pdf_extract_text tool. The request schema is generated
// from extractRequest. Errors are classified in the envelope: a file that cannot be
// opened or parsed fails the whole call; a single page that cannot be extracted is
// reported per page without failing the rest.
func NewExtractTextTool() (funcbox.Tool, error) {
	return funcbox.NewTool(
		"pdf_extract_text",
		"Extract plain text from a PDF file, page by page.",
		func(_ context.Context, req extractRequest) (extractResponse, error) {
			if req.FilePath == "" {
				return extractResponse{Error: "file_path is required"}, nil
			}
			return extractText(req), nil
		},
	)
}

func extractText(req extractRequest) extractResponse {
	f, r, err := pdf.Open(req.FilePath)
	if err != nil {
		return extractResponse{
			FilePath: req.FilePath,
			Error:    fmt.Sprintf("cannot open PDF %q: %v", req.FilePath, err),
		}
	}
	defer f.Close()

	total := r.NumPage()
	first, last := req.FirstPage, req.LastPage
	if first < 1 {
		first = 1
	}
	if last < 1 || last > total {
		last = total
	}
	if first > last {
		return extractResponse{
			FilePath:  req.FilePath,
			PageCount: total,
			Error:     fmt.Sprintf("invalid page range %d-%d for a %d-page document", first, last, total),
		}
	}

	pages := make([]pageText, 0, last-first+1)
	for i := first; i <= last; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, pageText{Page: i, Error: "page is missing"})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, pageText{Page: i, Error: "text extraction failed: " + err.Error()})
			continue
		}
		pages = append(pages, pageText{Page: i, Text: text})
	}
	return extractResponse{
		Success:   true,
		FilePath:  req.FilePath,
		PageCount: total,
		Pages:     pages,
	}
}
