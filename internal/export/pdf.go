package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/carefile/carefile/internal/extraction"
)

const (
	pdfLinesPerPage = 54
	pdfFontSize     = 9
)

// pdfcpu create-from-JSON descriptor, limited to the text primitive.
type pdfDescriptor struct {
	Paper  string             `json:"paper"`
	Origin string             `json:"origin"`
	Pages  map[string]pdfPage `json:"pages"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfContent struct {
	Text []pdfText `json:"text"`
}

type pdfText struct {
	Value  string  `json:"value"`
	Anchor string  `json:"anchor"`
	Dx     float64 `json:"dx"`
	Dy     float64 `json:"dy"`
	Font   pdfFont `json:"font"`
}

type pdfFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// DocumentPDF renders a structured document as a paginated monospace report.
func DocumentPDF(doc *extraction.StructuredExtraction, meta DocumentMeta) ([]byte, error) {
	lines := renderLines(doc, meta)

	desc := pdfDescriptor{
		Paper:  "A4",
		Origin: "upperLeft",
		Pages:  make(map[string]pdfPage),
	}
	pageNum := 1
	for start := 0; start < len(lines); start += pdfLinesPerPage {
		end := start + pdfLinesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		desc.Pages[fmt.Sprintf("%d", pageNum)] = pdfPage{
			Content: pdfContent{
				Text: []pdfText{{
					Value:  strings.Join(lines[start:end], "\n"),
					Anchor: "tl",
					Dx:     40,
					Dy:     40,
					Font:   pdfFont{Name: "Courier", Size: pdfFontSize},
				}},
			},
		}
		pageNum++
	}
	if len(desc.Pages) == 0 {
		desc.Pages["1"] = pdfPage{Content: pdfContent{Text: []pdfText{{
			Value: "(empty document)", Anchor: "tl", Dx: 40, Dy: 40,
			Font: pdfFont{Name: "Courier", Size: pdfFontSize},
		}}}}
	}

	payload, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("pdf descriptor: %w", err)
	}

	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(payload), &out, nil); err != nil {
		return nil, fmt.Errorf("pdf create: %w", err)
	}
	return out.Bytes(), nil
}

// renderLines flattens the document into plain text lines for pagination.
func renderLines(doc *extraction.StructuredExtraction, meta DocumentMeta) []string {
	var lines []string
	push := func(s string) {
		for _, l := range strings.Split(s, "\n") {
			lines = append(lines, l)
		}
	}

	if meta.DepartmentName != "" {
		push("Department: " + meta.DepartmentName)
	}
	if meta.Filename != "" {
		push("File: " + meta.Filename)
	}
	if doc.Title != "" {
		push("")
		push(doc.Title)
		push(strings.Repeat("=", len(doc.Title)))
	}
	if doc.DocumentType != "" {
		push("Type: " + doc.DocumentType)
	}

	if len(doc.KeyValuePairs) > 0 {
		push("")
		for _, kv := range doc.KeyValuePairs {
			push(fmt.Sprintf("%s: %s", kv.Key, kv.Value))
		}
	}

	for _, s := range doc.Sections {
		push("")
		push(s.Heading)
		push(strings.Repeat("-", len(s.Heading)))
		push(s.Content)
	}

	for _, t := range doc.Tables {
		push("")
		if t.Caption != "" {
			push(t.Caption)
		}
		for _, l := range tableLines(t) {
			push(l)
		}
	}

	if doc.RawText != "" {
		push("")
		push(doc.RawText)
	}
	return lines
}

// tableLines renders a table with columns padded to their widest cell.
func tableLines(t extraction.Table) []string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, len(cell))
			} else if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var out []string
	if len(t.Headers) > 0 {
		out = append(out, pad(t.Headers))
		total := 0
		for _, w := range widths {
			total += w + 2
		}
		if total > 2 {
			out = append(out, strings.Repeat("-", total-2))
		}
	}
	for _, row := range t.Rows {
		out = append(out, pad(row))
	}
	return out
}
