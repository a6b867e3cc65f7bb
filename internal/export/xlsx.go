// Package export renders structured extractions into downloadable files:
// XLSX workbooks for spreadsheet review and PDF summaries for printing.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/carefile/carefile/internal/extraction"
)

// DocumentMeta labels an export with where the document came from.
type DocumentMeta struct {
	DepartmentName string
	Filename       string
}

const summarySheet = "Summary"

// DocumentXLSX renders one structured document as a workbook: a summary
// sheet with the key-value pairs and sections, plus one sheet per table.
func DocumentXLSX(doc *extraction.StructuredExtraction, meta DocumentMeta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	writeSummarySheet(f, summarySheet, doc, meta)

	for i, table := range doc.Tables {
		name := tableSheetName(table.Caption, i)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx: sheet %q: %w", name, err)
		}
		writeTableSheet(f, name, table)
	}

	idx, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// DepartmentXLSX renders every extracted document of a department into one
// workbook, a sheet per document. Documents without tables still get their
// summary rows.
func DepartmentXLSX(departmentName string, docs []DepartmentDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	set(f, summarySheet, 1, 1, "Department")
	set(f, summarySheet, 2, 1, departmentName)
	set(f, summarySheet, 1, 2, "Documents")
	set(f, summarySheet, 2, 2, len(docs))
	row := 4
	set(f, summarySheet, 1, row, "Filename")
	set(f, summarySheet, 2, row, "Title")
	set(f, summarySheet, 3, row, "Tables")
	for _, d := range docs {
		row++
		set(f, summarySheet, 1, row, d.Meta.Filename)
		set(f, summarySheet, 2, row, d.Doc.Title)
		set(f, summarySheet, 3, row, len(d.Doc.Tables))
	}

	used := map[string]bool{summarySheet: true}
	for _, d := range docs {
		name := uniqueSheetName(sanitizeSheetName(d.Meta.Filename), used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx: sheet %q: %w", name, err)
		}
		writeDocumentSheet(f, name, d.Doc)
	}

	idx, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// DepartmentDocument pairs a parsed document with its metadata for the
// batch export.
type DepartmentDocument struct {
	Meta DocumentMeta
	Doc  *extraction.StructuredExtraction
}

func writeSummarySheet(f *excelize.File, sheet string, doc *extraction.StructuredExtraction, meta DocumentMeta) {
	row := 1
	writeField := func(label, value string) {
		if value == "" {
			return
		}
		set(f, sheet, 1, row, label)
		set(f, sheet, 2, row, value)
		row++
	}
	writeField("Department", meta.DepartmentName)
	writeField("File", meta.Filename)
	writeField("Title", doc.Title)
	writeField("Document Type", doc.DocumentType)

	if len(doc.KeyValuePairs) > 0 {
		row++
		set(f, sheet, 1, row, "Field")
		set(f, sheet, 2, row, "Value")
		for _, kv := range doc.KeyValuePairs {
			row++
			set(f, sheet, 1, row, kv.Key)
			set(f, sheet, 2, row, kv.Value)
		}
	}

	for _, s := range doc.Sections {
		row += 2
		set(f, sheet, 1, row, s.Heading)
		set(f, sheet, 2, row, s.Content)
	}

	if doc.RawText != "" {
		row += 2
		set(f, sheet, 1, row, "Unclassified Text")
		set(f, sheet, 2, row, doc.RawText)
	}

	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "B", "B", 64)
}

func writeTableSheet(f *excelize.File, sheet string, table extraction.Table) {
	row := 1
	if table.Caption != "" {
		set(f, sheet, 1, row, table.Caption)
		row += 2
	}
	for col, h := range table.Headers {
		set(f, sheet, col+1, row, h)
	}
	for _, cells := range table.Rows {
		row++
		for col, cell := range cells {
			set(f, sheet, col+1, row, cell)
		}
	}
}

// writeDocumentSheet flattens a whole document onto one sheet for the batch
// export: fields first, then each table with a blank row between.
func writeDocumentSheet(f *excelize.File, sheet string, doc *extraction.StructuredExtraction) {
	row := 1
	if doc.Title != "" {
		set(f, sheet, 1, row, doc.Title)
		row += 2
	}
	for _, kv := range doc.KeyValuePairs {
		set(f, sheet, 1, row, kv.Key)
		set(f, sheet, 2, row, kv.Value)
		row++
	}
	for _, table := range doc.Tables {
		row++
		if table.Caption != "" {
			set(f, sheet, 1, row, table.Caption)
			row++
		}
		for col, h := range table.Headers {
			set(f, sheet, col+1, row, h)
		}
		for _, cells := range table.Rows {
			row++
			for col, cell := range cells {
				set(f, sheet, col+1, row, cell)
			}
		}
		row += 2
	}
}

func set(f *excelize.File, sheet string, col, row int, v any) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	_ = f.SetCellValue(sheet, cell, v)
}

// sanitizeSheetName strips the characters Excel forbids in sheet names and
// clamps to the 31-character limit.
func sanitizeSheetName(name string) string {
	if name == "" {
		return "Document"
	}
	replacer := strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")
	name = replacer.Replace(name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func uniqueSheetName(base string, used map[string]bool) string {
	name := base
	for i := 2; used[name]; i++ {
		suffix := fmt.Sprintf(" %d", i)
		if len(base)+len(suffix) > 31 {
			name = base[:31-len(suffix)] + suffix
		} else {
			name = base + suffix
		}
	}
	used[name] = true
	return name
}

func tableSheetName(caption string, index int) string {
	if strings.TrimSpace(caption) == "" {
		return fmt.Sprintf("Table %d", index+1)
	}
	return sanitizeSheetName(fmt.Sprintf("%d %s", index+1, caption))
}
