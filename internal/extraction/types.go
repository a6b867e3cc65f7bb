// Package extraction post-processes raw vision-model output into a canonical
// structured document.
//
// The model is asked for JSON, but real responses arrive markdown-fenced,
// truncated at the output-token limit, or as loosely formatted prose. This
// package turns all of those into a StructuredExtraction: direct JSON decode
// where possible, heuristic JSON repair for truncated output, and a
// line-oriented markdown fallback when the text is not JSON at all. A
// quality gate re-requests tables whose cells came back mostly blank.
//
// Every function here is a pure function of its arguments; the one network
// suspension point is the quality gate's single re-extraction call.
package extraction

import "strings"

// KeyValuePair is one labeled value from a document, e.g. "Dept: ICU".
// Duplicate keys are preserved in document order, never merged.
type KeyValuePair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Section is a narrative block under a heading. Content is newline-joined
// from the source lines.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Table is a canonical table. Rows are not padded or truncated to the header
// width: a ragged row is a valid, observable state and renderers index
// defensively.
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// StructuredExtraction is the canonical output record. It is derived fresh
// on every parse of the persisted raw-text blob and is never stored itself.
type StructuredExtraction struct {
	Title         string         `json:"title,omitempty"`
	DocumentType  string         `json:"documentType,omitempty"`
	KeyValuePairs []KeyValuePair `json:"keyValuePairs"`
	Sections      []Section      `json:"sections"`
	Tables        []Table        `json:"tables"`

	// RawText is set only when no structured fields could be populated.
	// It is a fallback channel, not a summary of the other fields.
	RawText string `json:"rawText,omitempty"`
}

// Empty reports whether no structured fields were populated. Callers use
// this to decide whether to display RawText (or the original input) instead.
func (d *StructuredExtraction) Empty() bool {
	return len(d.KeyValuePairs) == 0 && len(d.Sections) == 0 && len(d.Tables) == 0
}

// Diagnostics reports what the parser had to do to produce a result. Parsing
// never fails outward; this is the observability channel for the silent
// degradation steps.
type Diagnostics struct {
	// RepairAttempted is true when direct JSON decoding failed and the
	// truncation-repair pass ran.
	RepairAttempted bool `json:"repairAttempted"`
	// RepairSucceeded is true when the repair pass yielded usable JSON.
	RepairSucceeded bool `json:"repairSucceeded"`
	// FallbackUsed is true when the markdown fallback parser produced the
	// result instead of JSON decoding.
	FallbackUsed bool `json:"fallbackUsed"`
	// SchemaValid is true when the decoded JSON validated against the
	// canonical schema without any lenient coercion.
	SchemaValid bool `json:"schemaValid"`
	// TablesDropped counts table entries discarded because they matched
	// neither the compact nor the pre-split shape.
	TablesDropped int `json:"tablesDropped"`
}

// CompactData renders the table in the compact pipe-delimited encoding used
// in model prompts and responses: one header line followed by one line per
// row.
func (t Table) CompactData() string {
	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, strings.Join(t.Headers, "|"))
	for _, row := range t.Rows {
		lines = append(lines, strings.Join(row, "|"))
	}
	return strings.Join(lines, "\n")
}
