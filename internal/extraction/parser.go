package extraction

import (
	"encoding/json"
	"strings"
)

// Parse converts the full raw text returned for one document into a
// StructuredExtraction. It never fails: ideal input is canonical JSON,
// truncated JSON goes through RepairJSON, and anything else degrades to the
// markdown fallback parser, which at worst produces an all-empty record with
// RawText set to the whole input.
//
// Parsing is idempotent and side-effect-free; the persisted raw-text blob
// can be re-parsed for display or export at any time.
func Parse(text string) (*StructuredExtraction, Diagnostics) {
	var diag Diagnostics

	unwrapped := unwrapFence(text)

	if doc, ok := decodeCanonical(unwrapped, &diag); ok {
		return doc, diag
	}

	diag.RepairAttempted = true
	if repaired, ok := RepairJSON(unwrapped); ok {
		if doc, ok := decodeCanonical(string(repaired), &diag); ok {
			diag.RepairSucceeded = true
			return doc, diag
		}
	}

	// Not JSON in any salvageable form: heuristic scan of the original,
	// non-unwrapped text.
	diag.FallbackUsed = true
	doc := parseFallback(text)
	return doc, diag
}

// Serialize renders the canonical persisted representation of a document:
// the JSON blob that Parse round-trips.
func Serialize(doc *StructuredExtraction) string {
	b, err := json.Marshal(doc)
	if err != nil {
		// Marshal of these concrete types cannot fail; keep the raw text
		// channel as a last resort anyway.
		return doc.RawText
	}
	return string(b)
}

// canonicalDoc is the attempt-decode target for model JSON. Fields stay raw
// so a malformed member degrades that member alone instead of failing the
// whole document.
type canonicalDoc struct {
	Title         json.RawMessage `json:"title"`
	DocumentType  json.RawMessage `json:"documentType"`
	KeyValuePairs json.RawMessage `json:"keyValuePairs"`
	Sections      json.RawMessage `json:"sections"`
	Tables        json.RawMessage `json:"tables"`
}

// recognizable reports whether the decoded object carries at least one
// canonical field. JSON that decodes but matches nothing (e.g. `{"foo":1}`
// or a bare number) is not treated as an extraction document.
func (c *canonicalDoc) recognizable() bool {
	return c.Title != nil || c.KeyValuePairs != nil || c.Sections != nil || c.Tables != nil
}

// decodeCanonical attempts to decode s as a canonical extraction document.
// Returns false when s is not valid JSON or does not look like the canonical
// shape; the caller then tries repair or the markdown fallback.
func decodeCanonical(s string, diag *Diagnostics) (*StructuredExtraction, bool) {
	var c canonicalDoc
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, false
	}
	if !c.recognizable() {
		return nil, false
	}

	diag.SchemaValid = validateCanonical([]byte(s))

	doc := &StructuredExtraction{
		KeyValuePairs: []KeyValuePair{},
		Sections:      []Section{},
		Tables:        []Table{},
	}
	decodeString(c.Title, &doc.Title)
	decodeString(c.DocumentType, &doc.DocumentType)

	if c.KeyValuePairs != nil {
		var kvs []KeyValuePair
		if err := json.Unmarshal(c.KeyValuePairs, &kvs); err == nil && kvs != nil {
			doc.KeyValuePairs = kvs
		}
	}
	if c.Sections != nil {
		var secs []Section
		if err := json.Unmarshal(c.Sections, &secs); err == nil && secs != nil {
			doc.Sections = secs
		}
	}
	if c.Tables != nil {
		doc.Tables = decodeTables(c.Tables, diag)
	}
	return doc, true
}

// decodeTables runs every element of a tables array through the normalizer,
// dropping entries that match neither table shape.
func decodeTables(raw json.RawMessage, diag *Diagnostics) []Table {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []Table{}
	}
	tables := make([]Table, 0, len(elems))
	for _, elem := range elems {
		var rt RawTable
		if err := json.Unmarshal(elem, &rt); err != nil {
			diag.TablesDropped++
			continue
		}
		t, ok := NormalizeTable(rt)
		if !ok {
			diag.TablesDropped++
			continue
		}
		tables = append(tables, t)
	}
	return tables
}

func decodeString(raw json.RawMessage, dst *string) {
	if raw == nil {
		return
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*dst = s
	}
}

// unwrapFence strips one wrapping markdown code fence (optionally
// language-tagged) and returns the inner content. Text that is not fenced
// comes back unchanged.
func unwrapFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (``` or ```json).
	lines = lines[1:]
	// Drop the closing fence if present.
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
