package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultEmptyCellThreshold is the empty-cell ratio above which a table is
// re-extracted. Strictly greater-than: a table at exactly the threshold is
// kept. Empirically tuned against handwritten registers.
const DefaultEmptyCellThreshold = 0.4

// FileData is the original uploaded file, handed back to the model for a
// re-extraction pass.
type FileData struct {
	Bytes    []byte
	MIMEType string
}

// ModelFunc is the black-box vision call: file plus prompt in, raw text out.
// The text may be truncated or otherwise malformed; the gate parses it with
// the same tolerance as the primary pipeline.
type ModelFunc func(ctx context.Context, prompt string, file FileData) (string, error)

// Gate re-extracts tables whose cells came back mostly blank. The upstream
// OCR frequently returns correct table skeletons with empty cell values,
// particularly for handwritten registers; re-prompting with the partial
// result as context materially improves yield.
type Gate struct {
	Model     ModelFunc
	Threshold float64 // zero means DefaultEmptyCellThreshold
	Logger    *slog.Logger
}

// Refine returns a table set where low-quality tables may have been replaced
// by better re-extractions. It never fails outward: model or parse errors
// during re-extraction are absorbed and the original tables are returned.
// At most one model call is made, covering every queued table.
func (g *Gate) Refine(ctx context.Context, tables []Table, file FileData) []Table {
	threshold := g.Threshold
	if threshold == 0 {
		threshold = DefaultEmptyCellThreshold
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var queued []int
	for i, t := range tables {
		if len(t.Rows) == 0 {
			// Header-only tables have no data cells to judge.
			continue
		}
		if EmptyCellRatio(t) > threshold {
			queued = append(queued, i)
		}
	}
	if len(queued) == 0 {
		return tables
	}

	logger.Info("re-extracting low-quality tables",
		"queued", len(queued),
		"total", len(tables),
		"threshold", threshold)

	candidates, err := g.reextract(ctx, tables, queued, file)
	if err != nil {
		logger.Warn("table re-extraction failed, keeping originals", "error", err)
		return tables
	}

	out := make([]Table, len(tables))
	copy(out, tables)
	for pos, idx := range queued {
		if pos >= len(candidates) {
			break
		}
		candidate := candidates[pos]
		origRatio := EmptyCellRatio(out[idx])
		candRatio := EmptyCellRatio(candidate)
		// Strict improvement only: never regress a table that was already
		// as well filled as the re-read.
		if candRatio < origRatio {
			candidate.Caption = preferCaption(candidate.Caption, out[idx].Caption)
			out[idx] = candidate
			logger.Info("replaced table with re-extraction",
				"table", idx, "before", origRatio, "after", candRatio)
		}
	}
	return out
}

// reextract issues the single combined re-extraction call and parses the
// response into candidate tables aligned positionally with queued.
func (g *Gate) reextract(ctx context.Context, tables []Table, queued []int, file FileData) ([]Table, error) {
	if g.Model == nil {
		return nil, fmt.Errorf("no model configured")
	}
	prompt := reextractionPrompt(tables, queued)
	text, err := g.Model(ctx, prompt, file)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	candidates, err := parseReextraction(text)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return candidates, nil
}

// reextractionPrompt quotes each queued table's caption and current partial
// data and demands a complete re-read with explicit placeholders instead of
// blank cells.
func reextractionPrompt(tables []Table, queued []int) string {
	var b strings.Builder
	b.WriteString("The following tables were extracted from this document, but many cells came back empty. ")
	b.WriteString("Re-read the source document carefully and return every listed table in full.\n\n")
	for i, idx := range queued {
		t := tables[idx]
		fmt.Fprintf(&b, "Table %d", i+1)
		if t.Caption != "" {
			fmt.Fprintf(&b, " (%s)", t.Caption)
		}
		b.WriteString(", current partial read:\n")
		b.WriteString(t.CompactData())
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with JSON only: {\"tables\": [{\"caption\": \"...\", \"data\": \"Header|Header\\nCell|Cell\"}]} ")
	b.WriteString("with one entry per table, in the order listed. ")
	b.WriteString("Zero tolerance for blank cells: if a value is genuinely absent or illegible, write \"-\" explicitly.")
	return b.String()
}

// parseReextraction decodes the re-extraction response: direct JSON parse,
// then fenced-block unwrap, then truncation repair.
func parseReextraction(text string) ([]Table, error) {
	payload := unwrapFence(text)

	raw := json.RawMessage(payload)
	if !json.Valid(raw) {
		repaired, ok := RepairJSON(payload)
		if !ok {
			return nil, fmt.Errorf("response is not valid or repairable JSON")
		}
		raw = repaired
	}

	var envelope struct {
		Tables []RawTable `json:"tables"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// A bare array of tables is also accepted.
		var list []RawTable
		if err2 := json.Unmarshal(raw, &list); err2 != nil {
			return nil, err
		}
		envelope.Tables = list
	}

	candidates := make([]Table, 0, len(envelope.Tables))
	for _, rt := range envelope.Tables {
		t, ok := NormalizeTable(rt)
		if !ok {
			continue
		}
		candidates = append(candidates, t)
	}
	return candidates, nil
}

// EmptyCellRatio computes the share of blank data cells in a table. Each
// row's effective cell count is the larger of its own length and the header
// length, so a short ragged row counts its missing cells as empty.
func EmptyCellRatio(t Table) float64 {
	var empty, total int
	for _, row := range t.Rows {
		width := len(row)
		if len(t.Headers) > width {
			width = len(t.Headers)
		}
		total += width
		for _, cell := range row {
			if strings.TrimSpace(cell) == "" {
				empty++
			}
		}
		if len(row) < width {
			empty += width - len(row)
		}
	}
	if total == 0 {
		return 0
	}
	return float64(empty) / float64(total)
}

// preferCaption keeps the original caption when the re-extraction came back
// without one.
func preferCaption(candidate, original string) string {
	if strings.TrimSpace(candidate) == "" {
		return original
	}
	return candidate
}
