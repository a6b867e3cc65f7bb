package extraction

import "strings"

// RawTable is a table as it appears in model output, in either of two
// shapes: the compact encoding (Data holds a pipe-delimited header line plus
// data lines) or the legacy pre-split encoding (Headers and Rows already
// separated). Compact is preferred in prompts because it costs far fewer
// output tokens.
type RawTable struct {
	Caption string     `json:"caption,omitempty"`
	Data    string     `json:"data,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// NormalizeTable converts a RawTable into the canonical Table shape. It
// returns false when neither shape is present; the caller drops the table
// from the result rather than failing the whole parse.
//
// No column-count enforcement happens here: row lengths pass through as-is,
// ragged rows included.
func NormalizeTable(raw RawTable) (Table, bool) {
	if raw.Data != "" {
		return normalizeCompact(raw.Caption, raw.Data), true
	}
	if raw.Headers != nil || raw.Rows != nil {
		rows := raw.Rows
		if rows == nil {
			rows = [][]string{}
		}
		headers := raw.Headers
		if headers == nil {
			headers = []string{}
		}
		return Table{Caption: raw.Caption, Headers: headers, Rows: rows}, true
	}
	return Table{}, false
}

// normalizeCompact splits the compact encoding: first non-blank line is the
// pipe-delimited header row, every following non-blank line is a data row.
func normalizeCompact(caption, data string) Table {
	t := Table{Caption: caption, Headers: []string{}, Rows: [][]string{}}
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := splitCells(line)
		if len(t.Headers) == 0 && len(t.Rows) == 0 {
			t.Headers = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// splitCells splits a pipe-delimited line and trims each cell.
func splitCells(line string) []string {
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}
