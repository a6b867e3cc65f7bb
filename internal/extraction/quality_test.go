package extraction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestEmptyCellRatio(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  float64
	}{
		{
			name:  "fully populated",
			table: Table{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}},
			want:  0,
		},
		{
			name:  "half empty",
			table: Table{Headers: []string{"A", "B"}, Rows: [][]string{{"1", ""}, {"", "4"}}},
			want:  0.5,
		},
		{
			name:  "whitespace counts as empty",
			table: Table{Headers: []string{"A"}, Rows: [][]string{{"   "}}},
			want:  1,
		},
		{
			name: "short ragged row counts missing cells as empty",
			// 2 rows x 3 effective cells; second row supplies one value.
			table: Table{Headers: []string{"A", "B", "C"}, Rows: [][]string{{"1", "2", "3"}, {"1"}}},
			want:  2.0 / 6.0,
		},
		{
			name: "long ragged row uses its own length",
			// 1 row, 4 cells (row longer than header), one blank.
			table: Table{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2", "", "4"}}},
			want:  0.25,
		},
		{
			name:  "no rows",
			table: Table{Headers: []string{"A", "B"}},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EmptyCellRatio(tt.table)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EmptyCellRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

// tableWithRatio builds a 10-cell single-header table with the given number
// of empty cells.
func tableWithRatio(emptyCells int) Table {
	rows := make([][]string, 10)
	for i := range rows {
		if i < emptyCells {
			rows[i] = []string{""}
		} else {
			rows[i] = []string{fmt.Sprintf("v%d", i)}
		}
	}
	return Table{Headers: []string{"A"}, Rows: rows}
}

func TestGate_ThresholdIsStrict(t *testing.T) {
	var called bool
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			called = true
			return `{"tables":[]}`, nil
		},
	}

	t.Run("at threshold not queued", func(t *testing.T) {
		called = false
		gate.Refine(context.Background(), []Table{tableWithRatio(4)}, FileData{})
		if called {
			t.Error("table at exactly 40% empty must not be re-extracted")
		}
	})

	t.Run("above threshold queued", func(t *testing.T) {
		called = false
		gate.Refine(context.Background(), []Table{tableWithRatio(5)}, FileData{})
		if !called {
			t.Error("table above 40% empty must be re-extracted")
		}
	})
}

func TestGate_HeaderOnlyTableSkipped(t *testing.T) {
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			t.Error("header-only table must not trigger re-extraction")
			return "", nil
		},
	}
	gate.Refine(context.Background(), []Table{{Headers: []string{"A", "B"}}}, FileData{})
}

func TestGate_StrictImprovementRequired(t *testing.T) {
	// Candidate has the same 50% empty ratio as the original: keep original.
	original := Table{Caption: "Items", Headers: []string{"A", "B"}, Rows: [][]string{{"1", ""}, {"", "4"}}}
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			return `{"tables":[{"caption":"Items","data":"A|B\nx|\n|y"}]}`, nil
		},
	}
	got := gate.Refine(context.Background(), []Table{original}, FileData{})
	if got[0].Rows[0][0] != "1" {
		t.Errorf("equal-ratio candidate must not replace original, got %v", got[0].Rows)
	}
}

func TestGate_BetterCandidateReplaces(t *testing.T) {
	original := Table{Caption: "Items", Headers: []string{"A", "B"}, Rows: [][]string{{"1", ""}, {"", ""}}}
	var prompt string
	gate := &Gate{
		Model: func(ctx context.Context, p string, file FileData) (string, error) {
			prompt = p
			return "```json\n{\"tables\":[{\"data\":\"A|B\\n1|2\\n3|4\"}]}\n```", nil
		},
	}
	got := gate.Refine(context.Background(), []Table{original}, FileData{})
	if got[0].Rows[0][1] != "2" || got[0].Rows[1][0] != "3" {
		t.Errorf("better candidate should replace original, got %v", got[0].Rows)
	}
	if got[0].Caption != "Items" {
		t.Errorf("caption should be preserved when candidate omits it, got %q", got[0].Caption)
	}
	if !strings.Contains(prompt, "Items") || !strings.Contains(prompt, "1|") {
		t.Errorf("prompt must quote the partial table, got %q", prompt)
	}
}

func TestGate_ModelErrorKeepsOriginals(t *testing.T) {
	original := []Table{{Headers: []string{"A"}, Rows: [][]string{{""}, {""}}}}
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			return "", errors.New("network down")
		},
	}
	got := gate.Refine(context.Background(), original, FileData{})
	if len(got) != 1 || len(got[0].Rows) != 2 {
		t.Errorf("original tables must survive a failed call, got %v", got)
	}
}

func TestGate_GarbageResponseKeepsOriginals(t *testing.T) {
	original := []Table{{Headers: []string{"A"}, Rows: [][]string{{""}, {""}}}}
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			return "sorry, I could not read the document", nil
		},
	}
	got := gate.Refine(context.Background(), original, FileData{})
	if len(got) != 1 || len(got[0].Rows) != 2 {
		t.Errorf("original tables must survive an unparseable response, got %v", got)
	}
}

func TestGate_TruncatedResponseIsRepaired(t *testing.T) {
	original := []Table{{Headers: []string{"A", "B"}, Rows: [][]string{{"", ""}, {"", ""}}}}
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			// Cut off before the closing brackets.
			return `{"tables":[{"data":"A|B\n1|2\n3|4"}`, nil
		},
	}
	got := gate.Refine(context.Background(), original, FileData{})
	if len(got[0].Rows) != 2 || got[0].Rows[0][0] != "1" {
		t.Errorf("repaired candidate should replace original, got %v", got[0].Rows)
	}
}

func TestGate_MissingCandidateKeepsOriginal(t *testing.T) {
	// Two queued tables, response only covers the first.
	tables := []Table{
		{Headers: []string{"A"}, Rows: [][]string{{""}, {""}}},
		{Headers: []string{"B"}, Rows: [][]string{{""}, {""}}},
	}
	gate := &Gate{
		Model: func(ctx context.Context, prompt string, file FileData) (string, error) {
			return `{"tables":[{"data":"A\nx\ny"}]}`, nil
		},
	}
	got := gate.Refine(context.Background(), tables, FileData{})
	if got[0].Rows[0][0] != "x" {
		t.Errorf("first table should be replaced, got %v", got[0].Rows)
	}
	if got[1].Rows[0][0] != "" {
		t.Errorf("second table must keep its original rows, got %v", got[1].Rows)
	}
}
