package extraction

import (
	"reflect"
	"testing"
)

func TestNormalizeTable_Compact(t *testing.T) {
	got, ok := NormalizeTable(RawTable{Data: "A|B\n1|2\n3|4"})
	if !ok {
		t.Fatal("expected compact shape to normalize")
	}
	want := Table{
		Headers: []string{"A", "B"},
		Rows:    [][]string{{"1", "2"}, {"3", "4"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeTable_CompactTrimsAndSkipsBlanks(t *testing.T) {
	got, ok := NormalizeTable(RawTable{Caption: "Items", Data: " Item | Qty \n\nAtropine | 5\n\n Adrenaline|- \n"})
	if !ok {
		t.Fatal("expected compact shape to normalize")
	}
	if got.Caption != "Items" {
		t.Errorf("caption = %q, want Items", got.Caption)
	}
	if !reflect.DeepEqual(got.Headers, []string{"Item", "Qty"}) {
		t.Errorf("headers = %v", got.Headers)
	}
	wantRows := [][]string{{"Atropine", "5"}, {"Adrenaline", "-"}}
	if !reflect.DeepEqual(got.Rows, wantRows) {
		t.Errorf("rows = %v, want %v", got.Rows, wantRows)
	}
}

func TestNormalizeTable_RaggedRowsPassThrough(t *testing.T) {
	got, ok := NormalizeTable(RawTable{Data: "A|B|C\n1|2"})
	if !ok {
		t.Fatal("expected compact shape to normalize")
	}
	if len(got.Headers) != 3 {
		t.Fatalf("headers = %v", got.Headers)
	}
	if len(got.Rows) != 1 || len(got.Rows[0]) != 2 {
		t.Errorf("ragged row must pass through unchanged, got %v", got.Rows)
	}
}

func TestNormalizeTable_Legacy(t *testing.T) {
	in := RawTable{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}
	got, ok := NormalizeTable(in)
	if !ok {
		t.Fatal("expected legacy shape to normalize")
	}
	want := Table{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeTable_LegacyHeadersOnly(t *testing.T) {
	got, ok := NormalizeTable(RawTable{Headers: []string{"A"}})
	if !ok {
		t.Fatal("expected legacy shape to normalize")
	}
	if len(got.Rows) != 0 {
		t.Errorf("rows = %v, want empty", got.Rows)
	}
}

func TestNormalizeTable_NeitherShape(t *testing.T) {
	if _, ok := NormalizeTable(RawTable{Caption: "orphan"}); ok {
		t.Error("expected failure when neither shape is present")
	}
}

func TestTable_CompactData(t *testing.T) {
	tab := Table{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}
	if got := tab.CompactData(); got != "A|B\n1|2" {
		t.Errorf("CompactData() = %q", got)
	}
}
