package api

import (
	"bytes"
	"strings"
	"testing"
)

func TestOutputTo(t *testing.T) {
	data := map[string]string{"status": "ok"}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
		t.Fatalf("json output failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"status": "ok"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
		t.Fatalf("yaml output failed: %v", err)
	}
	if !strings.Contains(buf.String(), "status: ok") {
		t.Errorf("yaml output = %q", buf.String())
	}

	if err := OutputTo(&buf, OutputFormat("xml"), data); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSetOutputFormat(t *testing.T) {
	t.Cleanup(func() { SetOutputFormat("yaml") })

	SetOutputFormat("json")
	if globalOutputFormat != OutputFormatJSON {
		t.Errorf("format = %q", globalOutputFormat)
	}
	SetOutputFormat("bogus")
	if globalOutputFormat != OutputFormatYAML {
		t.Errorf("unknown format should fall back to yaml, got %q", globalOutputFormat)
	}
}
