package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `
results-summary-component:
  title: Results summary component
  description: A score card.
  stacks: [HTML, CSS]
  previewImage: ./design/preview.jpg
  challengeLink: https://www.frontendmentor.io/challenges/results-summary-component
age-calculator-app:
  title: Age calculator app
  description: Calculates an age.
  stacks:
    - React
    - TypeScript
  previewImage: /images/age.png
  repoLink: https://github.com/someone/age-calculator
empty-entry:
`

func TestParseBytes_YAML(t *testing.T) {
	m, err := ParseBytes([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"results-summary-component", "age-calculator-app", "empty-entry"}
	if diff := cmp.Diff(want, m.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	e, ok := m.Get("age-calculator-app")
	if !ok {
		t.Fatal("age-calculator-app missing")
	}
	wantEntry := Entry{
		Title:        "Age calculator app",
		Description:  "Calculates an age.",
		Stacks:       []string{"React", "TypeScript"},
		PreviewImage: "/images/age.png",
		RepoLink:     "https://github.com/someone/age-calculator",
	}
	if diff := cmp.Diff(wantEntry, e); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	if e, _ := m.Get("empty-entry"); e.Title != "" {
		t.Errorf("empty-entry title = %q", e.Title)
	}
}

func TestParseBytes_TOML(t *testing.T) {
	data := `
["b-solution"]
title = "B"
stacks = ["Go"]

["a-solution"]
title = "A"
liveLink = "https://example.com/a"
`
	m, err := ParseBytes([]byte(data), FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a-solution", "b-solution"}, m.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	if e, _ := m.Get("a-solution"); e.LiveLink != "https://example.com/a" {
		t.Errorf("LiveLink = %q", e.LiveLink)
	}
}

func TestParseBytes_Empty(t *testing.T) {
	for _, data := range []string{"", "   \n", "# only a comment\n", "~\n"} {
		m, err := ParseBytes([]byte(data), FormatYAML)
		if err != nil {
			t.Fatalf("%q: %v", data, err)
		}
		if m.Len() != 0 {
			t.Errorf("%q: Len() = %d", data, m.Len())
		}
	}
}

func TestParseBytes_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   string
	}{
		{"malformed", "a: [unclosed", FormatYAML, "failed to parse manifest"},
		{"sequence", "- a\n- b\n", FormatYAML, "top level must be a mapping"},
		{"duplicate", "a:\n  title: x\na:\n  title: y\n", FormatYAML, "failed to parse manifest"},
		{"slash", "\"a/b\":\n  title: x\n", FormatYAML, "path or URL separator"},
		{"dotdot", "\"..\":\n  title: x\n", FormatYAML, "reserved"},
		{"at", "\"@vite\":\n  title: x\n", FormatYAML, "must not start"},
		{"toml unknown field", "[a]\ntitel = \"x\"\n", FormatTOML, "failed to parse manifest"},
		{"format", "", Format("json"), "unsupported manifest format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "solutions.yml")
	if err := os.WriteFile(p, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := Parse(p)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	if _, err := Parse(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Parse(filepath.Join(dir, "solutions.ini")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestSchemaJSON(t *testing.T) {
	b, err := SchemaJSON()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["$id"] != SchemaID {
		t.Errorf("$id = %v", doc["$id"])
	}
	if doc["type"] != "object" {
		t.Errorf("type = %v, want object", doc["type"])
	}
	for _, field := range []string{"previewImage", "repoLink", "stacks"} {
		if !strings.Contains(string(b), `"`+field+`"`) {
			t.Errorf("schema does not mention %q", field)
		}
	}
}
