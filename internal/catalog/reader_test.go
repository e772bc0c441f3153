package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// Parse Tests
// ============================================================================

const sampleTabular = `<?xml version="1.0" encoding="UTF-8"?>
<ICD10CM.tabular>
  <chapter>
    <desc>Certain infectious and parasitic diseases (A00-B99)</desc>
    <section>
      <desc>Intestinal infectious diseases (A00-A09)</desc>
      <diag>
        <name>A00</name>
        <desc>Cholera</desc>
        <diag>
          <name>A00.0</name>
          <desc>Cholera due to Vibrio cholerae 01, biovar cholerae</desc>
        </diag>
        <diag>
          <name>A00.1</name>
          <desc>Cholera due to Vibrio cholerae 01, biovar eltor</desc>
        </diag>
      </diag>
    </section>
  </chapter>
  <chapter>
    <desc>Neoplasms (C00-D49)</desc>
    <diag>
      <name>C00</name>
      <desc>Malignant neoplasm of lip</desc>
    </diag>
  </chapter>
</ICD10CM.tabular>`

func TestParse(t *testing.T) {
	cat, err := Parse(strings.NewReader(sampleTabular))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cat.RootTag != "ICD10CM.tabular" {
		t.Errorf("RootTag = %q, want %q", cat.RootTag, "ICD10CM.tabular")
	}
	if len(cat.Nodes) != 2 {
		t.Fatalf("got %d top-level nodes, want 2", len(cat.Nodes))
	}

	ch := cat.Nodes[0]
	if ch.Kind != KindChapter {
		t.Errorf("Nodes[0].Kind = %v, want %v", ch.Kind, KindChapter)
	}
	if want := "Certain infectious and parasitic diseases (A00-B99)"; ch.Label != want {
		t.Errorf("chapter label = %q, want %q", ch.Label, want)
	}
	if len(ch.Children) != 1 || ch.Children[0].Kind != KindSection {
		t.Fatalf("chapter children = %+v, want one section", ch.Children)
	}

	sec := ch.Children[0]
	if len(sec.Children) != 1 {
		t.Fatalf("section has %d children, want 1", len(sec.Children))
	}
	diag := sec.Children[0]
	if diag.Kind != KindDiagnosis || diag.Code != "A00" {
		t.Errorf("diag = kind %v code %q, want diagnosis A00", diag.Kind, diag.Code)
	}
	if len(diag.Children) != 2 {
		t.Errorf("A00 has %d sub-diagnoses, want 2", len(diag.Children))
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "truncated document", input: `<ICD10CM.tabular><chapter><desc>x</desc>`},
		{name: "not XML at all", input: `code,description` + "\n" + `A00,Cholera`},
		{name: "mismatched tags", input: `<root><chapter></diag></root>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Parse() error = nil, want malformed catalog error")
			}
			if !errors.Is(err, ErrMalformedCatalog) {
				t.Errorf("error %v does not wrap ErrMalformedCatalog", err)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cat, err := Parse(strings.NewReader(`<ICD10CM.tabular></ICD10CM.tabular>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cat.Nodes) != 0 {
		t.Errorf("got %d nodes, want 0", len(cat.Nodes))
	}
}

// Diagnoses outside any chapter still parse; the normalizer decides what to
// do with their missing category.
func TestParseStrayDiagnosis(t *testing.T) {
	cat, err := Parse(strings.NewReader(
		`<root><diag><name>Z99</name><desc>Dependence on enabling machines</desc></diag></root>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cat.Nodes) != 1 || cat.Nodes[0].Kind != KindDiagnosis {
		t.Fatalf("nodes = %+v, want one stray diagnosis", cat.Nodes)
	}
}

// ============================================================================
// ParseFile Tests
// ============================================================================

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icd10_tabular.xml")
	if err := os.WriteFile(path, []byte(sampleTabular), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cat.Path != path {
		t.Errorf("cat.Path = %q, want %q", cat.Path, path)
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil {
		t.Fatal("ParseFile() error = nil, want open error")
	}
}
