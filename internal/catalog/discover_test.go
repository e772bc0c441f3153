package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ============================================================================
// FindCatalogFiles Tests
// ============================================================================

func TestFindCatalogFiles(t *testing.T) {
	dir := t.TempDir()

	tabular := `<ICD10CM.tabular><chapter><desc>c</desc></chapter></ICD10CM.tabular>`
	writeFile(t, filepath.Join(dir, "icd10cm_tabular_2024.xml"), tabular)
	writeFile(t, filepath.Join(dir, "nested", "icd10_extra.xml"),
		`<wrapper><chapter><desc>c</desc></chapter></wrapper>`)

	// Should all be ignored: wrong extension, wrong name, wrong content.
	writeFile(t, filepath.Join(dir, "icd10_notes.txt"), tabular)
	writeFile(t, filepath.Join(dir, "products.xml"), tabular)
	writeFile(t, filepath.Join(dir, "icd10_broken.xml"), `<open>no close`)
	writeFile(t, filepath.Join(dir, "icd10_unrelated.xml"), `<invoice><line/></invoice>`)

	files, err := FindCatalogFiles(dir)
	if err != nil {
		t.Fatalf("FindCatalogFiles() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "icd10cm_tabular_2024.xml"),
		filepath.Join(dir, "nested", "icd10_extra.xml"),
	}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestFindCatalogFilesNotADirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icd10.xml")
	writeFile(t, path, `<ICD10CM.tabular/>`)

	if _, err := FindCatalogFiles(path); err == nil {
		t.Fatal("FindCatalogFiles() on a file: error = nil, want error")
	}
}

// ============================================================================
// IsCatalogFile Tests
// ============================================================================

func TestIsCatalogFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name:    "tabular root",
			content: `<ICD10CM.tabular></ICD10CM.tabular>`,
			want:    true,
		},
		{
			name:    "index root",
			content: `<ICD10CM.index></ICD10CM.index>`,
			want:    true,
		},
		{
			name:    "unknown root with chapter",
			content: `<data><chapter><desc>c</desc></chapter></data>`,
			want:    true,
		},
		{
			name:    "unknown root without chapter",
			content: `<data><row/></data>`,
			want:    false,
		},
		{
			name:    "not XML",
			content: `hello`,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".xml")
			writeFile(t, path, tt.content)
			if got := IsCatalogFile(path); got != tt.want {
				t.Errorf("IsCatalogFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// ResolvePaths Tests
// ============================================================================

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()
	catalogXML := `<ICD10CM.tabular><chapter><desc>c</desc></chapter></ICD10CM.tabular>`

	direct := filepath.Join(dir, "direct.xml")
	writeFile(t, direct, catalogXML)

	sub := filepath.Join(dir, "catalogs")
	inDir := filepath.Join(sub, "icd10_tabular.xml")
	writeFile(t, inDir, catalogXML)

	files, err := ResolvePaths([]string{direct, sub})
	if err != nil {
		t.Fatalf("ResolvePaths() error = %v", err)
	}

	// Explicit files pass through untouched, even without an icd name.
	want := []string{direct, inDir}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestResolvePathsMissing(t *testing.T) {
	if _, err := ResolvePaths([]string{filepath.Join(t.TempDir(), "absent")}); err == nil {
		t.Fatal("ResolvePaths() error = nil, want stat error")
	}
}
