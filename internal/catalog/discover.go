package catalog

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Known ICD-10 root element names. Catalogs with other roots are accepted
// when they contain chapter elements.
const (
	rootTabular = "ICD10CM.tabular"
	rootIndex   = "ICD10CM.index"
)

// FindCatalogFiles searches dir recursively for ICD-10 catalog candidates:
// XML files whose name contains "icd" and whose content looks like an
// ICD-10 catalog. Unreadable or non-catalog files are skipped, not errors.
// Results are sorted for deterministic import order.
func FindCatalogFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".xml") || !strings.Contains(name, "icd") {
			return nil
		}
		if IsCatalogFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

// IsCatalogFile reports whether path looks like an ICD-10 catalog document.
// It streams tokens rather than parsing the whole file: the root element
// name decides immediately for known releases; otherwise the presence of
// any chapter element qualifies the file.
func IsCatalogFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF means well-formed but no chapter found; anything
			// else means not well-formed XML. Either way: not a catalog.
			return false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			sawRoot = true
			if start.Name.Local == rootTabular || start.Name.Local == rootIndex {
				return true
			}
			continue
		}
		if start.Name.Local == "chapter" {
			return true
		}
	}
}

// ResolvePaths expands a mixed list of files and directories into a flat,
// ordered list of catalog files. Files are taken as-is; directories are
// searched with FindCatalogFiles.
func ResolvePaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		found, err := FindCatalogFiles(p)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}
