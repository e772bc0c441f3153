package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformedCatalog indicates the document could not be parsed as
// well-formed XML. A parse failure is fatal for that document; no partial
// traversal is attempted.
var ErrMalformedCatalog = errors.New("malformed catalog")

// xmlDiag is a diagnosis element. The code lives in <name> and the
// description in <desc>; diagnoses nest recursively for sub-codes.
type xmlDiag struct {
	Name  string    `xml:"name"`
	Desc  string    `xml:"desc"`
	Diags []xmlDiag `xml:"diag"`
}

// xmlSection is a grouping element between chapter and diagnosis.
type xmlSection struct {
	Desc     string       `xml:"desc"`
	Sections []xmlSection `xml:"section"`
	Diags    []xmlDiag    `xml:"diag"`
}

// xmlChapter carries the category heading in <desc>.
type xmlChapter struct {
	Desc     string       `xml:"desc"`
	Sections []xmlSection `xml:"section"`
	Diags    []xmlDiag    `xml:"diag"`
}

// xmlTabular is the document root. The root element name varies between
// catalog releases (ICD10CM.tabular, ICD10CM.index, plain wrappers), so
// it is captured rather than matched.
type xmlTabular struct {
	XMLName xml.Name
	// Stray elements outside any chapter still need the
	// no-enclosing-chapter policy applied downstream.
	Chapters []xmlChapter `xml:"chapter"`
	Sections []xmlSection `xml:"section"`
	Diags    []xmlDiag    `xml:"diag"`
}

// ParseFile opens and parses one catalog document. Read-only file access;
// no retries.
func ParseFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	cat, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cat.Path = path
	return cat, nil
}

// Parse decodes a catalog document from r into a node tree.
// Returns an error wrapping ErrMalformedCatalog if the XML is not well formed.
func Parse(r io.Reader) (*Catalog, error) {
	var doc xmlTabular
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}

	cat := &Catalog{RootTag: doc.XMLName.Local}

	for i := range doc.Chapters {
		cat.Nodes = append(cat.Nodes, buildChapter(&doc.Chapters[i]))
	}
	for i := range doc.Sections {
		cat.Nodes = append(cat.Nodes, buildSection(&doc.Sections[i]))
	}
	for i := range doc.Diags {
		cat.Nodes = append(cat.Nodes, buildDiag(&doc.Diags[i]))
	}

	return cat, nil
}

func buildChapter(c *xmlChapter) *Node {
	n := &Node{Kind: KindChapter, Label: c.Desc}
	for i := range c.Sections {
		n.Children = append(n.Children, buildSection(&c.Sections[i]))
	}
	for i := range c.Diags {
		n.Children = append(n.Children, buildDiag(&c.Diags[i]))
	}
	return n
}

func buildSection(s *xmlSection) *Node {
	n := &Node{Kind: KindSection, Label: s.Desc}
	for i := range s.Sections {
		n.Children = append(n.Children, buildSection(&s.Sections[i]))
	}
	for i := range s.Diags {
		n.Children = append(n.Children, buildDiag(&s.Diags[i]))
	}
	return n
}

func buildDiag(d *xmlDiag) *Node {
	n := &Node{Kind: KindDiagnosis, Code: d.Name, Label: d.Desc}
	for i := range d.Diags {
		n.Children = append(n.Children, buildDiag(&d.Diags[i]))
	}
	return n
}
