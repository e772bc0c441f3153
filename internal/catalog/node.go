// Package catalog parses ICD-10 tabular XML catalogs into an in-memory
// node tree and normalizes the tree into a stream of diagnosis entries.
// This package has no storage dependencies and can be used by any importer.
package catalog

// NodeKind identifies the hierarchical level of a catalog node.
type NodeKind int

const (
	KindChapter NodeKind = iota
	KindSection
	KindDiagnosis
)

// String returns the lowercase name of the kind for logging.
func (k NodeKind) String() string {
	switch k {
	case KindChapter:
		return "chapter"
	case KindSection:
		return "section"
	case KindDiagnosis:
		return "diagnosis"
	default:
		return "unknown"
	}
}

// Node is one hierarchical element of a parsed catalog: a chapter, a
// section, or a diagnosis entry. Nodes are built once per parse and never
// mutated afterward.
type Node struct {
	Kind NodeKind

	// Label is the descriptive text: the chapter or section heading, or
	// the diagnosis description. May be empty for malformed entries.
	Label string

	// Code is the diagnosis code. Set only on diagnosis nodes; empty for
	// chapters and sections.
	Code string

	// Children are nested nodes in document order.
	Children []*Node
}

// Catalog is the parsed form of one catalog document.
type Catalog struct {
	// Path is the source file path, when parsed from a file.
	Path string

	// RootTag is the local name of the document's root element,
	// e.g. "ICD10CM.tabular".
	RootTag string

	// Nodes are the top-level nodes in document order. Normally these are
	// all chapters; stray sections or diagnoses at the top level are kept
	// so the normalizer can apply its no-enclosing-chapter policy.
	Nodes []*Node
}
