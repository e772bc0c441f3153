package catalog

import (
	"iter"
	"strings"
)

// Entry is one normalized diagnosis candidate: trimmed code and
// description plus the nearest enclosing chapter heading as category.
type Entry struct {
	Code        string
	Description string

	// Category is the nearest enclosing chapter's heading. Empty when the
	// diagnosis sits outside any chapter (malformed document).
	Category string
}

// Entries returns a lazy depth-first sequence of normalized entries.
//
// Entering a chapter updates the category context for every diagnosis
// beneath it; sections are grouping only and never change the category.
// Diagnosis nodes missing a code or description after whitespace trimming
// are silently excluded: partial entries are common in real catalogs and
// must not abort a run.
func (c *Catalog) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, n := range c.Nodes {
			if !walk(n, "", yield) {
				return
			}
		}
	}
}

// walk visits n and its children in document order. category is the
// current chapter context. Returns false when the consumer stopped.
func walk(n *Node, category string, yield func(Entry) bool) bool {
	switch n.Kind {
	case KindChapter:
		category = strings.TrimSpace(n.Label)

	case KindDiagnosis:
		code := strings.TrimSpace(n.Code)
		desc := strings.TrimSpace(n.Label)
		if code != "" && desc != "" {
			if !yield(Entry{Code: code, Description: desc, Category: category}) {
				return false
			}
		}
	}

	for _, child := range n.Children {
		if !walk(child, category, yield) {
			return false
		}
	}
	return true
}
