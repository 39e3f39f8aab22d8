package callgraph

import (
	"codedepth/internal/lsp"
)

// ItemKey is the identity projection of a call-hierarchy item: owning
// file, symbol name, and the exact selection range of the name token.
// The server-issued opaque Data token and the Tags are excluded:
// servers may issue different tokens for logically equal items across
// independent queries. ItemKey is a comparable value, so
// equality is reflexive, symmetric, and transitive, and it can be used
// directly as a map key (the hash projection covers the same fields).
type ItemKey struct {
	URI            string
	Name           string
	SelectionRange lsp.Range
}

// KeyOf projects an item onto its identity
func KeyOf(item lsp.CallHierarchyItem) ItemKey {
	return ItemKey{
		URI:            item.URI,
		Name:           item.Name,
		SelectionRange: item.SelectionRange,
	}
}

// Edge is one directed caller→callee relationship: the caller makes a
// call whose target resolves to the callee's definition.
type Edge struct {
	Caller lsp.CallHierarchyItem
	Callee lsp.CallHierarchyItem
}

// itemFromSymbol reconstructs a call-hierarchy item for a definition
// found via document symbols. The opaque Data token is left empty; the
// server fills it on its own responses.
func itemFromSymbol(uri string, sym lsp.DocumentSymbol) lsp.CallHierarchyItem {
	return lsp.CallHierarchyItem{
		Name:           sym.Name,
		Kind:           sym.Kind,
		Tags:           sym.Tags,
		Detail:         sym.Detail,
		URI:            uri,
		Range:          sym.Range,
		SelectionRange: sym.SelectionRange,
	}
}
