// Package depths enumerates call paths from entry points and finds
// definitions reached at inconsistent depths via genuinely distinct
// chains. A function whose call sites all sit at the same depth below
// the entry points has one layering story; a function reached at depth
// 2 by one chain and depth 5 by another, with no shared intermediate,
// lives in two layers at once.
package depths

import (
	"sort"
	"strings"

	"codedepth/internal/callgraph"
	"codedepth/internal/lsp"
)

// Path is one call chain, entry point first, target last. Its length
// counts items, both endpoints included: an entry point's own path is
// the single-element chain containing just itself.
type Path []lsp.CallHierarchyItem

// ItemPaths collects every path that reaches one item, unioned across
// all entry points.
type ItemPaths struct {
	Item  lsp.CallHierarchyItem
	Paths []Path
}

// Roots returns the entry points of the edge set: items that make
// calls but are never called. Output order is deterministic.
func Roots(edges []callgraph.Edge) []lsp.CallHierarchyItem {
	callees := map[callgraph.ItemKey]bool{}
	for _, e := range edges {
		callees[callgraph.KeyOf(e.Callee)] = true
	}

	seen := map[callgraph.ItemKey]bool{}
	var roots []lsp.CallHierarchyItem
	for _, e := range edges {
		key := callgraph.KeyOf(e.Caller)
		if callees[key] || seen[key] {
			continue
		}
		seen[key] = true
		roots = append(roots, e.Caller)
	}

	sortItems(roots)
	return roots
}

// PathsFromRoots walks the call graph down from every entry point and
// enumerates all simple paths (no item repeats within one path, so
// cycles terminate). Each reachable item accumulates the union of its
// paths across all entry points; an entry point carries its own
// single-element path. Items that appear in no edge appear in no
// result.
func PathsFromRoots(edges []callgraph.Edge) []ItemPaths {
	adjacency, items := buildGraph(edges)

	collected := map[callgraph.ItemKey][]Path{}
	for _, root := range Roots(edges) {
		walk(callgraph.KeyOf(root), adjacency, items, nil, map[callgraph.ItemKey]bool{}, collected)
	}

	result := make([]ItemPaths, 0, len(collected))
	for key, paths := range collected {
		result = append(result, ItemPaths{Item: items[key], Paths: paths})
	}
	sort.Slice(result, func(i, j int) bool {
		return lessItem(result[i].Item, result[j].Item)
	})

	return result
}

// Inconsistent reports whether an item's path collection shows a real
// layering conflict: the paths disagree on depth, and no two of them
// share any hop other than the item itself. A shared intermediate
// means the depths differ only past a common point, which is ordinary
// fan-in rather than a layering problem.
func Inconsistent(ip ItemPaths) bool {
	itemKey := callgraph.KeyOf(ip.Item)

	lengths := map[int]bool{}
	for _, path := range ip.Paths {
		lengths[len(path)] = true
	}
	if len(lengths) < 2 {
		return false
	}

	hops := map[callgraph.ItemKey]bool{}
	for _, path := range ip.Paths {
		for _, hop := range path {
			key := callgraph.KeyOf(hop)
			if key == itemKey {
				continue
			}
			if hops[key] {
				return false
			}
			hops[key] = true
		}
	}

	return true
}

// ItemName projects an item onto its short form: the file path
// relative to the project root, a colon, and the symbol name with any
// signature suffix cut at the first parenthesis.
func ItemName(item lsp.CallHierarchyItem, rootURI string) string {
	name := item.Name
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.TrimPrefix(item.URI, rootURI) + ":" + name
}

// buildGraph dedupes the edge set into adjacency lists keyed by item
// identity, keeping one representative item per key. Adjacency order
// is sorted so path enumeration is deterministic.
func buildGraph(edges []callgraph.Edge) (map[callgraph.ItemKey][]callgraph.ItemKey, map[callgraph.ItemKey]lsp.CallHierarchyItem) {
	adjacency := map[callgraph.ItemKey][]callgraph.ItemKey{}
	items := map[callgraph.ItemKey]lsp.CallHierarchyItem{}
	seen := map[[2]callgraph.ItemKey]bool{}

	for _, e := range edges {
		caller, callee := callgraph.KeyOf(e.Caller), callgraph.KeyOf(e.Callee)
		if _, ok := items[caller]; !ok {
			items[caller] = e.Caller
		}
		if _, ok := items[callee]; !ok {
			items[callee] = e.Callee
		}

		pair := [2]callgraph.ItemKey{caller, callee}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		adjacency[caller] = append(adjacency[caller], callee)
	}

	for _, callees := range adjacency {
		sort.Slice(callees, func(i, j int) bool {
			return lessItem(items[callees[i]], items[callees[j]])
		})
	}

	return adjacency, items
}

func walk(
	node callgraph.ItemKey,
	adjacency map[callgraph.ItemKey][]callgraph.ItemKey,
	items map[callgraph.ItemKey]lsp.CallHierarchyItem,
	trail []callgraph.ItemKey,
	onPath map[callgraph.ItemKey]bool,
	collected map[callgraph.ItemKey][]Path,
) {
	trail = append(trail, node)
	onPath[node] = true

	path := make(Path, len(trail))
	for i, key := range trail {
		path[i] = items[key]
	}
	collected[node] = append(collected[node], path)

	for _, next := range adjacency[node] {
		if onPath[next] {
			continue
		}
		walk(next, adjacency, items, trail, onPath, collected)
	}

	delete(onPath, node)
}

func sortItems(items []lsp.CallHierarchyItem) {
	sort.Slice(items, func(i, j int) bool {
		return lessItem(items[i], items[j])
	})
}

func lessItem(a, b lsp.CallHierarchyItem) bool {
	if a.URI != b.URI {
		return a.URI < b.URI
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.SelectionRange.Start.Line != b.SelectionRange.Start.Line {
		return a.SelectionRange.Start.Line < b.SelectionRange.Start.Line
	}
	return a.SelectionRange.Start.Character < b.SelectionRange.Start.Character
}
