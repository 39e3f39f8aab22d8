// Package report turns the analysis into its user-facing JSON form:
// items keyed by short name, each with its call paths, split into an
// "ok" and a "problems" section.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"

	"codedepth/internal/callgraph"
	"codedepth/internal/depths"
)

// Result is the output document. Both maps go from an item's short
// name to its list of call paths, each path a list of short names.
type Result struct {
	OK       map[string][][]string `json:"ok"`
	Problems map[string][][]string `json:"problems"`
}

// FilterEdges drops every edge where either endpoint's short name
// matches the ignore expression. Filtering happens before path
// enumeration so ignored items neither appear in results nor act as
// hops.
func FilterEdges(edges []callgraph.Edge, ignore *regexp.Regexp, rootURI string) []callgraph.Edge {
	if ignore == nil {
		return edges
	}

	kept := edges[:0:0]
	for _, e := range edges {
		if ignore.MatchString(depths.ItemName(e.Caller, rootURI)) ||
			ignore.MatchString(depths.ItemName(e.Callee, rootURI)) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Build splits the per-item path collections into ok and problem
// sections. An item lands under problems when its paths disagree on
// depth through chains with no shared hop.
func Build(itemPaths []depths.ItemPaths, rootURI string) Result {
	result := Result{
		OK:       map[string][][]string{},
		Problems: map[string][][]string{},
	}

	for _, ip := range itemPaths {
		name := depths.ItemName(ip.Item, rootURI)

		shortPaths := make([][]string, 0, len(ip.Paths))
		for _, path := range ip.Paths {
			short := make([]string, 0, len(path))
			for _, hop := range path {
				short = append(short, depths.ItemName(hop, rootURI))
			}
			shortPaths = append(shortPaths, short)
		}

		if depths.Inconsistent(ip) {
			result.Problems[name] = shortPaths
		} else {
			result.OK[name] = shortPaths
		}
	}

	return result
}

// Write emits the result as indented JSON. Map keys come out sorted,
// so output is deterministic.
func Write(w io.Writer, result Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteFile writes the result to path, gzip-compressed when the path
// ends in .gz.
func WriteFile(path string, result Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := Write(w, result); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("flush %s: %w", path, err)
		}
	}
	return f.Close()
}
