package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wippyai/docmap"
)

// pathEntry is one value of a flattened document.
type pathEntry struct {
	path    string
	kind    docmap.Kind
	preview string
}

// flatten lists every value reachable from doc in document order,
// containers before their contents.
func flatten(doc *docmap.Document) []pathEntry {
	var out []pathEntry
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		out = append(out, pathEntry{path: prefix, kind: docmap.KindOf(v), preview: preview(v)})
		switch t := v.(type) {
		case *docmap.Document:
			for _, el := range t.Elements() {
				walk(join(prefix, el.Key), el.Value)
			}
		case []any:
			for i, e := range t {
				walk(prefix+"["+strconv.Itoa(i)+"]", e)
			}
		}
	}
	for _, el := range doc.Elements() {
		walk(el.Key, el.Value)
	}
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func preview(v any) string {
	switch t := v.(type) {
	case *docmap.Document:
		if t == nil {
			return "null"
		}
		return fmt.Sprintf("{%d keys}", t.Len())
	case []any:
		return fmt.Sprintf("[%d items]", len(t))
	case string:
		return strconv.Quote(t)
	case nil:
		return "null"
	default:
		return fmt.Sprint(t)
	}
}

// filterPaths keeps entries whose path contains query, case-insensitively.
func filterPaths(entries []pathEntry, query string) []pathEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}
	out := make([]pathEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.path), query) {
			out = append(out, e)
		}
	}
	return out
}

func writeKeys(w io.Writer, doc *docmap.Document) error {
	entries := flatten(doc)
	width := 0
	for _, e := range entries {
		width = max(width, len(e.path))
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%-*s  %-8s  %s\n", width, e.path, e.kind, e.preview); err != nil {
			return err
		}
	}
	return nil
}
