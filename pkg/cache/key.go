package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached catalog read.
type Key struct {
	// Path is the catalog resource path, e.g. "/products/sku/ABC-123".
	Path string

	// Query holds the query parameters, if any.
	Query url.Values
}

// NewKey builds a key from a raw path, splitting off any query string.
func NewKey(rawPath string) Key {
	path, rawQuery, _ := strings.Cut(rawPath, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = nil
	}
	return Key{Path: path, Query: query}
}

// String generates a deterministic storage key.
// Format: catalog:path:query1=val1:query2=val2
func (k Key) String() string {
	parts := []string{"catalog"}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}

	// Query params sorted for determinism.
	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Query.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}
