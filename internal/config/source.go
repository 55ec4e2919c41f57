package config

import (
	"fmt"
	"sort"
	"strings"
)

// Source is a read-only key-value property source.
type Source interface {
	// Lookup returns the raw value for key and whether it was present.
	Lookup(key string) (string, bool)
}

// MapSource is a Source backed by a plain map.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the keys of m in sorted order.
func (m MapSource) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Layered combines sources; later sources override earlier ones.
type Layered []Source

// Lookup implements Source.
func (l Layered) Lookup(key string) (string, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i] == nil {
			continue
		}
		if v, ok := l[i].Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// ParseOverrides converts "key=value" pairs (as given to --set) into a MapSource.
func ParseOverrides(pairs []string) (MapSource, error) {
	m := make(MapSource, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: want key=value", p)
		}
		m[key] = value
	}
	return m, nil
}
