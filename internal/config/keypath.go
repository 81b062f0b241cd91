package config

import (
	"fmt"
	"regexp"
	"strings"
)

var keySegment = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// KeyPath addresses a value in the raw config document, e.g.
// "tools.mail.server".
type KeyPath []string

// ParseKeyPath splits a dotted key and checks each segment is a plain
// identifier.
func ParseKeyPath(raw string) (KeyPath, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	for i, p := range parts {
		if !keySegment.MatchString(p) {
			return nil, &ConfigError{Message: fmt.Sprintf("invalid config key %q: bad segment %d %q", raw, i+1, p)}
		}
	}
	return KeyPath(parts), nil
}

func (k KeyPath) String() string { return strings.Join(k, ".") }

// Lookup returns the value k addresses in doc.
func (k KeyPath) Lookup(doc map[string]any) (any, bool) {
	var cur any = doc
	for _, key := range k {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at k, replacing any scalar that sits where a section is
// needed.
func (k KeyPath) Set(doc map[string]any, v any) {
	parent := doc
	for _, key := range k[:len(k)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			parent[key] = child
		}
		parent = child
	}
	parent[k[len(k)-1]] = v
}

// Unset deletes the value at k and reports whether one was there. Sections
// left empty are kept.
func (k KeyPath) Unset(doc map[string]any) bool {
	parent, ok := k[:len(k)-1].Lookup(doc)
	if !ok {
		return false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	last := k[len(k)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
