// Package placeholder substitutes ${key} and ${key:default} tokens in
// configuration strings using values from a merged configuration tree.
package placeholder

import (
	"regexp"
	"strings"

	"infrascan/internal/tree"
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolve replaces every token in text in a single left-to-right pass.
// A token whose key resolves is replaced with the value's string form; an
// unresolved token falls back to its inline default, or is kept verbatim when
// it has none. Substituted values are not scanned again.
func Resolve(text string, root tree.Value) string {
	if !strings.Contains(text, "${") {
		return text
	}

	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := token[2 : len(token)-1]
		def, hasDefault := "", false
		if i := strings.Index(key, ":"); i >= 0 {
			key, def, hasDefault = key[:i], key[i+1:], true
		}

		if v, outcome := tree.Lookup(root, key); outcome == tree.Found {
			return v.String()
		}
		if hasDefault {
			return def
		}
		return token
	})
}

// HasUnresolved reports whether text still contains a token opener after
// resolution.
func HasUnresolved(text string) bool {
	return strings.Contains(text, "${")
}
