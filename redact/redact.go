// Package redact masks secret values in script output before it reaches
// the console or the archive.
package redact

import (
	"regexp"
	"slices"
	"strings"
)

const (
	// Mask replaces every redacted value.
	Mask = "*******"
	// MinLength is the shortest value that is masked. Shorter values would
	// mask unrelated text.
	MinLength = 3
)

// credentialURL matches userinfo embedded in a URL, as printed by git
// remotes configured with a token.
var credentialURL = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s:@]+(?::[^/\s@]*)?@`)

// Redactor replaces known secret values and URL credentials.
// A nil Redactor returns its input unchanged.
type Redactor struct {
	values []string
}

// New creates a redactor for the given secret values.
// Values are matched longest first so a secret containing another is
// masked as a whole.
func New(values ...string) *Redactor {
	seen := make(map[string]bool, len(values))
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if len(v) < MinLength || seen[v] {
			continue
		}
		seen[v] = true
		kept = append(kept, v)
	}
	slices.SortFunc(kept, func(a, b string) int { return len(b) - len(a) })
	return &Redactor{values: kept}
}

// FromEnv builds a redactor from the values of the named variables.
// Names missing from vars are ignored.
func FromEnv(vars map[string]string, names []string) *Redactor {
	values := make([]string, 0, len(names))
	for _, n := range names {
		if v, ok := vars[n]; ok {
			values = append(values, v)
		}
	}
	return New(values...)
}

// Line masks one line of output.
func (r *Redactor) Line(s string) string {
	if r == nil {
		return s
	}
	for _, v := range r.values {
		s = strings.ReplaceAll(s, v, Mask)
	}
	if strings.Contains(s, "@") {
		s = credentialURL.ReplaceAllString(s, "${1}***@")
	}
	return s
}

// Len returns the number of secret values tracked.
func (r *Redactor) Len() int {
	if r == nil {
		return 0
	}
	return len(r.values)
}
