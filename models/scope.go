package models

import (
	"sort"
	"strings"
)

// Scope is a set of capability labels. The zero value is the empty scope.
type Scope []string

// ParseScope splits a space-delimited scope string, dropping duplicates and
// empty labels while keeping the first-seen order.
func ParseScope(s string) Scope {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := make(Scope, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// String joins the scope with single spaces.
func (s Scope) String() string {
	return strings.Join(s, " ")
}

// Has reports whether label is part of the scope.
func (s Scope) Has(label string) bool {
	for _, v := range s {
		if v == label {
			return true
		}
	}
	return false
}

// Difference returns the labels of s that are not in allowed.
func (s Scope) Difference(allowed Scope) Scope {
	var out Scope
	for _, v := range s {
		if !allowed.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// SubsetOf reports whether every label of s is in allowed.
func (s Scope) SubsetOf(allowed Scope) bool {
	return len(s.Difference(allowed)) == 0
}

// Intersect returns the labels present in both s and other, in s order.
func (s Scope) Intersect(other Scope) Scope {
	var out Scope
	for _, v := range s {
		if other.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// Sorted returns a sorted copy, handy for stable comparisons.
func (s Scope) Sorted() Scope {
	out := append(Scope(nil), s...)
	sort.Strings(out)
	return out
}
