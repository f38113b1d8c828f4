// Package footprint derives the short identity hash that ties a baseline
// to the shape of the use case that produced it. Two runs share a
// footprint exactly when they agree on the use case id, the factor
// name/value pairs, and the set of declared covariate keys. Covariate
// values stay out of the hash so that one baseline file can describe many
// operating conditions.
package footprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Factor is one named input dimension pinned by the use case.
type Factor struct {
	Name  string
	Value string
}

// Compute hashes the use case identity into eight lowercase hex digits.
// Factors are ordered by name so callers can pass them in any order;
// covariate keys keep their declaration order.
func Compute(useCaseID string, factors []Factor, covariateKeys []string) string {
	sorted := make([]Factor, len(factors))
	copy(sorted, factors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("usecase:")
	b.WriteString(useCaseID)
	b.WriteByte('\n')
	for _, f := range sorted {
		b.WriteString("factor:")
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	for _, k := range covariateKeys {
		b.WriteString("covariate:")
		b.WriteString(k)
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:8]
}

// Valid reports whether s looks like a footprint: exactly eight lowercase
// hex digits.
func Valid(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
