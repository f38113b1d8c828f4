package baseline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/punit-dev/punit/internal/covariate"
)

// Query carries everything a selection needs: the identity to look up and
// the current run's covariate state to compare candidates against.
type Query struct {
	UseCaseID   string
	Footprint   string
	Declaration *covariate.Declaration
	Profile     *covariate.Profile
	Matchers    *covariate.Matchers
}

// Selection is the outcome of a successful two-phase match.
type Selection struct {
	Candidate Candidate
	// Score is the number of conforming non-informational covariates.
	Score int
	// Conformance records how each considered covariate matched, for
	// traceability in reports.
	Conformance map[string]covariate.Conformance
	// Ambiguous is set when the top candidates tied through every ranking
	// criterion and the pick fell back to filename order.
	Ambiguous bool
}

// Resolve scans the repository and selects the baseline the current run
// should be judged against.
func (r *Repository) Resolve(ctx context.Context, q Query) (*Selection, error) {
	candidates, available, expired, err := r.Candidates(ctx, q.UseCaseID, q.Footprint)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &NoBaselineError{
			UseCaseID:  q.UseCaseID,
			Footprint:  q.Footprint,
			Available:  available,
			AllExpired: expired > 0,
		}
	}
	sel, err := Select(candidates, q)
	if err != nil {
		return nil, err
	}
	if sel.Ambiguous {
		r.logger.Warn("baseline selection ambiguous, picked by filename order",
			"useCase", q.UseCaseID, "file", sel.Candidate.Filename)
	} else {
		r.logger.Debug("baseline selected",
			"useCase", q.UseCaseID, "file", sel.Candidate.Filename, "score", sel.Score)
	}
	return sel, nil
}

// Select applies the two-phase match to candidates that already share the
// query's footprint.
//
// Phase 1 gates on CONFIGURATION covariates: a candidate survives only if
// every one conforms exactly. Phase 2 ranks survivors by the number of
// conforming non-informational covariates, breaking ties by per-covariate
// conformance in declaration order (earlier keys weigh more), then by most
// recent generation time. INFORMATIONAL covariates never gate or score.
func Select(candidates []Candidate, q Query) (*Selection, error) {
	keys := consideredKeys(q.Declaration, candidates)

	var survivors []scored
	for _, cand := range candidates {
		if !passesConfigurationGate(cand, q, keys) {
			continue
		}
		survivors = append(survivors, scoreCandidate(cand, q, keys))
	}
	if len(survivors) == 0 {
		return nil, configurationMismatch(candidates, q, keys)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].better(survivors[j])
	})

	top := survivors[0]
	ambiguous := len(survivors) > 1 && top.ties(survivors[1])
	return &Selection{
		Candidate:   top.candidate,
		Score:       top.score,
		Conformance: top.conformance,
		Ambiguous:   ambiguous,
	}, nil
}

// consideredKeys is the fixed comparison order for one selection: declared
// keys first, in declaration order, then any keys candidates recorded that
// the declaration no longer lists, sorted. Undeclared keys take their
// category from the legacy mapping.
func consideredKeys(decl *covariate.Declaration, candidates []Candidate) []string {
	keys := decl.Keys()
	declared := make(map[string]bool, len(keys))
	for _, k := range keys {
		declared[k] = true
	}

	extraSet := make(map[string]bool)
	for _, cand := range candidates {
		for k := range cand.Spec.Covariates {
			if !declared[k] {
				extraSet[k] = true
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	return append(keys, extras...)
}

type scored struct {
	candidate   Candidate
	score       int
	ranks       []int
	conformance map[string]covariate.Conformance
}

// better orders candidates best-first: score, then the per-key conformance
// vector compared left to right, then recency, then filename as the final
// deterministic fallback.
func (s scored) better(o scored) bool {
	if s.score != o.score {
		return s.score > o.score
	}
	for i := range s.ranks {
		if s.ranks[i] != o.ranks[i] {
			return s.ranks[i] > o.ranks[i]
		}
	}
	if !s.candidate.GeneratedAt.Equal(o.candidate.GeneratedAt) {
		return s.candidate.GeneratedAt.After(o.candidate.GeneratedAt)
	}
	return s.candidate.Filename > o.candidate.Filename
}

// ties reports whether two candidates are indistinguishable by every
// criterion short of the filename fallback.
func (s scored) ties(o scored) bool {
	if s.score != o.score {
		return false
	}
	for i := range s.ranks {
		if s.ranks[i] != o.ranks[i] {
			return false
		}
	}
	return s.candidate.GeneratedAt.Equal(o.candidate.GeneratedAt)
}

func passesConfigurationGate(cand Candidate, q Query, keys []string) bool {
	for _, key := range keys {
		if q.Declaration.Category(key) != covariate.CategoryConfiguration {
			continue
		}
		if match(cand, q, key) != covariate.Conforms {
			return false
		}
	}
	return true
}

func scoreCandidate(cand Candidate, q Query, keys []string) scored {
	s := scored{
		candidate:   cand,
		conformance: make(map[string]covariate.Conformance, len(keys)),
	}
	for _, key := range keys {
		c := match(cand, q, key)
		s.conformance[key] = c
		if q.Declaration.Category(key) == covariate.CategoryInformational {
			continue
		}
		s.ranks = append(s.ranks, c.Rank())
		if c == covariate.Conforms {
			s.score++
		}
	}
	return s
}

func match(cand Candidate, q Query, key string) covariate.Conformance {
	baseline := cand.Value(key)
	if baseline == "" {
		baseline = covariate.Undefined
	}
	return q.Matchers.Lookup(key).Match(q.Profile.Value(key), baseline)
}

func configurationMismatch(candidates []Candidate, q Query, keys []string) *ConfigurationMismatchError {
	configKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		if q.Declaration.Category(key) == covariate.CategoryConfiguration {
			configKeys = append(configKeys, key)
		}
	}

	seen := make(map[string]bool)
	var available []string
	for _, cand := range candidates {
		rendered := renderConfiguration(configKeys, func(k string) string { return cand.Value(k) })
		if !seen[rendered] {
			seen[rendered] = true
			available = append(available, rendered)
		}
	}
	sort.Strings(available)

	return &ConfigurationMismatchError{
		UseCaseID: q.UseCaseID,
		Current:   renderConfiguration(configKeys, q.Profile.Value),
		Available: available,
	}
}

func renderConfiguration(keys []string, value func(string) string) string {
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := value(k)
		if v == "" {
			v = covariate.Undefined
		}
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(pairs, ", ")
}
