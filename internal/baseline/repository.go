// Package baseline finds the stored specification a probabilistic test
// should be judged against: it scans the baseline directory for candidates
// sharing the run's footprint and applies two-phase covariate matching to
// pick the best one.
package baseline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/punit-dev/punit/internal/spec"
)

// Candidate is one stored specification considered during selection. It is
// produced fresh on every scan; only the underlying spec load is cached.
type Candidate struct {
	Filename    string
	Footprint   string
	GeneratedAt time.Time
	CovHashes   []string
	Spec        *spec.Specification
}

// Value returns the candidate's recorded covariate value, or the empty
// string when it recorded none.
func (c Candidate) Value(key string) string {
	return c.Spec.CovariateValue(key)
}

const defaultScanParallelism = 8

// Repository scans a directory of stored specifications. Candidates are
// rescanned on every request; file contents go through the shared spec
// store so unchanged files are read and fingerprint-checked only once.
type Repository struct {
	dir    string
	store  *spec.Store
	logger *slog.Logger
	now    func() time.Time
	sem    *semaphore.Weighted
}

func NewRepository(dir string, store *spec.Store, logger *slog.Logger, now func() time.Time) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if now == nil {
		now = time.Now
	}
	return &Repository{
		dir:    dir,
		store:  store,
		logger: logger,
		now:    now,
		sem:    semaphore.NewWeighted(defaultScanParallelism),
	}
}

func (r *Repository) Dir() string { return r.dir }

// Candidates lists the usable stored specifications for the use case and
// footprint. A nil error with an empty slice means nothing matched;
// available carries the footprints that do exist for the use case and
// expired how many footprint matches were dropped for being stale. Any
// unreadable or integrity-failing file aborts the scan: a tampered
// baseline directory is a configuration problem, not something to skip
// over.
func (r *Repository) Candidates(ctx context.Context, useCaseID, footprint string) (candidates []Candidate, available []string, expired int, err error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, 0, nil
		}
		return nil, nil, 0, fmt.Errorf("scan baseline dir: %w", err)
	}

	type match struct {
		path string
		info spec.NameInfo
	}
	var matches []match
	footprints := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, ok := spec.ParseName(entry.Name(), useCaseID)
		if !ok {
			continue
		}
		footprints[info.Footprint] = true
		if info.Footprint == footprint {
			matches = append(matches, match{path: filepath.Join(r.dir, entry.Name()), info: info})
		}
	}
	for fp := range footprints {
		available = append(available, fp)
	}
	sort.Strings(available)

	loaded := make([]*spec.Specification, len(matches))
	errs := make([]error, len(matches))
	var wg sync.WaitGroup
	for i, m := range matches {
		i, m := i, m
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, nil, 0, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.sem.Release(1)
			loaded[i], errs[i] = r.store.Load(m.path)
		}()
	}
	wg.Wait()

	now := r.now()
	for i, m := range matches {
		if errs[i] != nil {
			return nil, nil, 0, errs[i]
		}
		s := loaded[i]
		if s.Footprint != "" && s.Footprint != m.info.Footprint {
			r.logger.Warn("baseline filename footprint disagrees with file content, skipping",
				"file", filepath.Base(m.path), "filenameFootprint", m.info.Footprint, "contentFootprint", s.Footprint)
			continue
		}
		if s.Expired(now) {
			expired++
			at, _ := s.ExpiresAt()
			r.logger.Warn("baseline expired, skipping",
				"file", filepath.Base(m.path), "expiredAt", at)
			continue
		}
		generatedAt := s.GeneratedAt
		if generatedAt.IsZero() {
			generatedAt = m.info.GeneratedAt
		}
		candidates = append(candidates, Candidate{
			Filename:    filepath.Base(m.path),
			Footprint:   m.info.Footprint,
			GeneratedAt: generatedAt,
			CovHashes:   m.info.CovHashes,
			Spec:        s,
		})
	}

	// Deterministic input order for the selector.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Filename < candidates[j].Filename })
	return candidates, available, expired, nil
}

// Latest loads the newest stored specification for a use case regardless of
// footprint, for callers that reference a baseline by id alone.
func (r *Repository) Latest(ctx context.Context, useCaseID string) (*spec.Specification, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NoBaselineError{UseCaseID: useCaseID}
		}
		return nil, fmt.Errorf("scan baseline dir: %w", err)
	}

	best := ""
	var bestAt time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, ok := spec.ParseName(entry.Name(), useCaseID)
		if !ok {
			continue
		}
		// Newest by embedded timestamp; legacy names sort by filename.
		if best == "" || info.GeneratedAt.After(bestAt) ||
			(info.GeneratedAt.Equal(bestAt) && entry.Name() > best) {
			best = entry.Name()
			bestAt = info.GeneratedAt
		}
	}
	if best == "" {
		return nil, &NoBaselineError{UseCaseID: useCaseID}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.store.Load(filepath.Join(r.dir, best))
}
