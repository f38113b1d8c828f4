package punit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punit-dev/punit/internal/baseline"
	"github.com/punit-dev/punit/internal/bernoulli"
	"github.com/punit-dev/punit/internal/budget"
	"github.com/punit-dev/punit/internal/covariate"
	"github.com/punit-dev/punit/internal/footprint"
	"github.com/punit-dev/punit/internal/spec"
	"github.com/punit-dev/punit/internal/trial"
)

const (
	// EnvBaselineDir overrides where stored specifications are looked up
	// when Options.BaselineDir is empty.
	EnvBaselineDir = "PUNIT_BASELINE_DIR"

	// DefaultBaselineDir is the lookup directory when nothing else names
	// one, relative to the working directory of the test process.
	DefaultBaselineDir = "punit-baselines"

	watchDebounce = 500 * time.Millisecond
)

// Options configures an Engine. The zero value is usable: baselines are
// read from $PUNIT_BASELINE_DIR or ./punit-baselines, logging is discarded,
// and the process clock and environment are used.
type Options struct {
	BaselineDir string
	Logger      *slog.Logger
	Now         func() time.Time
	Getenv      func(string) string
}

// Engine runs experiments. It owns the specification store, the baseline
// repository, covariate matching and resolution state, and the class and
// suite budget scopes shared across experiments. An Engine is safe for
// concurrent use; tests running in parallel share its scopes.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
	getenv func(string) string

	store    *spec.Store
	repo     *baseline.Repository
	matchers *covariate.Matchers
	classes  *budget.Registry

	mu       sync.RWMutex
	suite    *budget.Monitor
	watcher  *baseline.Watcher
	props    map[string]string
	factors  map[string]map[string]func() string
	sources  map[string]map[string]covariate.Resolver
	defaults map[string]covariate.Resolver
}

// New builds an Engine. The suite budget is read once here from the
// property store and environment; call Reset to re-read it.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	dir := opts.BaselineDir
	if dir == "" {
		dir = getenv(EnvBaselineDir)
	}
	if dir == "" {
		dir = DefaultBaselineDir
	}

	store := spec.NewStore(logger)
	e := &Engine{
		logger:   logger,
		now:      now,
		getenv:   getenv,
		store:    store,
		repo:     baseline.NewRepository(dir, store, logger, now),
		matchers: covariate.NewMatchers(),
		classes:  budget.NewRegistry(now),
		props:    make(map[string]string),
		factors:  make(map[string]map[string]func() string),
		sources:  make(map[string]map[string]covariate.Resolver),
		defaults: make(map[string]covariate.Resolver),
	}
	e.rebuildSuite()
	return e
}

// BaselineDir is the directory stored specifications are read from and
// recorded into.
func (e *Engine) BaselineDir() string { return e.repo.Dir() }

// Reset clears the engine's accumulated run state: the specification cache,
// every class budget scope, and the suite scope, which is rebuilt from the
// current property store and environment. Registrations and properties
// survive.
func (e *Engine) Reset() {
	e.store.Clear()
	e.classes.Reset()
	e.rebuildSuite()
	e.logger.Debug("engine state reset")
}

// Watch starts invalidating cached specifications when files in the
// baseline directory change. Calling it again while watching is a no-op.
func (e *Engine) Watch() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.watcher != nil {
		return nil
	}
	w := baseline.NewWatcher(e.repo.Dir(), e.store, watchDebounce, e.logger)
	if err := w.Start(); err != nil {
		return err
	}
	e.watcher = w
	return nil
}

// Close stops the baseline watcher if one is running.
func (e *Engine) Close() {
	e.mu.Lock()
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()
	if w != nil {
		w.Close()
	}
}

// Run executes one experiment: it resolves the pass-rate threshold,
// assembles the budget scopes, drives the sample loop, and renders the
// verdict. A FAIL verdict is a normal result, not an error; errors report
// invalid configuration, unreadable or tampered baselines, and the absence
// of a compatible baseline when one is required.
func (e *Engine) Run(ctx context.Context, exp Experiment, body TestFunc) (*Report, error) {
	normalized, err := exp.normalize()
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, configErr(normalized.Name, "test body is nil")
	}
	decl, err := covariate.NewDeclaration(normalized.Covariates...)
	if err != nil {
		return nil, configErr(normalized.Name, "covariates: %v", err)
	}

	profile := e.resolveProfile(normalized.Name, decl)
	fp := footprint.Compute(normalized.Name, e.resolveFactors(normalized), decl.Keys())

	threshold, source, ref, err := e.resolveThreshold(ctx, normalized, decl, profile, fp)
	if err != nil {
		if errors.Is(err, spec.ErrIntegrity) {
			e.logger.Error("stored specification failed integrity check",
				"useCase", normalized.Name, "err", err)
		}
		return nil, err
	}
	ratePPM, err := bernoulli.QuantizeRate(threshold)
	if err != nil {
		return nil, configErr(normalized.Name, "threshold from %s: %v", source, err)
	}

	method := budget.NewMonitor(budget.ScopeMethod, normalized.methodLimits(), e.now)
	var class *budget.Monitor
	if normalized.Group != "" {
		class = e.classes.GetOrCreate(normalized.Group, normalized.groupLimits())
	}
	orchestrator := budget.NewOrchestrator(method, class, e.suiteMonitor())

	startedAt := e.now()
	res := trial.Run(ctx, trial.Config{
		Planned:      normalized.Samples,
		RatePPM:      ratePPM,
		MaxExamples:  normalized.MaxExampleFailures,
		TokenMode:    normalized.TokenMode,
		TokenCharge:  normalized.TokenCharge,
		AbortOnPanic: normalized.AbortOnPanic,
		Budgets:      orchestrator,
		Logger:       e.logger,
		Now:          e.now,
	}, trial.Func(body))

	r := &Report{
		RunID:               uuid.NewString(),
		Name:                normalized.Name,
		Verdict:             res.Verdict,
		Reason:              res.Reason,
		Details:             res.Details,
		Planned:             res.Planned,
		Executed:            res.Executed,
		Successes:           res.Successes,
		Failures:            res.Failures,
		RequiredSuccesses:   res.RequiredSuccesses,
		PassRate:            res.PassRate(),
		Threshold:           float64(ratePPM) / 1e6,
		ThresholdSource:     source,
		Confidence:          normalized.Confidence,
		ForcedFailure:       res.ForcedFailure,
		Examples:            res.Examples,
		FailureDistribution: res.Distribution,
		Projections:         res.Projections,
		Elapsed:             res.Elapsed,
		TokensSpent:         res.TokensSpent,
		Footprint:           fp,
		Covariates:          profile.Map(),
		SuccessCriteria:     normalized.SuccessCriteria,
		Baseline:            ref,
		StartedAt:           startedAt,
		FinishedAt:          startedAt.Add(res.Elapsed),
	}
	e.logger.Info("experiment finished",
		"name", r.Name,
		"verdict", string(r.Verdict),
		"reason", string(r.Reason),
		"executed", r.Executed,
		"planned", r.Planned,
		"successes", r.Successes,
		"failures", r.Failures,
		"threshold", r.Threshold,
		"thresholdSource", string(r.ThresholdSource),
		"footprint", r.Footprint,
		"elapsed", r.Elapsed,
	)
	return r, nil
}

// resolveThreshold picks the minimum pass rate the run must clear, in
// precedence order: an explicit rate, externally supplied baseline
// statistics, a stored specification named directly, and finally
// footprint-and-covariate selection from the repository.
func (e *Engine) resolveThreshold(
	ctx context.Context,
	exp Experiment,
	decl *covariate.Declaration,
	profile *covariate.Profile,
	fp string,
) (float64, ThresholdSource, *BaselineRef, error) {
	z, err := bernoulli.ZScore(exp.Confidence)
	if err != nil {
		return 0, "", nil, configErr(exp.Name, "%v", err)
	}

	switch {
	case exp.MinPassRate > 0:
		return exp.MinPassRate, ThresholdExplicit, nil, nil

	case exp.BaselineSamples > 0:
		return bernoulli.WilsonLowerBound(exp.BaselineRate, exp.BaselineSamples, z),
			ThresholdBaselineStats, nil, nil

	case exp.SpecID != "":
		s, err := e.repo.Latest(ctx, exp.SpecID)
		if err != nil {
			return 0, "", nil, err
		}
		return thresholdFromSpec(s, z), ThresholdStoredSpec, nil, nil

	default:
		sel, err := e.repo.Resolve(ctx, baseline.Query{
			UseCaseID:   exp.Name,
			Footprint:   fp,
			Declaration: decl,
			Profile:     profile,
			Matchers:    e.matchers,
		})
		if err != nil {
			return 0, "", nil, err
		}
		ref := &BaselineRef{
			Filename:    sel.Candidate.Filename,
			UseCaseID:   sel.Candidate.Spec.UseCaseID,
			GeneratedAt: sel.Candidate.GeneratedAt,
			Score:       sel.Score,
			Conformance: sel.Conformance,
			Ambiguous:   sel.Ambiguous,
		}
		e.logger.Debug("baseline selected",
			"useCase", exp.Name,
			"baseline", ref.Filename,
			"score", ref.Score,
			"ambiguous", ref.Ambiguous,
		)
		return thresholdFromSpec(sel.Candidate.Spec, z), ThresholdSelectedBaseline, ref, nil
	}
}

// thresholdFromSpec prefers the reviewed requirement; a record without one
// falls back to the Wilson lower confidence bound of what it observed.
func thresholdFromSpec(s *spec.Specification, z float64) float64 {
	if s.Requirements.MinPassRate > 0 {
		return s.Requirements.MinPassRate
	}
	return bernoulli.WilsonLowerBound(
		s.Statistics.SuccessRate.Observed, s.Execution.SamplesExecuted, z)
}

// RecordBaseline persists a specification into the baseline directory under
// the canonical filename for its identity and returns the written path. The
// caller fills domain fields; GeneratedAt defaults to now when zero. Most
// records come from Report.Specification with Expiration and a reviewed
// Requirements.MinPassRate added.
func (e *Engine) RecordBaseline(s *Specification) (string, error) {
	if s == nil {
		return "", fmt.Errorf("record baseline: nil specification")
	}
	if s.Footprint == "" {
		return "", fmt.Errorf("record baseline: footprint is required for lookup")
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = e.now().UTC()
	}

	keys := make([]string, 0, len(s.Covariates))
	for k := range s.Covariates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	hashes := make([]string, 0, len(keys))
	for _, k := range keys {
		hashes = append(hashes, covariate.ValueHash(s.Covariates[k]))
	}

	name := spec.Name(s.UseCaseID, s.GeneratedAt, s.Footprint, hashes)
	path := filepath.Join(e.repo.Dir(), name)
	if err := e.store.Save(path, s); err != nil {
		return "", err
	}
	e.logger.Info("baseline recorded", "useCase", s.UseCaseID, "path", path)
	return path, nil
}

// resolveProfile reads the current value of every declared covariate
// through the resolution chain, canonicalized by the registered matchers.
func (e *Engine) resolveProfile(useCase string, decl *covariate.Declaration) *covariate.Profile {
	chain := &covariate.Chain{
		Sources:  e.covariateSources(useCase),
		Property: e.Property,
		Getenv:   e.getenv,
		Defaults: e.covariateDefaults(),
		Now:      e.now,
		Matchers: e.matchers,
	}
	return chain.Resolve(decl)
}

// resolveFactors merges registered factor providers with the experiment's
// literal factors; literals win. Providers are invoked on every run so the
// footprint follows the current inputs.
func (e *Engine) resolveFactors(exp Experiment) []footprint.Factor {
	e.mu.RLock()
	providers := make(map[string]func() string, len(e.factors[exp.Name]))
	for name, fn := range e.factors[exp.Name] {
		providers[name] = fn
	}
	e.mu.RUnlock()

	merged := make(map[string]string, len(providers)+len(exp.Factors))
	for name, fn := range providers {
		merged[name] = fn()
	}
	for name, value := range exp.Factors {
		merged[name] = value
	}

	factors := make([]footprint.Factor, 0, len(merged))
	for name, value := range merged {
		factors = append(factors, footprint.Factor{Name: name, Value: value})
	}
	return factors
}

func (e *Engine) covariateSources(useCase string) map[string]covariate.Resolver {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]covariate.Resolver, len(e.sources[useCase]))
	for key, fn := range e.sources[useCase] {
		out[key] = fn
	}
	return out
}

func (e *Engine) covariateDefaults() map[string]covariate.Resolver {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]covariate.Resolver, len(e.defaults))
	for key, fn := range e.defaults {
		out[key] = fn
	}
	return out
}

func (e *Engine) suiteMonitor() *budget.Monitor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.suite
}

// rebuildSuite reads the suite budget and starts a fresh suite scope.
// Misconfigured values are logged and skipped; the valid remainder applies.
func (e *Engine) rebuildSuite() {
	limits, err := budget.SuiteLimitsFromEnv(e.lookup)
	if err != nil {
		e.logger.Warn("suite budget misconfigured", "err", err)
	}
	e.mu.Lock()
	e.suite = budget.NewMonitor(budget.ScopeSuite, limits, e.now)
	e.mu.Unlock()
}

// lookup reads a configuration name from the property store first, then the
// environment.
func (e *Engine) lookup(name string) string {
	if v, ok := e.Property(name); ok && v != "" {
		return v
	}
	return e.getenv(name)
}
