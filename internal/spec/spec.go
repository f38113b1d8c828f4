// Package spec defines the persisted execution specification: the versioned,
// human-reviewable baseline record, its tamper-evident YAML form, the
// filename conventions baselines are stored under, and the process-lifetime
// store that loads and caches them.
package spec

import (
	"fmt"
	"time"

	"github.com/punit-dev/punit/internal/footprint"
)

// Specification is one persisted baseline/threshold contract. The schema
// version and content fingerprint are maintained by the codec; everything
// else is the reviewable record of what a use case empirically did.
type Specification struct {
	SchemaVersion      string `yaml:"schemaVersion,omitempty"`
	ContentFingerprint string `yaml:"contentFingerprint,omitempty"`

	UseCaseID   string            `yaml:"useCaseId"`
	Version     int               `yaml:"version,omitempty"`
	GeneratedAt time.Time         `yaml:"generatedAt,omitempty"`
	Footprint   string            `yaml:"footprint,omitempty"`
	Covariates  map[string]string `yaml:"covariates,omitempty"`

	Execution    Execution    `yaml:"execution"`
	Requirements Requirements `yaml:"requirements"`
	Statistics   Statistics   `yaml:"statistics"`
	Cost         Cost         `yaml:"cost"`

	SuccessCriteria  *SuccessCriteria            `yaml:"successCriteria,omitempty"`
	ResultProjection map[string]SampleProjection `yaml:"resultProjection,omitempty"`
	Expiration       *Expiration                 `yaml:"expiration,omitempty"`
}

// Execution records how the baseline's sample sequence ran.
type Execution struct {
	SamplesPlanned     int    `yaml:"samplesPlanned"`
	SamplesExecuted    int    `yaml:"samplesExecuted"`
	TerminationReason  string `yaml:"terminationReason"`
	TerminationDetails string `yaml:"terminationDetails,omitempty"`
}

// Requirements is the threshold contract a future run must clear.
type Requirements struct {
	MinPassRate     float64 `yaml:"minPassRate"`
	SuccessCriteria string  `yaml:"successCriteria,omitempty"`
}

// SuccessRate is the observed pass rate with its sampling uncertainty.
type SuccessRate struct {
	Observed             float64    `yaml:"observed"`
	StandardError        float64    `yaml:"standardError"`
	ConfidenceInterval95 [2]float64 `yaml:"confidenceInterval95,flow"`
}

// Statistics is the empirical basis the baseline was approved on.
type Statistics struct {
	SuccessRate         SuccessRate    `yaml:"successRate"`
	Successes           int            `yaml:"successes"`
	Failures            int            `yaml:"failures"`
	FailureDistribution map[string]int `yaml:"failureDistribution,omitempty"`
}

// Cost is the resource envelope the baseline consumed.
type Cost struct {
	TotalTimeMs        int64   `yaml:"totalTimeMs"`
	AvgTimePerSampleMs float64 `yaml:"avgTimePerSampleMs"`
	TotalTokens        int64   `yaml:"totalTokens"`
	AvgTokensPerSample float64 `yaml:"avgTokensPerSample"`
}

// SuccessCriteria documents what "success" meant for one sample.
type SuccessCriteria struct {
	Definition string `yaml:"definition"`
}

// SampleProjection is the optional per-sample capture persisted for diffing
// approved baselines against later runs.
type SampleProjection struct {
	Input           string   `yaml:"input,omitempty"`
	Postconditions  string   `yaml:"postconditions,omitempty"`
	ExecutionTimeMs int64    `yaml:"executionTimeMs"`
	DiffableContent []string `yaml:"diffableContent,omitempty"`
}

// ProjectionKey names sample i in the resultProjection map.
func ProjectionKey(i int) string {
	return fmt.Sprintf("sample[%d]", i)
}

// Expiration bounds how long a baseline stays usable. An explicit
// expirationDate wins; otherwise the date is baselineEndTime plus
// expiresInDays.
type Expiration struct {
	ExpiresInDays   int        `yaml:"expiresInDays,omitempty"`
	BaselineEndTime time.Time  `yaml:"baselineEndTime,omitempty"`
	ExpirationDate  *time.Time `yaml:"expirationDate,omitempty"`
}

// ExpiresAt resolves the effective expiration instant. ok is false when the
// specification never expires.
func (s *Specification) ExpiresAt() (time.Time, bool) {
	if s.Expiration == nil {
		return time.Time{}, false
	}
	if s.Expiration.ExpirationDate != nil && !s.Expiration.ExpirationDate.IsZero() {
		return *s.Expiration.ExpirationDate, true
	}
	if s.Expiration.ExpiresInDays > 0 && !s.Expiration.BaselineEndTime.IsZero() {
		return s.Expiration.BaselineEndTime.AddDate(0, 0, s.Expiration.ExpiresInDays), true
	}
	return time.Time{}, false
}

// Expired reports whether the specification's expiration has passed.
func (s *Specification) Expired(now time.Time) bool {
	at, ok := s.ExpiresAt()
	return ok && now.After(at)
}

// CovariateValue returns the recorded value for key, or the empty string
// when the baseline did not record it.
func (s *Specification) CovariateValue(key string) string {
	return s.Covariates[key]
}

// Validate checks the record's internal consistency. It does not verify
// integrity; the codec does that against the raw bytes.
func (s *Specification) Validate() error {
	if s.UseCaseID == "" {
		return fmt.Errorf("useCaseId is required")
	}
	if r := s.Requirements.MinPassRate; r < 0 || r > 1 {
		return fmt.Errorf("requirements.minPassRate %v out of [0, 1]", r)
	}
	if s.Execution.SamplesPlanned < 0 {
		return fmt.Errorf("execution.samplesPlanned must not be negative")
	}
	if s.Execution.SamplesExecuted < 0 {
		return fmt.Errorf("execution.samplesExecuted must not be negative")
	}
	if s.Execution.SamplesExecuted > s.Execution.SamplesPlanned {
		return fmt.Errorf("execution.samplesExecuted %d exceeds samplesPlanned %d",
			s.Execution.SamplesExecuted, s.Execution.SamplesPlanned)
	}
	if s.Statistics.Successes < 0 || s.Statistics.Failures < 0 {
		return fmt.Errorf("statistics counts must not be negative")
	}
	if got := s.Statistics.Successes + s.Statistics.Failures; got != s.Execution.SamplesExecuted {
		return fmt.Errorf("statistics successes+failures %d does not match samplesExecuted %d",
			got, s.Execution.SamplesExecuted)
	}
	if o := s.Statistics.SuccessRate.Observed; o < 0 || o > 1 {
		return fmt.Errorf("statistics.successRate.observed %v out of [0, 1]", o)
	}
	if ci := s.Statistics.SuccessRate.ConfidenceInterval95; ci[0] > ci[1] {
		return fmt.Errorf("statistics.successRate.confidenceInterval95 bounds inverted: [%v, %v]", ci[0], ci[1])
	}
	if s.Footprint != "" && !footprint.Valid(s.Footprint) {
		return fmt.Errorf("footprint %q is not 8 lowercase hex digits", s.Footprint)
	}
	for key, value := range s.Covariates {
		if key == "" {
			return fmt.Errorf("covariates contain an empty key")
		}
		if value == "" {
			return fmt.Errorf("covariate %q has an empty value", key)
		}
	}
	return nil
}
