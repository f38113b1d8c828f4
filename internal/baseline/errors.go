package baseline

import (
	"fmt"
	"strings"
)

// NoBaselineError reports that no stored baseline matched the requested use
// case and footprint. It lists the footprints that do exist so the caller
// can see whether the use case shape changed or no baseline was ever
// approved.
type NoBaselineError struct {
	UseCaseID  string
	Footprint  string
	Available  []string // footprints recorded for this use case, sorted
	AllExpired bool     // matching baselines existed but every one expired
}

func (e *NoBaselineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no compatible baseline for use case %q with footprint %s", e.UseCaseID, e.Footprint)
	switch {
	case e.AllExpired:
		b.WriteString(": every baseline with this footprint has expired; re-approve a fresh baseline")
	case len(e.Available) == 0:
		b.WriteString(": no baselines recorded for this use case")
	default:
		fmt.Fprintf(&b, ": available footprints: %s (a footprint changes when the use case id, factors, or declared covariate keys change)",
			strings.Join(e.Available, ", "))
	}
	return b.String()
}

// ConfigurationMismatchError reports that candidates shared the footprint
// but none conformed on every CONFIGURATION covariate. Configuration
// differences are never close enough, so this is a hard stop with the
// recorded configurations listed.
type ConfigurationMismatchError struct {
	UseCaseID string
	Current   string   // the run's CONFIGURATION covariates, rendered
	Available []string // recorded configurations, rendered and sorted
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf(
		"no baseline matches the current configuration for use case %q: current [%s], recorded configurations: [%s]",
		e.UseCaseID, e.Current, strings.Join(e.Available, "], ["))
}
