package punit

import "fmt"

// ConfigError reports invalid or contradictory experiment parameters. It
// is returned before any sample executes.
type ConfigError struct {
	Experiment string
	Reason     string
}

func (e *ConfigError) Error() string {
	if e.Experiment == "" {
		return fmt.Sprintf("invalid experiment: %s", e.Reason)
	}
	return fmt.Sprintf("invalid experiment %q: %s", e.Experiment, e.Reason)
}

func configErr(name, format string, args ...any) *ConfigError {
	return &ConfigError{Experiment: name, Reason: fmt.Sprintf(format, args...)}
}
