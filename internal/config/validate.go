package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for structural and semantic errors. It returns
// a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.LogsDir == "" {
		errs = append(errs, ValidationError{Field: "logs_dir", Message: "is required"})
	}
	if cfg.ReportsDir == "" {
		errs = append(errs, ValidationError{Field: "reports_dir", Message: "is required"})
	}
	if cfg.ProjectRoot == "" {
		errs = append(errs, ValidationError{Field: "project_root", Message: "is required"})
	}
	if len(cfg.Pipelines) == 0 {
		errs = append(errs, ValidationError{Field: "pipelines", Message: "at least one pipeline is required"})
	}
	seen := make(map[string]bool)
	for i, name := range cfg.Pipelines {
		if name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipelines[%d]", i),
				Message: "is empty",
			})
			continue
		}
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipelines[%d]", i),
				Message: fmt.Sprintf("duplicate pipeline %q", name),
			})
		}
		seen[name] = true
	}

	if cfg.StageTimeout != "" {
		if _, err := time.ParseDuration(cfg.StageTimeout); err != nil {
			errs = append(errs, ValidationError{
				Field:   "stage_timeout",
				Message: fmt.Sprintf("invalid duration %q", cfg.StageTimeout),
			})
		}
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"compare.position_tolerance_m", cfg.Compare.PositionToleranceM},
		{"compare.motion_tolerance_m", cfg.Compare.MotionToleranceM},
	} {
		if f.value < 0 {
			errs = append(errs, ValidationError{Field: f.name, Message: "must not be negative"})
		}
	}
	if frac := cfg.Compare.MinMatchFraction; frac < 0 || frac > 1 {
		errs = append(errs, ValidationError{
			Field:   "compare.min_match_fraction",
			Message: "must be between 0 and 1",
		})
	}

	return errs
}
