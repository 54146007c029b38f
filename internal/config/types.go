// Package config holds the evaluation harness configuration. A Config is an
// explicit value passed to constructors; there is no package-level state.
package config

// Config is the top-level configuration parsed from YAML.
type Config struct {
	// LogsDir receives per-pipeline evidence logs (JSON + text).
	LogsDir string `yaml:"logs_dir"`
	// ReportsDir receives the comparison report and raw summary snapshot.
	ReportsDir string `yaml:"reports_dir"`
	// DBPath is the SQLite evidence mirror. Empty disables the mirror.
	DBPath string `yaml:"db_path"`
	// ProjectRoot anchors relative asset paths during stage-3 validation.
	ProjectRoot string `yaml:"project_root"`
	// ReplayDir holds pre-recorded stage artifacts for the replay pipeline,
	// one subdirectory per prompt id.
	ReplayDir string `yaml:"replay_dir"`
	// StageTimeout is advisory for pipelines that run external work.
	StageTimeout string `yaml:"stage_timeout"`
	// Pipelines are the registry names evaluated by default.
	Pipelines []string `yaml:"pipelines"`
	// EnableSceneExecution switches stage 3 from dry-run input validation
	// to full scene execution validation.
	EnableSceneExecution bool `yaml:"enable_scene_execution"`
	// Compare tunes the reference layout comparison.
	Compare CompareConfig `yaml:"compare"`
}

// CompareConfig mirrors the reference comparison thresholds. Zero values
// fall back to the built-in defaults.
type CompareConfig struct {
	PositionToleranceM float64 `yaml:"position_tolerance_m"`
	MotionToleranceM   float64 `yaml:"motion_tolerance_m"`
	MinMatchFraction   float64 `yaml:"min_match_fraction"`
}
