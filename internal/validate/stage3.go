package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/cellbench/internal/artifact"
)

// minSceneComponents is the smallest plausible scene: robot, source, and
// destination.
const minSceneComponents = 3

// resolveAssetPath maps a component asset path to a filesystem location under
// root. Absolute paths are used as-is.
func resolveAssetPath(path, root string) string {
	p := strings.TrimSpace(strings.ReplaceAll(path, `\`, "/"))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

func assetExists(path, root string) bool {
	resolved := resolveAssetPath(path, root)
	if resolved == "" {
		return false
	}
	_, err := os.Stat(resolved)
	return err == nil
}

// sceneShapeChecks are the structural rules shared by the dry-run input and
// raw-submission validators: component count, exactly one robot, trajectory
// parameters, and well-formed positions.
func sceneShapeChecks(in *artifact.SceneInput) (checks []Check, robot *artifact.SceneComponent) {
	assembled := Check{Name: "scene_input_assembled", Passed: len(in.Components) > 0}
	if assembled.Passed {
		assembled.Reason = fmt.Sprintf("%d scene components", len(in.Components))
	} else if len(in.OptimizedComponents) > 0 {
		assembled.Reason = "payload still holds optimized_components, scene input was never assembled"
	} else {
		assembled.Reason = "no scene components in payload"
	}
	checks = append(checks, assembled)

	count := Check{Name: "component_count", Passed: len(in.Components) >= minSceneComponents}
	if count.Passed {
		count.Reason = fmt.Sprintf("%d components (>= %d)", len(in.Components), minSceneComponents)
	} else {
		count.Reason = fmt.Sprintf("only %d components, need at least %d", len(in.Components), minSceneComponents)
	}
	checks = append(checks, count)

	robots := 0
	for i := range in.Components {
		if strings.ToLower(in.Components[i].ComponentType) == "robot" {
			robots++
			robot = &in.Components[i]
		}
	}
	robotCheck := Check{Name: "robot_component", Passed: robots == 1}
	if robotCheck.Passed {
		robotCheck.Reason = fmt.Sprintf("robot component %q present", robot.Name)
	} else {
		robotCheck.Reason = fmt.Sprintf("need exactly one robot component, got %d", robots)
	}
	checks = append(checks, robotCheck)

	var pick, place []float64
	if in.MotionTargets != nil {
		pick = in.MotionTargets.PickTargetXYZ
		place = in.MotionTargets.PlaceTargetXYZ
	}
	params := Check{Name: "trajectory_params",
		Passed: in.ExecuteTrajectory && pick != nil && place != nil}
	if params.Passed {
		params.Reason = "execute_trajectory set with pick and place targets"
	} else if !in.ExecuteTrajectory {
		params.Reason = "execute_trajectory is not set"
	} else {
		params.Reason = "missing pick_target_xyz or place_target_xyz"
	}
	checks = append(checks, params)

	badPos := 0
	allOrigin := len(in.Components) > 0
	for _, c := range in.Components {
		if c.Position != nil && !validPosition(c.Position) {
			badPos++
		}
		if !atOrigin(c.Position) {
			allOrigin = false
		}
	}
	pos := Check{Name: "positions_valid", Passed: badPos == 0 && !allOrigin}
	switch {
	case badPos > 0:
		pos.Reason = fmt.Sprintf("%d components with malformed positions", badPos)
	case allOrigin:
		pos.Reason = "all component positions at origin"
	default:
		pos.Reason = "component positions well-formed"
	}
	checks = append(checks, pos)

	return checks, robot
}

// Stage3Input validates a scene-build input before a dry run. All asset paths
// are resolved against root; the robot's path must exist and at most one
// other path may be unresolved.
func Stage3Input(raw []byte, root string) Result {
	if len(raw) == 0 {
		return missing("stage 3 produced no input")
	}
	in, err := artifact.DecodeSceneInput(raw)
	if err != nil {
		return undecodable(artifact.Stage3, err)
	}

	checks, robot := sceneShapeChecks(in)

	robotPath := Check{Name: "robot_path_resolves"}
	if robot == nil {
		robotPath.Reason = "no robot component to resolve"
	} else if assetExists(robot.AssetPath(), root) {
		robotPath.Passed = true
		robotPath.Reason = fmt.Sprintf("robot asset %s found", robot.AssetPath())
	} else {
		robotPath.Reason = fmt.Sprintf("robot asset %s not found under %s", robot.AssetPath(), root)
	}
	checks = append(checks, robotPath)

	var unresolved []string
	for i := range in.Components {
		c := &in.Components[i]
		if robot != nil && c == robot {
			continue
		}
		if !assetExists(c.AssetPath(), root) {
			unresolved = append(unresolved, c.Name)
		}
	}
	paths := Check{Name: "component_paths", Passed: len(unresolved) <= 1}
	if len(unresolved) == 0 {
		paths.Reason = "all component assets found"
	} else if paths.Passed {
		paths.Reason = fmt.Sprintf("1 unresolved asset tolerated (%s)", unresolved[0])
	} else {
		paths.Reason = fmt.Sprintf("%d unresolved assets: %s", len(unresolved), capReasons(unresolved))
	}
	checks = append(checks, paths)

	return finish(checks, "scene_input_assembled",
		"stage 3 input ready for scene build", "stage 3 input failed")
}

// Stage3Submission validates a raw scene-build submission. Shape rules match
// Stage3Input but only the robot's asset path is required to resolve; other
// assets may live outside the evaluation root.
func Stage3Submission(raw []byte, root string) Result {
	if len(raw) == 0 {
		return missing("stage 3 produced no submission")
	}
	in, err := artifact.DecodeSceneInput(raw)
	if err != nil {
		return undecodable(artifact.Stage3, err)
	}

	checks, robot := sceneShapeChecks(in)

	robotPath := Check{Name: "robot_path_resolves"}
	if robot == nil {
		robotPath.Reason = "no robot component to resolve"
	} else if assetExists(robot.AssetPath(), root) {
		robotPath.Passed = true
		robotPath.Reason = fmt.Sprintf("robot asset %s found", robot.AssetPath())
	} else {
		robotPath.Reason = fmt.Sprintf("robot asset %s not found under %s", robot.AssetPath(), root)
	}
	checks = append(checks, robotPath)

	return finish(checks, "scene_input_assembled",
		"stage 3 submission well-formed", "stage 3 submission failed")
}

// Stage3Run validates the result of a full scene build and trajectory
// execution: the scene built, every trajectory phase completed, and the
// trajectory finished successfully.
func Stage3Run(raw []byte) Result {
	if len(raw) == 0 {
		return missing("stage 3 produced no run result")
	}
	run, err := artifact.DecodeSceneRun(raw)
	if err != nil {
		return undecodable(artifact.Stage3, err)
	}

	var checks []Check

	built := Check{Name: "scene_built", Passed: run.Success}
	if built.Passed {
		built.Reason = fmt.Sprintf("scene built, %d components spawned", len(run.SpawnedComponents))
	} else if run.Error != "" {
		built.Reason = "scene build failed: " + run.Error
	} else {
		built.Reason = "scene build failed"
	}
	checks = append(checks, built)

	phases := Check{Name: "phases_completed", Passed: run.PhasesCompleted == artifact.TrajectoryPhases}
	phases.Reason = fmt.Sprintf("%d/%d trajectory phases completed", run.PhasesCompleted, artifact.TrajectoryPhases)
	checks = append(checks, phases)

	status := Check{Name: "trajectory_status", Passed: run.TrajectoryStatus == "success"}
	if status.Passed {
		status.Reason = "trajectory reported success"
	} else {
		status.Reason = fmt.Sprintf("trajectory status %q, want success", run.TrajectoryStatus)
	}
	checks = append(checks, status)

	return finish(checks, "",
		"stage 3 executed (scene + full trajectory)",
		fmt.Sprintf("stage 3 incomplete (%d/%d phases)", run.PhasesCompleted, artifact.TrajectoryPhases))
}
