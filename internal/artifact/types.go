// Package artifact defines the typed JSON payloads pipelines produce for
// each evaluation stage: the stage-1 workcell specification, the stage-2
// placement solution, and the stage-3 scene-build input/run result.
//
// Decoding is tolerant: missing fields decode to zero values so validators
// can report every violated rule instead of failing on the first one.
package artifact

import (
	"encoding/json"
	"fmt"
)

// Stage identifiers used throughout evidence logs and validators.
const (
	Stage1 = "1"
	Stage2 = "2"
	Stage3 = "3"
)

// ObjectSpec describes an object to be manipulated.
type ObjectSpec struct {
	Name       string    `json:"name"`
	SKUID      string    `json:"sku_id"`
	Dimensions []float64 `json:"dimensions"`
	WeightKg   float64   `json:"weight_kg"`
	Material   string    `json:"material"`
	Quantity   int       `json:"quantity"`
}

// RobotSelection is the selected robot with justification.
type RobotSelection struct {
	Model         string  `json:"model"`
	Manufacturer  string  `json:"manufacturer"`
	PayloadKg     float64 `json:"payload_kg"`
	ReachM        float64 `json:"reach_m"`
	Justification string  `json:"justification"`
	URDFPath      string  `json:"urdf_path,omitempty"`
}

// Component is a workcell component (pedestal, conveyor, pallet, carton, ...).
type Component struct {
	Name          string    `json:"name"`
	ComponentType string    `json:"component_type"`
	MJCFPath      string    `json:"mjcf_path"`
	Position      []float64 `json:"position,omitempty"`
	Orientation   []float64 `json:"orientation,omitempty"`
	Dimensions    []float64 `json:"dimensions"`
}

// Zone is a functional spatial zone in the workcell.
type Zone struct {
	ZoneName       string    `json:"zone_name"`
	ZoneType       string    `json:"zone_type"`
	CenterPosition []float64 `json:"center_position"`
	RadiusM        float64   `json:"radius_m"`
}

// SpatialReasoning holds the spatial layout analysis of a stage-1 spec.
type SpatialReasoning struct {
	Zones         []Zone `json:"zones"`
	MaterialFlow  string `json:"material_flow"`
	Accessibility string `json:"accessibility"`
	Reasoning     string `json:"reasoning"`
}

// Throughput is the required production rate and its implied cycle time.
type Throughput struct {
	ItemsPerHour     float64 `json:"items_per_hour"`
	CycleTimeSeconds float64 `json:"cycle_time_seconds"`
}

// Constraint is a design constraint on the workcell.
type Constraint struct {
	ConstraintType string `json:"constraint_type"`
	Description    string `json:"description"`
	Value          any    `json:"value,omitempty"`
}

// WorkcellSpec is the stage-1 artifact: the requirements-capture output.
type WorkcellSpec struct {
	Stage1Complete        bool              `json:"stage_1_complete"`
	TaskObjective         string            `json:"task_objective"`
	TaskSpecification     *ObjectSpec       `json:"task_specification"`
	AdditionalObjects     []ObjectSpec      `json:"additional_objects,omitempty"`
	RobotSelection        *RobotSelection   `json:"robot_selection"`
	WorkcellComponents    []Component       `json:"workcell_components"`
	SpatialReasoning      *SpatialReasoning `json:"spatial_reasoning"`
	ThroughputRequirement *Throughput       `json:"throughput_requirement"`
	Constraints           []Constraint      `json:"constraints,omitempty"`
	MissingInfo           []string          `json:"missing_info,omitempty"`
}

// PlacedComponent is a component with a solver-assigned position.
type PlacedComponent struct {
	Name          string    `json:"name"`
	ComponentType string    `json:"component_type"`
	Position      []float64 `json:"position"`
	Orientation   []float64 `json:"orientation,omitempty"`
}

// MotionTargets holds the pick and place targets for the transfer motion.
// A nil coordinate slice means the target was absent from the payload.
type MotionTargets struct {
	PickTargetXYZ  []float64 `json:"pick_target_xyz,omitempty"`
	PlaceTargetXYZ []float64 `json:"place_target_xyz,omitempty"`
}

// LayoutSolution is the stage-2 artifact: the placement-solver output.
type LayoutSolution struct {
	Status              string            `json:"status"`
	Error               string            `json:"error,omitempty"`
	OptimizedComponents []PlacedComponent `json:"optimized_components"`
	MotionTargets       *MotionTargets    `json:"motion_targets,omitempty"`
}

// SceneComponent is one entry in a scene-build input. The asset path may be
// carried in either urdf or mjcf_path depending on which tool produced it.
type SceneComponent struct {
	Name          string    `json:"name"`
	ComponentType string    `json:"component_type"`
	URDF          string    `json:"urdf,omitempty"`
	MJCFPath      string    `json:"mjcf_path,omitempty"`
	Position      []float64 `json:"position,omitempty"`
}

// AssetPath returns the component's asset path, preferring urdf.
func (c *SceneComponent) AssetPath() string {
	if c.URDF != "" {
		return c.URDF
	}
	return c.MJCFPath
}

// SceneInput is the stage-3 artifact submitted for scene building.
// OptimizedComponents is retained to detect payloads where a pipeline passed
// stage-2 data through without assembling a scene input.
type SceneInput struct {
	Components          []SceneComponent  `json:"components"`
	OptimizedComponents []PlacedComponent `json:"optimized_components,omitempty"`
	ExecuteTrajectory   bool              `json:"execute_trajectory"`
	MotionTargets       *MotionTargets    `json:"motion_targets,omitempty"`
}

// SceneRun is the stage-3 artifact for a full scene-build and trajectory
// execution.
type SceneRun struct {
	Success            bool     `json:"success"`
	RobotAvailable     bool     `json:"robot_available"`
	SpawnedComponents  []string `json:"spawned_components,omitempty"`
	TrajectoryExecuted bool     `json:"trajectory_executed"`
	TrajectoryStatus   string   `json:"trajectory_status"`
	PhasesCompleted    int      `json:"phases_completed"`
	Error              string   `json:"error,omitempty"`
}

// TrajectoryPhases is the number of phases a complete pick-and-place
// trajectory executes (approach, grasp, lift, move, release, retreat).
const TrajectoryPhases = 6

func decode(raw []byte, v any, what string) error {
	if len(raw) == 0 {
		return fmt.Errorf("%s payload is empty", what)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

// DecodeWorkcellSpec parses a stage-1 payload.
func DecodeWorkcellSpec(raw []byte) (*WorkcellSpec, error) {
	var s WorkcellSpec
	if err := decode(raw, &s, "stage 1"); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeLayoutSolution parses a stage-2 payload.
func DecodeLayoutSolution(raw []byte) (*LayoutSolution, error) {
	var s LayoutSolution
	if err := decode(raw, &s, "stage 2"); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeSceneInput parses a stage-3 scene-build input payload.
func DecodeSceneInput(raw []byte) (*SceneInput, error) {
	var s SceneInput
	if err := decode(raw, &s, "stage 3 input"); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeSceneRun parses a stage-3 execution result payload.
func DecodeSceneRun(raw []byte) (*SceneRun, error) {
	var s SceneRun
	if err := decode(raw, &s, "stage 3 run"); err != nil {
		return nil, err
	}
	return &s, nil
}
