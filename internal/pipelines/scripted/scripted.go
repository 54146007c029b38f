// Package scripted provides the deterministic reference pipeline. It holds
// no reasoning system: stage artifacts are synthesized directly from the
// structured fields of each task prompt, so runs are reproducible and the
// validation and evidence machinery gets exercised end to end.
package scripted

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasnoah/cellbench/internal/artifact"
	"github.com/lucasnoah/cellbench/internal/config"
	"github.com/lucasnoah/cellbench/internal/evidence"
	"github.com/lucasnoah/cellbench/internal/harness"
	"github.com/lucasnoah/cellbench/internal/prompts"
	"github.com/lucasnoah/cellbench/internal/validate"
)

// Pipeline is the scripted reference strategy.
type Pipeline struct{}

// New returns the scripted pipeline.
func New() *Pipeline { return &Pipeline{} }

// Name implements harness.Pipeline.
func (p *Pipeline) Name() string { return "scripted" }

var (
	weightRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*kg`)
	throughputRe = regexp.MustCompile(`(\d+)\s*items per hour`)
)

// robotCatalog maps expected robot keywords to their simulator assets and
// rated capabilities.
var robotCatalog = map[string]artifact.RobotSelection{
	"ur5e":  {Model: "UR5e", Manufacturer: "Universal Robots", PayloadKg: 5, ReachM: 0.85},
	"ur10e": {Model: "UR10e", Manufacturer: "Universal Robots", PayloadKg: 12.5, ReachM: 1.3},
	"fr3":   {Model: "FR3", Manufacturer: "Franka Robotics", PayloadKg: 3, ReachM: 0.855},
	"iiwa":  {Model: "KUKA iiwa 14", Manufacturer: "KUKA", PayloadKg: 14, ReachM: 0.82},
	"gen3":  {Model: "Kinova Gen3", Manufacturer: "Kinova", PayloadKg: 4, ReachM: 0.902},
	"xarm7": {Model: "xArm7", Manufacturer: "UFACTORY", PayloadKg: 3.5, ReachM: 0.7},
}

var robotAssetDirs = map[string]string{
	"UR5e":         "universal_robots_ur5e",
	"UR10e":        "universal_robots_ur10e",
	"FR3":          "franka_fr3",
	"KUKA iiwa 14": "kuka_iiwa_14",
	"Kinova Gen3":  "kinova_gen3",
	"xArm7":        "ufactory_xarm7",
}

// Run implements harness.Pipeline.
func (p *Pipeline) Run(taskPrompts []prompts.TaskPrompt, cfg *config.Config, startID int, resumeFrom string) (*evidence.Logger, error) {
	lg, err := evidence.New(p.Name(), cfg.LogsDir, resumeFrom)
	if err != nil {
		return nil, err
	}

	for i, task := range taskPrompts {
		if err := p.runIteration(lg, cfg, startID+1+i, task); err != nil {
			lg.Close()
			return nil, err
		}
	}
	if err := lg.Close(); err != nil {
		return nil, err
	}
	return lg, nil
}

func (p *Pipeline) runIteration(lg *evidence.Logger, cfg *config.Config, id int, task prompts.TaskPrompt) error {
	if err := lg.StartIteration(id, task.ID, task.Prompt); err != nil {
		return err
	}
	attr := evidence.NewAttributor(nil)

	// Stage 1: synthesize the workcell spec from the prompt.
	spec := p.synthesizeSpec(task)
	specRaw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	if err := lg.StartStage(artifact.Stage1); err != nil {
		return err
	}
	call := evidence.ObservedCall{
		ID:          fmt.Sprintf("call-%d-1", id),
		ToolName:    "design_workcell",
		ArgsSummary: task.Prompt,
		Success:     true,
	}
	if err := attr.AttributeStage(lg, artifact.Stage1, []evidence.ObservedCall{call}); err != nil {
		return err
	}
	s1 := validate.Stage1(specRaw)
	if err := lg.EndStage(s1.OK, s1.Message, specRaw, s1.Checks); err != nil {
		return err
	}

	// Stage 2: solve the layout, gated on stage 1.
	stage2OK := false
	var layoutRaw json.RawMessage
	if err := lg.StartStage(artifact.Stage2); err != nil {
		return err
	}
	if !s1.OK {
		if err := attr.AttributeStage(lg, artifact.Stage2, nil); err != nil {
			return err
		}
		if err := lg.EndStage(false, "Skipped – Stage 1 failed", nil, nil); err != nil {
			return err
		}
	} else {
		layout := p.synthesizeLayout(spec)
		layoutRaw, err = json.Marshal(layout)
		if err != nil {
			return fmt.Errorf("marshal layout: %w", err)
		}
		call := evidence.ObservedCall{
			ID:          fmt.Sprintf("call-%d-2", id),
			ToolName:    "optimize_layout",
			ArgsSummary: fmt.Sprintf("%d components", len(spec.WorkcellComponents)),
			Success:     true,
		}
		if err := attr.AttributeStage(lg, artifact.Stage2, []evidence.ObservedCall{call}); err != nil {
			return err
		}
		s2 := validate.Stage2(layoutRaw)
		cross := validate.Stage1VsTask(specRaw, task.ExpectedRobot, task.ExpectedComponents)
		stage2OK = s2.OK && cross.OK
		msg := s2.Message
		if s2.OK && !cross.OK {
			msg = cross.Message
		}
		details := append(append([]validate.Check(nil), s2.Checks...), cross.Checks...)
		if err := lg.EndStage(stage2OK, msg, layoutRaw, details); err != nil {
			return err
		}
	}

	// Stage 3: scene-build input, gated on stage 2.
	if err := lg.StartStage(artifact.Stage3); err != nil {
		return err
	}
	if !stage2OK {
		if err := attr.AttributeStage(lg, artifact.Stage3, nil); err != nil {
			return err
		}
		if err := lg.EndStage(false, "Skipped – Stage 2 failed", nil, nil); err != nil {
			return err
		}
	} else {
		var sceneRaw json.RawMessage
		var s3 validate.Result
		if cfg.EnableSceneExecution {
			run := p.synthesizeRun(spec)
			sceneRaw, err = json.Marshal(run)
			if err != nil {
				return fmt.Errorf("marshal scene run: %w", err)
			}
			s3 = validate.Stage3Run(sceneRaw)
		} else {
			scene := p.synthesizeScene(spec, layoutRaw)
			sceneRaw, err = json.Marshal(scene)
			if err != nil {
				return fmt.Errorf("marshal scene input: %w", err)
			}
			s3 = validate.Stage3Input(sceneRaw, cfg.ProjectRoot)
		}
		call := evidence.ObservedCall{
			ID:       fmt.Sprintf("call-%d-3", id),
			ToolName: "build_scene",
			Success:  true,
		}
		if err := attr.AttributeStage(lg, artifact.Stage3, []evidence.ObservedCall{call}); err != nil {
			return err
		}
		if err := lg.EndStage(s3.OK, s3.Message, sceneRaw, s3.Checks); err != nil {
			return err
		}
	}

	_, err = lg.EndIteration()
	return err
}

func (p *Pipeline) robotFor(task prompts.TaskPrompt) artifact.RobotSelection {
	want := strings.ToLower(task.ExpectedRobot)
	for key, robot := range robotCatalog {
		if strings.Contains(want, key) || strings.Contains(key, want) {
			return robot
		}
	}
	return robotCatalog["ur10e"]
}

func parseFloat(re *regexp.Regexp, s string, fallback float64) float64 {
	m := re.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return fallback
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return v
}

// requiredCategories pairs each mandatory component category with the
// keyword used when the prompt does not name one explicitly.
var requiredCategories = []struct{ match, fallback string }{
	{"pedestal", "pedestal"},
	{"conveyor", "conveyor"},
	{"pallet", "pallet"},
	{"", "carton"}, // manipulated object: any object keyword matches
}

var objectWords = map[string]bool{
	"carton": true, "box": true, "bottle": true, "parcel": true, "crate": true,
	"case": true, "tray": true, "bin": true, "workpiece": true, "part": true,
	"container": true, "goods": true, "product": true, "package": true,
}

// componentKeywords derives the component list: the prompt's expected
// components, extended so every required category is covered.
func componentKeywords(task prompts.TaskPrompt) []string {
	keywords := append([]string(nil), task.ExpectedComponents...)
	has := func(substr string) bool {
		for _, kw := range keywords {
			if substr == "" {
				if objectWords[kw] {
					return true
				}
				continue
			}
			if strings.Contains(kw, substr) {
				return true
			}
		}
		return false
	}
	for _, cat := range requiredCategories {
		if !has(cat.match) {
			keywords = append(keywords, cat.fallback)
		}
	}
	return keywords
}

func (p *Pipeline) synthesizeSpec(task prompts.TaskPrompt) *artifact.WorkcellSpec {
	weight := parseFloat(weightRe, task.Prompt, 5)
	iph := parseFloat(throughputRe, task.Prompt, 120)
	robot := p.robotFor(task)
	robot.Justification = fmt.Sprintf(
		"%s selected: rated payload %.1fkg covers the %.1fkg object with margin, and %.2fm reach spans the pick and place zones for %s.",
		robot.Model, robot.PayloadKg, weight, robot.ReachM, task.Description)

	var components []artifact.Component
	for _, kw := range componentKeywords(task) {
		components = append(components, artifact.Component{
			Name:          kw + "_1",
			ComponentType: kw,
			MJCFPath:      fmt.Sprintf("workcell_components/%s/%s.xml", kw, kw),
			Dimensions:    []float64{0.8, 0.6, 0.5},
		})
	}

	return &artifact.WorkcellSpec{
		Stage1Complete: true,
		TaskObjective: fmt.Sprintf(
			"Automate %s: transfer %.1fkg items at %.0f items per hour from the pickup area to the placement area.",
			task.Description, weight, iph),
		TaskSpecification: &artifact.ObjectSpec{
			Name:       task.Description,
			SKUID:      "SKU-" + task.ID,
			Dimensions: []float64{0.4, 0.3, 0.25},
			WeightKg:   weight,
			Material:   "cardboard",
			Quantity:   100,
		},
		RobotSelection:     &robot,
		WorkcellComponents: components,
		SpatialReasoning: &artifact.SpatialReasoning{
			Zones: []artifact.Zone{
				{ZoneName: "pickup_zone", ZoneType: "pick",
					CenterPosition: []float64{1.2, 0, 0.75}, RadiusM: 0.5},
				{ZoneName: "placement_zone", ZoneType: "place",
					CenterPosition: []float64{-1.1, 0, 0.3}, RadiusM: 0.7},
			},
			MaterialFlow:  "items enter on the transport unit, cross the robot envelope, and leave on the staging unit",
			Accessibility: "operator and maintenance access kept clear on both long sides",
			Reasoning: fmt.Sprintf(
				"Pickup and placement zones sit on opposite sides of the %s so the transfer path stays inside the rated reach.",
				robot.Model),
		},
		ThroughputRequirement: &artifact.Throughput{
			ItemsPerHour:     iph,
			CycleTimeSeconds: 3600 / iph,
		},
	}
}

func (p *Pipeline) synthesizeLayout(spec *artifact.WorkcellSpec) *artifact.LayoutSolution {
	// Fixed placement template: transport on one side, staging opposite.
	positions := map[string][]float64{
		"pedestal": {0, 0, 0},
		"conveyor": {1.2, 0, 0.35},
		"pallet":   {-1.1, 0, 0.075},
	}
	var placed []artifact.PlacedComponent
	slot := 0
	for _, c := range spec.WorkcellComponents {
		pos, ok := positions[c.ComponentType]
		if !ok {
			pos = []float64{1.2, 0.3 * float64(slot), 0.75}
			slot++
		}
		placed = append(placed, artifact.PlacedComponent{
			Name:          c.Name,
			ComponentType: c.ComponentType,
			Position:      pos,
		})
	}
	return &artifact.LayoutSolution{
		Status:              "success",
		OptimizedComponents: placed,
		MotionTargets: &artifact.MotionTargets{
			PickTargetXYZ:  []float64{1.2, 0, 0.75},
			PlaceTargetXYZ: []float64{-1.1, 0, 0.3},
		},
	}
}

func (p *Pipeline) synthesizeScene(spec *artifact.WorkcellSpec, layoutRaw json.RawMessage) *artifact.SceneInput {
	var layout artifact.LayoutSolution
	_ = json.Unmarshal(layoutRaw, &layout)

	assetDir := robotAssetDirs[spec.RobotSelection.Model]
	scene := &artifact.SceneInput{
		ExecuteTrajectory: true,
		MotionTargets:     layout.MotionTargets,
	}
	scene.Components = append(scene.Components, artifact.SceneComponent{
		Name:          spec.RobotSelection.Model,
		ComponentType: "robot",
		MJCFPath:      fmt.Sprintf("mujoco_menagerie/%s/%s.xml", assetDir, assetDir),
		Position:      []float64{0, 0, 0.8},
	})
	byName := make(map[string][]float64)
	for _, c := range layout.OptimizedComponents {
		byName[c.Name] = c.Position
	}
	for _, c := range spec.WorkcellComponents {
		scene.Components = append(scene.Components, artifact.SceneComponent{
			Name:          c.Name,
			ComponentType: c.ComponentType,
			MJCFPath:      c.MJCFPath,
			Position:      byName[c.Name],
		})
	}
	return scene
}

func (p *Pipeline) synthesizeRun(spec *artifact.WorkcellSpec) *artifact.SceneRun {
	spawned := make([]string, 0, len(spec.WorkcellComponents)+1)
	spawned = append(spawned, spec.RobotSelection.Model)
	for _, c := range spec.WorkcellComponents {
		spawned = append(spawned, c.Name)
	}
	return &artifact.SceneRun{
		Success:            true,
		RobotAvailable:     true,
		SpawnedComponents:  spawned,
		TrajectoryExecuted: true,
		TrajectoryStatus:   "success",
		PhasesCompleted:    artifact.TrajectoryPhases,
	}
}

// Register adds the scripted pipeline to the harness registry.
func Register() {
	harness.Register(New())
}
