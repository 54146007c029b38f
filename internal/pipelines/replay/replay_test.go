package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/cellbench/internal/artifact"
	"github.com/lucasnoah/cellbench/internal/config"
	"github.com/lucasnoah/cellbench/internal/prompts"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogsDir:     t.TempDir(),
		ReportsDir:  t.TempDir(),
		ProjectRoot: t.TempDir(),
		ReplayDir:   t.TempDir(),
	}
}

func writeArtifact(t *testing.T, cfg *config.Config, promptID, file string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(cfg.ReplayDir, promptID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func goodSpec() *artifact.WorkcellSpec {
	longText := strings.Repeat("reasoned analysis of the palletizing task layout ", 3)
	return &artifact.WorkcellSpec{
		Stage1Complete: true,
		TaskObjective:  longText,
		TaskSpecification: &artifact.ObjectSpec{
			Name: "carton", SKUID: "SKU-P01", Dimensions: []float64{0.4, 0.3, 0.25},
			WeightKg: 8, Material: "cardboard", Quantity: 100,
		},
		RobotSelection: &artifact.RobotSelection{
			Model: "UR10e", Manufacturer: "Universal Robots",
			PayloadKg: 12.5, ReachM: 1.3, Justification: longText,
		},
		WorkcellComponents: []artifact.Component{
			{Name: "pedestal_1", ComponentType: "pedestal",
				MJCFPath: "workcell_components/pedestal/pedestal.xml", Dimensions: []float64{0.5, 0.5, 0.8}},
			{Name: "conveyor_1", ComponentType: "conveyor",
				MJCFPath: "workcell_components/conveyor/conveyor.xml", Dimensions: []float64{2, 0.6, 0.7}},
			{Name: "pallet_1", ComponentType: "pallet",
				MJCFPath: "workcell_components/pallet/pallet.xml", Dimensions: []float64{1.2, 0.8, 0.15}},
			{Name: "carton_1", ComponentType: "carton",
				MJCFPath: "workcell_components/carton/carton.xml", Dimensions: []float64{0.4, 0.3, 0.25}},
		},
		SpatialReasoning: &artifact.SpatialReasoning{
			Zones: []artifact.Zone{
				{ZoneName: "pickup_zone", ZoneType: "pick", CenterPosition: []float64{1.2, 0, 0.7}, RadiusM: 0.5},
				{ZoneName: "placement_zone", ZoneType: "place", CenterPosition: []float64{-1.1, 0, 0.15}, RadiusM: 0.7},
			},
			MaterialFlow:  "cartons move from conveyor across the cell to the pallet",
			Accessibility: "maintenance access clear on both sides of the cell",
			Reasoning:     longText,
		},
		ThroughputRequirement: &artifact.Throughput{ItemsPerHour: 120, CycleTimeSeconds: 30},
	}
}

func goodLayout() *artifact.LayoutSolution {
	return &artifact.LayoutSolution{
		Status: "success",
		OptimizedComponents: []artifact.PlacedComponent{
			{Name: "pedestal_1", ComponentType: "pedestal", Position: []float64{0, 0, 0}},
			{Name: "conveyor_1", ComponentType: "conveyor", Position: []float64{1.2, 0, 0.35}},
			{Name: "pallet_1", ComponentType: "pallet", Position: []float64{-1.1, 0, 0.075}},
			{Name: "carton_1", ComponentType: "carton", Position: []float64{1.2, 0, 0.75}},
		},
		MotionTargets: &artifact.MotionTargets{
			PickTargetXYZ:  []float64{1.2, 0, 0.75},
			PlaceTargetXYZ: []float64{-1.1, 0, 0.3},
		},
	}
}

func goodScene() *artifact.SceneInput {
	return &artifact.SceneInput{
		Components: []artifact.SceneComponent{
			{Name: "ur10e", ComponentType: "robot",
				MJCFPath: "mujoco_menagerie/universal_robots_ur10e/ur10e.xml",
				Position: []float64{0, 0, 0.8}},
			{Name: "conveyor_1", ComponentType: "conveyor",
				MJCFPath: "workcell_components/conveyor/conveyor.xml",
				Position: []float64{1.2, 0, 0}},
			{Name: "pallet_1", ComponentType: "pallet",
				MJCFPath: "workcell_components/pallet/pallet.xml",
				Position: []float64{-1.1, 0, 0}},
		},
		ExecuteTrajectory: true,
		MotionTargets: &artifact.MotionTargets{
			PickTargetXYZ:  []float64{1.2, 0, 0.75},
			PlaceTargetXYZ: []float64{-1.1, 0, 0.3},
		},
	}
}

func p01(t *testing.T) []prompts.TaskPrompt {
	t.Helper()
	p, ok := prompts.ByID("P01")
	if !ok {
		t.Fatal("corpus missing P01")
	}
	return []prompts.TaskPrompt{p}
}

func TestReplayHappyPath(t *testing.T) {
	cfg := testConfig(t)
	writeArtifact(t, cfg, "P01", "stage1.json", goodSpec())
	writeArtifact(t, cfg, "P01", "stage2.json", goodLayout())
	writeArtifact(t, cfg, "P01", "stage3.json", goodScene())
	// Raw submissions only need the robot asset to resolve.
	robot := filepath.Join(cfg.ProjectRoot, "mujoco_menagerie", "universal_robots_ur10e", "ur10e.xml")
	if err := os.MkdirAll(filepath.Dir(robot), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(robot, []byte("<mujoco/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	lg, err := New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := lg.Records()[0]
	if !rec.OverallSuccess {
		for _, s := range rec.StageResults {
			t.Logf("stage %s: success=%v %s", s.Stage, s.Success, s.Message)
		}
		t.Fatal("stored good artifacts should replay to success")
	}
}

// A stage-1 artifact missing the mounting base and the manipulated object:
// the failure names both categories and the later stages record an explicit
// skip instead of being silently omitted.
func TestReplayMissingCategoriesSkipsDownstream(t *testing.T) {
	cfg := testConfig(t)
	spec := goodSpec()
	spec.WorkcellComponents = spec.WorkcellComponents[1:3] // conveyor + pallet only
	writeArtifact(t, cfg, "P01", "stage1.json", spec)
	writeArtifact(t, cfg, "P01", "stage2.json", goodLayout())

	lg, err := New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := lg.Records()[0]
	if rec.Stage1Success || rec.OverallSuccess {
		t.Fatal("stage 1 must fail")
	}
	s1 := rec.StageResults[0]
	for _, want := range []string{"pedestal", "target object"} {
		if !strings.Contains(s1.Message, want) {
			t.Errorf("stage 1 message %q missing category %q", s1.Message, want)
		}
	}
	skipMsgs := map[string]string{
		"2": "Skipped – Stage 1 failed",
		"3": "Skipped – Stage 2 failed",
	}
	for _, s := range rec.StageResults[1:] {
		if s.Success {
			t.Errorf("stage %s must not succeed", s.Stage)
		}
		if s.Message != skipMsgs[s.Stage] {
			t.Errorf("stage %s skip message = %q, want %q", s.Stage, s.Message, skipMsgs[s.Stage])
		}
	}
}

func TestReplayAbsentArtifactsAreMisses(t *testing.T) {
	cfg := testConfig(t) // no artifacts at all

	lg, err := New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := lg.Records()[0]
	if rec.Stage1Success {
		t.Fatal("absent stage 1 artifact must fail")
	}
	if !strings.Contains(rec.StageResults[0].Message, "no output") {
		t.Errorf("stage 1 message should report the missing artifact: %q",
			rec.StageResults[0].Message)
	}
}

func shiftedLayout(dx float64) *artifact.LayoutSolution {
	sol := goodLayout()
	for i := range sol.OptimizedComponents {
		sol.OptimizedComponents[i].Position[0] += dx
	}
	sol.MotionTargets.PickTargetXYZ[0] += dx
	sol.MotionTargets.PlaceTargetXYZ[0] += dx
	return sol
}

// With a stored reference solution, stage 2 is scored by comparison instead
// of structural validation, using the configured tolerances.
func TestReplayReferenceComparison(t *testing.T) {
	cfg := testConfig(t)
	writeArtifact(t, cfg, "P01", "stage1.json", goodSpec())
	writeArtifact(t, cfg, "P01", "stage2.json", shiftedLayout(1.0))
	writeArtifact(t, cfg, "P01", "reference.json", goodLayout())

	lg, err := New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := lg.Records()[0]
	if rec.Stage2Success {
		t.Fatal("layout 1.0m off the reference must fail at the default 0.5m tolerance")
	}
	if msg := rec.StageResults[1].Message; !strings.Contains(msg, "reference") {
		t.Errorf("stage 2 message should name the reference: %q", msg)
	}

	// Loosened tolerances from config accept the same layout.
	cfg.Compare.PositionToleranceM = 3
	cfg.Compare.MotionToleranceM = 3
	lg, err = New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if !lg.Records()[0].Stage2Success {
		t.Fatalf("loose tolerances should accept the layout: %s",
			lg.Records()[0].StageResults[1].Message)
	}
}

func TestReplayCorruptReferenceFallsBack(t *testing.T) {
	cfg := testConfig(t)
	writeArtifact(t, cfg, "P01", "stage1.json", goodSpec())
	writeArtifact(t, cfg, "P01", "stage2.json", goodLayout())
	refPath := filepath.Join(cfg.ReplayDir, "P01", "reference.json")
	if err := os.WriteFile(refPath, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	lg, err := New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := lg.Records()[0]
	if !rec.Stage2Success {
		t.Fatalf("structural fallback should pass: %s", rec.StageResults[1].Message)
	}
	if msg := rec.StageResults[1].Message; strings.Contains(msg, "reference") {
		t.Errorf("fallback message should not mention a reference: %q", msg)
	}
}

func TestReplaySceneExecutionMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSceneExecution = true
	writeArtifact(t, cfg, "P01", "stage1.json", goodSpec())
	writeArtifact(t, cfg, "P01", "stage2.json", goodLayout())
	writeArtifact(t, cfg, "P01", "stage3.json", &artifact.SceneRun{
		Success:          true,
		TrajectoryStatus: "success",
		PhasesCompleted:  artifact.TrajectoryPhases,
	})

	lg, err := New().Run(p01(t), cfg, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if !lg.Records()[0].OverallSuccess {
		t.Fatal("full execution artifact should validate")
	}
}
