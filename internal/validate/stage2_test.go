package validate

import (
	"testing"

	"github.com/lucasnoah/cellbench/internal/artifact"
)

func validSolution() *artifact.LayoutSolution {
	return &artifact.LayoutSolution{
		Status: "success",
		OptimizedComponents: []artifact.PlacedComponent{
			{Name: "robot_pedestal", ComponentType: "pedestal", Position: []float64{0, 0, 0}},
			{Name: "infeed_conveyor", ComponentType: "conveyor", Position: []float64{1.2, 0, 0.35}},
			{Name: "euro_pallet", ComponentType: "pallet", Position: []float64{-1.1, 0, 0.075}},
			{Name: "carton_a", ComponentType: "carton", Position: []float64{1.2, 0, 0.75}},
		},
		MotionTargets: &artifact.MotionTargets{
			PickTargetXYZ:  []float64{1.2, 0, 0.75},
			PlaceTargetXYZ: []float64{-1.1, 0, 0.3},
		},
	}
}

func TestStage2Valid(t *testing.T) {
	res := Stage2(mustJSON(t, validSolution()))
	if !res.OK {
		t.Fatalf("expected OK, got %s: %s", res.Kind, res.Message)
	}
}

func TestStage2SolverFailure(t *testing.T) {
	sol := validSolution()
	sol.Status = "infeasible"
	sol.Error = "no collision-free placement"
	res := Stage2(mustJSON(t, sol))
	if res.OK {
		t.Fatal("failed solver status must not validate")
	}
	c := res.Check("solver_status")
	if c == nil || c.Passed {
		t.Fatalf("solver_status should fail: %+v", c)
	}
}

func TestStage2DegenerateSpread(t *testing.T) {
	// Pick and place 0.3m apart: solver says success, geometry says no.
	sol := validSolution()
	sol.MotionTargets.PickTargetXYZ = []float64{0.5, 0, 0.75}
	sol.MotionTargets.PlaceTargetXYZ = []float64{0.8, 0, 0.75}
	res := Stage2(mustJSON(t, sol))
	if res.OK {
		t.Fatal("degenerate spread must not validate")
	}
	if c := res.Check("layout_spread"); c == nil || c.Passed {
		t.Fatalf("layout_spread should fail: %+v", c)
	}
	if c := res.Check("solver_status"); c == nil || !c.Passed {
		t.Fatalf("solver_status should still pass: %+v", c)
	}
}

func TestStage2LowPick(t *testing.T) {
	sol := validSolution()
	sol.MotionTargets.PickTargetXYZ = []float64{1.2, 0, 0.1}
	res := Stage2(mustJSON(t, sol))
	if c := res.Check("layout_spread"); c == nil || c.Passed {
		t.Fatalf("pick below minimum height should fail: %+v", c)
	}
}

func TestStage2AllAtOrigin(t *testing.T) {
	sol := validSolution()
	for i := range sol.OptimizedComponents {
		sol.OptimizedComponents[i].Position = []float64{0, 0, 0}
	}
	res := Stage2(mustJSON(t, sol))
	if c := res.Check("nonzero_positions"); c == nil || c.Passed {
		t.Fatalf("all-origin layout should fail: %+v", c)
	}
}

func TestStage2MissingTargets(t *testing.T) {
	sol := validSolution()
	sol.MotionTargets = nil
	res := Stage2(mustJSON(t, sol))
	if res.OK {
		t.Fatal("missing motion targets must not validate")
	}
	if c := res.Check("motion_targets"); c == nil || c.Passed {
		t.Fatalf("motion_targets should fail: %+v", c)
	}
	// Spread is not evaluated without targets but must not fail the result
	// on its own.
	if c := res.Check("layout_spread"); c == nil || !c.Passed {
		t.Fatalf("layout_spread should pass vacuously: %+v", c)
	}
}

func TestStage2Missing(t *testing.T) {
	if res := Stage2(nil); res.Kind != KindMissing {
		t.Fatalf("kind = %s, want missing", res.Kind)
	}
}

func TestCompareToReference(t *testing.T) {
	ref := validSolution()

	// Identical layout matches.
	res := CompareToReference(mustJSON(t, validSolution()), ref, CompareOpts{})
	if !res.OK {
		t.Fatalf("identical layout should match: %s", res.Message)
	}

	// Shift one component 0.3m: still within the 0.5m tolerance.
	sol := validSolution()
	sol.OptimizedComponents[1].Position = []float64{1.5, 0, 0.35}
	res = CompareToReference(mustJSON(t, sol), ref, CompareOpts{})
	if !res.OK {
		t.Fatalf("0.3m shift should stay within tolerance: %s", res.Message)
	}

	// Shift most components far away: match fraction drops below half.
	sol = validSolution()
	for i := range sol.OptimizedComponents {
		sol.OptimizedComponents[i].Position = []float64{float64(i) * 3, 5, 1}
	}
	res = CompareToReference(mustJSON(t, sol), ref, CompareOpts{})
	if res.OK {
		t.Fatal("displaced layout should diverge")
	}
	if c := res.Check("layout_match"); c == nil || c.Passed {
		t.Fatalf("layout_match should fail: %+v", c)
	}

	// Pick target drift beyond tolerance.
	sol = validSolution()
	sol.MotionTargets.PickTargetXYZ = []float64{2.0, 0, 0.75}
	res = CompareToReference(mustJSON(t, sol), ref, CompareOpts{})
	if c := res.Check("pick_within_tolerance"); c == nil || c.Passed {
		t.Fatalf("drifted pick target should fail: %+v", c)
	}
}

func TestCompareWithoutReferenceIsMissing(t *testing.T) {
	raw := mustJSON(t, validSolution())

	res := CompareToReference(raw, nil, CompareOpts{})
	if res.Kind != KindMissing || res.OK {
		t.Fatalf("nil reference: kind = %s, want missing", res.Kind)
	}

	empty := &artifact.LayoutSolution{Status: "success"}
	res = CompareToReference(raw, empty, CompareOpts{})
	if res.Kind != KindMissing || res.OK {
		t.Fatalf("component-less reference: kind = %s, want missing", res.Kind)
	}
}

func TestCompareMatchesByTypeWhenNamesDiffer(t *testing.T) {
	ref := validSolution()
	sol := validSolution()
	for i := range sol.OptimizedComponents {
		sol.OptimizedComponents[i].Name = sol.OptimizedComponents[i].Name + "_v2"
	}
	res := CompareToReference(mustJSON(t, sol), ref, CompareOpts{})
	if !res.OK {
		t.Fatalf("type fallback matching should succeed: %s", res.Message)
	}
}
