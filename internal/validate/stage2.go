package validate

import (
	"fmt"
	"math"

	"github.com/lucasnoah/cellbench/internal/artifact"
)

// Spread thresholds for the pick/place geometry check. A solved layout with
// pick and place on top of each other, or a pick target at floor level, is
// degenerate even when the solver reports success.
const (
	minPickPlaceDistM = 0.8
	minPickHeightM    = 0.3
)

func validPosition(pos []float64) bool {
	return len(pos) == 3
}

func atOrigin(pos []float64) bool {
	for _, v := range pos {
		if v != 0 {
			return false
		}
	}
	return len(pos) == 3
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := 0; i < 3 && i < len(a) && i < len(b); i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Stage2 validates a stage-2 layout solution: solver status, placed
// components with well-formed positions, both motion targets, and a
// non-degenerate spatial spread.
func Stage2(raw []byte) Result {
	if len(raw) == 0 {
		return missing("stage 2 produced no output")
	}
	sol, err := artifact.DecodeLayoutSolution(raw)
	if err != nil {
		return undecodable(artifact.Stage2, err)
	}

	var checks []Check

	status := Check{Name: "solver_status", Passed: sol.Status == "success"}
	if status.Passed {
		status.Reason = "solver reported success"
	} else if sol.Error != "" {
		status.Reason = fmt.Sprintf("solver status %q: %s", sol.Status, sol.Error)
	} else {
		status.Reason = fmt.Sprintf("solver status %q, want success", sol.Status)
	}
	checks = append(checks, status)

	comps := sol.OptimizedComponents
	hasComps := Check{Name: "has_components", Passed: len(comps) > 0}
	if hasComps.Passed {
		hasComps.Reason = fmt.Sprintf("%d components placed", len(comps))
	} else {
		hasComps.Reason = "no optimized components in solution"
	}
	checks = append(checks, hasComps)

	posValid := Check{Name: "positions_valid", Passed: len(comps) > 0}
	badPositions := 0
	for _, c := range comps {
		if !validPosition(c.Position) {
			badPositions++
		}
	}
	if badPositions > 0 {
		posValid.Passed = false
		posValid.Reason = fmt.Sprintf("%d components without 3-element positions", badPositions)
	} else if posValid.Passed {
		posValid.Reason = "all component positions are 3-element"
	} else {
		posValid.Reason = "no positions to validate"
	}
	checks = append(checks, posValid)

	var pick, place []float64
	if sol.MotionTargets != nil {
		pick = sol.MotionTargets.PickTargetXYZ
		place = sol.MotionTargets.PlaceTargetXYZ
	}
	targets := Check{Name: "motion_targets", Passed: pick != nil && place != nil}
	if targets.Passed {
		targets.Reason = "pick and place targets present"
	} else {
		targets.Reason = "missing pick_target_xyz or place_target_xyz"
	}
	checks = append(checks, targets)

	zeroCount := 0
	for _, c := range comps {
		if atOrigin(c.Position) {
			zeroCount++
		}
	}
	nonzero := Check{Name: "nonzero_positions", Passed: len(comps) > 0 && zeroCount < len(comps)}
	if nonzero.Passed {
		nonzero.Reason = fmt.Sprintf("%d/%d components away from origin", len(comps)-zeroCount, len(comps))
	} else {
		nonzero.Reason = "all component positions at origin, layout was not solved"
	}
	checks = append(checks, nonzero)

	spread := Check{Name: "layout_spread", Passed: true, Reason: "spread not evaluated without both targets"}
	if validPosition(pick) && validPosition(place) {
		dist := distance(pick, place)
		switch {
		case dist < minPickPlaceDistM:
			spread.Passed = false
			spread.Reason = fmt.Sprintf("pick-place distance %.2fm below %.1fm minimum", dist, minPickPlaceDistM)
		case pick[2] < minPickHeightM:
			spread.Passed = false
			spread.Reason = fmt.Sprintf("pick height %.2fm below %.1fm minimum", pick[2], minPickHeightM)
		default:
			spread.Reason = fmt.Sprintf("pick-place distance %.2fm, pick height %.2fm", dist, pick[2])
		}
	}
	checks = append(checks, spread)

	return finish(checks, "",
		"stage 2 validated (solver output + layout geometry)", "stage 2 failed")
}
