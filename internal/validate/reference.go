package validate

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/cellbench/internal/artifact"
)

// CompareOpts tunes the reference comparison. Zero values are replaced by
// DefaultCompareOpts.
type CompareOpts struct {
	// PositionToleranceM is the allowed per-component position error.
	PositionToleranceM float64
	// MotionToleranceM is the allowed pick/place target error.
	MotionToleranceM float64
	// MinMatchFraction is the fraction of matched components that must be
	// within tolerance.
	MinMatchFraction float64
}

// DefaultCompareOpts returns the standard comparison thresholds.
func DefaultCompareOpts() CompareOpts {
	return CompareOpts{
		PositionToleranceM: 0.5,
		MotionToleranceM:   0.5,
		MinMatchFraction:   0.5,
	}
}

func (o CompareOpts) withDefaults() CompareOpts {
	d := DefaultCompareOpts()
	if o.PositionToleranceM <= 0 {
		o.PositionToleranceM = d.PositionToleranceM
	}
	if o.MotionToleranceM <= 0 {
		o.MotionToleranceM = d.MotionToleranceM
	}
	if o.MinMatchFraction <= 0 {
		o.MinMatchFraction = d.MinMatchFraction
	}
	return o
}

// matchReference pairs a candidate component with a reference component, by
// exact name first, then by component type.
func matchReference(c artifact.PlacedComponent, ref []artifact.PlacedComponent, used map[int]bool) int {
	for i, r := range ref {
		if !used[i] && strings.EqualFold(r.Name, c.Name) {
			return i
		}
	}
	for i, r := range ref {
		if !used[i] && strings.EqualFold(r.ComponentType, c.ComponentType) {
			return i
		}
	}
	return -1
}

// CompareToReference scores a stage-2 layout against a known-good reference
// solution for the same task. Components are matched by name then type; the
// layout passes when enough matched positions and both motion targets fall
// within tolerance. A nil or component-less reference yields KindMissing so
// callers can downgrade to structural validation.
func CompareToReference(raw []byte, ref *artifact.LayoutSolution, opts CompareOpts) Result {
	if len(raw) == 0 {
		return missing("stage 2 produced no output to compare")
	}
	if ref == nil || len(ref.OptimizedComponents) == 0 {
		return missing("no reference solution available")
	}
	sol, err := artifact.DecodeLayoutSolution(raw)
	if err != nil {
		return undecodable(artifact.Stage2, err)
	}
	opts = opts.withDefaults()

	var checks []Check

	hasComps := Check{Name: "has_components", Passed: len(sol.OptimizedComponents) > 0}
	if hasComps.Passed {
		hasComps.Reason = fmt.Sprintf("%d components to compare against %d reference components",
			len(sol.OptimizedComponents), len(ref.OptimizedComponents))
	} else {
		hasComps.Reason = "no optimized components to compare"
	}
	checks = append(checks, hasComps)

	var pick, place, refPick, refPlace []float64
	if sol.MotionTargets != nil {
		pick = sol.MotionTargets.PickTargetXYZ
		place = sol.MotionTargets.PlaceTargetXYZ
	}
	if ref.MotionTargets != nil {
		refPick = ref.MotionTargets.PickTargetXYZ
		refPlace = ref.MotionTargets.PlaceTargetXYZ
	}
	targets := Check{Name: "motion_targets", Passed: pick != nil || place != nil}
	if targets.Passed {
		targets.Reason = "motion targets present"
	} else {
		targets.Reason = "no motion targets to compare"
	}
	checks = append(checks, targets)

	used := make(map[int]bool)
	matched, within := 0, 0
	var errs []string
	for _, c := range sol.OptimizedComponents {
		if !validPosition(c.Position) {
			continue
		}
		i := matchReference(c, ref.OptimizedComponents, used)
		if i < 0 {
			continue
		}
		used[i] = true
		matched++
		d := distance(c.Position, ref.OptimizedComponents[i].Position)
		if d <= opts.PositionToleranceM {
			within++
		} else {
			errs = append(errs, fmt.Sprintf("%s off by %.2fm", c.Name, d))
		}
	}
	layout := Check{Name: "layout_match"}
	if matched == 0 {
		layout.Reason = "no components matched the reference"
	} else {
		frac := float64(within) / float64(matched)
		layout.Passed = frac >= opts.MinMatchFraction
		layout.Reason = fmt.Sprintf("%d/%d matched components within %.1fm", within, matched, opts.PositionToleranceM)
		if len(errs) > 0 {
			layout.Reason += " (" + capReasons(errs) + ")"
		}
	}
	checks = append(checks, layout)

	checks = append(checks, targetCheck("pick_within_tolerance", pick, refPick, opts.MotionToleranceM))
	checks = append(checks, targetCheck("place_within_tolerance", place, refPlace, opts.MotionToleranceM))

	return finish(checks, "",
		"layout agrees with reference solution", "layout diverges from reference")
}

func targetCheck(name string, got, want []float64, tol float64) Check {
	c := Check{Name: name}
	switch {
	case !validPosition(got):
		c.Reason = "target missing from candidate"
	case !validPosition(want):
		c.Reason = "target missing from reference"
	default:
		d := distance(got, want)
		if d <= tol {
			c.Passed = true
			c.Reason = fmt.Sprintf("within %.1fm of reference (%.2fm)", tol, d)
		} else {
			c.Reason = fmt.Sprintf("%.2fm from reference, tolerance %.1fm", d, tol)
		}
	}
	return c
}
