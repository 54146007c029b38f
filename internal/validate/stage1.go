package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lucasnoah/cellbench/internal/artifact"
)

// throughputTolerance is the allowed relative error between the declared
// cycle time and the cycle time implied by items_per_hour.
const throughputTolerance = 0.10

// minTextLen gates free-text fields that must carry real reasoning.
const minTextLen = 50

// minAnalysisLen gates the shorter spatial analysis fields.
const minAnalysisLen = 30

// validAssetRoots are the directory roots an mjcf_path may live under after
// prefix stripping.
var validAssetRoots = map[string]bool{
	"workcell_components":     true,
	"mujoco_menagerie":        true,
	"universal_robots_ur5e":   true,
	"universal_robots_ur10e":  true,
	"franka_emika_panda":      true,
	"franka_fr3":              true,
	"ufactory_lite6":          true,
	"ufactory_xarm7":          true,
	"kinova_gen3":             true,
	"kuka_iiwa_14":            true,
	"rethink_robotics_sawyer": true,
}

// objectKeywords identify the manipulated object among components.
var objectKeywords = []string{
	"carton", "box", "object", "item", "bottle", "product", "package",
	"workpiece", "part", "bin", "tray", "container", "load", "goods",
	"sku", "payload", "parcel", "crate", "case",
}

var (
	pickupZoneKeywords    = []string{"pick", "input", "source", "conveyor", "feed"}
	placementZoneKeywords = []string{"place", "drop", "output", "pallet", "stack", "deposit"}
)

// Inventory summarizes what a stage-1 spec actually contains. It backs the
// required_components check and is recorded alongside validation details.
type Inventory struct {
	HasRobot       bool
	ComponentCount int
	ZoneCount      int
	HasPedestal    bool
	HasConveyor    bool
	HasPallet      bool
	HasObject      bool
}

// InventoryOf scans a spec's components and zones. Category membership is
// keyword-based over component_type and name, both lowercased.
func InventoryOf(spec *artifact.WorkcellSpec) Inventory {
	inv := Inventory{
		HasRobot:       spec.RobotSelection != nil && spec.RobotSelection.Model != "",
		ComponentCount: len(spec.WorkcellComponents),
	}
	if spec.SpatialReasoning != nil {
		inv.ZoneCount = len(spec.SpatialReasoning.Zones)
	}
	for _, c := range spec.WorkcellComponents {
		ct := strings.ToLower(c.ComponentType)
		cn := strings.ToLower(c.Name)
		if strings.Contains(ct, "pedestal") || strings.Contains(cn, "pedestal") {
			inv.HasPedestal = true
		}
		if strings.Contains(ct, "conveyor") || strings.Contains(cn, "conveyor") ||
			strings.Contains(ct, "belt") {
			inv.HasConveyor = true
		}
		if strings.Contains(ct, "pallet") || strings.Contains(cn, "pallet") {
			inv.HasPallet = true
		}
		for _, kw := range objectKeywords {
			if strings.Contains(ct, kw) || strings.Contains(cn, kw) {
				inv.HasObject = true
				break
			}
		}
	}
	return inv
}

// Stage1 validates a stage-1 workcell specification payload: the structural
// schema plus five consistency checks (throughput arithmetic, payload margin,
// required component categories, asset-path roots, spatial zone coverage).
func Stage1(raw []byte) Result {
	if len(raw) == 0 {
		return missing("stage 1 produced no output")
	}
	spec, err := artifact.DecodeWorkcellSpec(raw)
	if err != nil {
		return undecodable(artifact.Stage1, err)
	}

	var checks []Check
	checks = append(checks, schemaCheck(spec))
	checks = append(checks, throughputCheck(spec.ThroughputRequirement))
	checks = append(checks, payloadCheck(spec))
	checks = append(checks, requiredComponentsCheck(InventoryOf(spec)))
	checks = append(checks, assetPathsCheck(spec.WorkcellComponents))
	checks = append(checks, zonesCheck(spec.SpatialReasoning))

	return finish(checks, "schema_valid",
		"stage 1 validated (schema + 5 consistency checks)", "stage 1 failed")
}

func schemaCheck(spec *artifact.WorkcellSpec) Check {
	errs := stage1SchemaErrors(spec)
	c := Check{Name: "schema_valid", Passed: len(errs) == 0}
	if len(errs) == 1 {
		c.Reason = errs[0]
	} else if len(errs) > 1 {
		c.Reason = fmt.Sprintf("%s (+%d more fields)", errs[0], len(errs)-1)
	}
	return c
}

func validDimensions(dims []float64) bool {
	if len(dims) != 3 {
		return false
	}
	for _, d := range dims {
		if d <= 0 {
			return false
		}
	}
	return true
}

func stage1SchemaErrors(spec *artifact.WorkcellSpec) []string {
	var errs []string
	if !spec.Stage1Complete {
		errs = append(errs, "stage_1_complete must be true")
	}
	if len(spec.TaskObjective) < minTextLen {
		errs = append(errs, fmt.Sprintf("task_objective must be at least %d characters", minTextLen))
	}
	if ts := spec.TaskSpecification; ts == nil {
		errs = append(errs, "task_specification is required")
	} else {
		if ts.Name == "" {
			errs = append(errs, "task_specification.name is required")
		}
		if ts.SKUID == "" {
			errs = append(errs, "task_specification.sku_id is required")
		}
		if !validDimensions(ts.Dimensions) {
			errs = append(errs, "task_specification.dimensions must be three positive values")
		}
		if ts.WeightKg <= 0 {
			errs = append(errs, "task_specification.weight_kg must be positive")
		}
		if ts.Material == "" {
			errs = append(errs, "task_specification.material is required")
		}
	}
	if rs := spec.RobotSelection; rs == nil {
		errs = append(errs, "robot_selection is required")
	} else {
		if rs.Model == "" {
			errs = append(errs, "robot_selection.model is required")
		}
		if rs.Manufacturer == "" {
			errs = append(errs, "robot_selection.manufacturer is required")
		}
		if rs.PayloadKg <= 0 {
			errs = append(errs, "robot_selection.payload_kg must be positive")
		}
		if rs.ReachM <= 0 {
			errs = append(errs, "robot_selection.reach_m must be positive")
		}
		if len(rs.Justification) < minTextLen {
			errs = append(errs, fmt.Sprintf("robot_selection.justification must be at least %d characters", minTextLen))
		}
	}
	if len(spec.WorkcellComponents) == 0 {
		errs = append(errs, "workcell_components must contain at least one component")
	}
	for i, c := range spec.WorkcellComponents {
		if c.Name == "" {
			errs = append(errs, fmt.Sprintf("workcell_components[%d].name is required", i))
		}
		if c.ComponentType == "" {
			errs = append(errs, fmt.Sprintf("workcell_components[%d].component_type is required", i))
		}
		if !strings.HasSuffix(c.MJCFPath, ".xml") {
			errs = append(errs, fmt.Sprintf("workcell_components[%d].mjcf_path must end with .xml", i))
		}
		if !validDimensions(c.Dimensions) {
			errs = append(errs, fmt.Sprintf("workcell_components[%d].dimensions must be three positive values", i))
		}
	}
	if sr := spec.SpatialReasoning; sr == nil {
		errs = append(errs, "spatial_reasoning is required")
	} else {
		if len(sr.Zones) == 0 {
			errs = append(errs, "spatial_reasoning.zones must contain at least one zone")
		}
		for i, z := range sr.Zones {
			if z.ZoneName == "" {
				errs = append(errs, fmt.Sprintf("spatial_reasoning.zones[%d].zone_name is required", i))
			}
			if z.ZoneType == "" {
				errs = append(errs, fmt.Sprintf("spatial_reasoning.zones[%d].zone_type is required", i))
			}
			if len(z.CenterPosition) != 3 {
				errs = append(errs, fmt.Sprintf("spatial_reasoning.zones[%d].center_position must have three values", i))
			}
			if z.RadiusM <= 0 {
				errs = append(errs, fmt.Sprintf("spatial_reasoning.zones[%d].radius_m must be positive", i))
			}
		}
		if len(sr.MaterialFlow) < minAnalysisLen {
			errs = append(errs, fmt.Sprintf("spatial_reasoning.material_flow must be at least %d characters", minAnalysisLen))
		}
		if len(sr.Accessibility) < minAnalysisLen {
			errs = append(errs, fmt.Sprintf("spatial_reasoning.accessibility must be at least %d characters", minAnalysisLen))
		}
		if len(sr.Reasoning) < minTextLen {
			errs = append(errs, fmt.Sprintf("spatial_reasoning.reasoning must be at least %d characters", minTextLen))
		}
	}
	if spec.ThroughputRequirement == nil {
		errs = append(errs, "throughput_requirement is required")
	}
	if spec.Stage1Complete && len(spec.MissingInfo) > 0 {
		errs = append(errs, "missing_info must be empty when stage_1_complete is true")
	}
	return errs
}

func throughputCheck(tr *artifact.Throughput) Check {
	c := Check{Name: "throughput_consistent"}
	if tr == nil || tr.ItemsPerHour <= 0 || tr.CycleTimeSeconds <= 0 {
		c.Reason = "items_per_hour and cycle_time_seconds are both required and positive"
		return c
	}
	expected := 3600.0 / tr.ItemsPerHour
	errPct := math.Abs(tr.CycleTimeSeconds-expected) / expected
	if errPct <= throughputTolerance {
		c.Passed = true
		c.Reason = fmt.Sprintf("cycle %.1fs within %.0f%% of expected %.1fs",
			tr.CycleTimeSeconds, throughputTolerance*100, expected)
	} else {
		c.Reason = fmt.Sprintf("%.0f items/hr implies %.1fs cycle but got %.1fs (error %.0f%% > %.0f%% tolerance)",
			tr.ItemsPerHour, expected, tr.CycleTimeSeconds, errPct*100, throughputTolerance*100)
	}
	return c
}

func payloadCheck(spec *artifact.WorkcellSpec) Check {
	c := Check{Name: "payload_adequate"}
	if spec.RobotSelection == nil || spec.TaskSpecification == nil {
		c.Reason = "robot_selection and task_specification are both required"
		return c
	}
	payload := spec.RobotSelection.PayloadKg
	weight := spec.TaskSpecification.WeightKg
	if payload <= 0 || weight <= 0 {
		c.Reason = "payload_kg and weight_kg are both required and positive"
		return c
	}
	// Equality passes: rated payload covers the object exactly.
	if payload >= weight {
		c.Passed = true
		c.Reason = fmt.Sprintf("robot payload %.1fkg covers object weight %.1fkg", payload, weight)
	} else {
		c.Reason = fmt.Sprintf("robot payload %.1fkg below object weight %.1fkg", payload, weight)
	}
	return c
}

func requiredComponentsCheck(inv Inventory) Check {
	c := Check{Name: "required_components"}
	var missing []string
	if !inv.HasPedestal {
		missing = append(missing, "pedestal")
	}
	if !inv.HasConveyor {
		missing = append(missing, "conveyor/belt")
	}
	if !inv.HasPallet {
		missing = append(missing, "pallet")
	}
	if !inv.HasObject {
		missing = append(missing, "target object (carton/box)")
	}
	if len(missing) == 0 {
		c.Passed = true
		c.Reason = fmt.Sprintf("all required component types present (%d components)", inv.ComponentCount)
	} else {
		c.Reason = "missing required component types: " + strings.Join(missing, ", ")
	}
	return c
}

// normalizeAssetRoot reduces an mjcf_path to its root directory segment,
// first stripping any prefix up to the last occurrence of a known root.
func normalizeAssetRoot(path string) string {
	p := strings.TrimSpace(strings.ReplaceAll(path, `\`, "/"))
	lower := strings.ToLower(p)
	roots := make([]string, 0, len(validAssetRoots))
	for r := range validAssetRoots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	for _, root := range roots {
		if idx := strings.LastIndex(lower, root+"/"); idx > 0 {
			p = p[idx:]
			lower = lower[idx:]
		}
	}
	seg, _, _ := strings.Cut(p, "/")
	return strings.ToLower(seg)
}

func assetPathsCheck(components []artifact.Component) Check {
	c := Check{Name: "asset_paths_valid"}
	var invalid []string
	for _, comp := range components {
		path := strings.TrimSpace(comp.MJCFPath)
		if path == "" {
			invalid = append(invalid, fmt.Sprintf("<empty> [%s]", comp.Name))
			continue
		}
		if !validAssetRoots[normalizeAssetRoot(path)] {
			invalid = append(invalid, fmt.Sprintf("%s [%s]", path, comp.Name))
		}
	}
	if len(invalid) == 0 {
		c.Passed = true
		c.Reason = fmt.Sprintf("all %d asset paths under known roots", len(components))
	} else {
		c.Reason = "asset paths outside known roots: " + capReasons(invalid)
	}
	return c
}

func anyKeyword(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func zonesCheck(sr *artifact.SpatialReasoning) Check {
	c := Check{Name: "spatial_zones_complete"}
	if sr == nil || len(sr.Zones) == 0 {
		c.Reason = "spatial_reasoning with zones is required"
		return c
	}
	types := make(map[string]bool)
	var hasPickup, hasPlacement bool
	for _, z := range sr.Zones {
		zt := strings.ToLower(strings.TrimSpace(z.ZoneType))
		zn := strings.ToLower(z.ZoneName)
		types[zt] = true
		if anyKeyword(zt, pickupZoneKeywords) || anyKeyword(zn, pickupZoneKeywords) {
			hasPickup = true
		}
		if anyKeyword(zt, placementZoneKeywords) || anyKeyword(zn, placementZoneKeywords) {
			hasPlacement = true
		}
	}
	switch {
	case len(sr.Zones) < 2:
		c.Reason = fmt.Sprintf("need at least 2 zones, got %d", len(sr.Zones))
	case !hasPickup:
		c.Reason = "no pickup zone (pick/input/source/conveyor/feed)"
	case !hasPlacement:
		c.Reason = "no placement zone (place/drop/output/pallet/stack/deposit)"
	default:
		c.Passed = true
		c.Reason = fmt.Sprintf("%d zones with %d distinct types, pickup and placement covered",
			len(sr.Zones), len(types))
	}
	return c
}

// Stage1VsTask cross-checks a validated stage-1 spec against the task prompt
// it was produced for: robot choice and expected component coverage.
func Stage1VsTask(raw []byte, expectedRobot string, expectedComponents []string) Result {
	if len(raw) == 0 {
		return missing("stage 1 produced no output")
	}
	spec, err := artifact.DecodeWorkcellSpec(raw)
	if err != nil {
		return undecodable(artifact.Stage1, err)
	}

	var checks []Check

	robot := Check{Name: "robot_matches"}
	if expectedRobot == "" {
		robot.Passed = true
		robot.Reason = "no expected robot for this task"
	} else if spec.RobotSelection == nil || spec.RobotSelection.Model == "" {
		robot.Reason = fmt.Sprintf("expected robot %q but none selected", expectedRobot)
	} else {
		got := strings.ToLower(spec.RobotSelection.Model)
		want := strings.ToLower(expectedRobot)
		if strings.Contains(got, want) || strings.Contains(want, got) {
			robot.Passed = true
			robot.Reason = fmt.Sprintf("selected %s matches expected %s", spec.RobotSelection.Model, expectedRobot)
		} else {
			robot.Reason = fmt.Sprintf("selected robot %q does not match expected %q", spec.RobotSelection.Model, expectedRobot)
		}
	}
	checks = append(checks, robot)

	coverage := Check{Name: "component_coverage"}
	if len(expectedComponents) == 0 {
		coverage.Passed = true
		coverage.Reason = "no expected components for this task"
	} else {
		var blob strings.Builder
		for _, c := range spec.WorkcellComponents {
			blob.WriteString(strings.ToLower(c.Name))
			blob.WriteString(" ")
			blob.WriteString(strings.ToLower(c.ComponentType))
			blob.WriteString(" ")
		}
		text := blob.String()
		var uncovered []string
		for _, want := range expectedComponents {
			if !strings.Contains(text, strings.ToLower(want)) {
				uncovered = append(uncovered, want)
			}
		}
		if len(uncovered) == 0 {
			coverage.Passed = true
			coverage.Reason = fmt.Sprintf("all %d expected component keywords covered", len(expectedComponents))
		} else {
			coverage.Reason = "expected components not found: " + strings.Join(uncovered, ", ")
		}
	}
	checks = append(checks, coverage)

	return finish(checks, "",
		"stage 1 consistent with task prompt", "stage 1 diverges from task prompt")
}
