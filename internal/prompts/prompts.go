// Package prompts holds the fixed, ordered corpus of workcell design tasks
// used for evaluation. Order matters: batch resume relies on a prompt's
// position being stable across runs.
package prompts

// Complexity levels.
const (
	Low    = "low"
	Medium = "medium"
	High   = "high"
)

// TaskPrompt is one evaluation task. ExpectedRobot and ExpectedComponents
// back the stage-1-vs-task cross-check.
type TaskPrompt struct {
	ID                 string
	Description        string
	Prompt             string
	Complexity         string
	ExpectedRobot      string
	ExpectedComponents []string
}

var corpus = []TaskPrompt{
	{
		ID:          "P01",
		Description: "basic carton palletizing",
		Prompt: "Design a palletizing workcell that picks 8 kg cartons from an " +
			"infeed conveyor and stacks them on a euro pallet at 120 items per hour. " +
			"Use a UR10e on a pedestal.",
		Complexity:         Low,
		ExpectedRobot:      "UR10e",
		ExpectedComponents: []string{"conveyor", "pallet", "carton", "pedestal"},
	},
	{
		ID:          "P02",
		Description: "light bottle packing",
		Prompt: "Design a workcell where a UR5e picks 1.5 kg bottles from a feed " +
			"conveyor and places them into a collection bin at 300 items per hour.",
		Complexity:         Low,
		ExpectedRobot:      "UR5e",
		ExpectedComponents: []string{"conveyor", "bin", "bottle"},
	},
	{
		ID:          "P03",
		Description: "tray depalletizing",
		Prompt: "Design a depalletizing cell: a UR10e on a pedestal lifts 5 kg trays " +
			"off a full pallet and drops them onto an outfeed conveyor at 90 items per hour.",
		Complexity:         Low,
		ExpectedRobot:      "UR10e",
		ExpectedComponents: []string{"pallet", "conveyor", "tray", "pedestal"},
	},
	{
		ID:          "P04",
		Description: "small parcel sortation",
		Prompt: "Design a parcel handling workcell: a Franka FR3 on a mounting " +
			"pedestal picks 2 kg parcels from a source conveyor and places them onto " +
			"a staging pallet at 200 items per hour.",
		Complexity:         Low,
		ExpectedRobot:      "FR3",
		ExpectedComponents: []string{"conveyor", "pallet", "parcel", "pedestal"},
	},
	{
		ID:          "P05",
		Description: "mixed-case palletizing",
		Prompt: "Design a palletizing workcell for mixed 6 to 10 kg cases arriving " +
			"on an infeed belt. A UR10e on a pedestal stacks them in layers on a euro " +
			"pallet at 150 items per hour with interleaved slip sheets.",
		Complexity:         Medium,
		ExpectedRobot:      "UR10e",
		ExpectedComponents: []string{"conveyor", "pallet", "case", "pedestal"},
	},
	{
		ID:          "P06",
		Description: "dual-zone crate handling",
		Prompt: "Design a workcell where a KUKA iiwa 14 picks 12 kg crates from an " +
			"input conveyor and alternates placement between two output pallets at " +
			"100 items per hour, keeping both placement zones reachable.",
		Complexity:         Medium,
		ExpectedRobot:      "iiwa",
		ExpectedComponents: []string{"conveyor", "pallet", "crate"},
	},
	{
		ID:          "P07",
		Description: "bin picking to conveyor",
		Prompt: "Design a bin picking cell: a Kinova Gen3 mounted on a pedestal " +
			"retrieves 0.8 kg workpieces from a parts bin and deposits them on an " +
			"outfeed conveyor at 240 items per hour.",
		Complexity:         Medium,
		ExpectedRobot:      "Gen3",
		ExpectedComponents: []string{"bin", "conveyor", "workpiece", "pedestal"},
	},
	{
		ID:          "P08",
		Description: "bagged goods palletizing",
		Prompt: "Design a palletizing workcell for 9 kg bagged goods coming off a " +
			"feed conveyor. A UR10e on a riser pedestal builds a stable stack on a " +
			"pallet at 110 items per hour, with a buffer zone for rejects.",
		Complexity:         Medium,
		ExpectedRobot:      "UR10e",
		ExpectedComponents: []string{"conveyor", "pallet", "goods", "pedestal"},
	},
	{
		ID:          "P09",
		Description: "product box repack",
		Prompt: "Design a repacking workcell: an xArm7 picks 3 kg product boxes from " +
			"a source conveyor, reorients them, and places them into a shipping " +
			"container on a pallet at 180 items per hour.",
		Complexity:         Medium,
		ExpectedRobot:      "xArm7",
		ExpectedComponents: []string{"conveyor", "pallet", "box", "container"},
	},
	{
		ID:          "P10",
		Description: "high-rate sku palletizing",
		Prompt: "Design a high throughput palletizing workcell: a UR10e on a " +
			"pedestal moves 7 kg SKU cartons from a fast infeed conveyor to a pallet " +
			"at 240 items per hour, with a pickup zone sized for two queued cartons " +
			"and a placement zone covering the full pallet footprint.",
		Complexity:         High,
		ExpectedRobot:      "UR10e",
		ExpectedComponents: []string{"conveyor", "pallet", "carton", "pedestal"},
	},
	{
		ID:          "P11",
		Description: "heavy payload stacking",
		Prompt: "Design a stacking workcell for 13 kg machined parts: a KUKA iiwa 14 " +
			"on a reinforced pedestal lifts parts from an input conveyor and stacks " +
			"them on a reinforced pallet at 60 items per hour, respecting a 2.5 m " +
			"cell envelope and maintenance access on one side.",
		Complexity:         High,
		ExpectedRobot:      "iiwa",
		ExpectedComponents: []string{"conveyor", "pallet", "part", "pedestal"},
	},
	{
		ID:          "P12",
		Description: "cold-chain case palletizing",
		Prompt: "Design a cold storage palletizing workcell: a UR10e picks 10 kg " +
			"insulated cases from a chilled infeed conveyor and builds pallets at " +
			"130 items per hour. Include a pedestal mount, a reject drop zone, and " +
			"keep all placements inside a 3 m by 3 m floor area.",
		Complexity:         High,
		ExpectedRobot:      "UR10e",
		ExpectedComponents: []string{"conveyor", "pallet", "case", "pedestal"},
	},
}

// All returns the full corpus in its fixed order.
func All() []TaskPrompt {
	out := make([]TaskPrompt, len(corpus))
	copy(out, corpus)
	return out
}

// Get returns the contiguous slice [offset, offset+count) of the corpus,
// optionally filtered to one complexity first. count <= 0 means the rest of
// the corpus. Out-of-range offsets return an empty slice.
func Get(count, offset int, complexity string) []TaskPrompt {
	pool := corpus
	if complexity != "" {
		pool = nil
		for _, p := range corpus {
			if p.Complexity == complexity {
				pool = append(pool, p)
			}
		}
	}
	if offset < 0 || offset >= len(pool) {
		return nil
	}
	pool = pool[offset:]
	if count > 0 && count < len(pool) {
		pool = pool[:count]
	}
	out := make([]TaskPrompt, len(pool))
	copy(out, pool)
	return out
}

// ByID looks up a prompt by its identifier.
func ByID(id string) (TaskPrompt, bool) {
	for _, p := range corpus {
		if p.ID == id {
			return p, true
		}
	}
	return TaskPrompt{}, false
}
