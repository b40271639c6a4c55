// Package trigger evaluates the seasonal weed-emergence rule catalog
// against accumulated degree-day and rolling-window state.
package trigger

import "time"

// Shape selects the evaluation strategy for a rule. Rules share four
// condition shapes; the catalog below is plain data consumed by one
// evaluator per shape.
type Shape int

const (
	// ShapeCoolRain fires when the 5-day average temperature drops to a
	// ceiling while the 2-day rain sum reaches a floor.
	ShapeCoolRain Shape = iota
	// ShapeWarmStreak fires on a run of consecutive warm days within the
	// trailing 14 days combined with a cumulative GDD floor.
	ShapeWarmStreak
	// ShapeTiered fires the highest satisfied cumulative GDD50 tier,
	// each tier under its own alert key.
	ShapeTiered
	// ShapeGDDThreshold fires on a single cumulative GDD50 floor.
	ShapeGDDThreshold
	// ShapeTrailingAvg fires when the mean temperature over a trailing
	// span drops to a ceiling.
	ShapeTrailingAvg
)

// GDDBase distinguishes which cumulative sum a warm-streak rule reads.
type GDDBase int

const (
	BaseGDD50 GDDBase = iota
	BaseGDD32
)

// Tier is one rung of a tiered rule, ascending by threshold.
type Tier struct {
	Suffix    string // alert key fragment, e.g. "headsup"
	Threshold float64
}

// Rule is one immutable trigger definition. Only the fields relevant to
// its Shape are set.
type Rule struct {
	ID              string
	Name            string
	SeasonMonths    []time.Month
	Weeds           string
	Action          string
	SprayWindowDays int
	Shape           Shape

	// ShapeCoolRain
	AvgTempBelow float64
	Rain2DayMin  float64

	// ShapeWarmStreak
	ConsecutiveDays int
	WarmThreshold   float64
	GDDBase         GDDBase
	GDDMin          float64

	// ShapeTiered
	Tiers []Tier

	// ShapeGDDThreshold
	GDD50Threshold float64

	// ShapeTrailingAvg
	TrailingDays     int
	TrailingAvgBelow float64
}

// lookbackDays is the evaluation window for warm-streak rules.
const lookbackDays = 14

// Rules is the fixed catalog. Evaluation order does not matter; the rules
// do not interact.
var Rules = []Rule{
	{
		ID:              "fall_pre",
		Name:            "Fall Pre-Emergent Window Open",
		SeasonMonths:    []time.Month{time.September, time.October},
		Weeds:           "chickweed, henbit, mustards, Poa annua, deadnettle",
		Action:          "Apply PRE-emergent on clean soil. Rainfall will activate.",
		SprayWindowDays: 14,
		Shape:           ShapeCoolRain,
		AvgTempBelow:    70.0,
		Rain2DayMin:     0.25,
	},
	{
		ID:              "early_spring_post",
		Name:            "Early Spring Scout & Spray",
		SeasonMonths:    []time.Month{time.April, time.May},
		Weeds:           "winter annual rosettes, chickweed, henbit, shepherd's purse",
		Action:          "Scout fields. Spot-spray POST while weeds < 6 inches, before bolting.",
		SprayWindowDays: 21,
		Shape:           ShapeWarmStreak,
		ConsecutiveDays: 5,
		WarmThreshold:   45.0,
		GDDBase:         BaseGDD32,
		GDDMin:          200,
	},
	{
		ID:              "spring_pre",
		Name:            "Spring Pre-Emergent",
		SeasonMonths:    []time.Month{time.April, time.May},
		Weeds:           "crabgrass, foxtail, other warm-season annual grasses",
		Action:          "Apply PRE-emergent before GDD50 hits 200. Earlier if history of early germination.",
		SprayWindowDays: 14,
		Shape:           ShapeTiered,
		Tiers: []Tier{
			{Suffix: "headsup", Threshold: 125},
			{Suffix: "applyby", Threshold: 150},
			{Suffix: "toolate", Threshold: 200},
		},
	},
	{
		ID:              "spring_broadleaf",
		Name:            "Spring Broadleaf Flush",
		SeasonMonths:    []time.Month{time.April, time.May},
		Weeds:           "lambsquarters, pigweed, ragweed, spotted spurge, groundsel",
		Action:          "POST-emergent spray while seedlings small (2-6 leaf stage). 7-21 days after emergence.",
		SprayWindowDays: 21,
		Shape:           ShapeGDDThreshold,
		GDD50Threshold:  300,
	},
	{
		ID:               "perennial_fall",
		Name:             "Perennial Fall Rosette Window",
		SeasonMonths:     []time.Month{time.September, time.October},
		Weeds:            "dandelion, dock, thistle, plantain, buttercup, blackberry regrowth",
		Action:           "Target rosettes and active regrowth. Best uptake during active growth before dormancy.",
		SprayWindowDays:  21,
		Shape:            ShapeTrailingAvg,
		TrailingDays:     7,
		TrailingAvgBelow: 65.0,
	},
	{
		ID:              "perennial_spring",
		Name:            "Perennial Spring Rosette Window",
		SeasonMonths:    []time.Month{time.April, time.May},
		Weeds:           "dandelion, dock, thistle, plantain, buttercup, burdock, bindweed",
		Action:          "Spray rosettes/regrowth before bolting. Repeat apps may be needed for perennials.",
		SprayWindowDays: 21,
		Shape:           ShapeWarmStreak,
		ConsecutiveDays: 7,
		WarmThreshold:   50.0,
		GDDBase:         BaseGDD50,
		GDDMin:          100,
	},
}

func (r Rule) inSeason(m time.Month) bool {
	for _, sm := range r.SeasonMonths {
		if sm == m {
			return true
		}
	}
	return false
}
