package trigger

import (
	"fmt"
	"time"

	"github.com/sauvie/weedwatch/internal/models"
	"github.com/sauvie/weedwatch/internal/store"
)

// Event is one sprouting alert produced by a newly satisfied rule.
type Event struct {
	// Key is the alert ledger key: ruleID[_tier]_year.
	Key string
	// TriggerKey identifies the sprouting event for the spray scheduler.
	// Equal to Key; a firing schedules at most one follow-up window.
	TriggerKey      string
	RuleID          string
	Name            string
	Weeds           string
	Action          string
	SprayWindowDays int
	// Date is the sprouting date the spray window anchors on.
	Date    time.Time
	Message string
}

type Evaluator struct {
	store *store.Store
}

func NewEvaluator(st *store.Store) *Evaluator {
	return &Evaluator{store: st}
}

// EvaluateAll runs every rule in the catalog against the stored history.
// A rule whose condition is unmet, out of season, short of data, or whose
// alert key is already in the ledger contributes no event.
func (ev *Evaluator) EvaluateAll(now time.Time) ([]Event, error) {
	var events []Event
	for _, rule := range Rules {
		event, err := ev.Evaluate(rule, now)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", rule.ID, err)
		}
		if event != nil {
			events = append(events, *event)
		}
	}
	return events, nil
}

func (ev *Evaluator) Evaluate(rule Rule, now time.Time) (*Event, error) {
	if !rule.inSeason(now.Month()) {
		return nil, nil
	}

	switch rule.Shape {
	case ShapeCoolRain:
		return ev.evalCoolRain(rule, now)
	case ShapeWarmStreak:
		return ev.evalWarmStreak(rule, now)
	case ShapeTiered:
		return ev.evalTiered(rule, now)
	case ShapeGDDThreshold:
		return ev.evalGDDThreshold(rule, now)
	case ShapeTrailingAvg:
		return ev.evalTrailingAvg(rule, now)
	}
	return nil, fmt.Errorf("unknown rule shape %d", rule.Shape)
}

func (ev *Evaluator) evalCoolRain(rule Rule, now time.Time) (*Event, error) {
	recent, err := ev.store.GetRecentRecords(7)
	if err != nil {
		return nil, err
	}
	if len(recent) < 5 {
		return nil, nil
	}

	latest := recent[len(recent)-1]
	if !latest.AvgTemp5Day.Valid || !latest.Rain2DaySum.Valid {
		return nil, nil
	}
	avg5 := latest.AvgTemp5Day.Float64
	rain2 := latest.Rain2DaySum.Float64
	if avg5 > rule.AvgTempBelow || rain2 < rule.Rain2DayMin {
		return nil, nil
	}

	msg := fmt.Sprintf(
		"WEED ALERT: %s\n\n"+
			"5-Day Avg Temp: %.0fF (below %.0fF)\n"+
			"2-Day Rain: %.2f in\n\n"+
			"Target Weeds:\n%s\n\n"+
			"Action: %s\n\n"+
			"Spray within %d days for best results.",
		rule.Name, avg5, rule.AvgTempBelow, rain2, rule.Weeds, rule.Action, rule.SprayWindowDays)

	return ev.finish(rule, rule.ID, msg, now)
}

func (ev *Evaluator) evalWarmStreak(rule Rule, now time.Time) (*Event, error) {
	recent, err := ev.store.GetRecentRecords(lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(recent) < rule.ConsecutiveDays {
		return nil, nil
	}

	streak := MaxConsecutiveWarmDays(recent, rule.WarmThreshold)
	if streak < rule.ConsecutiveDays {
		return nil, nil
	}

	latest := recent[len(recent)-1]
	cum := latest.CumGDD50
	baseName := "GDD50"
	if rule.GDDBase == BaseGDD32 {
		cum = latest.CumGDD32
		baseName = "GDD32"
	}
	if !cum.Valid || cum.Float64 < rule.GDDMin {
		return nil, nil
	}

	msg := fmt.Sprintf(
		"WEED ALERT: %s\n\n"+
			"Warm Streak: %d days above %.0fF\n"+
			"Cumulative %s: %.0f\n\n"+
			"Target Weeds:\n%s\n\n"+
			"Action: %s\n\n"+
			"Spray within %d days while weeds are small.",
		rule.Name, streak, rule.WarmThreshold, baseName, cum.Float64,
		rule.Weeds, rule.Action, rule.SprayWindowDays)

	return ev.finish(rule, rule.ID, msg, now)
}

func (ev *Evaluator) evalTiered(rule Rule, now time.Time) (*Event, error) {
	latest, err := ev.store.GetLatestRecord()
	if err != nil {
		return nil, err
	}
	if latest == nil || !latest.CumGDD50.Valid {
		return nil, nil
	}
	cum50 := latest.CumGDD50.Float64

	// Highest satisfied tier wins; lower tiers for the same year stay
	// unsent once accumulation has passed them.
	for i := len(rule.Tiers) - 1; i >= 0; i-- {
		tier := rule.Tiers[i]
		if cum50 < tier.Threshold {
			continue
		}

		var msg string
		switch tier.Suffix {
		case "toolate":
			msg = fmt.Sprintf(
				"WEED ALERT: Crabgrass Germination Started!\n\n"+
					"Cumulative GDD50: %.0f (threshold: %.0f)\n\n"+
					"PRE-emergent window has passed.\n"+
					"Switch to POST-emergent on small seedlings.\n\n"+
					"Target Weeds:\n%s",
				cum50, tier.Threshold, rule.Weeds)
		case "applyby":
			msg = fmt.Sprintf(
				"WEED ALERT: APPLY PRE-EMERGENT NOW\n\n"+
					"Cumulative GDD50: %.0f\n"+
					"Apply-By Threshold: %.0f\n"+
					"Germination at: %.0f\n\n"+
					"Target Weeds:\n%s\n\n"+
					"Action: %s",
				cum50, tier.Threshold, rule.Tiers[len(rule.Tiers)-1].Threshold, rule.Weeds, rule.Action)
		default:
			msg = fmt.Sprintf(
				"WEED ALERT: Spring PRE Heads-Up\n\n"+
					"Cumulative GDD50: %.0f\n"+
					"Apply-By: %.0f GDD50\n"+
					"Germination: %.0f GDD50\n\n"+
					"Target Weeds:\n%s\n\n"+
					"Start planning PRE-emergent application.",
				cum50, rule.Tiers[1].Threshold, rule.Tiers[2].Threshold, rule.Weeds)
		}

		return ev.finish(rule, rule.ID+"_"+tier.Suffix, msg, now)
	}
	return nil, nil
}

func (ev *Evaluator) evalGDDThreshold(rule Rule, now time.Time) (*Event, error) {
	latest, err := ev.store.GetLatestRecord()
	if err != nil {
		return nil, err
	}
	if latest == nil || !latest.CumGDD50.Valid || latest.CumGDD50.Float64 < rule.GDD50Threshold {
		return nil, nil
	}
	cum50 := latest.CumGDD50.Float64

	msg := fmt.Sprintf(
		"WEED ALERT: %s\n\n"+
			"Cumulative GDD50: %.0f\n"+
			"Emergence Threshold: %.0f\n\n"+
			"Target Weeds:\n%s\n\n"+
			"Action: %s",
		rule.Name, cum50, rule.GDD50Threshold, rule.Weeds, rule.Action)

	return ev.finish(rule, rule.ID, msg, now)
}

func (ev *Evaluator) evalTrailingAvg(rule Rule, now time.Time) (*Event, error) {
	recent, err := ev.store.GetRecentRecords(10)
	if err != nil {
		return nil, err
	}
	if len(recent) < rule.TrailingDays {
		return nil, nil
	}

	avg := TrailingMeanTemp(recent, rule.TrailingDays)
	if avg > rule.TrailingAvgBelow {
		return nil, nil
	}

	msg := fmt.Sprintf(
		"WEED ALERT: %s\n\n"+
			"%d-Day Avg Temp: %.0fF\n"+
			"Perennials forming rosettes for winter.\n\n"+
			"Target Weeds:\n%s\n\n"+
			"Action: %s\n\n"+
			"Best uptake while actively growing. Spray within %d days.",
		rule.Name, rule.TrailingDays, avg, rule.Weeds, rule.Action, rule.SprayWindowDays)

	return ev.finish(rule, rule.ID, msg, now)
}

// finish applies the ledger gate and builds the event. A key already in
// the ledger means the rule is suppressed for that key's scope.
func (ev *Evaluator) finish(rule Rule, keyBase, msg string, now time.Time) (*Event, error) {
	key := fmt.Sprintf("%s_%d", keyBase, now.Year())
	sent, err := ev.store.IsAlertSent(key)
	if err != nil {
		return nil, err
	}
	if sent {
		return nil, nil
	}

	return &Event{
		Key:             key,
		TriggerKey:      key,
		RuleID:          rule.ID,
		Name:            rule.Name,
		Weeds:           rule.Weeds,
		Action:          rule.Action,
		SprayWindowDays: rule.SprayWindowDays,
		Date:            time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Message:         msg,
	}, nil
}

// MaxConsecutiveWarmDays returns the longest run of records, ending
// anywhere in the slice, whose mean temperature is at or above the
// threshold. A single forward scan resets the counter on any cold day and
// tracks the maximum run seen.
func MaxConsecutiveWarmDays(records []models.DailyRecord, threshold float64) int {
	consecutive := 0
	maxConsecutive := 0
	for _, rec := range records {
		if rec.TMean >= threshold {
			consecutive++
			if consecutive > maxConsecutive {
				maxConsecutive = consecutive
			}
		} else {
			consecutive = 0
		}
	}
	return maxConsecutive
}

// TrailingMeanTemp averages the mean temperature of the last n records.
func TrailingMeanTemp(records []models.DailyRecord, n int) float64 {
	if len(records) < n {
		n = len(records)
	}
	var sum float64
	for _, rec := range records[len(records)-n:] {
		sum += rec.TMean
	}
	return sum / float64(n)
}
