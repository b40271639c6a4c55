// Package spray estimates and resolves deferred spray-window follow-ups
// for sprouting triggers.
package spray

import (
	"fmt"
	"log"
	"time"

	"github.com/sauvie/weedwatch/internal/models"
	"github.com/sauvie/weedwatch/internal/store"
	"github.com/sauvie/weedwatch/internal/trigger"
)

// Urgency classifies how much of the spray window remains when the
// follow-up fires.
type Urgency string

const (
	UrgencyReady   Urgency = "READY"
	UrgencyUrgent  Urgency = "URGENT"
	UrgencyOverdue Urgency = "OVERDUE"
)

// urgentDaysLeft is the remaining-window cutoff for URGENT.
const urgentDaysLeft = 3

// forwardWindowDays bounds how far past the sprouting date the forward
// temperature estimate looks.
const forwardWindowDays = 7

// DueEvent is one spray-window alert whose early date has arrived.
type DueEvent struct {
	Key      string
	Schedule models.SpraySchedule
	Urgency  Urgency
	Message  string
}

type Scheduler struct {
	store *store.Store
}

func NewScheduler(st *store.Store) *Scheduler {
	return &Scheduler{store: st}
}

// Schedule estimates the treatment window for a sprouting event and
// persists it keyed by the event's trigger key. Warmer forward weather
// accelerates weed growth and shrinks the window. Re-scheduling the same
// key overwrites the prior estimate; later runs have better forecast data.
func (s *Scheduler) Schedule(ev trigger.Event) (early, late time.Time, err error) {
	avgTemp, err := s.forwardAvgTemp(ev.Date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("forward temp for %s: %w", ev.TriggerKey, err)
	}

	earlyOffset, lateOffset := WindowOffsets(avgTemp, ev.SprayWindowDays)
	early = ev.Date.AddDate(0, 0, earlyOffset)
	late = ev.Date.AddDate(0, 0, lateOffset)

	sched := models.SpraySchedule{
		TriggerKey:     ev.TriggerKey,
		Name:           ev.Name,
		Weeds:          ev.Weeds,
		Action:         ev.Action,
		SproutingDate:  ev.Date,
		SprayDateEarly: early,
		SprayDateLate:  late,
		SprayAlertSent: false,
	}
	if err := s.store.UpsertSpraySchedule(sched); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("persist schedule %s: %w", ev.TriggerKey, err)
	}

	log.Printf("spray: scheduled %s window %s to %s (avg temp %.0fF)",
		ev.TriggerKey, early.Format("2006-01-02"), late.Format("2006-01-02"), avgTemp)
	return early, late, nil
}

// WindowOffsets maps a mean temperature to (early, late) day offsets from
// the sprouting date.
func WindowOffsets(avgTemp float64, nominalWindowDays int) (int, int) {
	switch {
	case avgTemp >= 55:
		return 7, 12
	case avgTemp >= 45:
		return 10, 16
	default:
		return 14, min(21, nominalWindowDays)
	}
}

// forwardAvgTemp averages the mean temperature of records on or after the
// sprouting date. Forecast days ingested ahead of time usually cover this;
// with no forward data it falls back to the most recent 7 observed days.
func (s *Scheduler) forwardAvgTemp(sproutingDate time.Time) (float64, error) {
	records, err := s.store.GetRecordsFrom(sproutingDate, forwardWindowDays)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		records, err = s.store.GetRecentRecords(7)
		if err != nil {
			return 0, err
		}
		if len(records) == 0 {
			return 0, fmt.Errorf("no temperature records on or before %s", sproutingDate.Format("2006-01-02"))
		}
	}

	var sum float64
	for _, rec := range records {
		sum += rec.TMean
	}
	return sum / float64(len(records)), nil
}

// CheckDue scans unsent schedules whose early date has arrived, skips any
// already in the alert ledger, classifies urgency, flips the one-way
// spray_alert_sent flag, and returns the follow-up events. The flag flip
// makes this a state transition: a schedule produces exactly one event.
func (s *Scheduler) CheckDue(today time.Time) ([]DueEvent, error) {
	schedules, err := s.store.GetDueSchedules(today)
	if err != nil {
		return nil, err
	}

	var events []DueEvent
	for _, sched := range schedules {
		key := "spray_" + sched.TriggerKey

		sent, err := s.store.IsAlertSent(key)
		if err != nil {
			return events, err
		}
		if sent {
			continue
		}

		urgency := classifyUrgency(today, sched.SprayDateLate)
		msg := renderDueMessage(sched, urgency, today)

		if err := s.store.MarkSprayAlertSent(sched.TriggerKey); err != nil {
			return events, fmt.Errorf("mark sent %s: %w", sched.TriggerKey, err)
		}

		events = append(events, DueEvent{
			Key:      key,
			Schedule: sched,
			Urgency:  urgency,
			Message:  msg,
		})
	}
	return events, nil
}

func classifyUrgency(today, late time.Time) Urgency {
	if today.After(late) {
		return UrgencyOverdue
	}
	daysLeft := int(late.Sub(today).Hours() / 24)
	if daysLeft <= urgentDaysLeft {
		return UrgencyUrgent
	}
	return UrgencyReady
}

func renderDueMessage(sched models.SpraySchedule, urgency Urgency, today time.Time) string {
	var lead string
	switch urgency {
	case UrgencyOverdue:
		lead = fmt.Sprintf("Spray window closed %s. Treat as soon as conditions allow.",
			sched.SprayDateLate.Format("Jan 2"))
	case UrgencyUrgent:
		lead = fmt.Sprintf("Window closes %s. Spray in the next few days.",
			sched.SprayDateLate.Format("Jan 2"))
	default:
		lead = fmt.Sprintf("Window open %s through %s.",
			sched.SprayDateEarly.Format("Jan 2"), sched.SprayDateLate.Format("Jan 2"))
	}

	return fmt.Sprintf(
		"SPRAY WINDOW [%s]: %s\n\n"+
			"Sprouting detected %s.\n%s\n\n"+
			"Target Weeds:\n%s\n\n"+
			"Action: %s",
		urgency, sched.Name,
		sched.SproutingDate.Format("Jan 2"), lead,
		sched.Weeds, sched.Action)
}
