// Package ingest fetches daily weather from Open-Meteo and drives the
// degree-day pipeline, trigger evaluation and alert dispatch.
package ingest

import (
	"context"
	"log"
	"time"

	"github.com/sauvie/weedwatch/internal/gdd"
	"github.com/sauvie/weedwatch/internal/metrics"
	"github.com/sauvie/weedwatch/internal/notify"
	"github.com/sauvie/weedwatch/internal/spray"
	"github.com/sauvie/weedwatch/internal/store"
	"github.com/sauvie/weedwatch/internal/trigger"
)

// backfillThreshold is the minimum row count below which a run pulls
// archive history for the current year first. Trigger lookbacks and
// cumulative sums need a reasonably complete season.
const backfillThreshold = 30

// archiveLagDays keeps archive requests clear of the provider's
// several-day publication delay.
const archiveLagDays = 6

const defaultInterval = 6 * time.Hour

// Runner executes the daily scan: fetch, ingest, evaluate triggers,
// dispatch sprouting alerts, then resolve due spray windows.
type Runner struct {
	store    *store.Store
	meteo    *OpenMeteo
	engine   *gdd.Engine
	triggers *trigger.Evaluator
	spray    *spray.Scheduler
	notifier notify.Notifier
	loc      *time.Location
	interval time.Duration
}

func NewRunner(st *store.Store, meteo *OpenMeteo, notifier notify.Notifier, loc *time.Location) *Runner {
	return &Runner{
		store:    st,
		meteo:    meteo,
		engine:   gdd.NewEngine(st),
		triggers: trigger.NewEvaluator(st),
		spray:    spray.NewScheduler(st),
		notifier: notifier,
		loc:      loc,
		interval: defaultInterval,
	}
}

// SetInterval overrides the polling interval for loop mode.
func (r *Runner) SetInterval(d time.Duration) {
	r.interval = d
}

// RunOnce performs a single complete scan. A fetch failure aborts the
// run with no partial ingestion; a dispatch failure is local to its
// alert, which stays out of the ledger and retries naturally next run.
func (r *Runner) RunOnce() error {
	start := time.Now()
	days, err := r.meteo.FetchRecentAndForecast()
	metrics.WeatherFetchLatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WeatherFetchesTotal.WithLabelValues("forecast", "error").Inc()
		return err
	}
	metrics.WeatherFetchesTotal.WithLabelValues("forecast", "ok").Inc()

	stored, err := r.engine.Ingest(days)
	if err != nil {
		return err
	}
	metrics.RecordsIngested.Add(float64(stored))

	if err := r.backfillIfSparse(); err != nil {
		log.Printf("runner: backfill: %v", err)
	}

	now := time.Now().In(r.loc)

	events, err := r.triggers.EvaluateAll(now)
	if err != nil {
		return err
	}
	for _, ev := range events {
		metrics.TriggersFired.WithLabelValues(ev.RuleID).Inc()

		if _, _, err := r.spray.Schedule(ev); err != nil {
			log.Printf("runner: schedule spray window %s: %v", ev.TriggerKey, err)
		}

		if err := r.notifier.Send(ev.Message); err != nil {
			metrics.AlertsSent.WithLabelValues("trigger", "error").Inc()
			log.Printf("runner: send alert %s: %v", ev.Key, err)
			continue
		}
		metrics.AlertsSent.WithLabelValues("trigger", "ok").Inc()

		if err := r.store.RecordAlert(ev.Key, ev.Message, now); err != nil {
			return err
		}
		log.Printf("runner: alert sent: %s", ev.Key)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due, err := r.spray.CheckDue(today)
	if err != nil {
		return err
	}
	for _, d := range due {
		if err := r.notifier.Send(d.Message); err != nil {
			metrics.AlertsSent.WithLabelValues("spray", "error").Inc()
			log.Printf("runner: send spray alert %s: %v", d.Key, err)
			continue
		}
		metrics.AlertsSent.WithLabelValues("spray", "ok").Inc()

		if err := r.store.RecordAlert(d.Key, d.Message, now); err != nil {
			return err
		}
		log.Printf("runner: spray alert sent: %s [%s]", d.Key, d.Urgency)
	}

	return nil
}

// backfillIfSparse pulls archive history for the current year when the
// store holds too few rows to evaluate triggers meaningfully. Happens
// once on a fresh database; subsequent runs skip it.
func (r *Runner) backfillIfSparse() error {
	count, err := r.store.CountRecords()
	if err != nil {
		return err
	}
	if count >= backfillThreshold {
		return nil
	}

	now := time.Now().In(r.loc)
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 0, -archiveLagDays)
	if !end.After(start) {
		return nil
	}

	log.Printf("runner: only %d records stored, backfilling from %s", count, start.Format("2006-01-02"))
	return r.Backfill(start, end)
}

// Backfill fetches observed history for a date range from the archive
// endpoint and runs it through the ingestion pipeline.
func (r *Runner) Backfill(start, end time.Time) error {
	fetchStart := time.Now()
	days, err := r.meteo.FetchArchive(start, end)
	metrics.WeatherFetchLatency.WithLabelValues("archive").Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		metrics.WeatherFetchesTotal.WithLabelValues("archive", "error").Inc()
		return err
	}
	metrics.WeatherFetchesTotal.WithLabelValues("archive", "ok").Inc()

	stored, err := r.engine.Ingest(days)
	if err != nil {
		return err
	}
	metrics.RecordsIngested.Add(float64(stored))
	log.Printf("runner: backfilled %d days", stored)
	return nil
}

// Run executes an immediate scan, then repeats on the polling interval
// until the context is cancelled. Scan errors are logged, not fatal;
// the next tick retries.
func (r *Runner) Run(ctx context.Context) {
	if err := r.RunOnce(); err != nil {
		log.Printf("runner: scan: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("runner: shutting down")
			return
		case <-ticker.C:
			if err := r.RunOnce(); err != nil {
				log.Printf("runner: scan: %v", err)
			}
		}
	}
}
