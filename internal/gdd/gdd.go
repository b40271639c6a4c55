// Package gdd derives Growing Degree Day accumulation and rolling-window
// aggregates from stored daily weather records.
package gdd

import (
	"fmt"
	"log"

	"github.com/sauvie/weedwatch/internal/models"
	"github.com/sauvie/weedwatch/internal/store"
)

// Base temperatures in °F. GDD50 tracks warm-season annuals (crabgrass,
// foxtail); GDD32 tracks general plant activity.
const (
	Base50 = 50.0
	Base32 = 32.0
)

// DailyUnits computes the mean temperature and the daily degree-day units
// for both base temperatures. A daily unit is never negative.
func DailyUnits(tmin, tmax float64) (tmean, gdd50, gdd32 float64) {
	tmean = (tmin + tmax) / 2.0
	gdd50 = max(0, tmean-Base50)
	gdd32 = max(0, tmean-Base32)
	return tmean, gdd50, gdd32
}

type Engine struct {
	store *store.Store
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st}
}

// Ingest upserts daily weather rows and recomputes every derived field.
// Rows missing either temperature are skipped silently; re-ingesting a date
// overwrites its raw values. Returns the number of rows stored.
func (e *Engine) Ingest(days []models.WeatherDay) (int, error) {
	stored := 0
	for _, day := range days {
		if day.TMin == nil || day.TMax == nil {
			continue
		}

		tmean, gdd50, gdd32 := DailyUnits(*day.TMin, *day.TMax)
		rec := models.DailyRecord{
			Date:  day.Date,
			TMin:  *day.TMin,
			TMax:  *day.TMax,
			TMean: tmean,
			GDD50: gdd50,
			GDD32: gdd32,
		}
		if day.Precip != nil {
			rec.Precip.Float64 = *day.Precip
			rec.Precip.Valid = true
		}

		if err := e.store.UpsertDailyRecord(rec); err != nil {
			return stored, fmt.Errorf("upsert %s: %w", day.Date.Format("2006-01-02"), err)
		}
		stored++
	}

	if stored == 0 {
		return 0, nil
	}
	log.Printf("gdd: stored %d days of weather data", stored)

	if err := e.RecomputeCumulative(); err != nil {
		return stored, fmt.Errorf("recompute cumulative: %w", err)
	}
	if err := e.RecomputeWindows(); err != nil {
		return stored, fmt.Errorf("recompute windows: %w", err)
	}
	return stored, nil
}

// RecomputeCumulative rewrites the cumulative GDD sums for every year in
// the history. Each year restarts from zero at Jan 1; a full in-order
// rescan is fine for a series of at most a few hundred rows.
func (e *Engine) RecomputeCumulative() error {
	years, err := e.store.GetYears()
	if err != nil {
		return err
	}

	for _, year := range years {
		records, err := e.store.GetYearRecords(year)
		if err != nil {
			return err
		}

		var cum50, cum32 float64
		for _, rec := range records {
			cum50 += rec.GDD50
			cum32 += rec.GDD32
			if err := e.store.UpdateCumulative(rec.Date, cum50, cum32); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecomputeWindows rewrites the trailing 5-day mean temperature and
// trailing 2-day precipitation sum across the whole ordered history.
// Windows span record positions, not calendar days, and clip naturally at
// the series start; a NULL precipitation counts as zero.
func (e *Engine) RecomputeWindows() error {
	records, err := e.store.GetAllRecords()
	if err != nil {
		return err
	}

	for i, rec := range records {
		var tempSum float64
		lo := max(0, i-4)
		for _, w := range records[lo : i+1] {
			tempSum += w.TMean
		}
		avg5 := tempSum / float64(i+1-lo)

		var rain2 float64
		for _, w := range records[max(0, i-1) : i+1] {
			if w.Precip.Valid {
				rain2 += w.Precip.Float64
			}
		}

		if err := e.store.UpdateWindows(rec.Date, avg5, rain2); err != nil {
			return err
		}
	}
	return nil
}
