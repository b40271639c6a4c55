package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sauvie/weedwatch/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	store := New(db, loc)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUpsertAndGetDailyRecord(t *testing.T) {
	store := setupTestStore(t)

	rec := models.DailyRecord{
		Date:   date(2026, 4, 15),
		TMin:   42.0,
		TMax:   68.0,
		TMean:  55.0,
		Precip: sql.NullFloat64{Float64: 0.12, Valid: true},
		GDD50:  5.0,
		GDD32:  23.0,
	}
	if err := store.UpsertDailyRecord(rec); err != nil {
		t.Fatalf("UpsertDailyRecord: %v", err)
	}

	got, err := store.GetDailyRecord(date(2026, 4, 15))
	if err != nil {
		t.Fatalf("GetDailyRecord: %v", err)
	}
	if got == nil {
		t.Fatal("GetDailyRecord returned nil")
	}
	if got.TMin != 42.0 || got.TMax != 68.0 {
		t.Errorf("temps = %.1f/%.1f, want 42.0/68.0", got.TMin, got.TMax)
	}
	if !got.Precip.Valid || got.Precip.Float64 != 0.12 {
		t.Errorf("Precip = %+v, want 0.12", got.Precip)
	}
	if got.CumGDD50.Valid {
		t.Errorf("CumGDD50 should be NULL before recomputation, got %+v", got.CumGDD50)
	}
}

func TestUpsertDailyRecordOverwrites(t *testing.T) {
	store := setupTestStore(t)

	first := models.DailyRecord{Date: date(2026, 4, 15), TMin: 40, TMax: 60, TMean: 50, GDD50: 0, GDD32: 18}
	if err := store.UpsertDailyRecord(first); err != nil {
		t.Fatalf("UpsertDailyRecord: %v", err)
	}
	if err := store.UpdateCumulative(first.Date, 100, 400); err != nil {
		t.Fatalf("UpdateCumulative: %v", err)
	}

	// Re-ingesting the same date replaces raw values but leaves the
	// cumulative columns for the recompute pass.
	second := models.DailyRecord{Date: date(2026, 4, 15), TMin: 44, TMax: 66, TMean: 55, GDD50: 5, GDD32: 23}
	if err := store.UpsertDailyRecord(second); err != nil {
		t.Fatalf("UpsertDailyRecord overwrite: %v", err)
	}

	got, err := store.GetDailyRecord(date(2026, 4, 15))
	if err != nil {
		t.Fatalf("GetDailyRecord: %v", err)
	}
	if got.TMean != 55 || got.GDD50 != 5 {
		t.Errorf("overwrite failed: TMean=%.1f GDD50=%.1f", got.TMean, got.GDD50)
	}
	if !got.CumGDD50.Valid || got.CumGDD50.Float64 != 100 {
		t.Errorf("CumGDD50 = %+v, want preserved 100", got.CumGDD50)
	}

	count, err := store.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 1 {
		t.Errorf("CountRecords = %d, want 1", count)
	}
}

func TestGetRecentRecordsAscending(t *testing.T) {
	store := setupTestStore(t)

	for d := 1; d <= 10; d++ {
		rec := models.DailyRecord{Date: date(2026, 4, d), TMin: 40, TMax: 60, TMean: 50, GDD32: 18}
		if err := store.UpsertDailyRecord(rec); err != nil {
			t.Fatalf("UpsertDailyRecord day %d: %v", d, err)
		}
	}

	recent, err := store.GetRecentRecords(5)
	if err != nil {
		t.Fatalf("GetRecentRecords: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("len = %d, want 5", len(recent))
	}
	if !recent[0].Date.Equal(date(2026, 4, 6)) {
		t.Errorf("first = %s, want 2026-04-06", recent[0].Date.Format("2006-01-02"))
	}
	if !recent[4].Date.Equal(date(2026, 4, 10)) {
		t.Errorf("last = %s, want 2026-04-10", recent[4].Date.Format("2006-01-02"))
	}
}

func TestGetYearsAndYearRecords(t *testing.T) {
	store := setupTestStore(t)

	dates := []time.Time{date(2025, 12, 30), date(2025, 12, 31), date(2026, 1, 1), date(2026, 1, 2)}
	for _, d := range dates {
		rec := models.DailyRecord{Date: d, TMin: 30, TMax: 40, TMean: 35, GDD32: 3}
		if err := store.UpsertDailyRecord(rec); err != nil {
			t.Fatalf("UpsertDailyRecord %s: %v", d.Format("2006-01-02"), err)
		}
	}

	years, err := store.GetYears()
	if err != nil {
		t.Fatalf("GetYears: %v", err)
	}
	if len(years) != 2 || years[0] != 2025 || years[1] != 2026 {
		t.Fatalf("GetYears = %v, want [2025 2026]", years)
	}

	recs, err := store.GetYearRecords(2026)
	if err != nil {
		t.Fatalf("GetYearRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(2026 records) = %d, want 2", len(recs))
	}
	if !recs[0].Date.Equal(date(2026, 1, 1)) {
		t.Errorf("first 2026 record = %s, want 2026-01-01", recs[0].Date.Format("2006-01-02"))
	}
}

func TestGetRecordsFrom(t *testing.T) {
	store := setupTestStore(t)

	for d := 1; d <= 10; d++ {
		rec := models.DailyRecord{Date: date(2026, 5, d), TMin: 50, TMax: 70, TMean: 60, GDD50: 10, GDD32: 28}
		if err := store.UpsertDailyRecord(rec); err != nil {
			t.Fatalf("UpsertDailyRecord: %v", err)
		}
	}

	recs, err := store.GetRecordsFrom(date(2026, 5, 7), 7)
	if err != nil {
		t.Fatalf("GetRecordsFrom: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("len = %d, want 4", len(recs))
	}
	if !recs[0].Date.Equal(date(2026, 5, 7)) {
		t.Errorf("first = %s, want 2026-05-07", recs[0].Date.Format("2006-01-02"))
	}
}

func TestAlertLedger(t *testing.T) {
	store := setupTestStore(t)

	sent, err := store.IsAlertSent("spring_pre_applyby_2026")
	if err != nil {
		t.Fatalf("IsAlertSent: %v", err)
	}
	if sent {
		t.Error("fresh key reported sent")
	}

	if err := store.RecordAlert("spring_pre_applyby_2026", "apply now", time.Now()); err != nil {
		t.Fatalf("RecordAlert: %v", err)
	}

	sent, err = store.IsAlertSent("spring_pre_applyby_2026")
	if err != nil {
		t.Fatalf("IsAlertSent: %v", err)
	}
	if !sent {
		t.Error("recorded key not reported sent")
	}

	// Same rule, next year: fresh key, unsuppressed.
	sent, err = store.IsAlertSent("spring_pre_applyby_2027")
	if err != nil {
		t.Fatalf("IsAlertSent: %v", err)
	}
	if sent {
		t.Error("next-year key suppressed by prior year")
	}

	alerts, err := store.GetSentAlerts()
	if err != nil {
		t.Fatalf("GetSentAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Key != "spring_pre_applyby_2026" {
		t.Errorf("ledger = %+v, want one entry", alerts)
	}
}

func TestSprayScheduleLifecycle(t *testing.T) {
	store := setupTestStore(t)

	sched := models.SpraySchedule{
		TriggerKey:     "fall_pre_2026",
		Name:           "Fall Pre-Emergent Window Open",
		Weeds:          "chickweed, henbit",
		Action:         "Apply PRE-emergent on clean soil.",
		SproutingDate:  date(2026, 9, 20),
		SprayDateEarly: date(2026, 9, 27),
		SprayDateLate:  date(2026, 10, 2),
	}
	if err := store.UpsertSpraySchedule(sched); err != nil {
		t.Fatalf("UpsertSpraySchedule: %v", err)
	}

	// Not due yet.
	due, err := store.GetDueSchedules(date(2026, 9, 26))
	if err != nil {
		t.Fatalf("GetDueSchedules: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("due before early date = %d, want 0", len(due))
	}

	// Due on the early date.
	due, err = store.GetDueSchedules(date(2026, 9, 27))
	if err != nil {
		t.Fatalf("GetDueSchedules: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due on early date = %d, want 1", len(due))
	}
	if due[0].TriggerKey != "fall_pre_2026" {
		t.Errorf("TriggerKey = %q", due[0].TriggerKey)
	}

	if err := store.MarkSprayAlertSent("fall_pre_2026"); err != nil {
		t.Fatalf("MarkSprayAlertSent: %v", err)
	}

	due, err = store.GetDueSchedules(date(2026, 10, 1))
	if err != nil {
		t.Fatalf("GetDueSchedules: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("due after sent = %d, want 0", len(due))
	}

	got, err := store.GetSpraySchedule("fall_pre_2026")
	if err != nil {
		t.Fatalf("GetSpraySchedule: %v", err)
	}
	if got == nil || !got.SprayAlertSent {
		t.Errorf("schedule = %+v, want sent flag set", got)
	}
}

func TestUpsertSprayScheduleResetsFlag(t *testing.T) {
	store := setupTestStore(t)

	sched := models.SpraySchedule{
		TriggerKey:     "perennial_spring_2026",
		Name:           "Perennial Spring Rosette Window",
		Weeds:          "dandelion",
		Action:         "Spray rosettes.",
		SproutingDate:  date(2026, 4, 10),
		SprayDateEarly: date(2026, 4, 20),
		SprayDateLate:  date(2026, 4, 26),
	}
	if err := store.UpsertSpraySchedule(sched); err != nil {
		t.Fatalf("UpsertSpraySchedule: %v", err)
	}
	if err := store.MarkSprayAlertSent(sched.TriggerKey); err != nil {
		t.Fatalf("MarkSprayAlertSent: %v", err)
	}

	// Re-scheduling replaces the window and clears the sent flag.
	sched.SprayDateEarly = date(2026, 4, 17)
	sched.SprayDateLate = date(2026, 4, 22)
	if err := store.UpsertSpraySchedule(sched); err != nil {
		t.Fatalf("UpsertSpraySchedule reschedule: %v", err)
	}

	got, err := store.GetSpraySchedule(sched.TriggerKey)
	if err != nil {
		t.Fatalf("GetSpraySchedule: %v", err)
	}
	if got.SprayAlertSent {
		t.Error("sent flag survived reschedule")
	}
	if !got.SprayDateEarly.Equal(date(2026, 4, 17)) {
		t.Errorf("SprayDateEarly = %s, want 2026-04-17", got.SprayDateEarly.Format("2006-01-02"))
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", version, len(migrations))
	}
}
