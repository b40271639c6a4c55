package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sauvie/weedwatch/internal/models"
	"github.com/sauvie/weedwatch/internal/store"
)

func setupTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db, time.UTC)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewServer(st, "0", time.UTC), st
}

func seedDay(t *testing.T, st *store.Store, d time.Time) {
	t.Helper()
	rec := models.DailyRecord{Date: d, TMin: 48, TMax: 72, TMean: 60, GDD50: 10, GDD32: 28}
	if err := st.UpsertDailyRecord(rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.UpdateCumulative(d, 150, 600); err != nil {
		t.Fatalf("seed cumulative: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := setupTestServer(t)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestStatusEmpty(t *testing.T) {
	server, _ := setupTestServer(t)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 with no records", rr.Code)
	}
}

func TestStatus(t *testing.T) {
	server, st := setupTestServer(t)
	seedDay(t, st, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC))
	seedDay(t, st, time.Date(2026, 4, 16, 0, 0, 0, 0, time.UTC))

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Date != "2026-04-16" {
		t.Errorf("Date = %q, want latest 2026-04-16", resp.Date)
	}
	if resp.CumGDD50 == nil || *resp.CumGDD50 != 150 {
		t.Errorf("CumGDD50 = %v, want 150", resp.CumGDD50)
	}
	if resp.AvgTemp5Day != nil {
		t.Errorf("AvgTemp5Day = %v, want null before window pass", *resp.AvgTemp5Day)
	}
	if resp.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", resp.RecordCount)
	}
}

func TestRecordsLimit(t *testing.T) {
	server, st := setupTestServer(t)
	for d := 1; d <= 10; d++ {
		seedDay(t, st, time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC))
	}

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/records?limit=4", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp []recordResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 4 {
		t.Fatalf("len = %d, want 4", len(resp))
	}
	if resp[0].Date != "2026-04-07" {
		t.Errorf("first = %q, want 2026-04-07", resp[0].Date)
	}

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/records?limit=banana", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", rr.Code)
	}
}

func TestSchedules(t *testing.T) {
	server, st := setupTestServer(t)

	sched := models.SpraySchedule{
		TriggerKey:     "fall_pre_2026",
		Name:           "Fall Pre-Emergent Window Open",
		Weeds:          "chickweed",
		Action:         "Apply PRE-emergent.",
		SproutingDate:  time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
		SprayDateEarly: time.Date(2026, 9, 27, 0, 0, 0, 0, time.UTC),
		SprayDateLate:  time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := st.UpsertSpraySchedule(sched); err != nil {
		t.Fatalf("UpsertSpraySchedule: %v", err)
	}

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/schedules", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp []scheduleResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
	if resp[0].TriggerKey != "fall_pre_2026" || resp[0].SprayDateEarly != "2026-09-27" {
		t.Errorf("schedule = %+v", resp[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
