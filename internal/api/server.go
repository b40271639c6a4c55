// Package api exposes a small status and metrics HTTP surface over the
// stored weather history and alert state.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sauvie/weedwatch/internal/store"
)

type Server struct {
	store *store.Store
	port  string
	loc   *time.Location
}

func NewServer(st *store.Store, port string, loc *time.Location) *Server {
	return &Server{store: st, port: port, loc: loc}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/schedules", s.handleSchedules)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storeOK(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) storeOK() error {
	_, err := s.store.CountRecords()
	return err
}

type statusResponse struct {
	Date        string   `json:"date"`
	TMin        float64  `json:"tmin_f"`
	TMax        float64  `json:"tmax_f"`
	TMean       float64  `json:"tmean_f"`
	CumGDD50    *float64 `json:"cum_gdd50"`
	CumGDD32    *float64 `json:"cum_gdd32"`
	AvgTemp5Day *float64 `json:"avg_temp_5day"`
	Rain2DaySum *float64 `json:"rain_2day_sum"`
	RecordCount int      `json:"record_count"`
	AlertsSent  int      `json:"alerts_sent"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.GetLatestRecord()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if latest == nil {
		http.Error(w, "no records", http.StatusNotFound)
		return
	}

	count, err := s.store.CountRecords()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	alerts, err := s.store.GetSentAlerts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		Date:        latest.Date.Format("2006-01-02"),
		TMin:        latest.TMin,
		TMax:        latest.TMax,
		TMean:       latest.TMean,
		CumGDD50:    nullFloat(latest.CumGDD50),
		CumGDD32:    nullFloat(latest.CumGDD32),
		AvgTemp5Day: nullFloat(latest.AvgTemp5Day),
		Rain2DaySum: nullFloat(latest.Rain2DaySum),
		RecordCount: count,
		AlertsSent:  len(alerts),
	}
	writeJSON(w, resp)
}

type recordResponse struct {
	Date        string   `json:"date"`
	TMin        float64  `json:"tmin_f"`
	TMax        float64  `json:"tmax_f"`
	TMean       float64  `json:"tmean_f"`
	Precip      *float64 `json:"precip_in"`
	GDD50       float64  `json:"gdd50"`
	GDD32       float64  `json:"gdd32"`
	CumGDD50    *float64 `json:"cum_gdd50"`
	CumGDD32    *float64 `json:"cum_gdd32"`
	AvgTemp5Day *float64 `json:"avg_temp_5day"`
	Rain2DaySum *float64 `json:"rain_2day_sum"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.store.GetRecentRecords(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, recordResponse{
			Date:        rec.Date.Format("2006-01-02"),
			TMin:        rec.TMin,
			TMax:        rec.TMax,
			TMean:       rec.TMean,
			Precip:      nullFloat(rec.Precip),
			GDD50:       rec.GDD50,
			GDD32:       rec.GDD32,
			CumGDD50:    nullFloat(rec.CumGDD50),
			CumGDD32:    nullFloat(rec.CumGDD32),
			AvgTemp5Day: nullFloat(rec.AvgTemp5Day),
			Rain2DaySum: nullFloat(rec.Rain2DaySum),
		})
	}
	writeJSON(w, resp)
}

type scheduleResponse struct {
	TriggerKey     string `json:"trigger_key"`
	Name           string `json:"name"`
	SproutingDate  string `json:"sprouting_date"`
	SprayDateEarly string `json:"spray_date_early"`
	SprayDateLate  string `json:"spray_date_late"`
	AlertSent      bool   `json:"alert_sent"`
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.GetPendingSchedules()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]scheduleResponse, 0, len(schedules))
	for _, sched := range schedules {
		resp = append(resp, scheduleResponse{
			TriggerKey:     sched.TriggerKey,
			Name:           sched.Name,
			SproutingDate:  sched.SproutingDate.Format("2006-01-02"),
			SprayDateEarly: sched.SprayDateEarly.Format("2006-01-02"),
			SprayDateLate:  sched.SprayDateLate.Format("2006-01-02"),
			AlertSent:      sched.SprayAlertSent,
		})
	}
	writeJSON(w, resp)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
