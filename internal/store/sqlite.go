package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sauvie/weedwatch/internal/models"
)

const dateFormat = "2006-01-02"

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

// UpsertDailyRecord inserts or replaces the raw and degree-day fields for one
// date. The cumulative and rolling-window columns are left NULL; they are
// rewritten by the recomputation passes that follow every ingestion.
func (s *Store) UpsertDailyRecord(rec models.DailyRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_weather (date, tmin_f, tmax_f, tmean_f, precip_in, gdd50, gdd32)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			tmin_f = excluded.tmin_f,
			tmax_f = excluded.tmax_f,
			tmean_f = excluded.tmean_f,
			precip_in = excluded.precip_in,
			gdd50 = excluded.gdd50,
			gdd32 = excluded.gdd32
	`, rec.Date.Format(dateFormat), rec.TMin, rec.TMax, rec.TMean, rec.Precip, rec.GDD50, rec.GDD32)
	return err
}

const dailyColumns = `date, tmin_f, tmax_f, tmean_f, precip_in, gdd50, gdd32, cum_gdd50, cum_gdd32, avg_temp_5day, rain_2day_sum, created_at`

func scanDailyRecord(row interface{ Scan(...any) error }) (models.DailyRecord, error) {
	var rec models.DailyRecord
	var dateStr string
	if err := row.Scan(&dateStr, &rec.TMin, &rec.TMax, &rec.TMean, &rec.Precip,
		&rec.GDD50, &rec.GDD32, &rec.CumGDD50, &rec.CumGDD32,
		&rec.AvgTemp5Day, &rec.Rain2DaySum, &rec.CreatedAt); err != nil {
		return rec, err
	}
	date, err := time.Parse(dateFormat, dateStr)
	if err != nil {
		return rec, fmt.Errorf("parse record date %q: %w", dateStr, err)
	}
	rec.Date = date
	return rec, nil
}

func (s *Store) collectDailyRecords(rows *sql.Rows) ([]models.DailyRecord, error) {
	defer rows.Close()

	var records []models.DailyRecord
	for rows.Next() {
		rec, err := scanDailyRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) GetDailyRecord(date time.Time) (*models.DailyRecord, error) {
	row := s.db.QueryRow(`SELECT `+dailyColumns+` FROM daily_weather WHERE date = ?`,
		date.Format(dateFormat))

	rec, err := scanDailyRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) GetLatestRecord() (*models.DailyRecord, error) {
	row := s.db.QueryRow(`SELECT ` + dailyColumns + ` FROM daily_weather ORDER BY date DESC LIMIT 1`)

	rec, err := scanDailyRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecentRecords returns the most recent n records in ascending date order.
func (s *Store) GetRecentRecords(n int) ([]models.DailyRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+dailyColumns+` FROM (
			SELECT `+dailyColumns+` FROM daily_weather ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC
	`, n)
	if err != nil {
		return nil, err
	}
	return s.collectDailyRecords(rows)
}

// GetAllRecords returns the full history in ascending date order.
func (s *Store) GetAllRecords() ([]models.DailyRecord, error) {
	rows, err := s.db.Query(`SELECT ` + dailyColumns + ` FROM daily_weather ORDER BY date ASC`)
	if err != nil {
		return nil, err
	}
	return s.collectDailyRecords(rows)
}

// GetRecordsFrom returns up to limit records on or after the given date,
// ascending. Used for the forward-looking spray window estimate.
func (s *Store) GetRecordsFrom(date time.Time, limit int) ([]models.DailyRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+dailyColumns+` FROM daily_weather WHERE date >= ? ORDER BY date ASC LIMIT ?
	`, date.Format(dateFormat), limit)
	if err != nil {
		return nil, err
	}
	return s.collectDailyRecords(rows)
}

// GetYears returns the distinct calendar years present in the history.
func (s *Store) GetYears() ([]int, error) {
	rows, err := s.db.Query(`SELECT DISTINCT CAST(SUBSTR(date, 1, 4) AS INTEGER) AS year FROM daily_weather ORDER BY year ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	return years, rows.Err()
}

// GetYearRecords returns all records for one calendar year in date order.
func (s *Store) GetYearRecords(year int) ([]models.DailyRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+dailyColumns+` FROM daily_weather WHERE date >= ? AND date <= ? ORDER BY date ASC
	`, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, err
	}
	return s.collectDailyRecords(rows)
}

func (s *Store) UpdateCumulative(date time.Time, cum50, cum32 float64) error {
	_, err := s.db.Exec(`UPDATE daily_weather SET cum_gdd50 = ?, cum_gdd32 = ? WHERE date = ?`,
		cum50, cum32, date.Format(dateFormat))
	return err
}

func (s *Store) UpdateWindows(date time.Time, avgTemp5Day, rain2DaySum float64) error {
	_, err := s.db.Exec(`UPDATE daily_weather SET avg_temp_5day = ?, rain_2day_sum = ? WHERE date = ?`,
		avgTemp5Day, rain2DaySum, date.Format(dateFormat))
	return err
}

func (s *Store) CountRecords() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_weather`).Scan(&count)
	return count, err
}
