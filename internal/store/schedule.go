package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sauvie/weedwatch/internal/models"
)

// UpsertSpraySchedule inserts or replaces the spray window for a trigger key.
// Re-scheduling overwrites the prior estimate: later runs have better
// forward-looking data. The sent flag resets with the new estimate.
func (s *Store) UpsertSpraySchedule(sched models.SpraySchedule) error {
	_, err := s.db.Exec(`
		INSERT INTO spray_schedule (trigger_key, name, weeds, action, sprouting_date, spray_date_early, spray_date_late, spray_alert_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trigger_key) DO UPDATE SET
			name = excluded.name,
			weeds = excluded.weeds,
			action = excluded.action,
			sprouting_date = excluded.sprouting_date,
			spray_date_early = excluded.spray_date_early,
			spray_date_late = excluded.spray_date_late,
			spray_alert_sent = excluded.spray_alert_sent
	`, sched.TriggerKey, sched.Name, sched.Weeds, sched.Action,
		sched.SproutingDate.Format(dateFormat),
		sched.SprayDateEarly.Format(dateFormat),
		sched.SprayDateLate.Format(dateFormat),
		sched.SprayAlertSent)
	return err
}

const scheduleColumns = `trigger_key, name, weeds, action, sprouting_date, spray_date_early, spray_date_late, spray_alert_sent, created_at`

func scanSpraySchedule(row interface{ Scan(...any) error }) (models.SpraySchedule, error) {
	var sched models.SpraySchedule
	var sprouting, early, late string
	if err := row.Scan(&sched.TriggerKey, &sched.Name, &sched.Weeds, &sched.Action,
		&sprouting, &early, &late, &sched.SprayAlertSent, &sched.CreatedAt); err != nil {
		return sched, err
	}

	var err error
	if sched.SproutingDate, err = time.Parse(dateFormat, sprouting); err != nil {
		return sched, fmt.Errorf("parse sprouting_date %q: %w", sprouting, err)
	}
	if sched.SprayDateEarly, err = time.Parse(dateFormat, early); err != nil {
		return sched, fmt.Errorf("parse spray_date_early %q: %w", early, err)
	}
	if sched.SprayDateLate, err = time.Parse(dateFormat, late); err != nil {
		return sched, fmt.Errorf("parse spray_date_late %q: %w", late, err)
	}
	return sched, nil
}

func (s *Store) GetSpraySchedule(triggerKey string) (*models.SpraySchedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM spray_schedule WHERE trigger_key = ?`, triggerKey)

	sched, err := scanSpraySchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// GetDueSchedules returns unsent schedules whose early date has arrived.
func (s *Store) GetDueSchedules(today time.Time) ([]models.SpraySchedule, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduleColumns+` FROM spray_schedule
		WHERE spray_alert_sent = FALSE AND spray_date_early <= ?
		ORDER BY spray_date_early ASC
	`, today.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []models.SpraySchedule
	for rows.Next() {
		sched, err := scanSpraySchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// GetPendingSchedules returns all schedules that have not yet produced a
// spray-window alert, due or not.
func (s *Store) GetPendingSchedules() ([]models.SpraySchedule, error) {
	rows, err := s.db.Query(`
		SELECT ` + scheduleColumns + ` FROM spray_schedule
		WHERE spray_alert_sent = FALSE
		ORDER BY spray_date_early ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []models.SpraySchedule
	for rows.Next() {
		sched, err := scanSpraySchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// MarkSprayAlertSent flips the one-way sent flag for a schedule.
func (s *Store) MarkSprayAlertSent(triggerKey string) error {
	_, err := s.db.Exec(`UPDATE spray_schedule SET spray_alert_sent = TRUE WHERE trigger_key = ?`, triggerKey)
	return err
}
