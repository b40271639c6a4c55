package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS daily_weather (
    date TEXT PRIMARY KEY,
    tmin_f REAL NOT NULL,
    tmax_f REAL NOT NULL,
    tmean_f REAL NOT NULL,
    precip_in REAL,
    gdd50 REAL NOT NULL,
    gdd32 REAL NOT NULL,
    cum_gdd50 REAL,
    cum_gdd32 REAL,
    avg_temp_5day REAL,
    rain_2day_sum REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS alerts_sent (
    alert_key TEXT PRIMARY KEY,
    sent_at DATETIME NOT NULL,
    message TEXT NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "Add spray_schedule table for deferred spray-window alerts",
		SQL: `
CREATE TABLE IF NOT EXISTS spray_schedule (
    trigger_key TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    weeds TEXT NOT NULL,
    action TEXT NOT NULL,
    sprouting_date TEXT NOT NULL,
    spray_date_early TEXT NOT NULL,
    spray_date_late TEXT NOT NULL,
    spray_alert_sent BOOLEAN NOT NULL DEFAULT FALSE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`,
	},
	{
		Version:     3,
		Description: "Index pending spray schedules for the daily due scan",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_spray_pending ON spray_schedule(spray_alert_sent, spray_date_early);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
