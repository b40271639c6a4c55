package store

import (
	"database/sql"
	"time"

	"github.com/sauvie/weedwatch/internal/models"
)

// IsAlertSent reports whether the given alert key has ever been delivered.
// Keys embed the qualifying year, so there is no expiry: suppression for a
// key is permanent and next season's firing uses a fresh key.
func (s *Store) IsAlertSent(key string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM alerts_sent WHERE alert_key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordAlert marks an alert key as delivered with the exact message text.
func (s *Store) RecordAlert(key, message string, sentAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts_sent (alert_key, sent_at, message)
		VALUES (?, ?, ?)
		ON CONFLICT(alert_key) DO UPDATE SET
			sent_at = excluded.sent_at,
			message = excluded.message
	`, key, sentAt.UTC(), message)
	return err
}

// GetSentAlerts returns the delivery ledger, most recent first.
func (s *Store) GetSentAlerts() ([]models.AlertRecord, error) {
	rows, err := s.db.Query(`SELECT alert_key, sent_at, message FROM alerts_sent ORDER BY sent_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		if err := rows.Scan(&a.Key, &a.SentAt, &a.Message); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
