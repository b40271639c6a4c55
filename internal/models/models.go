package models

import (
	"database/sql"
	"time"
)

// WeatherDay is one daily row as returned by the weather provider.
// Nil fields were absent from the response.
type WeatherDay struct {
	Date   time.Time
	TMin   *float64
	TMax   *float64
	Precip *float64
}

// DailyRecord is one stored calendar day with raw temperatures and the
// derived degree-day and rolling-window fields. Rows only exist for days
// where both tmin and tmax were reported, so the temperature fields are
// always populated; precipitation and the recomputed derived fields may
// be NULL.
type DailyRecord struct {
	Date        time.Time
	TMin        float64
	TMax        float64
	TMean       float64
	Precip      sql.NullFloat64
	GDD50       float64
	GDD32       float64
	CumGDD50    sql.NullFloat64
	CumGDD32    sql.NullFloat64
	AvgTemp5Day sql.NullFloat64
	Rain2DaySum sql.NullFloat64
	CreatedAt   time.Time
}

// AlertRecord marks an alert key as delivered. Keys embed the year (or
// year+tier), so entries never expire; next season fires under a new key.
type AlertRecord struct {
	Key     string
	SentAt  time.Time
	Message string
}

// SpraySchedule is the deferred follow-up window estimated when a
// sprouting trigger fires. The rule name, weed list and action text are
// denormalized so the follow-up message renders without re-deriving them.
type SpraySchedule struct {
	TriggerKey     string
	Name           string
	Weeds          string
	Action         string
	SproutingDate  time.Time
	SprayDateEarly time.Time
	SprayDateLate  time.Time
	SprayAlertSent bool
	CreatedAt      time.Time
}
