package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sauvie/weedwatch/internal/httputil"
	"github.com/sauvie/weedwatch/internal/models"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	pastDays     = 14
	forecastDays = 16
)

// OpenMeteo fetches daily min/max temperature and precipitation in °F and
// inches for a fixed location. No API key required.
type OpenMeteo struct {
	client      *http.Client
	lat         float64
	lon         float64
	timezone    string
	forecastURL string
	archiveURL  string
}

func NewOpenMeteo(lat, lon float64, timezone string) *OpenMeteo {
	return &OpenMeteo{
		client:      httputil.NewClient(),
		lat:         lat,
		lon:         lon,
		timezone:    timezone,
		forecastURL: defaultForecastURL,
		archiveURL:  defaultArchiveURL,
	}
}

type dailyResponse struct {
	Daily struct {
		Time   []string   `json:"time"`
		TMax   []*float64 `json:"temperature_2m_max"`
		TMin   []*float64 `json:"temperature_2m_min"`
		Precip []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchRecentAndForecast returns the trailing two weeks plus the forward
// forecast in one series.
func (m *OpenMeteo) FetchRecentAndForecast() ([]models.WeatherDay, error) {
	params := m.baseParams()
	params.Set("past_days", fmt.Sprint(pastDays))
	params.Set("forecast_days", fmt.Sprint(forecastDays))

	return m.fetchDaily(m.forecastURL, params)
}

// FetchArchive returns observed history for an explicit date range from
// the archive endpoint.
func (m *OpenMeteo) FetchArchive(start, end time.Time) ([]models.WeatherDay, error) {
	params := m.baseParams()
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))

	return m.fetchDaily(m.archiveURL, params)
}

func (m *OpenMeteo) baseParams() url.Values {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.6f", m.lat))
	params.Set("longitude", fmt.Sprintf("%.6f", m.lon))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("precipitation_unit", "inch")
	params.Set("timezone", m.timezone)
	return params
}

func (m *OpenMeteo) fetchDaily(baseURL string, params url.Values) ([]models.WeatherDay, error) {
	fullURL := baseURL + "?" + params.Encode()

	var body []byte
	operation := func() error {
		resp, err := m.client.Get(fullURL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch daily weather: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch daily weather: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var data dailyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return parseDaily(data)
}

// parseDaily zips the parallel arrays into WeatherDay rows. Rows with an
// unparseable date are dropped; short value arrays leave fields nil.
func parseDaily(data dailyResponse) ([]models.WeatherDay, error) {
	var days []models.WeatherDay
	for i, dateStr := range data.Daily.Time {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		day := models.WeatherDay{Date: date}
		if i < len(data.Daily.TMin) {
			day.TMin = data.Daily.TMin[i]
		}
		if i < len(data.Daily.TMax) {
			day.TMax = data.Daily.TMax[i]
		}
		if i < len(data.Daily.Precip) {
			day.Precip = data.Daily.Precip[i]
		}
		days = append(days, day)
	}
	return days, nil
}
