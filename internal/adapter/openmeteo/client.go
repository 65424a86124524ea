package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// Default endpoints for the two Open-Meteo products. The forecast API also
// serves the recent past; the archive API serves reanalysis history.
const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
)

const (
	dateFormat       = "2006-01-02"
	hourlyTimeFormat = "2006-01-02T15:04"
)

// Zone carries the representative coordinates a weather pull addresses.
type Zone struct {
	Code string
	Lat  float64
	Lon  float64
}

// Client pulls hourly weather series from the Open-Meteo APIs. Open-Meteo
// requires no authentication.
type Client struct {
	httpClient  *http.Client
	forecastURL string
	archiveURL  string
	logger      *slog.Logger
}

// NewClient creates an Open-Meteo client. Empty URLs select the production
// endpoints.
func NewClient(forecastURL, archiveURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	if archiveURL == "" {
		archiveURL = DefaultArchiveURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		forecastURL: forecastURL,
		archiveURL:  archiveURL,
		logger:      logger,
	}
}

// Archive returns historical hourly weather for a zone over [start, end).
func (c *Client) Archive(ctx context.Context, zone Zone, start, end time.Time) ([]domain.WeatherRecord, error) {
	return c.fetch(ctx, c.archiveURL, zone, start, end, "archive")
}

// Forecast returns forecast hourly weather for a zone over [start, end).
func (c *Client) Forecast(ctx context.Context, zone Zone, start, end time.Time) ([]domain.WeatherRecord, error) {
	return c.fetch(ctx, c.forecastURL, zone, start, end, "forecast")
}

func (c *Client) fetch(ctx context.Context, baseURL string, zone Zone, start, end time.Time, source string) ([]domain.WeatherRecord, error) {
	params := url.Values{
		"latitude":   {fmt.Sprintf("%.4f", zone.Lat)},
		"longitude":  {fmt.Sprintf("%.4f", zone.Lon)},
		"hourly":     {strings.Join(domain.WeatherColumns, ",")},
		"start_date": {start.UTC().Format(dateFormat)},
		"end_date":   {end.UTC().Format(dateFormat)},
		"timezone":   {"UTC"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather %s request: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records, err := toRecords(zone, payload.Hourly)
	if err != nil {
		return nil, err
	}

	// The API is addressed by whole days; trim back to the half-open
	// window the caller asked for.
	trimmed := records[:0]
	for _, rec := range records {
		if rec.Datetime.Before(start) || !rec.Datetime.Before(end) {
			continue
		}
		trimmed = append(trimmed, rec)
	}

	c.logger.Debug("fetched weather", "product", source, "zone", zone.Code, "hours", len(trimmed))
	return trimmed, nil
}

// toRecords zips the column-oriented hourly block into per-hour records.
// Hours with a null in any variable are dropped; a variable missing from
// the response entirely is an upstream contract break and errors.
func toRecords(zone Zone, h hourlyBlock) ([]domain.WeatherRecord, error) {
	vars := h.variables()
	for _, col := range domain.WeatherColumns {
		if vars[col] == nil {
			return nil, fmt.Errorf("hourly response missing %s", col)
		}
	}

	records := make([]domain.WeatherRecord, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := time.Parse(hourlyTimeFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("parse hourly time %q: %w", raw, err)
		}
		rec := domain.WeatherRecord{Datetime: ts.UTC(), CountryCode: zone.Code}
		complete := true
		for _, col := range domain.WeatherColumns {
			series := vars[col]
			if i >= len(series) || series[i] == nil {
				complete = false
				break
			}
			rec.Set(col, *series[i])
		}
		if !complete {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Open-Meteo API response types.

type response struct {
	Hourly hourlyBlock `json:"hourly"`
}

type hourlyBlock struct {
	Time              []string   `json:"time"`
	Temperature2m     []*float64 `json:"temperature_2m"`
	Cloudcover        []*float64 `json:"cloudcover"`
	DirectRadiation   []*float64 `json:"direct_radiation"`
	DiffuseRadiation  []*float64 `json:"diffuse_radiation"`
	SurfacePressure   []*float64 `json:"surface_pressure"`
	WindSpeed10m      []*float64 `json:"wind_speed_10m"`
	WindDirection10m  []*float64 `json:"wind_direction_10m"`
	WindSpeed100m     []*float64 `json:"wind_speed_100m"`
	WindDirection100m []*float64 `json:"wind_direction_100m"`
	Precipitation     []*float64 `json:"precipitation"`
	SnowDepth         []*float64 `json:"snow_depth"`
}

// variables keys the block's series by canonical column name.
func (h hourlyBlock) variables() map[string][]*float64 {
	return map[string][]*float64{
		"temperature_2m":      h.Temperature2m,
		"cloudcover":          h.Cloudcover,
		"direct_radiation":    h.DirectRadiation,
		"diffuse_radiation":   h.DiffuseRadiation,
		"surface_pressure":    h.SurfacePressure,
		"wind_speed_10m":      h.WindSpeed10m,
		"wind_direction_10m":  h.WindDirection10m,
		"wind_speed_100m":     h.WindSpeed100m,
		"wind_direction_100m": h.WindDirection100m,
		"precipitation":       h.Precipitation,
		"snow_depth":          h.SnowDepth,
	}
}
