package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/common"
)

const (
	DefaultOpenMeteoBaseURL = "https://climate-api.open-meteo.com/v1/climate"
	DefaultOpenMeteoModel   = "MRI_AGCM3_2_S"
)

// dailyVariables are requested in this order for every coordinate pair.
var dailyVariables = []string{
	"temperature_2m_mean",
	"temperature_2m_max",
	"temperature_2m_min",
	"relative_humidity_2m_mean",
	"relative_humidity_2m_max",
	"relative_humidity_2m_min",
	"precipitation_sum",
	"cloud_cover_mean",
	"soil_moisture_0_to_10cm_mean",
}

// OpenMeteoConfig configures OpenMeteoProvider. Zero values fall back to defaults.
type OpenMeteoConfig struct {
	BaseURL string
	Model   string
	// RateLimit is the number of requests per second shared by all workers.
	RateLimit   float64
	Concurrency int
	Client      *http.Client
	Backoff     BackoffConfig
}

// OpenMeteoProvider implements climate.Provider for the Open-Meteo climate API.
type OpenMeteoProvider struct {
	name        string
	baseURL     string
	model       string
	concurrency int
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(cfg OpenMeteoConfig) *OpenMeteoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenMeteoBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenMeteoModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &OpenMeteoProvider{
		name:        "openmeteo",
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		concurrency: cfg.Concurrency,
		httpCfg: HTTPClientConfig{
			Client:  cfg.Client,
			Backoff: cfg.Backoff,
			Limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		},
		circuit: cb,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// FetchDaily issues one request per coordinate pair with bounded concurrency.
// The first failure cancels the remaining requests.
func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, lats, lons []float64, from, to time.Time) ([]climate.DailySeries, error) {
	if len(lats) != len(lons) {
		return nil, climate.ErrCoordinateMismatch
	}

	out := make([]climate.DailySeries, len(lats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := range lats {
		g.Go(func() error {
			series, err := p.fetchOne(gctx, lats[i], lons[i], from, to)
			if err != nil {
				return eris.Wrapf(err, "openmeteo: fetch %g,%g", lats[i], lons[i])
			}
			out[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *OpenMeteoProvider) fetchOne(ctx context.Context, lat, lon float64, from, to time.Time) (climate.DailySeries, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("start_date", from.Format(common.DateLayout))
		values.Set("end_date", to.Format(common.DateLayout))
		values.Set("models", p.model)
		values.Set("daily", strings.Join(dailyVariables, ","))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return climate.DailySeries{}, err
	}
	defer resp.Body.Close()

	var payload climateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return climate.DailySeries{}, eris.Wrap(err, "decode response")
	}

	days, dropped, err := payload.Daily.observations()
	if err != nil {
		return climate.DailySeries{}, err
	}
	if dropped > 0 {
		zap.L().Debug("dropped incomplete daily rows",
			zap.Float64("latitude", lat),
			zap.Float64("longitude", lon),
			zap.Int("dropped", dropped),
		)
	}

	return climate.DailySeries{Latitude: lat, Longitude: lon, Days: days}, nil
}

type climateResponse struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Daily     dailyBlock `json:"daily"`
}

// dailyBlock holds column-oriented daily values; nulls decode to nil.
type dailyBlock struct {
	Time            []string   `json:"time"`
	TemperatureMean []*float64 `json:"temperature_2m_mean"`
	TemperatureMax  []*float64 `json:"temperature_2m_max"`
	TemperatureMin  []*float64 `json:"temperature_2m_min"`
	HumidityMean    []*float64 `json:"relative_humidity_2m_mean"`
	HumidityMax     []*float64 `json:"relative_humidity_2m_max"`
	HumidityMin     []*float64 `json:"relative_humidity_2m_min"`
	Precipitation   []*float64 `json:"precipitation_sum"`
	CloudCover      []*float64 `json:"cloud_cover_mean"`
	SoilMoisture    []*float64 `json:"soil_moisture_0_to_10cm_mean"`
}

// observations converts the columns into rows, dropping any row with a
// missing or null value.
func (d dailyBlock) observations() ([]climate.DailyObservation, int, error) {
	days := make([]climate.DailyObservation, 0, len(d.Time))
	var dropped int

	for i, ts := range d.Time {
		date, err := common.ParseDay(ts)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "parse date %q", ts)
		}

		var vals [9]float64
		complete := true
		for j, col := range [][]*float64{
			d.TemperatureMean, d.TemperatureMax, d.TemperatureMin,
			d.HumidityMean, d.HumidityMax, d.HumidityMin,
			d.Precipitation, d.CloudCover, d.SoilMoisture,
		} {
			if i >= len(col) || col[i] == nil {
				complete = false
				break
			}
			vals[j] = *col[i]
		}
		if !complete {
			dropped++
			continue
		}

		days = append(days, climate.DailyObservation{
			Date:            date,
			MeanTemperature: vals[0],
			MaxTemperature:  vals[1],
			MinTemperature:  vals[2],
			MeanHumidity:    vals[3],
			MaxHumidity:     vals[4],
			MinHumidity:     vals[5],
			Precipitation:   vals[6],
			CloudCover:      vals[7],
			SoilMoisture:    vals[8],
		})
	}
	return days, dropped, nil
}
