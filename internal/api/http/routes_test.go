package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubProvider returns a perfect day for every date in the window.
type stubProvider struct {
	err   error
	calls atomic.Int32
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchDaily(_ context.Context, lats, lons []float64, from, to time.Time) ([]climate.DailySeries, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]climate.DailySeries, len(lats))
	for i := range lats {
		out[i] = climate.DailySeries{Latitude: lats[i], Longitude: lons[i]}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			out[i].Days = append(out[i].Days, climate.DailyObservation{
				Date: d, MaxTemperature: 28, MeanHumidity: 50, Precipitation: 2, CloudCover: 10,
			})
		}
	}
	return out, nil
}

type testEnv struct {
	app      *fiber.App
	store    *store.MemoryStore
	provider *stubProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: store.NewMemoryStore(), provider: &stubProvider{}}
	svc := climate.NewService(env.store, env.provider, climate.Options{
		Clock: clockwork.NewFakeClockAt(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)),
	})
	env.app = NewApp(svc, AppConfig{DisableRequestLog: true})
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) createRegion(t *testing.T, name string, lat, lon float64) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": name, "latitude": lat, "longitude": lon})
	require.NoError(t, err)
	code, resp := e.do(t, http.MethodPost, "/api/v1/region", string(body))
	require.Equal(t, http.StatusCreated, code, string(resp))
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.True(t, payload.Error)
	return payload.Message
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","service":"wine-region-evaluator"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCreateRegion(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/region",
		`{"name":"Coonawarra","latitude":-37.29,"longitude":140.83,"description":"terra rossa"}`)
	require.Equal(t, http.StatusCreated, code, string(body))

	var created climate.RegionCreated
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Coonawarra", created.Region.Name)
	assert.Equal(t, "terra rossa", created.Region.Description)
	assert.Positive(t, created.Backfill.Inserted)
	assert.Empty(t, created.BackfillError)
}

func TestCreateRegion_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"name":`},
		{"missing name", `{"latitude":1,"longitude":2}`},
		{"blank name", `{"name":"   ","latitude":1,"longitude":2}`},
		{"latitude out of range", `{"name":"A","latitude":91,"longitude":2}`},
		{"longitude out of range", `{"name":"A","latitude":1,"longitude":-181}`},
		{"missing coordinates", `{"name":"A","latitude":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/api/v1/region", tt.body)
			assert.Equal(t, http.StatusBadRequest, code, string(body))
			assert.NotEmpty(t, errorMessage(t, body))
		})
	}
}

func TestCreateRegion_BlankNameNotStored(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/region", `{"name":" \t ","latitude":1,"longitude":2}`)
	assert.Equal(t, http.StatusBadRequest, code, string(body))

	regions, err := env.store.ListRegions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, regions)
	assert.Zero(t, env.provider.calls.Load())
}

func TestCreateRegion_TrimsName(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/region", `{"name":"  Coonawarra  ","latitude":1,"longitude":2}`)
	require.Equal(t, http.StatusCreated, code, string(body))

	code, _ = env.do(t, http.MethodDelete, "/api/v1/region?name=Coonawarra", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestToHTTPError_MissingName(t *testing.T) {
	err := toHTTPError(climate.ErrMissingName)
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusBadRequest, fe.Code)
}

func TestCreateRegion_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.createRegion(t, "Coonawarra", -37.29, 140.83)

	code, body := env.do(t, http.MethodPost, "/api/v1/region", `{"name":"Coonawarra","latitude":1,"longitude":2}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, climate.ErrRegionExists.Error(), errorMessage(t, body))
}

func TestCreateRegion_BackfillFailureStillCreates(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("timeout")

	code, body := env.do(t, http.MethodPost, "/api/v1/region", `{"name":"A","latitude":1,"longitude":2}`)
	require.Equal(t, http.StatusCreated, code)

	var created climate.RegionCreated
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.BackfillError)
}

func TestGetRegion(t *testing.T) {
	env := newTestEnv(t)
	env.createRegion(t, "Yarra Valley", -37.75, 145.10)

	code, body := env.do(t, http.MethodGet, "/api/v1/region?name=Yarra%20Valley", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"name":"Yarra Valley","latitude":-37.75,"longitude":145.1}`, string(body))

	code, _ = env.do(t, http.MethodGet, "/api/v1/region?name=Barossa", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/region", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errorMessage(t, body), "name is required")
}

func TestDeleteRegion(t *testing.T) {
	env := newTestEnv(t)
	env.createRegion(t, "Mornington", -38.22, 145.04)

	code, _ := env.do(t, http.MethodDelete, "/api/v1/region?name=Mornington", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodDelete, "/api/v1/region?name=Mornington", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodDelete, "/api/v1/region", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListRegions(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/regions", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))

	env.createRegion(t, "A", 1, 1)
	env.createRegion(t, "B", 2, 2)

	code, body = env.do(t, http.MethodGet, "/api/v1/regions", "")
	require.Equal(t, http.StatusOK, code)
	var regions []climate.Region
	require.NoError(t, json.Unmarshal(body, &regions))
	require.Len(t, regions, 2)
	assert.Equal(t, "A", regions[0].Name)
}

func TestSeasonAnalysis(t *testing.T) {
	env := newTestEnv(t)
	env.createRegion(t, "A", 1, 1)
	env.createRegion(t, "B", 2, 2)

	code, body := env.do(t, http.MethodGet, "/api/v1/analysis/season?region=B", "")
	require.Equal(t, http.StatusOK, code)

	var results []climate.SeasonalSuitability
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Region)
	assert.Len(t, results[0].BestGrowingSeason, 3)

	code, body = env.do(t, http.MethodGet, "/api/v1/analysis/season?region=A&region=B", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &results))
	assert.Len(t, results, 2)

	code, body = env.do(t, http.MethodGet, "/api/v1/analysis/season?region=Nowhere", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, climate.ErrRegionNotFound.Error(), errorMessage(t, body))
}

func TestAnalysis_NoRegions(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"season", "viability", "compare_performance"} {
		code, _ := env.do(t, http.MethodGet, "/api/v1/analysis/"+path, "")
		assert.Equal(t, http.StatusNotFound, code, path)
	}
}

func TestViabilityAnalysis(t *testing.T) {
	env := newTestEnv(t)
	env.createRegion(t, "A", 1, 1)

	code, body := env.do(t, http.MethodGet, "/api/v1/analysis/viability?years=5", "")
	require.Equal(t, http.StatusOK, code)

	var results []climate.Viability
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].Percentage)
	assert.Contains(t, string(body), `"longterm_viability":100`)

	for _, years := range []string{"abc", "0", "-3", "500"} {
		code, _ = env.do(t, http.MethodGet, "/api/v1/analysis/viability?years="+years, "")
		assert.Equal(t, http.StatusBadRequest, code, years)
	}
}

func TestComparePerformance(t *testing.T) {
	env := newTestEnv(t)
	env.createRegion(t, "A", 1, 1)
	env.createRegion(t, "B", 2, 2)

	code, body := env.do(t, http.MethodGet, "/api/v1/analysis/compare_performance", "")
	require.Equal(t, http.StatusOK, code)
	var all []climate.PerformanceEntry
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 2)

	code, body = env.do(t, http.MethodGet, "/api/v1/analysis/compare_performance?only=BEST", "")
	require.Equal(t, http.StatusOK, code)
	var best []climate.PerformanceEntry
	require.NoError(t, json.Unmarshal(body, &best))
	assert.Len(t, best, 1)

	code, body = env.do(t, http.MethodGet, "/api/v1/analysis/compare_performance?only=middle", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, climate.ErrInvalidSelection.Error(), errorMessage(t, body))
}

func TestIngestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/ingest", "")
	require.Equal(t, http.StatusOK, code)
	var res climate.IngestResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Skipped)

	_, err := env.store.CreateRegion(context.Background(), climate.Region{Name: "A", Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	env.provider.err = errors.New("503 from upstream")

	code, body = env.do(t, http.MethodPost, "/api/v1/ingest", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, climate.ErrUpstream.Error(), errorMessage(t, body))

	env.provider.err = nil
	code, body = env.do(t, http.MethodPost, "/api/v1/ingest", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.False(t, res.Skipped)
	assert.Positive(t, res.Inserted)
}

func TestToHTTPError_Unknown(t *testing.T) {
	err := toHTTPError(errors.New("db down"))
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusInternalServerError, fe.Code)
	assert.Equal(t, "internal server error", fe.Message)
}
