package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/climate/providers"
	"github.com/i474232898/wine-region-evaluator/internal/config"
	"github.com/i474232898/wine-region-evaluator/internal/observability"
	"github.com/i474232898/wine-region-evaluator/internal/store"
)

// appEnv holds the wired dependencies shared by the commands.
type appEnv struct {
	Store   store.Backend
	Service *climate.Service
}

// initEnv opens the store, applying its schema, and wires the provider,
// optional geocoder and service. metrics may be nil.
func initEnv(ctx context.Context, cfg *config.AppConfig, metrics *observability.Metrics) (*appEnv, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s store", cfg.Store.Driver)
	}

	provider := providers.NewOpenMeteoProvider(providers.OpenMeteoConfig{
		BaseURL:     cfg.OpenMeteo.BaseURL,
		Model:       cfg.OpenMeteo.Model,
		RateLimit:   cfg.OpenMeteo.RateLimit,
		Concurrency: cfg.OpenMeteo.Concurrency,
		Client:      &http.Client{Timeout: cfg.HTTPTimeout},
	})

	opts := climate.Options{
		Metrics:       metrics,
		BackfillYears: cfg.BackfillYears,
	}
	if cfg.GeocoderAPIKey != "" {
		g, err := providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		opts.Geocoder = g
	}

	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("provider", provider.Name()),
		zap.Bool("geocoder", opts.Geocoder != nil),
	)

	return &appEnv{
		Store:   st,
		Service: climate.NewService(st, provider, opts),
	}, nil
}

func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
