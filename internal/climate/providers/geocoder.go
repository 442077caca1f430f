package providers

import (
	"context"
	"errors"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
)

var errNoAPIKey = errors.New("geocoder api key not configured")

// GoogleGeocoder implements climate.Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	geocode func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder sets the package-level key of kelvins/geocoder, so only
// one key is in effect per process.
func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, errNoAPIKey
	}
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{geocode: geocoder.Geocoding}, nil
}

func (g *GoogleGeocoder) Locate(ctx context.Context, addr climate.Address) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	loc, err := g.geocode(geocoder.Address{
		City:    addr.City,
		State:   addr.State,
		Country: addr.Country,
	})
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}
