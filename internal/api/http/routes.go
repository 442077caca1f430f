package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
)

var validate = validator.New()

// Service is the part of climate.Service the HTTP layer depends on.
type Service interface {
	CreateRegion(ctx context.Context, in climate.RegionInput) (climate.RegionCreated, error)
	GetRegion(ctx context.Context, name string) (climate.Region, error)
	ListRegions(ctx context.Context, names []string) ([]climate.Region, error)
	DeleteRegion(ctx context.Context, name string) error

	SeasonalSuitability(ctx context.Context, names []string) ([]climate.SeasonalSuitability, error)
	LongTermViability(ctx context.Context, names []string, yearsBack int) ([]climate.Viability, error)
	ComparePerformance(ctx context.Context, names []string, yearsBack int, sel climate.Selection) ([]climate.PerformanceEntry, error)

	Ingest(ctx context.Context) (climate.IngestResult, error)
}

// Defaults are the trailing windows used when a request has no years parameter.
type Defaults struct {
	ViabilityYears   int
	PerformanceYears int
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service, defaults Defaults) {
	if defaults.ViabilityYears <= 0 {
		defaults.ViabilityYears = climate.DefaultViabilityYears
	}
	if defaults.PerformanceYears <= 0 {
		defaults.PerformanceYears = climate.DefaultPerformanceYears
	}

	v1 := app.Group("/api/v1")

	v1.Get("/region", func(c *fiber.Ctx) error {
		var q nameQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		region, err := service.GetRegion(c.UserContext(), q.Name)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(region)
	})

	v1.Post("/region", func(c *fiber.Ctx) error {
		var req createRegionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		created, err := service.CreateRegion(c.UserContext(), req.toInput())
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	v1.Delete("/region", func(c *fiber.Ctx) error {
		var q nameQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := service.DeleteRegion(c.UserContext(), q.Name); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"deleted": q.Name})
	})

	v1.Get("/regions", func(c *fiber.Ctx) error {
		regions, err := service.ListRegions(c.UserContext(), nil)
		if err != nil {
			return toHTTPError(err)
		}
		if regions == nil {
			regions = []climate.Region{}
		}
		return c.JSON(regions)
	})

	analysis := v1.Group("/analysis")

	analysis.Get("/season", func(c *fiber.Ctx) error {
		var q analysisQuery
		if err := q.bind(c, 0); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := service.SeasonalSuitability(c.UserContext(), q.Regions)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(results)
	})

	analysis.Get("/viability", func(c *fiber.Ctx) error {
		var q analysisQuery
		if err := q.bind(c, defaults.ViabilityYears); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := service.LongTermViability(c.UserContext(), q.Regions, q.Years)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(results)
	})

	analysis.Get("/compare_performance", func(c *fiber.Ctx) error {
		var q analysisQuery
		if err := q.bind(c, defaults.PerformanceYears); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sel, err := climate.ParseSelection(c.Query("only"))
		if err != nil {
			return toHTTPError(err)
		}

		results, err := service.ComparePerformance(c.UserContext(), q.Regions, q.Years, sel)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(results)
	})

	v1.Post("/ingest", func(c *fiber.Ctx) error {
		result, err := service.Ingest(c.UserContext())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(result)
	})
}

// toHTTPError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 without leaking details.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, climate.ErrRegionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, climate.ErrRegionExists), errors.Is(err, climate.ErrIngestInProgress):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, climate.ErrInvalidSelection),
		errors.Is(err, climate.ErrMissingName),
		errors.Is(err, climate.ErrMissingCoordinates),
		errors.Is(err, climate.ErrCoordinateMismatch):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, climate.ErrUpstream):
		zap.L().Warn("upstream failure", zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, climate.ErrUpstream.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}
}

// nameQuery identifies a single region.
type nameQuery struct {
	Name string `validate:"required,max=100"`
}

func (q *nameQuery) bind(c *fiber.Ctx) error {
	q.Name = strings.TrimSpace(c.Query("name"))
	if q.Name == "" {
		return errors.New("name is required to identify the region")
	}
	return validate.Struct(q)
}

// analysisQuery holds the repeated region parameter and the trailing window.
type analysisQuery struct {
	Regions []string `validate:"dive,required,max=100"`
	Years   int      `validate:"gte=0,lte=200"`
}

func (q *analysisQuery) bind(c *fiber.Ctx, defaultYears int) error {
	for _, v := range c.Context().QueryArgs().PeekMulti("region") {
		q.Regions = append(q.Regions, string(v))
	}

	q.Years = defaultYears
	if raw := c.Query("years"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return errors.New("years must be a positive integer")
		}
		q.Years = n
	}

	return validate.Struct(q)
}

// createRegionRequest is the body of POST /region. Coordinates may be left
// out when an address is given and a geocoder is configured.
type createRegionRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Description string   `json:"description" validate:"max=1000"`
	City        string   `json:"city" validate:"max=100"`
	State       string   `json:"state" validate:"max=100"`
	Country     string   `json:"country" validate:"max=100"`
}

func (r createRegionRequest) toInput() climate.RegionInput {
	return climate.RegionInput{
		Name:        r.Name,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Description: r.Description,
		Address: climate.Address{
			City:    r.City,
			State:   r.State,
			Country: r.Country,
		},
	}
}
