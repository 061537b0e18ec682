package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/akarpov/skycast/internal/pipeline"
	"github.com/akarpov/skycast/internal/store"
	"github.com/akarpov/skycast/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, p *pipeline.Pipeline, cache store.Cache) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		var q regionQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rep, ok := p.Report(q.Region)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no weather rendered yet")
		}

		return c.JSON(fiber.Map{
			"state":   p.State(),
			"attempt": p.LastAttempt(),
			"report":  rep,
		})
	})

	v1.Get("/weather/snapshot", func(c *fiber.Ctx) error {
		entry, err := cache.Get()
		if err != nil {
			if errors.Is(err, store.ErrNoEntry) {
				return fiber.NewError(fiber.StatusNotFound, "no cached weather entry")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather cache")
		}
		return c.JSON(entry)
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		rep, err := p.Refresh(c.Context())
		if err != nil {
			return refreshError(c, err)
		}
		return c.JSON(fiber.Map{
			"state":   p.State(),
			"attempt": p.LastAttempt(),
			"report":  rep,
		})
	})
}

// regionQuery optionally overrides the display locale for one response.
type regionQuery struct {
	Region string `validate:"omitempty,alpha,len=2"`
}

func (q *regionQuery) bind(c *fiber.Ctx) error {
	q.Region = c.Query("region")
	return validate.Struct(q)
}

// refreshError maps the attempt's classification onto an HTTP response.
// Permanently denied permission additionally hints at the OS settings path.
func refreshError(c *fiber.Ctx, err error) error {
	if errors.Is(err, pipeline.ErrPermissionPermanentlyDenied) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":         true,
			"message":       err.Error(),
			"settings_hint": true,
		})
	}
	return fiber.NewError(statusFor(err), err.Error())
}

func statusFor(err error) int {
	var provErr *weather.ProviderError

	switch {
	case errors.Is(err, pipeline.ErrLocationDisabled):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, pipeline.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, pipeline.ErrNetworkUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrNoFix):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, pipeline.ErrSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, weather.ErrTransport):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, weather.ErrBadRequest),
		errors.Is(err, weather.ErrNotFound),
		errors.Is(err, weather.ErrMalformedResponse):
		return fiber.StatusBadGateway
	case errors.As(err, &provErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
