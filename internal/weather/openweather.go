package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Fetcher abstracts the weather provider for the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, coords Coordinates) (Snapshot, error)
}

// Client fetches current weather from OpenWeatherMap. A single attempt per
// call: no retries, no backoff. The caller decides whether to try again. The
// circuit breaker only fails fast after repeated transport failures; it never
// re-issues a request.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client against the given API base, e.g.
// "https://api.openweathermap.org/data/2.5".
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpClient,
		circuit: cb,
	}
}

// Fetch issues the current-weather request for the given coordinates and
// classifies the outcome. Callers must confirm network reachability first.
func (c *Client) Fetch(ctx context.Context, coords Coordinates) (Snapshot, error) {
	if c.apiKey == "" {
		return Snapshot{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", coords.Latitude))
	values.Set("lon", fmt.Sprintf("%f", coords.Longitude))
	values.Set("units", "metric")
	values.Set("appid", c.apiKey)

	u := fmt.Sprintf("%s/weather?%s", c.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Snapshot{}, err
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.http.Do(req)
	})
	if err != nil {
		// No status was received: connection failures, timeouts and an
		// open breaker all classify the same way.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Snapshot{}, fmt.Errorf("%w: circuit open: %v", ErrTransport, err)
		}
		return Snapshot{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return Snapshot{}, fmt.Errorf("unexpected result type from circuit breaker")
	}
	defer resp.Body.Close()

	// Status alone drives classification; non-2xx bodies are not read.
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return Snapshot{}, fmt.Errorf("%w: status %d", ErrBadRequest, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return Snapshot{}, fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Snapshot{}, &ProviderError{Status: resp.StatusCode}
	}

	var payload struct {
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Sys struct {
			Sunrise int64 `json:"sunrise"`
			Sunset  int64 `json:"sunset"`
		} `json:"sys"`
		Name string `json:"name"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	snap := Snapshot{
		Temp:      payload.Main.Temp,
		TempMin:   payload.Main.TempMin,
		TempMax:   payload.Main.TempMax,
		Humidity:  payload.Main.Humidity,
		WindSpeed: payload.Wind.Speed,
		Sunrise:   payload.Sys.Sunrise,
		Sunset:    payload.Sys.Sunset,
		Name:      payload.Name,
	}
	for _, w := range payload.Weather {
		snap.Conditions = append(snap.Conditions, Condition{
			Main:        w.Main,
			Description: w.Description,
			Icon:        w.Icon,
		})
	}

	return snap, nil
}
