package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/akarpov/skycast/internal/weather"
)

// Geocoder resolves coordinates into a display name. Best effort: callers
// tolerate failures by rendering without a place name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coords weather.Coordinates) (weather.Place, error)
}

// NominatimGeocoder reverse-geocodes against the OpenStreetMap Nominatim API.
type NominatimGeocoder struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

var _ Geocoder = (*NominatimGeocoder)(nil)

const nominatimBaseURL = "https://nominatim.openstreetmap.org"

func NewNominatimGeocoder(client *http.Client) *NominatimGeocoder {
	return &NominatimGeocoder{
		client:  client,
		baseURL: nominatimBaseURL,
		// Nominatim's usage policy requires an identifying User-Agent.
		userAgent: "skycast/1.0",
	}
}

// NewNominatimGeocoderURL is NewNominatimGeocoder against a custom endpoint.
func NewNominatimGeocoderURL(client *http.Client, baseURL string) *NominatimGeocoder {
	g := NewNominatimGeocoder(client)
	g.baseURL = baseURL
	return g
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, coords weather.Coordinates) (weather.Place, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", coords.Latitude))
	params.Set("lon", fmt.Sprintf("%f", coords.Longitude))
	params.Set("format", "json")

	u := fmt.Sprintf("%s/reverse?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return weather.Place{}, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return weather.Place{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return weather.Place{}, fmt.Errorf("nominatim api error: %s", resp.Status)
	}

	var payload struct {
		Address struct {
			Suburb  string `json:"suburb"`
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Place{}, err
	}

	locality := payload.Address.Suburb
	for _, candidate := range []string{payload.Address.City, payload.Address.Town, payload.Address.Village} {
		if locality != "" {
			break
		}
		locality = candidate
	}

	return weather.Place{
		Locality: locality,
		Country:  payload.Address.Country,
	}, nil
}
