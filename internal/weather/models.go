package weather

// Coordinates is a single resolved location fix in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Valid reports whether both components are inside their degree ranges.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Condition is one entry of the provider's condition list.
type Condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Snapshot is the normalized result of one successful fetch. Temperatures
// are stored metric; the display unit is derived from the locale at render
// time and never persisted with the snapshot. A snapshot is never mutated
// after creation.
type Snapshot struct {
	Conditions []Condition `json:"conditions"`
	Temp       float64     `json:"temp"`
	TempMin    float64     `json:"tempMin"`
	TempMax    float64     `json:"tempMax"`
	Humidity   int         `json:"humidity"`
	WindSpeed  float64     `json:"windSpeed"`
	Sunrise    int64       `json:"sunrise"` // unix seconds, UTC
	Sunset     int64       `json:"sunset"`  // unix seconds, UTC
	Name       string      `json:"name,omitempty"`
}

// CachedEntry pairs a snapshot with the coordinates it was fetched for.
// If an entry exists, both fields are present and mutually consistent.
type CachedEntry struct {
	Snapshot    Snapshot    `json:"snapshot"`
	Coordinates Coordinates `json:"coordinates"`
}
