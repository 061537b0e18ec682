package weather

import (
	"fmt"
	"strconv"
	"time"
)

// Place is a best-effort reverse-geocoded display name. Either field may be
// empty when geocoding was unavailable.
type Place struct {
	Locality string `json:"locality,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Report is the fully assembled display view of one snapshot.
type Report struct {
	Condition   string `json:"condition"`
	Description string `json:"description"`
	Temperature string `json:"temperature"`
	TempMin     string `json:"tempMin"`
	TempMax     string `json:"tempMax"`
	Humidity    string `json:"humidity"`
	WindSpeed   string `json:"windSpeed"`
	Sunrise     string `json:"sunrise"`
	Sunset      string `json:"sunset"`
	Icon        Asset  `json:"icon,omitempty"`
	Place       Place  `json:"place"`
}

// FormatReport assembles the display strings for a snapshot. Temperatures get
// the unit suffix derived from the caller's locale; min/max additionally carry
// their " min"/" max" markers. The icon is left empty here: asset selection is
// stateful (unknown codes keep the prior asset) and belongs to the caller.
func FormatReport(snap Snapshot, unit Unit, place Place) Report {
	r := Report{
		Temperature: formatTemp(snap.Temp, unit),
		TempMin:     formatTemp(snap.TempMin, unit) + " min",
		TempMax:     formatTemp(snap.TempMax, unit) + " max",
		Humidity:    fmt.Sprintf("%d per cent", snap.Humidity),
		WindSpeed:   strconv.FormatFloat(snap.WindSpeed, 'f', -1, 64),
		Sunrise:     clockTime(snap.Sunrise),
		Sunset:      clockTime(snap.Sunset),
		Place:       place,
	}
	if len(snap.Conditions) > 0 {
		// Last entry wins when the provider reports several conditions.
		last := snap.Conditions[len(snap.Conditions)-1]
		r.Condition = last.Main
		r.Description = last.Description
	}
	return r
}

func formatTemp(v float64, unit Unit) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + string(unit)
}

// clockTime renders a unix timestamp as a local 12-hour wall-clock string.
func clockTime(unix int64) string {
	return time.Unix(unix, 0).Format("03:04 PM")
}
