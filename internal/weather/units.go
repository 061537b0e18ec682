package weather

// Unit is a display temperature unit symbol.
type Unit string

const (
	Celsius    Unit = "℃"
	Fahrenheit Unit = "℉"
)

// UnitFor maps an ISO region code to the temperature unit used for display.
// The United States, Liberia and Myanmar use Fahrenheit; every other region
// code, including unknown or empty ones, defaults to Celsius.
func UnitFor(region string) Unit {
	switch region {
	case "US", "LR", "MM":
		return Fahrenheit
	default:
		return Celsius
	}
}
