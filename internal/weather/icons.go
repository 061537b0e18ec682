package weather

// Asset is one of the canonical display asset categories.
type Asset string

const (
	AssetSunny  Asset = "sunny"
	AssetCloudy Asset = "cloudy"
	AssetRainy  Asset = "rainy"
	AssetStormy Asset = "stormy"
	AssetSnowy  Asset = "snowy"
)

// iconAssets maps OpenWeatherMap icon codes onto asset categories by code
// family: 01d clear day, 01n-04n cloud cover, 09/10 rain, 11 thunderstorm,
// 13 snow.
var iconAssets = map[string]Asset{
	"01d": AssetSunny,
	"01n": AssetCloudy,
	"02d": AssetCloudy,
	"02n": AssetCloudy,
	"03d": AssetCloudy,
	"03n": AssetCloudy,
	"04d": AssetCloudy,
	"04n": AssetCloudy,
	"09d": AssetRainy,
	"09n": AssetRainy,
	"10d": AssetRainy,
	"10n": AssetRainy,
	"11d": AssetStormy,
	"11n": AssetStormy,
	"13d": AssetSnowy,
	"13n": AssetSnowy,
}

// IconFor returns the asset for a provider icon code. Unknown codes return
// ok=false and the caller keeps whatever asset was previously selected;
// whether an explicit "unknown" asset would serve users better is an open
// product question.
func IconFor(code string) (Asset, bool) {
	a, ok := iconAssets[code]
	return a, ok
}
