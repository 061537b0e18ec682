package weather

import "testing"

func TestIconFor(t *testing.T) {
	cases := []struct {
		code string
		want Asset
	}{
		{"01d", AssetSunny},
		{"01n", AssetCloudy},
		{"02d", AssetCloudy},
		{"04n", AssetCloudy},
		{"10d", AssetRainy},
		{"10n", AssetRainy},
		{"11d", AssetStormy},
		{"11n", AssetStormy},
		{"13d", AssetSnowy},
		{"13n", AssetSnowy},
	}

	for _, tc := range cases {
		got, ok := IconFor(tc.code)
		if !ok {
			t.Errorf("IconFor(%q): unexpectedly unknown", tc.code)
			continue
		}
		if got != tc.want {
			t.Errorf("IconFor(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestIconForUnknownCode(t *testing.T) {
	if a, ok := IconFor("unknown_code"); ok {
		t.Errorf("IconFor(unknown_code) = %q, want no asset", a)
	}
	if _, ok := IconFor(""); ok {
		t.Error("IconFor(\"\") should report no asset")
	}
}
