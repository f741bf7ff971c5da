package aqi

import "image/color"

// Category is a severity band derived from an AQI value.
type Category string

const (
	Good         Category = "Good"
	Satisfactory Category = "Satisfactory"
	Moderate     Category = "Moderate"
	Poor         Category = "Poor"
	VeryPoor     Category = "Very Poor"
	Severe       Category = "Severe"
)

// Categories lists every band from least to most severe.
var Categories = []Category{Good, Satisfactory, Moderate, Poor, VeryPoor, Severe}

// CategoryOf buckets an AQI value. Each band includes its upper bound.
func CategoryOf(v float64) Category {
	switch {
	case v <= 50:
		return Good
	case v <= 100:
		return Satisfactory
	case v <= 200:
		return Moderate
	case v <= 300:
		return Poor
	case v <= 400:
		return VeryPoor
	default:
		return Severe
	}
}

// ParseCategory matches a category by its display name.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Severity returns a numeric severity for sorting (higher = worse air).
func (c Category) Severity() int {
	switch c {
	case Severe:
		return 5
	case VeryPoor:
		return 4
	case Poor:
		return 3
	case Moderate:
		return 2
	case Satisfactory:
		return 1
	default:
		return 0
	}
}

// CSSClass returns the CSS class for styling
func (c Category) CSSClass() string {
	switch c {
	case Severe:
		return "aqi-severe"
	case VeryPoor:
		return "aqi-very-poor"
	case Poor:
		return "aqi-poor"
	case Moderate:
		return "aqi-moderate"
	case Satisfactory:
		return "aqi-satisfactory"
	default:
		return "aqi-good"
	}
}

// Color returns the band colour as a hex string.
func (c Category) Color() string {
	switch c {
	case Severe:
		return "#7e0023"
	case VeryPoor:
		return "#c0392b"
	case Poor:
		return "#e67e22"
	case Moderate:
		return "#f1c40f"
	case Satisfactory:
		return "#9acd32"
	default:
		return "#2e8b57"
	}
}

// RGBA returns the band colour for raster rendering.
func (c Category) RGBA() color.RGBA {
	switch c {
	case Severe:
		return color.RGBA{0x7e, 0x00, 0x23, 0xff}
	case VeryPoor:
		return color.RGBA{0xc0, 0x39, 0x2b, 0xff}
	case Poor:
		return color.RGBA{0xe6, 0x7e, 0x22, 0xff}
	case Moderate:
		return color.RGBA{0xf1, 0xc4, 0x0f, 0xff}
	case Satisfactory:
		return color.RGBA{0x9a, 0xcd, 0x32, 0xff}
	default:
		return color.RGBA{0x2e, 0x8b, 0x57, 0xff}
	}
}

// Bounds returns the inclusive upper AQI bound of each band below Severe.
func Bounds() []float64 {
	return []float64{50, 100, 200, 300, 400}
}
