package naming

import (
	"fmt"
	"math"
	"strings"
)

// CleanPlaceName reduces a geocoder query like "Udine, Italy" to a
// filename-safe token: the part before the first comma, spaces underscored.
func CleanPlaceName(place string) string {
	name := place
	if idx := strings.Index(name, ","); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// OutputBase derives the output base name. The default base gets a
// place-derived suffix so consecutive runs don't overwrite each other.
func OutputBase(base, place string) string {
	base = strings.TrimSuffix(base, ".gif")
	if base == "" {
		base = "timelapse"
	}
	if base == "timelapse" {
		if clean := CleanPlaceName(place); clean != "" {
			return "timelapse_" + clean
		}
	}
	return base
}

// GIFPath returns the always-produced GIF output path.
func GIFPath(base string) string { return base + ".gif" }

// MP4Path returns the conditional video output path.
func MP4Path(base string) string { return base + ".mp4" }

// AVIPath returns the fallback MJPEG container path.
func AVIPath(base string) string { return base + ".avi" }

// SanitizeCoordinate formats a coordinate for use in filenames and cache
// keys (N/S/E/W instead of sign, 'p' instead of the decimal point).
func SanitizeCoordinate(coord float64, isLat bool) string {
	dir := "E"
	if isLat {
		if coord < 0 {
			dir = "S"
		} else {
			dir = "N"
		}
	} else if coord < 0 {
		dir = "W"
	}
	coordStr := fmt.Sprintf("%.4f", math.Abs(coord))
	coordStr = strings.Replace(coordStr, ".", "p", 1)
	return coordStr + dir
}

// CompositeKey builds the cache key for one fetched composite. Everything
// that changes the returned raster participates: bbox, date window, scale.
func CompositeKey(south, west, north, east float64, startDate, endDate string, scaleM float64) string {
	return fmt.Sprintf("composite_%s-%s_%s-%s_%s_%s_%.0fm",
		SanitizeCoordinate(south, true),
		SanitizeCoordinate(north, true),
		SanitizeCoordinate(west, false),
		SanitizeCoordinate(east, false),
		startDate, endDate, scaleM)
}
