package tool

import (
	"math"
	"strings"
)

// City is a gazetteer entry.
type City struct {
	Key string
	Lat float64
	Lon float64
}

// Gazetteer is an ordered list of known cities. Lookups by substring return
// the first entry whose key occurs in the query.
type Gazetteer []City

// DefaultGazetteer is the built-in city table.
var DefaultGazetteer = Gazetteer{
	{"manila", 14.5995, 120.9842},
	{"cebu", 10.3157, 123.8854},
	{"baguio", 16.4023, 120.5960},
	{"tokyo", 35.6762, 139.6503},
	{"kyoto", 35.0116, 135.7681},
	{"osaka", 34.6937, 135.5023},
	{"singapore", 1.3521, 103.8198},
	{"london", 51.5074, -0.1278},
	{"paris", 48.8566, 2.3522},
	{"new york", 40.7128, -74.0060},
	{"sydney", -33.8688, 151.2093},
}

// Lookup finds a city by exact (case-insensitive) key.
func (g Gazetteer) Lookup(key string) (City, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, c := range g {
		if c.Key == key {
			return c, true
		}
	}
	return City{}, false
}

// Match returns the first city whose key is a substring of text.
func (g Gazetteer) Match(text string) (City, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return City{}, false
	}
	for _, c := range g {
		if strings.Contains(text, c.Key) {
			return c, true
		}
	}
	return City{}, false
}

// Keys returns the city keys in table order.
func (g Gazetteer) Keys() []string {
	keys := make([]string, len(g))
	for i, c := range g {
		keys[i] = c.Key
	}
	return keys
}

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two cities.
func HaversineKm(a, b City) float64 {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)
	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// titleCase capitalises each space-separated word ("new york" -> "New York").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
