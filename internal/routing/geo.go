package routing

import (
	"math"
	"math/rand/v2"
	"strings"
)

const (
	earthRadiusMiles = 3958.8

	// ZoneJitter spreads customers that share a postal code so the solver
	// never sees stacked identical points.
	ZoneJitter = 0.005
	// FallbackJitter is applied around the restaurant for unmapped postal codes.
	FallbackJitter = 0.002
)

// DefaultZones holds approximate centroids for the postal codes the kitchen serves.
var DefaultZones = map[string]LatLng{
	"92831": {Latitude: 33.8797, Longitude: -117.8962},
	"92832": {Latitude: 33.8677, Longitude: -117.9267},
	"92833": {Latitude: 33.8793, Longitude: -117.9601},
	"92835": {Latitude: 33.8993, Longitude: -117.9106},
	"92801": {Latitude: 33.8448, Longitude: -117.9535},
	"92802": {Latitude: 33.8075, Longitude: -117.9237},
	"92804": {Latitude: 33.8186, Longitude: -117.9742},
	"92805": {Latitude: 33.8303, Longitude: -117.9058},
	"92806": {Latitude: 33.8378, Longitude: -117.8701},
	"92807": {Latitude: 33.8479, Longitude: -117.7887},
	"92821": {Latitude: 33.9286, Longitude: -117.8886},
	"92823": {Latitude: 33.9226, Longitude: -117.7990},
	"92870": {Latitude: 33.8810, Longitude: -117.8553},
	"92886": {Latitude: 33.8956, Longitude: -117.7855},
	"92887": {Latitude: 33.8846, Longitude: -117.7317},
	"90620": {Latitude: 33.8409, Longitude: -118.0101},
	"90621": {Latitude: 33.8742, Longitude: -117.9930},
	"92840": {Latitude: 33.7860, Longitude: -117.9322},
	"92841": {Latitude: 33.7867, Longitude: -117.9818},
	"92843": {Latitude: 33.7647, Longitude: -117.9319},
}

// GeoResolver maps postal codes to approximate coordinates. It is not safe for
// concurrent use; each optimization run builds its own.
type GeoResolver struct {
	zones  map[string]LatLng
	origin LatLng
	rng    *rand.Rand
}

// NewGeoResolver creates a resolver over the given zone table. Unknown postal
// codes fall back to origin.
func NewGeoResolver(zones map[string]LatLng, origin LatLng, rng *rand.Rand) *GeoResolver {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	table := make(map[string]LatLng, len(zones))
	for code, c := range zones {
		table[NormalizePostalCode(code)] = c
	}
	return &GeoResolver{zones: table, origin: origin, rng: rng}
}

// Resolve returns jittered coordinates for a postal code. fallback reports
// whether the restaurant location was used because the code is unmapped.
func (g *GeoResolver) Resolve(postalCode string) (coords LatLng, fallback bool) {
	if c, ok := g.zones[NormalizePostalCode(postalCode)]; ok {
		return g.jitter(c, ZoneJitter), false
	}
	return g.jitter(g.origin, FallbackJitter), true
}

func (g *GeoResolver) jitter(c LatLng, spread float64) LatLng {
	return LatLng{
		Latitude:  c.Latitude + (g.rng.Float64()*2-1)*spread,
		Longitude: c.Longitude + (g.rng.Float64()*2-1)*spread,
	}
}

// NormalizePostalCode trims whitespace and drops a ZIP+4 suffix.
func NormalizePostalCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, '-'); i > 0 {
		code = code[:i]
	}
	return code
}

// HaversineMiles returns the great-circle distance between two points in statute miles
func HaversineMiles(a, b LatLng) float64 {
	lat1Rad := a.Latitude * math.Pi / 180
	lat2Rad := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMiles * c
}
