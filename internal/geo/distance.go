package geo

import "math"

// EarthRadiusMiles is the sphere radius used for all distance scoring.
const EarthRadiusMiles = 3959.0

// DistanceMiles returns the haversine great-circle distance in miles between
// two lat/lon points given in degrees. Inputs are not range checked.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := toRadians(lat1)
	φ2 := toRadians(lat2)
	dφ := toRadians(lat2 - lat1)
	dλ := toRadians(lon2 - lon1)

	sinDφ := math.Sin(dφ / 2)
	sinDλ := math.Sin(dλ / 2)

	a := sinDφ*sinDφ + math.Cos(φ1)*math.Cos(φ2)*sinDλ*sinDλ
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
