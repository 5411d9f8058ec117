package collision

import "math"

// earthRadiusMeters is the mean earth radius used throughout, matching
// the original implementation's spherical-earth constant exactly.
const earthRadiusMeters = 6371000.0

// metersPerDegree is the equirectangular scale factor used by latlon_to_cart
// and cart_to_latlon. It is an approximation good to sub-meter accuracy
// over scene footprints of tens of meters, never more.
const metersPerDegree = 111320.0

// haversine returns the great-circle distance in meters between two world
// points. Not on the hot path; retained for testing and external callers.
func haversine(a, b WorldPoint) float64 {
	lat1, lon1 := deg2rad(a.Lat), deg2rad(a.Lon)
	lat2, lon2 := deg2rad(b.Lat), deg2rad(b.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// bearing returns the initial bearing in degrees, in [0, 360), from a to b
// using the spherical initial-bearing formula. By convention bearing(p, p)
// is 0 (atan2(0, 0) == 0).
func bearing(a, b WorldPoint) float64 {
	lat1, lon1 := deg2rad(a.Lat), deg2rad(a.Lon)
	lat2, lon2 := deg2rad(b.Lat), deg2rad(b.Lon)
	dLon := lon2 - lon1

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := rad2deg(math.Atan2(y, x))
	if deg < 0 {
		deg += 360
	}
	return deg
}

// offset returns the world point reached from p by travelling distanceM
// meters along bearingDeg, using the spherical forward geodesic.
func offset(p WorldPoint, distanceM, bearingDeg float64) WorldPoint {
	distRad := distanceM / earthRadiusMeters

	latRad := deg2rad(p.Lat)
	lonRad := deg2rad(p.Lon)
	brngRad := deg2rad(bearingDeg)

	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(distRad) +
			math.Cos(latRad)*math.Sin(distRad)*math.Cos(brngRad),
	)

	newLonRad := lonRad + math.Atan2(
		math.Sin(brngRad)*math.Sin(distRad)*math.Cos(latRad),
		math.Cos(distRad)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return WorldPoint{Lat: rad2deg(newLatRad), Lon: rad2deg(newLonRad)}
}

// latlonToCart projects a world point into the local tangent plane anchored
// at ref, using the equirectangular approximation. This and cartToLatlon
// MUST remain exact mutual inverses: do not substitute a more accurate
// projection on only one side of the pair.
func latlonToCart(p, ref WorldPoint) CartPoint {
	lonMeters := metersPerDegree * math.Cos(deg2rad(ref.Lat))
	return CartPoint{
		X: (p.Lon - ref.Lon) * lonMeters,
		Y: (p.Lat - ref.Lat) * metersPerDegree,
	}
}

// cartToLatlon is the inverse of latlonToCart.
func cartToLatlon(c CartPoint, ref WorldPoint) WorldPoint {
	lonMeters := metersPerDegree * math.Cos(deg2rad(ref.Lat))
	return WorldPoint{
		Lat: ref.Lat + c.Y/metersPerDegree,
		Lon: ref.Lon + c.X/lonMeters,
	}
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
