package collision

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	p := WorldPoint{Lat: 37.7749, Lon: -122.4194}
	if d := haversine(p, p); d != 0 {
		t.Errorf("haversine(p, p) = %v, want 0", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Roughly one degree of latitude near the equator, ~111.2 km.
	a := WorldPoint{Lat: 0, Lon: 0}
	b := WorldPoint{Lat: 1, Lon: 0}
	got := haversine(a, b)
	want := 111195.0
	if math.Abs(got-want) > 500 {
		t.Errorf("haversine(0,0 -> 1,0) = %v, want ~%v", got, want)
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	origin := WorldPoint{Lat: 0, Lon: 0}
	tests := []struct {
		name string
		to   WorldPoint
		want float64
	}{
		{"north", WorldPoint{Lat: 1, Lon: 0}, 0},
		{"east", WorldPoint{Lat: 0, Lon: 1}, 90},
		{"south", WorldPoint{Lat: -1, Lon: 0}, 180},
		{"west", WorldPoint{Lat: 0, Lon: -1}, 270},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := bearing(origin, tc.to)
			if math.Abs(got-tc.want) > 1.0 {
				t.Errorf("bearing(origin, %v) = %v, want ~%v", tc.to, got, tc.want)
			}
		})
	}
}

func TestBearingSamePointIsZero(t *testing.T) {
	p := WorldPoint{Lat: 10, Lon: 20}
	if got := bearing(p, p); got != 0 {
		t.Errorf("bearing(p, p) = %v, want 0", got)
	}
}

func TestOffsetRoundTripsWithBearing(t *testing.T) {
	origin := WorldPoint{Lat: 40.0, Lon: -73.0}
	dest := offset(origin, 100, 45)

	d := haversine(origin, dest)
	if math.Abs(d-100) > 1.0 {
		t.Errorf("offset travelled %v meters, want ~100", d)
	}

	b := bearing(origin, dest)
	if math.Abs(b-45) > 1.0 {
		t.Errorf("offset bearing = %v, want ~45", b)
	}
}

func TestLatlonCartRoundTrip(t *testing.T) {
	ref := WorldPoint{Lat: 51.5074, Lon: -0.1278}
	tests := []WorldPoint{
		ref,
		{Lat: 51.5080, Lon: -0.1270},
		{Lat: 51.5060, Lon: -0.1300},
	}
	for _, p := range tests {
		cart := latlonToCart(p, ref)
		back := cartToLatlon(cart, ref)
		if math.Abs(back.Lat-p.Lat) > 1e-9 || math.Abs(back.Lon-p.Lon) > 1e-9 {
			t.Errorf("round trip for %v = %v, want original point back", p, back)
		}
	}
}

func TestLatlonToCartOriginIsZero(t *testing.T) {
	ref := WorldPoint{Lat: 10, Lon: 20}
	c := latlonToCart(ref, ref)
	if c.X != 0 || c.Y != 0 {
		t.Errorf("latlonToCart(ref, ref) = %v, want (0,0)", c)
	}
}
