package collision

import (
	"math"
	"testing"
)

func TestVehicleRectangleCornerOrder(t *testing.T) {
	center := WorldPoint{Lat: 0, Lon: 0}
	rect := vehicleRectangle(center, 0, 4.5, 2.0)

	fl, fr, br, bl := rect[0], rect[1], rect[2], rect[3]

	// Heading 0 (north): front corners should be north of back corners.
	if fl.Lat <= bl.Lat {
		t.Errorf("front-left Lat %v should be north of back-left Lat %v", fl.Lat, bl.Lat)
	}
	if fr.Lat <= br.Lat {
		t.Errorf("front-right Lat %v should be north of back-right Lat %v", fr.Lat, br.Lat)
	}
	// Bearings increase clockwise, so the corner at heading+atan2(W/2, L/2)
	// (labelled front-left) lies east of the one at heading-atan2(W/2, L/2)
	// (labelled front-right); likewise back-left lies east of back-right.
	if fl.Lon <= fr.Lon {
		t.Errorf("front-left Lon %v should be east of front-right Lon %v", fl.Lon, fr.Lon)
	}
	if bl.Lon <= br.Lon {
		t.Errorf("back-left Lon %v should be east of back-right Lon %v", bl.Lon, br.Lon)
	}
}

func TestVehicleRectangleDiagonalLength(t *testing.T) {
	center := WorldPoint{Lat: 37.0, Lon: -122.0}
	length, width := 4.5, 2.0
	rect := vehicleRectangle(center, 90, length, width)

	wantDiag := math.Hypot(length/2, width/2)
	for i, corner := range rect {
		d := haversine(center, corner)
		if math.Abs(d-wantDiag) > 0.01 {
			t.Errorf("corner %d distance from center = %v, want ~%v", i, d, wantDiag)
		}
	}
}

func TestNormalizeDeg(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{450, 90},
		{-720, 0},
	}
	for _, tc := range tests {
		if got := normalizeDeg(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("normalizeDeg(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
