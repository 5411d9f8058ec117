package collision

import "math"

// vehicleRectangle produces the four ground-plane corners of an oriented
// rectangle centered at center, oriented along headingDeg, with the given
// length and width in meters. Corners are returned front-left, front-right,
// back-right, back-left, each at distance sqrt((L/2)^2 + (W/2)^2) from the
// center at bearing (heading + theta) mod 360, where theta is
// +atan2(W/2, L/2) for FL, -atan2(W/2, L/2) for FR, 180+atan2(...) for BR,
// and 180-atan2(...) for BL.
func vehicleRectangle(center WorldPoint, headingDeg, length, width float64) Rectangle {
	halfLength := length / 2
	halfWidth := width / 2
	dist := math.Hypot(halfLength, halfWidth)
	halfAngle := rad2deg(math.Atan2(halfWidth, halfLength))

	fl := offset(center, dist, normalizeDeg(headingDeg+halfAngle))
	fr := offset(center, dist, normalizeDeg(headingDeg-halfAngle))
	br := offset(center, dist, normalizeDeg(headingDeg+180+halfAngle))
	bl := offset(center, dist, normalizeDeg(headingDeg+180-halfAngle))

	return Rectangle{fl, fr, br, bl}
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
