package collision

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 planar homography mapping homogeneous pixel
// coordinates (x, y, 1) to homogeneous world coordinates (lat, lon, w), and
// its precomputed inverse. It is constant for the process lifetime: it is
// computed once, at construction, from exactly four (pixel, world)
// correspondences.
type Homography struct {
	h    *mat.Dense // 3x3
	hInv *mat.Dense // 3x3
}

// NewHomography computes H from four 1:1 pixel/world correspondences via
// the standard direct-linear-transform solution for a planar homography,
// and caches its inverse. The four correspondences must be non-collinear
// in both planes; otherwise the coefficient matrix is singular and
// construction fails with ErrConfigError, which is fatal at startup.
func NewHomography(imagePoints [4]ImagePoint, worldPoints [4]WorldPoint) (*Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := imagePoints[i].X, imagePoints[i].Y
		u, v := worldPoints[i].Lat, worldPoints[i].Lon

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		b.SetVec(2*i, u)

		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i+1, v)
	}

	var hVec mat.VecDense
	if err := hVec.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: homography points are degenerate (collinear or coincident): %v", ErrConfigError, err)
	}

	h := mat.NewDense(3, 3, []float64{
		hVec.AtVec(0), hVec.AtVec(1), hVec.AtVec(2),
		hVec.AtVec(3), hVec.AtVec(4), hVec.AtVec(5),
		hVec.AtVec(6), hVec.AtVec(7), 1,
	})

	var hInv mat.Dense
	if err := hInv.Inverse(h); err != nil {
		return nil, fmt.Errorf("%w: homography matrix is not invertible: %v", ErrConfigError, err)
	}

	return &Homography{h: h, hInv: &hInv}, nil
}

// ImageToWorld projects a pixel point to a world point via H. Fails with
// ErrInvalidProjection when the homogeneous w component is zero (the point
// maps to the line at infinity under this homography).
func (hg *Homography) ImageToWorld(p ImagePoint) (WorldPoint, error) {
	lat, lon, w := applyHomography(hg.h, p.X, p.Y)
	if w == 0 {
		return WorldPoint{}, ErrInvalidProjection
	}
	return WorldPoint{Lat: lat / w, Lon: lon / w}, nil
}

// WorldToImage projects a world point back to pixel coordinates via H^-1,
// rounded to the nearest integer pixel.
func (hg *Homography) WorldToImage(p WorldPoint) (ImagePoint, error) {
	x, y, w := applyHomography(hg.hInv, p.Lat, p.Lon)
	if w == 0 {
		return ImagePoint{}, ErrInvalidProjection
	}
	return ImagePoint{X: math.Round(x / w), Y: math.Round(y / w)}, nil
}

func applyHomography(m *mat.Dense, a, b float64) (r0, r1, r2 float64) {
	in := mat.NewVecDense(3, []float64{a, b, 1})
	var out mat.VecDense
	out.MulVec(m, in)
	return out.AtVec(0), out.AtVec(1), out.AtVec(2)
}
