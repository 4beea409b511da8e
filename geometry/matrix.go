// Package geometry implements the warp engine: composite perspective
// transforms, lens corrections and their inverses over float images.
package geometry

import "math"

// Mat3 is a row-major 3x3 matrix for projective transforms.
//
//	| m[0] m[1] m[2] |
//	| m[3] m[4] m[5] |
//	| m[6] m[7] m[8] |
type Mat3 [9]float64

// MatIdentity returns the identity matrix.
func MatIdentity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// MatTranslate returns a translation by (tx, ty).
func MatTranslate(tx, ty float64) Mat3 {
	return Mat3{1, 0, tx, 0, 1, ty, 0, 0, 1}
}

// MatScale returns an anisotropic scale about the origin.
func MatScale(sx, sy float64) Mat3 {
	return Mat3{sx, 0, 0, 0, sy, 0, 0, 0, 1}
}

// MatRotate returns a rotation by angle radians about the origin.
func MatRotate(angle float64) Mat3 {
	sin, cos := math.Sincos(angle)
	return Mat3{cos, -sin, 0, sin, cos, 0, 0, 0, 1}
}

// MatPerspective returns a projective tilt: px and py feed the bottom row,
// bending the horizontal and vertical vanishing points.
func MatPerspective(px, py float64) Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, px, py, 1}
}

// Mul returns a * b (b applied first).
func (a Mat3) Mul(b Mat3) Mat3 {
	var out Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = a[r*3]*b[c] + a[r*3+1]*b[3+c] + a[r*3+2]*b[6+c]
		}
	}
	return out
}

// MulVec applies the matrix to the homogeneous vector (x, y, z).
func (a Mat3) MulVec(x, y, z float64) (float64, float64, float64) {
	return a[0]*x + a[1]*y + a[2]*z,
		a[3]*x + a[4]*y + a[5]*z,
		a[6]*x + a[7]*y + a[8]*z
}

// Apply transforms the point (x, y) with perspective division.
// Returns ok=false when the point lands on the horizon (w ~ 0).
func (a Mat3) Apply(x, y float64) (px, py float64, ok bool) {
	tx, ty, tz := a.MulVec(x, y, 1)
	if math.Abs(tz) < 1e-6 {
		return 0, 0, false
	}
	inv := 1.0 / tz
	return tx * inv, ty * inv, true
}

// Inverse returns the matrix inverse via the adjugate.
// Returns ok=false for singular matrices.
func (a Mat3) Inverse() (Mat3, bool) {
	c00 := a[4]*a[8] - a[5]*a[7]
	c01 := a[5]*a[6] - a[3]*a[8]
	c02 := a[3]*a[7] - a[4]*a[6]

	det := a[0]*c00 + a[1]*c01 + a[2]*c02
	if math.Abs(det) < 1e-12 {
		return Mat3{}, false
	}
	invDet := 1.0 / det

	return Mat3{
		c00 * invDet,
		(a[2]*a[7] - a[1]*a[8]) * invDet,
		(a[1]*a[5] - a[2]*a[4]) * invDet,
		c01 * invDet,
		(a[0]*a[8] - a[2]*a[6]) * invDet,
		(a[2]*a[3] - a[0]*a[5]) * invDet,
		c02 * invDet,
		(a[1]*a[6] - a[0]*a[7]) * invDet,
		(a[0]*a[4] - a[1]*a[3]) * invDet,
	}, true
}
