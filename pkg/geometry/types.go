// Package geometry maps instrument stage coordinates onto image pixels.
package geometry

import (
	"errors"
	"math"
)

// ErrSingularTransform is returned when a transform collapses the plane and has no inverse
var ErrSingularTransform = errors.New("transform is not invertible")

// Point2D is a point in either stage or pixel space.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// AffineTransform maps (x, y) to (A·x + B·y + TX, C·x + D·y + TY).
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Translation shifts points by (tx, ty).
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Scale stretches each axis independently. A negative factor mirrors that axis.
func Scale(sx, sy float64) AffineTransform {
	return AffineTransform{A: sx, D: sy}
}

// Apply maps p through the transform.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Compose returns the transform that applies next after t.
func (t AffineTransform) Compose(next AffineTransform) AffineTransform {
	origin := next.Apply(Point2D{X: t.TX, Y: t.TY})
	return AffineTransform{
		A:  next.A*t.A + next.B*t.C,
		B:  next.A*t.B + next.B*t.D,
		C:  next.C*t.A + next.D*t.C,
		D:  next.C*t.B + next.D*t.D,
		TX: origin.X,
		TY: origin.Y,
	}
}

// Inverse returns the transform undoing t.
func (t AffineTransform) Inverse() (AffineTransform, error) {
	det := t.A*t.D - t.B*t.C
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return AffineTransform{}, ErrSingularTransform
	}
	inv := AffineTransform{
		A: t.D / det,
		B: -t.B / det,
		C: -t.C / det,
		D: t.A / det,
	}
	// The linear part of the inverse takes the translation back to the origin
	back := inv.Apply(Point2D{X: t.TX, Y: t.TY})
	inv.TX, inv.TY = -back.X, -back.Y
	return inv, nil
}
