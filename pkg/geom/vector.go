package geom

import "math"

// Vec2 is a position or direction on the track plane.
type Vec2 struct {
	X float64
	Y float64
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{x, y}
}

// FromAngle returns the unit vector pointing along heading (radians).
func FromAngle(heading float64) Vec2 {
	return Vec2{math.Cos(heading), math.Sin(heading)}
}

func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Mul(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

func (v Vec2) Magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// Scale returns v resized to length k. Vectors too short to have a
// direction are returned unchanged.
func (v Vec2) Scale(k float64) Vec2 {
	if mag := v.Magnitude(); mag > 1e-6 {
		return v.Mul(k / mag)
	}
	return v
}

// Lerp moves v towards o by factor t in [0, 1].
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return v.Add(o.Sub(v).Mul(t))
}

func Distance(from, to Vec2) float64 {
	return from.Sub(to).Magnitude()
}
