package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB.
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap. Touching boxes do not count;
// broadphase bounds are motion-inflated so the open test is enough.
func (a AABB) Overlaps(other AABB) bool {
	return a.Min.X() < other.Max.X() && other.Min.X() < a.Max.X() &&
		a.Min.Y() < other.Max.Y() && other.Min.Y() < a.Max.Y() &&
		a.Min.Z() < other.Max.Z() && other.Min.Z() < a.Max.Z()
}

// Contains checks if other lies fully inside the AABB.
func (a AABB) Contains(other AABB) bool {
	return a.Min.X() <= other.Min.X() && other.Max.X() <= a.Max.X() &&
		a.Min.Y() <= other.Min.Y() && other.Max.Y() <= a.Max.Y() &&
		a.Min.Z() <= other.Min.Z() && other.Max.Z() <= a.Max.Z()
}

// Union returns the smallest AABB enclosing both boxes.
func (a AABB) Union(other AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{
			math.Min(a.Min.X(), other.Min.X()),
			math.Min(a.Min.Y(), other.Min.Y()),
			math.Min(a.Min.Z(), other.Min.Z()),
		},
		Max: mgl64.Vec3{
			math.Max(a.Max.X(), other.Max.X()),
			math.Max(a.Max.Y(), other.Max.Y()),
			math.Max(a.Max.Z(), other.Max.Z()),
		},
	}
}

// Expand grows the box by amount on every side.
func (a AABB) Expand(amount float64) AABB {
	d := mgl64.Vec3{amount, amount, amount}
	return AABB{Min: a.Min.Sub(d), Max: a.Max.Add(d)}
}

// Center returns the box center.
func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Extents returns the box dimensions.
func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min)
}

// Volume returns the box volume.
func (a AABB) Volume() float64 {
	d := a.Extents()
	return d.X() * d.Y() * d.Z()
}
