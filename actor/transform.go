package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a rigid placement in 3D space. InverseRotation
// is carried alongside Rotation so contact queries never pay for a
// quaternion inversion.
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform builds a transform from a position and a unit rotation.
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	rotation = rotation.Normalize()
	return Transform{
		Position:        position,
		Rotation:        rotation,
		InverseRotation: rotation.Conjugate(),
	}
}

// WorldPoint maps a local point into world space.
func (t Transform) WorldPoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Position)
}

// LocalPoint maps a world point into local space.
func (t Transform) LocalPoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.InverseRotation.Rotate(p.Sub(t.Position))
}

// WorldDirection maps a local direction into world space.
func (t Transform) WorldDirection(d mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(d)
}

// LocalDirection maps a world direction into local space.
func (t Transform) LocalDirection(d mgl64.Vec3) mgl64.Vec3 {
	return t.InverseRotation.Rotate(d)
}
