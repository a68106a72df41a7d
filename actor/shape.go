package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind tags the shape variant held by a Shape.
type ShapeKind uint8

const (
	ShapeKindBall ShapeKind = iota
	ShapeKindBox
)

// Ball is a sphere centered on its transform.
type Ball struct {
	Radius float64
}

// Box is an oriented box defined by its half-extents.
type Box struct {
	HalfExtents mgl64.Vec3
}

// Shape is the collision shape of a rigid or static body: one of Ball
// or Box, selected by Kind.
type Shape struct {
	Kind ShapeKind
	Ball Ball
	Box  Box
}

func BallShape(radius float64) Shape {
	return Shape{Kind: ShapeKindBall, Ball: Ball{Radius: radius}}
}

func BoxShape(halfExtents mgl64.Vec3) Shape {
	return Shape{Kind: ShapeKindBox, Box: Box{HalfExtents: halfExtents}}
}

// Bounds returns the world-space AABB of the shape at the given
// transform.
func (s Shape) Bounds(t Transform) AABB {
	switch s.Kind {
	case ShapeKindBall:
		r := mgl64.Vec3{s.Ball.Radius, s.Ball.Radius, s.Ball.Radius}
		return AABB{Min: t.Position.Sub(r), Max: t.Position.Add(r)}
	default:
		he := s.Box.HalfExtents
		corner := t.WorldPoint(mgl64.Vec3{-he.X(), -he.Y(), -he.Z()})
		bounds := AABB{Min: corner, Max: corner}
		for i := 1; i < 8; i++ {
			c := mgl64.Vec3{he.X(), he.Y(), he.Z()}
			if i&1 == 0 {
				c[0] = -c[0]
			}
			if i&2 == 0 {
				c[1] = -c[1]
			}
			if i&4 == 0 {
				c[2] = -c[2]
			}
			corner = t.WorldPoint(c)
			bounds = bounds.Union(AABB{Min: corner, Max: corner})
		}
		return bounds
	}
}

// ParticleContact is positionless contact geometry: spheres need no
// contact point because they carry no rotational state.
type ParticleContact struct {
	Normal     mgl64.Vec3
	Separation float64
}

// ShapeContact is positionful contact geometry. Normal points from the
// second object toward the first; Separation is negative while
// penetrating; Position is the world-space contact point.
type ShapeContact struct {
	Position   mgl64.Vec3
	Normal     mgl64.Vec3
	Separation float64
}

// FindParticleContact returns the positionless contact geometry of a
// particle against a shape, or false when they do not touch.
func FindParticleContact(position mgl64.Vec3, radius float64, s Shape, t Transform) (ParticleContact, bool) {
	contact, ok := FindParticleShapeContact(position, radius, s, t)
	if !ok {
		return ParticleContact{}, false
	}
	return ParticleContact{Normal: contact.Normal, Separation: contact.Separation}, true
}

// FindParticleShapeContact returns the positionful contact geometry of
// a particle against a shape, or false when they do not touch.
func FindParticleShapeContact(position mgl64.Vec3, radius float64, s Shape, t Transform) (ShapeContact, bool) {
	switch s.Kind {
	case ShapeKindBall:
		normal, separation, ok := ballContact(position, radius, t.Position, s.Ball.Radius)
		if !ok {
			return ShapeContact{}, false
		}
		point := t.Position.Add(normal.Mul(s.Ball.Radius + 0.5*separation))
		return ShapeContact{Position: point, Normal: normal, Separation: separation}, true
	default:
		return particleBoxContact(position, radius, s.Box, t)
	}
}

// FindShapeContact returns the contact geometry between two shapes, or
// false when they do not touch. Normal points from b toward a.
func FindShapeContact(a Shape, ta Transform, b Shape, tb Transform) (ShapeContact, bool) {
	switch {
	case a.Kind == ShapeKindBall && b.Kind == ShapeKindBall:
		normal, separation, ok := ballContact(ta.Position, a.Ball.Radius, tb.Position, b.Ball.Radius)
		if !ok {
			return ShapeContact{}, false
		}
		point := tb.Position.Add(normal.Mul(b.Ball.Radius + 0.5*separation))
		return ShapeContact{Position: point, Normal: normal, Separation: separation}, true
	case a.Kind == ShapeKindBall:
		return particleBoxContact(ta.Position, a.Ball.Radius, b.Box, tb)
	case b.Kind == ShapeKindBall:
		contact, ok := particleBoxContact(tb.Position, b.Ball.Radius, a.Box, ta)
		if !ok {
			return ShapeContact{}, false
		}
		contact.Normal = contact.Normal.Mul(-1)
		return contact, true
	default:
		return boxBoxContact(a.Box, ta, b.Box, tb)
	}
}

// ballContact computes sphere-sphere geometry with the normal pointing
// from b toward a. Coinciding centers fall back to an arbitrary fixed
// normal at full penetration.
func ballContact(positionA mgl64.Vec3, radiusA float64, positionB mgl64.Vec3, radiusB float64) (mgl64.Vec3, float64, bool) {
	displacement := positionA.Sub(positionB)
	distance2 := displacement.Dot(displacement)
	contactDistance := radiusA + radiusB
	if distance2 >= contactDistance*contactDistance {
		return mgl64.Vec3{}, 0, false
	}
	if distance2 == 0 {
		return mgl64.Vec3{1, 0, 0}, -contactDistance, true
	}
	distance := math.Sqrt(distance2)
	return displacement.Mul(1 / distance), distance - contactDistance, true
}

// particleBoxContact computes sphere-vs-box geometry in the box's local
// frame. The normal points from the box toward the sphere. A center
// inside the box resolves through the nearest face.
func particleBoxContact(position mgl64.Vec3, radius float64, box Box, t Transform) (ShapeContact, bool) {
	he := box.HalfExtents
	local := t.LocalPoint(position)
	clamped := mgl64.Vec3{
		clamp(local.X(), -he.X(), he.X()),
		clamp(local.Y(), -he.Y(), he.Y()),
		clamp(local.Z(), -he.Z(), he.Z()),
	}
	displacement := local.Sub(clamped)
	distance2 := displacement.Dot(displacement)
	if distance2 == 0 {
		faceDistances := [6]float64{
			local.X() + he.X(), he.X() - local.X(),
			local.Y() + he.Y(), he.Y() - local.Y(),
			local.Z() + he.Z(), he.Z() - local.Z(),
		}
		face := 0
		for i := 1; i < 6; i++ {
			if faceDistances[i] < faceDistances[face] {
				face = i
			}
		}
		axis := face >> 1
		sign := -1.0
		if face&1 == 1 {
			sign = 1.0
		}
		var localNormal, facePoint mgl64.Vec3
		localNormal[axis] = sign
		facePoint = local
		facePoint[axis] = sign * he[axis]
		return ShapeContact{
			Position:   t.WorldPoint(facePoint),
			Normal:     t.WorldDirection(localNormal),
			Separation: -faceDistances[face] - radius,
		}, true
	}
	if distance2 >= radius*radius {
		return ShapeContact{}, false
	}
	distance := math.Sqrt(distance2)
	return ShapeContact{
		Position:   t.WorldPoint(clamped),
		Normal:     t.WorldDirection(displacement.Mul(1 / distance)),
		Separation: distance - radius,
	}, true
}

// boxBoxContact runs a separating-axis test over the 15 candidate axes
// of two oriented boxes. The least-overlap axis gives the normal and
// separation; face-dominant contacts take the penetration-weighted
// average of the incident face's penetrating vertices as the contact
// point, edge-edge contacts the midpoint of the two support points.
func boxBoxContact(a Box, ta Transform, b Box, tb Transform) (ShapeContact, bool) {
	axesA := boxAxes(ta)
	axesB := boxAxes(tb)
	d := ta.Position.Sub(tb.Position)

	bestOverlap := math.MaxFloat64
	bestAxis := mgl64.Vec3{}
	bestIndex := -1
	test := func(axis mgl64.Vec3, index int) bool {
		length2 := axis.Dot(axis)
		if length2 < 1e-12 {
			// near-parallel edge cross product, no information
			return true
		}
		axis = axis.Mul(1 / math.Sqrt(length2))
		ra := projectionRadius(a.HalfExtents, axesA, axis)
		rb := projectionRadius(b.HalfExtents, axesB, axis)
		distance := axis.Dot(d)
		overlap := ra + rb - math.Abs(distance)
		if overlap <= 0 {
			return false
		}
		if overlap < bestOverlap {
			if distance < 0 {
				axis = axis.Mul(-1)
			}
			bestOverlap = overlap
			bestAxis = axis
			bestIndex = index
		}
		return true
	}
	for i := 0; i < 3; i++ {
		if !test(axesA[i], i) {
			return ShapeContact{}, false
		}
	}
	for i := 0; i < 3; i++ {
		if !test(axesB[i], 3+i) {
			return ShapeContact{}, false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !test(axesA[i].Cross(axesB[j]), 6+3*i+j) {
				return ShapeContact{}, false
			}
		}
	}

	normal := bestAxis // points from b toward a
	var position mgl64.Vec3
	switch {
	case bestIndex < 3:
		// reference face on a, incident face on b
		position = boxFaceContactPoint(a, ta, normal.Mul(-1), b, tb)
	case bestIndex < 6:
		// reference face on b, incident face on a
		position = boxFaceContactPoint(b, tb, normal, a, ta)
	default:
		sa := boxSupport(a, ta, normal.Mul(-1))
		sb := boxSupport(b, tb, normal)
		position = sa.Add(sb).Mul(0.5)
	}
	return ShapeContact{Position: position, Normal: normal, Separation: -bestOverlap}, true
}

func boxAxes(t Transform) [3]mgl64.Vec3 {
	return [3]mgl64.Vec3{
		t.WorldDirection(mgl64.Vec3{1, 0, 0}),
		t.WorldDirection(mgl64.Vec3{0, 1, 0}),
		t.WorldDirection(mgl64.Vec3{0, 0, 1}),
	}
}

// projectionRadius is the half-length of the box's projection onto a
// unit axis.
func projectionRadius(halfExtents mgl64.Vec3, axes [3]mgl64.Vec3, axis mgl64.Vec3) float64 {
	return halfExtents.X()*math.Abs(axis.Dot(axes[0])) +
		halfExtents.Y()*math.Abs(axis.Dot(axes[1])) +
		halfExtents.Z()*math.Abs(axis.Dot(axes[2]))
}

// boxSupport returns the world-space vertex of the box farthest along
// direction.
func boxSupport(box Box, t Transform, direction mgl64.Vec3) mgl64.Vec3 {
	local := t.LocalDirection(direction)
	he := box.HalfExtents
	support := mgl64.Vec3{he.X(), he.Y(), he.Z()}
	for i := 0; i < 3; i++ {
		if local[i] < 0 {
			support[i] = -support[i]
		}
	}
	return t.WorldPoint(support)
}

// boxFaceVertices returns the four world-space vertices of the box face
// whose outward normal is most aligned with direction.
func boxFaceVertices(box Box, t Transform, direction mgl64.Vec3) [4]mgl64.Vec3 {
	local := t.LocalDirection(direction)
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(local[i]) > math.Abs(local[axis]) {
			axis = i
		}
	}
	sign := 1.0
	if local[axis] < 0 {
		sign = -1.0
	}
	he := box.HalfExtents
	u, v := (axis+1)%3, (axis+2)%3
	var vertices [4]mgl64.Vec3
	for i := 0; i < 4; i++ {
		corner := mgl64.Vec3{}
		corner[axis] = sign * he[axis]
		if i&1 == 0 {
			corner[u] = he[u]
		} else {
			corner[u] = -he[u]
		}
		if i&2 == 0 {
			corner[v] = he[v]
		} else {
			corner[v] = -he[v]
		}
		vertices[i] = t.WorldPoint(corner)
	}
	return vertices
}

// boxFaceContactPoint resolves a face-dominant contact: the incident
// box's most anti-parallel face is clipped against the side planes of
// the reference face, and the surviving vertices that penetrate the
// reference plane are averaged weighted by depth. refDir is the
// outward direction of the reference face and must be one of refT's
// face axes.
func boxFaceContactPoint(ref Box, refT Transform, refDir mgl64.Vec3, inc Box, incT Transform) mgl64.Vec3 {
	local := refT.LocalDirection(refDir)
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(local[i]) > math.Abs(local[axis]) {
			axis = i
		}
	}
	sign := 1.0
	if local[axis] < 0 {
		sign = -1.0
	}
	faceCenterLocal := mgl64.Vec3{}
	faceCenterLocal[axis] = sign * ref.HalfExtents[axis]
	faceCenter := refT.WorldPoint(faceCenterLocal)

	incident := boxFaceVertices(inc, incT, refDir.Mul(-1))
	// a quad gains at most one vertex per clip plane
	var polygonBuffer, scratchBuffer [8]mgl64.Vec3
	polygon := append(polygonBuffer[:0], incident[0], incident[1], incident[3], incident[2])
	scratch := scratchBuffer[:0]
	for _, side := range [2]int{(axis + 1) % 3, (axis + 2) % 3} {
		sideAxis := mgl64.Vec3{}
		sideAxis[side] = 1
		sideDir := refT.WorldDirection(sideAxis)
		polygon, scratch = clipPolygon(polygon, scratch, faceCenter.Add(sideDir.Mul(ref.HalfExtents[side])), sideDir)
		polygon, scratch = clipPolygon(polygon, scratch, faceCenter.Sub(sideDir.Mul(ref.HalfExtents[side])), sideDir.Mul(-1))
	}
	if len(polygon) == 0 {
		return boxSupport(inc, incT, refDir.Mul(-1))
	}
	var sum mgl64.Vec3
	var weight float64
	deepest := polygon[0]
	deepestDepth := math.Inf(-1)
	for _, v := range polygon {
		depth := refDir.Dot(faceCenter.Sub(v))
		if depth > deepestDepth {
			deepestDepth = depth
			deepest = v
		}
		if depth > 0 {
			sum = sum.Add(v.Mul(depth))
			weight += depth
		}
	}
	if weight > 0 {
		return sum.Mul(1 / weight)
	}
	return deepest
}

// clipPolygon keeps the part of polygon on the back side of the plane
// through planePoint with outward normal planeNormal, writing into
// out. Returns the clipped polygon and the recycled input buffer.
func clipPolygon(polygon, out []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) ([]mgl64.Vec3, []mgl64.Vec3) {
	out = out[:0]
	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]
		currentDistance := planeNormal.Dot(current.Sub(planePoint))
		nextDistance := planeNormal.Dot(next.Sub(planePoint))
		if currentDistance <= 0 {
			out = append(out, current)
		}
		if (currentDistance < 0) != (nextDistance < 0) && currentDistance != nextDistance {
			t := currentDistance / (currentDistance - nextDistance)
			out = append(out, current.Add(next.Sub(current).Mul(t)))
		}
	}
	return out, polygon
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
