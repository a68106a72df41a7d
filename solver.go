package granite

import (
	"math"

	"github.com/akmonengine/granite/actor"
	"github.com/akmonengine/granite/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// Chunks are the unit of parallelism: up to maxSolveChunkSize pairs of
// one color, processed sequentially within one task.
const maxSolveChunkSize = 16

// contact is the per-pair state carried from the position pass to the
// velocity pass of the same substep. A zero normal means the position
// pass found no contact.
type contact struct {
	normal             mgl64.Vec3
	relativePositions  [2]mgl64.Vec3
	separatingVelocity float64
	lambdaN            float64
	lambdaT            float64
}

// solveState is shared by all solver tasks of one Simulate call. The
// coloring invariant makes object access race-free; nothing here is
// locked.
type solveState struct {
	latch                *countdownLatch
	particles            *objectStorage[particleData]
	rigidBodies          *objectStorage[rigidBodyData]
	staticBodies         *objectStorage[staticBodyData]
	inverseDeltaTime     float64
	restitutionThreshold float64
}

type solveChunk struct {
	pairs    []*neighborPair
	contacts []contact
}

func rigidTransform(data *rigidBodyData) actor.Transform {
	return actor.Transform{
		Position:        data.position,
		Rotation:        data.orientation,
		InverseRotation: data.orientation.Conjugate(),
	}
}

func worldInverseInertia(data *rigidBodyData) mgl64.Mat3 {
	rotation := data.orientation.Mat4().Mat3()
	return rotation.Mul3(data.inverseInertia).Mul3(rotation.Transpose())
}

func rigidVelocityAt(data *rigidBodyData, relativePosition mgl64.Vec3) mgl64.Vec3 {
	return data.velocity.Add(data.angularVelocity.Cross(relativePosition))
}

// applyRigidPositionDelta shifts a rigid body and rotates it by the
// small-angle quaternion update dq = 0.5*(0,dw)*q, renormalizing.
func applyRigidPositionDelta(data *rigidBodyData, deltaPosition, deltaOrientation mgl64.Vec3) {
	data.position = data.position.Add(deltaPosition)
	dq := mgl64.Quat{W: 0, V: deltaOrientation}.Mul(data.orientation).Scale(0.5)
	data.orientation = data.orientation.Add(dq).Normalize()
}

// advectedRelativePosition maps a contact arm back through the
// substep's rotation so tangential drift is measured frame-relative.
func advectedRelativePosition(data *rigidBodyData, relativePosition mgl64.Vec3) mgl64.Vec3 {
	return data.previousOrientation.Mul(data.orientation.Conjugate()).Rotate(relativePosition)
}

func perpendicular(v, normal mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(normal.Mul(v.Dot(normal)))
}

// positionSolveTask resolves penetration and positional (static)
// friction for one chunk.
type positionSolveTask struct {
	state *solveState
	chunk *solveChunk
}

func (t *positionSolveTask) Run(int) {
	for i, pair := range t.chunk.pairs {
		var c contact
		var ok bool
		switch pair.kind {
		case pairParticleParticle:
			c, ok = t.solveParticleParticle(pair)
		case pairParticleRigidBody:
			c, ok = t.solveParticleRigidBody(pair)
		case pairParticleStaticBody:
			c, ok = t.solveParticleStaticBody(pair)
		case pairRigidBodyRigidBody:
			c, ok = t.solveRigidBodyRigidBody(pair)
		case pairRigidBodyStaticBody:
			c, ok = t.solveRigidBodyStaticBody(pair)
		}
		if ok {
			t.chunk.contacts[i] = c
		} else {
			t.chunk.contacts[i] = contact{}
		}
	}
	t.state.latch.countDown()
}

func (t *positionSolveTask) solveParticleParticle(pair *neighborPair) (contact, bool) {
	a := t.state.particles.at(pair.objects[0])
	b := t.state.particles.at(pair.objects[1])
	displacement := a.position.Sub(b.position)
	distance2 := displacement.Dot(displacement)
	contactDistance := a.radius + b.radius
	if distance2 >= contactDistance*contactDistance {
		return contact{}, false
	}
	var normal mgl64.Vec3
	var separation float64
	if distance2 == 0 {
		// particles coincide, pick arbitrary contact normal
		normal = mgl64.Vec3{1, 0, 0}
		separation = -contactDistance
	} else {
		distance := math.Sqrt(distance2)
		normal = displacement.Mul(1 / distance)
		separation = distance - contactDistance
	}
	c := contact{
		normal:             normal,
		separatingVelocity: normal.Dot(a.velocity.Sub(b.velocity)),
	}
	distancePerImpulse := a.inverseMass + b.inverseMass
	c.lambdaN = -separation / distancePerImpulse
	impulse := normal.Mul(c.lambdaN)
	a.position = a.position.Add(impulse.Mul(a.inverseMass))
	b.position = b.position.Sub(impulse.Mul(b.inverseMass))
	return c, true
}

func (t *positionSolveTask) solveParticleRigidBody(pair *neighborPair) (contact, bool) {
	a := t.state.particles.at(pair.objects[0])
	b := t.state.rigidBodies.at(pair.objects[1])
	geometry, ok := actor.FindParticleShapeContact(a.position, a.radius, b.shape, rigidTransform(b))
	if !ok {
		return contact{}, false
	}
	relativePosition := geometry.Position.Sub(b.position)
	c := contact{
		normal:            geometry.Normal,
		relativePositions: [2]mgl64.Vec3{{}, relativePosition},
		separatingVelocity: geometry.Normal.Dot(
			a.velocity.Sub(rigidVelocityAt(b, relativePosition))),
	}
	inverseInertia := worldInverseInertia(b)
	separationSolution := constraint.SolvePositional(constraint.PositionalProblem{
		Direction:         c.normal,
		Distance:          -geometry.Separation,
		RelativePositions: [2]mgl64.Vec3{{}, relativePosition},
		InverseMasses:     [2]float64{a.inverseMass, b.inverseMass},
		InverseInertias:   [2]mgl64.Mat3{{}, inverseInertia},
	})
	c.lambdaN = separationSolution.DeltaLambda
	contactMovement := a.position.Sub(a.previousPosition).Sub(
		b.position.Add(relativePosition).Sub(
			b.previousPosition.Add(advectedRelativePosition(b, relativePosition))))
	tangentialMovement := perpendicular(contactMovement, c.normal)
	deltaPositions := separationSolution.DeltaPositions
	deltaOrientation := separationSolution.DeltaOrientations[1]
	if tangentialMovement != (mgl64.Vec3{}) {
		correctionDistance := tangentialMovement.Len()
		frictionSolution := constraint.SolvePositional(constraint.PositionalProblem{
			Direction:         tangentialMovement.Mul(-1 / correctionDistance),
			Distance:          correctionDistance,
			RelativePositions: [2]mgl64.Vec3{{}, relativePosition},
			InverseMasses:     [2]float64{a.inverseMass, b.inverseMass},
			InverseInertias:   [2]mgl64.Mat3{{}, inverseInertia},
		})
		staticFriction := actor.CombineStaticFriction(a.material, b.material)
		if frictionSolution.DeltaLambda < staticFriction*c.lambdaN {
			c.lambdaT = frictionSolution.DeltaLambda
			deltaPositions[0] = deltaPositions[0].Add(frictionSolution.DeltaPositions[0])
			deltaPositions[1] = deltaPositions[1].Add(frictionSolution.DeltaPositions[1])
			deltaOrientation = deltaOrientation.Add(frictionSolution.DeltaOrientations[1])
		}
	}
	a.position = a.position.Add(deltaPositions[0])
	applyRigidPositionDelta(b, deltaPositions[1], deltaOrientation)
	return c, true
}

func (t *positionSolveTask) solveParticleStaticBody(pair *neighborPair) (contact, bool) {
	a := t.state.particles.at(pair.objects[0])
	b := t.state.staticBodies.at(pair.objects[1])
	geometry, ok := actor.FindParticleContact(a.position, a.radius, b.shape, b.transform)
	if !ok {
		return contact{}, false
	}
	c := contact{
		normal:             geometry.Normal,
		separatingVelocity: geometry.Normal.Dot(a.velocity),
	}
	separationSolution := constraint.SolvePositional(constraint.PositionalProblem{
		Direction:     c.normal,
		Distance:      -geometry.Separation,
		InverseMasses: [2]float64{a.inverseMass, 0},
	})
	c.lambdaN = separationSolution.DeltaLambda
	contactMovement := a.position.Sub(a.previousPosition)
	tangentialMovement := perpendicular(contactMovement, c.normal)
	deltaPosition := separationSolution.DeltaPositions[0]
	if tangentialMovement != (mgl64.Vec3{}) {
		correctionDistance := tangentialMovement.Len()
		frictionSolution := constraint.SolvePositional(constraint.PositionalProblem{
			Direction:     tangentialMovement.Mul(-1 / correctionDistance),
			Distance:      correctionDistance,
			InverseMasses: [2]float64{a.inverseMass, 0},
		})
		staticFriction := actor.CombineStaticFriction(a.material, b.material)
		if frictionSolution.DeltaLambda < staticFriction*c.lambdaN {
			c.lambdaT = frictionSolution.DeltaLambda
			deltaPosition = deltaPosition.Add(frictionSolution.DeltaPositions[0])
		}
	}
	a.position = a.position.Add(deltaPosition)
	return c, true
}

func (t *positionSolveTask) solveRigidBodyRigidBody(pair *neighborPair) (contact, bool) {
	a := t.state.rigidBodies.at(pair.objects[0])
	b := t.state.rigidBodies.at(pair.objects[1])
	geometry, ok := actor.FindShapeContact(a.shape, rigidTransform(a), b.shape, rigidTransform(b))
	if !ok {
		return contact{}, false
	}
	relativePositions := [2]mgl64.Vec3{
		geometry.Position.Sub(a.position),
		geometry.Position.Sub(b.position),
	}
	c := contact{
		normal:            geometry.Normal,
		relativePositions: relativePositions,
		separatingVelocity: geometry.Normal.Dot(
			rigidVelocityAt(a, relativePositions[0]).Sub(
				rigidVelocityAt(b, relativePositions[1]))),
	}
	inverseInertias := [2]mgl64.Mat3{worldInverseInertia(a), worldInverseInertia(b)}
	inverseMasses := [2]float64{a.inverseMass, b.inverseMass}
	separationSolution := constraint.SolvePositional(constraint.PositionalProblem{
		Direction:         c.normal,
		Distance:          -geometry.Separation,
		RelativePositions: relativePositions,
		InverseMasses:     inverseMasses,
		InverseInertias:   inverseInertias,
	})
	c.lambdaN = separationSolution.DeltaLambda
	contactMovement := a.position.Add(relativePositions[0]).Sub(
		a.previousPosition.Add(advectedRelativePosition(a, relativePositions[0]))).Sub(
		b.position.Add(relativePositions[1]).Sub(
			b.previousPosition.Add(advectedRelativePosition(b, relativePositions[1]))))
	tangentialMovement := perpendicular(contactMovement, c.normal)
	deltaPositions := separationSolution.DeltaPositions
	deltaOrientations := separationSolution.DeltaOrientations
	if tangentialMovement != (mgl64.Vec3{}) {
		correctionDistance := tangentialMovement.Len()
		frictionSolution := constraint.SolvePositional(constraint.PositionalProblem{
			Direction:         tangentialMovement.Mul(-1 / correctionDistance),
			Distance:          correctionDistance,
			RelativePositions: relativePositions,
			InverseMasses:     inverseMasses,
			InverseInertias:   inverseInertias,
		})
		staticFriction := actor.CombineStaticFriction(a.material, b.material)
		if frictionSolution.DeltaLambda < staticFriction*c.lambdaN {
			c.lambdaT = frictionSolution.DeltaLambda
			for i := 0; i != 2; i++ {
				deltaPositions[i] = deltaPositions[i].Add(frictionSolution.DeltaPositions[i])
				deltaOrientations[i] = deltaOrientations[i].Add(frictionSolution.DeltaOrientations[i])
			}
		}
	}
	applyRigidPositionDelta(a, deltaPositions[0], deltaOrientations[0])
	applyRigidPositionDelta(b, deltaPositions[1], deltaOrientations[1])
	return c, true
}

func (t *positionSolveTask) solveRigidBodyStaticBody(pair *neighborPair) (contact, bool) {
	a := t.state.rigidBodies.at(pair.objects[0])
	b := t.state.staticBodies.at(pair.objects[1])
	geometry, ok := actor.FindShapeContact(a.shape, rigidTransform(a), b.shape, b.transform)
	if !ok {
		return contact{}, false
	}
	relativePosition := geometry.Position.Sub(a.position)
	c := contact{
		normal:            geometry.Normal,
		relativePositions: [2]mgl64.Vec3{relativePosition, {}},
		separatingVelocity: geometry.Normal.Dot(
			rigidVelocityAt(a, relativePosition)),
	}
	inverseInertia := worldInverseInertia(a)
	separationSolution := constraint.SolvePositional(constraint.PositionalProblem{
		Direction:         c.normal,
		Distance:          -geometry.Separation,
		RelativePositions: [2]mgl64.Vec3{relativePosition, {}},
		InverseMasses:     [2]float64{a.inverseMass, 0},
		InverseInertias:   [2]mgl64.Mat3{inverseInertia, {}},
	})
	c.lambdaN = separationSolution.DeltaLambda
	contactMovement := a.position.Add(relativePosition).Sub(
		a.previousPosition.Add(advectedRelativePosition(a, relativePosition)))
	tangentialMovement := perpendicular(contactMovement, c.normal)
	deltaPosition := separationSolution.DeltaPositions[0]
	deltaOrientation := separationSolution.DeltaOrientations[0]
	if tangentialMovement != (mgl64.Vec3{}) {
		correctionDistance := tangentialMovement.Len()
		frictionSolution := constraint.SolvePositional(constraint.PositionalProblem{
			Direction:         tangentialMovement.Mul(-1 / correctionDistance),
			Distance:          correctionDistance,
			RelativePositions: [2]mgl64.Vec3{relativePosition, {}},
			InverseMasses:     [2]float64{a.inverseMass, 0},
			InverseInertias:   [2]mgl64.Mat3{inverseInertia, {}},
		})
		staticFriction := actor.CombineStaticFriction(a.material, b.material)
		if frictionSolution.DeltaLambda < staticFriction*c.lambdaN {
			c.lambdaT = frictionSolution.DeltaLambda
			deltaPosition = deltaPosition.Add(frictionSolution.DeltaPositions[0])
			deltaOrientation = deltaOrientation.Add(frictionSolution.DeltaOrientations[0])
		}
	}
	applyRigidPositionDelta(a, deltaPosition, deltaOrientation)
	return c, true
}

// bodyView adapts the three object kinds to the velocity kernel.
// Exactly one pointer is set for dynamic objects; both nil means
// static.
type bodyView struct {
	particle *particleData
	rigid    *rigidBodyData
	material actor.Material
}

func (s *solveState) bodyViews(pair *neighborPair) (bodyView, bodyView) {
	switch pair.kind {
	case pairParticleParticle:
		a := s.particles.at(pair.objects[0])
		b := s.particles.at(pair.objects[1])
		return bodyView{particle: a, material: a.material}, bodyView{particle: b, material: b.material}
	case pairParticleRigidBody:
		a := s.particles.at(pair.objects[0])
		b := s.rigidBodies.at(pair.objects[1])
		return bodyView{particle: a, material: a.material}, bodyView{rigid: b, material: b.material}
	case pairParticleStaticBody:
		a := s.particles.at(pair.objects[0])
		b := s.staticBodies.at(pair.objects[1])
		return bodyView{particle: a, material: a.material}, bodyView{material: b.material}
	case pairRigidBodyRigidBody:
		a := s.rigidBodies.at(pair.objects[0])
		b := s.rigidBodies.at(pair.objects[1])
		return bodyView{rigid: a, material: a.material}, bodyView{rigid: b, material: b.material}
	default:
		a := s.rigidBodies.at(pair.objects[0])
		b := s.staticBodies.at(pair.objects[1])
		return bodyView{rigid: a, material: a.material}, bodyView{material: b.material}
	}
}

func (v bodyView) velocityAt(relativePosition mgl64.Vec3) mgl64.Vec3 {
	switch {
	case v.particle != nil:
		return v.particle.velocity
	case v.rigid != nil:
		return rigidVelocityAt(v.rigid, relativePosition)
	default:
		return mgl64.Vec3{}
	}
}

func (v bodyView) inverseInertiaWorld() mgl64.Mat3 {
	if v.rigid != nil {
		return worldInverseInertia(v.rigid)
	}
	return mgl64.Mat3{}
}

func (v bodyView) generalizedInverseMass(inverseInertia mgl64.Mat3, relativePosition, direction mgl64.Vec3) float64 {
	switch {
	case v.particle != nil:
		return v.particle.inverseMass
	case v.rigid != nil:
		return constraint.GeneralizedInverseMass(v.rigid.inverseMass, inverseInertia, relativePosition, direction)
	default:
		return 0
	}
}

func (v bodyView) applyImpulse(inverseInertia mgl64.Mat3, relativePosition, impulse mgl64.Vec3) {
	switch {
	case v.particle != nil:
		v.particle.velocity = v.particle.velocity.Add(impulse.Mul(v.particle.inverseMass))
	case v.rigid != nil:
		v.rigid.velocity = v.rigid.velocity.Add(impulse.Mul(v.rigid.inverseMass))
		v.rigid.angularVelocity = v.rigid.angularVelocity.Add(
			inverseInertia.Mul3x1(relativePosition.Cross(impulse)))
	}
}

// velocitySolveTask applies dynamic friction and restitution for one
// chunk, reusing the contacts recorded by the position pass.
type velocitySolveTask struct {
	state *solveState
	chunk *solveChunk
}

func (t *velocitySolveTask) Run(int) {
	for i, pair := range t.chunk.pairs {
		c := &t.chunk.contacts[i]
		if c.normal == (mgl64.Vec3{}) {
			continue
		}
		a, b := t.state.bodyViews(pair)
		t.solveContact(a, b, c)
	}
	t.state.latch.countDown()
}

func (t *velocitySolveTask) solveContact(a, b bodyView, c *contact) {
	relativeVelocity := a.velocityAt(c.relativePositions[0]).Sub(
		b.velocityAt(c.relativePositions[1]))
	separatingVelocity := c.normal.Dot(relativeVelocity)
	tangentialVelocity := relativeVelocity.Sub(c.normal.Mul(separatingVelocity))
	deltaVelocity := t.frictionVelocityUpdate(a, b, c, tangentialVelocity)
	deltaVelocity = deltaVelocity.Add(t.restitutionVelocityUpdate(a, b, c, separatingVelocity))
	if deltaVelocity == (mgl64.Vec3{}) {
		return
	}
	inverseInertiaA := a.inverseInertiaWorld()
	inverseInertiaB := b.inverseInertiaWorld()
	direction := deltaVelocity.Normalize()
	w1 := a.generalizedInverseMass(inverseInertiaA, c.relativePositions[0], direction)
	w2 := b.generalizedInverseMass(inverseInertiaB, c.relativePositions[1], direction)
	impulse := deltaVelocity.Mul(1 / (w1 + w2))
	a.applyImpulse(inverseInertiaA, c.relativePositions[0], impulse)
	b.applyImpulse(inverseInertiaB, c.relativePositions[1], impulse.Mul(-1))
}

func (t *velocitySolveTask) frictionVelocityUpdate(a, b bodyView, c *contact, tangentialVelocity mgl64.Vec3) mgl64.Vec3 {
	if tangentialVelocity == (mgl64.Vec3{}) {
		return mgl64.Vec3{}
	}
	frictionCoefficient := actor.CombineDynamicFriction(a.material, b.material)
	tangentialSpeed := tangentialVelocity.Len()
	direction := tangentialVelocity.Mul(-1 / tangentialSpeed)
	return direction.Mul(math.Min(
		frictionCoefficient*c.lambdaN*t.state.inverseDeltaTime,
		tangentialSpeed))
}

func (t *velocitySolveTask) restitutionVelocityUpdate(a, b bodyView, c *contact, separatingVelocity float64) mgl64.Vec3 {
	restitutionCoefficient := 0.0
	if math.Abs(separatingVelocity) > t.state.restitutionThreshold {
		restitutionCoefficient = actor.CombineRestitution(a.material, b.material)
	}
	// post-solve normal velocity becomes max(-e*vn_begin, 0): the
	// contact never ends up attracting
	return c.normal.Mul(-separatingVelocity +
		math.Max(-restitutionCoefficient*c.separatingVelocity, 0))
}
