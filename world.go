// Package granite is a 3D rigid-body physics engine built around an
// extended position-based dynamics (XPBD) substepping solver. A world
// holds particles, dynamic rigid bodies and static bodies; every frame
// it rebuilds a dynamic AABB tree with motion-inflated bounds, floods
// the contact graph into islands, sleeps the settled ones, graph-colors
// the rest and solves contacts color by color so chunks of one color
// can run in parallel without locks.
package granite

import (
	"math"

	"github.com/akmonengine/granite/actor"
	"github.com/akmonengine/granite/container"
	"github.com/go-gl/mathgl/mgl64"
)

const velocityDampingFactor = 0.99

// Defaults for zero-valued WorldCreateInfo fields.
const (
	DefaultMaxParticles      = 16384
	DefaultMaxRigidBodies    = 16384
	DefaultMaxStaticBodies   = 16384
	DefaultMaxNeighborPairs  = 65536
	DefaultMaxNeighborGroups = 32768
	DefaultSubstepCount      = 16
)

// ParticleMotionCallback receives one notification per Simulate call
// for every live particle that carries it, awake or asleep, in storage
// order. Callbacks may query the world but must not
// create or destroy objects.
type ParticleMotionCallback interface {
	OnParticleMotion(world *World, particle ParticleHandle)
}

// RigidBodyMotionCallback is the rigid-body counterpart of
// ParticleMotionCallback.
type RigidBodyMotionCallback interface {
	OnRigidBodyMotion(world *World, rigidBody RigidBodyHandle)
}

// WorldCreateInfo sizes a world. Zero fields fall back to defaults;
// zero tree node maxima derive from the object maxima.
type WorldCreateInfo struct {
	MaxParticles              int
	MaxRigidBodies            int
	MaxStaticBodies           int
	MaxAABBTreeLeafNodes      int
	MaxAABBTreeInternalNodes  int
	MaxNeighborPairs          int
	MaxNeighborGroups         int
	GravitationalAcceleration mgl64.Vec3
}

// WorldSimulateInfo parameterizes one Simulate call.
type WorldSimulateInfo struct {
	DeltaTime    float64
	SubstepCount int
	// ThreadPool runs solver chunks; nil runs them inline.
	ThreadPool ThreadPool
}

// ParticleCreateInfo describes a new particle. CollisionFlags and
// CollisionMask filter particle-particle pairs; leaving both zero gives
// the particle flag bit 0 and a mask that accepts every flag.
type ParticleCreateInfo struct {
	Position       mgl64.Vec3
	Velocity       mgl64.Vec3
	Radius         float64
	Mass           float64
	Material       actor.Material
	CollisionFlags uint32
	CollisionMask  uint32
	MotionCallback ParticleMotionCallback
}

// RigidBodyCreateInfo describes a new dynamic rigid body.
type RigidBodyCreateInfo struct {
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3
	Mass            float64
	InertiaTensor   mgl64.Mat3
	Shape           actor.Shape
	Material        actor.Material
	MotionCallback  RigidBodyMotionCallback
}

// StaticBodyCreateInfo describes a new immovable body.
type StaticBodyCreateInfo struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Shape       actor.Shape
	Material    actor.Material
}

type particleData struct {
	node             *treeNode
	neighborPairs    []*neighborPair
	motionCallback   ParticleMotionCallback
	radius           float64
	inverseMass      float64
	material         actor.Material
	collisionFlags   uint32
	collisionMask    uint32
	previousPosition mgl64.Vec3
	position         mgl64.Vec3
	velocity         mgl64.Vec3
	wakingMotion     float64
	neighborCount    int
	marked           bool
	awake            bool
}

type rigidBodyData struct {
	node                *treeNode
	neighborPairs       []*neighborPair
	motionCallback      RigidBodyMotionCallback
	shape               actor.Shape
	inverseMass         float64
	inverseInertia      mgl64.Mat3 // body frame
	material            actor.Material
	previousPosition    mgl64.Vec3
	position            mgl64.Vec3
	velocity            mgl64.Vec3
	previousOrientation mgl64.Quat
	orientation         mgl64.Quat
	angularVelocity     mgl64.Vec3
	wakingMotion        float64
	neighborCount       int
	marked              bool
	awake               bool
}

type staticBodyData struct {
	node      *treeNode
	shape     actor.Shape
	material  actor.Material
	transform actor.Transform
}

// World owns the object storages, the AABB tree and every per-frame
// scratch structure. All scratch memory is allocated here, once;
// Simulate clears it but never grows it.
type World struct {
	particles    *objectStorage[particleData]
	rigidBodies  *objectStorage[rigidBodyData]
	staticBodies *objectStorage[staticBodyData]
	tree         *aabbTree
	gravity      mgl64.Vec3

	neighborPairs    *container.List[neighborPair]
	neighborPairPtrs *container.List[*neighborPair]
	groups           *neighborGroupStorage
	awakeGroups      *container.List[uint32]
	coloringBits     *container.BitSet
	coloringFringe   *container.Queue[*neighborPair]
	colorGroups      *colorGroupStorage
	contacts         *container.List[contact]
	chunks           *container.List[solveChunk]
	positionTasks    *container.List[positionSolveTask]
	velocityTasks    *container.List[velocitySolveTask]
	latch            countdownLatch

	events Events
}

// NewWorld builds a world with every storage and per-frame structure
// allocated up front.
func NewWorld(info WorldCreateInfo) (*World, error) {
	if info.MaxParticles <= 0 {
		info.MaxParticles = DefaultMaxParticles
	}
	if info.MaxRigidBodies <= 0 {
		info.MaxRigidBodies = DefaultMaxRigidBodies
	}
	if info.MaxStaticBodies <= 0 {
		info.MaxStaticBodies = DefaultMaxStaticBodies
	}
	maxObjects := info.MaxParticles + info.MaxRigidBodies + info.MaxStaticBodies
	if info.MaxAABBTreeLeafNodes <= 0 {
		info.MaxAABBTreeLeafNodes = maxObjects
	}
	if info.MaxAABBTreeInternalNodes <= 0 {
		info.MaxAABBTreeInternalNodes = info.MaxAABBTreeLeafNodes
	}
	if info.MaxNeighborPairs <= 0 {
		info.MaxNeighborPairs = DefaultMaxNeighborPairs
	}
	if info.MaxNeighborGroups <= 0 {
		info.MaxNeighborGroups = DefaultMaxNeighborGroups
	}
	w := &World{
		particles:    newObjectStorage[particleData](info.MaxParticles),
		rigidBodies:  newObjectStorage[rigidBodyData](info.MaxRigidBodies),
		staticBodies: newObjectStorage[staticBodyData](info.MaxStaticBodies),
		tree:         newAABBTree(info.MaxAABBTreeLeafNodes, info.MaxAABBTreeInternalNodes),
		gravity:      info.GravitationalAcceleration,

		neighborPairs:    container.NewList[neighborPair](info.MaxNeighborPairs),
		neighborPairPtrs: container.NewList[*neighborPair](2 * info.MaxNeighborPairs),
		groups: newNeighborGroupStorage(
			info.MaxParticles+info.MaxRigidBodies,
			info.MaxNeighborPairs,
			info.MaxNeighborGroups),
		awakeGroups:    container.NewList[uint32](info.MaxNeighborGroups),
		coloringBits:   container.NewBitSet(MaxColors),
		coloringFringe: container.NewQueue[*neighborPair](info.MaxNeighborPairs),
		colorGroups:    newColorGroupStorage(info.MaxNeighborPairs),
		contacts:       container.NewList[contact](info.MaxNeighborPairs),
		chunks:         container.NewList[solveChunk](info.MaxNeighborPairs),
		positionTasks:  container.NewList[positionSolveTask](info.MaxNeighborPairs),
		velocityTasks:  container.NewList[velocitySolveTask](info.MaxNeighborPairs),

		events: newEvents(),
	}
	return w, nil
}

// Events exposes the world's event hub for listener subscription.
func (w *World) Events() *Events {
	return &w.events
}

// CreateParticle adds a particle, failing with ErrCapacityExceeded
// when the particle storage or the tree leaf pool is full.
func (w *World) CreateParticle(info ParticleCreateInfo) (ParticleHandle, error) {
	radius := mgl64.Vec3{info.Radius, info.Radius, info.Radius}
	node, err := w.tree.createLeaf(actor.AABB{
		Min: info.Position.Sub(radius),
		Max: info.Position.Add(radius),
	}, ObjectRef{})
	if err != nil {
		return ParticleHandle{}, err
	}
	flags, mask := info.CollisionFlags, info.CollisionMask
	if flags == 0 && mask == 0 {
		flags, mask = 1, ^uint32(0)
	}
	index, err := w.particles.create(particleData{
		node:             node,
		motionCallback:   info.MotionCallback,
		radius:           info.Radius,
		inverseMass:      1 / info.Mass,
		material:         info.Material,
		collisionFlags:   flags,
		collisionMask:    mask,
		previousPosition: info.Position,
		position:         info.Position,
		velocity:         info.Velocity,
		wakingMotion:     wakingMotionInitializer,
		awake:            true,
	})
	if err != nil {
		w.tree.destroyLeaf(node)
		return ParticleHandle{}, err
	}
	handle := ParticleHandle{index}
	node.payload = particleRef(handle)
	return handle, nil
}

// DestroyParticle releases a particle and its tree leaf.
func (w *World) DestroyParticle(particle ParticleHandle) {
	w.tree.destroyLeaf(w.particles.at(particle.value).node)
	w.particles.destroy(particle.value)
	w.events.dropObject(particleRef(particle))
}

// CreateRigidBody adds a dynamic rigid body.
func (w *World) CreateRigidBody(info RigidBodyCreateInfo) (RigidBodyHandle, error) {
	orientation := info.Orientation
	if orientation == (mgl64.Quat{}) {
		orientation = mgl64.QuatIdent()
	}
	orientation = orientation.Normalize()
	transform := actor.NewTransform(info.Position, orientation)
	node, err := w.tree.createLeaf(info.Shape.Bounds(transform), ObjectRef{})
	if err != nil {
		return RigidBodyHandle{}, err
	}
	index, err := w.rigidBodies.create(rigidBodyData{
		node:                node,
		motionCallback:      info.MotionCallback,
		shape:               info.Shape,
		inverseMass:         1 / info.Mass,
		inverseInertia:      info.InertiaTensor.Inv(),
		material:            info.Material,
		previousPosition:    info.Position,
		position:            info.Position,
		velocity:            info.Velocity,
		previousOrientation: orientation,
		orientation:         orientation,
		angularVelocity:     info.AngularVelocity,
		wakingMotion:        wakingMotionInitializer,
		awake:               true,
	})
	if err != nil {
		w.tree.destroyLeaf(node)
		return RigidBodyHandle{}, err
	}
	handle := RigidBodyHandle{index}
	node.payload = rigidBodyRef(handle)
	return handle, nil
}

// DestroyRigidBody releases a rigid body and its tree leaf.
func (w *World) DestroyRigidBody(rigidBody RigidBodyHandle) {
	w.tree.destroyLeaf(w.rigidBodies.at(rigidBody.value).node)
	w.rigidBodies.destroy(rigidBody.value)
	w.events.dropObject(rigidBodyRef(rigidBody))
}

// CreateStaticBody adds an immovable body.
func (w *World) CreateStaticBody(info StaticBodyCreateInfo) (StaticBodyHandle, error) {
	orientation := info.Orientation
	if orientation == (mgl64.Quat{}) {
		orientation = mgl64.QuatIdent()
	}
	transform := actor.NewTransform(info.Position, orientation)
	node, err := w.tree.createLeaf(info.Shape.Bounds(transform), ObjectRef{})
	if err != nil {
		return StaticBodyHandle{}, err
	}
	index, err := w.staticBodies.create(staticBodyData{
		node:      node,
		shape:     info.Shape,
		material:  info.Material,
		transform: transform,
	})
	if err != nil {
		w.tree.destroyLeaf(node)
		return StaticBodyHandle{}, err
	}
	handle := StaticBodyHandle{index}
	node.payload = staticBodyRef(handle)
	return handle, nil
}

// DestroyStaticBody releases a static body and its tree leaf.
func (w *World) DestroyStaticBody(staticBody StaticBodyHandle) {
	w.tree.destroyLeaf(w.staticBodies.at(staticBody.value).node)
	w.staticBodies.destroy(staticBody.value)
	w.events.dropObject(staticBodyRef(staticBody))
}

func (w *World) IsParticleAwake(particle ParticleHandle) bool {
	return w.particles.at(particle.value).awake
}

func (w *World) IsRigidBodyAwake(rigidBody RigidBodyHandle) bool {
	return w.rigidBodies.at(rigidBody.value).awake
}

func (w *World) ParticlePosition(particle ParticleHandle) mgl64.Vec3 {
	return w.particles.at(particle.value).position
}

func (w *World) ParticleVelocity(particle ParticleHandle) mgl64.Vec3 {
	return w.particles.at(particle.value).velocity
}

func (w *World) ParticleWakingMotion(particle ParticleHandle) float64 {
	return w.particles.at(particle.value).wakingMotion
}

func (w *World) RigidBodyPosition(rigidBody RigidBodyHandle) mgl64.Vec3 {
	return w.rigidBodies.at(rigidBody.value).position
}

func (w *World) RigidBodyVelocity(rigidBody RigidBodyHandle) mgl64.Vec3 {
	return w.rigidBodies.at(rigidBody.value).velocity
}

func (w *World) RigidBodyOrientation(rigidBody RigidBodyHandle) mgl64.Quat {
	return w.rigidBodies.at(rigidBody.value).orientation
}

func (w *World) RigidBodyWakingMotion(rigidBody RigidBodyHandle) float64 {
	return w.rigidBodies.at(rigidBody.value).wakingMotion
}

// Simulate advances the world by DeltaTime. An error aborts the frame,
// leaving object state where the last completed phase put it.
func (w *World) Simulate(info WorldSimulateInfo) error {
	substepCount := info.SubstepCount
	if substepCount <= 0 {
		substepCount = DefaultSubstepCount
	}
	if err := w.buildAABBTree(info.DeltaTime); err != nil {
		return err
	}
	w.clearNeighborPairs()
	if err := w.findNeighborPairs(); err != nil {
		return err
	}
	if err := w.assignNeighborPairs(); err != nil {
		return err
	}
	if err := w.findNeighborGroups(); err != nil {
		return err
	}
	w.recordCollisionPairs()
	w.awakeGroups.Clear()
	w.colorGroups.clear()
	for groupIndex := 0; groupIndex != w.groups.groupCount(); groupIndex++ {
		if w.updateGroupAwakeStates(groupIndex) {
			if err := w.awakeGroups.PushBack(uint32(groupIndex)); err != nil {
				return ErrCapacityExceeded
			}
			if err := w.colorNeighborGroup(groupIndex); err != nil {
				return err
			}
		}
	}
	if err := w.colorGroups.reserve(); err != nil {
		return err
	}
	w.assignColorGroups()

	h := info.DeltaTime / float64(substepCount)
	hInverse := 1 / h
	state := &solveState{
		latch:                &w.latch,
		particles:            w.particles,
		rigidBodies:          w.rigidBodies,
		staticBodies:         w.staticBodies,
		inverseDeltaTime:     hInverse,
		restitutionThreshold: 2 * w.gravity.Len() * h,
	}
	if err := w.buildSolveChunks(state); err != nil {
		return err
	}

	damping := math.Pow(velocityDampingFactor, h)
	smoothing := 1 - math.Pow(1-wakingMotionSmoothingFactor, h)
	positionTask := func(i int) Task { return w.positionTasks.At(i) }
	velocityTask := func(i int) Task { return w.velocityTasks.At(i) }
	for i := 0; i != substepCount; i++ {
		w.integrate(h, damping, smoothing)
		w.solveColorGroups(info.ThreadPool, positionTask)
		w.deriveVelocities(hInverse)
		w.solveColorGroups(info.ThreadPool, velocityTask)
	}
	w.callParticleMotionCallbacks()
	w.callRigidBodyMotionCallbacks()
	w.events.flush()
	return nil
}

// recordCollisionPairs feeds the event hub the frame's candidate
// pairs; pairs between sleeping objects stay invisible so settled
// stacks do not emit stay events forever.
func (w *World) recordCollisionPairs() {
	for _, pair := range w.neighborPairs.Slice() {
		var first, second ObjectRef
		awake := false
		switch pair.kind {
		case pairParticleParticle:
			first = ObjectRef{Kind: ObjectKindParticle, Index: pair.objects[0]}
			second = ObjectRef{Kind: ObjectKindParticle, Index: pair.objects[1]}
			awake = w.particles.at(pair.objects[0]).awake || w.particles.at(pair.objects[1]).awake
		case pairParticleRigidBody:
			first = ObjectRef{Kind: ObjectKindParticle, Index: pair.objects[0]}
			second = ObjectRef{Kind: ObjectKindRigidBody, Index: pair.objects[1]}
			awake = w.particles.at(pair.objects[0]).awake || w.rigidBodies.at(pair.objects[1]).awake
		case pairParticleStaticBody:
			first = ObjectRef{Kind: ObjectKindParticle, Index: pair.objects[0]}
			second = ObjectRef{Kind: ObjectKindStaticBody, Index: pair.objects[1]}
			awake = w.particles.at(pair.objects[0]).awake
		case pairRigidBodyRigidBody:
			first = ObjectRef{Kind: ObjectKindRigidBody, Index: pair.objects[0]}
			second = ObjectRef{Kind: ObjectKindRigidBody, Index: pair.objects[1]}
			awake = w.rigidBodies.at(pair.objects[0]).awake || w.rigidBodies.at(pair.objects[1]).awake
		case pairRigidBodyStaticBody:
			first = ObjectRef{Kind: ObjectKindRigidBody, Index: pair.objects[0]}
			second = ObjectRef{Kind: ObjectKindStaticBody, Index: pair.objects[1]}
			awake = w.rigidBodies.at(pair.objects[0]).awake
		}
		if awake {
			w.events.recordPair(first, second)
		}
	}
}

// buildSolveChunks splits each color's pairs into chunks and lays the
// position and velocity tasks over them. Chunk contact slices are
// carved from one flat contact list.
func (w *World) buildSolveChunks(state *solveState) error {
	w.contacts.Clear()
	w.chunks.Clear()
	w.positionTasks.Clear()
	w.velocityTasks.Clear()
	for color := 0; color != MaxColors; color++ {
		group := w.colorGroups.group(color)
		if len(group) == 0 {
			break
		}
		for j := 0; j < len(group); j += maxSolveChunkSize {
			size := min(len(group)-j, maxSolveChunkSize)
			base := w.contacts.Len()
			if err := w.contacts.Resize(base + size); err != nil {
				return ErrCapacityExceeded
			}
			if err := w.chunks.PushBack(solveChunk{
				pairs:    group[j : j+size],
				contacts: w.contacts.Slice()[base : base+size],
			}); err != nil {
				return ErrCapacityExceeded
			}
			chunk := w.chunks.At(w.chunks.Len() - 1)
			if err := w.positionTasks.PushBack(positionSolveTask{state: state, chunk: chunk}); err != nil {
				return ErrCapacityExceeded
			}
			if err := w.velocityTasks.PushBack(velocitySolveTask{state: state, chunk: chunk}); err != nil {
				return ErrCapacityExceeded
			}
		}
	}
	return nil
}

// solveColorGroups dispatches one substep pass: chunks of a color run
// concurrently, colors run serially behind the latch.
func (w *World) solveColorGroups(pool ThreadPool, task func(chunkIndex int) Task) {
	chunkIndex := 0
	for color := 0; color != MaxColors; color++ {
		group := w.colorGroups.group(color)
		if len(group) == 0 {
			break
		}
		chunkCount := (len(group) + maxSolveChunkSize - 1) / maxSolveChunkSize
		w.latch.reset(chunkCount)
		for k := 0; k != chunkCount; k++ {
			if pool == nil {
				task(chunkIndex + k).Run(0)
			} else {
				pool.Push(task(chunkIndex + k))
			}
		}
		w.latch.wait()
		chunkIndex += chunkCount
	}
}

// integrate advances every object of every awake island by one substep
// and refreshes its waking motion.
func (w *World) integrate(h, damping, smoothing float64) {
	for _, groupIndex := range w.awakeGroups.Slice() {
		group := w.groups.group(int(groupIndex))
		for i := group.objectsBegin; i != group.objectsEnd; i++ {
			object := w.groups.object(int(i))
			if object.kind == dynamicKindParticle {
				w.integrateParticle(w.particles.at(object.index), h, damping, smoothing)
			} else {
				w.integrateRigidBody(w.rigidBodies.at(object.index), h, damping, smoothing)
			}
		}
	}
}

func (w *World) integrateParticle(data *particleData, h, damping, smoothing float64) {
	data.previousPosition = data.position
	data.velocity = data.velocity.Add(w.gravity.Mul(h)).Mul(damping)
	data.position = data.position.Add(data.velocity.Mul(h))
	data.wakingMotion = math.Min(
		(1-smoothing)*data.wakingMotion+smoothing*data.velocity.Dot(data.velocity),
		wakingMotionLimit)
}

func (w *World) integrateRigidBody(data *rigidBodyData, h, damping, smoothing float64) {
	data.previousPosition = data.position
	data.previousOrientation = data.orientation
	data.velocity = data.velocity.Add(w.gravity.Mul(h)).Mul(damping)
	data.position = data.position.Add(data.velocity.Mul(h))
	data.angularVelocity = data.angularVelocity.Mul(damping)
	dq := mgl64.Quat{W: 0, V: data.angularVelocity.Mul(0.5 * h)}.Mul(data.orientation)
	data.orientation = data.orientation.Add(dq).Normalize()
	data.wakingMotion = math.Min(
		(1-smoothing)*data.wakingMotion+
			smoothing*(data.velocity.Dot(data.velocity)+
				data.angularVelocity.Dot(data.angularVelocity)),
		wakingMotionLimit)
}

// deriveVelocities recovers substep velocities from the position
// change, interpreting the orientation delta as the shortest arc.
func (w *World) deriveVelocities(hInverse float64) {
	for _, groupIndex := range w.awakeGroups.Slice() {
		group := w.groups.group(int(groupIndex))
		for i := group.objectsBegin; i != group.objectsEnd; i++ {
			object := w.groups.object(int(i))
			if object.kind == dynamicKindParticle {
				data := w.particles.at(object.index)
				data.velocity = data.position.Sub(data.previousPosition).Mul(hInverse)
			} else {
				data := w.rigidBodies.at(object.index)
				data.velocity = data.position.Sub(data.previousPosition).Mul(hInverse)
				deltaOrientation := data.orientation.Mul(data.previousOrientation.Conjugate())
				data.angularVelocity = deltaOrientation.V.Mul(2 * hInverse)
				if deltaOrientation.W < 0 {
					data.angularVelocity = data.angularVelocity.Mul(-1)
				}
			}
		}
	}
}

func (w *World) callParticleMotionCallbacks() {
	w.particles.forEach(func(index uint32, data *particleData) {
		if data.motionCallback != nil {
			data.motionCallback.OnParticleMotion(w, ParticleHandle{index})
		}
	})
}

func (w *World) callRigidBodyMotionCallbacks() {
	w.rigidBodies.forEach(func(index uint32, data *rigidBodyData) {
		if data.motionCallback != nil {
			data.motionCallback.OnRigidBodyMotion(w, RigidBodyHandle{index})
		}
	})
}
