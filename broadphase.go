package granite

import (
	"github.com/akmonengine/granite/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Leaf bounds are inflated so an object cannot outrun its broadphase
// volume within one frame: a velocity term and a gravity term, each
// with a safety factor of two.
const (
	constantSafetyTerm   = 0.0
	velocitySafetyFactor = 2.0
	gravitySafetyFactor  = 2.0
)

func (w *World) buildAABBTree(deltaTime float64) error {
	gravitySafetyTerm := gravitySafetyFactor * w.gravity.Len() * deltaTime * deltaTime
	w.particles.forEach(func(_ uint32, data *particleData) {
		margin := data.radius + constantSafetyTerm +
			velocitySafetyFactor*data.velocity.Len()*deltaTime +
			gravitySafetyTerm
		halfExtents := mgl64.Vec3{margin, margin, margin}
		data.node.bounds = actor.AABB{
			Min: data.position.Sub(halfExtents),
			Max: data.position.Add(halfExtents),
		}
	})
	w.rigidBodies.forEach(func(_ uint32, data *rigidBodyData) {
		data.node.bounds = data.shape.Bounds(rigidTransform(data)).Expand(
			constantSafetyTerm +
				velocitySafetyFactor*data.velocity.Len()*deltaTime +
				gravitySafetyTerm)
	})
	return w.tree.build()
}

func (w *World) clearNeighborPairs() {
	w.particles.forEach(func(_ uint32, data *particleData) {
		data.neighborCount = 0
	})
	w.rigidBodies.forEach(func(_ uint32, data *rigidBodyData) {
		data.neighborCount = 0
	})
	w.neighborPairPtrs.Clear()
	w.neighborPairs.Clear()
	w.groups.clear()
}

// findNeighborPairs enumerates overlapping leaves and flattens the 3x3
// payload-kind dispatch into the five admissible pair kinds, counting
// neighbors on each dynamic participant as it goes.
func (w *World) findNeighborPairs() error {
	var err error
	push := func(pair neighborPair) {
		if err == nil {
			pair.color = colorUnmarked
			err = w.neighborPairs.PushBack(pair)
		}
	}
	w.tree.forEachOverlappingLeafPair(func(first, second ObjectRef) {
		if first.Kind > second.Kind {
			first, second = second, first
		}
		switch {
		case first.Kind == ObjectKindParticle && second.Kind == ObjectKindParticle:
			a := w.particles.at(first.Index)
			b := w.particles.at(second.Index)
			if a.collisionFlags&b.collisionMask == 0 || b.collisionFlags&a.collisionMask == 0 {
				return
			}
			push(neighborPair{
				objects: [2]uint32{first.Index, second.Index},
				kind:    pairParticleParticle,
			})
			a.neighborCount++
			b.neighborCount++
		case first.Kind == ObjectKindParticle && second.Kind == ObjectKindRigidBody:
			push(neighborPair{
				objects: [2]uint32{first.Index, second.Index},
				kind:    pairParticleRigidBody,
			})
			w.particles.at(first.Index).neighborCount++
			w.rigidBodies.at(second.Index).neighborCount++
		case first.Kind == ObjectKindParticle && second.Kind == ObjectKindStaticBody:
			push(neighborPair{
				objects: [2]uint32{first.Index, second.Index},
				kind:    pairParticleStaticBody,
			})
			w.particles.at(first.Index).neighborCount++
		case first.Kind == ObjectKindRigidBody && second.Kind == ObjectKindRigidBody:
			push(neighborPair{
				objects: [2]uint32{first.Index, second.Index},
				kind:    pairRigidBodyRigidBody,
			})
			w.rigidBodies.at(first.Index).neighborCount++
			w.rigidBodies.at(second.Index).neighborCount++
		case first.Kind == ObjectKindRigidBody && second.Kind == ObjectKindStaticBody:
			push(neighborPair{
				objects: [2]uint32{first.Index, second.Index},
				kind:    pairRigidBodyStaticBody,
			})
			w.rigidBodies.at(first.Index).neighborCount++
		default:
			// static-static, nothing to solve
		}
	})
	if err != nil {
		return ErrCapacityExceeded
	}
	return nil
}

// assignNeighborPairs carves each dynamic object's back-pointer list
// out of the flat pointer buffer sized by the counts of the discovery
// pass, then walks the pair table once to fill them.
func (w *World) assignNeighborPairs() error {
	var err error
	carve := func(neighborCount int) []*neighborPair {
		base := w.neighborPairPtrs.Len()
		if err == nil {
			err = w.neighborPairPtrs.Resize(base + neighborCount)
		}
		if err != nil {
			return nil
		}
		return w.neighborPairPtrs.Slice()[base : base+neighborCount]
	}
	w.particles.forEach(func(_ uint32, data *particleData) {
		data.neighborPairs = carve(data.neighborCount)
		data.neighborCount = 0
	})
	w.rigidBodies.forEach(func(_ uint32, data *rigidBodyData) {
		data.neighborPairs = carve(data.neighborCount)
		data.neighborCount = 0
	})
	if err != nil {
		return ErrCapacityExceeded
	}
	pairs := w.neighborPairs.Slice()
	for i := range pairs {
		pair := &pairs[i]
		switch pair.kind {
		case pairParticleParticle:
			w.assignParticlePair(pair.objects[0], pair)
			w.assignParticlePair(pair.objects[1], pair)
		case pairParticleRigidBody:
			w.assignParticlePair(pair.objects[0], pair)
			w.assignRigidBodyPair(pair.objects[1], pair)
		case pairParticleStaticBody:
			w.assignParticlePair(pair.objects[0], pair)
		case pairRigidBodyRigidBody:
			w.assignRigidBodyPair(pair.objects[0], pair)
			w.assignRigidBodyPair(pair.objects[1], pair)
		case pairRigidBodyStaticBody:
			w.assignRigidBodyPair(pair.objects[0], pair)
		}
	}
	return nil
}

func (w *World) assignParticlePair(index uint32, pair *neighborPair) {
	data := w.particles.at(index)
	data.neighborPairs[data.neighborCount] = pair
	data.neighborCount++
}

func (w *World) assignRigidBodyPair(index uint32, pair *neighborPair) {
	data := w.rigidBodies.at(index)
	data.neighborPairs[data.neighborCount] = pair
	data.neighborCount++
}

func (w *World) particleNeighborPairs(index uint32) []*neighborPair {
	data := w.particles.at(index)
	return data.neighborPairs[:data.neighborCount]
}

func (w *World) rigidBodyNeighborPairs(index uint32) []*neighborPair {
	data := w.rigidBodies.at(index)
	return data.neighborPairs[:data.neighborCount]
}
