package granite

// Handles are opaque stable indices into the world's object storages.
// They are plain values: comparable, usable as map keys, and valid from
// creation until the matching Destroy call. Using a destroyed handle
// panics with ErrInvalidHandle where the world can detect it.

// ParticleHandle identifies a particle.
type ParticleHandle struct{ value uint32 }

// RigidBodyHandle identifies a dynamic rigid body.
type RigidBodyHandle struct{ value uint32 }

// StaticBodyHandle identifies a static body.
type StaticBodyHandle struct{ value uint32 }

// ObjectKind discriminates the three object storages.
type ObjectKind uint8

const (
	ObjectKindParticle ObjectKind = iota
	ObjectKindRigidBody
	ObjectKindStaticBody
)

// ObjectRef is a kind-tagged handle, used where any of the three object
// kinds may appear (events, broadphase payloads).
type ObjectRef struct {
	Kind  ObjectKind
	Index uint32
}

func particleRef(h ParticleHandle) ObjectRef {
	return ObjectRef{Kind: ObjectKindParticle, Index: h.value}
}

func rigidBodyRef(h RigidBodyHandle) ObjectRef {
	return ObjectRef{Kind: ObjectKindRigidBody, Index: h.value}
}

func staticBodyRef(h StaticBodyHandle) ObjectRef {
	return ObjectRef{Kind: ObjectKindStaticBody, Index: h.value}
}

// AsParticle returns the particle handle if the ref is a particle.
func (r ObjectRef) AsParticle() (ParticleHandle, bool) {
	return ParticleHandle{r.Index}, r.Kind == ObjectKindParticle
}

// AsRigidBody returns the rigid body handle if the ref is a rigid body.
func (r ObjectRef) AsRigidBody() (RigidBodyHandle, bool) {
	return RigidBodyHandle{r.Index}, r.Kind == ObjectKindRigidBody
}

// AsStaticBody returns the static body handle if the ref is a static body.
func (r ObjectRef) AsStaticBody() (StaticBodyHandle, bool) {
	return StaticBodyHandle{r.Index}, r.Kind == ObjectKindStaticBody
}

// dynamicObjectKind admits only the two dynamic kinds. Static bodies
// cannot appear in island object lists by construction.
type dynamicObjectKind uint8

const (
	dynamicKindParticle dynamicObjectKind = iota
	dynamicKindRigidBody
)

type dynamicObject struct {
	kind  dynamicObjectKind
	index uint32
}

func (o dynamicObject) ref() ObjectRef {
	if o.kind == dynamicKindParticle {
		return ObjectRef{Kind: ObjectKindParticle, Index: o.index}
	}
	return ObjectRef{Kind: ObjectKindRigidBody, Index: o.index}
}
