package granite

// pairKind enumerates the admissible combinations of the two object
// kinds in a neighbor pair. The canonical order stores the particle
// before the rigid body and any dynamic object before a static body;
// static-static never pairs.
type pairKind uint8

const (
	pairParticleParticle pairKind = iota
	pairParticleRigidBody
	pairParticleStaticBody
	pairRigidBodyRigidBody
	pairRigidBodyStaticBody
)

// Colors partition the pairs of an island so that no two pairs sharing
// an object land in the same color. Two values are reserved as
// sentinels, leaving MaxColors usable colors.
const (
	colorUnmarked uint16 = 0xFFFF
	colorMarked   uint16 = 0xFFFE
)

// MaxColors is the number of concrete colors available to the graph
// colorer.
const MaxColors = 1<<16 - 2

// neighborPair is one broadphase contact candidate, rebuilt every
// frame.
type neighborPair struct {
	objects [2]uint32
	kind    pairKind
	color   uint16
}
