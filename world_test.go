package granite

import (
	"math"
	"testing"

	"github.com/akmonengine/granite/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pmezard/go-difflib/difflib"
)

var testMaterial = actor.Material{
	StaticFriction:  0.6,
	DynamicFriction: 0.4,
	Restitution:     0,
}

func newTestWorld(t *testing.T, info WorldCreateInfo) *World {
	t.Helper()
	world, err := NewWorld(info)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return world
}

func particleAt(x, y, z float64) ParticleCreateInfo {
	return ParticleCreateInfo{
		Position: mgl64.Vec3{x, y, z},
		Radius:   0.5,
		Mass:     1,
		Material: testMaterial,
	}
}

func createTestParticle(t *testing.T, world *World, info ParticleCreateInfo) ParticleHandle {
	t.Helper()
	handle, err := world.CreateParticle(info)
	if err != nil {
		t.Fatalf("CreateParticle: %v", err)
	}
	return handle
}

func boxInertia(mass float64, halfExtents mgl64.Vec3) mgl64.Mat3 {
	x := halfExtents.X() * 2
	y := halfExtents.Y() * 2
	z := halfExtents.Z() * 2
	factor := mass / 12
	return mgl64.Mat3{
		factor * (y*y + z*z), 0, 0,
		0, factor * (x*x + z*z), 0,
		0, 0, factor * (x*x + y*y),
	}
}

func createTestBox(t *testing.T, world *World, position mgl64.Vec3, halfExtents mgl64.Vec3, mass float64) RigidBodyHandle {
	t.Helper()
	handle, err := world.CreateRigidBody(RigidBodyCreateInfo{
		Position:      position,
		Orientation:   mgl64.QuatIdent(),
		Mass:          mass,
		InertiaTensor: boxInertia(mass, halfExtents),
		Shape:         actor.BoxShape(halfExtents),
		Material:      testMaterial,
	})
	if err != nil {
		t.Fatalf("CreateRigidBody: %v", err)
	}
	return handle
}

func createTestGround(t *testing.T, world *World, position mgl64.Vec3) StaticBodyHandle {
	t.Helper()
	handle, err := world.CreateStaticBody(StaticBodyCreateInfo{
		Position:    position,
		Orientation: mgl64.QuatIdent(),
		Shape:       actor.BoxShape(mgl64.Vec3{50, 1, 50}),
		Material:    testMaterial,
	})
	if err != nil {
		t.Fatalf("CreateStaticBody: %v", err)
	}
	return handle
}

func simulateSeconds(t *testing.T, world *World, seconds float64, pool ThreadPool) {
	t.Helper()
	steps := int(seconds*60 + 0.5)
	for i := 0; i != steps; i++ {
		if err := world.Simulate(WorldSimulateInfo{
			DeltaTime:    1.0 / 60.0,
			SubstepCount: 16,
			ThreadPool:   pool,
		}); err != nil {
			t.Fatalf("Simulate step %d: %v", i, err)
		}
	}
}

func TestSphereDrop(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	particle := createTestParticle(t, world, particleAt(0, 10, 0))

	// the drop takes ~1.3s to reach the ground
	simulateSeconds(t, world, 2, nil)
	position := world.ParticlePosition(particle)
	if position.Y() < 1.4 || position.Y() > 1.6 {
		t.Errorf("particle.y = %v after 2s, want within [1.4, 1.6]", position.Y())
	}
	if speed := world.ParticleVelocity(particle).Len(); speed >= 0.2 {
		t.Errorf("particle speed = %v after 2s, want < 0.2", speed)
	}

	simulateSeconds(t, world, 1, nil)
	if world.IsParticleAwake(particle) {
		t.Error("particle still awake after 3s at rest")
	}
}

func TestSphereDropParallel(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	particle := createTestParticle(t, world, particleAt(0, 10, 0))

	pool := NewWorkerPool(4)
	defer pool.Close()
	simulateSeconds(t, world, 2, pool)
	position := world.ParticlePosition(particle)
	if position.Y() < 1.4 || position.Y() > 1.6 {
		t.Errorf("particle.y = %v after 2s, want within [1.4, 1.6]", position.Y())
	}
}

func TestBoxStackSettles(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{0, -1, 0})
	halfExtents := mgl64.Vec3{1, 1, 1}
	boxes := []RigidBodyHandle{
		createTestBox(t, world, mgl64.Vec3{0, 1, 0}, halfExtents, 1),
		createTestBox(t, world, mgl64.Vec3{0, 3, 0}, halfExtents, 1),
		createTestBox(t, world, mgl64.Vec3{0, 5, 0}, halfExtents, 1),
	}
	initialHeights := []float64{1, 3, 5}

	simulateSeconds(t, world, 2, nil)

	totalChange := 0.0
	for i, box := range boxes {
		totalChange += math.Abs(world.RigidBodyPosition(box).Y() - initialHeights[i])
	}
	if totalChange > 0.1 {
		t.Errorf("total height change = %v, want <= 0.1", totalChange)
	}
	for i, box := range boxes {
		if world.IsRigidBodyAwake(box) {
			t.Errorf("box %d still awake after 2s", i)
		}
	}
}

func TestQuaternionNormality(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{0, -1, 0})
	spinner, err := world.CreateRigidBody(RigidBodyCreateInfo{
		Position:        mgl64.Vec3{0, 4, 0},
		Orientation:     mgl64.QuatRotate(0.4, mgl64.Vec3{1, 0, 0}),
		AngularVelocity: mgl64.Vec3{3, 5, 1},
		Mass:            1,
		InertiaTensor:   boxInertia(1, mgl64.Vec3{0.5, 0.5, 0.5}),
		Shape:           actor.BoxShape(mgl64.Vec3{0.5, 0.5, 0.5}),
		Material:        testMaterial,
	})
	if err != nil {
		t.Fatalf("CreateRigidBody: %v", err)
	}
	for i := 0; i != 120; i++ {
		simulateSeconds(t, world, 1.0/60.0, nil)
		orientation := world.RigidBodyOrientation(spinner)
		if math.Abs(orientation.Len()-1) >= 1e-4 {
			t.Fatalf("orientation norm = %v at frame %d", orientation.Len(), i)
		}
	}
}

func TestTwoParticleHeadOnElastic(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{})
	elastic := actor.Material{Restitution: 1}
	a := createTestParticle(t, world, ParticleCreateInfo{
		Position: mgl64.Vec3{-1, 0, 0},
		Velocity: mgl64.Vec3{1, 0, 0},
		Radius:   0.4,
		Mass:     1,
		Material: elastic,
	})
	b := createTestParticle(t, world, ParticleCreateInfo{
		Position: mgl64.Vec3{1, 0, 0},
		Velocity: mgl64.Vec3{-1, 0, 0},
		Radius:   0.4,
		Mass:     1,
		Material: elastic,
	})

	simulateSeconds(t, world, 2, nil)

	velocityA := world.ParticleVelocity(a)
	velocityB := world.ParticleVelocity(b)
	if velocityA.Sub(mgl64.Vec3{-1, 0, 0}).Len() > 0.05 {
		t.Errorf("velocity A = %v, want approximately (-1,0,0)", velocityA)
	}
	if velocityB.Sub(mgl64.Vec3{1, 0, 0}).Len() > 0.05 {
		t.Errorf("velocity B = %v, want approximately (1,0,0)", velocityB)
	}
}

func TestSleepWakePropagation(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{0, -1, 0})
	halfExtents := mgl64.Vec3{1, 1, 1}
	boxes := []RigidBodyHandle{
		createTestBox(t, world, mgl64.Vec3{0, 1, 0}, halfExtents, 1),
		createTestBox(t, world, mgl64.Vec3{0, 3, 0}, halfExtents, 1),
		createTestBox(t, world, mgl64.Vec3{0, 5, 0}, halfExtents, 1),
	}
	simulateSeconds(t, world, 3, nil)
	for i, box := range boxes {
		if world.IsRigidBodyAwake(box) {
			t.Fatalf("box %d not asleep before the strike", i)
		}
	}

	createTestParticle(t, world, ParticleCreateInfo{
		Position: mgl64.Vec3{0, 6.5, 0},
		Velocity: mgl64.Vec3{0, -20, 0},
		Radius:   0.5,
		Mass:     1,
		Material: testMaterial,
	})
	simulateSeconds(t, world, 1.0/60.0, nil)
	for i, box := range boxes {
		if !world.IsRigidBodyAwake(box) {
			t.Errorf("box %d still asleep one frame after the strike", i)
		}
	}
}

func TestSleepIdempotence(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	particle := createTestParticle(t, world, particleAt(0, 10, 0))

	simulateSeconds(t, world, 3, nil)
	if world.IsParticleAwake(particle) {
		t.Fatal("particle not asleep after 3s")
	}
	before := world.Dump()
	simulateSeconds(t, world, 1, nil)
	after := world.Dump()
	if before != after {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(before),
			B:        difflib.SplitLines(after),
			FromFile: "before",
			ToFile:   "after",
			Context:  2,
		}
		text, _ := difflib.GetUnifiedDiffString(diff)
		t.Errorf("sleeping world drifted:\n%s", text)
	}
}

func TestMotionCallbacksAndGetters(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	recorder := &motionRecorder{}
	particleInfo := particleAt(0, 5, 0)
	particleInfo.MotionCallback = recorder
	particle := createTestParticle(t, world, particleInfo)
	box, err := world.CreateRigidBody(RigidBodyCreateInfo{
		Position:       mgl64.Vec3{4, 5, 0},
		Mass:           1,
		InertiaTensor:  boxInertia(1, mgl64.Vec3{0.5, 0.5, 0.5}),
		Shape:          actor.BoxShape(mgl64.Vec3{0.5, 0.5, 0.5}),
		Material:       testMaterial,
		MotionCallback: recorder,
	})
	if err != nil {
		t.Fatalf("CreateRigidBody: %v", err)
	}
	simulateSeconds(t, world, 2.0/60.0, nil)
	if recorder.particleCalls != 2 {
		t.Errorf("particle motion callbacks = %d, want 2", recorder.particleCalls)
	}
	if recorder.rigidBodyCalls != 2 {
		t.Errorf("rigid body motion callbacks = %d, want 2", recorder.rigidBodyCalls)
	}
	if recorder.lastParticle != particle {
		t.Errorf("callback particle = %v, want %v", recorder.lastParticle, particle)
	}
	if recorder.lastRigidBody != box {
		t.Errorf("callback rigid body = %v, want %v", recorder.lastRigidBody, box)
	}
	if motion := world.ParticleWakingMotion(particle); motion <= 0 {
		t.Errorf("ParticleWakingMotion = %v, want > 0", motion)
	}
	if motion := world.RigidBodyWakingMotion(box); motion <= 0 {
		t.Errorf("RigidBodyWakingMotion = %v, want > 0", motion)
	}
}

type motionRecorder struct {
	particleCalls  int
	rigidBodyCalls int
	lastParticle   ParticleHandle
	lastRigidBody  RigidBodyHandle
}

func (r *motionRecorder) OnParticleMotion(world *World, particle ParticleHandle) {
	r.particleCalls++
	r.lastParticle = particle
	_ = world.ParticlePosition(particle)
}

func (r *motionRecorder) OnRigidBodyMotion(world *World, rigidBody RigidBodyHandle) {
	r.rigidBodyCalls++
	r.lastRigidBody = rigidBody
	_ = world.RigidBodyPosition(rigidBody)
}

func TestCreateCapacityExceeded(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{MaxParticles: 2})
	createTestParticle(t, world, particleAt(0, 0, 0))
	createTestParticle(t, world, particleAt(3, 0, 0))
	if _, err := world.CreateParticle(particleAt(6, 0, 0)); err == nil {
		t.Error("CreateParticle beyond capacity succeeded")
	}
}
