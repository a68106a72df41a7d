package granite

import (
	"math"
	"testing"

	"github.com/akmonengine/granite/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// TestFrictionConeBound drives a box sliding over the ground and
// checks every recorded contact against the Coulomb cone: the
// positional friction correction is only ever accepted below
// mu_s * lambda_n.
func TestFrictionConeBound(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{0, -1, 0})
	box, err := world.CreateRigidBody(RigidBodyCreateInfo{
		Position:      mgl64.Vec3{0, 1.0, 0},
		Velocity:      mgl64.Vec3{4, 0, 0},
		Mass:          1,
		InertiaTensor: boxInertia(1, mgl64.Vec3{1, 1, 1}),
		Shape:         actor.BoxShape(mgl64.Vec3{1, 1, 1}),
		Material:      testMaterial,
	})
	if err != nil {
		t.Fatalf("CreateRigidBody: %v", err)
	}

	staticFriction := testMaterial.StaticFriction
	checked := 0
	for frame := 0; frame != 30; frame++ {
		simulateSeconds(t, world, 1.0/60.0, nil)
		for _, c := range world.contacts.Slice() {
			if c.normal == (mgl64.Vec3{}) {
				continue
			}
			checked++
			if c.lambdaT < -1e-9 {
				t.Fatalf("frame %d: lambdaT = %v, want >= 0", frame, c.lambdaT)
			}
			if c.lambdaT > staticFriction*c.lambdaN+1e-9 {
				t.Fatalf("frame %d: lambdaT = %v exceeds mu_s*lambdaN = %v",
					frame, c.lambdaT, staticFriction*c.lambdaN)
			}
		}
	}
	if checked == 0 {
		t.Fatal("no contacts recorded while sliding")
	}
	// dynamic friction must actually slow the slide
	if speed := world.RigidBodyVelocity(box).Len(); speed >= 4 {
		t.Errorf("box speed = %v after sliding with friction, want < 4", speed)
	}
}

// TestPenetrationResolves drops a particle straight into the ground
// and verifies the solver pushes it back out over the frame.
func TestPenetrationResolves(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	// start slightly interpenetrated
	particle := createTestParticle(t, world, particleAt(0, 1.4, 0))

	simulateSeconds(t, world, 0.5, nil)
	position := world.ParticlePosition(particle)
	if position.Y() < 1.45 {
		t.Errorf("particle.y = %v, want pushed back toward 1.5", position.Y())
	}
}

// TestRestitutionBound verifies the velocity pass respects the
// restitution floor: above the threshold the post-solve separating
// velocity approaches -e times the pre-solve one, below it the
// contact simply stops approaching.
func TestRestitutionBound(t *testing.T) {
	tests := []struct {
		name        string
		restitution float64
		minUpward   float64
		maxUpward   float64
	}{
		{name: "inelastic", restitution: 0, minUpward: -0.1, maxUpward: 0.5},
		{name: "bouncy", restitution: 0.9, minUpward: 3.0, maxUpward: 5.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			world := newTestWorld(t, WorldCreateInfo{
				GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
			})
			ground, err := world.CreateStaticBody(StaticBodyCreateInfo{
				Orientation: mgl64.QuatIdent(),
				Shape:       actor.BoxShape(mgl64.Vec3{50, 1, 50}),
				Material:    actor.Material{Restitution: tc.restitution},
			})
			if err != nil {
				t.Fatalf("CreateStaticBody: %v", err)
			}
			_ = ground
			particle := createTestParticle(t, world, ParticleCreateInfo{
				Position: mgl64.Vec3{0, 2, 0},
				Velocity: mgl64.Vec3{0, -5, 0},
				Radius:   0.5,
				Mass:     1,
				Material: actor.Material{Restitution: tc.restitution},
			})
			// enough frames for the impact to happen
			simulateSeconds(t, world, 0.25, nil)
			upward := world.ParticleVelocity(particle).Y()
			if upward < tc.minUpward || upward > tc.maxUpward {
				t.Errorf("post-impact upward velocity = %v, want within [%v, %v]",
					upward, tc.minUpward, tc.maxUpward)
			}
		})
	}
}

// TestSolverMatchesSerialExecution runs the same scene with the inline
// executor and with a worker pool; the color barrier must make the
// parallel run identical.
func TestSolverMatchesSerialExecution(t *testing.T) {
	build := func() *World {
		world := newTestWorld(t, WorldCreateInfo{
			GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
		})
		createTestGround(t, world, mgl64.Vec3{})
		for i := 0; i != 12; i++ {
			info := particleAt(float64(i%4)*1.1, 2+float64(i/4)*1.1, 0)
			createTestParticle(t, world, info)
		}
		return world
	}
	serial := build()
	parallel := build()
	pool := NewWorkerPool(4)
	defer pool.Close()
	simulateSeconds(t, serial, 1, nil)
	simulateSeconds(t, parallel, 1, pool)
	if serial.Dump() != parallel.Dump() {
		t.Error("parallel execution diverged from serial execution")
	}
}

func TestWorldInverseInertiaRotates(t *testing.T) {
	data := &rigidBodyData{
		orientation:    mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}),
		inverseInertia: mgl64.Mat3{1, 0, 0, 0, 2, 0, 0, 0, 3},
	}
	inverse := worldInverseInertia(data)
	// a quarter turn about z swaps the x and y principal terms
	if math.Abs(inverse.At(0, 0)-2) > 1e-9 {
		t.Errorf("I^-1[0][0] = %v, want 2", inverse.At(0, 0))
	}
	if math.Abs(inverse.At(1, 1)-1) > 1e-9 {
		t.Errorf("I^-1[1][1] = %v, want 1", inverse.At(1, 1))
	}
	if math.Abs(inverse.At(2, 2)-3) > 1e-9 {
		t.Errorf("I^-1[2][2] = %v, want 3", inverse.At(2, 2))
	}
}
