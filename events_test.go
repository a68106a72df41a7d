package granite

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func countEvents(world *World, eventType EventType) *int {
	count := new(int)
	world.Events().Subscribe(eventType, func(event Event) {
		*count++
	})
	return count
}

func TestCollisionAndSleepEvents(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	particle := createTestParticle(t, world, particleAt(0, 3, 0))

	enters := countEvents(world, COLLISION_ENTER)
	stays := countEvents(world, COLLISION_STAY)
	sleeps := countEvents(world, ON_SLEEP)

	var sleptObject ObjectRef
	world.Events().Subscribe(ON_SLEEP, func(event Event) {
		sleptObject = event.(SleepEvent).Object
	})

	simulateSeconds(t, world, 3, nil)

	if *enters == 0 {
		t.Error("no COLLISION_ENTER observed for a falling particle")
	}
	if *stays == 0 {
		t.Error("no COLLISION_STAY observed while resting")
	}
	if *sleeps == 0 {
		t.Fatal("no ON_SLEEP observed after settling")
	}
	if handle, ok := sleptObject.AsParticle(); !ok || handle != particle {
		t.Errorf("sleep event for %v, want particle %v", sleptObject, particle)
	}
}

func TestWakeEventOnStrike(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	sleeper := createTestParticle(t, world, particleAt(0, 1.5, 0))
	simulateSeconds(t, world, 3, nil)
	if world.IsParticleAwake(sleeper) {
		t.Fatal("particle not asleep before the strike")
	}

	wakes := countEvents(world, ON_WAKE)
	createTestParticle(t, world, ParticleCreateInfo{
		Position: mgl64.Vec3{0, 2.4, 0},
		Velocity: mgl64.Vec3{0, -10, 0},
		Radius:   0.5,
		Mass:     1,
		Material: testMaterial,
	})
	simulateSeconds(t, world, 1.0/60.0, nil)
	if *wakes == 0 {
		t.Error("no ON_WAKE observed after the strike")
	}
	if !world.IsParticleAwake(sleeper) {
		t.Error("struck particle still asleep")
	}
}

func TestCollisionExitEvent(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{})
	mover := particleAt(-4, 1.05, 0)
	mover.Velocity = mgl64.Vec3{4, 0, 0}
	createTestParticle(t, world, mover)
	createTestParticle(t, world, particleAt(0, 0, 0))

	exits := countEvents(world, COLLISION_EXIT)
	enters := countEvents(world, COLLISION_ENTER)
	simulateSeconds(t, world, 2, nil)
	if *enters == 0 {
		t.Error("no COLLISION_ENTER while the broadphase volumes crossed")
	}
	if *exits == 0 {
		t.Error("no COLLISION_EXIT after the volumes separated")
	}
}

func TestDestroyDropsTrackedPairs(t *testing.T) {
	world := newTestWorld(t, WorldCreateInfo{
		GravitationalAcceleration: mgl64.Vec3{0, -10, 0},
	})
	createTestGround(t, world, mgl64.Vec3{})
	particle := createTestParticle(t, world, particleAt(0, 1.45, 0))
	simulateSeconds(t, world, 2.0/60.0, nil)

	exits := countEvents(world, COLLISION_EXIT)
	world.DestroyParticle(particle)
	simulateSeconds(t, world, 1.0/60.0, nil)
	// the pair disappears silently instead of reporting an exit
	if *exits != 0 {
		t.Errorf("COLLISION_EXIT observed %d times after destroy, want 0", *exits)
	}
}
