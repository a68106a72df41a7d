package granite

import "github.com/go-gl/mathgl/mgl64"

// Waking motion is an exponentially smoothed estimate of an object's
// kinetic activity. An island sleeps when every awake member's motion
// has settled below the epsilon; waking resets the estimate high
// enough that the island cannot immediately fall back asleep.
const (
	wakingMotionEpsilon         = 1.0 / 256.0
	wakingMotionInitializer     = 2.0 * wakingMotionEpsilon
	wakingMotionLimit           = 8.0 * wakingMotionEpsilon
	wakingMotionSmoothingFactor = 7.0 / 8.0
)

// updateGroupAwakeStates decides one island's fate for this frame:
// fully sleeping islands are skipped, settled islands are put to sleep
// and skipped, everything else is (re)woken and participates. Returns
// whether the island takes part in solving.
func (w *World) updateGroupAwakeStates(groupIndex int) bool {
	group := w.groups.group(groupIndex)
	containsAwake := false
	containsSleeping := false
	sleepable := true
	for i := group.objectsBegin; i != group.objectsEnd &&
		(sleepable || !containsAwake || !containsSleeping); i++ {
		awake, motion := w.dynamicAwakeState(w.groups.object(int(i)))
		if awake {
			containsAwake = true
			if motion > wakingMotionEpsilon {
				sleepable = false
			}
		} else {
			containsSleeping = true
		}
	}
	if !containsAwake {
		return false
	}
	if sleepable {
		for i := group.objectsBegin; i != group.objectsEnd; i++ {
			w.putToSleep(w.groups.object(int(i)))
		}
		return false
	}
	if containsSleeping {
		for i := group.objectsBegin; i != group.objectsEnd; i++ {
			w.wakeUp(w.groups.object(int(i)))
		}
	}
	return true
}

func (w *World) dynamicAwakeState(object dynamicObject) (bool, float64) {
	if object.kind == dynamicKindParticle {
		data := w.particles.at(object.index)
		return data.awake, data.wakingMotion
	}
	data := w.rigidBodies.at(object.index)
	return data.awake, data.wakingMotion
}

func (w *World) putToSleep(object dynamicObject) {
	if object.kind == dynamicKindParticle {
		data := w.particles.at(object.index)
		if data.awake {
			data.velocity = mgl64.Vec3{}
			data.awake = false
			w.events.emitSleep(object.ref())
		}
		return
	}
	data := w.rigidBodies.at(object.index)
	if data.awake {
		data.velocity = mgl64.Vec3{}
		data.angularVelocity = mgl64.Vec3{}
		data.awake = false
		w.events.emitSleep(object.ref())
	}
}

func (w *World) wakeUp(object dynamicObject) {
	if object.kind == dynamicKindParticle {
		data := w.particles.at(object.index)
		if !data.awake {
			data.wakingMotion = wakingMotionInitializer
			data.awake = true
			w.events.emitWake(object.ref())
		}
		return
	}
	data := w.rigidBodies.at(object.index)
	if !data.awake {
		data.wakingMotion = wakingMotionInitializer
		data.awake = true
		w.events.emitWake(object.ref())
	}
}
