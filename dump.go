package granite

import (
	"fmt"
	"strings"
)

// Dump renders the live object state as deterministic text, in storage
// order. Tests diff two dumps to assert that a sleeping world does not
// drift.
func (w *World) Dump() string {
	var b strings.Builder
	w.particles.forEach(func(index uint32, data *particleData) {
		fmt.Fprintf(&b, "particle %d position %.6f %.6f %.6f velocity %.6f %.6f %.6f awake %t\n",
			index,
			data.position.X(), data.position.Y(), data.position.Z(),
			data.velocity.X(), data.velocity.Y(), data.velocity.Z(),
			data.awake)
	})
	w.rigidBodies.forEach(func(index uint32, data *rigidBodyData) {
		fmt.Fprintf(&b, "rigid body %d position %.6f %.6f %.6f orientation %.6f %.6f %.6f %.6f velocity %.6f %.6f %.6f angular %.6f %.6f %.6f awake %t\n",
			index,
			data.position.X(), data.position.Y(), data.position.Z(),
			data.orientation.W, data.orientation.V.X(), data.orientation.V.Y(), data.orientation.V.Z(),
			data.velocity.X(), data.velocity.Y(), data.velocity.Z(),
			data.angularVelocity.X(), data.angularVelocity.Y(), data.angularVelocity.Z(),
			data.awake)
	})
	w.staticBodies.forEach(func(index uint32, data *staticBodyData) {
		fmt.Fprintf(&b, "static body %d position %.6f %.6f %.6f\n",
			index,
			data.transform.Position.X(), data.transform.Position.Y(), data.transform.Position.Z())
	})
	return b.String()
}
