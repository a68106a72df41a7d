// Package constraint holds the XPBD constraint kernels shared by the
// position and velocity solver passes.
package constraint

import "github.com/go-gl/mathgl/mgl64"

// PositionalProblem describes one positional constraint between two
// bodies: push them Distance apart along Direction, applied at the two
// relative contact points. Inverse masses and inverse world-space
// inertia tensors are zero for particles (no rotational state) and for
// static bodies (immovable).
type PositionalProblem struct {
	Direction         mgl64.Vec3
	Distance          float64
	RelativePositions [2]mgl64.Vec3
	InverseMasses     [2]float64
	InverseInertias   [2]mgl64.Mat3
}

// PositionalSolution carries the resulting position and orientation
// deltas plus the Lagrange multiplier of the correction.
type PositionalSolution struct {
	DeltaPositions    [2]mgl64.Vec3
	DeltaOrientations [2]mgl64.Vec3
	DeltaLambda       float64
}

// SolvePositional computes the XPBD positional correction
//
//	w_i = 1/m_i + (r_i x n) . I_i^-1 (r_i x n)
//	dl  = c / (w_1 + w_2)
//	p   = dl * n
//
// applying +p to the first body and -p to the second.
func SolvePositional(problem PositionalProblem) PositionalSolution {
	n := problem.Direction
	r1 := problem.RelativePositions[0]
	r2 := problem.RelativePositions[1]
	r1CrossN := r1.Cross(n)
	r2CrossN := r2.Cross(n)
	w1 := problem.InverseMasses[0] + r1CrossN.Dot(problem.InverseInertias[0].Mul3x1(r1CrossN))
	w2 := problem.InverseMasses[1] + r2CrossN.Dot(problem.InverseInertias[1].Mul3x1(r2CrossN))
	deltaLambda := problem.Distance / (w1 + w2)
	p := n.Mul(deltaLambda)
	return PositionalSolution{
		DeltaPositions: [2]mgl64.Vec3{
			p.Mul(problem.InverseMasses[0]),
			p.Mul(-problem.InverseMasses[1]),
		},
		DeltaOrientations: [2]mgl64.Vec3{
			problem.InverseInertias[0].Mul3x1(r1.Cross(p)),
			problem.InverseInertias[1].Mul3x1(r2.Cross(p.Mul(-1))),
		},
		DeltaLambda: deltaLambda,
	}
}

// GeneralizedInverseMass is the scalar denominator term of one body in
// the Lagrange-multiplier formula.
func GeneralizedInverseMass(inverseMass float64, inverseInertia mgl64.Mat3, relativePosition, direction mgl64.Vec3) float64 {
	rCrossN := relativePosition.Cross(direction)
	return inverseMass + rCrossN.Dot(inverseInertia.Mul3x1(rCrossN))
}
