// Package kinematics holds the closed-form and root-finding motion equations
// used to derive safe speed limits and raw controller timing parameters.
// Like geom, everything here is a pure function.
package kinematics

import (
	"math"
	"math/big"
)

// Unsolvable is returned by the velocity equations when the radicand goes
// negative: there is no physical solution, the distance is too long to
// shed (or gain) the required speed.  Callers must check for it before
// using the result.
const Unsolvable = -1.0

// rateShift is the fixed-point shift of the controller's step accumulator.
// Rates are added into a 32-bit accumulator every 40 us tick; a step is
// taken on bit 31 carry-out.
const rateShift = 31

// maxScanTicks bounds the corrective linear search in MoveTicks.  The float
// root is in practice within a tick or two of the true answer; the bound
// exists so bad parameters cannot spin forever.
const maxScanTicks = 1 << 16

// MaxInitialVelocity solves vi = sqrt(vf^2 - 2 a d): the fastest speed a move
// may begin at and still reach final velocity vf after distance d under
// acceleration a.  Returns Unsolvable when no real solution exists.
func MaxInitialVelocity(finalV, accel, dist float64) float64 {
	r := finalV*finalV - 2*accel*dist
	if r < 0 {
		return Unsolvable
	}
	return math.Sqrt(r)
}

// FinalVelocity solves vf = sqrt(vi^2 + 2 a d): the speed reached after
// distance d starting at vi under acceleration a.  Returns Unsolvable when
// no real solution exists.
func FinalVelocity(initialV, accel, dist float64) float64 {
	r := initialV*initialV + 2*accel*dist
	if r < 0 {
		return Unsolvable
	}
	return math.Sqrt(r)
}

// cumulativeSteps evaluates the firmware accumulator after n ticks:
//
//	s(n) = (n*rate + rateDelta*(n^2-n)/2) >> 31
//
// The shift is an arithmetic shift on the signed sum, matching the
// controller exactly; big.Int keeps the intermediate products exact where
// int64 would overflow.
func cumulativeSteps(rate, rateDelta, n int64) *big.Int {
	bn := big.NewInt(n)
	acc := new(big.Int).Mul(bn, big.NewInt(rate))
	if rateDelta != 0 {
		tri := new(big.Int).Mul(bn, big.NewInt(n-1))
		tri.Div(tri, big.NewInt(2))
		tri.Mul(tri, big.NewInt(rateDelta))
		acc.Add(acc, tri)
	}
	// big.Int Rsh is only defined for non-negative values; emulate the
	// arithmetic shift by floor division, which rounds toward -inf like
	// the hardware does
	div := new(big.Int).Lsh(big.NewInt(1), rateShift)
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(acc, div, m) // DivMod is euclidean: q rounds toward -inf for div > 0
	return q
}

// MoveTicks finds the smallest tick count n such that a move at the given
// step rate (accumulator addend per tick) and per-tick rate delta has
// accumulated at least stepCount steps.
//
// With rateDelta zero the answer is closed form, ceil(steps * 2^31 / rate),
// with zero rate meaning no motion and zero time.  Otherwise the quadratic
//
//	rateDelta/2 * n^2 + (rate - rateDelta/2) * n - steps*2^31 = 0
//
// is solved in floating point, the larger non-negative root floored, and the
// exact accumulator formula walked forward one tick at a time to absorb the
// float error.
func MoveTicks(rate, rateDelta, stepCount int64) int64 {
	if stepCount <= 0 {
		return 0
	}
	target := new(big.Int).Lsh(big.NewInt(stepCount), rateShift)
	if rateDelta == 0 {
		if rate == 0 {
			return 0
		}
		// ceil(steps << 31 / rate)
		r := big.NewInt(rate)
		n := new(big.Int).Add(target, new(big.Int).Sub(r, big.NewInt(1)))
		n.Div(n, r)
		return n.Int64()
	}
	a := float64(rateDelta) / 2
	b := float64(rate) - a
	c := -float64(stepCount) * math.Exp2(rateShift)
	disc := b*b - 4*a*c
	var n int64
	if disc >= 0 {
		sq := math.Sqrt(disc)
		r1 := (-b + sq) / (2 * a)
		r2 := (-b - sq) / (2 * a)
		root := math.Max(r1, r2)
		if root > 0 {
			n = int64(math.Floor(root))
		}
	}
	if n < 0 {
		n = 0
	}
	// cumulativeSteps is post-shift, so the walk compares against the step
	// count itself, not the accumulator target
	goal := big.NewInt(stepCount)
	for i := 0; i < maxScanTicks; i++ {
		if cumulativeSteps(rate, rateDelta, n).Cmp(goal) >= 0 {
			return n
		}
		n++
	}
	return n
}

// MoveDurationMS returns the wall time in whole milliseconds for a
// constant-rate move of dist inches at speed inches/second, floored at 1 ms
// so the controller never receives a zero-duration move.
func MoveDurationMS(dist, speed float64) int {
	if dist < 0 {
		dist = -dist
	}
	if speed <= 0 || dist == 0 {
		return 1
	}
	ms := int(math.Round(1000 * dist / speed))
	if ms < 1 {
		ms = 1
	}
	return ms
}
