package physics

import (
	"fmt"
	"math"
)

// RiemannState is one side of a 1D Riemann problem in primitive form.
type RiemannState struct {
	Rho, U, P float64
}

func (r RiemannState) soundSpeed(gamma float64) float64 {
	return math.Sqrt(gamma * r.P / r.Rho)
}

// ExactRiemann solves the star-region pressure and velocity of the 1D
// Riemann problem with a Newton iteration on the pressure function,
// shock and rarefaction branches selected per side. Vacuum generation
// is fatal, the solver has no meaningful answer there.
func ExactRiemann(gamma float64, left, right RiemannState) (pStar, uStar float64) {
	var (
		cL, cR = left.soundSpeed(gamma), right.soundSpeed(gamma)
		du     = right.U - left.U
	)
	if 2/(gamma-1)*(cL+cR) <= du {
		panic(fmt.Errorf("riemann problem generates vacuum, du = %v", du))
	}
	// Two-rarefaction guess, positive by construction
	var (
		z     = (gamma - 1) / (2 * gamma)
		guess = math.Pow((cL+cR-0.5*(gamma-1)*du)/
			(cL/math.Pow(left.P, z)+cR/math.Pow(right.P, z)), 1/z)
	)
	pStar = guess
	for it := 0; it < 100; it++ {
		fL, dfL := pressureFunc(gamma, pStar, left, cL)
		fR, dfR := pressureFunc(gamma, pStar, right, cR)
		delta := (fL + fR + du) / (dfL + dfR)
		pStar -= delta
		if pStar <= 0 {
			pStar = 1e-12
		}
		if math.Abs(delta) < 1e-12*pStar {
			break
		}
	}
	fL, _ := pressureFunc(gamma, pStar, left, cL)
	fR, _ := pressureFunc(gamma, pStar, right, cR)
	uStar = 0.5*(left.U+right.U) + 0.5*(fR-fL)
	return
}

// pressureFunc is the velocity jump across one nonlinear wave as a
// function of the star pressure, with its derivative.
func pressureFunc(gamma, p float64, s RiemannState, c float64) (f, df float64) {
	if p > s.P {
		// Shock branch
		var (
			aK = 2 / ((gamma + 1) * s.Rho)
			bK = (gamma - 1) / (gamma + 1) * s.P
			q  = math.Sqrt(aK / (p + bK))
		)
		f = (p - s.P) * q
		df = q * (1 - 0.5*(p-s.P)/(p+bK))
	} else {
		// Rarefaction branch
		z := (gamma - 1) / (2 * gamma)
		f = 2 * c / (gamma - 1) * (math.Pow(p/s.P, z) - 1)
		df = math.Pow(p/s.P, -(gamma+1)/(2*gamma)) / (s.Rho * c)
	}
	return
}

// SampleRiemann evaluates the self-similar solution at the wave speed
// xi = x/t, given the star state from ExactRiemann.
func SampleRiemann(gamma float64, left, right RiemannState, pStar, uStar, xi float64) (s RiemannState) {
	if xi <= uStar {
		s = sampleSide(gamma, left, pStar, uStar, xi, 1)
	} else {
		s = sampleSide(gamma, right, pStar, uStar, xi, -1)
	}
	return
}

// sampleSide handles one side of the contact; sign is +1 left, -1
// right, folding the mirrored right-side formulas into one path.
func sampleSide(gamma float64, k RiemannState, pStar, uStar, xi, sign float64) (s RiemannState) {
	var (
		c   = k.soundSpeed(gamma)
		gm1 = gamma - 1
		gp1 = gamma + 1
	)
	if pStar > k.P {
		// Shock
		var (
			ratio  = pStar / k.P
			sShock = k.U - sign*c*math.Sqrt(gp1/(2*gamma)*ratio+gm1/(2*gamma))
		)
		if sign*xi >= sign*sShock {
			s = RiemannState{
				Rho: k.Rho * (ratio + gm1/gp1) / (gm1/gp1*ratio + 1),
				U:   uStar,
				P:   pStar,
			}
		} else {
			s = k
		}
		return
	}
	// Rarefaction
	var (
		cStar = c * math.Pow(pStar/k.P, gm1/(2*gamma))
		sHead = k.U - sign*c
		sTail = uStar - sign*cStar
	)
	switch {
	case sign*xi <= sign*sHead:
		s = k
	case sign*xi >= sign*sTail:
		s = RiemannState{
			Rho: k.Rho * math.Pow(pStar/k.P, 1/gamma),
			U:   uStar,
			P:   pStar,
		}
	default:
		// Inside the fan
		var (
			cFan = 2 / gp1 * (c + sign*gm1/2*(k.U-xi))
			fac  = math.Pow(cFan/c, 2/gm1)
		)
		s = RiemannState{
			Rho: k.Rho * fac,
			U:   2 / gp1 * (sign*c + gm1/2*k.U + xi),
			P:   k.P * math.Pow(cFan/c, 2*gamma/gm1),
		}
	}
	return
}
