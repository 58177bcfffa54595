package flux

import (
	"math"

	"github.com/davecats/fvflow/physics"
)

// roeEntropyFix is the Harten eigenvalue cutoff expressed as a fraction
// of the largest interface wave speed.
const roeEntropyFix = 0.05

func sqrtClamped(x float64) (r float64) {
	if x > 0 {
		r = math.Sqrt(x)
	}
	return
}

// hartenFix bounds an eigenvalue magnitude away from zero so the
// dissipation never vanishes at sonic points.
func hartenFix(lambda, eps float64) (a float64) {
	a = math.Abs(lambda)
	if a < eps {
		a = 0.5 * (a*a/eps + eps)
	}
	return
}

// roeDissipation assembles the area-scaled dissipation matrix
// |A_roe| by applying the wave decomposition at the frozen Roe-average
// state to each conserved basis vector in turn.
func roeDissipation(nDim int, gamma float64, ra *roeAverage, normal [3]float64, area float64) (D [MaxVar][MaxVar]float64) {
	var (
		gm1  = gamma - 1
		nVar = nDim + 2
		eps  = roeEntropyFix * (math.Abs(ra.ProjV) + ra.C)
		lm   = hartenFix(ra.ProjV-ra.C, eps)
		l0   = hartenFix(ra.ProjV, eps)
		lp   = hartenFix(ra.ProjV+ra.C, eps)
	)
	for k := 0; k < nVar; k++ {
		var dU [MaxVar]float64
		dU[k] = 1
		var (
			dRho = dU[0]
			dE   = dU[nDim+1]
			dVel [3]float64
			dV   float64
			uDm  float64
		)
		for d := 0; d < nDim; d++ {
			dVel[d] = (dU[d+1] - ra.Vel[d]*dRho) / ra.Rho
			dV += normal[d] * dVel[d]
			uDm += ra.Vel[d] * dU[d+1]
		}
		dP := gm1 * (0.5*ra.SqVel*dRho - uDm + dE)

		a1 := lm * 0.5 * (dP - ra.Rho*ra.C*dV) / ra.C2
		a2 := l0 * (dRho - dP/ra.C2)
		a3 := lp * 0.5 * (dP + ra.Rho*ra.C*dV) / ra.C2

		D[0][k] = area * (a1 + a2 + a3)
		var uShear float64
		for d := 0; d < nDim; d++ {
			shear := l0 * ra.Rho * (dVel[d] - dV*normal[d])
			uShear += ra.Vel[d] * (dVel[d] - dV*normal[d])
			D[d+1][k] = area * (a1*(ra.Vel[d]-ra.C*normal[d]) + a2*ra.Vel[d] + shear + a3*(ra.Vel[d]+ra.C*normal[d]))
		}
		D[nDim+1][k] = area * (a1*(ra.H-ra.C*ra.ProjV) + 0.5*a2*ra.SqVel + l0*ra.Rho*uShear + a3*(ra.H+ra.C*ra.ProjV))
	}
	return
}

// upwindJacobians is the frozen-dissipation linearization shared by the
// upwind family: exact centered Jacobians of the projected flux plus
// and minus half the Roe dissipation matrix.
func upwindJacobians(nDim int, gamma float64, l, r *physics.PrimState, ra *roeAverage, normal [3]float64, area float64, res *Result) {
	var (
		nVar    = nDim + 2
		energyL = l.Enthalpy - l.Pressure/l.Density
		energyR = r.Enthalpy - r.Pressure/r.Density
	)
	res.JacL = projJac(nDim, l.Velocity, energyL, gamma, normal, 0.5*area)
	res.JacR = projJac(nDim, r.Velocity, energyR, gamma, normal, 0.5*area)
	D := roeDissipation(nDim, gamma, ra, normal, 1)
	for i := 0; i < nVar; i++ {
		for j := 0; j < nVar; j++ {
			res.JacL[i][j] += 0.5 * area * D[i][j]
			res.JacR[i][j] -= 0.5 * area * D[i][j]
		}
	}
	res.HasJac = true
}

// RoeFlux is the approximate Riemann solver of Roe with a Harten
// entropy fix.
type RoeFlux struct {
	NDim int
	FS   *physics.FreeStream
}

func (rf *RoeFlux) Compute(left, right physics.PrimState, unitNormal [3]float64, area float64, implicit bool) (res Result) {
	var (
		nDim  = rf.NDim
		nVar  = nDim + 2
		gamma = rf.FS.Gamma
		ra    = newRoeAverage(nDim, gamma, &left, &right, unitNormal)
		UL    = conservedFrom(nDim, &left)
		UR    = conservedFrom(nDim, &right)
		FL    = projFlux(nDim, &left, unitNormal, area)
		FR    = projFlux(nDim, &right, unitNormal, area)
		D     = roeDissipation(nDim, gamma, &ra, unitNormal, area)
	)
	for n := 0; n < nVar; n++ {
		res.F[n] = 0.5 * (FL[n] + FR[n])
		for m := 0; m < nVar; m++ {
			res.F[n] -= 0.5 * D[n][m] * (UR[m] - UL[m])
		}
	}
	if implicit {
		upwindJacobians(nDim, gamma, &left, &right, &ra, unitNormal, area, &res)
	}
	return
}

// AUSMFlux is the advection upstream splitting method, Mach and
// pressure split at the interface.
type AUSMFlux struct {
	NDim int
	FS   *physics.FreeStream
}

func (af *AUSMFlux) Compute(left, right physics.PrimState, unitNormal [3]float64, area float64, implicit bool) (res Result) {
	var (
		nDim     = af.NDim
		gamma    = af.FS.Gamma
		projL    float64
		projR    float64
		mLP, mRM float64
		pLP, pRM float64
	)
	for d := 0; d < nDim; d++ {
		projL += left.Velocity[d] * unitNormal[d]
		projR += right.Velocity[d] * unitNormal[d]
	}
	mL := projL / left.SoundSpeed
	mR := projR / right.SoundSpeed

	if math.Abs(mL) <= 1 {
		mLP = 0.25 * (mL + 1) * (mL + 1)
		pLP = 0.25 * left.Pressure * (mL + 1) * (mL + 1) * (2 - mL)
	} else {
		mLP = 0.5 * (mL + math.Abs(mL))
		pLP = 0.5 * left.Pressure * (mL + math.Abs(mL)) / mL
	}
	if math.Abs(mR) <= 1 {
		mRM = -0.25 * (mR - 1) * (mR - 1)
		pRM = 0.25 * right.Pressure * (mR - 1) * (mR - 1) * (2 + mR)
	} else {
		mRM = 0.5 * (mR - math.Abs(mR))
		pRM = 0.5 * right.Pressure * (mR - math.Abs(mR)) / mR
	}
	mF := mLP + mRM
	pF := pLP + pRM

	// Mass-weighted quantities carried by the split Mach number
	var phiL, phiR [MaxVar]float64
	phiL[0] = left.Density * left.SoundSpeed
	phiR[0] = right.Density * right.SoundSpeed
	for d := 0; d < nDim; d++ {
		phiL[d+1] = phiL[0] * left.Velocity[d]
		phiR[d+1] = phiR[0] * right.Velocity[d]
	}
	phiL[nDim+1] = phiL[0] * left.Enthalpy
	phiR[nDim+1] = phiR[0] * right.Enthalpy

	for n := 0; n < nDim+2; n++ {
		res.F[n] = 0.5 * area * (mF*(phiL[n]+phiR[n]) - math.Abs(mF)*(phiR[n]-phiL[n]))
	}
	for d := 0; d < nDim; d++ {
		res.F[d+1] += area * unitNormal[d] * pF
	}
	if implicit {
		ra := newRoeAverage(nDim, gamma, &left, &right, unitNormal)
		upwindJacobians(nDim, gamma, &left, &right, &ra, unitNormal, area, &res)
	}
	return
}

// HLLCFlux is the Harten-Lax-van Leer solver with contact restoration,
// wave speeds bounded by the Roe-average signal speeds.
type HLLCFlux struct {
	NDim int
	FS   *physics.FreeStream
}

func (hf *HLLCFlux) Compute(left, right physics.PrimState, unitNormal [3]float64, area float64, implicit bool) (res Result) {
	var (
		nDim         = hf.NDim
		nVar         = nDim + 2
		gamma        = hf.FS.Gamma
		projL, projR float64
		ra           = newRoeAverage(nDim, gamma, &left, &right, unitNormal)
	)
	for d := 0; d < nDim; d++ {
		projL += left.Velocity[d] * unitNormal[d]
		projR += right.Velocity[d] * unitNormal[d]
	}
	sL := math.Min(projL-left.SoundSpeed, ra.ProjV-ra.C)
	sR := math.Max(projR+right.SoundSpeed, ra.ProjV+ra.C)
	sM := (right.Pressure - left.Pressure +
		left.Density*projL*(sL-projL) - right.Density*projR*(sR-projR)) /
		(left.Density*(sL-projL) - right.Density*(sR-projR))
	pStar := left.Pressure + left.Density*(projL-sL)*(projL-sM)

	starState := func(p *physics.PrimState, projV, s float64) (Us [MaxVar]float64) {
		ooSsM := 1 / (s - sM)
		Us[0] = p.Density * (s - projV) * ooSsM
		for d := 0; d < nDim; d++ {
			Us[d+1] = (p.Density*p.Velocity[d]*(s-projV) + (pStar-p.Pressure)*unitNormal[d]) * ooSsM
		}
		energy := p.Density*p.Enthalpy - p.Pressure
		Us[nDim+1] = (energy*(s-projV) - p.Pressure*projV + pStar*sM) * ooSsM
		return
	}

	switch {
	case sL > 0:
		res.F = projFlux(nDim, &left, unitNormal, area)
	case sR < 0:
		res.F = projFlux(nDim, &right, unitNormal, area)
	case sM >= 0:
		F := projFlux(nDim, &left, unitNormal, 1)
		U := conservedFrom(nDim, &left)
		Us := starState(&left, projL, sL)
		for n := 0; n < nVar; n++ {
			res.F[n] = area * (F[n] + sL*(Us[n]-U[n]))
		}
	default:
		F := projFlux(nDim, &right, unitNormal, 1)
		U := conservedFrom(nDim, &right)
		Us := starState(&right, projR, sR)
		for n := 0; n < nVar; n++ {
			res.F[n] = area * (F[n] + sR*(Us[n]-U[n]))
		}
	}
	if implicit {
		upwindJacobians(nDim, gamma, &left, &right, &ra, unitNormal, area, &res)
	}
	return
}

// LaxFlux is the local Lax-Friedrichs scheme, scalar dissipation at the
// largest local wave speed.
type LaxFlux struct {
	NDim int
	FS   *physics.FreeStream
}

func (lf *LaxFlux) Compute(left, right physics.PrimState, unitNormal [3]float64, area float64, implicit bool) (res Result) {
	var (
		nDim         = lf.NDim
		nVar         = nDim + 2
		gamma        = lf.FS.Gamma
		projL, projR float64
	)
	for d := 0; d < nDim; d++ {
		projL += left.Velocity[d] * unitNormal[d]
		projR += right.Velocity[d] * unitNormal[d]
	}
	maxV := math.Max(math.Abs(projL)+left.SoundSpeed, math.Abs(projR)+right.SoundSpeed)
	var (
		UL = conservedFrom(nDim, &left)
		UR = conservedFrom(nDim, &right)
		FL = projFlux(nDim, &left, unitNormal, area)
		FR = projFlux(nDim, &right, unitNormal, area)
	)
	for n := 0; n < nVar; n++ {
		res.F[n] = 0.5*(FL[n]+FR[n]) - 0.5*maxV*area*(UR[n]-UL[n])
	}
	if implicit {
		energyL := left.Enthalpy - left.Pressure/left.Density
		energyR := right.Enthalpy - right.Pressure/right.Density
		res.JacL = projJac(nDim, left.Velocity, energyL, gamma, unitNormal, 0.5*area)
		res.JacR = projJac(nDim, right.Velocity, energyR, gamma, unitNormal, 0.5*area)
		for n := 0; n < nVar; n++ {
			res.JacL[n][n] += 0.5 * maxV * area
			res.JacR[n][n] -= 0.5 * maxV * area
		}
		res.HasJac = true
	}
	return
}
