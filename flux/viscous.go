package flux

import (
	"github.com/davecats/fvflow/physics"
)

// StressTensor evaluates the Newtonian viscous stress under the Stokes
// hypothesis from a velocity gradient.
func StressTensor(nDim int, mu float64, gradVel [3][3]float64) (tau [3][3]float64) {
	var div float64
	for d := 0; d < nDim; d++ {
		div += gradVel[d][d]
	}
	for i := 0; i < nDim; i++ {
		for j := 0; j < nDim; j++ {
			tau[i][j] = mu * (gradVel[i][j] + gradVel[j][i])
		}
		tau[i][i] -= 2.0 / 3.0 * mu * div
	}
	return
}

// ViscousFlux evaluates the projected viscous flux from edge-averaged
// gradients with the face-normal component corrected by the two-point
// difference along the edge. The returned flux is oriented so that the
// caller subtracts it from the left point and adds it to the right one.
type ViscousFlux struct {
	NDim int
	FS   *physics.FreeStream
}

// correctedGrad averages the endpoint gradients and replaces the
// edge-direction component with the compact two-point difference,
// which suppresses the odd-even decoupling of plain averages.
func correctedGrad(nDim int, gL, gR [3]float64, edgeDir [3]float64, delta, dist float64) (g [3]float64) {
	var gDotE float64
	for d := 0; d < nDim; d++ {
		g[d] = 0.5 * (gL[d] + gR[d])
		gDotE += g[d] * edgeDir[d]
	}
	for d := 0; d < nDim; d++ {
		g[d] -= (gDotE - delta/dist) * edgeDir[d]
	}
	return
}

// Compute evaluates one face. A positive tauWall overrides the
// magnitude of the tangential traction with a wall-law shear stress,
// the wall-function coupling path; zero leaves the gradient-based
// traction untouched.
func (vf *ViscousFlux) Compute(left, right physics.PrimState,
	gradVelL, gradVelR [3][3]float64, gradTL, gradTR [3]float64,
	edgeVec [3]float64, unitNormal [3]float64, area, tauWall float64, implicit bool) (res Result) {
	var (
		nDim = vf.NDim
		dist float64
	)
	for d := 0; d < nDim; d++ {
		dist += edgeVec[d] * edgeVec[d]
	}
	dist = sqrtClamped(dist)
	var edgeDir [3]float64
	for d := 0; d < nDim; d++ {
		edgeDir[d] = edgeVec[d] / dist
	}

	var (
		meanVel     [3]float64
		meanGradVel [3][3]float64
	)
	for d := 0; d < nDim; d++ {
		meanVel[d] = 0.5 * (left.Velocity[d] + right.Velocity[d])
		meanGradVel[d] = correctedGrad(nDim, gradVelL[d], gradVelR[d],
			edgeDir, right.Velocity[d]-left.Velocity[d], dist)
	}
	gradT := correctedGrad(nDim, gradTL, gradTR, edgeDir,
		right.Temperature-left.Temperature, dist)

	var (
		muTot = 0.5 * (left.LamVisc + left.EddyVisc + right.LamVisc + right.EddyVisc)
		kappa = 0.5 * (left.Conductivity + right.Conductivity)
		tau   = StressTensor(nDim, muTot, meanGradVel)
	)
	var traction [3]float64
	for d := 0; d < nDim; d++ {
		for j := 0; j < nDim; j++ {
			traction[d] += tau[d][j] * unitNormal[j]
		}
	}
	if tauWall > 0 {
		rescaleTangential(nDim, &traction, unitNormal, tauWall)
	}
	var heatN float64
	for d := 0; d < nDim; d++ {
		res.F[d+1] = traction[d] * area
		res.F[nDim+1] += traction[d] * meanVel[d] * area
		heatN += gradT[d] * unitNormal[d]
	}
	res.F[nDim+1] += kappa * heatN * area

	if implicit {
		vf.thinShearJacobians(&left, &right, meanVel, muTot, kappa, unitNormal, dist, area, &res)
	}
	return
}

// rescaleTangential splits the traction into its normal and tangential
// parts and scales the tangential part so its magnitude equals
// tauWall, keeping the direction of the computed shear.
func rescaleTangential(nDim int, traction *[3]float64, n [3]float64, tauWall float64) {
	var tN float64
	for d := 0; d < nDim; d++ {
		tN += traction[d] * n[d]
	}
	var (
		tang [3]float64
		mag2 float64
	)
	for d := 0; d < nDim; d++ {
		tang[d] = traction[d] - tN*n[d]
		mag2 += tang[d] * tang[d]
	}
	mag := sqrtClamped(mag2)
	if mag < 1e-30 {
		return
	}
	for d := 0; d < nDim; d++ {
		traction[d] = tN*n[d] + tauWall/mag*tang[d]
	}
}

// thinShearJacobians is the compact implicit linearization of the
// viscous flux: gradients are approximated by the two-point difference
// along the normal, which yields a local Jacobian in the two endpoint
// states only.
func (vf *ViscousFlux) thinShearJacobians(left, right *physics.PrimState,
	meanVel [3]float64, muTot, kappa float64, n [3]float64, dist, area float64, res *Result) {
	var (
		nDim    = vf.NDim
		fs      = vf.FS
		gm1oR   = (fs.Gamma - 1) / fs.GasConstant
		meanRho = 0.5 * (left.Density + right.Density)
		factor  = muTot * area / (meanRho * dist)
		cond    = kappa * area / dist
	)
	// Theta couples the momentum components through the deviatoric
	// stress projected on the normal.
	var theta [3][3]float64
	for i := 0; i < nDim; i++ {
		theta[i][i] = 1
		for j := 0; j < nDim; j++ {
			theta[i][j] += n[i] * n[j] / 3.0
		}
	}
	var pi [3]float64
	for i := 0; i < nDim; i++ {
		for j := 0; j < nDim; j++ {
			pi[i] += theta[i][j] * meanVel[j]
		}
	}
	// Momentum rows, diffusion of velocity
	for i := 0; i < nDim; i++ {
		res.JacR[i+1][0] = -factor * pi[i]
		for j := 0; j < nDim; j++ {
			res.JacR[i+1][j+1] = factor * theta[i][j]
		}
	}
	// Energy row, stress work at frozen mean velocity plus conduction
	// through the ideal-gas temperature
	var (
		piDotV float64
		sqvel  float64
	)
	for d := 0; d < nDim; d++ {
		piDotV += pi[d] * meanVel[d]
		sqvel += meanVel[d] * meanVel[d]
	}
	meanP := 0.5 * (left.Pressure + right.Pressure)
	meanE := meanP/(meanRho*(fs.Gamma-1)) + 0.5*sqvel // total energy per unit mass
	res.JacR[nDim+1][0] = -factor*piDotV + cond*gm1oR*(sqvel-meanE)/meanRho
	for d := 0; d < nDim; d++ {
		res.JacR[nDim+1][d+1] = factor*pi[d] - cond*gm1oR*meanVel[d]/meanRho
	}
	res.JacR[nDim+1][nDim+1] = cond * gm1oR / meanRho

	for i := 0; i <= nDim+1; i++ {
		for j := 0; j <= nDim+1; j++ {
			res.JacL[i][j] = -res.JacR[i][j]
		}
	}
	// Stress-work dependence through the averaged velocity itself
	for d := 0; d < nDim; d++ {
		res.JacR[nDim+1][d+1] += 0.5 * res.F[d+1] / right.Density
		res.JacR[nDim+1][0] -= 0.5 * res.F[d+1] * right.Velocity[d] / right.Density
		res.JacL[nDim+1][d+1] += 0.5 * res.F[d+1] / left.Density
		res.JacL[nDim+1][0] -= 0.5 * res.F[d+1] * left.Velocity[d] / left.Density
	}
	res.HasJac = true
}
