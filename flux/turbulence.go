package flux

import "math"

// Spalart-Allmaras closure coefficients
const (
	saCb1   = 0.1355
	saCb2   = 0.622
	saSigma = 2.0 / 3.0
	saKappa = 0.41
	saCw2   = 0.3
	saCw3   = 2.0
	saCv1   = 7.1
)

var saCw1 = saCb1/(saKappa*saKappa) + (1+saCb2)/saSigma

// ScalarResult is the one-equation counterpart of Result.
type ScalarResult struct {
	F          float64
	JacL, JacR float64
	HasJac     bool
}

// ScalarUpwind is the first-order upwind convective flux of a passive
// scalar carried by the mean flow.
type ScalarUpwind struct {
	NDim int
}

func (su *ScalarUpwind) Compute(velL, velR [3]float64, nuL, nuR float64,
	unitNormal [3]float64, area float64, implicit bool) (res ScalarResult) {
	var projV float64
	for d := 0; d < su.NDim; d++ {
		projV += 0.5 * (velL[d] + velR[d]) * unitNormal[d]
	}
	q := projV * area
	res.F = 0.5*q*(nuL+nuR) + 0.5*math.Abs(q)*(nuL-nuR)
	if implicit {
		res.JacL = 0.5 * (q + math.Abs(q))
		res.JacR = 0.5 * (q - math.Abs(q))
		res.HasJac = true
	}
	return
}

// ScalarDiffusion is the compact two-point diffusion flux of the
// working variable, oriented like ViscousFlux: subtract at the left
// point, add at the right.
type ScalarDiffusion struct {
	NDim int
}

func (sd *ScalarDiffusion) Compute(nuLamL, nuLamR, nuL, nuR float64,
	edgeVec [3]float64, unitNormal [3]float64, area float64, implicit bool) (res ScalarResult) {
	var (
		dist  float64
		projE float64
	)
	for d := 0; d < sd.NDim; d++ {
		dist += edgeVec[d] * edgeVec[d]
	}
	dist = sqrtClamped(dist)
	for d := 0; d < sd.NDim; d++ {
		projE += edgeVec[d] / dist * unitNormal[d]
	}
	diffMean := 0.5 * (nuLamL + nuL + nuLamR + nuR) / saSigma
	coeff := diffMean * area * projE / dist
	res.F = coeff * (nuR - nuL)
	if implicit {
		res.JacL = -coeff
		res.JacR = coeff
		res.HasJac = true
	}
	return
}

// VorticityMag is the vorticity magnitude of a velocity gradient.
func VorticityMag(nDim int, gradVel [3][3]float64) (omega float64) {
	if nDim == 2 {
		omega = math.Abs(gradVel[1][0] - gradVel[0][1])
		return
	}
	var (
		wx = gradVel[2][1] - gradVel[1][2]
		wy = gradVel[0][2] - gradVel[2][0]
		wz = gradVel[1][0] - gradVel[0][1]
	)
	omega = math.Sqrt(wx*wx + wy*wy + wz*wz)
	return
}

// EddyViscositySA converts the working variable to eddy viscosity.
func EddyViscositySA(density, lamVisc, nuTilde float64) (muT float64) {
	if nuTilde <= 0 {
		return
	}
	chi := density * nuTilde / lamVisc
	chi3 := chi * chi * chi
	fv1 := chi3 / (chi3 + saCv1*saCv1*saCv1)
	muT = density * nuTilde * fv1
	return
}

// SASource is the Spalart-Allmaras production, destruction and
// cross-diffusion source, integrated over one control volume.
type SASource struct {
	NDim int
}

func (ss *SASource) Compute(nuTilde float64, gradNu [3]float64,
	vorticity, wallDist, lamVisc, density, volume float64, implicit bool) (res ScalarResult) {
	if wallDist < 1e-10 || nuTilde < 0 {
		return
	}
	var (
		nDim = ss.NDim
		nu   = lamVisc / density
		d2   = wallDist * wallDist
		k2d2 = saKappa * saKappa * d2
	)
	chi := nuTilde / nu
	chi3 := chi * chi * chi
	fv1 := chi3 / (chi3 + saCv1*saCv1*saCv1)
	fv2 := 1 - chi/(1+chi*fv1)

	sHat := vorticity + nuTilde/k2d2*fv2
	if sHat < 1e-10 {
		sHat = 1e-10
	}
	r := nuTilde / (sHat * k2d2)
	if r > 10 {
		r = 10
	}
	g := r + saCw2*(math.Pow(r, 6)-r)
	cw36 := math.Pow(saCw3, 6)
	fw := g * math.Pow((1+cw36)/(math.Pow(g, 6)+cw36), 1.0/6.0)

	var gradNu2 float64
	for d := 0; d < nDim; d++ {
		gradNu2 += gradNu[d] * gradNu[d]
	}
	production := saCb1 * sHat * nuTilde
	destruction := saCw1 * fw * nuTilde * nuTilde / d2
	crossProd := saCb2 / saSigma * gradNu2

	res.F = (production - destruction + crossProd) * volume
	if implicit {
		// Frozen fw and sHat, the standard point-implicit treatment
		res.JacL = (saCb1*sHat - 2*saCw1*fw*nuTilde/d2) * volume
		res.HasJac = true
	}
	return
}
