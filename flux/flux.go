package flux

import (
	"fmt"
	"strings"

	"github.com/davecats/fvflow/physics"
)

// MaxVar is the largest per-point block size supported by the value
// types in this package, density + three momentum components + energy.
const MaxVar = 5

// Result is the value-owned output of one edge flux evaluation. The
// Jacobian blocks are filled only when the caller requested implicit
// linearization, flagged by HasJac. Nothing in a Result aliases solver
// storage, so results can be computed in parallel and scattered later.
type Result struct {
	F          [MaxVar]float64
	JacL, JacR [MaxVar][MaxVar]float64
	HasJac     bool
}

// ConvectiveFlux maps a pair of reconstructed primitive states and the
// edge geometry to a numerical flux, oriented left to right along the
// unit normal. Implementations must be pure functions of their inputs.
type ConvectiveFlux interface {
	Compute(left, right physics.PrimState, unitNormal [3]float64, area float64, implicit bool) (res Result)
}

type ConvFluxType uint

const (
	FLUX_Roe ConvFluxType = iota
	FLUX_AUSM
	FLUX_HLLC
	FLUX_LaxFriedrichs
)

var (
	ConvFluxNames = map[string]ConvFluxType{
		"roe":  FLUX_Roe,
		"ausm": FLUX_AUSM,
		"hllc": FLUX_HLLC,
		"lax":  FLUX_LaxFriedrichs,
	}
	ConvFluxPrintNames = []string{"Roe", "AUSM", "HLLC", "Lax Friedrichs"}
)

func (ft ConvFluxType) Print() (txt string) {
	txt = ConvFluxPrintNames[ft]
	return
}

func NewConvFluxType(label string) (ft ConvFluxType) {
	var (
		ok  bool
		err error
	)
	label = strings.ToLower(label)
	if ft, ok = ConvFluxNames[label]; !ok {
		err = fmt.Errorf("unable to use convective flux named %s", label)
		panic(err)
	}
	return
}

// NewConvectiveFlux builds the selected scheme bound to one free-stream
// description. Selection happens once at configuration time.
func NewConvectiveFlux(label string, nDim int, fs *physics.FreeStream) (cf ConvectiveFlux) {
	switch NewConvFluxType(label) {
	case FLUX_Roe:
		cf = &RoeFlux{NDim: nDim, FS: fs}
	case FLUX_AUSM:
		cf = &AUSMFlux{NDim: nDim, FS: fs}
	case FLUX_HLLC:
		cf = &HLLCFlux{NDim: nDim, FS: fs}
	case FLUX_LaxFriedrichs:
		cf = &LaxFlux{NDim: nDim, FS: fs}
	}
	return
}

// conservedFrom recovers the conserved block of a primitive record.
func conservedFrom(nDim int, p *physics.PrimState) (U [MaxVar]float64) {
	U[0] = p.Density
	for d := 0; d < nDim; d++ {
		U[d+1] = p.Density * p.Velocity[d]
	}
	U[nDim+1] = p.Density*p.Enthalpy - p.Pressure
	return
}

// projFlux is the exact convective flux projected onto the unit normal
// and scaled by the face area.
func projFlux(nDim int, p *physics.PrimState, normal [3]float64, area float64) (F [MaxVar]float64) {
	var vn float64
	for d := 0; d < nDim; d++ {
		vn += p.Velocity[d] * normal[d]
	}
	mdot := p.Density * vn * area
	F[0] = mdot
	for d := 0; d < nDim; d++ {
		F[d+1] = mdot*p.Velocity[d] + p.Pressure*normal[d]*area
	}
	F[nDim+1] = mdot * p.Enthalpy
	return
}

// projJac is the exact Jacobian of the projected convective flux with
// respect to the conserved variables, scaled by val. The energy input
// is total energy per unit mass.
func projJac(nDim int, vel [3]float64, energy, gamma float64, normal [3]float64, val float64) (A [MaxVar][MaxVar]float64) {
	var (
		gm1          = gamma - 1
		sqvel, projV float64
	)
	for d := 0; d < nDim; d++ {
		sqvel += vel[d] * vel[d]
		projV += vel[d] * normal[d]
	}
	phi := 0.5 * gm1 * sqvel
	a1 := gamma*energy - phi // total enthalpy per unit mass

	for d := 0; d < nDim; d++ {
		A[0][d+1] = val * normal[d]
	}
	for i := 0; i < nDim; i++ {
		A[i+1][0] = val * (normal[i]*phi - vel[i]*projV)
		for j := 0; j < nDim; j++ {
			A[i+1][j+1] = val * (normal[j]*vel[i] - gm1*normal[i]*vel[j])
		}
		A[i+1][i+1] += val * projV
		A[i+1][nDim+1] = val * gm1 * normal[i]
	}
	A[nDim+1][0] = val * projV * (phi - a1)
	for j := 0; j < nDim; j++ {
		A[nDim+1][j+1] = val * (normal[j]*a1 - gm1*vel[j]*projV)
	}
	A[nDim+1][nDim+1] = val * gamma * projV
	return
}

// roeAverage holds the sqrt-density weighted interface state shared by
// the upwind schemes.
type roeAverage struct {
	Vel        [3]float64
	H, C, C2   float64
	Rho, ProjV float64
	SqVel      float64
}

func newRoeAverage(nDim int, gamma float64, l, r *physics.PrimState, normal [3]float64) (ra roeAverage) {
	var (
		gm1        = gamma - 1
		sqrtRhoL   = sqrtClamped(l.Density)
		sqrtRhoR   = sqrtClamped(r.Density)
		sqrtRhoSum = sqrtRhoL + sqrtRhoR
	)
	ra.Rho = sqrtRhoL * sqrtRhoR
	for d := 0; d < nDim; d++ {
		ra.Vel[d] = (sqrtRhoL*l.Velocity[d] + sqrtRhoR*r.Velocity[d]) / sqrtRhoSum
		ra.SqVel += ra.Vel[d] * ra.Vel[d]
		ra.ProjV += ra.Vel[d] * normal[d]
	}
	ra.H = (sqrtRhoL*l.Enthalpy + sqrtRhoR*r.Enthalpy) / sqrtRhoSum
	ra.C2 = gm1 * (ra.H - 0.5*ra.SqVel)
	ra.C = sqrtClamped(ra.C2)
	return
}
