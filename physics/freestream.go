package physics

import (
	"fmt"
	"math"
)

// FreeStream carries the non-dimensional reference state. Density and
// sound speed at infinity are 1, so velocity magnitude equals the Mach
// number, matching the usual compressible non-dimensionalization.
type FreeStream struct {
	NDim  int
	Gamma float64
	Minf  float64
	Alpha float64 // angle of attack, degrees

	GasConstant float64
	PrandtlLam  float64
	PrandtlTurb float64

	RhoInf, Pinf, Tinf, Cinf float64
	VelInf                   [3]float64
	EnergyInf                float64
	MuInf                    float64 // laminar viscosity from Re_inf
}

func NewFreeStream(nDim int, Minf, Gamma, Alpha, Reynolds float64) (fs *FreeStream) {
	var (
		alphaRad = Alpha * math.Pi / 180.
	)
	fs = &FreeStream{
		NDim:        nDim,
		Gamma:       Gamma,
		Minf:        Minf,
		Alpha:       Alpha,
		GasConstant: 1. / Gamma, // so that Tinf = 1 with rho=1, p=1/Gamma
		PrandtlLam:  0.72,
		PrandtlTurb: 0.90,
		RhoInf:      1,
		Pinf:        1. / Gamma,
		Cinf:        1,
		Tinf:        1,
	}
	fs.VelInf[0] = Minf * math.Cos(alphaRad)
	if nDim > 1 {
		fs.VelInf[1] = Minf * math.Sin(alphaRad)
	}
	fs.EnergyInf = fs.Pinf/(fs.RhoInf*(Gamma-1)) + 0.5*Minf*Minf
	if Reynolds > 0 {
		fs.MuInf = fs.RhoInf * Minf / Reynolds
	}
	return
}

// VelMagInf returns the free-stream speed, and is fatal when it is zero
// and a caller needs it for normalization.
func (fs *FreeStream) VelMagInf() float64 {
	var v2 float64
	for i := 0; i < fs.NDim; i++ {
		v2 += fs.VelInf[i] * fs.VelInf[i]
	}
	return math.Sqrt(v2)
}

// RequireVelMagInf is used by boundary conditions that scale marker
// velocities by the free-stream speed.
func (fs *FreeStream) RequireVelMagInf() float64 {
	v := fs.VelMagInf()
	if v == 0 {
		panic(fmt.Errorf("free-stream velocity is zero, cannot normalize boundary velocities"))
	}
	return v
}

// ConservedInf assembles the free-stream conserved vector in the solver
// variable order (density, momentum, energy).
func (fs *FreeStream) ConservedInf() (U []float64) {
	U = make([]float64, fs.NDim+2)
	U[0] = fs.RhoInf
	for i := 0; i < fs.NDim; i++ {
		U[i+1] = fs.RhoInf * fs.VelInf[i]
	}
	U[fs.NDim+1] = fs.RhoInf * fs.EnergyInf
	return
}

// Cp returns the non-dimensional specific heat at constant pressure.
func (fs *FreeStream) Cp() float64 {
	return fs.Gamma * fs.GasConstant / (fs.Gamma - 1)
}

// PrimInf is the free-stream primitive record, the ghost state used by
// far-field boundaries.
func (fs *FreeStream) PrimInf() (p PrimState) {
	p = PrimState{
		Density:      fs.RhoInf,
		Pressure:     fs.Pinf,
		Temperature:  fs.Tinf,
		Velocity:     fs.VelInf,
		SoundSpeed:   fs.Cinf,
		Enthalpy:     fs.EnergyInf + fs.Pinf/fs.RhoInf,
		LamVisc:      fs.MuInf,
		Conductivity: fs.Cp() * fs.MuInf / fs.PrandtlLam,
	}
	return
}
