package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreeStream(t *testing.T) {
	{ // Non-dimensionalization: rho=c=T=1, p=1/gamma, |V|=Minf
		fs := NewFreeStream(2, 0.8, 1.4, 0, 0)
		assert.Equal(t, 1., fs.RhoInf)
		assert.InDelta(t, 1./1.4, fs.Pinf, 1.e-15)
		assert.InDelta(t, 0.8, fs.VelMagInf(), 1.e-15)
		// Free-stream primitives are consistent with the gas law
		p := fs.PrimInf()
		assert.InDelta(t, p.Pressure, fs.GasConstant*p.Density*p.Temperature, 1.e-15)
		assert.InDelta(t, 1., p.SoundSpeed, 1.e-15)
	}
	{ // Angle of attack rotates the velocity, magnitude unchanged
		fs := NewFreeStream(2, 2.0, 1.4, 30, 0)
		assert.InDelta(t, 2.0*math.Cos(math.Pi/6), fs.VelInf[0], 1.e-14)
		assert.InDelta(t, 2.0*math.Sin(math.Pi/6), fs.VelInf[1], 1.e-14)
		assert.InDelta(t, 2.0, fs.VelMagInf(), 1.e-14)
	}
	{ // Viscosity from the Reynolds number
		fs := NewFreeStream(2, 0.5, 1.4, 0, 1000)
		assert.InDelta(t, 0.5/1000, fs.MuInf, 1.e-15)
	}
	{ // Stagnant free stream is fatal for normalized marker velocities
		fs := NewFreeStream(2, 0, 1.4, 0, 0)
		assert.Panics(t, func() { fs.RequireVelMagInf() })
	}
}

func TestPrimitiveRecovery(t *testing.T) {
	var (
		fs = NewFreeStream(2, 0.8, 1.4, 0, 1000)
		sv = NewStateVector(2, 4)
	)
	sv.InitializeFreeStream(fs)
	{ // All points physical, primitives match the free stream
		n := sv.SetPrimitiveVariables(fs, nil)
		assert.Equal(t, 0, n)
		want := fs.PrimInf()
		got := sv.Primitive[2]
		assert.InDelta(t, want.Density, got.Density, 1.e-14)
		assert.InDelta(t, want.Pressure, got.Pressure, 1.e-14)
		assert.InDelta(t, want.Temperature, got.Temperature, 1.e-14)
		assert.InDelta(t, want.Enthalpy, got.Enthalpy, 1.e-14)
		assert.InDelta(t, want.SoundSpeed, got.SoundSpeed, 1.e-14)
	}
	{ // Negative density: point is tallied, keeps its last valid record
		sv.ConservedAt(1)[0] = -0.1
		n := sv.SetPrimitiveVariables(fs, nil)
		assert.Equal(t, 1, n)
		assert.True(t, sv.NonPhysical[1])
		assert.InDelta(t, fs.RhoInf, sv.Primitive[1].Density, 1.e-14)
	}
	{ // Negative pressure trips the same path
		U := sv.ConservedAt(3)
		U[3] = 0.5 * (U[1]*U[1] + U[2]*U[2]) / U[0] * 0.99
		n := sv.SetPrimitiveVariables(fs, nil)
		assert.Equal(t, 2, n)
		assert.True(t, sv.NonPhysical[3])
		assert.InDelta(t, fs.Pinf, sv.Primitive[3].Pressure, 1.e-14)
	}
	{ // Recovery is repeatable: same count, no further corruption
		n := sv.SetPrimitiveVariables(fs, nil)
		assert.Equal(t, 2, n)
		assert.False(t, sv.NonPhysical[0])
	}
	{ // Eddy viscosity feeds the effective conductivity
		ev := make([]float64, 4)
		ev[0] = 3 * fs.MuInf
		sv.SetPrimitiveVariables(fs, ev)
		p := sv.Primitive[0]
		assert.InDelta(t, ev[0], p.EddyVisc, 1.e-15)
		wantK := fs.Cp() * (fs.MuInf/fs.PrandtlLam + ev[0]/fs.PrandtlTurb)
		assert.InDelta(t, wantK, p.Conductivity, 1.e-15)
	}
}

func TestStrongVelocityEnforcement(t *testing.T) {
	var (
		fs = NewFreeStream(2, 0.8, 1.4, 0, 0)
		sv = NewStateVector(2, 2)
	)
	sv.InitializeFreeStream(fs)
	sv.SetVelocityOld(0, [3]float64{0, 0, 0})
	old := sv.OldSolutionAt(0)
	assert.Equal(t, 0., old[1])
	assert.Equal(t, 0., old[2])
	// Density and energy of the snapshot are untouched
	assert.InDelta(t, fs.RhoInf, old[0], 1.e-15)
	assert.InDelta(t, fs.RhoInf*fs.EnergyInf, old[3], 1.e-15)
	// The working state is not written by the snapshot path
	assert.InDelta(t, fs.RhoInf*fs.VelInf[0], sv.ConservedAt(0)[1], 1.e-15)
}
