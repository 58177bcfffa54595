package physics

import "math"

// PrimState is the cached primitive record of one point. It is a value
// type: policies receive copies and can never alias solver-internal
// storage.
type PrimState struct {
	Density, Pressure, Temperature  float64
	Velocity                        [3]float64
	SoundSpeed, Enthalpy            float64
	LamVisc, EddyVisc, Conductivity float64
}

func (p *PrimState) VelocityMag2(nDim int) (v2 float64) {
	for i := 0; i < nDim; i++ {
		v2 += p.Velocity[i] * p.Velocity[i]
	}
	return
}

// StateVector owns the per-point solution storage of one solver: the
// working conserved variables, the old-solution snapshot written only
// by Dirichlet boundary enforcement, the primitive cache, and auxiliary
// scalars. The conserved layout per point is density, nDim momentum
// components, total energy.
type StateVector struct {
	NDim, Nvar, NPoints int

	Conserved   []float64 // nPoints * Nvar, the working state
	OldSolution []float64 // distinct storage for strong-BC enforcement

	Primitive   []PrimState
	NonPhysical []bool

	// Auxiliary per-point scalars
	TauWall  []float64
	WallDist []float64

	// Gradients of (rho, velocity..., p, T), stride GradStride per
	// point, 3 components per field. Filled by the solver's Green-Gauss
	// pass.
	Grad       []float64
	GradFields int

	// Limiter value per point per gradient field
	Limiter []float64
}

const GradDim = 3

func NewStateVector(nDim, nPoints int) (sv *StateVector) {
	nVar := nDim + 2
	gradFields := nDim + 3
	sv = &StateVector{
		NDim:        nDim,
		Nvar:        nVar,
		NPoints:     nPoints,
		Conserved:   make([]float64, nPoints*nVar),
		OldSolution: make([]float64, nPoints*nVar),
		Primitive:   make([]PrimState, nPoints),
		NonPhysical: make([]bool, nPoints),
		TauWall:     make([]float64, nPoints),
		WallDist:    make([]float64, nPoints),
		Grad:        make([]float64, nPoints*gradFields*GradDim),
		GradFields:  gradFields,
		Limiter:     make([]float64, nPoints*gradFields),
	}
	return
}

func (sv *StateVector) ConservedAt(i int) []float64 {
	return sv.Conserved[i*sv.Nvar : (i+1)*sv.Nvar]
}

func (sv *StateVector) OldSolutionAt(i int) []float64 {
	return sv.OldSolution[i*sv.Nvar : (i+1)*sv.Nvar]
}

// GradAt returns the gradient components of one field at one point.
func (sv *StateVector) GradAt(i, field int) []float64 {
	base := (i*sv.GradFields + field) * GradDim
	return sv.Grad[base : base+GradDim]
}

func (sv *StateVector) LimiterAt(i, field int) float64 {
	return sv.Limiter[i*sv.GradFields+field]
}

// InitializeFreeStream sets every point, snapshot included, to the
// free-stream conserved state.
func (sv *StateVector) InitializeFreeStream(fs *FreeStream) {
	Uinf := fs.ConservedInf()
	for i := 0; i < sv.NPoints; i++ {
		copy(sv.ConservedAt(i), Uinf)
		copy(sv.OldSolutionAt(i), Uinf)
	}
}

// SnapshotSolution copies the working state into the old-solution
// storage. The driver calls it once at the top of every nonlinear
// iteration, before boundary enforcement pins Dirichlet entries in the
// snapshot; the update then rebuilds the working state from it.
func (sv *StateVector) SnapshotSolution() {
	copy(sv.OldSolution, sv.Conserved)
}

// SetVelocityOld overwrites the momentum components of the old-solution
// snapshot, the strong no-slip enforcement path. Density is read from
// the working state.
func (sv *StateVector) SetVelocityOld(i int, vel [3]float64) {
	rho := sv.ConservedAt(i)[0]
	old := sv.OldSolutionAt(i)
	for d := 0; d < sv.NDim; d++ {
		old[d+1] = rho * vel[d]
	}
}

// SetPrimitiveVariables recomputes the primitive cache of all points
// from the conserved variables and the supplied eddy viscosity, and
// returns the number of points where the decoded state was
// non-physical. Such points keep their previous valid primitive record
// and are only tallied. Safe to call concurrently on disjoint ranges
// via SetPrimitiveVariablesRange.
func (sv *StateVector) SetPrimitiveVariables(fs *FreeStream, eddyVisc []float64) (nonPhysical int) {
	return sv.SetPrimitiveVariablesRange(fs, eddyVisc, 0, sv.NPoints)
}

func (sv *StateVector) SetPrimitiveVariablesRange(fs *FreeStream, eddyVisc []float64, lo, hi int) (nonPhysical int) {
	var (
		gamma = fs.Gamma
		gm1   = gamma - 1
		cp    = fs.Cp()
	)
	for i := lo; i < hi; i++ {
		U := sv.ConservedAt(i)
		rho := U[0]
		if rho <= 0 {
			sv.NonPhysical[i] = true
			nonPhysical++
			continue
		}
		var vel [3]float64
		var v2 float64
		for d := 0; d < sv.NDim; d++ {
			vel[d] = U[d+1] / rho
			v2 += vel[d] * vel[d]
		}
		p := gm1 * (U[sv.NDim+1] - 0.5*rho*v2)
		T := p / (fs.GasConstant * rho)
		if p <= 0 || T <= 0 {
			sv.NonPhysical[i] = true
			nonPhysical++
			continue
		}
		var muT float64
		if eddyVisc != nil {
			muT = eddyVisc[i]
		}
		mu := fs.MuInf
		sv.Primitive[i] = PrimState{
			Density:      rho,
			Pressure:     p,
			Temperature:  T,
			Velocity:     vel,
			SoundSpeed:   sqrtClamped(gamma * p / rho),
			Enthalpy:     (U[sv.NDim+1] + p) / rho,
			LamVisc:      mu,
			EddyVisc:     muT,
			Conductivity: cp * (mu/fs.PrandtlLam + muT/fs.PrandtlTurb),
		}
		sv.NonPhysical[i] = false
	}
	return
}

// sqrtClamped clamps its argument to zero before taking the square root, which
// guards the sound speed against roundoff-negative c2 near vacuum states.
func sqrtClamped(x float64) (r float64) {
	if x > 0 {
		r = math.Sqrt(x)
	}
	return
}
