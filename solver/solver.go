package solver

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/davecats/fvflow/InputParameters"
	"github.com/davecats/fvflow/flux"
	"github.com/davecats/fvflow/mesh"
	"github.com/davecats/fvflow/physics"
	"github.com/davecats/fvflow/utils"
)

type Regime uint

const (
	REGIME_Euler Regime = iota
	REGIME_NavierStokes
	REGIME_RANS
)

var (
	RegimeNames = map[string]Regime{
		"euler":         REGIME_Euler,
		"navier_stokes": REGIME_NavierStokes,
		"rans":          REGIME_RANS,
	}
	RegimePrintNames = []string{"Euler", "Navier Stokes", "RANS"}
)

func (r Regime) Print() (txt string) {
	txt = RegimePrintNames[r]
	return
}

func NewRegime(label string) (r Regime) {
	var (
		ok  bool
		err error
	)
	label = strings.ToLower(label)
	if r, ok = RegimeNames[label]; !ok {
		err = fmt.Errorf("unable to use flow regime named %s", label)
		panic(err)
	}
	return
}

// Solver drives the implicit finite-volume iteration: primitive
// recovery, gradient and limiter evaluation, edge-based residual and
// Jacobian assembly, boundary conditions, a preconditioned Krylov
// solve of the linearized system and the state update.
type Solver struct {
	IP    *InputParameters.InputParameters
	FS    *physics.FreeStream
	Mesh  *mesh.Topology
	State *physics.StateVector
	Exch  mesh.FieldExchanger

	NDim, Nvar int
	Regime     Regime
	Implicit   bool
	MUSCL      bool

	ConvFlux flux.ConvectiveFlux
	ViscFlux *flux.ViscousFlux
	Limiter  LimiterType

	Residual []float64
	Jacobian *utils.BlockMatrix
	DeltaU   []float64
	Dt       []float64
	CFL      float64

	pmPoints, pmEdges *utils.PartitionMap
	edgeFlux          []flux.Result
	bndFaces          [][][3]float64 // per point, outward boundary face normals

	precon *utils.BlockJacobi
	bcs    []*boundaryCondition

	Turb *TurbSolver

	// Diagnostics of the current outer iteration
	Iter            int
	NonPhysical     int
	LinearReport    utils.LinearSolveReport
	WallFnSkipped   int64
	WallFnFailed    int64
	resNorm         []float64
	resNormInitial  []float64
	lastResidualRMS float64
}

func NewSolver(ip *InputParameters.InputParameters, msh *mesh.Topology, exch mesh.FieldExchanger) (s *Solver) {
	var (
		nDim    = msh.NDim
		nVar    = nDim + 2
		nPoints = msh.NumPoints()
	)
	if exch == nil {
		exch = mesh.LocalExchanger{}
	}
	s = &Solver{
		IP:       ip,
		FS:       physics.NewFreeStream(nDim, ip.Minf, ip.Gamma, ip.Alpha, ip.Reynolds),
		Mesh:     msh,
		Exch:     exch,
		NDim:     nDim,
		Nvar:     nVar,
		Regime:   NewRegime(ip.Regime),
		Implicit: ip.ImplicitSolver,
		MUSCL:    ip.MUSCL,
		Limiter:  NewLimiterType(ip.LimiterType),
		CFL:      ip.CFL,
		Residual: make([]float64, nPoints*nVar),
		DeltaU:   make([]float64, nPoints*nVar),
		Dt:       make([]float64, nPoints),
		pmPoints: utils.NewPartitionMap(ip.ParallelDegree, nPoints),
		pmEdges:  utils.NewPartitionMap(ip.ParallelDegree, msh.NumEdges()),
		edgeFlux: make([]flux.Result, msh.NumEdges()),
		resNorm:  make([]float64, nVar),
	}
	s.State = physics.NewStateVector(nDim, nPoints)
	s.ConvFlux = flux.NewConvectiveFlux(ip.FluxType, nDim, s.FS)
	if s.Regime != REGIME_Euler {
		s.ViscFlux = &flux.ViscousFlux{NDim: nDim, FS: s.FS}
	}
	if s.Implicit {
		s.Jacobian = utils.NewBlockMatrix(nPoints, nVar, msh.EdgePairs())
		s.precon = utils.NewBlockJacobi(nPoints, nVar)
	}
	s.bcs = buildBoundaryConditions(s)
	s.bndFaces = make([][][3]float64, nPoints)
	for mi := range msh.Markers {
		for _, v := range msh.Markers[mi].Vertices {
			s.bndFaces[v.Point] = append(s.bndFaces[v.Point], v.Normal)
		}
	}
	s.State.InitializeFreeStream(s.FS)
	if s.Regime == REGIME_RANS {
		s.Turb = NewTurbSolver(s)
		s.computeWallDistance()
	}
	if ip.RestartFile != "" {
		s.LoadRestart(ip.RestartFile)
	}
	return
}

// Preprocessing refreshes every derived field the assembly pass reads:
// halo values, the primitive cache, gradients, limiters, eddy
// viscosity and wall shear stress.
func (s *Solver) Preprocessing() {
	s.Exch.Initiate("conserved", s.State.Conserved, s.Nvar)
	s.Exch.Complete("conserved")

	var muT []float64
	if s.Turb != nil {
		s.Turb.SetEddyViscosity()
		muT = s.Turb.EddyVisc
	}
	s.NonPhysical = s.parallelPrimitives(muT)

	// Wall functions run on the fresh primitives and before the
	// gradient pass: the wall-law eddy viscosity they write into the
	// wall-point primitive records feeds this iteration's viscous
	// fluxes and conductivities.
	s.WallFnSkipped, s.WallFnFailed = 0, 0
	for i := range s.State.TauWall {
		s.State.TauWall[i] = 0
	}
	for _, bc := range s.bcs {
		if bc.Spec.WallFunction {
			s.applyWallFunctions(bc)
		}
	}

	s.computeGradients()
	if s.MUSCL {
		s.computeLimiters()
	}
}

func (s *Solver) parallelPrimitives(muT []float64) (nonPhysical int) {
	var (
		wg     sync.WaitGroup
		counts = make([]int, s.pmPoints.ParallelDegree)
	)
	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			counts[np] = s.State.SetPrimitiveVariablesRange(s.FS, muT, lo, hi)
		}(np)
	}
	wg.Wait()
	for _, c := range counts {
		nonPhysical += c
	}
	return
}

// Iterate advances the solution by one nonlinear iteration and reports
// whether the convergence floor has been reached.
func (s *Solver) Iterate() (converged bool) {
	s.State.SnapshotSolution()
	s.Preprocessing()

	s.zeroSystem()
	s.assembleInterior()
	s.applyBoundaryConditions()

	s.computeTimeStep()
	if s.Implicit {
		s.implicitUpdate()
	} else {
		s.explicitUpdate()
	}

	if s.Turb != nil {
		s.Turb.Iterate()
	}

	converged = s.monitorConvergence()
	if s.IP.AdaptCFL {
		s.adaptCFL()
	}
	s.Iter++
	return
}

// Run executes the outer loop until convergence or the iteration cap.
// Hitting the cap is a terminal state, not an error.
func (s *Solver) Run() {
	s.printHistoryHeader()
	for s.Iter < s.IP.MaxIterations {
		converged := s.Iterate()
		s.printHistoryLine()
		if converged {
			fmt.Printf("Converged in %d iterations\n", s.Iter)
			return
		}
	}
	fmt.Printf("Iteration limit of %d reached\n", s.IP.MaxIterations)
}

func (s *Solver) zeroSystem() {
	for i := range s.Residual {
		s.Residual[i] = 0
	}
	if s.Implicit {
		s.Jacobian.Zero()
	}
}

// computeTimeStep sets the local pseudo time step from the convective
// and viscous spectral radii summed over each control volume's faces.
func (s *Solver) computeTimeStep() {
	var (
		nDim = s.NDim
		fs   = s.FS
		wg   sync.WaitGroup
	)
	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			for ip := lo; ip < hi; ip++ {
				var (
					prim             = &s.State.Primitive[ip]
					lamConv, lamVisc float64
				)
				addFace := func(normal [3]float64) {
					area := mesh.Norm(nDim, normal)
					if area == 0 {
						return
					}
					var projV float64
					for d := 0; d < nDim; d++ {
						projV += prim.Velocity[d] * normal[d] / area
					}
					lamConv += (math.Abs(projV) + prim.SoundSpeed) * area
					if s.ViscFlux != nil {
						muTot := prim.LamVisc + prim.EddyVisc
						lamVisc += fs.Gamma * muTot / (fs.PrandtlLam * prim.Density) * area * area
					}
				}
				for _, er := range s.Mesh.Incident(ip) {
					addFace(s.Mesh.Edges[er.Edge].Normal)
				}
				for _, normal := range s.bndFaces[ip] {
					addFace(normal)
				}
				vol := s.Mesh.Points[ip].Volume
				lambda := lamConv
				if vol > 0 {
					lambda += 4 * lamVisc / vol
				}
				if lambda > 0 {
					s.Dt[ip] = s.CFL * vol / lambda
				} else {
					s.Dt[ip] = s.CFL
				}
			}
		}(np)
	}
	wg.Wait()
}

// implicitUpdate solves (V/dt I + dR/dU) dU = -R and rebuilds the
// working state as U = U_old + dU, so the Dirichlet entries pinned in
// the old-solution snapshot land in the working state.
func (s *Solver) implicitUpdate() {
	for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		if s.Dt[ip] > 0 {
			s.Jacobian.AddToDiag(ip, s.Mesh.Points[ip].Volume/s.Dt[ip])
		}
	}
	b := make([]float64, len(s.Residual))
	for i, r := range s.Residual {
		b[i] = -r
		s.DeltaU[i] = 0
	}
	s.precon.Factor(s.Jacobian)
	switch strings.ToLower(s.IP.LinearSolver) {
	case "gmres":
		s.LinearReport = utils.GMRES(s.Jacobian, s.precon, b, s.DeltaU,
			s.IP.LinearSolverTol, s.IP.LinearSolverIter, s.IP.GMRESRestart)
	case "bicgstab":
		s.LinearReport = utils.BiCGSTAB(s.Jacobian, s.precon, b, s.DeltaU,
			s.IP.LinearSolverTol, s.IP.LinearSolverIter)
	default:
		panic(fmt.Errorf("unable to use linear solver named %s", s.IP.LinearSolver))
	}
	for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		var (
			U   = s.State.ConservedAt(ip)
			old = s.State.OldSolutionAt(ip)
			dU  = s.DeltaU[ip*s.Nvar : (ip+1)*s.Nvar]
		)
		for n := 0; n < s.Nvar; n++ {
			U[n] = old[n] + dU[n]
		}
	}
}

// explicitUpdate is forward Euler with the local time step, applied
// against the old-solution snapshot like the implicit path.
func (s *Solver) explicitUpdate() {
	for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		var (
			U   = s.State.ConservedAt(ip)
			old = s.State.OldSolutionAt(ip)
			vol = s.Mesh.Points[ip].Volume
		)
		if vol <= 0 {
			continue
		}
		for n := 0; n < s.Nvar; n++ {
			U[n] = old[n] - s.Dt[ip]/vol*s.Residual[ip*s.Nvar+n]
		}
	}
}

// monitorConvergence computes the per-equation RMS residual norms and
// compares the density norm against the convergence floor.
func (s *Solver) monitorConvergence() (converged bool) {
	var nDomain int
	for n := range s.resNorm {
		s.resNorm[n] = 0
	}
	for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		nDomain++
		for n := 0; n < s.Nvar; n++ {
			r := s.Residual[ip*s.Nvar+n]
			s.resNorm[n] += r * r
		}
	}
	for n := range s.resNorm {
		s.resNorm[n] = math.Sqrt(s.resNorm[n] / float64(nDomain))
	}
	if s.resNormInitial == nil {
		s.resNormInitial = append([]float64{}, s.resNorm...)
	}
	converged = s.resNorm[0] < s.IP.ConvergenceTol
	return
}

// ResidualDrop reports how many orders of magnitude the density
// residual has fallen since the first recorded iteration.
func (s *Solver) ResidualDrop() (drop float64) {
	if s.resNormInitial == nil || s.resNormInitial[0] <= 0 || s.resNorm[0] <= 0 {
		return
	}
	drop = math.Log10(s.resNormInitial[0] / s.resNorm[0])
	return
}

// adaptCFL follows the residual history: exponential growth while the
// density residual falls, a sharp cut when it rises, always clamped to
// the configured band.
func (s *Solver) adaptCFL() {
	rms := s.resNorm[0]
	if s.lastResidualRMS > 0 {
		if rms <= s.lastResidualRMS {
			s.CFL *= s.IP.CFLFactorUp
		} else {
			s.CFL *= s.IP.CFLFactorDown
		}
		if s.CFL < s.IP.CFLMin {
			s.CFL = s.IP.CFLMin
		}
		if s.CFL > s.IP.CFLMax {
			s.CFL = s.IP.CFLMax
		}
	}
	s.lastResidualRMS = rms
}

func (s *Solver) printHistoryHeader() {
	fmt.Printf("%s solver, %s flux\n", s.Regime.Print(), flux.NewConvFluxType(s.IP.FluxType).Print())
	fmt.Printf("iter          CFL     res[rho]    res[rhoU]    res[rhoE]     drop   nonphys  linits\n")
}

func (s *Solver) printHistoryLine() {
	logOrFloor := func(x float64) float64 {
		if x <= 0 {
			return -99
		}
		return math.Log10(x)
	}
	fmt.Printf("%5d %11.4f %12.6f %12.6f %12.6f %8.4f %9d %7d\n",
		s.Iter, s.CFL,
		logOrFloor(s.resNorm[0]), logOrFloor(s.resNorm[1]), logOrFloor(s.resNorm[s.Nvar-1]),
		s.ResidualDrop(), s.NonPhysical, s.LinearReport.Iterations)
}

// ResidualAt returns one point's residual block.
func (s *Solver) ResidualAt(ip int) []float64 {
	return s.Residual[ip*s.Nvar : (ip+1)*s.Nvar]
}
