package solver

import (
	"math"
	"sync"

	"github.com/davecats/fvflow/flux"
	"github.com/davecats/fvflow/mesh"
	"github.com/davecats/fvflow/utils"
)

// TurbSolver is the one-equation Spalart-Allmaras companion of the mean
// flow solver. It reuses the same edge machinery with a scalar block
// size: first-order upwind convection by the mean velocity, compact
// diffusion and a point source, solved implicitly in lock step with the
// outer iteration.
type TurbSolver struct {
	s *Solver

	NuTilde  []float64
	EddyVisc []float64

	Residual []float64
	Jacobian *utils.BlockMatrix
	DeltaNu  []float64
	precon   *utils.BlockJacobi

	upwind    flux.ScalarUpwind
	diffusion flux.ScalarDiffusion
	source    flux.SASource

	gradNu   []float64 // nPoints * 3
	edgeFlux []flux.ScalarResult
}

func NewTurbSolver(s *Solver) (ts *TurbSolver) {
	var (
		nPoints = s.Mesh.NumPoints()
		nDim    = s.NDim
	)
	ts = &TurbSolver{
		s:         s,
		NuTilde:   make([]float64, nPoints),
		EddyVisc:  make([]float64, nPoints),
		Residual:  make([]float64, nPoints),
		DeltaNu:   make([]float64, nPoints),
		gradNu:    make([]float64, nPoints*3),
		edgeFlux:  make([]flux.ScalarResult, s.Mesh.NumEdges()),
		upwind:    flux.ScalarUpwind{NDim: nDim},
		diffusion: flux.ScalarDiffusion{NDim: nDim},
		source:    flux.SASource{NDim: nDim},
	}
	if s.Implicit {
		ts.Jacobian = utils.NewBlockMatrix(nPoints, 1, s.Mesh.EdgePairs())
		ts.precon = utils.NewBlockJacobi(nPoints, 1)
	}
	// Free-stream working variable, the usual fully turbulent seed
	nuInf := 3 * s.FS.MuInf / s.FS.RhoInf
	for i := range ts.NuTilde {
		ts.NuTilde[i] = nuInf
	}
	return
}

// SetEddyViscosity refreshes the eddy viscosity the mean flow reads.
func (ts *TurbSolver) SetEddyViscosity() {
	var (
		s  = ts.s
		wg sync.WaitGroup
	)
	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			for ip := lo; ip < hi; ip++ {
				prim := &s.State.Primitive[ip]
				ts.EddyVisc[ip] = flux.EddyViscositySA(prim.Density, prim.LamVisc, ts.NuTilde[ip])
			}
		}(np)
	}
	wg.Wait()
}

func (ts *TurbSolver) computeGradients() {
	var (
		s    = ts.s
		nDim = s.NDim
		wg   sync.WaitGroup
	)
	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			for ip := lo; ip < hi; ip++ {
				var (
					g   = ts.gradNu[ip*3 : ip*3+3]
					vol = s.Mesh.Points[ip].Volume
				)
				g[0], g[1], g[2] = 0, 0, 0
				if vol <= 0 {
					continue
				}
				for _, er := range s.Mesh.Incident(ip) {
					e := &s.Mesh.Edges[er.Edge]
					jp := e.Points[0] + e.Points[1] - ip
					face := 0.5 * (ts.NuTilde[ip] + ts.NuTilde[jp])
					for d := 0; d < nDim; d++ {
						g[d] += er.Sign * face * e.Normal[d] / vol
					}
				}
				for _, normal := range s.bndFaces[ip] {
					for d := 0; d < nDim; d++ {
						g[d] += ts.NuTilde[ip] * normal[d] / vol
					}
				}
			}
		}(np)
	}
	wg.Wait()
}

// Iterate advances the working variable by one implicit step using the
// mean flow state of the current outer iteration.
func (ts *TurbSolver) Iterate() {
	var s = ts.s
	s.Exch.Initiate("nu_tilde", ts.NuTilde, 1)
	s.Exch.Complete("nu_tilde")
	ts.computeGradients()

	for i := range ts.Residual {
		ts.Residual[i] = 0
	}
	if s.Implicit {
		ts.Jacobian.Zero()
	}
	ts.assemble()
	ts.applyBoundaryConditions()
	ts.update()
}

func (ts *TurbSolver) assemble() {
	var (
		s    = ts.s
		nDim = s.NDim
		wg   sync.WaitGroup
	)
	for np := 0; np < s.pmEdges.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmEdges.GetBucketRange(np)
			for ie := lo; ie < hi; ie++ {
				var (
					e          = &s.Mesh.Edges[ie]
					ipL, ipR   = e.Points[0], e.Points[1]
					area       = mesh.Norm(nDim, e.Normal)
					unitNormal [3]float64
					edgeVec    [3]float64
				)
				if area == 0 {
					ts.edgeFlux[ie] = flux.ScalarResult{}
					continue
				}
				for d := 0; d < nDim; d++ {
					unitNormal[d] = e.Normal[d] / area
					edgeVec[d] = s.Mesh.Points[ipR].Coord[d] - s.Mesh.Points[ipL].Coord[d]
				}
				var (
					primL = &s.State.Primitive[ipL]
					primR = &s.State.Primitive[ipR]
				)
				conv := ts.upwind.Compute(primL.Velocity, primR.Velocity,
					ts.NuTilde[ipL], ts.NuTilde[ipR], unitNormal, area, s.Implicit)
				diff := ts.diffusion.Compute(
					primL.LamVisc/primL.Density, primR.LamVisc/primR.Density,
					ts.NuTilde[ipL], ts.NuTilde[ipR], edgeVec, unitNormal, area, s.Implicit)
				conv.F -= diff.F
				conv.JacL -= diff.JacL
				conv.JacR -= diff.JacR
				ts.edgeFlux[ie] = conv
			}
		}(np)
	}
	wg.Wait()

	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			for ip := lo; ip < hi; ip++ {
				for _, er := range s.Mesh.Incident(ip) {
					var (
						ef = &ts.edgeFlux[er.Edge]
						e  = &s.Mesh.Edges[er.Edge]
						jp = e.Points[0] + e.Points[1] - ip
					)
					ts.Residual[ip] += er.Sign * ef.F
					if s.Implicit && ef.HasJac {
						if er.Sign > 0 {
							ts.Jacobian.Block(ip, ip)[0] += ef.JacL
							ts.Jacobian.Block(ip, jp)[0] += ef.JacR
						} else {
							ts.Jacobian.Block(ip, ip)[0] -= ef.JacR
							ts.Jacobian.Block(ip, jp)[0] -= ef.JacL
						}
					}
				}
				// Volume source
				var (
					prim    = &s.State.Primitive[ip]
					gradVel [3][3]float64
					gradNu  [3]float64
				)
				for d := 0; d < s.NDim; d++ {
					copy(gradVel[d][:], s.State.GradAt(ip, d+1))
				}
				copy(gradNu[:], ts.gradNu[ip*3:ip*3+3])
				src := ts.source.Compute(ts.NuTilde[ip], gradNu,
					flux.VorticityMag(s.NDim, gradVel), s.State.WallDist[ip],
					prim.LamVisc, prim.Density, s.Mesh.Points[ip].Volume, s.Implicit)
				ts.Residual[ip] -= src.F
				if s.Implicit && src.HasJac {
					ts.Jacobian.Block(ip, ip)[0] -= src.JacL
				}
			}
		}(np)
	}
	wg.Wait()
}

// applyBoundaryConditions pins the working variable to zero on no-slip
// walls and to the free-stream value on far-field markers.
func (ts *TurbSolver) applyBoundaryConditions() {
	var (
		s     = ts.s
		nuInf = 3 * s.FS.MuInf / s.FS.RhoInf
	)
	for _, bc := range s.bcs {
		switch bc.Kind {
		case BC_HeatFluxWall, BC_IsothermalWall, BC_HeatTransferWall, BC_ConjugateHeat:
			for _, v := range bc.Marker.Vertices {
				ts.strongValue(v.Point, 0)
			}
		case BC_FarField, BC_InletBlowing:
			for _, v := range bc.Marker.Vertices {
				ts.strongValue(v.Point, nuInf)
			}
		}
	}
}

func (ts *TurbSolver) strongValue(ip int, value float64) {
	if !ts.s.Mesh.Points[ip].Domain {
		return
	}
	ts.NuTilde[ip] = value
	ts.Residual[ip] = 0
	if ts.s.Implicit {
		ts.Jacobian.SetRowIdentity(ip, 0)
	}
}

func (ts *TurbSolver) update() {
	var s = ts.s
	if s.Implicit {
		for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
			if s.Dt[ip] > 0 {
				ts.Jacobian.AddToDiag(ip, s.Mesh.Points[ip].Volume/s.Dt[ip])
			}
		}
		b := make([]float64, len(ts.Residual))
		for i, r := range ts.Residual {
			b[i] = -r
			ts.DeltaNu[i] = 0
		}
		ts.precon.Factor(ts.Jacobian)
		utils.GMRES(ts.Jacobian, ts.precon, b, ts.DeltaNu,
			s.IP.LinearSolverTol, s.IP.LinearSolverIter, s.IP.GMRESRestart)
		for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
			if !s.Mesh.Points[ip].Domain {
				continue
			}
			ts.NuTilde[ip] += ts.DeltaNu[ip]
		}
	} else {
		for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
			if !s.Mesh.Points[ip].Domain {
				continue
			}
			vol := s.Mesh.Points[ip].Volume
			if vol <= 0 {
				continue
			}
			ts.NuTilde[ip] -= s.Dt[ip] / vol * ts.Residual[ip]
		}
	}
	// The working variable stays non-negative
	for ip := range ts.NuTilde {
		if ts.NuTilde[ip] < 0 {
			ts.NuTilde[ip] = 0
		}
	}
}

// computeWallDistance fills the per-point distance to the nearest
// no-slip wall vertex, the length scale of the SA destruction term.
func (s *Solver) computeWallDistance() {
	var wallCoords [][3]float64
	for mi := range s.Mesh.Markers {
		spec, ok := s.IP.BCs[s.Mesh.Markers[mi].Tag]
		if !ok {
			continue
		}
		switch NewBCKind(spec.Kind) {
		case BC_HeatFluxWall, BC_IsothermalWall, BC_HeatTransferWall, BC_ConjugateHeat:
			for _, v := range s.Mesh.Markers[mi].Vertices {
				wallCoords = append(wallCoords, s.Mesh.Points[v.Point].Coord)
			}
		}
	}
	for ip := range s.Mesh.Points {
		if len(wallCoords) == 0 {
			s.State.WallDist[ip] = math.MaxFloat64
			continue
		}
		best := math.MaxFloat64
		for _, wc := range wallCoords {
			d := mesh.Distance(s.NDim, s.Mesh.Points[ip].Coord, wc)
			if d < best {
				best = d
			}
		}
		s.State.WallDist[ip] = best
	}
}
