package solver

import (
	"sync"

	"github.com/davecats/fvflow/flux"
	"github.com/davecats/fvflow/mesh"
)

// assembleInterior runs the edge loop in two phases. Phase one
// evaluates the convective and viscous edge fluxes in parallel over
// edge buckets, each edge writing only its own preallocated result
// slot. Phase two folds the per-edge results into the residual and
// Jacobian rows in parallel over point buckets: every point reads its
// incident edges in a fixed order and writes only its own rows, so the
// pass is race free and its result does not depend on the worker
// count.
func (s *Solver) assembleInterior() {
	var wg sync.WaitGroup
	for np := 0; np < s.pmEdges.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmEdges.GetBucketRange(np)
			for ie := lo; ie < hi; ie++ {
				s.edgeFlux[ie] = s.computeEdgeFlux(ie)
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
				s.scatterPoint(ip)
			}
		}(np)
	}
	wg.Wait()
}

// computeEdgeFlux evaluates the signed net flux of one edge, oriented
// with the edge normal from the first endpoint to the second. Viscous
// transport is folded in with the opposite sign so a single result per
// edge carries both contributions.
func (s *Solver) computeEdgeFlux(ie int) (res flux.Result) {
	var (
		e          = &s.Mesh.Edges[ie]
		nDim       = s.NDim
		nVar       = s.Nvar
		area       = mesh.Norm(nDim, e.Normal)
		unitNormal [3]float64
	)
	if area == 0 {
		return
	}
	for d := 0; d < nDim; d++ {
		unitNormal[d] = e.Normal[d] / area
	}
	left, right := s.reconstructedStates(e)
	res = s.ConvFlux.Compute(left, right, unitNormal, area, s.Implicit)

	if s.ViscFlux != nil {
		var (
			ipL, ipR = e.Points[0], e.Points[1]
			edgeVec  [3]float64
		)
		for d := 0; d < nDim; d++ {
			edgeVec[d] = s.Mesh.Points[ipR].Coord[d] - s.Mesh.Points[ipL].Coord[d]
		}
		// Viscous evaluation uses nodal gradients, not reconstructed
		// states
		var (
			primL, primR       = s.State.Primitive[ipL], s.State.Primitive[ipR]
			gradVelL, gradVelR [3][3]float64
			gradTL, gradTR     [3]float64
		)
		for d := 0; d < nDim; d++ {
			copy(gradVelL[d][:], s.State.GradAt(ipL, d+1))
			copy(gradVelR[d][:], s.State.GradAt(ipR, d+1))
		}
		copy(gradTL[:], s.State.GradAt(ipL, nDim+2))
		copy(gradTR[:], s.State.GradAt(ipR, nDim+2))

		visc := s.ViscFlux.Compute(primL, primR, gradVelL, gradVelR, gradTL, gradTR,
			edgeVec, unitNormal, area, edgeTauWall(s.State.TauWall[ipL], s.State.TauWall[ipR]), s.Implicit)
		for n := 0; n < nVar; n++ {
			res.F[n] -= visc.F[n]
			if s.Implicit {
				for m := 0; m < nVar; m++ {
					res.JacL[n][m] -= visc.JacL[n][m]
					res.JacR[n][m] -= visc.JacR[n][m]
				}
			}
		}
	}
	return
}

// edgeTauWall picks the wall-law shear stress seen by one edge: the
// mean when both endpoints carry one, otherwise the single wall value.
func edgeTauWall(twL, twR float64) (tw float64) {
	switch {
	case twL > 0 && twR > 0:
		tw = 0.5 * (twL + twR)
	case twL > 0:
		tw = twL
	case twR > 0:
		tw = twR
	}
	return
}

// scatterPoint folds the incident edge fluxes into one point's
// residual block and Jacobian row.
func (s *Solver) scatterPoint(ip int) {
	var (
		nVar = s.Nvar
		res  = s.ResidualAt(ip)
	)
	for _, er := range s.Mesh.Incident(ip) {
		var (
			ef = &s.edgeFlux[er.Edge]
			e  = &s.Mesh.Edges[er.Edge]
			jp = e.Points[0] + e.Points[1] - ip
		)
		for n := 0; n < nVar; n++ {
			res[n] += er.Sign * ef.F[n]
		}
		if !s.Implicit || !ef.HasJac {
			continue
		}
		diag := s.Jacobian.Block(ip, ip)
		offd := s.Jacobian.Block(ip, jp)
		if er.Sign > 0 {
			// ip is the edge origin: residual gains +F, F depends on
			// (left=ip, right=jp)
			addScaled(diag, &ef.JacL, nVar, 1)
			addScaled(offd, &ef.JacR, nVar, 1)
		} else {
			addScaled(diag, &ef.JacR, nVar, -1)
			addScaled(offd, &ef.JacL, nVar, -1)
		}
	}
}

func addScaled(dst []float64, src *[flux.MaxVar][flux.MaxVar]float64, nVar int, sign float64) {
	for i := 0; i < nVar; i++ {
		for j := 0; j < nVar; j++ {
			dst[i*nVar+j] += sign * src[i][j]
		}
	}
}
