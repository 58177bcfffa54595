package solver

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/davecats/fvflow/mesh"
	"github.com/davecats/fvflow/physics"
	"github.com/davecats/fvflow/utils"
)

// Law-of-the-wall constants
const (
	wallFnKappa = 0.41
	wallFnB     = 5.5
	wallFnTol   = 1e-10
)

// applyWallFunctions refines the wall shear stress of every vertex of
// one no-slip marker with the compressible law of the wall of Nichols
// and Nelson, a bounded under-relaxed Newton iteration on the friction
// velocity. Vertices whose y+ sits below the configured threshold are
// skipped, the law does not apply inside the viscous sublayer.
// Newton failures fall back to safe defaults. Both cases are counted,
// never fatal; the counters are reduced once per outer iteration.
// The converged shear stress rescales the tangential viscous traction
// of the dual faces touching the wall point, and the wall-law eddy
// viscosity replaces the modeled value in the wall primitive record.
func (s *Solver) applyWallFunctions(bc *boundaryCondition) {
	var (
		nDim     = s.NDim
		fs       = s.FS
		cp       = fs.Cp()
		recovery = math.Pow(fs.PrandtlLam, 1.0/3.0)
		relax    = s.IP.WallFnRelax
		maxIter  = s.IP.WallFnMaxIter
		expKB    = math.Exp(-wallFnKappa * wallFnB)
		pm       = utils.NewPartitionMap(s.IP.ParallelDegree, len(bc.Marker.Vertices))
		wg       sync.WaitGroup
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := pm.GetBucketRange(np)
			for iv := lo; iv < hi; iv++ {
				v := &bc.Marker.Vertices[iv]
				ip := v.Point
				if !s.Mesh.Points[ip].Domain {
					continue
				}
				var (
					nb       = v.NormalNeighbor
					wallDist = mesh.Distance(nDim, s.Mesh.Points[ip].Coord, s.Mesh.Points[nb].Coord)
					primW    = &s.State.Primitive[ip]
					primN    = &s.State.Primitive[nb]
					area     = mesh.Norm(nDim, v.Normal)
				)
				if wallDist <= 0 || area == 0 {
					continue
				}
				// Velocity tangent to the wall at the exchange point
				var (
					unitNormal [3]float64
					projV      float64
					velTang2   float64
				)
				for d := 0; d < nDim; d++ {
					unitNormal[d] = v.Normal[d] / area
				}
				for d := 0; d < nDim; d++ {
					projV += primN.Velocity[d] * unitNormal[d]
				}
				for d := 0; d < nDim; d++ {
					vt := primN.Velocity[d] - projV*unitNormal[d]
					velTang2 += vt * vt
				}
				velTang := math.Sqrt(velTang2)
				if velTang < 1e-12 {
					continue
				}

				var (
					rhoW  = primW.Density
					muW   = primW.LamVisc
					kW    = primW.Conductivity
					tWall = primW.Temperature
					qWall float64
				)
				switch bc.Kind {
				case BC_HeatFluxWall:
					qWall = bc.Spec.HeatFlux
				case BC_IsothermalWall:
					tWall = bc.Spec.Temperature
					qWall = kW * (tWall - primN.Temperature) / wallDist
				}

				// Laminar estimate seeds the Newton iteration
				tauW := muW * velTang / wallDist
				uTau := math.Sqrt(tauW / rhoW)
				yPlus := rhoW * uTau * wallDist / muW
				if yPlus < s.IP.YPlusMin {
					atomic.AddInt64(&s.WallFnSkipped, 1)
					continue
				}

				converged := false
				for it := 0; it < maxIter; it++ {
					var (
						uPlus = velTang / uTau
						kUp   = wallFnKappa * uPlus
						gam   = recovery * uTau * uTau / (2 * cp * tWall)
						beta  = qWall * muW / (rhoW * tWall * kW * uTau)
					)
					if gam < 1e-12 {
						gam = 1e-12
					}
					var (
						q   = math.Sqrt(beta*beta + 4*gam)
						phi = math.Asin(-beta / q)
					)
					yPlusWhite := math.Exp(wallFnKappa/math.Sqrt(gam)*
						(math.Asin((2*gam*uPlus-beta)/q)-phi)) * expKB

					yPlusTarget := uPlus + yPlusWhite -
						expKB*(1+kUp+kUp*kUp/2+kUp*kUp*kUp/6)
					diff := rhoW*uTau*wallDist/muW - yPlusTarget
					if math.Abs(diff) < wallFnTol {
						converged = true
						break
					}
					grad := rhoW*wallDist/muW + velTang/(uTau*uTau) +
						wallFnKappa/(uTau*math.Sqrt(gam))*math.Asin(uPlus*math.Sqrt(gam))*yPlusWhite -
						expKB*(wallFnKappa*velTang/(uTau*uTau))*(1+kUp+kUp*kUp/2)
					uTau -= relax * diff / grad
					if uTau <= 0 {
						break
					}
				}
				if !converged {
					// Unit friction velocity as the failure fallback
					atomic.AddInt64(&s.WallFnFailed, 1)
					uTau = 1
					s.State.TauWall[ip] = rhoW * uTau * uTau
					s.setWallEddyViscosity(primW, 1)
					continue
				}
				s.State.TauWall[ip] = rhoW * uTau * uTau
				kUp := wallFnKappa * velTang / uTau
				muTw := muW * wallFnKappa * expKB *
					(math.Exp(kUp) - 1 - kUp - kUp*kUp/2)
				s.setWallEddyViscosity(primW, muTw)
			}
		}(np)
	}
	wg.Wait()
}

// setWallEddyViscosity raises the eddy viscosity of one wall-point
// primitive record to the wall-law value and refreshes the
// conductivity it enters. Markers are processed sequentially and
// vertices within one marker touch disjoint points, so the write is
// race free.
func (s *Solver) setWallEddyViscosity(prim *physics.PrimState, muTw float64) {
	if muTw <= prim.EddyVisc {
		return
	}
	fs := s.FS
	prim.EddyVisc = muTw
	prim.Conductivity = fs.Cp() * (prim.LamVisc/fs.PrandtlLam + muTw/fs.PrandtlTurb)
}
