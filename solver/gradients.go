package solver

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/davecats/fvflow/mesh"
	"github.com/davecats/fvflow/physics"
)

// Gradient field ordering: density, velocity components, pressure,
// temperature. Matches the storage layout of physics.StateVector.Grad.
func primField(p *physics.PrimState, nDim, field int) (v float64) {
	switch {
	case field == 0:
		v = p.Density
	case field <= nDim:
		v = p.Velocity[field-1]
	case field == nDim+1:
		v = p.Pressure
	default:
		v = p.Temperature
	}
	return
}

// computeGradients runs a Green-Gauss pass over each point's incident
// edges plus its boundary faces. Point-parallel over the ownership
// partitions, so no row is written by two workers.
func (s *Solver) computeGradients() {
	var (
		nDim    = s.NDim
		nFields = s.State.GradFields
		wg      sync.WaitGroup
	)
	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			for ip := lo; ip < hi; ip++ {
				vol := s.Mesh.Points[ip].Volume
				for f := 0; f < nFields; f++ {
					g := s.State.GradAt(ip, f)
					g[0], g[1], g[2] = 0, 0, 0
					if vol <= 0 {
						continue
					}
					phiI := primField(&s.State.Primitive[ip], nDim, f)
					for _, er := range s.Mesh.Incident(ip) {
						e := &s.Mesh.Edges[er.Edge]
						jp := e.Points[0] + e.Points[1] - ip
						phiFace := 0.5 * (phiI + primField(&s.State.Primitive[jp], nDim, f))
						for d := 0; d < nDim; d++ {
							g[d] += er.Sign * phiFace * e.Normal[d] / vol
						}
					}
					for _, normal := range s.bndFaces[ip] {
						for d := 0; d < nDim; d++ {
							g[d] += phiI * normal[d] / vol
						}
					}
				}
			}
		}(np)
	}
	wg.Wait()
}

type LimiterType uint

const (
	LIMITER_None LimiterType = iota
	LIMITER_Venkatakrishnan
	LIMITER_VanAlbada
)

var (
	LimiterNames = map[string]LimiterType{
		"none":            LIMITER_None,
		"venkatakrishnan": LIMITER_Venkatakrishnan,
		"van_albada":      LIMITER_VanAlbada,
	}
	LimiterPrintNames = []string{"None", "Venkatakrishnan", "Van Albada"}
)

func (lt LimiterType) Print() (txt string) {
	txt = LimiterPrintNames[lt]
	return
}

func NewLimiterType(label string) (lt LimiterType) {
	var (
		ok  bool
		err error
	)
	label = strings.ToLower(label)
	if lt, ok = LimiterNames[label]; !ok {
		err = fmt.Errorf("unable to use limiter named %s", label)
		panic(err)
	}
	return
}

// computeLimiters fills the per-point per-field limiter values used by
// the MUSCL extrapolation. The Venkatakrishnan variant smooths the
// minmod bound with a mesh-size-dependent epsilon so convergence does
// not stall on smooth flow.
func (s *Solver) computeLimiters() {
	if s.Limiter == LIMITER_None {
		for i := range s.State.Limiter {
			s.State.Limiter[i] = 1
		}
		return
	}
	var (
		nDim    = s.NDim
		nFields = s.State.GradFields
		wg      sync.WaitGroup
	)
	for np := 0; np < s.pmPoints.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			lo, hi := s.pmPoints.GetBucketRange(np)
			for ip := lo; ip < hi; ip++ {
				var (
					xi   = s.Mesh.Points[ip].Coord
					vol  = s.Mesh.Points[ip].Volume
					eps2 float64
				)
				if s.Limiter == LIMITER_Venkatakrishnan {
					h := math.Pow(vol, 1.0/float64(nDim))
					kh := s.IP.VenkatK * h
					eps2 = kh * kh * kh
				}
				for f := 0; f < nFields; f++ {
					var (
						phiI           = primField(&s.State.Primitive[ip], nDim, f)
						phiMin, phiMax = phiI, phiI
						lim            = 1.0
						g              = s.State.GradAt(ip, f)
					)
					for _, er := range s.Mesh.Incident(ip) {
						e := &s.Mesh.Edges[er.Edge]
						jp := e.Points[0] + e.Points[1] - ip
						phiJ := primField(&s.State.Primitive[jp], nDim, f)
						phiMin = math.Min(phiMin, phiJ)
						phiMax = math.Max(phiMax, phiJ)
					}
					for _, er := range s.Mesh.Incident(ip) {
						e := &s.Mesh.Edges[er.Edge]
						jp := e.Points[0] + e.Points[1] - ip
						var proj float64
						for d := 0; d < nDim; d++ {
							proj += 0.5 * g[d] * (s.Mesh.Points[jp].Coord[d] - xi[d])
						}
						var dMax float64
						switch {
						case proj > 0:
							dMax = phiMax - phiI
						case proj < 0:
							dMax = phiMin - phiI
						default:
							continue
						}
						lim = math.Min(lim, s.limiterFn(dMax, proj, eps2))
					}
					s.State.Limiter[ip*nFields+f] = lim
				}
			}
		}(np)
	}
	wg.Wait()
}

func (s *Solver) limiterFn(dMax, dFace, eps2 float64) (psi float64) {
	switch s.Limiter {
	case LIMITER_Venkatakrishnan:
		y := dMax * dMax
		psi = (y + eps2 + 2*dMax*dFace) / (y + 2*dFace*dFace + dMax*dFace + eps2)
	case LIMITER_VanAlbada:
		r := dMax / dFace
		if r <= 0 {
			return
		}
		psi = (r*r + r) / (r*r + 1)
	}
	if psi > 1 {
		psi = 1
	}
	if psi < 0 {
		psi = 0
	}
	return
}

// ReconstructedStates extrapolates the two endpoint primitive states to
// the edge midpoint with limited gradients. Falls back to first order
// when the extrapolated thermodynamic state is non-physical.
func (s *Solver) reconstructedStates(e *mesh.Edge) (left, right physics.PrimState) {
	var (
		ipL, ipR = e.Points[0], e.Points[1]
	)
	left = s.State.Primitive[ipL]
	right = s.State.Primitive[ipR]
	if !s.MUSCL {
		return
	}
	var (
		nDim = s.NDim
		mid  [3]float64
	)
	for d := 0; d < nDim; d++ {
		mid[d] = 0.5 * (s.Mesh.Points[ipL].Coord[d] + s.Mesh.Points[ipR].Coord[d])
	}
	extrapolate := func(ip int, base physics.PrimState) (rec physics.PrimState, ok bool) {
		var (
			nFields = s.State.GradFields
			xi      = s.Mesh.Points[ip].Coord
		)
		rec = base
		apply := func(f int, target *float64) {
			g := s.State.GradAt(ip, f)
			lim := s.State.Limiter[ip*nFields+f]
			for d := 0; d < nDim; d++ {
				*target += lim * g[d] * (mid[d] - xi[d])
			}
		}
		apply(0, &rec.Density)
		for d := 0; d < nDim; d++ {
			apply(d+1, &rec.Velocity[d])
		}
		apply(nDim+1, &rec.Pressure)
		apply(nDim+2, &rec.Temperature)
		if rec.Density <= 0 || rec.Pressure <= 0 || rec.Temperature <= 0 {
			return
		}
		// Re-derive the cached quantities of the extrapolated state
		gamma := s.FS.Gamma
		rec.SoundSpeed = math.Sqrt(gamma * rec.Pressure / rec.Density)
		rhoE := rec.Pressure/(gamma-1) + 0.5*rec.Density*rec.VelocityMag2(nDim)
		rec.Enthalpy = (rhoE + rec.Pressure) / rec.Density
		ok = true
		return
	}
	if rec, ok := extrapolate(ipL, left); ok {
		left = rec
	}
	if rec, ok := extrapolate(ipR, right); ok {
		right = rec
	}
	return
}
