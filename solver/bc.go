package solver

import (
	"fmt"
	"math"
	"strings"

	"github.com/davecats/fvflow/InputParameters"
	"github.com/davecats/fvflow/flux"
	"github.com/davecats/fvflow/mesh"
	"github.com/davecats/fvflow/physics"
)

type BCKind uint

const (
	BC_EulerWall BCKind = iota
	BC_Symmetry
	BC_FarField
	BC_HeatFluxWall
	BC_IsothermalWall
	BC_HeatTransferWall
	BC_ConjugateHeat
	BC_InletBlowing
)

var (
	BCKindNames = map[string]BCKind{
		"euler_wall":     BC_EulerWall,
		"symmetry":       BC_Symmetry,
		"far_field":      BC_FarField,
		"heat_flux":      BC_HeatFluxWall,
		"isothermal":     BC_IsothermalWall,
		"heat_transfer":  BC_HeatTransferWall,
		"conjugate_heat": BC_ConjugateHeat,
		"inlet_blowing":  BC_InletBlowing,
	}
	BCKindPrintNames = []string{
		"Euler Wall", "Symmetry", "Far Field", "Heat Flux Wall",
		"Isothermal Wall", "Heat Transfer Wall", "Conjugate Heat Interface",
		"Inlet Blowing",
	}
)

func (k BCKind) Print() (txt string) {
	txt = BCKindPrintNames[k]
	return
}

func NewBCKind(label string) (k BCKind) {
	var (
		ok  bool
		err error
	)
	label = strings.ToLower(label)
	if k, ok = BCKindNames[label]; !ok {
		err = fmt.Errorf("unable to use boundary condition named %s", label)
		panic(err)
	}
	return
}

type CouplingMode uint

const (
	COUPLING_AvgTemperatureNeumann CouplingMode = iota
	COUPLING_AvgTemperatureRobin
	COUPLING_DirectTemperatureNeumann
	COUPLING_DirectTemperatureRobin
)

var CouplingModeNames = map[string]CouplingMode{
	"averaged_temperature_neumann": COUPLING_AvgTemperatureNeumann,
	"averaged_temperature_robin":   COUPLING_AvgTemperatureRobin,
	"direct_temperature_neumann":   COUPLING_DirectTemperatureNeumann,
	"direct_temperature_robin":     COUPLING_DirectTemperatureRobin,
}

func NewCouplingMode(label string) (m CouplingMode) {
	var (
		ok  bool
		err error
	)
	label = strings.ToLower(label)
	if m, ok = CouplingModeNames[label]; !ok {
		err = fmt.Errorf("unable to use conjugate heat coupling mode named %s", label)
		panic(err)
	}
	return
}

// boundaryCondition binds one configured marker to its handler state.
// The conjugate temperature and transfer coefficient arrays are per
// vertex and supplied by the outer coupling iteration.
type boundaryCondition struct {
	Kind   BCKind
	Spec   InputParameters.BCSpec
	Marker *mesh.Marker
	Mode   CouplingMode

	ConjTemperature []float64
	ConjCoeff       []float64
}

func buildBoundaryConditions(s *Solver) (bcs []*boundaryCondition) {
	for mi := range s.Mesh.Markers {
		m := &s.Mesh.Markers[mi]
		spec, ok := s.IP.BCs[m.Tag]
		if !ok {
			panic(fmt.Errorf("no boundary condition configured for marker %s", m.Tag))
		}
		bc := &boundaryCondition{
			Kind:   NewBCKind(spec.Kind),
			Spec:   spec,
			Marker: m,
		}
		if bc.Kind == BC_ConjugateHeat {
			bc.Mode = NewCouplingMode(spec.CouplingMode)
			bc.ConjTemperature = make([]float64, len(m.Vertices))
			bc.ConjCoeff = make([]float64, len(m.Vertices))
		}
		bcs = append(bcs, bc)
	}
	return
}

// SetConjugateHeat installs the external solid-side temperature and
// heat transfer coefficient for one conjugate interface marker.
func (s *Solver) SetConjugateHeat(tag string, temperature, coeff []float64) {
	for _, bc := range s.bcs {
		if bc.Marker.Tag != tag || bc.Kind != BC_ConjugateHeat {
			continue
		}
		copy(bc.ConjTemperature, temperature)
		copy(bc.ConjCoeff, coeff)
		return
	}
	panic(fmt.Errorf("no conjugate heat interface on marker %s", tag))
}

// applyBoundaryConditions runs the weak handlers first and the strong
// no-slip walls last, so a corner point shared between a wall and a
// weak marker keeps its Dirichlet momentum rows.
func (s *Solver) applyBoundaryConditions() {
	for _, bc := range s.bcs {
		switch bc.Kind {
		case BC_EulerWall, BC_Symmetry:
			s.bcEulerWall(bc)
		case BC_FarField:
			s.bcFarField(bc)
		case BC_InletBlowing:
			s.bcInletBlowing(bc)
		}
	}
	for _, bc := range s.bcs {
		switch bc.Kind {
		case BC_HeatFluxWall, BC_IsothermalWall, BC_HeatTransferWall, BC_ConjugateHeat:
			s.bcThermalWall(bc)
		}
	}
}

// pressureJac is dp/dU at one primitive state.
func (s *Solver) pressureJac(p *physics.PrimState) (dp [flux.MaxVar]float64) {
	gm1 := s.FS.Gamma - 1
	dp[0] = 0.5 * gm1 * p.VelocityMag2(s.NDim)
	for d := 0; d < s.NDim; d++ {
		dp[d+1] = -gm1 * p.Velocity[d]
	}
	dp[s.NDim+1] = gm1
	return
}

// bcEulerWall imposes zero normal velocity weakly: only the pressure
// part of the flux crosses a slip wall or a symmetry plane.
func (s *Solver) bcEulerWall(bc *boundaryCondition) {
	var (
		nDim = s.NDim
	)
	for _, v := range bc.Marker.Vertices {
		ip := v.Point
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		var (
			prim = &s.State.Primitive[ip]
			res  = s.ResidualAt(ip)
		)
		for d := 0; d < nDim; d++ {
			res[d+1] += prim.Pressure * v.Normal[d]
		}
		var projGridVel float64
		if s.Mesh.DynamicGrid {
			projGridVel = mesh.Dot(nDim, s.Mesh.Points[ip].GridVel, v.Normal)
			res[nDim+1] += prim.Pressure * projGridVel
		}
		if s.Implicit {
			var (
				dp   = s.pressureJac(prim)
				diag = s.Jacobian.Block(ip, ip)
				nVar = s.Nvar
			)
			for d := 0; d < nDim; d++ {
				for k := 0; k < nVar; k++ {
					diag[(d+1)*nVar+k] += v.Normal[d] * dp[k]
				}
			}
			if s.Mesh.DynamicGrid {
				for k := 0; k < nVar; k++ {
					diag[(nDim+1)*nVar+k] += projGridVel * dp[k]
				}
			}
		}
	}
}

// bcFarField evaluates the upwind flux against the free-stream state,
// so the characteristic treatment of inflow versus outflow is the one
// built into the convective scheme.
func (s *Solver) bcFarField(bc *boundaryCondition) {
	ghost := s.FS.PrimInf()
	for _, v := range bc.Marker.Vertices {
		s.weakGhostFlux(v, ghost)
	}
}

// bcInletBlowing drives mass injection through the wall: the ghost
// velocity points into the domain along the local normal with a
// magnitude set as a fraction of the free-stream speed, density comes
// from the imposed blowing temperature when one is configured and from
// the interior otherwise, pressure is taken from the interior.
func (s *Solver) bcInletBlowing(bc *boundaryCondition) {
	var (
		nDim   = s.NDim
		velMag = bc.Spec.BlowingVelocityRatio * s.FS.RequireVelMagInf()
	)
	for _, v := range bc.Marker.Vertices {
		ip := v.Point
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		var (
			inner = &s.State.Primitive[ip]
			area  = mesh.Norm(nDim, v.Normal)
			ghost physics.PrimState
		)
		if area == 0 {
			continue
		}
		ghost = *inner
		if bc.Spec.BlowingTemperature > 0 {
			ghost.Temperature = bc.Spec.BlowingTemperature
			ghost.Density = inner.Pressure / (s.FS.GasConstant * ghost.Temperature)
		}
		for d := 0; d < nDim; d++ {
			ghost.Velocity[d] = -velMag * v.Normal[d] / area
		}
		gamma := s.FS.Gamma
		ghost.SoundSpeed = math.Sqrt(gamma * ghost.Pressure / ghost.Density)
		rhoE := ghost.Pressure/(gamma-1) + 0.5*ghost.Density*ghost.VelocityMag2(nDim)
		ghost.Enthalpy = (rhoE + ghost.Pressure) / ghost.Density
		s.weakGhostFlux(v, ghost)
	}
}

// weakGhostFlux adds the convective flux between the interior state and
// a ghost state through one boundary face, linearized in the interior
// state only.
func (s *Solver) weakGhostFlux(v mesh.Vertex, ghost physics.PrimState) {
	ip := v.Point
	if !s.Mesh.Points[ip].Domain {
		return
	}
	var (
		nDim       = s.NDim
		nVar       = s.Nvar
		area       = mesh.Norm(nDim, v.Normal)
		unitNormal [3]float64
	)
	if area == 0 {
		return
	}
	for d := 0; d < nDim; d++ {
		unitNormal[d] = v.Normal[d] / area
	}
	inner := s.State.Primitive[ip]
	fr := s.ConvFlux.Compute(inner, ghost, unitNormal, area, s.Implicit)
	res := s.ResidualAt(ip)
	for n := 0; n < nVar; n++ {
		res[n] += fr.F[n]
	}
	if s.Implicit && fr.HasJac {
		diag := s.Jacobian.Block(ip, ip)
		addScaled(diag, &fr.JacL, nVar, 1)
	}
}

// bcThermalWall is the shared no-slip wall handler. Velocity is
// enforced strongly: the momentum residual rows are zeroed, the old
// solution is pinned to the wall velocity and the Jacobian momentum
// rows are replaced by identity rows. The energy equation receives the
// weak heat flux of the particular wall kind, plus the grid-motion
// work terms when the mesh moves.
func (s *Solver) bcThermalWall(bc *boundaryCondition) {
	var (
		nDim = s.NDim
		nVar = s.Nvar
		fs   = s.FS
	)
	for iv := range bc.Marker.Vertices {
		v := &bc.Marker.Vertices[iv]
		ip := v.Point
		if !s.Mesh.Points[ip].Domain {
			continue
		}
		var (
			prim    = &s.State.Primitive[ip]
			res     = s.ResidualAt(ip)
			area    = mesh.Norm(nDim, v.Normal)
			wallVel [3]float64
		)
		if s.Mesh.DynamicGrid {
			wallVel = s.Mesh.Points[ip].GridVel
		}

		// Strong no-slip rows
		s.State.SetVelocityOld(ip, wallVel)
		for d := 0; d < nDim; d++ {
			res[d+1] = 0
		}
		if s.Implicit {
			for d := 0; d < nDim; d++ {
				s.Jacobian.SetRowIdentity(ip, d+1)
			}
		}

		// Weak energy contribution
		var (
			qWall       float64 // heat flux into the domain per unit area
			dqdT        float64 // sensitivity to the near-wall temperature
			there, dist = s.nearWallTemperature(v)
			kCond       = prim.Conductivity
		)
		switch bc.Kind {
		case BC_HeatFluxWall:
			qWall = bc.Spec.HeatFlux
		case BC_IsothermalWall:
			qWall = kCond * (bc.Spec.Temperature - there) / dist
			dqdT = -kCond / dist
		case BC_HeatTransferWall:
			// Robin blend of the ambient reservoir through the
			// one-sided conduction path
			h := bc.Spec.HeatTransferCoeff
			denom := h*dist + kCond
			qWall = h * kCond * (bc.Spec.AmbientTemperature - there) / denom
			dqdT = -h * kCond / denom
		case BC_ConjugateHeat:
			tConj, hConj := bc.ConjTemperature[iv], bc.ConjCoeff[iv]
			switch bc.Mode {
			case COUPLING_DirectTemperatureNeumann:
				qWall = kCond * (tConj - there) / dist
				dqdT = -kCond / dist
			case COUPLING_AvgTemperatureNeumann:
				qWall = kCond * (0.5*(tConj+there) - there) / dist
				dqdT = -0.5 * kCond / dist
			case COUPLING_DirectTemperatureRobin:
				qWall = hConj * (tConj - there)
				dqdT = -hConj
			case COUPLING_AvgTemperatureRobin:
				qWall = hConj * (tConj - 0.5*(tConj+there))
				dqdT = -0.5 * hConj
			}
		}
		res[nDim+1] -= qWall * area

		if s.Implicit && dqdT != 0 {
			// Compact linearization of the near-wall temperature
			// through the ideal gas law at the wall point, velocity
			// already pinned to the wall value
			var (
				diag   = s.Jacobian.Block(ip, ip)
				gm1oR  = (fs.Gamma - 1) / fs.GasConstant
				rho    = prim.Density
				U      = s.State.ConservedAt(ip)
				energy = U[nDim+1] / rho
			)
			dTdrho := gm1oR * (prim.VelocityMag2(nDim) - energy) / rho
			dTdE := gm1oR / rho
			diag[(nDim+1)*nVar+0] -= dqdT * dTdrho * area
			diag[(nDim+1)*nVar+nDim+1] -= dqdT * dTdE * area
		}

		if s.Mesh.DynamicGrid {
			s.addGridMotionWork(v, prim, area)
		}
	}
}

// nearWallTemperature reads the temperature of the nearest interior
// neighbor and the wall-normal distance to it.
func (s *Solver) nearWallTemperature(v *mesh.Vertex) (there, dist float64) {
	nb := v.NormalNeighbor
	there = s.State.Primitive[nb].Temperature
	dist = mesh.Distance(s.NDim, s.Mesh.Points[v.Point].Coord, s.Mesh.Points[nb].Coord)
	if dist <= 0 {
		dist = 1e-30
	}
	return
}

// addGridMotionWork adds the pressure and viscous stress work done by
// a moving wall to the energy residual.
func (s *Solver) addGridMotionWork(v *mesh.Vertex, prim *physics.PrimState, area float64) {
	var (
		nDim        = s.NDim
		nVar        = s.Nvar
		ip          = v.Point
		gridVel     = s.Mesh.Points[ip].GridVel
		res         = s.ResidualAt(ip)
		projGridVel = mesh.Dot(nDim, gridVel, v.Normal)
	)
	res[nDim+1] += prim.Pressure * projGridVel
	if s.Implicit {
		var (
			dp   = s.pressureJac(prim)
			diag = s.Jacobian.Block(ip, ip)
		)
		for k := 0; k < nVar; k++ {
			diag[(nDim+1)*nVar+k] += projGridVel * dp[k]
		}
	}
	if s.ViscFlux == nil {
		return
	}
	var gradVel [3][3]float64
	for d := 0; d < nDim; d++ {
		copy(gradVel[d][:], s.State.GradAt(ip, d+1))
	}
	tau := flux.StressTensor(nDim, prim.LamVisc+prim.EddyVisc, gradVel)
	for d := 0; d < nDim; d++ {
		var tauN float64
		for j := 0; j < nDim; j++ {
			tauN += tau[d][j] * v.Normal[j] / area
		}
		res[nDim+1] -= tauN * gridVel[d] * area
	}
}
