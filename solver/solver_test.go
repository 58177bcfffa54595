package solver

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/davecats/fvflow/InputParameters"
	"github.com/davecats/fvflow/mesh"
	"github.com/stretchr/testify/assert"
)

func testInput(regime string) (ip *InputParameters.InputParameters) {
	ip = &InputParameters.InputParameters{}
	_ = ip.Parse(nil) // defaults only
	ip.Minf = 0.5
	ip.Reynolds = 1000
	ip.Regime = regime
	ip.ImplicitSolver = true
	ip.BCs = map[string]InputParameters.BCSpec{
		"bottom": {Kind: "far_field"},
		"right":  {Kind: "far_field"},
		"top":    {Kind: "far_field"},
		"left":   {Kind: "far_field"},
	}
	return
}

func testMesh(n int) *mesh.Topology {
	return mesh.NewCartesian2D(n, n, 1, 1, [4]string{"bottom", "right", "top", "left"})
}

func TestUniformFreeStreamResidual(t *testing.T) {
	// The free stream is an exact steady solution of a closed far-field
	// box: interior fluxes telescope and the far-field ghost state
	// equals the interior state
	for _, regime := range []string{"euler", "navier_stokes"} {
		var (
			ip = testInput(regime)
			s  = NewSolver(ip, testMesh(6), nil)
		)
		s.Preprocessing()
		s.zeroSystem()
		s.assembleInterior()
		s.applyBoundaryConditions()
		for i, r := range s.Residual {
			assert.InDelta(t, 0., r, 1.e-12, "regime %s residual entry %d", regime, i)
		}
	}
	{ // A full implicit iteration leaves the free stream unchanged
		var (
			ip  = testInput("euler")
			s   = NewSolver(ip, testMesh(5), nil)
			ref = s.FS.ConservedInf()
		)
		s.Iterate()
		for ip := 0; ip < s.Mesh.NumPoints(); ip++ {
			U := s.State.ConservedAt(ip)
			for n := 0; n < s.Nvar; n++ {
				assert.InDelta(t, ref[n], U[n], 1.e-10)
			}
		}
	}
}

func TestAssemblyWorkerCountIndependence(t *testing.T) {
	run := func(degree int) []float64 {
		var (
			ip = testInput("navier_stokes")
		)
		ip.ParallelDegree = degree
		ip.MUSCL = true
		s := NewSolver(ip, testMesh(7), nil)
		// Smooth non-uniform state so every edge carries a nonzero flux
		for ipt := 0; ipt < s.Mesh.NumPoints(); ipt++ {
			var (
				c = s.Mesh.Points[ipt].Coord
				U = s.State.ConservedAt(ipt)
			)
			U[0] *= 1 + 0.05*math.Sin(3*c[0])*math.Cos(2*c[1])
			U[1] *= 1 + 0.03*math.Cos(5*c[0]+c[1])
			U[3] *= 1 + 0.02*math.Sin(c[0]+2*c[1])
		}
		s.Preprocessing()
		s.zeroSystem()
		s.assembleInterior()
		s.applyBoundaryConditions()
		return append([]float64{}, s.Residual...)
	}
	var (
		serial   = run(1)
		parallel = run(4)
	)
	for i := range serial {
		// Bitwise equality: the scatter order is fixed per point
		assert.Equal(t, serial[i], parallel[i])
	}
}

func TestThermalWallRows(t *testing.T) {
	var (
		ip = testInput("navier_stokes")
	)
	ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "isothermal", Temperature: 1.2}
	s := NewSolver(ip, testMesh(5), nil)
	s.Preprocessing()
	s.zeroSystem()
	s.assembleInterior()
	s.applyBoundaryConditions()

	wall := s.Mesh.Marker("bottom")
	for _, v := range wall.Vertices {
		var (
			res  = s.ResidualAt(v.Point)
			diag = s.Jacobian.Block(v.Point, v.Point)
			old  = s.State.OldSolutionAt(v.Point)
		)
		// Momentum rows are strongly enforced, corner points included
		assert.Equal(t, 0., res[1])
		assert.Equal(t, 0., res[2])
		assert.Equal(t, 0., old[1])
		assert.Equal(t, 0., old[2])
		for row := 1; row <= 2; row++ {
			for k := 0; k < s.Nvar; k++ {
				want := 0.
				if k == row {
					want = 1
				}
				assert.Equal(t, want, diag[row*s.Nvar+k])
			}
		}
	}
	// The wall is hotter than the fluid, so heat flows in: the imposed
	// flux lowers the energy residual. Corners are excluded, they also
	// carry the weak flux of the adjacent far-field markers.
	for _, v := range wall.Vertices[1 : len(wall.Vertices)-1] {
		assert.True(t, s.ResidualAt(v.Point)[3] < 0)
	}
	{ // Off-diagonal momentum rows of wall points are cleared too
		v := wall.Vertices[1]
		nb := v.NormalNeighbor
		offd := s.Jacobian.Block(v.Point, nb)
		for row := 1; row <= 2; row++ {
			for k := 0; k < s.Nvar; k++ {
				assert.Equal(t, 0., offd[row*s.Nvar+k])
			}
		}
	}
}

func TestHeatFluxWallSign(t *testing.T) {
	var (
		ip = testInput("navier_stokes")
	)
	ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "heat_flux", HeatFlux: 0.7}
	s := NewSolver(ip, testMesh(5), nil)
	s.Preprocessing()
	s.zeroSystem()
	s.applyBoundaryConditions()
	// Positive imposed flux heats the fluid: negative energy residual,
	// scaled by the face area
	v := s.Mesh.Marker("bottom").Vertices[1]
	area := mesh.Norm(2, v.Normal)
	assert.InDelta(t, -0.7*area, s.ResidualAt(v.Point)[3], 1.e-13)
}

func TestWallFunctionSkip(t *testing.T) {
	var (
		ip = testInput("navier_stokes")
	)
	// Low Reynolds number keeps the laminar y+ of the first cell below
	// the threshold at every wall vertex
	ip.Reynolds = 50
	ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "heat_flux", WallFunction: true}
	s := NewSolver(ip, testMesh(5), nil)
	s.Preprocessing()
	assert.Equal(t, int64(5), s.WallFnSkipped)
	assert.Equal(t, int64(0), s.WallFnFailed)
	for _, v := range s.Mesh.Marker("bottom").Vertices {
		assert.Equal(t, 0., s.State.TauWall[v.Point])
	}
}

func TestWallFunctionNewton(t *testing.T) {
	var (
		ip = testInput("navier_stokes")
	)
	ip.Reynolds = 1.e5
	ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "heat_flux", WallFunction: true}
	s := NewSolver(ip, testMesh(5), nil)
	s.Preprocessing()
	assert.Equal(t, int64(0), s.WallFnSkipped)
	assert.Equal(t, int64(0), s.WallFnFailed)
	for _, v := range s.Mesh.Marker("bottom").Vertices {
		tauW := s.State.TauWall[v.Point]
		assert.True(t, tauW > 0)
		// Far below the rho*uTau^2 = 1 fallback value
		assert.True(t, tauW < 0.01)
	}
}

func TestStrongNoSlipEnforcement(t *testing.T) {
	// The update rebuilds the working state from the old-solution
	// snapshot, so the wall momentum pinned there reaches the state:
	// the Dirichlet rows only ever add their (zero) solve increment
	var (
		ip = testInput("navier_stokes")
	)
	ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "isothermal", Temperature: 1.2}
	var (
		s    = NewSolver(ip, testMesh(6), nil)
		wall = s.Mesh.Marker("bottom")
		ref  = s.FS.ConservedInf()
	)
	{ // The free-stream initialization slides along the wall
		U := s.State.ConservedAt(wall.Vertices[1].Point)
		assert.True(t, math.Abs(U[1]) > 0.4)
	}
	for it := 0; it < 10; it++ {
		s.Iterate()
	}
	for _, v := range wall.Vertices {
		U := s.State.ConservedAt(v.Point)
		assert.InDelta(t, 0., U[1], 1.e-6)
		assert.InDelta(t, 0., U[2], 1.e-6)
	}
	{ // The heated wall keeps driving the energy equation
		U := s.State.ConservedAt(wall.Vertices[1].Point)
		assert.True(t, math.Abs(U[3]-ref[3]) > 1.e-6)
	}
}

func TestWallFunctionFeedback(t *testing.T) {
	// The wall-law output must reach the assembled system: tau_wall
	// rescales the viscous traction of the wall-adjacent faces and the
	// wall-law eddy viscosity lands in the wall primitive record
	run := func(wallFn bool) *Solver {
		var (
			ip = testInput("navier_stokes")
		)
		ip.Reynolds = 1.e5
		ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "heat_flux", WallFunction: wallFn}
		s := NewSolver(ip, testMesh(6), nil)
		// Shear the field away from the wall so the near-wall faces
		// carry a nonzero viscous traction
		for ipt := 0; ipt < s.Mesh.NumPoints(); ipt++ {
			var (
				c = s.Mesh.Points[ipt].Coord
				U = s.State.ConservedAt(ipt)
			)
			U[1] *= 1 + 0.05*math.Sin(2*c[0])*c[1]
			U[3] *= 1 + 0.01*math.Cos(c[0]+c[1])
		}
		s.Preprocessing()
		s.zeroSystem()
		s.assembleInterior()
		s.applyBoundaryConditions()
		return s
	}
	var (
		on  = run(true)
		off = run(false)
	)
	for _, v := range on.Mesh.Marker("bottom").Vertices {
		assert.True(t, on.State.TauWall[v.Point] > 0)
		assert.True(t, on.State.Primitive[v.Point].EddyVisc > 0)
		assert.Equal(t, 0., off.State.TauWall[v.Point])
		assert.Equal(t, 0., off.State.Primitive[v.Point].EddyVisc)
	}
	var maxDiff float64
	for i := range on.Residual {
		if d := math.Abs(on.Residual[i] - off.Residual[i]); d > maxDiff {
			maxDiff = d
		}
	}
	assert.True(t, maxDiff > 0)
}

func TestMovingWallWork(t *testing.T) {
	var (
		ip = testInput("navier_stokes")
	)
	ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "isothermal", Temperature: 1.0}
	s := NewSolver(ip, testMesh(5), nil)
	s.Mesh.SetUniformGridVel([3]float64{0, 0.2, 0})
	s.Preprocessing()
	s.zeroSystem()
	s.assembleInterior()
	s.applyBoundaryConditions()
	var (
		wall = s.Mesh.Marker("bottom")
		pInf = s.FS.PrimInf().Pressure
	)
	for _, v := range wall.Vertices[1 : len(wall.Vertices)-1] {
		// Pressure work p*(vGrid.n) lands on the energy row; the
		// viscous work vanishes on the uniform field
		projGV := 0.2 * v.Normal[1]
		assert.InDelta(t, pInf*projGV, s.ResidualAt(v.Point)[3], 1.e-12)
		// Old momentum pinned to the wall velocity
		var (
			old = s.State.OldSolutionAt(v.Point)
			rho = s.State.ConservedAt(v.Point)[0]
		)
		assert.InDelta(t, 0., old[1], 1.e-14)
		assert.InDelta(t, 0.2*rho, old[2], 1.e-14)
	}
}

func TestResidualDropTracking(t *testing.T) {
	var (
		ip = testInput("euler")
		s  = NewSolver(ip, testMesh(5), nil)
	)
	for ipt := 0; ipt < s.Mesh.NumPoints(); ipt++ {
		var (
			c = s.Mesh.Points[ipt].Coord
			U = s.State.ConservedAt(ipt)
		)
		U[0] *= 1 + 0.02*math.Sin(3*c[0])*math.Cos(2*c[1])
		U[3] *= 1 + 0.01*math.Sin(c[0]+c[1])
	}
	s.Iterate()
	// The first monitored iteration sets the drop reference
	assert.InDelta(t, 0., s.ResidualDrop(), 1.e-12)
	s.Iterate()
	assert.False(t, math.IsNaN(s.ResidualDrop()))
}

func TestCFLAdaptation(t *testing.T) {
	var (
		ip = testInput("euler")
		s  = &Solver{IP: ip, CFL: 10, resNorm: []float64{1}}
	)
	ip.AdaptCFL = true
	{ // First call only records the history
		s.adaptCFL()
		assert.Equal(t, 10., s.CFL)
	}
	{ // Falling residual grows the CFL
		s.resNorm[0] = 0.5
		s.adaptCFL()
		assert.InDelta(t, 10*ip.CFLFactorUp, s.CFL, 1.e-13)
	}
	{ // Rising residual cuts it
		s.resNorm[0] = 2
		s.adaptCFL()
		assert.InDelta(t, 10*ip.CFLFactorUp*ip.CFLFactorDown, s.CFL, 1.e-13)
	}
	{ // Clamped to the configured band
		s.CFL = ip.CFLMax
		s.resNorm[0] = 1
		s.adaptCFL()
		assert.Equal(t, ip.CFLMax, s.CFL)
		s.CFL = ip.CFLMin
		s.resNorm[0] = 10
		s.adaptCFL()
		assert.Equal(t, ip.CFLMin, s.CFL)
	}
}

func TestRestartRoundTrip(t *testing.T) {
	var (
		ip       = testInput("rans")
		fileName = filepath.Join(t.TempDir(), "restart.dat")
		s1       = NewSolver(ip, testMesh(4), nil)
	)
	for ipt := 0; ipt < s1.Mesh.NumPoints(); ipt++ {
		U := s1.State.ConservedAt(ipt)
		for n := range U {
			U[n] *= 1 + 0.01*float64(ipt+n)
		}
		s1.Turb.NuTilde[ipt] = float64(ipt) * 1.e-4
	}
	s1.SaveRestart(fileName)

	s2 := NewSolver(testInput("rans"), testMesh(4), nil)
	s2.LoadRestart(fileName)
	for ipt := 0; ipt < s1.Mesh.NumPoints(); ipt++ {
		var (
			U1 = s1.State.ConservedAt(ipt)
			U2 = s2.State.ConservedAt(ipt)
		)
		for n := range U1 {
			assert.Equal(t, U1[n], U2[n])
			// The old-solution snapshot follows the load
			assert.Equal(t, U1[n], s2.State.OldSolutionAt(ipt)[n])
		}
		assert.Equal(t, s1.Turb.NuTilde[ipt], s2.Turb.NuTilde[ipt])
	}
	{ // Point count mismatch is structural and fatal
		s3 := NewSolver(testInput("rans"), testMesh(5), nil)
		assert.Panics(t, func() { s3.LoadRestart(fileName) })
	}
	{ // Variable count mismatch too: same mesh, no turbulence model
		s4 := NewSolver(testInput("euler"), testMesh(4), nil)
		assert.Panics(t, func() { s4.LoadRestart(fileName) })
	}
}

func TestConfigurationFailures(t *testing.T) {
	{ // Name lookups are fatal on unknown labels
		assert.Panics(t, func() { NewRegime("plasma") })
		assert.Panics(t, func() { NewBCKind("sticky") })
		assert.Panics(t, func() { NewCouplingMode("osmosis") })
		assert.Panics(t, func() { NewLimiterType("superbee") })
	}
	{ // Every mesh marker must be configured
		ip := testInput("euler")
		delete(ip.BCs, "top")
		assert.Panics(t, func() { NewSolver(ip, testMesh(4), nil) })
	}
	{ // Blowing velocities scale with the free-stream speed, which must
		// not vanish
		ip := testInput("euler")
		ip.Minf = 0
		ip.BCs["bottom"] = InputParameters.BCSpec{Kind: "inlet_blowing", BlowingVelocityRatio: 0.01}
		s := NewSolver(ip, testMesh(4), nil)
		s.Preprocessing()
		s.zeroSystem()
		assert.Panics(t, func() { s.applyBoundaryConditions() })
	}
	{ // Unknown linear solver surfaces at the first implicit solve
		ip := testInput("euler")
		ip.LinearSolver = "cholesky"
		s := NewSolver(ip, testMesh(4), nil)
		assert.Panics(t, func() { s.Iterate() })
	}
	{ // Conjugate data can only target a conjugate marker
		s := NewSolver(testInput("euler"), testMesh(4), nil)
		assert.Panics(t, func() { s.SetConjugateHeat("bottom", nil, nil) })
	}
}

func TestConjugateHeatCoupling(t *testing.T) {
	var (
		ip = testInput("navier_stokes")
	)
	ip.BCs["bottom"] = InputParameters.BCSpec{
		Kind:         "conjugate_heat",
		CouplingMode: "direct_temperature_robin",
	}
	var (
		s     = NewSolver(ip, testMesh(5), nil)
		wall  = s.Mesh.Marker("bottom")
		tSol  = make([]float64, len(wall.Vertices))
		hSol  = make([]float64, len(wall.Vertices))
		hotBy = 0.3
	)
	for i := range tSol {
		tSol[i] = 1 + hotBy
		hSol[i] = 2
	}
	s.SetConjugateHeat("bottom", tSol, hSol)
	s.Preprocessing()
	s.zeroSystem()
	s.applyBoundaryConditions()
	// Robin flux h*(Tsolid - Tfluid) with a hot solid heats the fluid.
	// Interior vertices only, corners share the far-field markers.
	for _, v := range wall.Vertices[1 : len(wall.Vertices)-1] {
		area := mesh.Norm(2, v.Normal)
		assert.InDelta(t, -2*hotBy*area, s.ResidualAt(v.Point)[3], 1.e-12)
	}
}
