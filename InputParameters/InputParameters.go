package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// BCSpec configures one boundary marker. Kind selects the handler,
// the remaining fields are read only by the kinds that use them.
type BCSpec struct {
	Kind                 string  `yaml:"Kind"`
	HeatFlux             float64 `yaml:"HeatFlux"`
	Temperature          float64 `yaml:"Temperature"`
	HeatTransferCoeff    float64 `yaml:"HeatTransferCoeff"`
	AmbientTemperature   float64 `yaml:"AmbientTemperature"`
	CouplingMode         string  `yaml:"CouplingMode"`
	BlowingVelocityRatio float64 `yaml:"BlowingVelocityRatio"`
	BlowingTemperature   float64 `yaml:"BlowingTemperature"`
	WallFunction         bool    `yaml:"WallFunction"`
}

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title    string  `yaml:"Title"`
	NDim     int     `yaml:"NDim"`
	Minf     float64 `yaml:"Minf"`
	Gamma    float64 `yaml:"Gamma"`
	Alpha    float64 `yaml:"Alpha"`
	Reynolds float64 `yaml:"Reynolds"`

	Regime   string `yaml:"Regime"` // euler, navier_stokes, rans
	FluxType string `yaml:"FluxType"`

	MUSCL       bool    `yaml:"MUSCL"`
	LimiterType string  `yaml:"Limiter"`
	VenkatK     float64 `yaml:"VenkatK"`

	ImplicitSolver bool    `yaml:"ImplicitSolver"`
	CFL            float64 `yaml:"CFL"`
	AdaptCFL       bool    `yaml:"AdaptCFL"`
	CFLMin         float64 `yaml:"CFLMin"`
	CFLMax         float64 `yaml:"CFLMax"`
	CFLFactorUp    float64 `yaml:"CFLFactorUp"`
	CFLFactorDown  float64 `yaml:"CFLFactorDown"`

	MaxIterations  int     `yaml:"MaxIterations"`
	ConvergenceTol float64 `yaml:"ConvergenceTol"`

	LinearSolver     string  `yaml:"LinearSolver"` // gmres, bicgstab
	LinearSolverTol  float64 `yaml:"LinearSolverTol"`
	LinearSolverIter int     `yaml:"LinearSolverIter"`
	GMRESRestart     int     `yaml:"GMRESRestart"`

	YPlusMin      float64 `yaml:"YPlusMin"`
	WallFnMaxIter int     `yaml:"WallFnMaxIter"`
	WallFnRelax   float64 `yaml:"WallFnRelax"`

	ParallelDegree int       `yaml:"ParallelDegree"`
	RestartFile    string    `yaml:"RestartFile"`
	SolutionFile   string    `yaml:"SolutionFile"`
	DynamicGrid    bool      `yaml:"DynamicGrid"`
	GridVelocity   []float64 `yaml:"GridVelocity"` // rigid translation of the mesh

	BCs map[string]BCSpec `yaml:"BCs"` // Key is the mesh marker tag
}

func (ip *InputParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	ip.setDefaults()
	return nil
}

func (ip *InputParameters) setDefaults() {
	if ip.NDim == 0 {
		ip.NDim = 2
	}
	if ip.Gamma == 0 {
		ip.Gamma = 1.4
	}
	if ip.CFL == 0 {
		ip.CFL = 5
	}
	if ip.CFLMin == 0 {
		ip.CFLMin = 0.1
	}
	if ip.CFLMax == 0 {
		ip.CFLMax = 100
	}
	if ip.CFLFactorUp == 0 {
		ip.CFLFactorUp = 1.1
	}
	if ip.CFLFactorDown == 0 {
		ip.CFLFactorDown = 0.5
	}
	if ip.FluxType == "" {
		ip.FluxType = "roe"
	}
	if ip.Regime == "" {
		ip.Regime = "euler"
	}
	if ip.LimiterType == "" {
		ip.LimiterType = "venkatakrishnan"
	}
	if ip.VenkatK == 0 {
		ip.VenkatK = 0.05
	}
	if ip.LinearSolver == "" {
		ip.LinearSolver = "gmres"
	}
	if ip.LinearSolverTol == 0 {
		ip.LinearSolverTol = 1.e-6
	}
	if ip.LinearSolverIter == 0 {
		ip.LinearSolverIter = 100
	}
	if ip.GMRESRestart == 0 {
		ip.GMRESRestart = 30
	}
	if ip.YPlusMin == 0 {
		ip.YPlusMin = 5
	}
	if ip.WallFnMaxIter == 0 {
		ip.WallFnMaxIter = 200
	}
	if ip.WallFnRelax == 0 {
		ip.WallFnRelax = 0.5
	}
	if ip.MaxIterations == 0 {
		ip.MaxIterations = 1000
	}
	if ip.ConvergenceTol == 0 {
		ip.ConvergenceTol = 1.e-10
	}
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%8.5f\t\t= CFL\n", ip.CFL)
	fmt.Printf("%8.5f\t\t= Minf\n", ip.Minf)
	fmt.Printf("%8.5f\t\t= Alpha\n", ip.Alpha)
	fmt.Printf("[%s]\t\t\t= Regime\n", ip.Regime)
	fmt.Printf("[%s]\t\t\t= Flux Type\n", ip.FluxType)
	fmt.Printf("[%s]\t\t= Linear Solver\n", ip.LinearSolver)
	fmt.Printf("[%v]\t\t\t= MUSCL Reconstruction\n", ip.MUSCL)
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
