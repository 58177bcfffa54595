/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/davecats/fvflow/InputParameters"
	"github.com/davecats/fvflow/mesh"
	"github.com/davecats/fvflow/solver"
)

type SolveOpts struct {
	ICFile   string
	MeshFile string
	NX, NY   int
	LX, LY   float64
	Profile  bool
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run the finite volume solver",
	Long:  `Run the finite volume solver on an SU2 mesh file or a generated Cartesian dual mesh`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err  error
			opts = &SolveOpts{}
		)
		if opts.ICFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		opts.MeshFile, _ = cmd.Flags().GetString("meshFile")
		opts.NX, _ = cmd.Flags().GetInt("nx")
		opts.NY, _ = cmd.Flags().GetInt("ny")
		opts.LX, _ = cmd.Flags().GetFloat64("lx")
		opts.LY, _ = cmd.Flags().GetFloat64("ly")
		opts.Profile, _ = cmd.Flags().GetBool("profile")
		ip := processInput(opts)
		RunSolve(opts, ip)
	},
}

func processInput(opts *SolveOpts) (ip *InputParameters.InputParameters) {
	var (
		err error
	)
	if len(opts.ICFile) == 0 {
		err = fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Test Case"
CFL: 5.
Minf: 0.5
Regime: navier_stokes  # Can be euler, navier_stokes or rans
FluxType: Roe
MUSCL: true
ImplicitSolver: true
BCs:
  bottom:
    Kind: heat_flux
    HeatFlux: 0.
  top:
    Kind: far_field
  left:
    Kind: far_field
  right:
    Kind: far_field
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(opts.ICFile); err != nil {
		panic(err)
	}
	ip = &InputParameters.InputParameters{}
	if err = ip.Parse(data); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- CFL\n\t- FluxType\n\t- BCs per marker")
	SolveCmd.Flags().StringP("meshFile", "F", "", "SU2 format mesh file, overrides the generated Cartesian mesh")
	SolveCmd.Flags().IntP("nx", "x", 65, "number of mesh points in x")
	SolveCmd.Flags().IntP("ny", "y", 65, "number of mesh points in y")
	SolveCmd.Flags().Float64("lx", 1.0, "domain length in x")
	SolveCmd.Flags().Float64("ly", 1.0, "domain length in y")
	SolveCmd.Flags().BoolP("profile", "p", false, "write a CPU profile of the run")
}

func RunSolve(opts *SolveOpts, ip *InputParameters.InputParameters) {
	if opts.Profile {
		defer profile.Start().Stop()
	}
	ip.Print()
	var msh *mesh.Topology
	if opts.MeshFile != "" {
		msh = mesh.ReadSU2(opts.MeshFile)
	} else {
		msh = mesh.NewCartesian2D(opts.NX, opts.NY, opts.LX, opts.LY,
			[4]string{"bottom", "right", "top", "left"})
	}
	if ip.DynamicGrid {
		var vel [3]float64
		copy(vel[:], ip.GridVelocity)
		msh.SetUniformGridVel(vel)
	}
	s := solver.NewSolver(ip, msh, nil)
	s.Run()
	if ip.SolutionFile != "" {
		s.SaveRestart(ip.SolutionFile)
	}
}
