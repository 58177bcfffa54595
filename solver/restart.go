package solver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// Restart files hold the full conserved state in a fixed variable
// order: density, momentum components, energy, then the turbulence
// working variable when present. The header records point and variable
// counts; a mismatch on load is a structural error and fatal.

const restartMagic uint32 = 0x46565246 // "FVRF"

func (s *Solver) restartVarCount() (nVar int) {
	nVar = s.Nvar
	if s.Turb != nil {
		nVar++
	}
	return
}

func (s *Solver) SaveRestart(fileName string) {
	f, err := os.Create(fileName)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	var (
		nPoints = uint32(s.Mesh.NumPoints())
		nVar    = uint32(s.restartVarCount())
	)
	for _, v := range []uint32{restartMagic, nPoints, nVar} {
		if err = binary.Write(w, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	for ip := 0; ip < int(nPoints); ip++ {
		if err = binary.Write(w, binary.LittleEndian, s.State.ConservedAt(ip)); err != nil {
			panic(err)
		}
		if s.Turb != nil {
			if err = binary.Write(w, binary.LittleEndian, s.Turb.NuTilde[ip]); err != nil {
				panic(err)
			}
		}
	}
}

func (s *Solver) LoadRestart(fileName string) {
	f, err := os.Open(fileName)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic, nPoints, nVar uint32
	for _, p := range []*uint32{&magic, &nPoints, &nVar} {
		if err = binary.Read(r, binary.LittleEndian, p); err != nil {
			panic(err)
		}
	}
	if magic != restartMagic {
		panic(fmt.Errorf("restart file %s: bad magic %08x", fileName, magic))
	}
	if int(nPoints) != s.Mesh.NumPoints() {
		panic(fmt.Errorf("restart file %s holds %d points, mesh has %d",
			fileName, nPoints, s.Mesh.NumPoints()))
	}
	if int(nVar) != s.restartVarCount() {
		panic(fmt.Errorf("restart file %s holds %d variables, solver needs %d",
			fileName, nVar, s.restartVarCount()))
	}
	for ip := 0; ip < int(nPoints); ip++ {
		if err = binary.Read(r, binary.LittleEndian, s.State.ConservedAt(ip)); err != nil {
			panic(err)
		}
		if s.Turb != nil {
			if err = binary.Read(r, binary.LittleEndian, &s.Turb.NuTilde[ip]); err != nil {
				panic(err)
			}
		}
		copy(s.State.OldSolutionAt(ip), s.State.ConservedAt(ip))
	}
}
