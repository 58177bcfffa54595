package utils

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
)

// BlockMatrix is a sparse block matrix with square blocks of dimension
// Nvar, one block row/column per mesh point. The block sparsity pattern
// is point adjacency plus the diagonal, fixed at construction; only
// blocks in the pattern are allocated, all others are implicitly zero.
type BlockMatrix struct {
	NBlocks int // Global dimension in block counts (square)
	Nvar    int

	// Contiguous storage for all allocated blocks, row-major per block
	data      []float64
	addresses map[[2]int]int // block coordinate -> offset into data

	// Per block-row sorted column indices, fixes the accumulation and
	// matvec traversal order independent of worker count
	rows [][]int
}

// NewBlockMatrix builds the block sparsity pattern from the edge list:
// every point gets a diagonal block, every edge (i,j) the two
// off-diagonal blocks. The pattern is collected through a DOK sparse
// matrix so repeated edges collapse naturally.
func NewBlockMatrix(nPoints, nVar int, edges [][2]int) (bm *BlockMatrix) {
	pattern := sparse.NewDOK(nPoints, nPoints)
	for i := 0; i < nPoints; i++ {
		pattern.Set(i, i, 1)
	}
	for _, e := range edges {
		pattern.Set(e[0], e[1], 1)
		pattern.Set(e[1], e[0], 1)
	}
	bm = &BlockMatrix{
		NBlocks:   nPoints,
		Nvar:      nVar,
		addresses: make(map[[2]int]int, pattern.NNZ()),
		rows:      make([][]int, nPoints),
	}
	pattern.DoNonZero(func(i, j int, v float64) {
		bm.rows[i] = append(bm.rows[i], j)
	})
	var offset int
	bsize := nVar * nVar
	for i := 0; i < nPoints; i++ {
		sort.Ints(bm.rows[i])
		for _, j := range bm.rows[i] {
			bm.addresses[[2]int{i, j}] = offset
			offset += bsize
		}
	}
	bm.data = make([]float64, offset)
	return
}

func (bm *BlockMatrix) Zero() {
	for i := range bm.data {
		bm.data[i] = 0
	}
}

// Block returns the storage of block (i,j). Panics when (i,j) is not in
// the sparsity pattern, which indicates a broken assembly loop.
func (bm *BlockMatrix) Block(i, j int) []float64 {
	offset, ok := bm.addresses[[2]int{i, j}]
	if !ok {
		panic(fmt.Errorf("block (%d,%d) not in sparsity pattern", i, j))
	}
	return bm.data[offset : offset+bm.Nvar*bm.Nvar]
}

func (bm *BlockMatrix) AddBlock(i, j int, b []float64) {
	blk := bm.Block(i, j)
	for n := range blk {
		blk[n] += b[n]
	}
}

func (bm *BlockMatrix) SubtractBlock(i, j int, b []float64) {
	blk := bm.Block(i, j)
	for n := range blk {
		blk[n] -= b[n]
	}
}

// AddToDiag adds val to every diagonal entry of the diagonal block of
// point i, the V/dt contribution of implicit pseudo-time stepping.
func (bm *BlockMatrix) AddToDiag(i int, val float64) {
	blk := bm.Block(i, i)
	for n := 0; n < bm.Nvar; n++ {
		blk[n*bm.Nvar+n] += val
	}
}

// SetRowIdentity zeroes the scalar row iVar of block-row i across all
// allocated blocks and seeds a unit diagonal, hard-enforcing a
// Dirichlet row.
func (bm *BlockMatrix) SetRowIdentity(i, iVar int) {
	for _, j := range bm.rows[i] {
		blk := bm.Block(i, j)
		for n := 0; n < bm.Nvar; n++ {
			blk[iVar*bm.Nvar+n] = 0
		}
		if j == i {
			blk[iVar*bm.Nvar+iVar] = 1
		}
	}
}

// MulVec computes y = A*x for block vectors of length NBlocks*Nvar.
func (bm *BlockMatrix) MulVec(x, y []float64) {
	var (
		nv = bm.Nvar
	)
	for i := 0; i < bm.NBlocks; i++ {
		yi := y[i*nv : (i+1)*nv]
		for n := range yi {
			yi[n] = 0
		}
		for _, j := range bm.rows[i] {
			blk := bm.Block(i, j)
			xj := x[j*nv : (j+1)*nv]
			for r := 0; r < nv; r++ {
				var sum float64
				row := blk[r*nv : (r+1)*nv]
				for c := 0; c < nv; c++ {
					sum += row[c] * xj[c]
				}
				yi[r] += sum
			}
		}
	}
}

// ToCSR expands the block matrix to a scalar CSR matrix, used for
// diagnostics and for cross-checking the block matvec in tests.
func (bm *BlockMatrix) ToCSR() *sparse.CSR {
	var (
		nv  = bm.Nvar
		dok = sparse.NewDOK(bm.NBlocks*nv, bm.NBlocks*nv)
	)
	for i := 0; i < bm.NBlocks; i++ {
		for _, j := range bm.rows[i] {
			blk := bm.Block(i, j)
			for r := 0; r < nv; r++ {
				for c := 0; c < nv; c++ {
					if v := blk[r*nv+c]; v != 0 {
						dok.Set(i*nv+r, j*nv+c, v)
					}
				}
			}
		}
	}
	return dok.ToCSR()
}
