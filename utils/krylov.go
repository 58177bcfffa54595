package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BlockJacobi is the block-diagonal preconditioner: an LU factorization
// of every diagonal block, refreshed once per nonlinear iteration.
type BlockJacobi struct {
	Nvar int
	lus  []*mat.LU
}

func NewBlockJacobi(nBlocks, nVar int) (bj *BlockJacobi) {
	bj = &BlockJacobi{
		Nvar: nVar,
		lus:  make([]*mat.LU, nBlocks),
	}
	for i := range bj.lus {
		bj.lus[i] = &mat.LU{}
	}
	return
}

// Factor refreshes the LU factors from the current diagonal blocks.
// A singular diagonal block is a fatal assembly error.
func (bj *BlockJacobi) Factor(A *BlockMatrix) {
	var (
		nv = bj.Nvar
	)
	for i := range bj.lus {
		blk := mat.NewDense(nv, nv, A.Block(i, i))
		bj.lus[i].Factorize(blk)
	}
}

// Apply computes z = M^{-1} r block by block.
func (bj *BlockJacobi) Apply(r, z []float64) {
	var (
		nv = bj.Nvar
	)
	for i := range bj.lus {
		rhs := mat.NewVecDense(nv, append([]float64(nil), r[i*nv:(i+1)*nv]...))
		out := mat.NewVecDense(nv, z[i*nv:(i+1)*nv])
		if err := bj.lus[i].SolveVecTo(out, false, rhs); err != nil {
			panic(fmt.Errorf("singular diagonal block %d in preconditioner: %w", i, err))
		}
	}
}

// LinearSolveReport carries the outcome of one Krylov solve. Hitting
// the iteration cap is reported, not fatal: the caller applies the
// partially converged update.
type LinearSolveReport struct {
	Iterations int
	Residual   float64 // final residual norm relative to ||b||
	Converged  bool
}

// GMRES solves A x = b with restarted, left-preconditioned GMRES.
// x holds the initial guess on entry and the solution on return.
func GMRES(A *BlockMatrix, M *BlockJacobi, b, x []float64, tol float64, maxIter, restart int) (report LinearSolveReport) {
	var (
		n     = len(b)
		r     = make([]float64, n)
		z     = make([]float64, n)
		w     = make([]float64, n)
		bNorm float64
	)
	M.Apply(b, z)
	bNorm = floats.Norm(z, 2)
	if bNorm == 0 {
		for i := range x {
			x[i] = 0
		}
		report.Converged = true
		return
	}
	if restart <= 0 || restart > maxIter {
		restart = maxIter
	}
	var (
		V  = make([][]float64, restart+1)
		H  = make([][]float64, restart+1)
		cs = make([]float64, restart)
		sn = make([]float64, restart)
		g  = make([]float64, restart+1)
		y  = make([]float64, restart)
	)
	for i := range V {
		V[i] = make([]float64, n)
		H[i] = make([]float64, restart)
	}

	for report.Iterations < maxIter {
		// r = M^{-1}(b - A x)
		A.MulVec(x, w)
		for i := range r {
			r[i] = b[i] - w[i]
		}
		M.Apply(r, z)
		beta := floats.Norm(z, 2)
		report.Residual = beta / bNorm
		if report.Residual < tol {
			report.Converged = true
			return
		}
		copy(V[0], z)
		floats.Scale(1/beta, V[0])
		g[0] = beta
		for i := 1; i < len(g); i++ {
			g[i] = 0
		}

		var j int
		for j = 0; j < restart && report.Iterations < maxIter; j++ {
			report.Iterations++
			A.MulVec(V[j], w)
			M.Apply(w, z)
			// Modified Gram-Schmidt
			for i := 0; i <= j; i++ {
				H[i][j] = floats.Dot(V[i], z)
				floats.AddScaled(z, -H[i][j], V[i])
			}
			H[j+1][j] = floats.Norm(z, 2)
			if H[j+1][j] > 0 {
				copy(V[j+1], z)
				floats.Scale(1/H[j+1][j], V[j+1])
			}
			// Apply previous Givens rotations to the new column
			for i := 0; i < j; i++ {
				t := cs[i]*H[i][j] + sn[i]*H[i+1][j]
				H[i+1][j] = -sn[i]*H[i][j] + cs[i]*H[i+1][j]
				H[i][j] = t
			}
			// New rotation annihilating H[j+1][j]
			d := math.Hypot(H[j][j], H[j+1][j])
			if d == 0 {
				cs[j], sn[j] = 1, 0
			} else {
				cs[j], sn[j] = H[j][j]/d, H[j+1][j]/d
			}
			H[j][j] = d
			H[j+1][j] = 0
			g[j+1] = -sn[j] * g[j]
			g[j] = cs[j] * g[j]

			report.Residual = math.Abs(g[j+1]) / bNorm
			if report.Residual < tol {
				j++
				break
			}
		}
		// Back substitution for y, then x += V y
		for i := j - 1; i >= 0; i-- {
			y[i] = g[i]
			for k := i + 1; k < j; k++ {
				y[i] -= H[i][k] * y[k]
			}
			y[i] /= H[i][i]
		}
		for i := 0; i < j; i++ {
			floats.AddScaled(x, y[i], V[i])
		}
		if report.Residual < tol {
			report.Converged = true
			return
		}
	}
	return
}

// BiCGSTAB solves A x = b with the preconditioned stabilized
// biconjugate gradient method.
func BiCGSTAB(A *BlockMatrix, M *BlockJacobi, b, x []float64, tol float64, maxIter int) (report LinearSolveReport) {
	var (
		n     = len(b)
		r     = make([]float64, n)
		rHat  = make([]float64, n)
		p     = make([]float64, n)
		pHat  = make([]float64, n)
		s     = make([]float64, n)
		sHat  = make([]float64, n)
		v     = make([]float64, n)
		t     = make([]float64, n)
		bNorm = floats.Norm(b, 2)
	)
	if bNorm == 0 {
		for i := range x {
			x[i] = 0
		}
		report.Converged = true
		return
	}
	A.MulVec(x, v)
	for i := range r {
		r[i] = b[i] - v[i]
	}
	copy(rHat, r)
	var (
		rho, alpha, omega = 1.0, 1.0, 1.0
		rhoPrev           float64
	)
	for report.Iterations = 0; report.Iterations < maxIter; report.Iterations++ {
		report.Residual = floats.Norm(r, 2) / bNorm
		if report.Residual < tol {
			report.Converged = true
			return
		}
		rhoPrev = rho
		rho = floats.Dot(rHat, r)
		if rho == 0 {
			return // breakdown, return best iterate
		}
		if report.Iterations == 0 {
			copy(p, r)
		} else {
			beta := (rho / rhoPrev) * (alpha / omega)
			for i := range p {
				p[i] = r[i] + beta*(p[i]-omega*v[i])
			}
		}
		M.Apply(p, pHat)
		A.MulVec(pHat, v)
		alpha = rho / floats.Dot(rHat, v)
		for i := range s {
			s[i] = r[i] - alpha*v[i]
		}
		if sn := floats.Norm(s, 2) / bNorm; sn < tol {
			floats.AddScaled(x, alpha, pHat)
			report.Residual = sn
			report.Converged = true
			return
		}
		M.Apply(s, sHat)
		A.MulVec(sHat, t)
		tt := floats.Dot(t, t)
		if tt == 0 {
			floats.AddScaled(x, alpha, pHat)
			return
		}
		omega = floats.Dot(t, s) / tt
		floats.AddScaled(x, alpha, pHat)
		floats.AddScaled(x, omega, sHat)
		for i := range r {
			r[i] = s[i] - omega*t[i]
		}
		if omega == 0 {
			return
		}
	}
	report.Residual = floats.Norm(r, 2) / bNorm
	return
}
