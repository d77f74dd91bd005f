package raidz

import "github.com/pkg/errors"

// matrix is a row-major square matrix over GF(2^8).
type matrix []byte

var errSingular = errors.New("raidz: singular matrix")

// invert writes the inverse of the n*n matrix m into im.
// m is destroyed.
func (m matrix) invert(n int, im matrix) error {
	for i := range im[:n*n] {
		im[i] = 0
	}
	for i := 0; i < n; i++ {
		im[i*n+i] = 1
	}

	for col := 0; col < n; col++ {
		// Find a pivot.
		if m[col*n+col] == 0 {
			k := col + 1
			for ; k < n; k++ {
				if m[k*n+col] != 0 {
					break
				}
			}
			if k == n {
				return errSingular
			}
			m.swapRows(n, col, k)
			im.swapRows(n, col, k)
		}

		inv := gfInv(m[col*n+col])
		for j := 0; j < n; j++ {
			m[col*n+j] = gfMul(m[col*n+j], inv)
			im[col*n+j] = gfMul(im[col*n+j], inv)
		}

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := m[r*n+col]
			if f == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				m[r*n+j] ^= gfMul(f, m[col*n+j])
				im[r*n+j] ^= gfMul(f, im[col*n+j])
			}
		}
	}
	return nil
}

func (m matrix) swapRows(n, a, b int) {
	for j := 0; j < n; j++ {
		m[a*n+j], m[b*n+j] = m[b*n+j], m[a*n+j]
	}
}

// parityCoeff is the coefficient of data column c in parity row p
// of a map with ncols columns.
func parityCoeff(p, c, ncols int) byte {
	return pow2(p * (ncols - 1 - c))
}
