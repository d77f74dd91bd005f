package raidz

import "github.com/pkg/errors"

// Reconstruct rebuilds the data columns listed in tgts together with
// every column whose Error is set. It returns the parity columns used
// as a bitmask of CodeP, CodeQ and CodeR.
//
// Parity columns are never rewritten here; call Generate afterwards to
// repair them. Asking for more columns than there is parity fails with
// ErrUnsupportedTarget and leaves every buffer untouched.
func (m *Map) Reconstruct(tgts ...int) (int, error) {
	return m.reconstruct(m.resolve(), tgts)
}

func (m *Map) reconstruct(i *impl, tgts []int) (int, error) {
	bad, err := m.badColumns(tgts)
	if err != nil {
		return 0, err
	}
	if len(bad) > m.FirstDataCol {
		return 0, errors.Wrapf(ErrUnsupportedTarget, "%d columns lost, parity %d", len(bad), m.FirstDataCol)
	}

	var valid [maxParity]bool
	for c := 0; c < m.FirstDataCol; c++ {
		valid[c] = true
	}
	dt := make([]int, 0, len(bad))
	for _, c := range bad {
		if c < m.FirstDataCol {
			valid[c] = false
		} else {
			dt = append(dt, c)
		}
	}
	if len(dt) == 0 {
		return 0, nil
	}
	if err = m.bound(); err != nil {
		return 0, err
	}

	op, ok := selectRec(m.FirstDataCol, len(dt), valid)
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedTarget, "columns %v", bad)
	}

	i, g := beginVector(i)
	defer g.end()
	i.rec[op](m, dt)

	for _, c := range dt {
		m.Col[c].Tried = true
	}
	return recCode(op), nil
}

// badColumns merges tgts with the errored columns, sorted and unique.
func (m *Map) badColumns(tgts []int) ([]int, error) {
	isBad := make([]bool, m.Cols)
	for _, c := range tgts {
		if c < 0 || c >= m.Cols {
			return nil, errors.Wrapf(ErrUnsupportedTarget, "column %d of %d", c, m.Cols)
		}
		isBad[c] = true
	}
	bad := make([]int, 0, len(tgts))
	for c := 0; c < m.Cols; c++ {
		if isBad[c] || m.Col[c].Error != nil {
			bad = append(bad, c)
		}
	}
	return bad, nil
}

// selectRec picks the reconstruction for nbad lost data columns,
// preferring P over Q over R.
func selectRec(nparity, nbad int, valid [maxParity]bool) (RecOp, bool) {
	switch nbad {
	case 1:
		for p, op := range [...]RecOp{RecP, RecQ, RecR} {
			if p < nparity && valid[p] {
				return op, true
			}
		}
	case 2:
		for _, c := range [...]struct {
			a, b int
			op   RecOp
		}{{0, 1, RecPQ}, {0, 2, RecPR}, {1, 2, RecQR}} {
			if c.b < nparity && valid[c.a] && valid[c.b] {
				return c.op, true
			}
		}
	case 3:
		if nparity == 3 && valid[0] && valid[1] && valid[2] {
			return RecPQR, true
		}
	}
	return 0, false
}

// Closed-form reconstruction coefficients, as exponents of 2.
const (
	mulQX = 0 // RecQ and RecR

	mulPQX = 0 // RecPQ and RecPR
	mulPQY = 1

	mulQRXQ = 0
	mulQRX  = 1
	mulQRYQ = 2
	mulQRY  = 3

	mulPQRXP = 0
	mulPQRXQ = 1
	mulPQRXR = 2
	mulPQRYU = 3
	mulPQRYP = 4
	mulPQRYQ = 5

	mulCnt = 6
)

// recCoefficients solves the parity equations of op for the targets t
// (ascending column indexes) of a map with n columns.
func recCoefficients(op RecOp, n int, t []int) (coeff [mulCnt]int) {
	switch op {
	case RecQ:
		coeff[mulQX] = fixExp(255 - (n - 1 - t[0]))
	case RecR:
		coeff[mulQX] = fixExp(255 - 2*(n-1-t[0]))
	case RecPQ, RecPR:
		k := 1
		if op == RecPR {
			k = 2
		}
		x, y := t[0], t[1]
		a := pow2(k * (x - y))
		b := pow2(-k * (n - 1 - x))
		e := 255 - log2(a^1)
		coeff[mulPQX] = log2(exp2(a, e))
		coeff[mulPQY] = log2(exp2(b, e))
	case RecQR:
		x, y := t[0], t[1]
		nn := 3*n - 3
		denom := 255 - log2(pow2(nn-x-2*y)^pow2(nn-2*x-y))
		coeff[mulQRXQ] = fixExp(n - 1 - y)
		coeff[mulQRX] = fixExp(n - 1 - y + denom)
		coeff[mulQRYQ] = fixExp(n - 1 - x)
		coeff[mulQRY] = fixExp(n - 1 - x + denom)
	case RecPQR:
		x, y, z := t[0], t[1], t[2]
		nn := 3*n - 3
		xd := 255 - log2(pow2(nn-2*x-y)^pow2(nn-x-2*y)^
			pow2(nn-2*x-z)^pow2(nn-x-2*z)^
			pow2(nn-2*y-z)^pow2(nn-y-2*z))
		yz := pow2(n-1-y) ^ pow2(n-1-z)
		yd := 255 - log2(yz)
		coeff[mulPQRXP] = fixExp(log2(pow2(nn-2*y-z)^pow2(nn-y-2*z)) + xd)
		coeff[mulPQRXQ] = fixExp(log2(pow2(2*n-2-2*y)^pow2(2*n-2-2*z)) + xd)
		coeff[mulPQRXR] = fixExp(log2(yz) + xd)
		coeff[mulPQRYU] = fixExp(n - 1 - x)
		coeff[mulPQRYP] = fixExp(n - 1 - z + yd)
		coeff[mulPQRYQ] = fixExp(yd)
	}
	return
}
