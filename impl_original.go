package raidz

// original is the byte-at-a-time reference: Horner evaluation over
// whole columns for generation and a general matrix inverse for
// reconstruction. Every other implementation must match it bit for bit.
var originalImpl = newOriginalImpl()

func newOriginalImpl() *impl {
	i := &impl{
		name: "original",
		gen:  [genNum]GenFunc{genOriginal, genOriginal, genOriginal},
	}
	for op := range i.rec {
		i.rec[op] = recOriginal(recParity[op])
	}
	return i
}

func genOriginal(m *Map) {
	fd := m.FirstDataCol
	for p := 0; p < fd; p++ {
		pv := m.Col[p].Data
		for i := range pv {
			pv[i] = 0
		}
		for c := fd; c < m.Cols; c++ {
			switch p {
			case 1:
				mulVect2(pv)
			case 2:
				mulVect2(pv)
				mulVect2(pv)
			}
			xorVect(m.Col[c].Data, pv)
		}
	}
}

// mulVect2 multiplies every byte of v by 2.
func mulVect2(v []byte) {
	for i := range v {
		v[i] = mul2(v[i])
	}
}

// xorVect adds a into the head of b.
func xorVect(a, b []byte) {
	for i := range a {
		b[i] ^= a[i]
	}
}

func mulVect(c byte, a, b []byte) {
	if c == 0 {
		for i := range a {
			b[i] = 0
		}
		return
	}
	t := newMulTable(log2(c))
	for i := range a {
		b[i] = t[a[i]]
	}
}

func mulVectAdd(c byte, a, b []byte) {
	if c == 0 {
		return
	}
	t := newMulTable(log2(c))
	for i := range a {
		b[i] ^= t[a[i]]
	}
}

// recOriginal solves for the targets with the given parity rows.
func recOriginal(rows []int) RecFunc {
	return func(m *Map, tgts []int) {
		n := len(tgts)
		xsize := m.Col[tgts[0]].Size

		raw := make(matrix, n*n)
		for i, p := range rows {
			for j, c := range tgts {
				raw[i*n+j] = parityCoeff(p, c, m.Cols)
			}
		}
		im := make(matrix, n*n)
		if err := raw.invert(n, im); err != nil {
			panic(err) // Any set of distinct columns is solvable.
		}

		// Syndromes: parity minus the surviving data.
		syn := make([][]byte, n)
		for i, p := range rows {
			syn[i] = make([]byte, xsize)
			copy(syn[i], m.Col[p].Data[:xsize])
			for c := m.FirstDataCol; c < m.Cols; c++ {
				if isIn(c, tgts) {
					continue
				}
				d := m.Col[c].Data
				if len(d) > xsize {
					d = d[:xsize]
				}
				mulVectAdd(parityCoeff(p, c, m.Cols), d, syn[i])
			}
		}

		for j, c := range tgts {
			out := m.Col[c].Data
			mulVect(im[j*n], syn[0][:len(out)], out)
			for i := 1; i < n; i++ {
				mulVectAdd(im[j*n+i], syn[i][:len(out)], out)
			}
		}
	}
}

func isIn(e int, s []int) bool {
	for _, v := range s {
		if e == v {
			return true
		}
	}
	return false
}
