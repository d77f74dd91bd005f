package raidz

import "encoding/binary"

// scalar works on 64-bit words holding eight field elements each.
// Column sizes are whole sectors, so every column is a multiple of 8.
var scalarImpl = &impl{
	name: implScalar,
	gen:  [genNum]GenFunc{genPScalar, genPQScalar, genPQRScalar},
	rec: [recNum]RecFunc{
		recPScalar, recQScalar, recRScalar,
		recPQScalar, recPRScalar, recQRScalar, recPQRScalar,
	},
}

const wordSize = 8

func load(b []byte, off int) uint64 { return binary.LittleEndian.Uint64(b[off:]) }

func store(b []byte, off int, w uint64) { binary.LittleEndian.PutUint64(b[off:], w) }

func genPScalar(m *Map) {
	fd := m.FirstDataCol
	p := m.Col[0].Data
	for off := 0; off < m.psize(); off += wordSize {
		nc := m.dataColsAt(off)
		w := load(m.Col[fd].Data, off)
		for c := fd + 1; c < nc; c++ {
			w ^= load(m.Col[c].Data, off)
		}
		store(p, off, w)
	}
}

func genPQScalar(m *Map) {
	fd, ncols := m.FirstDataCol, m.Cols
	p, q := m.Col[0].Data, m.Col[1].Data
	for off := 0; off < m.psize(); off += wordSize {
		nc := m.dataColsAt(off)
		pw := load(m.Col[fd].Data, off)
		qw := pw
		for c := fd + 1; c < nc; c++ {
			d := load(m.Col[c].Data, off)
			pw ^= d
			qw = mul2w(qw) ^ d
		}
		for c := nc; c < ncols; c++ {
			qw = mul2w(qw)
		}
		store(p, off, pw)
		store(q, off, qw)
	}
}

func genPQRScalar(m *Map) {
	fd, ncols := m.FirstDataCol, m.Cols
	p, q, r := m.Col[0].Data, m.Col[1].Data, m.Col[2].Data
	for off := 0; off < m.psize(); off += wordSize {
		nc := m.dataColsAt(off)
		pw := load(m.Col[fd].Data, off)
		qw, rw := pw, pw
		for c := fd + 1; c < nc; c++ {
			d := load(m.Col[c].Data, off)
			pw ^= d
			qw = mul2w(qw) ^ d
			rw = mul4w(rw) ^ d
		}
		for c := nc; c < ncols; c++ {
			qw = mul2w(qw)
			rw = mul4w(rw)
		}
		store(p, off, pw)
		store(q, off, qw)
		store(r, off, rw)
	}
}

func recPScalar(m *Map, tgts []int) {
	x := tgts[0]
	xcol := m.Col[x].Data
	p := m.Col[0].Data
	for off := 0; off < len(xcol); off += wordSize {
		nc := m.dataColsAt(off)
		w := load(p, off)
		for c := m.FirstDataCol; c < nc; c++ {
			if c != x {
				w ^= load(m.Col[c].Data, off)
			}
		}
		store(xcol, off, w)
	}
}

// recSingle rebuilds one column from Q (mul2w) or R (mul4w).
func recSingle(m *Map, x int, par []byte, mul func(uint64) uint64, t *mulTable) {
	ncols := m.Cols
	xcol := m.Col[x].Data
	for off := 0; off < len(xcol); off += wordSize {
		nc := m.dataColsAt(off)
		var w uint64
		for c := m.FirstDataCol; c < nc; c++ {
			w = mul(w)
			if c != x {
				w ^= load(m.Col[c].Data, off)
			}
		}
		for c := nc; c < ncols; c++ {
			w = mul(w)
		}
		w ^= load(par, off)
		store(xcol, off, t.word(w))
	}
}

func recQScalar(m *Map, tgts []int) {
	coeff := recCoefficients(RecQ, m.Cols, tgts)
	recSingle(m, tgts[0], m.Col[1].Data, mul2w, newMulTable(coeff[mulQX]))
}

func recRScalar(m *Map, tgts []int) {
	coeff := recCoefficients(RecR, m.Cols, tgts)
	recSingle(m, tgts[0], m.Col[2].Data, mul4w, newMulTable(coeff[mulQX]))
}

// recPair rebuilds two columns from P and Q (mul2w) or P and R (mul4w).
func recPair(m *Map, tgts []int, par []byte, mul func(uint64) uint64, coeff [mulCnt]int) {
	x, y := tgts[0], tgts[1]
	ncols := m.Cols
	xcol, ycol := m.Col[x].Data, m.Col[y].Data
	p := m.Col[0].Data
	tx, ty := newMulTable(coeff[mulPQX]), newMulTable(coeff[mulPQY])
	for off := 0; off < len(xcol); off += wordSize {
		nc := m.dataColsAt(off)
		pw := load(p, off)
		var qw uint64
		for c := m.FirstDataCol; c < nc; c++ {
			qw = mul(qw)
			if c != x && c != y {
				d := load(m.Col[c].Data, off)
				pw ^= d
				qw ^= d
			}
		}
		for c := nc; c < ncols; c++ {
			qw = mul(qw)
		}
		qw ^= load(par, off)

		xw := tx.word(pw) ^ ty.word(qw)
		store(xcol, off, xw)
		if off < len(ycol) {
			store(ycol, off, pw^xw)
		}
	}
}

func recPQScalar(m *Map, tgts []int) {
	recPair(m, tgts, m.Col[1].Data, mul2w, recCoefficients(RecPQ, m.Cols, tgts))
}

func recPRScalar(m *Map, tgts []int) {
	recPair(m, tgts, m.Col[2].Data, mul4w, recCoefficients(RecPR, m.Cols, tgts))
}

func recQRScalar(m *Map, tgts []int) {
	x, y := tgts[0], tgts[1]
	ncols := m.Cols
	xcol, ycol := m.Col[x].Data, m.Col[y].Data
	q, r := m.Col[1].Data, m.Col[2].Data
	coeff := recCoefficients(RecQR, ncols, tgts)
	txq, tx := newMulTable(coeff[mulQRXQ]), newMulTable(coeff[mulQRX])
	tyq, ty := newMulTable(coeff[mulQRYQ]), newMulTable(coeff[mulQRY])
	for off := 0; off < len(xcol); off += wordSize {
		nc := m.dataColsAt(off)
		var qw, rw uint64
		for c := m.FirstDataCol; c < nc; c++ {
			qw = mul2w(qw)
			rw = mul4w(rw)
			if c != x && c != y {
				d := load(m.Col[c].Data, off)
				qw ^= d
				rw ^= d
			}
		}
		for c := nc; c < ncols; c++ {
			qw = mul2w(qw)
			rw = mul4w(rw)
		}
		qw ^= load(q, off)
		rw ^= load(r, off)

		store(xcol, off, tx.word(txq.word(qw)^rw))
		if off < len(ycol) {
			store(ycol, off, ty.word(tyq.word(qw)^rw))
		}
	}
}

func recPQRScalar(m *Map, tgts []int) {
	x, y, z := tgts[0], tgts[1], tgts[2]
	ncols := m.Cols
	xcol, ycol, zcol := m.Col[x].Data, m.Col[y].Data, m.Col[z].Data
	p, q, r := m.Col[0].Data, m.Col[1].Data, m.Col[2].Data
	coeff := recCoefficients(RecPQR, ncols, tgts)
	txp := newMulTable(coeff[mulPQRXP])
	txq := newMulTable(coeff[mulPQRXQ])
	txr := newMulTable(coeff[mulPQRXR])
	tyu := newMulTable(coeff[mulPQRYU])
	typ := newMulTable(coeff[mulPQRYP])
	tyq := newMulTable(coeff[mulPQRYQ])
	for off := 0; off < len(xcol); off += wordSize {
		nc := m.dataColsAt(off)
		pw := load(p, off)
		var qw, rw uint64
		for c := m.FirstDataCol; c < nc; c++ {
			qw = mul2w(qw)
			rw = mul4w(rw)
			if c != x && c != y && c != z {
				d := load(m.Col[c].Data, off)
				pw ^= d
				qw ^= d
				rw ^= d
			}
		}
		for c := nc; c < ncols; c++ {
			qw = mul2w(qw)
			rw = mul4w(rw)
		}
		qw ^= load(q, off)
		rw ^= load(r, off)

		xw := txp.word(pw) ^ txq.word(qw) ^ txr.word(rw)
		store(xcol, off, xw)
		if off < len(ycol) {
			pyz := pw ^ xw
			qyz := qw ^ tyu.word(xw)
			yw := typ.word(pyz) ^ tyq.word(qyz)
			store(ycol, off, yw)
			if off < len(zcol) {
				store(zcol, off, pyz^yw)
			}
		}
	}
}
