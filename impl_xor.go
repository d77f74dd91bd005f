package raidz

import (
	xor "github.com/templexxx/xorsimd"
)

// xorsimd runs every XOR-only pass (P generation and P
// reconstruction) on templexxx/xorsimd and the Q/R lanes word-wise.
var xorImpl = &impl{
	name: "xorsimd",
	gen:  [genNum]GenFunc{genPXor, genPQXor, genPQRXor},
	rec: [recNum]RecFunc{
		recPXor, recQScalar, recRScalar,
		recPQScalar, recPRScalar, recQRScalar, recPQRScalar,
	},
	probe:  hasXORSIMD,
	vector: true,
}

// Size of one XOR pass, half of a 32KB L1 data cache.
const halfL1 = 16 * 1024

// xorColumns sets dst to src XOR every data column except skip.
// Short columns only contribute up to their size.
func xorColumns(m *Map, dst, src []byte, skip int) {
	short := m.shortSize()
	vs := make([][]byte, 0, m.Cols+1)
	for lo := 0; lo < len(dst); {
		hi := lo + halfL1
		if lo < short && hi > short {
			hi = short
		}
		if hi > len(dst) {
			hi = len(dst)
		}

		vs = vs[:0]
		if src != nil {
			vs = append(vs, src[lo:hi])
		}
		for c := m.FirstDataCol; c < m.dataColsAt(lo); c++ {
			if c != skip {
				vs = append(vs, m.Col[c].Data[lo:hi])
			}
		}
		xor.Encode(dst[lo:hi], vs)
		lo = hi
	}
}

func genPXor(m *Map) {
	xorColumns(m, m.Col[0].Data, nil, -1)
}

// genQR adds the Q and R lanes of a generation, P already done.
func genQR(m *Map, q, r []byte) {
	fd, ncols := m.FirstDataCol, m.Cols
	for off := 0; off < len(q); off += wordSize {
		nc := m.dataColsAt(off)
		var qw, rw uint64
		for c := fd; c < nc; c++ {
			d := load(m.Col[c].Data, off)
			qw = mul2w(qw) ^ d
			rw = mul4w(rw) ^ d
		}
		for c := nc; c < ncols; c++ {
			qw = mul2w(qw)
			rw = mul4w(rw)
		}
		store(q, off, qw)
		if r != nil {
			store(r, off, rw)
		}
	}
}

func genPQXor(m *Map) {
	genPXor(m)
	genQR(m, m.Col[1].Data, nil)
}

func genPQRXor(m *Map) {
	genPXor(m)
	genQR(m, m.Col[1].Data, m.Col[2].Data)
}

func recPXor(m *Map, tgts []int) {
	x := tgts[0]
	xorColumns(m, m.Col[x].Data, m.Col[0].Data, x)
}
